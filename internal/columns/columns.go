package columns

import (
	"fmt"
	"math"

	"seamcraft/internal/logging"
	"seamcraft/internal/meshing"
	"seamcraft/internal/metrics"
	"seamcraft/internal/profiling"
	"seamcraft/internal/registry"
	"seamcraft/internal/world"
)

var log = logging.New("columns")

// columnRadius is the half diagonal of a sector footprint.
var columnRadius = float32(world.SectorSizeXZ) / 2 * math.Sqrt2

// Column is the renderable assembly of one sector's part meshes.
type Column struct {
	WX, WZ     int
	Generation uint64

	parts   [world.NumParts]meshing.PartMesh
	partSeq [world.NumParts]uint64
	dirty   bool

	handle    Handle
	hasHandle bool

	Counts     Counts
	Offsets    Offsets
	Renderable bool
	Visible    bool
	// MinY and MaxY bound the uploaded geometry in blocks.
	MinY, MaxY int
}

func (c *Column) Handle() (Handle, bool) { return c.handle, c.hasHandle }

func (c *Column) Dirty() bool { return c.dirty }

// PartSeq returns the sequence of the last applied result for part p.
func (c *Column) PartSeq(p int) uint64 { return c.partSeq[p] }

func (c *Column) reset(wx, wz int) {
	c.WX, c.WZ = wx, wz
	c.Generation = 0
	for i := range c.parts {
		c.parts[i] = meshing.PartMesh{}
	}
	c.partSeq = [world.NumParts]uint64{}
	c.dirty = false
	c.Counts, c.Offsets = Counts{}, Offsets{}
	c.Renderable, c.Visible = false, false
}

// hide takes a column off the render queue without dropping its parts, so it
// can come back once its slot is interior again.
func (c *Column) hide() {
	c.dirty = false
	c.Renderable, c.Visible = false, false
}

// Columns mirrors the grid slot layout. Owned by the coordinator goroutine.
type Columns struct {
	grid     *world.Grid
	renderer Renderer
	frustum  Frustum
	metrics  *metrics.Collectors

	dim   int
	arena []Column
	cols  []*Column

	staging []byte
	visible []*Column
	line    []*Column
}

func New(grid *world.Grid, r Renderer, f Frustum, m *metrics.Collectors) *Columns {
	if f == nil {
		f = AcceptAll{}
	}
	if m == nil {
		m = metrics.New()
	}
	dim := grid.Dim()
	cs := &Columns{
		grid:     grid,
		renderer: r,
		frustum:  f,
		metrics:  m,
		dim:      dim,
		arena:    make([]Column, dim*dim),
		cols:     make([]*Column, dim*dim),
		line:     make([]*Column, dim),
	}
	for x := 0; x < dim; x++ {
		for z := 0; z < dim; z++ {
			c := &cs.arena[x*dim+z]
			c.WX, c.WZ = grid.OriginX()+x, grid.OriginZ()+z
			cs.cols[x*dim+z] = c
		}
	}
	return cs
}

// Column returns the column at slot (x, z), or nil outside the grid.
func (cs *Columns) Column(x, z int) *Column {
	if x < 0 || z < 0 || x >= cs.dim || z >= cs.dim {
		return nil
	}
	return cs.cols[x*cs.dim+z]
}

// Apply stores the part meshes of a finished compile. Results whose sector
// left the grid, moved onto the grid edge or was regenerated are dropped, and
// so are parts already covered by a newer result.
func (cs *Columns) Apply(pc *meshing.Precomp) bool {
	g := cs.grid
	g.RLockSeam()
	s := g.SectorAtWorld(pc.WX, pc.WZ)
	var x, z int
	var gen uint64
	if s != nil {
		x, z, gen = s.X(), s.Z(), s.Generation()
	}
	g.RUnlockSeam()

	if s == nil {
		cs.metrics.MeshDropped.WithLabelValues("out_of_grid").Inc()
		return false
	}
	if gen != pc.Generation {
		cs.metrics.MeshDropped.WithLabelValues("stale").Inc()
		cs.metrics.GenerationStale.Inc()
		return false
	}
	if !cs.interior(x, z) {
		cs.metrics.MeshDropped.WithLabelValues("edge").Inc()
		return false
	}

	c := cs.Column(x, z)
	if c.Generation != pc.Generation {
		c.reset(pc.WX, pc.WZ)
		c.Generation = pc.Generation
	}
	applied := false
	for p := 0; p < world.NumParts; p++ {
		if !pc.HasPart(p) {
			continue
		}
		if pc.Seq < c.partSeq[p] {
			cs.metrics.MeshDropped.WithLabelValues("superseded").Inc()
			continue
		}
		c.parts[p] = pc.Mesh[p]
		c.partSeq[p] = pc.Seq
		applied = true
	}
	if applied {
		c.dirty = true
	}
	return applied
}

// Drain applies every result waiting on ch without blocking.
func (cs *Columns) Drain(ch <-chan *meshing.Precomp) int {
	defer profiling.Track("columns.Drain")()
	n := 0
	for {
		select {
		case pc := <-ch:
			if cs.Apply(pc) {
				n++
			}
		default:
			return n
		}
	}
}

// Compile uploads slot (x, z). Vertices are laid out shader class first, part
// second.
func (cs *Columns) Compile(x, z int) error {
	c := cs.Column(x, z)
	if c == nil {
		return fmt.Errorf("compile column (%d,%d): %w", x, z, world.ErrOutOfBounds)
	}
	c.dirty = false

	var counts Counts
	lo, hi := -1, -1
	for p := range c.parts {
		if c.parts[p].Empty() {
			continue
		}
		if lo < 0 {
			lo = p
		}
		hi = p
		for cls := range c.parts[p].Vertices {
			counts[cls] += len(c.parts[p].Vertices[cls])
		}
	}

	var offsets Offsets
	total := 0
	for cls := range counts {
		offsets[cls] = total
		total += counts[cls]
	}
	c.Counts, c.Offsets = counts, offsets

	if total == 0 {
		c.Renderable, c.Visible = false, false
		cs.metrics.ColumnsEmpty.Inc()
		log.Warnf("column %d,%d has no geometry", c.WX, c.WZ)
		return nil
	}

	size := total * meshing.VertexSize
	if cap(cs.staging) < size {
		cs.staging = make([]byte, size)
	}
	buf := cs.staging[:size]
	off := 0
	for cls := 0; cls < int(registry.NumShaderClasses); cls++ {
		for p := range c.parts {
			for _, v := range c.parts[p].Vertices[cls] {
				v.Put(buf[off:])
				off += meshing.VertexSize
			}
		}
	}

	if !c.hasHandle {
		h, err := cs.renderer.Create()
		if err != nil {
			return fmt.Errorf("create buffer for column %d,%d: %w", c.WX, c.WZ, err)
		}
		c.handle, c.hasHandle = h, true
	}
	if err := cs.renderer.Upload(c.handle, buf, counts, offsets); err != nil {
		c.Renderable = false
		return fmt.Errorf("upload column %d,%d: %w", c.WX, c.WZ, err)
	}
	cs.metrics.UploadBytes.Add(float64(size))
	cs.metrics.ColumnsCompiled.Inc()

	c.MinY, c.MaxY = lo*world.PartHeight, (hi+1)*world.PartHeight
	c.Renderable = true
	c.Visible = cs.test(c)
	return nil
}

func (cs *Columns) test(c *Column) bool {
	wx := float32(c.WX*world.SectorSizeXZ) + world.SectorSizeXZ/2
	wz := float32(c.WZ*world.SectorSizeXZ) + world.SectorSizeXZ/2
	return cs.frustum.TestColumn(wx, wz, float32(c.MinY), float32(c.MaxY-c.MinY), columnRadius)
}

// CompileDirty compiles every column that received new parts.
func (cs *Columns) CompileDirty() (int, error) {
	defer profiling.Track("columns.CompileDirty")()
	n := 0
	var first error
	for x := 0; x < cs.dim; x++ {
		for z := 0; z < cs.dim; z++ {
			if !cs.cols[x*cs.dim+z].dirty {
				continue
			}
			if err := cs.Compile(x, z); err != nil {
				if first == nil {
					first = err
				}
				continue
			}
			n++
		}
	}
	return n, first
}

// Cull re-tests every renderable column against f.
func (cs *Columns) Cull(f Frustum) {
	if f != nil {
		cs.frustum = f
	}
	for _, c := range cs.cols {
		c.Visible = c.Renderable && cs.test(c)
	}
}

// RenderQueue returns the visible columns in slot order. The slice is reused.
func (cs *Columns) RenderQueue() []*Column {
	cs.visible = cs.visible[:0]
	for _, c := range cs.cols {
		if c.Renderable && c.Visible {
			cs.visible = append(cs.visible, c)
		}
	}
	cs.metrics.ColumnsVisible.Set(float64(len(cs.visible)))
	return cs.visible
}

// interior reports whether slot (x, z) has all eight neighbours in the grid.
// Only interior slots are meshed.
func (cs *Columns) interior(x, z int) bool {
	return x > 0 && z > 0 && x < cs.dim-1 && z < cs.dim-1
}

// Shift rotates the columns with the grid. It must follow grid.Rotate so the
// reset leading column takes the new world coordinates. The line that slides
// onto the trailing edge is hidden: edge sectors are never remeshed, so its
// geometry would fall behind edits.
func (cs *Columns) Shift(axis world.Axis, dir int) {
	d := cs.dim
	lead, trail := d-1, 0
	if dir < 0 {
		lead, trail = 0, d-1
	}
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			cs.line[j] = cs.cols[cs.index(axis, i, j)]
		}
		for j := 0; j < d; j++ {
			cs.cols[cs.index(axis, i, j)] = cs.line[((j+dir)%d+d)%d]
		}
		x, z := lead, i
		if axis == world.AxisZ {
			x, z = i, lead
		}
		cs.cols[x*d+z].reset(cs.grid.OriginX()+x, cs.grid.OriginZ()+z)
		cs.cols[cs.index(axis, i, trail)].hide()
	}
}

// index maps line i, position j along axis to a slot.
func (cs *Columns) index(axis world.Axis, i, j int) int {
	if axis == world.AxisX {
		return j*cs.dim + i
	}
	return i*cs.dim + j
}

// Close destroys every buffer.
func (cs *Columns) Close() {
	for _, c := range cs.cols {
		if c.hasHandle {
			cs.renderer.Destroy(c.handle)
			c.hasHandle = false
		}
	}
}
