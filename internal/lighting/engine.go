package lighting

import (
	"seamcraft/internal/profiling"
	"seamcraft/internal/world"
)

// TouchSink receives every cell whose light level changed, in sector-local
// coordinates.
type TouchSink interface {
	Touch(s *world.Sector, bx, by, bz int)
}

type node struct{ x, y, z int32 }

type drop struct {
	x, y, z int32
	level   uint8
}

// Engine floods and removes sky and torch light over grid-local block
// coordinates. Light drops by one per block, passes only through transparent
// cells and only inside sectors whose atmospherics are complete.
//
// Every method expects the seam read-held and the affected 3x3 sector region
// write-locked by the caller. An Engine is not safe for concurrent use.
type Engine struct {
	grid *world.Grid
	info world.BlockInfo
	sink TouchSink

	// quiet suppresses touches inside the sector being flooded from scratch.
	quiet *world.Sector

	queue   []node
	head    int
	removes []drop
	reseed  []node

	changes uint64
}

// NewEngine returns an engine reading block properties from the grid.
func NewEngine(grid *world.Grid, sink TouchSink) *Engine {
	return &Engine{
		grid:    grid,
		info:    grid.Info(),
		sink:    sink,
		queue:   make([]node, 0, 4096),
		removes: make([]drop, 0, 1024),
	}
}

// Changes returns the number of cell light writes since creation.
func (e *Engine) Changes() uint64 { return e.changes }

// cell returns a lit cell, or nil when light may not enter it.
func (e *Engine) cell(x, y, z int) (*world.Sector, *world.Block) {
	s, b := e.grid.Cell(x, y, z)
	if s == nil || !s.Generated() || !s.Atmospherics() {
		return nil, nil
	}
	return s, b
}

// source is the level a cell holds regardless of its neighbours.
func (e *Engine) source(x, y, z int, b *world.Block, ch world.LightChannel) uint8 {
	if ch == world.ChannelTorch {
		return e.info.Emission(b.ID)
	}
	if e.info.IsOpaque(b.ID) {
		return 0
	}
	if fd := e.grid.FlatAt(x, z); fd != nil && y >= int(fd.SkyLevel) {
		return world.MaxLight
	}
	return 0
}

func (e *Engine) set(s *world.Sector, b *world.Block, x, y, z int, ch world.LightChannel, level uint8) {
	b.SetChannel(ch, level)
	e.changes++
	if e.sink != nil && s != e.quiet {
		e.sink.Touch(s, x&15, y, z&15)
	}
}

func (e *Engine) push(x, y, z int) {
	e.queue = append(e.queue, node{int32(x), int32(y), int32(z)})
}

// propagate relaxes the queue outward until no neighbour can be raised.
func (e *Engine) propagate(ch world.LightChannel) {
	for e.head < len(e.queue) {
		n := e.queue[e.head]
		e.head++
		cx, cy, cz := int(n.x), int(n.y), int(n.z)
		_, b := e.cell(cx, cy, cz)
		if b == nil {
			continue
		}
		level := b.Channel(ch)
		if level <= 1 {
			continue
		}
		next := level - 1
		for _, off := range world.FaceOffsets {
			x, y, z := cx+off[0], cy+off[1], cz+off[2]
			s, nb := e.cell(x, y, z)
			if nb == nil || nb.Channel(ch) >= next || e.info.IsOpaque(nb.ID) {
				continue
			}
			e.set(s, nb, x, y, z, ch, next)
			e.push(x, y, z)
		}
	}
	e.queue = e.queue[:0]
	e.head = 0
}

// FloodOutof raises (x, y, z) to level and pushes light into its surroundings.
func (e *Engine) FloodOutof(x, y, z int, ch world.LightChannel, level uint8) {
	defer profiling.Track("lighting.FloodOutof")()
	s, b := e.cell(x, y, z)
	if b == nil {
		return
	}
	if b.Channel(ch) < level {
		e.set(s, b, x, y, z, ch, level)
	}
	e.push(x, y, z)
	e.propagate(ch)
}

// FloodInto pulls light into a cell that just became transparent and floods
// outward from it.
func (e *Engine) FloodInto(x, y, z int, ch world.LightChannel) {
	defer profiling.Track("lighting.FloodInto")()
	s, b := e.cell(x, y, z)
	if b == nil {
		return
	}
	level := e.source(x, y, z, b, ch)
	if !e.info.IsOpaque(b.ID) {
		for _, off := range world.FaceOffsets {
			_, nb := e.cell(x+off[0], y+off[1], z+off[2])
			if nb != nil && nb.Channel(ch) > level+1 {
				level = nb.Channel(ch) - 1
			}
		}
	}
	if level > b.Channel(ch) {
		e.set(s, b, x, y, z, ch, level)
	}
	e.push(x, y, z)
	e.propagate(ch)
}

// seed zeroes a cell as the start of a removal.
func (e *Engine) seed(x, y, z int, ch world.LightChannel, old uint8) {
	s, b := e.cell(x, y, z)
	if b == nil {
		return
	}
	old = max(old, b.Channel(ch))
	if b.Channel(ch) != 0 {
		e.set(s, b, x, y, z, ch, 0)
	}
	e.removes = append(e.removes, drop{int32(x), int32(y), int32(z), old})
	e.reseed = append(e.reseed, node{int32(x), int32(y), int32(z)})
}

// remove runs the two-phase removal over the seeded cells: zero every cell
// whose level could only have come through a removed cell, then reflood from
// the still lit boundary and from sources that lost their level.
func (e *Engine) remove(ch world.LightChannel) {
	for i := 0; i < len(e.removes); i++ {
		r := e.removes[i]
		rx, ry, rz := int(r.x), int(r.y), int(r.z)
		for _, off := range world.FaceOffsets {
			x, y, z := rx+off[0], ry+off[1], rz+off[2]
			s, nb := e.cell(x, y, z)
			if nb == nil {
				continue
			}
			level := nb.Channel(ch)
			if level == 0 {
				continue
			}
			if level >= r.level || e.info.IsOpaque(nb.ID) {
				e.push(x, y, z)
				continue
			}
			e.set(s, nb, x, y, z, ch, 0)
			e.removes = append(e.removes, drop{int32(x), int32(y), int32(z), level})
			if e.source(x, y, z, nb, ch) > 0 {
				e.reseed = append(e.reseed, node{int32(x), int32(y), int32(z)})
			}
		}
	}
	for _, n := range e.reseed {
		x, y, z := int(n.x), int(n.y), int(n.z)
		s, b := e.cell(x, y, z)
		if b == nil {
			continue
		}
		if src := e.source(x, y, z, b, ch); src > b.Channel(ch) {
			e.set(s, b, x, y, z, ch, src)
		}
		e.push(x, y, z)
	}
	e.removes = e.removes[:0]
	e.reseed = e.reseed[:0]
	e.propagate(ch)
}

// RemoveLight removes the torch light of an emitter that used to sit at
// (x, y, z) and refloods the area.
func (e *Engine) RemoveLight(old world.Block, x, y, z int) {
	defer profiling.Track("lighting.RemoveLight")()
	e.seed(x, y, z, world.ChannelTorch, e.info.Emission(old.ID))
	e.remove(world.ChannelTorch)
}

// DeferredRemove removes light of ch from the vertical run y0..y1 (inclusive)
// of a sector column, then refloods.
func (e *Engine) DeferredRemove(s *world.Sector, bx, y0, y1, bz int, ch world.LightChannel) {
	defer profiling.Track("lighting.DeferredRemove")()
	x, z := s.X()*world.SectorSizeXZ+bx, s.Z()*world.SectorSizeXZ+bz
	for y := max(y0, 0); y <= min(y1, world.SectorSizeY-1); y++ {
		e.seed(x, y, z, ch, 0)
	}
	e.remove(ch)
}

// SkyBlocked updates sky light after an opaque block appeared at a sector
// cell. A block at or above the column's sky level raises it.
func (e *Engine) SkyBlocked(s *world.Sector, bx, by, bz int) {
	fd := e.grid.Flat(s.X(), s.Z()).At(bx, bz)
	old := int(fd.SkyLevel)
	if by < old {
		e.DeferredRemove(s, bx, by, by, bz, world.ChannelSky)
		return
	}
	fd.SkyLevel = int16(by + 1)
	e.DeferredRemove(s, bx, old, by, bz, world.ChannelSky)
}

// SkyrayDownwards refreshes a column after its topmost opaque block at by was
// removed. The sky level drops to the next opaque block below, the uncovered
// run is set to full sky and flooded. It reports false when by was not the top.
func (e *Engine) SkyrayDownwards(s *world.Sector, bx, by, bz int) bool {
	defer profiling.Track("lighting.SkyrayDownwards")()
	fd := e.grid.Flat(s.X(), s.Z()).At(bx, bz)
	old := int(fd.SkyLevel)
	if by != old-1 {
		return false
	}
	top := s.ColumnSkyLevel(bx, bz, by)
	fd.SkyLevel = int16(top)
	if int(fd.GroundLevel) > top {
		fd.GroundLevel = int16(top)
	}

	x, z := s.X()*world.SectorSizeXZ+bx, s.Z()*world.SectorSizeXZ+bz
	for y := top; y < old; y++ {
		cs, b := e.cell(x, y, z)
		if b == nil {
			continue
		}
		if b.SkyLight() < world.MaxLight {
			e.set(cs, b, x, y, z, world.ChannelSky, world.MaxLight)
		}
		e.push(x, y, z)
	}
	e.propagate(world.ChannelSky)
	return true
}

// AtmosphericFlood computes the initial light of a freshly generated sector:
// sky rays per column, emitters, light pulled in from lit neighbours, and one
// flood that may spill back into them. Touches inside the sector itself are
// not reported; the caller remeshes it whole.
func (e *Engine) AtmosphericFlood(s *world.Sector) {
	defer profiling.Track("lighting.AtmosphericFlood")()
	e.quiet = s
	defer func() { e.quiet = nil }()
	s.SetAtmospherics(true)

	flat := e.grid.Flat(s.X(), s.Z())
	x0, z0 := s.X()*world.SectorSizeXZ, s.Z()*world.SectorSizeXZ
	e.reseed = e.reseed[:0]

	for bx := 0; bx < world.SectorSizeXZ; bx++ {
		for bz := 0; bz < world.SectorSizeXZ; bz++ {
			x, z := x0+bx, z0+bz
			sky := int(flat.At(bx, bz).SkyLevel)
			for y := 0; y < world.SectorSizeY; y++ {
				b := s.Ptr(bx, y, bz)
				var light uint8
				if y >= sky && !e.info.IsOpaque(b.ID) {
					light = world.MaxLight
				}
				if em := e.info.Emission(b.ID); em > 0 {
					light |= em << 4
					e.reseed = append(e.reseed, node{int32(x), int32(y), int32(z)})
				}
				b.Light = light
			}
			// Only sky cells beside a lower neighbouring sky level can spread.
			reach := sky
			for _, off := range world.FaceOffsets {
				if off[1] != 0 {
					continue
				}
				if fd := e.grid.FlatAt(x+off[0], z+off[2]); fd != nil {
					reach = max(reach, int(fd.SkyLevel))
				}
			}
			for y := sky; y < min(reach, world.SectorSizeY); y++ {
				e.push(x, y, z)
			}
		}
	}
	e.pullBorders(s, world.ChannelSky)
	e.propagate(world.ChannelSky)

	e.queue = append(e.queue, e.reseed...)
	e.reseed = e.reseed[:0]
	e.pullBorders(s, world.ChannelTorch)
	e.propagate(world.ChannelTorch)
}

// pullBorders queues the lit cells of the four neighbour sectors that face s.
func (e *Engine) pullBorders(s *world.Sector, ch world.LightChannel) {
	x0, z0 := s.X()*world.SectorSizeXZ, s.Z()*world.SectorSizeXZ
	for _, side := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
		n := e.grid.Sector(s.X()+side[0], s.Z()+side[1])
		if n == nil || !n.Generated() || !n.Atmospherics() {
			continue
		}
		for i := 0; i < world.SectorSizeXZ; i++ {
			var x, z int
			switch {
			case side[0] < 0:
				x, z = x0-1, z0+i
			case side[0] > 0:
				x, z = x0+world.SectorSizeXZ, z0+i
			case side[1] < 0:
				x, z = x0+i, z0-1
			default:
				x, z = x0+i, z0+world.SectorSizeXZ
			}
			for y := 0; y < world.SectorSizeY; y++ {
				if n.At(x&15, y, z&15).Channel(ch) > 1 {
					e.push(x, y, z)
				}
			}
		}
	}
}

// Shift removes the light that reached the new trailing line of the grid from
// the sectors a rotation just evicted, then refloods from what is left. It
// implements the shift hook of the seamless controller and must run right
// after grid.Rotate with the seam held exclusively.
func (e *Engine) Shift(axis world.Axis, dir int) {
	defer profiling.Track("lighting.Shift")()
	d := e.grid.Dim()
	trail, face := 0, 0
	if dir < 0 {
		trail, face = d-1, world.SectorSizeXZ-1
	}
	for _, ch := range [...]world.LightChannel{world.ChannelSky, world.ChannelTorch} {
		for i := 0; i < d; i++ {
			sx, sz := trail, i
			if axis == world.AxisZ {
				sx, sz = i, trail
			}
			s := e.grid.Sector(sx, sz)
			if s == nil || !s.Generated() || !s.Atmospherics() {
				continue
			}
			for j := 0; j < world.SectorSizeXZ; j++ {
				bx, bz := face, j
				if axis == world.AxisZ {
					bx, bz = j, face
				}
				x, z := sx*world.SectorSizeXZ+bx, sz*world.SectorSizeXZ+bz
				for y := 0; y < world.SectorSizeY; y++ {
					if s.At(bx, y, bz).Channel(ch) > 0 {
						e.seed(x, y, z, ch, 0)
					}
				}
			}
		}
		e.remove(ch)
	}
}
