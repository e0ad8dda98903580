package world

import (
	"fmt"
	"sync"
)

// Axis names one horizontal grid axis.
type Axis uint8

const (
	AxisX Axis = iota
	AxisZ
)

func (a Axis) String() string {
	if a == AxisX {
		return "x"
	}
	return "z"
}

// GridOptions configures a new grid.
type GridOptions struct {
	Dim  int
	Info BlockInfo
	// OriginX/OriginZ are the world sector coordinates of slot (0, 0).
	OriginX, OriginZ int
	// Persist enables needsSave tracking on sector writes.
	Persist bool
}

// Grid is the fixed ring of sectors around the observer. Slot (x, z) holds the
// sector at world sector (originX+x, originZ+z). Rotation permutes slots; the
// sector and flatland arenas are never reallocated.
type Grid struct {
	seam      sync.RWMutex
	exclusive bool

	dim              int
	originX, originZ int

	arena []Sector
	slots []*Sector

	flatArena []Flatland
	flats     []*Flatland

	payload [][SectorVolume]Block

	info     BlockInfo
	listener DirtyListener

	rotated []*Sector
}

// NewGrid allocates every sector and flatland of a dim x dim grid.
func NewGrid(opts GridOptions) *Grid {
	dim := opts.Dim
	if dim < 3 {
		dim = 3
	}
	n := dim * dim
	g := &Grid{
		dim:       dim,
		originX:   opts.OriginX,
		originZ:   opts.OriginZ,
		arena:     make([]Sector, n),
		slots:     make([]*Sector, n),
		flatArena: make([]Flatland, n),
		flats:     make([]*Flatland, n),
		payload:   make([][SectorVolume]Block, n),
		info:      opts.Info,
		rotated:   make([]*Sector, 0, dim),
	}
	for x := 0; x < dim; x++ {
		for z := 0; z < dim; z++ {
			i := g.slot(x, z)
			s := &g.arena[i]
			s.blocks = &g.payload[i]
			s.info = opts.Info
			s.persist = opts.Persist
			s.x, s.z = x, z
			s.wx, s.wz = g.originX+x, g.originZ+z
			g.slots[i] = s
			g.flats[i] = &g.flatArena[i]
		}
	}
	return g
}

func (g *Grid) slot(x, z int) int { return x*g.dim + z }

func (g *Grid) Dim() int { return g.dim }

// OriginX returns the world sector X of slot column 0.
func (g *Grid) OriginX() int { return g.originX }

// OriginZ returns the world sector Z of slot row 0.
func (g *Grid) OriginZ() int { return g.originZ }

func (g *Grid) Info() BlockInfo { return g.info }

// SetListener installs the persistence hook.
func (g *Grid) SetListener(l DirtyListener) { g.listener = l }

func (g *Grid) Listener() DirtyListener { return g.listener }

// InGrid reports whether (x, z) is a valid slot.
func (g *Grid) InGrid(x, z int) bool {
	return x >= 0 && x < g.dim && z >= 0 && z < g.dim
}

// Sector returns the sector in slot (x, z), nil outside the grid.
func (g *Grid) Sector(x, z int) *Sector {
	if !g.InGrid(x, z) {
		return nil
	}
	return g.slots[g.slot(x, z)]
}

// Flat returns the flatland of slot (x, z), nil outside the grid.
func (g *Grid) Flat(x, z int) *Flatland {
	if !g.InGrid(x, z) {
		return nil
	}
	return g.flats[g.slot(x, z)]
}

// SectorAtWorld returns the sector holding world sector (wx, wz) if it is
// inside the window.
func (g *Grid) SectorAtWorld(wx, wz int) *Sector {
	return g.Sector(wx-g.originX, wz-g.originZ)
}

// WorldToLocal converts absolute world block X/Z into grid-local block
// coordinates.
func (g *Grid) WorldToLocal(wx, wz int) (int, int) {
	return wx - g.originX*SectorSizeXZ, wz - g.originZ*SectorSizeXZ
}

// LocalToWorld converts grid-local block X/Z into absolute world coordinates.
func (g *Grid) LocalToWorld(bx, bz int) (int, int) {
	return bx + g.originX*SectorSizeXZ, bz + g.originZ*SectorSizeXZ
}

// Resolve maps grid-local block coordinates to a sector and local cell.
func (g *Grid) Resolve(bx, by, bz int) (*Sector, int, int, int, error) {
	if by < 0 || by >= SectorSizeY {
		return nil, 0, 0, 0, fmt.Errorf("resolve %d,%d,%d: %w", bx, by, bz, ErrOutOfBounds)
	}
	s := g.Sector(bx>>4, bz>>4)
	if s == nil {
		return nil, 0, 0, 0, fmt.Errorf("resolve %d,%d,%d: %w", bx, by, bz, ErrOutOfBounds)
	}
	return s, bx & 15, by, bz & 15, nil
}

// ResolveWorld maps absolute world block coordinates.
func (g *Grid) ResolveWorld(wx, wy, wz int) (*Sector, int, int, int, error) {
	bx, bz := g.WorldToLocal(wx, wz)
	return g.Resolve(bx, wy, bz)
}

// Cell returns the grid-local cell and its sector. It returns nil when the
// position falls outside the grid or the vertical range.
func (g *Grid) Cell(bx, by, bz int) (*Sector, *Block) {
	if by < 0 || by >= SectorSizeY || bx < 0 || bz < 0 {
		return nil, nil
	}
	x, z := bx>>4, bz>>4
	if x >= g.dim || z >= g.dim {
		return nil, nil
	}
	s := g.slots[g.slot(x, z)]
	return s, s.Ptr(bx&15, by, bz&15)
}

// FlatAt returns the flatland entry of a grid-local block column.
func (g *Grid) FlatAt(bx, bz int) *FlatData {
	f := g.Flat(bx>>4, bz>>4)
	if f == nil || bx < 0 || bz < 0 {
		return nil
	}
	return f.At(bx&15, bz&15)
}

// NeighborsGenerated reports whether the sector at (x, z) and its eight
// neighbours are all generated. Grid edges never qualify.
func (g *Grid) NeighborsGenerated(x, z int) bool {
	for dx := -1; dx <= 1; dx++ {
		for dz := -1; dz <= 1; dz++ {
			s := g.Sector(x+dx, z+dz)
			if s == nil || !s.Generated() {
				return false
			}
		}
	}
	return true
}

// LockSeam takes the grid-wide exclusive lock.
func (g *Grid) LockSeam() {
	g.seam.Lock()
	g.exclusive = true
}

func (g *Grid) UnlockSeam() {
	g.exclusive = false
	g.seam.Unlock()
}

func (g *Grid) RLockSeam()   { g.seam.RLock() }
func (g *Grid) RUnlockSeam() { g.seam.RUnlock() }

// Exclusive runs fn with the seam held exclusively.
func (g *Grid) Exclusive(fn func()) {
	g.LockSeam()
	defer g.UnlockSeam()
	fn()
}

// regionSectors collects the clamped (2r+1)^2 neighbourhood in ascending slot
// order, which is the lock order.
func (g *Grid) regionSectors(x, z, r int) []*Sector {
	out := make([]*Sector, 0, (2*r+1)*(2*r+1))
	for sx := max(x-r, 0); sx <= min(x+r, g.dim-1); sx++ {
		for sz := max(z-r, 0); sz <= min(z+r, g.dim-1); sz++ {
			out = append(out, g.slots[g.slot(sx, sz)])
		}
	}
	return out
}

// LockRegion write-locks the neighbourhood of radius r around (x, z) and
// returns the matching unlock. The seam must be held.
func (g *Grid) LockRegion(x, z, r int) func() {
	ss := g.regionSectors(x, z, r)
	for _, s := range ss {
		s.mu.Lock()
	}
	return func() {
		for i := len(ss) - 1; i >= 0; i-- {
			ss[i].mu.Unlock()
		}
	}
}

// RLockRegion read-locks the neighbourhood of radius r around (x, z).
func (g *Grid) RLockRegion(x, z, r int) func() {
	ss := g.regionSectors(x, z, r)
	for _, s := range ss {
		s.mu.RLock()
	}
	return func() {
		for i := len(ss) - 1; i >= 0; i-- {
			ss[i].mu.RUnlock()
		}
	}
}

// Rotate shifts the window one sector along axis. dir +1 means the observer
// moved towards +axis: every slot takes the sector of its higher neighbour,
// and the sector leaving slot 0 is re-attached at slot dim-1. dir -1 is the
// mirror. Re-attached sectors are invalidated and returned. The caller must
// hold the seam exclusively. The returned slice is reused by the next call.
func (g *Grid) Rotate(axis Axis, dir int) []*Sector {
	Invariant(g.exclusive, "grid rotated without the exclusive seam")
	Invariant(dir == 1 || dir == -1, "rotate dir %d", dir)

	n := g.dim
	g.rotated = g.rotated[:0]
	if axis == AxisX {
		g.originX += dir
	} else {
		g.originZ += dir
	}

	for line := 0; line < n; line++ {
		at := func(i int) int {
			if axis == AxisX {
				return g.slot(i, line)
			}
			return g.slot(line, i)
		}
		var s *Sector
		var f *Flatland
		if dir > 0 {
			s, f = g.slots[at(0)], g.flats[at(0)]
			for i := 0; i < n-1; i++ {
				g.slots[at(i)] = g.slots[at(i+1)]
				g.flats[at(i)] = g.flats[at(i+1)]
			}
			g.slots[at(n-1)], g.flats[at(n-1)] = s, f
		} else {
			s, f = g.slots[at(n-1)], g.flats[at(n-1)]
			for i := n - 1; i > 0; i-- {
				g.slots[at(i)] = g.slots[at(i-1)]
				g.flats[at(i)] = g.flats[at(i-1)]
			}
			g.slots[at(0)], g.flats[at(0)] = s, f
		}

		if s.needsSave && g.listener != nil {
			g.listener.OnSectorEvict(s, f)
		}
		f.Reset()
		g.rotated = append(g.rotated, s)
	}

	for x := 0; x < n; x++ {
		for z := 0; z < n; z++ {
			s := g.slots[g.slot(x, z)]
			s.x, s.z = x, z
		}
	}
	for _, s := range g.rotated {
		s.Invalidate(g.originX+s.x, g.originZ+s.z)
	}
	return g.rotated
}

// Verify checks that every slot's sector knows its own position and world
// coordinates.
func (g *Grid) Verify() error {
	for x := 0; x < g.dim; x++ {
		for z := 0; z < g.dim; z++ {
			s := g.slots[g.slot(x, z)]
			if s.x != x || s.z != z {
				return fmt.Errorf("slot (%d,%d) holds sector claiming (%d,%d)", x, z, s.x, s.z)
			}
			if s.wx != g.originX+x || s.wz != g.originZ+z {
				return fmt.Errorf("slot (%d,%d) holds world sector (%d,%d), want (%d,%d)",
					x, z, s.wx, s.wz, g.originX+x, g.originZ+z)
			}
		}
	}
	return nil
}
