package meshing

import (
	"sync"

	"seamcraft/internal/world"
)

// Dirtier collects the mesh parts that must be rebuilt after block or light
// changes. A touched cell dirties its own part and the parts above and below
// it, plus every neighbour sector that samples it through its border.
//
// Lock order is the grid seam first, then the Dirtier's own mutex.
type Dirtier struct {
	mu    sync.Mutex
	grid  *world.Grid
	marks map[*world.Sector]uint16
}

func NewDirtier(grid *world.Grid) *Dirtier {
	return &Dirtier{grid: grid, marks: make(map[*world.Sector]uint16)}
}

// partsAround returns the mask of parts that read row y.
func partsAround(y int) uint16 {
	var mask uint16
	for _, yy := range [3]int{y - 1, y, y + 1} {
		if yy < 0 || yy >= world.SectorSizeY {
			continue
		}
		mask |= 1 << (yy / world.PartHeight)
	}
	return mask
}

// Touch implements lighting.TouchSink. Coordinates are sector-local; the
// seam must be held.
func (d *Dirtier) Touch(s *world.Sector, bx, by, bz int) {
	mask := partsAround(by)
	dxs := []int{0}
	dzs := []int{0}
	switch bx {
	case 0:
		dxs = append(dxs, -1)
	case world.SectorSizeXZ - 1:
		dxs = append(dxs, 1)
	}
	switch bz {
	case 0:
		dzs = append(dzs, -1)
	case world.SectorSizeXZ - 1:
		dzs = append(dzs, 1)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, dx := range dxs {
		for _, dz := range dzs {
			t := s
			if dx != 0 || dz != 0 {
				t = d.grid.Sector(s.X()+dx, s.Z()+dz)
			}
			if t != nil {
				d.marks[t] |= mask
			}
		}
	}
}

// MarkSector dirties parts of s directly.
func (d *Dirtier) MarkSector(s *world.Sector, parts uint16) {
	d.mu.Lock()
	d.marks[s] |= parts
	d.mu.Unlock()
}

// Pending returns the number of sectors with outstanding marks.
func (d *Dirtier) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.marks)
}

// Flush submits the collected marks to sched. Sectors that are no longer
// generated are skipped; their full remesh follows installation.
func (d *Dirtier) Flush(sched *Scheduler) int {
	type mark struct {
		x, z  int
		parts uint16
	}

	d.grid.RLockSeam()
	d.mu.Lock()
	out := make([]mark, 0, len(d.marks))
	for s, parts := range d.marks {
		if s.Generated() {
			out = append(out, mark{s.X(), s.Z(), parts})
		}
	}
	clear(d.marks)
	d.mu.Unlock()
	d.grid.RUnlockSeam()

	n := 0
	for _, m := range out {
		if sched.Submit(m.x, m.z, m.parts) {
			n++
		}
	}
	return n
}
