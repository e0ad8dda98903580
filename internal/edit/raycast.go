package edit

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"seamcraft/internal/profiling"
	"seamcraft/internal/world"
)

const (
	MinReach = 0.1
	MaxReach = 8.0

	rayStep = float32(0.02)
)

// Hit is the result of Pick. Cells are world block coordinates; a block
// occupies [x, x+1) on each axis.
type Hit struct {
	Cell     [3]int
	Adjacent [3]int
	Block    world.Block
	Distance float32
	Hit      bool
}

// Pick marches a ray from origin along dir and returns the first non-air
// cell within maxDist. Adjacent is the last empty cell before it, the target
// for a placement. Cells outside the grid or in ungenerated sectors stop the
// ray.
func (e *Editor) Pick(origin, dir mgl32.Vec3, maxDist float32) Hit {
	defer profiling.Track("edit.Pick")()
	if dir.Len() == 0 {
		return Hit{}
	}
	dir = dir.Normalize()
	g := e.grid
	g.RLockSeam()
	defer g.RUnlockSeam()

	prev := cellOf(origin)
	steps := int(maxDist / rayStep)
	for i := 0; i <= steps; i++ {
		dist := float32(i) * rayStep
		if dist < MinReach {
			continue
		}
		c := cellOf(origin.Add(dir.Mul(dist)))
		if c == prev && i > 0 {
			continue
		}
		if c[1] >= world.SectorSizeY {
			prev = c
			continue
		}
		s, bx, by, bz, err := g.ResolveWorld(c[0], c[1], c[2])
		if err != nil || !s.Generated() {
			return Hit{}
		}
		s.RLock()
		b := s.At(bx, by, bz)
		s.RUnlock()
		if !b.IsAir() {
			return Hit{Cell: c, Adjacent: prev, Block: b, Distance: dist, Hit: true}
		}
		prev = c
	}
	return Hit{}
}

func cellOf(p mgl32.Vec3) [3]int {
	return [3]int{
		int(math.Floor(float64(p.X()))),
		int(math.Floor(float64(p.Y()))),
		int(math.Floor(float64(p.Z()))),
	}
}
