package seamless

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"seamcraft/internal/logging"
	"seamcraft/internal/metrics"
	"seamcraft/internal/profiling"
	"seamcraft/internal/world"
)

var log = logging.New("seamless")

type State uint8

const (
	StateIdle State = iota
	StateShifting
)

func (s State) String() string {
	if s == StateShifting {
		return "shifting"
	}
	return "idle"
}

// Observer is the point the grid recentres on. Pos is in grid-local blocks,
// so it jumps by one sector width on every shift.
type Observer struct {
	Pos mgl32.Vec3
}

// World returns the observer position in world blocks.
func (o *Observer) World(g *world.Grid) mgl32.Vec3 {
	return o.Pos.Add(mgl32.Vec3{
		float32(g.OriginX() * world.SectorSizeXZ), 0, float32(g.OriginZ() * world.SectorSizeXZ),
	})
}

// Shifter is a slot-indexed structure that must follow grid rotations.
type Shifter interface {
	Shift(axis world.Axis, dir int)
}

// Submitter queues mesh recompiles.
type Submitter interface {
	Submit(x, z int, parts uint16) bool
}

// Controller keeps the observer inside the centre sector of the grid.
type Controller struct {
	grid     *world.Grid
	mesh     Submitter
	shifters []Shifter
	metrics  *metrics.Collectors

	state State
	total int
}

func New(grid *world.Grid, mesh Submitter, m *metrics.Collectors, shifters ...Shifter) *Controller {
	if m == nil {
		m = metrics.New()
	}
	return &Controller{grid: grid, mesh: mesh, shifters: shifters, metrics: m}
}

func (c *Controller) State() State { return c.state }

// Shifts returns the number of shifts since creation.
func (c *Controller) Shifts() int { return c.total }

// centre is the grid-local block coordinate of the middle of the window.
func (c *Controller) centre() float32 {
	return float32(c.grid.Dim()*world.SectorSizeXZ) / 2
}

// pending returns the next shift the observer needs, if any.
func (c *Controller) pending(o *Observer) (world.Axis, int, bool) {
	mid := c.centre()
	const width = float32(world.SectorSizeXZ)
	switch {
	case o.Pos.X()-mid > width:
		return world.AxisX, 1, true
	case mid-o.Pos.X() > width:
		return world.AxisX, -1, true
	case o.Pos.Z()-mid > width:
		return world.AxisZ, 1, true
	case mid-o.Pos.Z() > width:
		return world.AxisZ, -1, true
	}
	return 0, 0, false
}

// Run shifts until the observer is within one sector of the centre on both
// axes and returns the number of shifts performed.
func (c *Controller) Run(o *Observer) int {
	defer profiling.Track("seamless.Run")()
	n := 0
	for {
		axis, dir, ok := c.pending(o)
		if !ok {
			return n
		}
		c.shift(o, axis, dir)
		n++
	}
}

func (c *Controller) shift(o *Observer, axis world.Axis, dir int) {
	c.state = StateShifting
	defer func() { c.state = StateIdle }()

	g := c.grid
	g.Exclusive(func() {
		g.Rotate(axis, dir)

		delta := float32(dir * world.SectorSizeXZ)
		if axis == world.AxisX {
			o.Pos[0] -= delta
		} else {
			o.Pos[2] -= delta
		}

		for _, s := range c.shifters {
			s.Shift(axis, dir)
		}

		// The old leading line is interior now and was never meshed.
		line := g.Dim() - 2
		if dir < 0 {
			line = 1
		}
		if c.mesh != nil {
			for i := 0; i < g.Dim(); i++ {
				x, z := line, i
				if axis == world.AxisZ {
					x, z = i, line
				}
				c.mesh.Submit(x, z, world.AllParts)
			}
		}
	})

	c.total++
	c.metrics.Shifts.WithLabelValues(axis.String(), dirLabel(dir)).Inc()
	log.Debugf("shift %s%s, origin now %d,%d", axis, dirLabel(dir), g.OriginX(), g.OriginZ())
}

func dirLabel(dir int) string {
	switch dir {
	case 1:
		return "+"
	case -1:
		return "-"
	}
	return fmt.Sprint(dir)
}
