package meshing

import (
	"fmt"
	"sort"
	"sync"

	"seamcraft/internal/metrics"
	"seamcraft/internal/profiling"
	"seamcraft/internal/world"
)

// Lighter computes the initial light of a sector. The caller holds the seam
// and the sector's 3x3 region.
type Lighter interface {
	AtmosphericFlood(s *world.Sector)
}

type SchedState uint8

const (
	StateIdle SchedState = iota
	StateScanning
	StateDispatching
)

func (s SchedState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateDispatching:
		return "dispatching"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

type entry struct {
	x, z  int
	parts uint16
}

// Scheduler keeps the mesh request queue and feeds the worker pool. Requests
// for one sector coalesce into a single entry carrying the union of parts.
// Lock order is the grid seam first, then the scheduler mutex.
type Scheduler struct {
	mu      sync.Mutex
	grid    *world.Grid
	light   Lighter
	pool    *WorkerPool
	metrics *metrics.Collectors

	queue  []entry
	state  SchedState
	seq    uint64
	fx, fz int
}

// NewScheduler creates a scheduler focused on the grid centre.
func NewScheduler(grid *world.Grid, light Lighter, pool *WorkerPool, m *metrics.Collectors) *Scheduler {
	if m == nil {
		m = metrics.New()
	}
	c := grid.Dim() / 2
	return &Scheduler{
		grid:    grid,
		light:   light,
		pool:    pool,
		metrics: m,
		fx:      c,
		fz:      c,
	}
}

// interior reports whether slot (x, z) can ever have all eight neighbours.
func (sc *Scheduler) interior(x, z int) bool {
	d := sc.grid.Dim()
	return x > 0 && z > 0 && x < d-1 && z < d-1
}

// Submit queues parts of slot (x, z) for recompilation. It returns false when
// nothing new was queued.
func (sc *Scheduler) Submit(x, z int, parts uint16) bool {
	if parts == 0 {
		return false
	}
	if !sc.interior(x, z) {
		sc.metrics.MeshDropped.WithLabelValues("edge").Inc()
		return false
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	ok := sc.add(x, z, parts)
	if ok {
		sc.metrics.MeshSubmitted.Inc()
	} else {
		sc.metrics.MeshCoalesced.Inc()
	}
	sc.metrics.MeshQueueLength.Set(float64(len(sc.queue)))
	return ok
}

func (sc *Scheduler) add(x, z int, parts uint16) bool {
	for i := range sc.queue {
		e := &sc.queue[i]
		if e.x != x || e.z != z {
			continue
		}
		if e.parts|parts == e.parts {
			return false
		}
		e.parts |= parts
		return true
	}
	sc.queue = append(sc.queue, entry{x: x, z: z, parts: parts})
	return true
}

// Pending returns the queued mask for slot (x, z).
func (sc *Scheduler) Pending(x, z int) uint16 {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	for _, e := range sc.queue {
		if e.x == x && e.z == z {
			return e.parts
		}
	}
	return 0
}

func (sc *Scheduler) Len() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.queue)
}

func (sc *Scheduler) State() SchedState {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.state
}

// SetFocus sets the slot that is served first.
func (sc *Scheduler) SetFocus(x, z int) {
	sc.mu.Lock()
	sc.fx, sc.fz = x, z
	sc.mu.Unlock()
}

func (sc *Scheduler) Pool() *WorkerPool { return sc.pool }

func (sc *Scheduler) distance(e entry) int {
	dx, dz := e.x-sc.fx, e.z-sc.fz
	return dx*dx + dz*dz
}

// RunOnce dispatches the closest ready entry. It returns false when no
// worker slot is free or no entry is ready.
func (sc *Scheduler) RunOnce() bool {
	defer profiling.Track("meshing.RunOnce")()
	g := sc.grid
	g.RLockSeam()
	defer g.RUnlockSeam()
	sc.mu.Lock()
	defer sc.mu.Unlock()
	defer func() {
		sc.state = StateIdle
		sc.metrics.MeshQueueLength.Set(float64(len(sc.queue)))
		sc.metrics.MeshInFlight.Set(float64(sc.pool.InFlight()))
	}()

	if len(sc.queue) == 0 {
		return false
	}
	if !sc.pool.TryAcquire() {
		sc.metrics.MeshBackpressure.Inc()
		return false
	}

	sc.state = StateScanning
	sort.SliceStable(sc.queue, func(i, j int) bool {
		return sc.distance(sc.queue[i]) < sc.distance(sc.queue[j])
	})

	var pc *Precomp
	for i := 0; i < len(sc.queue); {
		e := sc.queue[i]
		s := g.Sector(e.x, e.z)
		if s == nil || !s.Generated() {
			// Installation submits a full remesh.
			sc.metrics.MeshDropped.WithLabelValues("not_generated").Inc()
			sc.queue = append(sc.queue[:i], sc.queue[i+1:]...)
			continue
		}
		if !g.NeighborsGenerated(e.x, e.z) {
			i++
			continue
		}
		sc.state = StateDispatching
		if sc.lightAround(e.x, e.z) {
			e.parts = world.AllParts
		}
		sc.seq++
		pc = Capture(g, e.x, e.z, e.parts, sc.seq)
		sc.queue = append(sc.queue[:i], sc.queue[i+1:]...)
		break
	}

	if pc == nil {
		sc.pool.Release()
		return false
	}
	sc.pool.Submit(pc)
	sc.metrics.MeshDispatched.Inc()
	return true
}

// lightAround floods every unlit sector of the 3x3 block around (x, z).
// Flooded neighbours are queued whole. It reports whether the centre itself
// was flooded.
func (sc *Scheduler) lightAround(x, z int) bool {
	g := sc.grid
	centre := false
	for dx := -1; dx <= 1; dx++ {
		for dz := -1; dz <= 1; dz++ {
			n := g.Sector(x+dx, z+dz)
			if n == nil || n.Atmospherics() {
				continue
			}
			unlock := g.LockRegion(n.X(), n.Z(), 1)
			sc.light.AtmosphericFlood(n)
			unlock()
			sc.metrics.AtmosphericFloods.Inc()
			if dx == 0 && dz == 0 {
				centre = true
			} else if sc.interior(n.X(), n.Z()) {
				sc.add(n.X(), n.Z(), world.AllParts)
			}
		}
	}
	return centre
}

// Shift re-indexes queued entries after the grid rotated. Entries that leave
// the interior are dropped.
func (sc *Scheduler) Shift(axis world.Axis, dir int) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	kept := sc.queue[:0]
	for _, e := range sc.queue {
		if axis == world.AxisX {
			e.x -= dir
		} else {
			e.z -= dir
		}
		if !sc.interior(e.x, e.z) {
			sc.metrics.MeshDropped.WithLabelValues("shifted_out").Inc()
			continue
		}
		kept = append(kept, e)
	}
	sc.queue = kept
	sc.metrics.MeshQueueLength.Set(float64(len(sc.queue)))
}
