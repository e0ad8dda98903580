package world

import (
	"runtime"
	"sync"

	"seamcraft/internal/profiling"
)

type genJob struct {
	wx, wz     int
	generation uint64
}

type genResult struct {
	job    genJob
	data   *GenData
	loaded bool
}

// StreamerStats counts installs since the last Drain.
type StreamerStats struct {
	Installed int
	Loaded    int
	Stale     int
}

// Streamer generates sectors off the coordinator goroutine. Workers fill
// pooled buffers; Drain installs finished buffers into the grid.
type Streamer struct {
	jobs    chan genJob
	results chan genResult

	pending    map[[2]int]struct{}
	pendingMu  sync.Mutex
	maxPending int

	buffers sync.Pool
	wg      sync.WaitGroup

	grid   *Grid
	gen    Generator
	loader SectorLoader
}

// StreamerOptions tunes the worker pool.
type StreamerOptions struct {
	Workers    int
	MaxPending int
	Loader     SectorLoader
}

// NewStreamer starts the generation workers.
func NewStreamer(grid *Grid, gen Generator, opts StreamerOptions) *Streamer {
	workers := opts.Workers
	if workers <= 0 {
		workers = max(runtime.NumCPU()-1, 1)
	}
	maxPending := opts.MaxPending
	if maxPending <= 0 {
		maxPending = grid.Dim() * grid.Dim()
	}
	st := &Streamer{
		jobs:       make(chan genJob, maxPending),
		results:    make(chan genResult, maxPending),
		pending:    make(map[[2]int]struct{}),
		maxPending: maxPending,
		grid:       grid,
		gen:        gen,
		loader:     opts.Loader,
	}
	st.buffers.New = func() any { return NewGenData() }

	for i := 0; i < workers; i++ {
		st.wg.Add(1)
		go st.worker()
	}
	return st
}

// Close stops the workers and waits for them to exit.
func (st *Streamer) Close() {
	close(st.jobs)
	st.wg.Wait()
}

func (st *Streamer) worker() {
	defer st.wg.Done()
	for job := range st.jobs {
		data := st.buffers.Get().(*GenData)
		loaded := st.produce(job, data)
		st.results <- genResult{job: job, data: data, loaded: loaded}
	}
}

// produce fills data from persistence when possible, otherwise from the
// generator.
func (st *Streamer) produce(job genJob, data *GenData) bool {
	data.Reset(job.wx, job.wz)
	if st.loader != nil {
		ok, err := st.loader.LoadSector(job.wx, job.wz, data)
		if err != nil {
			log.Warnf("load sector (%d,%d): %v, regenerating", job.wx, job.wz, err)
		} else if ok {
			return true
		}
		data.Reset(job.wx, job.wz)
	}
	st.gen.Generate(data)
	return false
}

// Pending returns the number of requested but not yet installed sectors.
func (st *Streamer) Pending() int {
	st.pendingMu.Lock()
	defer st.pendingMu.Unlock()
	return len(st.pending)
}

// RequestAround queues ungenerated sectors in rings around slot (cx, cz),
// closest first, up to budget requests.
func (st *Streamer) RequestAround(cx, cz, budget int) int {
	defer profiling.Track("world.RequestAround")()
	g := st.grid
	g.RLockSeam()
	defer g.RUnlockSeam()

	pushed := 0
	radius := g.Dim()
	for r := 0; r <= radius && pushed < budget; r++ {
		if r == 0 {
			pushed += st.request(cx, cz)
			continue
		}
		for x := cx - r; x <= cx+r && pushed < budget; x++ {
			pushed += st.request(x, cz-r)
			pushed += st.request(x, cz+r)
		}
		for z := cz - r + 1; z <= cz+r-1 && pushed < budget; z++ {
			pushed += st.request(cx-r, z)
			pushed += st.request(cx+r, z)
		}
	}
	return pushed
}

// request marks a sector as generating and enqueues its job. It rolls back
// when the pending cap or queue is full.
func (st *Streamer) request(x, z int) int {
	s := st.grid.Sector(x, z)
	if s == nil {
		return 0
	}
	s.Lock()
	defer s.Unlock()
	if s.progress != ProgNeedGen {
		return 0
	}

	key := [2]int{s.wx, s.wz}
	st.pendingMu.Lock()
	if _, ok := st.pending[key]; ok || len(st.pending) >= st.maxPending {
		st.pendingMu.Unlock()
		return 0
	}
	st.pending[key] = struct{}{}
	st.pendingMu.Unlock()

	job := genJob{wx: s.wx, wz: s.wz, generation: s.Generation()}
	select {
	case st.jobs <- job:
		s.progress = ProgGenerating
		return 1
	default:
		st.pendingMu.Lock()
		delete(st.pending, key)
		st.pendingMu.Unlock()
		return 0
	}
}

// Drain installs every finished buffer without blocking. onReady runs for each
// installed sector after its locks are released.
func (st *Streamer) Drain(onReady func(s *Sector)) StreamerStats {
	defer profiling.Track("world.Drain")()
	var stats StreamerStats
	var ready []*Sector
	st.grid.RLockSeam()
	for {
		var res genResult
		select {
		case res = <-st.results:
		default:
			st.grid.RUnlockSeam()
			if onReady != nil {
				for _, s := range ready {
					onReady(s)
				}
			}
			return stats
		}

		st.pendingMu.Lock()
		delete(st.pending, [2]int{res.job.wx, res.job.wz})
		st.pendingMu.Unlock()

		if s := st.install(res); s != nil {
			stats.Installed++
			if res.loaded {
				stats.Loaded++
			}
			ready = append(ready, s)
		} else {
			stats.Stale++
		}
		st.buffers.Put(res.data)
	}
}

// install copies a result into its sector unless the slot moved on since the
// job was queued. The seam must be read-held.
func (st *Streamer) install(res genResult) *Sector {
	g := st.grid
	s := g.SectorAtWorld(res.job.wx, res.job.wz)
	if s == nil {
		return nil
	}
	unlock := g.LockRegion(s.x, s.z, 0)
	defer unlock()
	if s.Generation() != res.job.generation || s.progress != ProgGenerating {
		return nil
	}
	s.install(res.data)
	flat := g.Flat(s.x, s.z)
	*flat = res.data.Flat
	flat.RecalcSkyLevels(s.blocks, g.info)
	if s.needsSave && g.listener != nil {
		g.listener.OnSectorDirty(s)
	}
	return s
}

// GenerateSync generates slot (x, z) on the calling goroutine.
func (st *Streamer) GenerateSync(x, z int) *Sector {
	g := st.grid
	g.RLockSeam()
	defer g.RUnlockSeam()
	s := g.Sector(x, z)
	if s == nil {
		return nil
	}
	s.Lock()
	if s.progress == ProgReady {
		s.Unlock()
		return s
	}
	s.progress = ProgGenerating
	job := genJob{wx: s.wx, wz: s.wz, generation: s.Generation()}
	s.Unlock()

	data := st.buffers.Get().(*GenData)
	defer st.buffers.Put(data)
	loaded := st.produce(job, data)
	return st.install(genResult{job: job, data: data, loaded: loaded})
}
