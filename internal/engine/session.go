package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"seamcraft/internal/columns"
	"seamcraft/internal/config"
	"seamcraft/internal/edit"
	"seamcraft/internal/lighting"
	"seamcraft/internal/logging"
	"seamcraft/internal/meshing"
	"seamcraft/internal/metrics"
	"seamcraft/internal/profiling"
	"seamcraft/internal/registry"
	"seamcraft/internal/seamless"
	"seamcraft/internal/storage"
	"seamcraft/internal/terrain"
	"seamcraft/internal/world"
)

var log = logging.New("engine")

// Options wires a Session. Only Config is required.
type Options struct {
	Config    *config.Config
	Registry  *registry.Registry
	Terrain   *terrain.Table
	Generator world.Generator
	Renderer  columns.Renderer
	Frustum   columns.Frustum
	Metrics   *metrics.Collectors
}

// TickStats summarises one coordinator tick.
type TickStats struct {
	Shifts     int
	Requested  int
	Installed  int
	Dispatched int
	Applied    int
	Compiled   int
	Saved      int
}

// Session owns every component and drives them from one goroutine. All
// methods must be called from that goroutine.
type Session struct {
	cfg *config.Config

	Registry *registry.Registry
	Terrain  *terrain.Table
	Metrics  *metrics.Collectors

	Grid      *world.Grid
	Streamer  *world.Streamer
	Light     *lighting.Engine
	Dirtier   *meshing.Dirtier
	Pool      *meshing.WorkerPool
	Scheduler *meshing.Scheduler
	Columns   *columns.Columns
	Seamless  *seamless.Controller
	Editor    *edit.Editor

	store *storage.SectorStore
	saver *storage.Saver

	observer   seamless.Observer
	sinceFlush time.Duration
	ticks      uint64
}

// NewSession builds the grid and starts the worker pools.
func NewSession(opts Options) (*Session, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
		if err := cfg.Normalize(); err != nil {
			return nil, err
		}
	}
	reg := opts.Registry
	if reg == nil {
		reg = registry.Default()
	}
	table := opts.Terrain
	if table == nil {
		table = terrain.DefaultTable()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	gen := opts.Generator
	if gen == nil {
		gen = newGenerator(cfg.Generation, table)
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = columns.NewMemoryRenderer()
	}

	s := &Session{cfg: cfg, Registry: reg, Terrain: table, Metrics: m}

	s.Grid = world.NewGrid(world.GridOptions{
		Dim:     cfg.Grid.Dim,
		Info:    reg,
		OriginX: cfg.Grid.OriginX,
		OriginZ: cfg.Grid.OriginZ,
		Persist: cfg.Storage.Dir != "",
	})

	var loader world.SectorLoader
	if cfg.Storage.Dir != "" {
		store, err := storage.Open(cfg.Storage.Dir, cfg.WorldID)
		if err != nil {
			return nil, fmt.Errorf("new session: %w", err)
		}
		s.store = store
		s.saver = storage.NewSaver(store, s.Grid, m)
		s.Grid.SetListener(s.saver)
		loader = s.saver
	}

	s.Streamer = world.NewStreamer(s.Grid, gen, world.StreamerOptions{
		Workers:    cfg.Generation.Workers,
		MaxPending: cfg.Generation.MaxPending,
		Loader:     loader,
	})
	s.Dirtier = meshing.NewDirtier(s.Grid)
	s.Light = lighting.NewEngine(s.Grid, s.Dirtier)
	s.Pool = meshing.NewWorkerPool(cfg.Meshing.Workers, reg)
	s.Scheduler = meshing.NewScheduler(s.Grid, s.Light, s.Pool, m)
	s.Columns = columns.New(s.Grid, renderer, opts.Frustum, m)
	s.Seamless = seamless.New(s.Grid, s.Scheduler, m, s.Columns, s.Scheduler, s.Light)
	s.Editor = edit.New(s.Grid, reg, s.Light, s.Dirtier, m)

	mid := float32(s.Grid.Dim()*world.SectorSizeXZ) / 2
	s.observer.Pos = mgl32.Vec3{mid, float32(cfg.Generation.FlatHeight + 2), mid}

	log.Infof("session %s: %dx%d sectors, origin %d,%d, %s generator, persistence %t",
		cfg.WorldID, s.Grid.Dim(), s.Grid.Dim(), s.Grid.OriginX(), s.Grid.OriginZ(),
		cfg.Generation.Kind, s.saver != nil)
	return s, nil
}

func newGenerator(gc config.GenerationConfig, table *terrain.Table) world.Generator {
	if gc.Kind == config.GeneratorFlat {
		return &terrain.FlatGenerator{Height: gc.FlatHeight, Terrain: terrain.TerrainPlains, Table: table}
	}
	g := terrain.NewNoiseGenerator(gc.Seed, table)
	g.SeaLevel = gc.SeaLevel
	return g
}

func (s *Session) Config() *config.Config { return s.cfg }

func (s *Session) Ticks() uint64 { return s.ticks }

// Observer returns the observer position in world blocks.
func (s *Session) Observer() mgl32.Vec3 { return s.observer.World(s.Grid) }

// SetObserver places the observer at a world block position. The grid
// follows on the next tick.
func (s *Session) SetObserver(pos mgl32.Vec3) {
	origin := mgl32.Vec3{
		float32(s.Grid.OriginX() * world.SectorSizeXZ), 0, float32(s.Grid.OriginZ() * world.SectorSizeXZ),
	}
	s.observer.Pos = pos.Sub(origin)
}

// MoveObserver offsets the observer by delta blocks.
func (s *Session) MoveObserver(delta mgl32.Vec3) {
	s.observer.Pos = s.observer.Pos.Add(delta)
}

// Tick runs one coordinator step: shift, generation, dispatch, assembly and
// the periodic save.
func (s *Session) Tick(dt time.Duration) TickStats {
	profiling.ResetTick()
	defer profiling.Track("engine.Tick")()
	start := time.Now()
	defer func() { s.Metrics.TickSeconds.Observe(time.Since(start).Seconds()) }()
	s.ticks++

	var stats TickStats
	s.Terrain.Tick(dt.Seconds())

	stats.Shifts = s.Seamless.Run(&s.observer)

	c := s.Grid.Dim() / 2
	stats.Requested = s.Streamer.RequestAround(c, c, s.cfg.Generation.RequestBudget)
	gs := s.Streamer.Drain(func(sec *world.Sector) {
		s.Scheduler.Submit(sec.X(), sec.Z(), world.AllParts)
	})
	stats.Installed = gs.Installed
	s.Metrics.SectorsInstalled.Add(float64(gs.Installed))
	s.Metrics.SectorsLoaded.Add(float64(gs.Loaded))
	s.Metrics.GenerationStale.Add(float64(gs.Stale))
	s.Metrics.GenPending.Set(float64(s.Streamer.Pending()))

	s.Dirtier.Flush(s.Scheduler)
	changes := s.Light.Changes()
	for i := 0; i < s.cfg.Meshing.DispatchPerTick; i++ {
		if !s.Scheduler.RunOnce() {
			break
		}
		stats.Dispatched++
	}
	s.Metrics.LightChanges.Add(float64(s.Light.Changes() - changes))
	// Touches from inline floods are dispatched next tick.
	s.Dirtier.Flush(s.Scheduler)

	stats.Applied = s.Columns.Drain(s.Pool.Results())
	n, err := s.Columns.CompileDirty()
	if err != nil {
		log.Errorf("compile columns: %v", err)
	}
	stats.Compiled = n
	s.Columns.RenderQueue()

	if s.saver != nil {
		s.sinceFlush += dt
		if s.sinceFlush >= time.Duration(s.cfg.Storage.FlushEvery)*time.Second {
			s.sinceFlush = 0
			stats.Saved = s.flush()
		}
	}
	return stats
}

func (s *Session) flush() int {
	n, err := s.saver.Flush()
	if err != nil {
		log.Errorf("save: %v", err)
	}
	return n
}

// Idle reports whether no generation, mesh or save work is outstanding.
func (s *Session) Idle() bool {
	return s.Streamer.Pending() == 0 &&
		s.Scheduler.Len() == 0 &&
		s.Pool.InFlight() == 0 &&
		len(s.Pool.Results()) == 0 &&
		s.Dirtier.Pending() == 0
}

// RunUntilIdle ticks until Idle or maxTicks, sleeping pause between ticks.
// It returns the number of ticks run.
func (s *Session) RunUntilIdle(maxTicks int, pause time.Duration) int {
	for i := 1; i <= maxTicks; i++ {
		s.Tick(pause)
		if s.Idle() {
			return i
		}
		time.Sleep(pause)
	}
	return maxTicks
}

// PlaceBlock writes b at a world cell.
func (s *Session) PlaceBlock(wx, wy, wz int, b world.Block) error {
	return s.Editor.PlaceBlock(wx, wy, wz, b)
}

// RemoveBlock clears a world cell and returns what was there.
func (s *Session) RemoveBlock(wx, wy, wz int) (world.Block, error) {
	return s.Editor.RemoveBlock(wx, wy, wz)
}

func (s *Session) SetBits(wx, wy, wz int, bits uint8) error {
	return s.Editor.SetBits(wx, wy, wz, bits)
}

func (s *Session) BlockAt(wx, wy, wz int) (world.Block, error) {
	return s.Editor.BlockAt(wx, wy, wz)
}

// Close stops the workers, saves pending sectors and releases buffers.
func (s *Session) Close() error {
	s.Streamer.Close()
	s.Pool.Shutdown()
	s.Columns.Close()
	var errs []error
	if s.saver != nil {
		if _, err := s.saver.Flush(); err != nil {
			errs = append(errs, err)
		}
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	log.Infof("session closed after %d ticks", s.ticks)
	return errors.Join(errs...)
}

// Pick casts a ray from a world position and returns the first solid cell.
func (s *Session) Pick(origin, dir mgl32.Vec3) edit.Hit {
	return s.Editor.Pick(origin, dir, edit.MaxReach)
}
