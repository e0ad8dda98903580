package storage

import (
	"sync"

	"seamcraft/internal/metrics"
	"seamcraft/internal/profiling"
	"seamcraft/internal/world"
)

// Saver collects dirty sectors and writes them to a SectorStore when
// flushed. Evicted sectors are encoded immediately, since their payload is
// about to be reused.
type Saver struct {
	store   *SectorStore
	grid    *world.Grid
	metrics *metrics.Collectors

	mu      sync.Mutex
	dirty   map[*world.Sector]uint64
	evicted map[[2]int]Record
}

func NewSaver(store *SectorStore, grid *world.Grid, m *metrics.Collectors) *Saver {
	if m == nil {
		m = metrics.New()
	}
	return &Saver{
		store:   store,
		grid:    grid,
		metrics: m,
		dirty:   make(map[*world.Sector]uint64),
		evicted: make(map[[2]int]Record),
	}
}

// OnSectorDirty remembers s until the next flush. The generation guards
// against saving a slot that was reused meanwhile.
func (sv *Saver) OnSectorDirty(s *world.Sector) {
	sv.mu.Lock()
	sv.dirty[s] = s.Generation()
	sv.mu.Unlock()
}

// OnSectorEvict encodes s while its payload is still intact.
func (sv *Saver) OnSectorEvict(s *world.Sector, flat *world.Flatland) {
	rec := sv.store.Encode(s.WX(), s.WZ(), s.Blocks(), flat)
	s.ClearSave()
	sv.mu.Lock()
	delete(sv.dirty, s)
	sv.evicted[[2]int{rec.WX, rec.WZ}] = rec
	sv.mu.Unlock()
}

// Pending returns the number of sectors waiting for a flush.
func (sv *Saver) Pending() int {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	return len(sv.dirty) + len(sv.evicted)
}

// Flush writes every pending sector. It must not be called with the seam
// held.
func (sv *Saver) Flush() (int, error) {
	defer profiling.Track("storage.Flush")()

	sv.mu.Lock()
	dirty := sv.dirty
	sv.dirty = make(map[*world.Sector]uint64, len(dirty))
	recs := make([]Record, 0, len(dirty)+len(sv.evicted))
	for _, r := range sv.evicted {
		recs = append(recs, r)
	}
	clear(sv.evicted)
	sv.mu.Unlock()

	g := sv.grid
	g.RLockSeam()
	for s, gen := range dirty {
		s.Lock()
		if s.Generation() == gen && s.Generated() && s.NeedsSave() {
			recs = append(recs, sv.store.Encode(s.WX(), s.WZ(), s.Blocks(), g.Flat(s.X(), s.Z())))
			s.ClearSave()
		}
		s.Unlock()
	}
	g.RUnlockSeam()

	if err := sv.store.Write(recs); err != nil {
		sv.metrics.SaveErrors.Inc()
		// Keep the records for the next attempt unless newer ones exist.
		sv.mu.Lock()
		for _, r := range recs {
			k := [2]int{r.WX, r.WZ}
			if _, ok := sv.evicted[k]; !ok {
				sv.evicted[k] = r
			}
		}
		sv.mu.Unlock()
		return 0, err
	}
	sv.metrics.SaveFlushes.Add(float64(len(recs)))
	if len(recs) > 0 {
		log.Debugf("flushed %d sectors", len(recs))
	}
	return len(recs), nil
}

// LoadSector implements world.SectorLoader. An evicted sector that was not
// flushed yet is served from memory.
func (sv *Saver) LoadSector(wx, wz int, dst *world.GenData) (bool, error) {
	sv.mu.Lock()
	rec, ok := sv.evicted[[2]int{wx, wz}]
	sv.mu.Unlock()
	if ok {
		if err := sv.store.Decode(rec.Data, dst); err != nil {
			return false, err
		}
		return true, nil
	}
	return sv.store.Load(wx, wz, dst)
}

var (
	_ world.DirtyListener = (*Saver)(nil)
	_ world.SectorLoader  = (*Saver)(nil)
)
