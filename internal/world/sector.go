package world

import (
	"fmt"
	"sync"

	"go.uber.org/atomic"
)

const (
	// Sector dimensions
	SectorSizeXZ = 16
	SectorSizeY  = 256

	// Part dimensions. A part is the unit of mesh invalidation.
	PartHeight = 16
	NumParts   = SectorSizeY / PartHeight

	SectorVolume = SectorSizeXZ * SectorSizeY * SectorSizeXZ

	// AllParts selects every part of a sector.
	AllParts uint16 = 1<<NumParts - 1
)

// Progress tracks where a sector is in its generation lifecycle.
type Progress uint8

const (
	ProgNeedGen Progress = iota
	ProgGenerating
	ProgReady
)

func (p Progress) String() string {
	switch p {
	case ProgNeedGen:
		return "need-gen"
	case ProgGenerating:
		return "generating"
	case ProgReady:
		return "ready"
	default:
		return fmt.Sprintf("progress(%d)", uint8(p))
	}
}

// Sector is a 16x256x16 column of blocks living in one grid slot.
// The payload is allocated once with the grid and reused across rotations.
type Sector struct {
	mu sync.RWMutex

	x, z   int
	wx, wz int

	blocks *[SectorVolume]Block
	info   BlockInfo

	progress     Progress
	atmospherics bool
	blockCount   int
	lightCount   int

	persist   bool
	needsSave bool

	generation atomic.Uint64
}

// blockIndex converts local (x, y, z) into the payload index. Y is the
// fastest axis so column scans stay contiguous.
func blockIndex(x, y, z int) int {
	return (x*SectorSizeXZ+z)*SectorSizeY + y
}

// InBounds reports whether local coordinates address a cell of a sector.
func InBounds(x, y, z int) bool {
	return x >= 0 && x < SectorSizeXZ && y >= 0 && y < SectorSizeY && z >= 0 && z < SectorSizeXZ
}

func (s *Sector) X() int  { return s.x }
func (s *Sector) Z() int  { return s.z }
func (s *Sector) WX() int { return s.wx }
func (s *Sector) WZ() int { return s.wz }

func (s *Sector) Progress() Progress { return s.progress }

// Generated reports whether the payload holds valid terrain.
func (s *Sector) Generated() bool { return s.progress == ProgReady }

func (s *Sector) Atmospherics() bool { return s.atmospherics }

func (s *Sector) SetAtmospherics(v bool) { s.atmospherics = v }

func (s *Sector) BlockCount() int { return s.blockCount }

func (s *Sector) LightCount() int { return s.lightCount }

// Generation is bumped on every invalidation. Work captured against an older
// generation is stale.
func (s *Sector) Generation() uint64 { return s.generation.Load() }

func (s *Sector) NeedsSave() bool { return s.needsSave }

func (s *Sector) ClearSave() { s.needsSave = false }

// MarkDirty flags the payload for persistence.
func (s *Sector) MarkDirty() {
	if s.persist {
		s.needsSave = true
	}
}

func (s *Sector) Lock()    { s.mu.Lock() }
func (s *Sector) Unlock()  { s.mu.Unlock() }
func (s *Sector) RLock()   { s.mu.RLock() }
func (s *Sector) RUnlock() { s.mu.RUnlock() }

// Get returns the block at local coordinates.
func (s *Sector) Get(x, y, z int) (Block, error) {
	if !InBounds(x, y, z) {
		return Air, fmt.Errorf("sector (%d,%d) get %d,%d,%d: %w", s.x, s.z, x, y, z, ErrOutOfBounds)
	}
	return s.blocks[blockIndex(x, y, z)], nil
}

// Set writes b at local coordinates and returns the previous block.
func (s *Sector) Set(x, y, z int, b Block) (Block, error) {
	if !InBounds(x, y, z) {
		return Air, fmt.Errorf("sector (%d,%d) set %d,%d,%d: %w", s.x, s.z, x, y, z, ErrOutOfBounds)
	}
	idx := blockIndex(x, y, z)
	prev := s.blocks[idx]
	s.blocks[idx] = b

	if prev.ID != b.ID {
		if prev.ID == BlockTypeAir {
			s.blockCount++
		} else if b.ID == BlockTypeAir {
			s.blockCount--
		}
		if s.info != nil {
			was, now := s.info.Emission(prev.ID) > 0, s.info.Emission(b.ID) > 0
			if !was && now {
				s.lightCount++
			} else if was && !now {
				s.lightCount--
			}
		}
	}
	if prev != b {
		s.MarkDirty()
	}
	return prev, nil
}

// At returns the block at local coordinates without bounds checks.
func (s *Sector) At(x, y, z int) Block {
	return s.blocks[blockIndex(x, y, z)]
}

// Ptr returns a pointer to the cell at local coordinates without bounds
// checks. Callers must hold the sector lock.
func (s *Sector) Ptr(x, y, z int) *Block {
	return &s.blocks[blockIndex(x, y, z)]
}

// Blocks exposes the raw payload to persistence and snapshot code.
func (s *Sector) Blocks() *[SectorVolume]Block { return s.blocks }

// Invalidate resets the sector to an empty, ungenerated state at new world
// coordinates. The payload array is reused.
func (s *Sector) Invalidate(wx, wz int) {
	clear(s.blocks[:])
	s.wx, s.wz = wx, wz
	s.progress = ProgNeedGen
	s.atmospherics = false
	s.blockCount = 0
	s.lightCount = 0
	s.needsSave = false
	s.generation.Inc()
}

// install copies a finished generation buffer into the payload.
func (s *Sector) install(data *GenData) {
	*s.blocks = *data.Blocks
	s.blockCount = 0
	s.lightCount = 0
	for i := range s.blocks {
		id := s.blocks[i].ID
		if id == BlockTypeAir {
			continue
		}
		s.blockCount++
		if s.info != nil && s.info.Emission(id) > 0 {
			s.lightCount++
		}
	}
	s.progress = ProgReady
	s.atmospherics = false
	s.needsSave = data.Dirty && s.persist
}

func (s *Sector) String() string {
	return fmt.Sprintf("sector[%d,%d]@(%d,%d) %s", s.x, s.z, s.wx, s.wz, s.progress)
}
