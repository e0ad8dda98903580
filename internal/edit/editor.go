package edit

import (
	"errors"
	"fmt"

	"seamcraft/internal/lighting"
	"seamcraft/internal/logging"
	"seamcraft/internal/metrics"
	"seamcraft/internal/profiling"
	"seamcraft/internal/registry"
	"seamcraft/internal/world"
)

var (
	ErrAlreadyEmpty = errors.New("cell already empty")
	ErrSameBlock    = errors.New("cell already holds that block")
)

var log = logging.New("edit")

// Editor applies block edits in world block coordinates and keeps light and
// mesh state consistent with them. Not safe for concurrent use; the engine
// calls it from the coordinator goroutine.
type Editor struct {
	grid    *world.Grid
	reg     *registry.Registry
	light   *lighting.Engine
	sink    lighting.TouchSink
	metrics *metrics.Collectors
}

// New returns an editor. sink receives the edited cells; usually the same
// sink the lighting engine reports to.
func New(grid *world.Grid, reg *registry.Registry, light *lighting.Engine, sink lighting.TouchSink, m *metrics.Collectors) *Editor {
	if m == nil {
		m = metrics.New()
	}
	return &Editor{grid: grid, reg: reg, light: light, sink: sink, metrics: m}
}

// target resolves a world cell and locks the seam and its 3x3 region. The
// returned release must be called exactly once.
func (e *Editor) target(op string, wx, wy, wz int) (*world.Sector, int, int, int, func(), error) {
	g := e.grid
	g.RLockSeam()
	s, bx, by, bz, err := g.ResolveWorld(wx, wy, wz)
	if err != nil {
		g.RUnlockSeam()
		return nil, 0, 0, 0, nil, fmt.Errorf("%s: %w", op, err)
	}
	unlock := g.LockRegion(s.X(), s.Z(), 1)
	release := func() {
		unlock()
		g.RUnlockSeam()
	}
	if !s.Generated() {
		release()
		return nil, 0, 0, 0, nil, fmt.Errorf("%s %d,%d,%d: %w", op, wx, wy, wz, world.ErrNotGenerated)
	}
	return s, bx, by, bz, release, nil
}

func (e *Editor) count(op string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, world.ErrOutOfBounds):
		result = "out_of_bounds"
	case errors.Is(err, world.ErrNotGenerated):
		result = "not_generated"
	default:
		result = "rejected"
	}
	e.metrics.Edits.WithLabelValues(op, result).Inc()
}

// BlockAt returns the block at a world cell.
func (e *Editor) BlockAt(wx, wy, wz int) (world.Block, error) {
	g := e.grid
	g.RLockSeam()
	defer g.RUnlockSeam()
	s, bx, by, bz, err := g.ResolveWorld(wx, wy, wz)
	if err != nil {
		return world.Air, err
	}
	s.RLock()
	defer s.RUnlock()
	return s.Get(bx, by, bz)
}

// PlaceBlock writes b at a world cell, replacing whatever is there.
func (e *Editor) PlaceBlock(wx, wy, wz int, b world.Block) (err error) {
	defer profiling.Track("edit.PlaceBlock")()
	defer func() { e.count("place", err) }()

	s, bx, by, bz, release, err := e.target("place", wx, wy, wz)
	if err != nil {
		return err
	}
	defer release()

	old := s.At(bx, by, bz)
	if old.ID == b.ID && old.Bits == b.Bits {
		return fmt.Errorf("place %s at %d,%d,%d: %w", e.name(b.ID), wx, wy, wz, ErrSameBlock)
	}
	e.replace(s, bx, by, bz, old, b)
	return nil
}

// RemoveBlock clears a world cell to air and returns what was there.
func (e *Editor) RemoveBlock(wx, wy, wz int) (prev world.Block, err error) {
	defer profiling.Track("edit.RemoveBlock")()
	defer func() { e.count("remove", err) }()

	s, bx, by, bz, release, err := e.target("remove", wx, wy, wz)
	if err != nil {
		return world.Air, err
	}
	defer release()

	old := s.At(bx, by, bz)
	if old.IsAir() {
		return world.Air, fmt.Errorf("remove %d,%d,%d: %w", wx, wy, wz, ErrAlreadyEmpty)
	}
	e.replace(s, bx, by, bz, old, world.Air)
	return old, nil
}

// SetBits changes the orientation and special bits of a block in place.
func (e *Editor) SetBits(wx, wy, wz int, bits uint8) (err error) {
	defer func() { e.count("bits", err) }()

	s, bx, by, bz, release, err := e.target("bits", wx, wy, wz)
	if err != nil {
		return err
	}
	defer release()

	old := s.At(bx, by, bz)
	if old.IsAir() {
		return fmt.Errorf("bits at %d,%d,%d: %w", wx, wy, wz, ErrAlreadyEmpty)
	}
	if old.Bits == bits {
		return fmt.Errorf("bits at %d,%d,%d: %w", wx, wy, wz, ErrSameBlock)
	}
	nb := old
	nb.Bits = bits
	if _, err := s.Set(bx, by, bz, nb); err != nil {
		return err
	}
	e.touched(s, bx, by, bz)
	return nil
}

// replace swaps old for b and repairs both light channels. The cell keeps its
// light byte; every lighting call below starts from the stored levels.
func (e *Editor) replace(s *world.Sector, bx, by, bz int, old, b world.Block) {
	b.Light = old.Light
	if _, err := s.Set(bx, by, bz, b); err != nil {
		world.Invariant(false, "set resolved cell: %v", err)
		return
	}

	x, z := s.X()*world.SectorSizeXZ+bx, s.Z()*world.SectorSizeXZ+bz
	wasOpaque, isOpaque := e.reg.IsOpaque(old.ID), e.reg.IsOpaque(b.ID)
	oldE, newE := e.reg.Emission(old.ID), e.reg.Emission(b.ID)
	fd := e.grid.Flat(s.X(), s.Z()).At(bx, bz)

	if e.reg.IsSolid(b.ID) && by+1 > int(fd.GroundLevel) {
		fd.GroundLevel = int16(by + 1)
	}

	switch {
	case !wasOpaque && isOpaque:
		e.light.SkyBlocked(s, bx, by, bz)
	case wasOpaque && !isOpaque:
		if by != int(fd.SkyLevel)-1 || !e.light.SkyrayDownwards(s, bx, by, bz) {
			e.light.FloodInto(x, by, z, world.ChannelSky)
		}
	}

	torch := s.At(bx, by, bz).TorchLight()
	switch {
	case oldE > 0 && newE < oldE, !wasOpaque && isOpaque && torch > 0:
		e.light.DeferredRemove(s, bx, by, by, bz, world.ChannelTorch)
	case wasOpaque && !isOpaque:
		e.light.FloodInto(x, by, z, world.ChannelTorch)
	}
	if newE > s.At(bx, by, bz).TorchLight() {
		e.light.FloodOutof(x, by, z, world.ChannelTorch, newE)
	}

	e.touched(s, bx, by, bz)
	log.Debugf("%s -> %s at sector %d,%d cell %d,%d,%d", e.name(old.ID), e.name(b.ID), s.WX(), s.WZ(), bx, by, bz)
}

// touched reports the edited cell and hands a dirty sector to persistence.
func (e *Editor) touched(s *world.Sector, bx, by, bz int) {
	if e.sink != nil {
		e.sink.Touch(s, bx, by, bz)
	}
	if l := e.grid.Listener(); l != nil && s.NeedsSave() {
		l.OnSectorDirty(s)
	}
}

func (e *Editor) name(id world.BlockType) string {
	if def := e.reg.Get(id); def != nil {
		return def.Name
	}
	return fmt.Sprintf("block(%d)", id)
}
