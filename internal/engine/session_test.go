package engine

import (
	"os"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seamcraft/internal/columns"
	"seamcraft/internal/config"
	"seamcraft/internal/world"
)

const testFloor = 8

func testConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Grid.Dim = 5
	cfg.Generation.Kind = config.GeneratorFlat
	cfg.Generation.FlatHeight = testFloor
	cfg.Generation.Workers = 2
	cfg.Generation.RequestBudget = 25
	cfg.Meshing.Workers = 2
	cfg.Meshing.DispatchPerTick = 8
	cfg.Storage.Dir = dir
	require.NoError(t, cfg.Normalize())
	return cfg
}

func newTestSession(t *testing.T, cfg *config.Config) (*Session, *columns.MemoryRenderer) {
	t.Helper()
	r := columns.NewMemoryRenderer()
	s, err := NewSession(Options{Config: cfg, Renderer: r})
	require.NoError(t, err)
	return s, r
}

func settle(t *testing.T, s *Session) {
	t.Helper()
	n := s.RunUntilIdle(5000, time.Millisecond)
	require.True(t, s.Idle(), "session still busy after %d ticks", n)
}

func TestSessionStreamsAndMeshesInterior(t *testing.T) {
	s, r := newTestSession(t, testConfig(t, ""))
	defer func() { require.NoError(t, s.Close()) }()

	settle(t, s)

	for x := 0; x < 5; x++ {
		for z := 0; z < 5; z++ {
			assert.True(t, s.Grid.Sector(x, z).Generated(), "slot %d,%d", x, z)
		}
	}
	assert.Len(t, s.Columns.RenderQueue(), 9)
	assert.Equal(t, 9, r.Live())
	assert.NoError(t, s.Grid.Verify())
}

func TestSessionEditReuploads(t *testing.T) {
	s, r := newTestSession(t, testConfig(t, ""))
	defer func() { require.NoError(t, s.Close()) }()
	settle(t, s)

	before := r.Uploads()
	require.NoError(t, s.PlaceBlock(40, testFloor, 40, world.Block{ID: world.BlockTypeStone}))
	settle(t, s)
	assert.Greater(t, r.Uploads(), before)

	b, err := s.BlockAt(40, testFloor, 40)
	require.NoError(t, err)
	assert.Equal(t, world.BlockTypeStone, b.ID)

	h := s.Pick(mgl32.Vec3{40.5, testFloor + 3.5, 40.5}, mgl32.Vec3{0, -1, 0})
	require.True(t, h.Hit)
	assert.Equal(t, [3]int{40, testFloor, 40}, h.Cell)

	_, err = s.RemoveBlock(40, testFloor+1, 40)
	assert.Error(t, err)
}

func TestSessionFollowsObserver(t *testing.T) {
	s, _ := newTestSession(t, testConfig(t, ""))
	defer func() { require.NoError(t, s.Close()) }()
	settle(t, s)

	assert.InDelta(t, 40, s.Observer().X(), 1e-4)
	s.MoveObserver(mgl32.Vec3{20, 0, 0})
	stats := s.Tick(time.Millisecond)
	assert.Equal(t, 1, stats.Shifts)
	assert.Equal(t, 1, s.Grid.OriginX())
	assert.InDelta(t, 60, s.Observer().X(), 1e-4)

	settle(t, s)
	assert.Len(t, s.Columns.RenderQueue(), 9)
	assert.NoError(t, s.Grid.Verify())

	s.SetObserver(mgl32.Vec3{39.5, 10, 40})
	settle(t, s)
	assert.Equal(t, 0, s.Grid.OriginX())
	assert.Equal(t, 0, s.Grid.OriginZ())
	assert.Len(t, s.Columns.RenderQueue(), 9)
}

func TestSessionEdgeColumnAfterShift(t *testing.T) {
	s, r := newTestSession(t, testConfig(t, ""))
	defer func() { require.NoError(t, s.Close()) }()
	settle(t, s)

	s.MoveObserver(mgl32.Vec3{20, 0, 0})
	settle(t, s)
	require.Equal(t, 1, s.Grid.OriginX())

	// World sector 1 now sits on the trailing edge at slot 0.
	edge := s.Columns.Column(0, 2)
	require.Equal(t, 1, edge.WX)
	assert.False(t, edge.Renderable)
	assert.False(t, edge.Visible)

	uploads := r.Uploads()
	_, err := s.RemoveBlock(20, testFloor-1, 40)
	require.NoError(t, err)
	settle(t, s)
	assert.False(t, edge.Renderable)
	assert.NotContains(t, s.Columns.RenderQueue(), edge)
	assert.Len(t, s.Columns.RenderQueue(), 9)
	b, err := s.BlockAt(20, testFloor-1, 40)
	require.NoError(t, err)
	assert.True(t, b.IsAir())

	// Shifting back makes it interior and remeshed with the edit.
	s.MoveObserver(mgl32.Vec3{-21, 0, 0})
	settle(t, s)
	require.Equal(t, 0, s.Grid.OriginX())
	assert.Same(t, edge, s.Columns.Column(1, 2))
	assert.True(t, edge.Renderable)
	assert.Greater(t, r.Uploads(), uploads)
	assert.Len(t, s.Columns.RenderQueue(), 9)
}

func TestSessionPersistsEdits(t *testing.T) {
	dir, err := os.MkdirTemp("", "seamcraft-session")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	cfg := testConfig(t, dir)

	s, _ := newTestSession(t, cfg)
	settle(t, s)
	require.NoError(t, s.PlaceBlock(41, testFloor, 39, world.Block{ID: world.BlockTypeGlowstone}))
	require.NoError(t, s.Close())

	s, _ = newTestSession(t, cfg)
	defer func() { require.NoError(t, s.Close()) }()
	settle(t, s)
	b, err := s.BlockAt(41, testFloor, 39)
	require.NoError(t, err)
	assert.Equal(t, world.BlockTypeGlowstone, b.ID)
	assert.Equal(t, uint8(15), b.TorchLight())
}
