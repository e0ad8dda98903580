package lighting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seamcraft/internal/registry"
	"seamcraft/internal/world"
)

const floor = 8

// shelfGen lays a flat floor with a roof slab and a glowstone underneath it.
type shelfGen struct{ roof bool }

func (g shelfGen) Generate(d *world.GenData) {
	for x := 0; x < world.SectorSizeXZ; x++ {
		for z := 0; z < world.SectorSizeXZ; z++ {
			wx, wz := d.WX*world.SectorSizeXZ+x, d.WZ*world.SectorSizeXZ+z
			d.Fill(x, z, 0, floor, world.BlockTypeStone)
			if g.roof && wx >= 10 && wx < 30 && wz >= 10 && wz < 30 {
				d.Fill(x, z, 14, 16, world.BlockTypeStone)
			}
			if g.roof && wx == 20 && wz == 20 {
				d.Set(x, floor, z, world.BlockTypeGlowstone)
			}
		}
	}
}

type recordSink struct {
	touched map[*world.Sector]int
}

func (r *recordSink) Touch(s *world.Sector, bx, by, bz int) {
	if r.touched == nil {
		r.touched = make(map[*world.Sector]int)
	}
	r.touched[s]++
}

func (r *recordSink) total() int {
	n := 0
	for _, c := range r.touched {
		n += c
	}
	return n
}

func buildLitGrid(t *testing.T, gen world.Generator, order [][2]int) (*world.Grid, *Engine, *recordSink) {
	t.Helper()
	g := world.NewGrid(world.GridOptions{Dim: 3, Info: registry.Default()})
	st := world.NewStreamer(g, gen, world.StreamerOptions{Workers: 1})
	defer st.Close()
	for x := 0; x < 3; x++ {
		for z := 0; z < 3; z++ {
			require.NotNil(t, st.GenerateSync(x, z))
		}
	}
	sink := &recordSink{}
	e := NewEngine(g, sink)
	for _, p := range order {
		e.AtmosphericFlood(g.Sector(p[0], p[1]))
	}
	return g, e, sink
}

func allSlots() [][2]int {
	var out [][2]int
	for x := 0; x < 3; x++ {
		for z := 0; z < 3; z++ {
			out = append(out, [2]int{x, z})
		}
	}
	return out
}

func requireConsistent(t *testing.T, g *world.Grid) {
	t.Helper()
	m := Audit(g, 5)
	require.Empty(t, m, "light differs from full recompute: %v", m)
}

func cellAt(g *world.Grid, x, y, z int) *world.Block {
	_, b := g.Cell(x, y, z)
	return b
}

func TestAtmosphericFloodMatchesFullRecompute(t *testing.T) {
	forward := allSlots()
	backward := make([][2]int, len(forward))
	for i := range forward {
		backward[len(forward)-1-i] = forward[i]
	}
	for _, order := range [][][2]int{forward, backward} {
		g, _, _ := buildLitGrid(t, shelfGen{roof: true}, order)
		requireConsistent(t, g)

		assert.Equal(t, uint8(15), cellAt(g, 20, floor, 20).TorchLight())
		assert.Equal(t, uint8(15), cellAt(g, 5, floor, 5).SkyLight())
		assert.Equal(t, uint8(0), cellAt(g, 5, floor-1, 5).SkyLight())
		under := cellAt(g, 20, floor+2, 20).SkyLight()
		assert.Less(t, under, uint8(15), "roofed cells are not sky sources")
	}
}

func TestTorchOnOpenGround(t *testing.T) {
	g, e, _ := buildLitGrid(t, shelfGen{}, allSlots())
	x, y, z := 24, floor, 24

	b := cellAt(g, x, y, z)
	b.ID = world.BlockTypeTorch
	e.FloodOutof(x, y, z, world.ChannelTorch, 14)

	assert.Equal(t, uint8(15), cellAt(g, x, y, z).SkyLight())
	assert.Equal(t, uint8(15), cellAt(g, x, y+1, z).SkyLight())
	for dx := -15; dx <= 15; dx++ {
		for dz := -15; dz <= 15; dz++ {
			for dy := 0; dy <= 15; dy++ {
				d := abs(dx) + abs(dz) + dy
				want := 0
				if d < 14 {
					want = 14 - d
				}
				got := cellAt(g, x+dx, y+dy, z+dz).TorchLight()
				if int(got) != want {
					t.Fatalf("torch at offset (%d,%d,%d) = %d, want %d", dx, dy, dz, got, want)
				}
			}
		}
	}
	requireConsistent(t, g)

	old := *b
	b.ID = world.BlockTypeAir
	e.RemoveLight(old, x, y, z)
	assert.Equal(t, uint8(0), cellAt(g, x+1, y, z).TorchLight())
	requireConsistent(t, g)
}

func TestRemovingBrighterSourceReseedsDimmerOne(t *testing.T) {
	g, e, _ := buildLitGrid(t, shelfGen{roof: true}, allSlots())

	// A torch two blocks from the glowstone sits inside its glow.
	cellAt(g, 22, floor, 20).ID = world.BlockTypeTorch
	e.FloodOutof(22, floor, 20, world.ChannelTorch, 14)
	requireConsistent(t, g)

	glow := cellAt(g, 20, floor, 20)
	old := *glow
	glow.ID = world.BlockTypeAir
	e.RemoveLight(old, 20, floor, 20)
	e.FloodInto(20, floor, 20, world.ChannelSky)
	requireConsistent(t, g)
	assert.Equal(t, uint8(14), cellAt(g, 22, floor, 20).TorchLight())
	assert.Equal(t, uint8(12), cellAt(g, 20, floor, 20).TorchLight())
}

func TestSkyrayStopsAtNewTop(t *testing.T) {
	g, e, _ := buildLitGrid(t, shelfGen{}, allSlots())
	s, bx, _, bz, err := g.Resolve(24, 0, 24)
	require.NoError(t, err)
	fd := g.Flat(s.X(), s.Z()).At(bx, bz)
	require.Equal(t, int16(floor), fd.SkyLevel)

	const top = 20
	s.Ptr(bx, top, bz).ID = world.BlockTypeStone
	e.SkyBlocked(s, bx, top, bz)
	assert.Equal(t, int16(top+1), fd.SkyLevel)
	assert.Equal(t, uint8(14), s.At(bx, top-1, bz).SkyLight(), "shadow is lit from the side")
	assert.Equal(t, uint8(0), s.At(bx, top, bz).SkyLight())
	requireConsistent(t, g)

	s.Ptr(bx, top, bz).ID = world.BlockTypeAir
	require.True(t, e.SkyrayDownwards(s, bx, top, bz))
	assert.Equal(t, int16(floor), fd.SkyLevel)
	for y := floor; y <= top; y++ {
		assert.Equal(t, uint8(15), s.At(bx, y, bz).SkyLight(), "y=%d", y)
	}
	assert.Equal(t, uint8(0), s.At(bx, floor-1, bz).SkyLight())
	requireConsistent(t, g)

	assert.False(t, e.SkyrayDownwards(s, bx, floor-3, bz), "not the topmost block")
}

func TestSkyrayUnderRoof(t *testing.T) {
	g, e, _ := buildLitGrid(t, shelfGen{roof: true}, allSlots())
	s, bx, _, bz, err := g.Resolve(15, 0, 15)
	require.NoError(t, err)
	fd := g.Flat(s.X(), s.Z()).At(bx, bz)
	require.Equal(t, int16(16), fd.SkyLevel)

	s.Ptr(bx, 15, bz).ID = world.BlockTypeAir
	require.True(t, e.SkyrayDownwards(s, bx, 15, bz))
	assert.Equal(t, int16(15), fd.SkyLevel, "the slab below still blocks the column")
	assert.Equal(t, uint8(15), s.At(bx, 15, bz).SkyLight())
	requireConsistent(t, g)
}

func TestFloodIsIdempotent(t *testing.T) {
	g, e, sink := buildLitGrid(t, shelfGen{roof: true}, allSlots())
	before := sink.total()
	changes := e.Changes()

	for _, p := range [][3]int{{12, floor, 12}, {20, floor + 1, 20}, {3, 40, 40}, {16, floor, 31}} {
		e.FloodInto(p[0], p[1], p[2], world.ChannelSky)
		e.FloodInto(p[0], p[1], p[2], world.ChannelTorch)
		b := cellAt(g, p[0], p[1], p[2])
		e.FloodOutof(p[0], p[1], p[2], world.ChannelTorch, b.TorchLight())
	}
	assert.Equal(t, changes, e.Changes())
	assert.Equal(t, before, sink.total())
	requireConsistent(t, g)
}

func TestTouchesCrossSectorBorder(t *testing.T) {
	g, e, sink := buildLitGrid(t, shelfGen{}, allSlots())
	sink.touched = nil

	cellAt(g, 16, floor, 20).ID = world.BlockTypeTorch
	e.FloodOutof(16, floor, 20, world.ChannelTorch, 14)

	assert.Contains(t, sink.touched, g.Sector(1, 1))
	assert.Contains(t, sink.touched, g.Sector(0, 1), "light spilling west must be reported")
}

func TestUnlitSectorsBlockLight(t *testing.T) {
	g, e, _ := buildLitGrid(t, shelfGen{}, [][2]int{{1, 1}})
	cellAt(g, 16, floor, 20).ID = world.BlockTypeTorch
	e.FloodOutof(16, floor, 20, world.ChannelTorch, 14)

	assert.Equal(t, uint8(13), cellAt(g, 17, floor, 20).TorchLight())
	assert.Equal(t, uint8(0), cellAt(g, 15, floor, 20).TorchLight())
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestShiftDropsLightFromEvictedSectors(t *testing.T) {
	cases := []struct {
		name   string
		torchX int
		dir    int
		litX   int // grid-local x of a formerly lit cell after the shift
	}{
		// Torch in slot 0 on its +X face; old x=17 moves to local x=1.
		{name: "positive", torchX: 15, dir: 1, litX: 1},
		// Torch in slot 2 on its -X face; old x=30 moves to local x=46.
		{name: "negative", torchX: 32, dir: -1, litX: 46},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g, e, sink := buildLitGrid(t, shelfGen{roof: true}, allSlots())
			cellAt(g, tc.torchX, floor, 40).ID = world.BlockTypeTorch
			e.FloodOutof(tc.torchX, floor, 40, world.ChannelTorch, 14)
			requireConsistent(t, g)
			require.Equal(t, uint8(12), cellAt(g, tc.litX+16*tc.dir, floor, 40).TorchLight())

			sink.touched = nil
			g.Exclusive(func() {
				g.Rotate(world.AxisX, tc.dir)
				e.Shift(world.AxisX, tc.dir)
			})

			assert.Equal(t, uint8(0), cellAt(g, tc.litX, floor, 40).TorchLight())
			requireConsistent(t, g)
			assert.NotEmpty(t, sink.touched, "the trailing line must be remeshed when it lights again")
		})
	}
}

func TestShiftKeepsLightOfRemainingSources(t *testing.T) {
	g, e, _ := buildLitGrid(t, shelfGen{roof: true}, allSlots())
	// A torch just inside slot 1 lights across into slot 0.
	cellAt(g, 17, floor, 40).ID = world.BlockTypeTorch
	e.FloodOutof(17, floor, 40, world.ChannelTorch, 14)

	g.Exclusive(func() {
		g.Rotate(world.AxisX, 1)
		e.Shift(world.AxisX, 1)
	})

	assert.Equal(t, uint8(14), cellAt(g, 1, floor, 40).TorchLight())
	assert.Equal(t, uint8(13), cellAt(g, 0, floor, 40).TorchLight())
	assert.Equal(t, uint8(13), cellAt(g, 2, floor, 40).TorchLight())
	requireConsistent(t, g)
}
