package world

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSectorWriteThenRead(t *testing.T) {
	g := newTestGrid(3)
	s := g.Sector(1, 1)
	r := rand.New(rand.NewSource(7))

	for i := 0; i < 2000; i++ {
		x, y, z := r.Intn(SectorSizeXZ), r.Intn(SectorSizeY), r.Intn(SectorSizeXZ)
		b := Block{ID: BlockType(r.Intn(int(NumBlockTypes))), Bits: uint8(r.Intn(256)), Light: uint8(r.Intn(256))}
		_, err := s.Set(x, y, z, b)
		require.NoError(t, err)
		got, err := s.Get(x, y, z)
		require.NoError(t, err)
		if got != b {
			t.Fatalf("read back %+v at (%d,%d,%d), wrote %+v", got, x, y, z, b)
		}
	}
}

func TestSectorBounds(t *testing.T) {
	g := newTestGrid(3)
	s := g.Sector(0, 0)

	_, err := s.Get(-1, 0, 0)
	assert.True(t, errors.Is(err, ErrOutOfBounds))
	_, err = s.Set(0, SectorSizeY, 0, Block{ID: BlockTypeStone})
	assert.True(t, errors.Is(err, ErrOutOfBounds))
	_, err = s.Get(0, 0, SectorSizeXZ)
	assert.True(t, errors.Is(err, ErrOutOfBounds))
	assert.Equal(t, 0, s.BlockCount())
}

func TestSectorCounters(t *testing.T) {
	g := newTestGrid(3)
	s := g.Sector(1, 1)

	_, _ = s.Set(1, 1, 1, Block{ID: BlockTypeStone})
	_, _ = s.Set(2, 1, 1, Block{ID: BlockTypeTorch})
	assert.Equal(t, 2, s.BlockCount())
	assert.Equal(t, 1, s.LightCount())

	// Replacing a non-air block keeps the block count.
	_, _ = s.Set(1, 1, 1, Block{ID: BlockTypeDirt})
	assert.Equal(t, 2, s.BlockCount())

	prev, _ := s.Set(2, 1, 1, Air)
	assert.Equal(t, BlockTypeTorch, prev.ID)
	assert.Equal(t, 1, s.BlockCount())
	assert.Equal(t, 0, s.LightCount())
}

func TestSectorInvalidate(t *testing.T) {
	g := NewGrid(GridOptions{Dim: 3, Info: testInfo{}, Persist: true})
	s := g.Sector(1, 1)
	_, _ = s.Set(3, 4, 5, Block{ID: BlockTypeStone, Light: 0xF0})
	s.SetAtmospherics(true)
	assert.True(t, s.NeedsSave())
	gen := s.Generation()

	s.Invalidate(40, -3)

	assert.Equal(t, Air, s.At(3, 4, 5))
	assert.Equal(t, ProgNeedGen, s.Progress())
	assert.False(t, s.Atmospherics())
	assert.False(t, s.NeedsSave())
	assert.Equal(t, 0, s.BlockCount())
	assert.Equal(t, gen+1, s.Generation())
	assert.Equal(t, 40, s.WX())
	assert.Equal(t, -3, s.WZ())
}

func TestBlockLightNibbles(t *testing.T) {
	var b Block
	b.SetSkyLight(12)
	b.SetTorchLight(7)
	assert.Equal(t, uint8(12), b.SkyLight())
	assert.Equal(t, uint8(7), b.TorchLight())

	b.SetChannel(ChannelSky, 40)
	assert.Equal(t, uint8(MaxLight), b.Channel(ChannelSky))
	assert.Equal(t, uint8(7), b.Channel(ChannelTorch))
}

func TestFlatlandSkyLevels(t *testing.T) {
	var d GenData
	d.Blocks = new([SectorVolume]Block)
	d.Fill(2, 3, 0, 10, BlockTypeStone)
	d.Set(2, 20, 3, BlockTypeGlass)
	d.Set(5, 5, 5, BlockTypeDirt)

	d.Flat.RecalcSkyLevels(d.Blocks, testInfo{})
	assert.Equal(t, int16(10), d.Flat.At(2, 3).SkyLevel)
	assert.Equal(t, int16(6), d.Flat.At(5, 5).SkyLevel)
	assert.Equal(t, int16(0), d.Flat.At(0, 0).SkyLevel)
}
