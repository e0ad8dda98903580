package terrain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seamcraft/internal/world"
)

func TestTableDispatch(t *testing.T) {
	tbl := DefaultTable()
	assert.Equal(t, 4, tbl.Len())
	assert.Equal(t, "desert", tbl.Get(TerrainDesert).Name())
	assert.Equal(t, "plains", tbl.Get(200).Name(), "unknown ids fall back to the first terrain")

	id, ok := tbl.Lookup("snow")
	require.True(t, ok)
	assert.Equal(t, TerrainSnow, id)

	c1 := tbl.Color(TerrainPlains, world.BlockTypeGrass, 10, 10)
	c2 := tbl.Color(TerrainPlains, world.BlockTypeGrass, 10, 10)
	assert.Equal(t, c1, c2, "colours are deterministic per column")
	tbl.Tick(0.5)
}

func TestTableRejectsDuplicateIDs(t *testing.T) {
	_, err := NewTable(&Basic{TerrainID: 1, TerrainName: "a"}, &Basic{TerrainID: 1, TerrainName: "b"})
	assert.Error(t, err)
	_, err = NewTable()
	assert.Error(t, err)
}

func TestFlatGenerator(t *testing.T) {
	g := &FlatGenerator{Height: 10, Table: DefaultTable()}
	d := world.NewGenData()
	d.Reset(3, -2)
	g.Generate(d)

	assert.Equal(t, world.BlockTypeBedrock, d.Get(0, 0, 0).ID)
	assert.Equal(t, world.BlockTypeStone, d.Get(4, 5, 4).ID)
	assert.Equal(t, world.BlockTypeGrass, d.Get(4, 9, 4).ID)
	assert.True(t, d.Get(4, 10, 4).IsAir())
	assert.Equal(t, int16(10), d.Flat.At(4, 4).GroundLevel)
	assert.NotZero(t, d.Flat.At(4, 4).Color)
}

func TestNoiseGeneratorDeterministic(t *testing.T) {
	a := NewNoiseGenerator(42, DefaultTable())
	b := NewNoiseGenerator(42, DefaultTable())
	da, db := world.NewGenData(), world.NewGenData()
	da.Reset(5, 7)
	db.Reset(5, 7)
	a.Generate(da)
	b.Generate(db)

	require.Equal(t, *da.Blocks, *db.Blocks)
	for x := 0; x < world.SectorSizeXZ; x++ {
		for z := 0; z < world.SectorSizeXZ; z++ {
			h := int(da.Flat.At(x, z).GroundLevel)
			assert.False(t, da.Get(x, h-1, z).IsAir(), "surface block at %d,%d", x, z)
		}
	}
}
