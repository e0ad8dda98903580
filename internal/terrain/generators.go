package terrain

import (
	"math"

	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"

	"seamcraft/internal/world"
)

// FlatGenerator fills every column up to a fixed height.
type FlatGenerator struct {
	Height  int
	Terrain uint8
	Table   *Table
}

func (g *FlatGenerator) Generate(d *world.GenData) {
	h := max(1, min(g.Height, world.SectorSizeY-1))
	for x := 0; x < world.SectorSizeXZ; x++ {
		for z := 0; z < world.SectorSizeXZ; z++ {
			wx, wz := d.WX*world.SectorSizeXZ+x, d.WZ*world.SectorSizeXZ+z
			fillColumn(d, x, z, h, 0, world.BlockTypeGrass)
			fd := d.Flat.At(x, z)
			fd.GroundLevel = int16(h)
			fd.Terrain = g.Terrain
			if g.Table != nil {
				fd.Color = g.Table.Color(g.Terrain, world.BlockTypeGrass, wx, wz)
			}
		}
	}
}

// fillColumn lays bedrock, stone, three blocks of soil and a top block, then
// water up to sea level.
func fillColumn(d *world.GenData, x, z, height, sea int, top world.BlockType) {
	d.Set(x, 0, z, world.BlockTypeBedrock)
	soil := world.BlockTypeDirt
	if top == world.BlockTypeSand {
		soil = world.BlockTypeSand
	}
	d.Fill(x, z, 1, height-4, world.BlockTypeStone)
	d.Fill(x, z, max(height-4, 1), height-1, soil)
	if height > 1 {
		d.Set(x, height-1, z, top)
	}
	if sea > height {
		d.Fill(x, z, height, sea, world.BlockTypeWater)
	}
}

// NoiseGenerator derives heights from layered perlin noise and the terrain
// class from simplex noise.
type NoiseGenerator struct {
	BaseHeight int
	Amplitude  float64
	Scale      float64
	SeaLevel   int
	Table      *Table

	height  *perlin.Perlin
	climate opensimplex.Noise32
}

// NewNoiseGenerator builds a generator with default shaping for seed.
func NewNoiseGenerator(seed int64, table *Table) *NoiseGenerator {
	return &NoiseGenerator{
		BaseHeight: 64,
		Amplitude:  24,
		Scale:      1.0 / 96.0,
		SeaLevel:   58,
		Table:      table,
		height:     perlin.NewPerlin(2, 2, 3, seed),
		climate:    opensimplex.New32(seed ^ 0x5eed),
	}
}

// HeightAt computes the surface height (block Y) at world X,Z.
func (g *NoiseGenerator) HeightAt(wx, wz int) int {
	n := g.height.Noise2D(float64(wx)*g.Scale, float64(wz)*g.Scale)
	n += 0.25 * g.height.Noise2D(float64(wx)*g.Scale*4, float64(wz)*g.Scale*4)
	h := g.BaseHeight + int(math.Round(n*g.Amplitude))
	return max(2, min(h, world.SectorSizeY-2))
}

// TerrainAt picks the terrain class of a world column.
func (g *NoiseGenerator) TerrainAt(wx, wz int, height int) uint8 {
	if height >= g.BaseHeight+int(g.Amplitude*0.6) {
		return TerrainSnow
	}
	c := g.climate.Eval2(float32(wx)/256, float32(wz)/256)
	switch {
	case c > 0.35:
		return TerrainDesert
	case c < -0.2:
		return TerrainForest
	default:
		return TerrainPlains
	}
}

func (g *NoiseGenerator) Generate(d *world.GenData) {
	for x := 0; x < world.SectorSizeXZ; x++ {
		for z := 0; z < world.SectorSizeXZ; z++ {
			wx, wz := d.WX*world.SectorSizeXZ+x, d.WZ*world.SectorSizeXZ+z
			h := g.HeightAt(wx, wz)
			kind := g.TerrainAt(wx, wz, h)

			top := world.BlockTypeGrass
			switch {
			case h <= g.SeaLevel+1:
				top = world.BlockTypeSand
			case kind == TerrainDesert:
				top = world.BlockTypeSand
			case kind == TerrainSnow:
				top = world.BlockTypeSnow
			}
			fillColumn(d, x, z, h, g.SeaLevel, top)

			fd := d.Flat.At(x, z)
			fd.GroundLevel = int16(h)
			fd.Terrain = kind
			if g.Table != nil {
				fd.Color = g.Table.Color(kind, world.BlockTypeGrass, wx, wz)
			}
		}
	}
}
