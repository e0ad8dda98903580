package world

// testInfo treats every non-air block as opaque; torch and glowstone emit.
type testInfo struct{}

func (testInfo) IsOpaque(id BlockType) bool {
	switch id {
	case BlockTypeAir, BlockTypeGlass, BlockTypeWater, BlockTypeLeaves, BlockTypeTorch:
		return false
	}
	return true
}

func (testInfo) Emission(id BlockType) uint8 {
	switch id {
	case BlockTypeTorch:
		return 14
	case BlockTypeGlowstone:
		return 15
	}
	return 0
}

// layerGen fills every column with stone below height.
type layerGen struct{ height int }

func (g layerGen) Generate(d *GenData) {
	for x := 0; x < SectorSizeXZ; x++ {
		for z := 0; z < SectorSizeXZ; z++ {
			d.Fill(x, z, 0, g.height, BlockTypeStone)
			d.Flat.At(x, z).GroundLevel = int16(g.height)
		}
	}
}

func newTestGrid(dim int) *Grid {
	return NewGrid(GridOptions{Dim: dim, Info: testInfo{}})
}
