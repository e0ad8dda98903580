package world

// FlatData caches per-column surface information.
type FlatData struct {
	GroundLevel int16
	// SkyLevel is one above the topmost opaque block, 0 for a column with none.
	SkyLevel int16
	Terrain  uint8
	Color    uint32
}

// Flatland holds the 16x16 column cache of one sector.
type Flatland struct {
	data [SectorSizeXZ * SectorSizeXZ]FlatData
}

func (f *Flatland) At(bx, bz int) *FlatData {
	return &f.data[bx*SectorSizeXZ+bz]
}

func (f *Flatland) Reset() {
	clear(f.data[:])
}

// RecalcSkyLevels derives every column's SkyLevel from the block payload.
func (f *Flatland) RecalcSkyLevels(blocks *[SectorVolume]Block, info BlockInfo) {
	for bx := 0; bx < SectorSizeXZ; bx++ {
		for bz := 0; bz < SectorSizeXZ; bz++ {
			f.At(bx, bz).SkyLevel = int16(columnSkyLevel(blocks, bx, bz, SectorSizeY, info))
		}
	}
}

// columnSkyLevel scans down from below top and returns one above the first
// opaque block found.
func columnSkyLevel(blocks *[SectorVolume]Block, bx, bz, top int, info BlockInfo) int {
	base := blockIndex(bx, 0, bz)
	for y := top - 1; y >= 0; y-- {
		if info.IsOpaque(blocks[base+y].ID) {
			return y + 1
		}
	}
	return 0
}

// ColumnSkyLevel scans the live sector column below top.
func (s *Sector) ColumnSkyLevel(bx, bz, top int) int {
	return columnSkyLevel(s.blocks, bx, bz, top, s.info)
}
