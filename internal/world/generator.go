package world

// GenData is a private generation buffer. Workers fill it without touching
// the grid; the coordinator copies it into the sector on install.
type GenData struct {
	WX, WZ int
	Blocks *[SectorVolume]Block
	Flat   Flatland
	// Dirty marks data that differs from what persistence holds.
	Dirty bool
}

// NewGenData allocates an empty buffer.
func NewGenData() *GenData {
	return &GenData{Blocks: new([SectorVolume]Block)}
}

// Reset clears the buffer for reuse at new world coordinates.
func (g *GenData) Reset(wx, wz int) {
	g.WX, g.WZ = wx, wz
	clear(g.Blocks[:])
	g.Flat.Reset()
	g.Dirty = false
}

// Set writes a block id without bounds checks.
func (g *GenData) Set(x, y, z int, id BlockType) {
	g.Blocks[blockIndex(x, y, z)] = Block{ID: id}
}

// Get reads a block without bounds checks.
func (g *GenData) Get(x, y, z int) Block {
	return g.Blocks[blockIndex(x, y, z)]
}

// Fill writes id into the vertical range [y0, y1) of a column.
func (g *GenData) Fill(x, z, y0, y1 int, id BlockType) {
	base := blockIndex(x, 0, z)
	for y := max(y0, 0); y < min(y1, SectorSizeY); y++ {
		g.Blocks[base+y] = Block{ID: id}
	}
}

// Generator fills block data and the flatland cache for one sector.
// Implementations must be safe for concurrent use on distinct buffers.
type Generator interface {
	Generate(data *GenData)
}

// SectorLoader supplies previously persisted sectors.
type SectorLoader interface {
	// LoadSector fills dst and reports whether a stored copy existed.
	LoadSector(wx, wz int, dst *GenData) (bool, error)
}

// DirtyListener is notified about sectors that need saving.
type DirtyListener interface {
	OnSectorDirty(s *Sector)
	// OnSectorEvict is called with the seam held exclusively, right before a
	// dirty sector is invalidated by a rotation. flat is the sector's
	// flatland, already detached from its slot.
	OnSectorEvict(s *Sector, flat *Flatland)
}
