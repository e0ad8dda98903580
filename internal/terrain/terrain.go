package terrain

import (
	"fmt"

	"go.uber.org/atomic"

	"seamcraft/internal/world"
)

// ColorClass selects which tint a terrain provides.
type ColorClass uint8

const (
	ColorGrass ColorClass = iota
	ColorFoliage
	ColorWater

	NumColorClasses
)

// ClassOf maps a tinted block to its colour class.
func ClassOf(id world.BlockType) ColorClass {
	switch id {
	case world.BlockTypeLeaves:
		return ColorFoliage
	case world.BlockTypeWater:
		return ColorWater
	default:
		return ColorGrass
	}
}

// Terrain describes one terrain kind.
type Terrain interface {
	ID() uint8
	Name() string
	// Color returns the packed RGBA tint for a block at world column (wx, wz).
	Color(id world.BlockType, class ColorClass, wx, wz int) uint32
	// Tick advances any animated terrain state.
	Tick(dt float64)
}

// Table dispatches terrain ids to implementations. It is filled at
// construction and read-only afterwards.
type Table struct {
	byID  [256]Terrain
	names map[string]uint8
	ids   []uint8
}

// NewTable registers ts; the first terrain is the fallback for unknown ids.
func NewTable(ts ...Terrain) (*Table, error) {
	if len(ts) == 0 {
		return nil, fmt.Errorf("terrain table needs at least one terrain")
	}
	t := &Table{names: make(map[string]uint8, len(ts))}
	for _, tr := range ts {
		id := tr.ID()
		if t.byID[id] != nil {
			return nil, fmt.Errorf("terrain %q: id %d already used by %q", tr.Name(), id, t.byID[id].Name())
		}
		t.byID[id] = tr
		t.names[tr.Name()] = id
		t.ids = append(t.ids, id)
	}
	for i := range t.byID {
		if t.byID[i] == nil {
			t.byID[i] = ts[0]
		}
	}
	return t, nil
}

// Get returns the terrain for id.
func (t *Table) Get(id uint8) Terrain { return t.byID[id] }

// Lookup finds a terrain id by name.
func (t *Table) Lookup(name string) (uint8, bool) {
	id, ok := t.names[name]
	return id, ok
}

// Len returns the number of registered terrains.
func (t *Table) Len() int { return len(t.ids) }

// Tick advances every registered terrain once.
func (t *Table) Tick(dt float64) {
	for _, id := range t.ids {
		t.byID[id].Tick(dt)
	}
}

// Color looks up the tint of a block through the table.
func (t *Table) Color(terrainID uint8, id world.BlockType, wx, wz int) uint32 {
	return t.byID[terrainID].Color(id, ClassOf(id), wx, wz)
}

// RGBA packs 8-bit channels.
func RGBA(r, g, b, a uint8) uint32 {
	return uint32(r) | uint32(g)<<8 | uint32(b)<<16 | uint32(a)<<24
}

// Basic is a terrain with fixed palette colours and a small positional jitter.
type Basic struct {
	TerrainID   uint8
	TerrainName string
	Palette     [NumColorClasses]uint32
	// Jitter varies each channel by up to this amount across columns.
	Jitter uint8
	// Sway animates water colour when non-zero.
	Sway float64

	phase atomic.Float64
}

func (b *Basic) ID() uint8    { return b.TerrainID }
func (b *Basic) Name() string { return b.TerrainName }

func (b *Basic) Tick(dt float64) {
	if b.Sway != 0 {
		p := b.phase.Load() + dt*b.Sway
		b.phase.Store(p - float64(int(p)))
	}
}

func (b *Basic) Color(_ world.BlockType, class ColorClass, wx, wz int) uint32 {
	c := b.Palette[class]
	if b.Jitter == 0 {
		return c
	}
	h := uint32(wx*73856093) ^ uint32(wz*19349663)
	j := int(h%uint32(2*int(b.Jitter)+1)) - int(b.Jitter)
	if class == ColorWater && b.Sway != 0 {
		j += int(b.phase.Load() * float64(b.Jitter))
	}
	return shade(c, j)
}

func shade(c uint32, d int) uint32 {
	ch := func(shift uint) uint32 {
		v := int(c>>shift&0xFF) + d
		v = max(0, min(255, v))
		return uint32(v) << shift
	}
	return ch(0) | ch(8) | ch(16) | c&0xFF000000
}

// Terrain ids of the default table.
const (
	TerrainPlains uint8 = iota
	TerrainForest
	TerrainDesert
	TerrainSnow
)

// DefaultTable returns plains, forest, desert and snow terrains.
func DefaultTable() *Table {
	t, err := NewTable(
		&Basic{TerrainID: TerrainPlains, TerrainName: "plains", Jitter: 6, Sway: 0.25, Palette: [NumColorClasses]uint32{
			RGBA(110, 180, 70, 255), RGBA(80, 150, 50, 255), RGBA(50, 90, 200, 200)}},
		&Basic{TerrainID: TerrainForest, TerrainName: "forest", Jitter: 8, Palette: [NumColorClasses]uint32{
			RGBA(80, 150, 60, 255), RGBA(50, 120, 40, 255), RGBA(40, 80, 170, 200)}},
		&Basic{TerrainID: TerrainDesert, TerrainName: "desert", Jitter: 4, Palette: [NumColorClasses]uint32{
			RGBA(190, 180, 90, 255), RGBA(170, 160, 80, 255), RGBA(60, 110, 190, 200)}},
		&Basic{TerrainID: TerrainSnow, TerrainName: "snow", Jitter: 3, Palette: [NumColorClasses]uint32{
			RGBA(230, 235, 240, 255), RGBA(120, 150, 130, 255), RGBA(70, 100, 160, 200)}},
	)
	if err != nil {
		panic(err)
	}
	return t
}
