package world_test

import (
	"crypto/sha256"
	"testing"

	"seamcraft/internal/terrain"
	"seamcraft/internal/world"
)

func TestGenDataFillClampsRange(t *testing.T) {
	d := world.NewGenData()
	d.Reset(3, -2)
	d.Fill(1, 2, -5, 3, world.BlockTypeStone)
	d.Fill(1, 2, world.SectorSizeY-2, world.SectorSizeY+10, world.BlockTypeGlass)

	for y := 0; y < 3; y++ {
		if b := d.Get(1, y, 2); b.ID != world.BlockTypeStone {
			t.Errorf("expected stone at y=%d, got %v", y, b.ID)
		}
	}
	if b := d.Get(1, 3, 2); b.ID != world.BlockTypeAir {
		t.Errorf("expected air at y=3, got %v", b.ID)
	}
	if b := d.Get(1, world.SectorSizeY-1, 2); b.ID != world.BlockTypeGlass {
		t.Errorf("expected glass at the top, got %v", b.ID)
	}

	d.Flat.At(1, 2).GroundLevel = 9
	d.Dirty = true
	d.Reset(4, 4)
	if d.WX != 4 || d.WZ != 4 {
		t.Errorf("reset kept coordinates %d,%d", d.WX, d.WZ)
	}
	if d.Dirty || d.Get(1, 0, 2).ID != world.BlockTypeAir || d.Flat.At(1, 2).GroundLevel != 0 {
		t.Errorf("reset left data behind")
	}
}

// hashGenData computes a SHA-256 hash of every block id in a buffer.
func hashGenData(d *world.GenData) [32]byte {
	h := sha256.New()
	for i := range d.Blocks {
		id := d.Blocks[i].ID
		h.Write([]byte{byte(id), byte(id >> 8)})
	}
	var result [32]byte
	copy(result[:], h.Sum(nil))
	return result
}

func TestNoiseGeneratorDeterminism(t *testing.T) {
	positions := [][2]int{{0, 0}, {1, 0}, {0, 1}, {-1, -1}, {40, -17}}
	for _, pos := range positions {
		var hashes [3][32]byte
		for i := range hashes {
			g := terrain.NewNoiseGenerator(12345, terrain.DefaultTable())
			d := world.NewGenData()
			d.Reset(pos[0], pos[1])
			g.Generate(d)
			hashes[i] = hashGenData(d)
		}
		for i := 1; i < len(hashes); i++ {
			if hashes[i] != hashes[0] {
				t.Errorf("sector (%d,%d) not deterministic: hash[0] != hash[%d]", pos[0], pos[1], i)
			}
		}
	}
}

func TestNoiseGeneratorTerrainShape(t *testing.T) {
	g := terrain.NewNoiseGenerator(1337, terrain.DefaultTable())
	d := world.NewGenData()
	d.Reset(0, 0)
	g.Generate(d)

	if b := d.Get(8, 0, 8); b.ID != world.BlockTypeBedrock {
		t.Errorf("expected bedrock at (8,0,8), got %v", b.ID)
	}
	if b := d.Get(8, world.SectorSizeY-1, 8); b.ID != world.BlockTypeAir {
		t.Errorf("expected air at the top of the column, got %v", b.ID)
	}
	if lvl := d.Flat.At(8, 8).GroundLevel; lvl <= 0 || int(lvl) >= world.SectorSizeY {
		t.Errorf("ground level %d out of range", lvl)
	}
}

func BenchmarkNoiseGenerate(b *testing.B) {
	g := terrain.NewNoiseGenerator(12345, terrain.DefaultTable())
	d := world.NewGenData()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.Reset(i%7, i%5)
		g.Generate(d)
	}
}
