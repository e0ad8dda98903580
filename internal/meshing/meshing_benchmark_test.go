package meshing

import (
	"testing"

	"seamcraft/internal/registry"
	"seamcraft/internal/world"
)

func BenchmarkCompileSector(b *testing.B) {
	reg := registry.Default()
	pc := newTestPrecomp(world.AllParts)
	for x := 0; x < 16; x++ {
		for z := 0; z < 16; z++ {
			h := 60 + (x*z)%9
			for y := 0; y < h; y++ {
				pc.put(x, y, z, world.Block{ID: world.BlockTypeStone})
			}
			pc.put(x, h, z, world.Block{ID: world.BlockTypeGrass})
		}
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Compile(pc, reg)
	}
}
