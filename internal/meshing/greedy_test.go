package meshing

import (
	"testing"

	"seamcraft/internal/registry"
	"seamcraft/internal/world"
)

// newTestPrecomp returns an all-air snapshot covering parts.
func newTestPrecomp(parts uint16) *Precomp {
	pc := &Precomp{Parts: parts}
	pc.y0, pc.y1 = partRange(parts)
	pc.snap = make([]world.Block, snapXZ*snapXZ*(pc.y1-pc.y0+2))
	return pc
}

func (pc *Precomp) put(x, y, z int, b world.Block) {
	pc.snap[pc.index(x, y, z)] = b
}

func countFaces(pc *Precomp, face world.BlockFace) int {
	n := 0
	for i := range pc.Mesh {
		for c := range pc.Mesh[i].Vertices {
			for _, v := range pc.Mesh[i].Vertices[c] {
				if v.Face == uint8(face) {
					n++
				}
			}
		}
	}
	return n
}

func TestSingleBlockMesh(t *testing.T) {
	pc := newTestPrecomp(1)
	pc.put(4, 3, 4, world.Block{ID: world.BlockTypeStone})
	Compile(pc, registry.Default())

	if got := pc.VertexCount(); got != 24 {
		t.Fatalf("single block: got %d vertices, want 24", got)
	}
	for _, v := range pc.Mesh[0].Vertices[registry.ShaderStandard] {
		if v.AO != 3 {
			t.Fatalf("isolated block vertex %+v has AO %d, want 3", v, v.AO)
		}
	}
	for p := 1; p < world.NumParts; p++ {
		if !pc.Mesh[p].Empty() {
			t.Fatalf("part %d should be empty", p)
		}
	}
}

func TestTwoBlocksTouchingGreedy(t *testing.T) {
	pc := newTestPrecomp(1)
	pc.put(0, 3, 0, world.Block{ID: world.BlockTypeStone})
	pc.put(1, 3, 0, world.Block{ID: world.BlockTypeStone})
	Compile(pc, registry.Default())

	// Union is a 2x1x1 cuboid.
	if got := pc.VertexCount(); got != 24 {
		t.Fatalf("two touching blocks: got %d vertices, want 24", got)
	}
}

func TestFullLayerMergesToFiveQuads(t *testing.T) {
	pc := newTestPrecomp(1)
	for x := 0; x < 16; x++ {
		for z := 0; z < 16; z++ {
			pc.put(x, 0, z, world.Block{ID: world.BlockTypeStone})
		}
	}
	Compile(pc, registry.Default())

	// Top plus four sides; the bottom faces bedrock.
	if got := pc.VertexCount(); got != 5*4 {
		t.Fatalf("full layer: got %d vertices, want 20", got)
	}
	if got := countFaces(pc, world.FaceBottom); got != 0 {
		t.Fatalf("bottom faces against bedrock: got %d vertices", got)
	}
}

func TestLightSplitsMerge(t *testing.T) {
	pc := newTestPrecomp(1)
	for x := 0; x < 16; x++ {
		for z := 0; z < 16; z++ {
			pc.put(x, 0, z, world.Block{ID: world.BlockTypeStone})
			if x < 8 {
				var air world.Block
				air.SetSkyLight(world.MaxLight)
				pc.put(x, 1, z, air)
			}
		}
	}
	Compile(pc, registry.Default())

	if got := countFaces(pc, world.FaceTop); got != 2*4 {
		t.Fatalf("top faces under two light levels: got %d vertices, want 8", got)
	}
}

func TestCrossSectorFaceCulling(t *testing.T) {
	pc := newTestPrecomp(1)
	pc.put(15, 0, 0, world.Block{ID: world.BlockTypeStone})
	// Border cell sampled from the +X neighbour.
	pc.put(16, 0, 0, world.Block{ID: world.BlockTypeStone})
	Compile(pc, registry.Default())

	if got := countFaces(pc, world.FaceEast); got != 0 {
		t.Fatalf("east face against neighbour block: got %d vertices", got)
	}
	// Bottom faces bedrock, east faces the neighbour.
	if got := pc.VertexCount(); got != 16 {
		t.Fatalf("got %d vertices, want 16", got)
	}
}

func TestCullSameHidesInnerFaces(t *testing.T) {
	pc := newTestPrecomp(1)
	pc.put(2, 2, 2, world.Block{ID: world.BlockTypeGlass})
	pc.put(3, 2, 2, world.Block{ID: world.BlockTypeGlass})
	pc.put(5, 2, 2, world.Block{ID: world.BlockTypeLeaves})
	pc.put(6, 2, 2, world.Block{ID: world.BlockTypeLeaves})
	Compile(pc, registry.Default())

	cutout := len(pc.Mesh[0].Vertices[registry.ShaderCutout])
	// Glass merges into one cuboid; leaves keep their two inner faces.
	if want := 24 + 8*4; cutout != want {
		t.Fatalf("cutout vertices: got %d, want %d", cutout, want)
	}
}

func TestAmbientOcclusionCorner(t *testing.T) {
	pc := newTestPrecomp(1)
	pc.put(5, 0, 5, world.Block{ID: world.BlockTypeStone})
	pc.put(6, 1, 5, world.Block{ID: world.BlockTypeStone})
	Compile(pc, registry.Default())

	occluded := 0
	for _, v := range pc.Mesh[0].Vertices[registry.ShaderStandard] {
		if v.Face != uint8(world.FaceTop) || v.Y != 1 {
			continue
		}
		if v.X == 6 {
			if v.AO != 2 {
				t.Fatalf("corner beside raised block: AO %d, want 2", v.AO)
			}
			occluded++
		} else if v.AO != 3 {
			t.Fatalf("open corner: AO %d, want 3", v.AO)
		}
	}
	if occluded != 2 {
		t.Fatalf("got %d occluded top corners, want 2", occluded)
	}
}

func TestOnlyRequestedPartsAreMeshed(t *testing.T) {
	pc := newTestPrecomp(1 << 2)
	pc.put(0, 34, 0, world.Block{ID: world.BlockTypeStone})
	Compile(pc, registry.Default())

	if pc.Mesh[2].Empty() {
		t.Fatal("part 2 should have geometry")
	}
	if got := pc.VertexCount(); got != 24 {
		t.Fatalf("got %d vertices, want 24", got)
	}
}

func TestVertexEncodeDecode(t *testing.T) {
	v := Vertex{X: -1, Y: 256, Z: 16, Face: 5, AO: 2, Sky: 15, Torch: 3, Tile: 513, Color: 0xAABBCCDD}
	buf := make([]byte, VertexSize)
	v.Put(buf)
	if got := DecodeVertex(buf); got != v {
		t.Fatalf("decode: got %+v, want %+v", got, v)
	}
}
