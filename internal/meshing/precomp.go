package meshing

import (
	"math/bits"

	"seamcraft/internal/registry"
	"seamcraft/internal/world"
)

const (
	snapXZ = world.SectorSizeXZ + 2
)

// PartMesh holds the vertices of one part, one slice per shader class.
type PartMesh struct {
	Vertices [registry.NumShaderClasses][]Vertex
}

// Empty reports whether the part produced no geometry.
func (p *PartMesh) Empty() bool {
	for i := range p.Vertices {
		if len(p.Vertices[i]) > 0 {
			return false
		}
	}
	return true
}

// Precomp is an owned snapshot of one sector plus a one block border taken
// from its neighbours. Workers mesh it without touching the grid.
type Precomp struct {
	X, Z       int
	WX, WZ     int
	Generation uint64
	Seq        uint64
	Parts      uint16

	y0, y1 int
	snap   []world.Block
	colors [world.SectorSizeXZ * world.SectorSizeXZ]uint32

	quads []quad
	Mesh  [world.NumParts]PartMesh
}

// partRange returns the block rows [y0, y1) covered by the set bits.
func partRange(parts uint16) (int, int) {
	lo := bits.TrailingZeros16(parts)
	hi := 15 - bits.LeadingZeros16(parts)
	return lo * world.PartHeight, (hi + 1) * world.PartHeight
}

func (pc *Precomp) index(x, y, z int) int {
	return ((x+1)*snapXZ+(z+1))*(pc.y1-pc.y0+2) + (y - pc.y0 + 1)
}

// at reads the snapshot at sector-local coordinates. x and z may range over
// -1..16, y over y0-1..y1.
func (pc *Precomp) at(x, y, z int) world.Block {
	if y < 0 {
		return world.Block{ID: world.BlockTypeBedrock}
	}
	if y >= world.SectorSizeY {
		return world.Block{Light: world.MaxLight}
	}
	return pc.snap[pc.index(x, y, z)]
}

// HasPart reports whether part p was requested.
func (pc *Precomp) HasPart(p int) bool { return pc.Parts&(1<<p) != 0 }

// Capture copies the sector in slot (x, z) and its border into a new
// Precomp. The seam must be read-held; neighbour sectors are read-locked here.
func Capture(g *world.Grid, x, z int, parts uint16, seq uint64) *Precomp {
	s := g.Sector(x, z)
	if s == nil || parts == 0 {
		return nil
	}
	unlock := g.RLockRegion(x, z, 1)
	defer unlock()

	pc := &Precomp{
		X: x, Z: z,
		WX: s.WX(), WZ: s.WZ(),
		Generation: s.Generation(),
		Seq:        seq,
		Parts:      parts,
	}
	pc.y0, pc.y1 = partRange(parts)
	height := pc.y1 - pc.y0 + 2
	pc.snap = make([]world.Block, snapXZ*snapXZ*height)

	ylo, yhi := max(pc.y0-1, 0), min(pc.y1+1, world.SectorSizeY)
	for lx := -1; lx <= world.SectorSizeXZ; lx++ {
		for lz := -1; lz <= world.SectorSizeXZ; lz++ {
			src := s
			sx, sz := lx, lz
			if lx < 0 || lx >= world.SectorSizeXZ || lz < 0 || lz >= world.SectorSizeXZ {
				src = g.Sector(x+floorDiv16(lx), z+floorDiv16(lz))
				sx, sz = lx&15, lz&15
			}
			if src == nil || !src.Generated() {
				continue
			}
			for y := ylo; y < yhi; y++ {
				pc.snap[pc.index(lx, y, lz)] = src.At(sx, y, sz)
			}
		}
	}

	flat := g.Flat(x, z)
	for bx := 0; bx < world.SectorSizeXZ; bx++ {
		for bz := 0; bz < world.SectorSizeXZ; bz++ {
			pc.colors[bx*world.SectorSizeXZ+bz] = flat.At(bx, bz).Color
		}
	}
	return pc
}

func floorDiv16(v int) int { return v >> 4 }
