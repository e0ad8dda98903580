package meshing

import (
	"seamcraft/internal/profiling"
	"seamcraft/internal/registry"
	"seamcraft/internal/world"
)

// quad is a merged rectangle of equal faces within one part.
type quad struct {
	part   int
	face   world.BlockFace
	plane  int
	u0, v0 int
	du, dv int
	id     world.BlockType
	sky    uint8
	torch  uint8
	color  uint32
}

// faceAxis returns the normal axis (0 x, 1 y, 2 z) and sign of a face.
func faceAxis(f world.BlockFace) (int, int) {
	off := world.FaceOffsets[f]
	for a := 0; a < 3; a++ {
		if off[a] != 0 {
			return a, off[a]
		}
	}
	return 0, 0
}

// faceVisible decides whether b shows the face turned towards n.
func faceVisible(reg *registry.Registry, b, n world.Block) bool {
	if n.ID == world.BlockTypeAir {
		return true
	}
	if reg.IsOpaque(n.ID) {
		return false
	}
	if n.ID == b.ID {
		if def := reg.Get(b.ID); def != nil && def.CullSame {
			return false
		}
	}
	return true
}

const untinted = 0xFFFFFFFF

const maskSize = 16 * 16

func faceKey(id world.BlockType, sky, torch uint8, color uint32) uint64 {
	return uint64(id) | uint64(sky)<<16 | uint64(torch)<<20 | uint64(color)<<32
}

// Precompile runs the greedy pass over every requested part and records the
// merged quads on pc.
func Precompile(pc *Precomp, reg *registry.Registry) {
	defer profiling.Track("meshing.Precompile")()
	pc.quads = pc.quads[:0]
	var mask [maskSize]uint64
	for p := 0; p < world.NumParts; p++ {
		if !pc.HasPart(p) {
			continue
		}
		lo := [3]int{0, p * world.PartHeight, 0}
		for f := world.BlockFace(0); f < world.NumFaces; f++ {
			a, sign := faceAxis(f)
			u, v := (a+1)%3, (a+2)%3
			for d := 0; d < 16; d++ {
				clear(mask[:])
				var pos [3]int
				pos[a] = lo[a] + d
				for i := 0; i < 16; i++ {
					pos[u] = lo[u] + i
					for j := 0; j < 16; j++ {
						pos[v] = lo[v] + j
						b := pc.at(pos[0], pos[1], pos[2])
						if b.ID == world.BlockTypeAir {
							continue
						}
						npos := pos
						npos[a] += sign
						n := pc.at(npos[0], npos[1], npos[2])
						if !faceVisible(reg, b, n) {
							continue
						}
						color := uint32(untinted)
						if def := reg.Get(b.ID); def != nil && def.Tinted {
							color = pc.colors[pos[0]*world.SectorSizeXZ+pos[2]]
						}
						mask[i*16+j] = faceKey(b.ID, n.SkyLight(), n.TorchLight(), color)
					}
				}
				plane := lo[a] + d
				if sign > 0 {
					plane++
				}
				pc.mergeMask(&mask, p, f, plane, lo[u], lo[v])
			}
		}
	}
}

// mergeMask greedily grows rectangles of equal keys, widest along v first.
func (pc *Precomp) mergeMask(mask *[maskSize]uint64, part int, f world.BlockFace, plane, ubase, vbase int) {
	for i := 0; i < 16; i++ {
		for j := 0; j < 16; {
			key := mask[i*16+j]
			if key == 0 {
				j++
				continue
			}
			w := 1
			for j+w < 16 && mask[i*16+j+w] == key {
				w++
			}
			h := 1
		grow:
			for i+h < 16 {
				for k := 0; k < w; k++ {
					if mask[(i+h)*16+j+k] != key {
						break grow
					}
				}
				h++
			}
			for ii := i; ii < i+h; ii++ {
				for k := j; k < j+w; k++ {
					mask[ii*16+k] = 0
				}
			}
			pc.quads = append(pc.quads, quad{
				part:  part,
				face:  f,
				plane: plane,
				u0:    ubase + i,
				v0:    vbase + j,
				du:    h,
				dv:    w,
				id:    world.BlockType(key & 0xFFFF),
				sky:   uint8(key>>16) & 0x0F,
				torch: uint8(key>>20) & 0x0F,
				color: uint32(key >> 32),
			})
			j += w
		}
	}
}
