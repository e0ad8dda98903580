package lighting

import (
	"fmt"

	"seamcraft/internal/world"
)

// Mismatch is a cell whose stored light differs from a full recompute.
type Mismatch struct {
	X, Y, Z   int
	Channel   world.LightChannel
	Got, Want uint8
}

func (m Mismatch) String() string {
	ch := "sky"
	if m.Channel == world.ChannelTorch {
		ch = "torch"
	}
	return fmt.Sprintf("%s light at (%d,%d,%d) = %d, want %d", ch, m.X, m.Y, m.Z, m.Got, m.Want)
}

// Audit recomputes both channels of every lit sector from scratch and returns
// up to limit cells whose stored value differs. Callers must hold the seam
// exclusively or otherwise keep the grid still.
func Audit(g *world.Grid, limit int) []Mismatch {
	info := g.Info()
	size := g.Dim() * world.SectorSizeXZ
	idx := func(x, y, z int) int { return (x*size+z)*world.SectorSizeY + y }
	lit := func(x, y, z int) *world.Block {
		s, b := g.Cell(x, y, z)
		if s == nil || !s.Generated() || !s.Atmospherics() {
			return nil
		}
		return b
	}

	var out []Mismatch
	for _, ch := range []world.LightChannel{world.ChannelSky, world.ChannelTorch} {
		want := make([]uint8, size*size*world.SectorSizeY)
		var queue [][3]int
		for x := 0; x < size; x++ {
			for z := 0; z < size; z++ {
				for y := 0; y < world.SectorSizeY; y++ {
					b := lit(x, y, z)
					if b == nil {
						continue
					}
					var src uint8
					if ch == world.ChannelTorch {
						src = info.Emission(b.ID)
					} else if !info.IsOpaque(b.ID) && y >= int(g.FlatAt(x, z).SkyLevel) {
						src = world.MaxLight
					}
					if src > 0 {
						want[idx(x, y, z)] = src
						queue = append(queue, [3]int{x, y, z})
					}
				}
			}
		}
		for head := 0; head < len(queue); head++ {
			p := queue[head]
			level := want[idx(p[0], p[1], p[2])]
			if level <= 1 {
				continue
			}
			for _, off := range world.FaceOffsets {
				x, y, z := p[0]+off[0], p[1]+off[1], p[2]+off[2]
				b := lit(x, y, z)
				if b == nil || info.IsOpaque(b.ID) || want[idx(x, y, z)] >= level-1 {
					continue
				}
				want[idx(x, y, z)] = level - 1
				queue = append(queue, [3]int{x, y, z})
			}
		}
		for x := 0; x < size; x++ {
			for z := 0; z < size; z++ {
				for y := 0; y < world.SectorSizeY; y++ {
					b := lit(x, y, z)
					if b == nil {
						continue
					}
					if got, w := b.Channel(ch), want[idx(x, y, z)]; got != w {
						out = append(out, Mismatch{X: x, Y: y, Z: z, Channel: ch, Got: got, Want: w})
						if len(out) >= limit {
							return out
						}
					}
				}
			}
		}
	}
	return out
}
