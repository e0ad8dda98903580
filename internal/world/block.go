package world

type BlockType uint16

const (
	BlockTypeAir BlockType = iota
	BlockTypeBedrock
	BlockTypeStone
	BlockTypeDirt
	BlockTypeGrass
	BlockTypeSand
	BlockTypeGravel
	BlockTypeSnow
	BlockTypeWood
	BlockTypeLeaves
	BlockTypeGlass
	BlockTypeWater
	BlockTypeTorch
	BlockTypeGlowstone
	BlockTypeLantern

	NumBlockTypes
)

// LightChannel selects one of the two light nibbles stored in a block.
type LightChannel uint8

const (
	ChannelSky LightChannel = iota
	ChannelTorch
)

const MaxLight = 15

// Block is a single voxel cell. Light holds sky in the low nibble and torch
// light in the high nibble.
type Block struct {
	ID    BlockType
	Bits  uint8
	Light uint8
}

// Air is the zero block with no light.
var Air = Block{}

func (b Block) IsAir() bool { return b.ID == BlockTypeAir }

func (b Block) SkyLight() uint8 { return b.Light & 0x0F }

func (b Block) TorchLight() uint8 { return b.Light >> 4 }

// Channel returns the light level of ch.
func (b Block) Channel(ch LightChannel) uint8 {
	if ch == ChannelSky {
		return b.Light & 0x0F
	}
	return b.Light >> 4
}

// SetChannel stores level (clamped to 15) into ch.
func (b *Block) SetChannel(ch LightChannel, level uint8) {
	if level > MaxLight {
		level = MaxLight
	}
	if ch == ChannelSky {
		b.Light = b.Light&0xF0 | level
		return
	}
	b.Light = b.Light&0x0F | level<<4
}

func (b *Block) SetSkyLight(level uint8) { b.SetChannel(ChannelSky, level) }

func (b *Block) SetTorchLight(level uint8) { b.SetChannel(ChannelTorch, level) }

// Facing is the low three bits of the bitfield.
func (b Block) Facing() uint8 { return b.Bits & 0x07 }

// Special is the upper five bits of the bitfield.
func (b Block) Special() uint8 { return b.Bits >> 3 }

// BlockFace enumerates the six axis aligned faces.
type BlockFace uint8

const (
	FaceEast BlockFace = iota // +X
	FaceWest                  // -X
	FaceTop                   // +Y
	FaceBottom                // -Y
	FaceSouth                 // +Z
	FaceNorth                 // -Z

	NumFaces
)

// FaceOffsets maps a face to the unit step towards its neighbour.
var FaceOffsets = [NumFaces][3]int{
	{1, 0, 0},
	{-1, 0, 0},
	{0, 1, 0},
	{0, -1, 0},
	{0, 0, 1},
	{0, 0, -1},
}

// BlockInfo answers the derived block properties the store needs.
type BlockInfo interface {
	IsOpaque(id BlockType) bool
	Emission(id BlockType) uint8
}
