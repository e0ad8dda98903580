package registry

import (
	"fmt"

	"seamcraft/internal/world"
)

// ShaderClass selects the render pass a block's faces belong to.
type ShaderClass uint8

const (
	ShaderStandard ShaderClass = iota
	ShaderCutout
	ShaderWater
	ShaderEmissive

	NumShaderClasses
)

func (c ShaderClass) String() string {
	switch c {
	case ShaderStandard:
		return "standard"
	case ShaderCutout:
		return "cutout"
	case ShaderWater:
		return "water"
	case ShaderEmissive:
		return "emissive"
	default:
		return fmt.Sprintf("shader(%d)", uint8(c))
	}
}

// BlockDefinition defines the properties of a block type
type BlockDefinition struct {
	ID            world.BlockType
	Name          string
	IsSolid       bool
	IsTransparent bool
	// CullSame hides faces between two blocks of this type.
	CullSame bool
	Emission uint8
	Shader   ShaderClass
	// Tinted blocks take their colour from the terrain of their column.
	Tinted bool
	Tile   uint16
}

// Registry is a read-only lookup table once construction is done.
type Registry struct {
	defs  [world.NumBlockTypes]*BlockDefinition
	names map[string]world.BlockType
}

// New returns an empty registry holding only air.
func New() *Registry {
	r := &Registry{names: make(map[string]world.BlockType)}
	r.MustRegister(&BlockDefinition{ID: world.BlockTypeAir, Name: "air", IsTransparent: true})
	return r
}

// Register adds def. Ids are fixed at compile time so a duplicate is an error.
func (r *Registry) Register(def *BlockDefinition) error {
	if int(def.ID) >= len(r.defs) {
		return fmt.Errorf("block %q: id %d out of range", def.Name, def.ID)
	}
	if r.defs[def.ID] != nil {
		return fmt.Errorf("block %q: id %d already registered as %q", def.Name, def.ID, r.defs[def.ID].Name)
	}
	if def.Emission > world.MaxLight {
		return fmt.Errorf("block %q: emission %d above %d", def.Name, def.Emission, world.MaxLight)
	}
	r.defs[def.ID] = def
	r.names[def.Name] = def.ID
	return nil
}

func (r *Registry) MustRegister(def *BlockDefinition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Get returns the definition of id, or nil for unknown ids.
func (r *Registry) Get(id world.BlockType) *BlockDefinition {
	if int(id) >= len(r.defs) {
		return nil
	}
	return r.defs[id]
}

// ByName looks a block up by its registered name.
func (r *Registry) ByName(name string) (world.BlockType, bool) {
	id, ok := r.names[name]
	return id, ok
}

// IsOpaque reports whether light is blocked. Unknown ids are opaque.
func (r *Registry) IsOpaque(id world.BlockType) bool {
	def := r.Get(id)
	return def == nil || !def.IsTransparent
}

func (r *Registry) IsTransparent(id world.BlockType) bool { return !r.IsOpaque(id) }

func (r *Registry) IsSolid(id world.BlockType) bool {
	def := r.Get(id)
	return def != nil && def.IsSolid
}

func (r *Registry) Emission(id world.BlockType) uint8 {
	if def := r.Get(id); def != nil {
		return def.Emission
	}
	return 0
}

func (r *Registry) Shader(id world.BlockType) ShaderClass {
	if def := r.Get(id); def != nil {
		return def.Shader
	}
	return ShaderStandard
}

var _ world.BlockInfo = (*Registry)(nil)

var defaultRegistry = newDefault()

// Default returns the built-in block table.
func Default() *Registry { return defaultRegistry }

func newDefault() *Registry {
	r := New()
	for _, def := range []*BlockDefinition{
		{ID: world.BlockTypeBedrock, Name: "bedrock", IsSolid: true, Tile: 1},
		{ID: world.BlockTypeStone, Name: "stone", IsSolid: true, Tile: 2},
		{ID: world.BlockTypeDirt, Name: "dirt", IsSolid: true, Tile: 3},
		{ID: world.BlockTypeGrass, Name: "grass", IsSolid: true, Tinted: true, Tile: 4},
		{ID: world.BlockTypeSand, Name: "sand", IsSolid: true, Tile: 5},
		{ID: world.BlockTypeGravel, Name: "gravel", IsSolid: true, Tile: 6},
		{ID: world.BlockTypeSnow, Name: "snow", IsSolid: true, Tile: 7},
		{ID: world.BlockTypeWood, Name: "wood", IsSolid: true, Tile: 8},
		{ID: world.BlockTypeLeaves, Name: "leaves", IsSolid: true, IsTransparent: true, Shader: ShaderCutout, Tinted: true, Tile: 9},
		{ID: world.BlockTypeGlass, Name: "glass", IsSolid: true, IsTransparent: true, CullSame: true, Shader: ShaderCutout, Tile: 10},
		{ID: world.BlockTypeWater, Name: "water", IsTransparent: true, CullSame: true, Shader: ShaderWater, Tinted: true, Tile: 11},
		{ID: world.BlockTypeTorch, Name: "torch", IsTransparent: true, Emission: 14, Shader: ShaderEmissive, Tile: 12},
		{ID: world.BlockTypeGlowstone, Name: "glowstone", IsSolid: true, Emission: 15, Shader: ShaderEmissive, Tile: 13},
		{ID: world.BlockTypeLantern, Name: "lantern", IsSolid: true, IsTransparent: true, Emission: 12, Shader: ShaderEmissive, Tile: 14},
	} {
		r.MustRegister(def)
	}
	return r
}
