package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seamcraft/internal/world"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()
	for id := world.BlockType(0); id < world.NumBlockTypes; id++ {
		require.NotNil(t, r.Get(id), "block %d has no definition", id)
	}

	assert.False(t, r.IsOpaque(world.BlockTypeAir))
	assert.True(t, r.IsOpaque(world.BlockTypeStone))
	assert.False(t, r.IsOpaque(world.BlockTypeGlass))
	assert.True(t, r.IsOpaque(world.BlockTypeGlowstone))
	assert.Equal(t, uint8(14), r.Emission(world.BlockTypeTorch))
	assert.Equal(t, ShaderWater, r.Shader(world.BlockTypeWater))

	id, ok := r.ByName("leaves")
	require.True(t, ok)
	assert.Equal(t, world.BlockTypeLeaves, id)
}

func TestUnknownBlocksAreOpaque(t *testing.T) {
	r := Default()
	assert.Nil(t, r.Get(world.NumBlockTypes+3))
	assert.True(t, r.IsOpaque(world.NumBlockTypes+3))
	assert.Equal(t, uint8(0), r.Emission(world.NumBlockTypes+3))
}

func TestRegisterRejectsDuplicatesAndBadEmission(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&BlockDefinition{ID: world.BlockTypeStone, Name: "stone"}))
	assert.Error(t, r.Register(&BlockDefinition{ID: world.BlockTypeStone, Name: "stone2"}))
	assert.Error(t, r.Register(&BlockDefinition{ID: world.BlockTypeTorch, Name: "torch", Emission: 16}))
}
