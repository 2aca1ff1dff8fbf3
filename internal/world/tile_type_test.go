package world

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTileKindLayers(t *testing.T) {
	assert.Equal(t, LayerGround, KindEmpty.Layer())
	for _, ore := range Ores {
		assert.Equal(t, LayerOre, ore.Layer())
		assert.True(t, ore.Kind.IsOre())
	}
	for _, b := range []TileKind{KindPrinter3D, KindWireExtruder, KindWorker} {
		assert.Equal(t, LayerBuilding, b.Layer())
		assert.True(t, b.IsBuilding())
	}
	assert.Equal(t, LayerResource, KindResource.Layer())
	assert.Equal(t, LayerGround, TileKind(200).Layer(), "неизвестный тег считается землёй")
}

func TestParseTileKind(t *testing.T) {
	k, err := ParseTileKind(" Wire_Extruder ")
	require.NoError(t, err)
	assert.Equal(t, KindWireExtruder, k)

	_, err = ParseTileKind("conveyor")
	assert.Error(t, err)
}

func TestResourceStackCapacity(t *testing.T) {
	_, err := NewResourceStack(repeat(ResourceIron, MaxResourcePerTile+1)...)
	assert.ErrorIs(t, err, ErrResourceOverflow)

	_, err = NewResourceStack(ResourceNone)
	assert.Error(t, err)

	s, err := NewResourceStack(ResourceIron, ResourceWire)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Count)
	assert.Equal(t, []ResourceID{ResourceIron, ResourceWire}, s.Slice())
}

func TestTileTypeJSON(t *testing.T) {
	stack, err := NewResourceStack(ResourceSilicon, ResourceWire)
	require.NoError(t, err)

	data, err := json.Marshal(ResourceTile(stack))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"resource","resources":["silicon","wire"]}`, string(data))

	var decoded TileType
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ResourceTile(stack), decoded)

	data, err = json.Marshal(Worker)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"worker"}`, string(data))

	assert.Error(t, json.Unmarshal([]byte(`{"kind":"iron","resources":["wire"]}`), &decoded))
}
