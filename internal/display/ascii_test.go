package display

import (
	"strings"
	"testing"

	"github.com/Quantum1000/the-factory-must-grow/internal/vec"
	"github.com/Quantum1000/the-factory-must-grow/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderASCIIAroundCenter(t *testing.T) {
	g := world.NewGrid(16)
	_, err := g.Generate(world.GenerateOptions{OreSpacing: 16, Seed: 11}, world.NewRand(11), Nop{})
	require.NoError(t, err)

	out := RenderASCII(g, g.Center(), 1)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 3)
	for _, l := range lines {
		assert.Len(t, l, 3)
	}

	assert.Equal(t, byte('W'), lines[0][1], "рабочий над принтером")
	assert.Equal(t, "EPE", lines[1])
	assert.Equal(t, byte('E'), lines[2][1])
}

func TestRenderASCIIOutsideGrid(t *testing.T) {
	g := world.NewGrid(4)
	_, err := g.Generate(world.GenerateOptions{OreSpacing: 4, Seed: 1}, world.NewRand(1), nil)
	require.NoError(t, err)

	out := RenderASCII(g, vec.Vec2{X: 0, Y: 0}, 1)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "   ", lines[2], "строка ниже сетки пустая")
	assert.Equal(t, byte(' '), lines[0][0])
	assert.NotEqual(t, byte(' '), lines[1][1])

	assert.Equal(t, "", strings.TrimSpace(RenderASCII(world.NewGrid(4), vec.Vec2{}, 0)), "несгенерированная сетка рисуется пробелами")
}

func TestGlyph(t *testing.T) {
	assert.Equal(t, byte('.'), Glyph(world.KindEmpty))
	assert.Equal(t, byte('#'), Glyph(world.KindResource))
	assert.Equal(t, byte('?'), Glyph(world.TileKind(200)))
}
