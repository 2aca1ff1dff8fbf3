package display

import (
	"strings"

	"github.com/Quantum1000/the-factory-must-grow/internal/vec"
	"github.com/Quantum1000/the-factory-must-grow/internal/world"
)

var glyphs = map[world.TileKind]byte{
	world.KindEmpty:        '.',
	world.KindCopper:       'c',
	world.KindIron:         'i',
	world.KindSilicon:      's',
	world.KindPrinter3D:    'P',
	world.KindWireExtruder: 'E',
	world.KindWorker:       'W',
	world.KindResource:     '#',
}

// Glyph возвращает символ верхней записи стопки
func Glyph(kind world.TileKind) byte {
	if g, ok := glyphs[kind]; ok {
		return g
	}
	return '?'
}

// RenderASCII рисует квадрат сетки с центром center (индексы сетки) и радиусом radius.
// Верхняя строка соответствует наибольшему Y. Клетки вне сетки выводятся пробелом.
func RenderASCII(g *world.Grid, center vec.Vec2, radius int) string {
	if radius < 0 {
		radius = 0
	}
	var sb strings.Builder
	side := 2*radius + 1
	sb.Grow(side * (side + 1))

	for y := center.Y + radius; y >= center.Y-radius; y-- {
		for x := center.X - radius; x <= center.X+radius; x++ {
			t, ok := g.Tile(vec.Vec2{X: x, Y: y})
			if !ok {
				sb.WriteByte(' ')
				continue
			}
			sb.WriteByte(Glyph(t.TopType().Kind))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
