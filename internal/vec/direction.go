package vec

// Direction задаёт одно из четырёх кардинальных направлений.
// Порядок значений совпадает с порядком слотов соседей у клетки.
type Direction uint8

const (
	North Direction = iota // +Y
	East                   // +X
	South                  // -Y
	West                   // -X

	DirectionCount // всегда последний: количество направлений
)

// Cardinals перечисляет направления в порядке слотов соседей
var Cardinals = [DirectionCount]Direction{North, East, South, West}

var offsets = [DirectionCount]Vec2{
	North: {X: 0, Y: 1},
	East:  {X: 1, Y: 0},
	South: {X: 0, Y: -1},
	West:  {X: -1, Y: 0},
}

// Offset возвращает единичный шаг в направлении
func (d Direction) Offset() Vec2 {
	if d >= DirectionCount {
		return Vec2{}
	}
	return offsets[d]
}

// Opposite возвращает противоположное направление
func (d Direction) Opposite() Direction {
	return (d + 2) % DirectionCount
}

func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case East:
		return "east"
	case South:
		return "south"
	case West:
		return "west"
	default:
		return "unknown"
	}
}
