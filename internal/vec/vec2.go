package vec

import "fmt"

// Vec2 представляет целочисленные 2D координаты (индексы сетки или
// координаты клетки относительно центра мира)
type Vec2 struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add складывает два вектора
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// InSquare проверяет, лежит ли точка в квадрате [0, size) x [0, size)
func (v Vec2) InSquare(size int) bool {
	return v.X >= 0 && v.X < size && v.Y >= 0 && v.Y < size
}

func (v Vec2) String() string {
	return fmt.Sprintf("(%d,%d)", v.X, v.Y)
}
