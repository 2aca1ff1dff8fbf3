package vec

// Vec2Float представляет 2D координаты с плавающей точкой (мировое пространство отрисовки)
type Vec2Float struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FromVec2 создает Vec2Float из Vec2
func FromVec2(v Vec2) Vec2Float {
	return Vec2Float{X: float64(v.X), Y: float64(v.Y)}
}

// Mul умножает вектор на скаляр
func (v Vec2Float) Mul(scalar float64) Vec2Float {
	return Vec2Float{X: v.X * scalar, Y: v.Y * scalar}
}
