package world

import (
	"errors"
	"fmt"

	"github.com/Quantum1000/the-factory-must-grow/internal/vec"
)

var (
	ErrNotGenerated     = errors.New("сетка ещё не сгенерирована")
	ErrAlreadyGenerated = errors.New("сетка уже сгенерирована")
	ErrOutOfBounds      = errors.New("координаты вне сетки")
	ErrInvalidOptions   = errors.New("недопустимые параметры генерации")
)

// GridState - состояние жизненного цикла сетки
type GridState uint8

const (
	StateUninitialized GridState = iota
	StateGenerated
)

func (s GridState) String() string {
	if s == StateGenerated {
		return "generated"
	}
	return "uninitialized"
}

// Placement sources
const (
	SourceWorldgen = "worldgen"
	SourcePlayer   = "player"
	SourceRestore  = "restore"
)

// PlacementEvent сообщает наблюдателям о попытке размещения на сетке
type PlacementEvent struct {
	Index    vec.Vec2 // индексы сетки
	Position vec.Vec2 // координаты клетки относительно центра
	Type     TileType
	Rotation uint8
	Outcome  Outcome
	Err      error // nil при успехе
	Source   string
	Occupied int // число занятых клеток после попытки
}

// PlacementObserver получает события размещения.
// Вызывается синхронно в потоке, выполняющем размещение.
type PlacementObserver interface {
	OnPlacement(ev PlacementEvent)
}

// Grid - квадратная сетка клеток фиксированного размера.
// Клетки хранятся плоским массивом и адресуются целочисленными индексами,
// соседи - плоскими индексами того же массива.
// Сетка не потокобезопасна: все изменения должен выполнять один писатель.
type Grid struct {
	size      int
	tiles     []Tile
	state     GridState
	display   DisplayFactory
	observers []PlacementObserver
	occupied  int

	seed       int64
	oreSpacing int
	oreMode    OreMode
}

// NewGrid создаёт несгенерированную сетку size x size
func NewGrid(size int) *Grid {
	return &Grid{size: size}
}

// Size возвращает длину стороны сетки
func (g *Grid) Size() int { return g.size }

// State возвращает состояние жизненного цикла
func (g *Grid) State() GridState { return g.state }

// Seed возвращает сид, с которым сетка была сгенерирована
func (g *Grid) Seed() int64 { return g.seed }

// Center возвращает индексы центральной клетки
func (g *Grid) Center() vec.Vec2 { return vec.Vec2{X: g.size / 2, Y: g.size / 2} }

// Observe подписывает наблюдателя на события размещения
func (g *Grid) Observe(o PlacementObserver) {
	g.observers = append(g.observers, o)
}

// Index вычисляет плоский индекс клетки по индексам сетки (i, j).
// Допустимы 0 <= i < size и 0 <= j < size; иначе возвращается NoTile.
func (g *Grid) Index(i, j int) TileIndex {
	if i < 0 || i >= g.size || j < 0 || j >= g.size {
		return NoTile
	}
	return TileIndex(i*g.size + j)
}

// Coords обратна Index
func (g *Grid) Coords(idx TileIndex) (vec.Vec2, bool) {
	if idx < 0 || int(idx) >= g.size*g.size {
		return vec.Vec2{}, false
	}
	return vec.Vec2{X: int(idx) / g.size, Y: int(idx) % g.size}, true
}

// InBounds проверяет индексы сетки
func (g *Grid) InBounds(p vec.Vec2) bool { return p.InSquare(g.size) }

// ToIndexCoords переводит координаты относительно центра в индексы сетки
func (g *Grid) ToIndexCoords(pos vec.Vec2) vec.Vec2 {
	return vec.Vec2{X: pos.X + g.size/2, Y: pos.Y + g.size/2}
}

// ToPosition переводит индексы сетки в координаты относительно центра
func (g *Grid) ToPosition(p vec.Vec2) vec.Vec2 {
	return vec.Vec2{X: p.X - g.size/2, Y: p.Y - g.size/2}
}

// Tile возвращает клетку по индексам сетки
func (g *Grid) Tile(p vec.Vec2) (*Tile, bool) {
	if g.state != StateGenerated {
		return nil, false
	}
	idx := g.Index(p.X, p.Y)
	if idx == NoTile {
		return nil, false
	}
	return &g.tiles[idx], true
}

// At возвращает клетку по плоскому индексу
func (g *Grid) At(idx TileIndex) (*Tile, bool) {
	if g.state != StateGenerated || idx < 0 || int(idx) >= len(g.tiles) {
		return nil, false
	}
	return &g.tiles[idx], true
}

// Occupied возвращает количество клеток с непустой стопкой
func (g *Grid) Occupied() int { return g.occupied }

// Each обходит все клетки в порядке плоского индекса
func (g *Grid) Each(fn func(idx TileIndex, t *Tile) bool) {
	for i := range g.tiles {
		if !fn(TileIndex(i), &g.tiles[i]) {
			return
		}
	}
}

// Push размещает tileType на клетке с индексами p от имени игрока
func (g *Grid) Push(p vec.Vec2, tileType TileType, rotation uint8) bool {
	_, err := g.Place(p, tileType, rotation)
	return err == nil
}

// Place размещает tileType на клетке с индексами p и уведомляет наблюдателей
func (g *Grid) Place(p vec.Vec2, tileType TileType, rotation uint8) (Outcome, error) {
	return g.place(p, tileType, rotation, SourcePlayer)
}

func (g *Grid) place(p vec.Vec2, tileType TileType, rotation uint8, source string) (Outcome, error) {
	if g.state != StateGenerated {
		return OutcomeNone, ErrNotGenerated
	}
	t, ok := g.Tile(p)
	if !ok {
		return OutcomeNone, fmt.Errorf("%w: %s при размере %d", ErrOutOfBounds, p, g.size)
	}

	wasEmpty := t.IsEmpty()
	outcome, err := t.Place(g.display, tileType, rotation)
	if err == nil {
		switch {
		case wasEmpty && !t.IsEmpty():
			g.occupied++
		case !wasEmpty && t.IsEmpty():
			g.occupied--
		}
	}

	if len(g.observers) > 0 {
		ev := PlacementEvent{
			Index:    p,
			Position: t.Position(),
			Type:     tileType,
			Rotation: rotation,
			Outcome:  outcome,
			Err:      err,
			Source:   source,
			Occupied: g.occupied,
		}
		for _, o := range g.observers {
			o.OnPlacement(ev)
		}
	}
	return outcome, err
}

// allocate создаёт клетки и связывает соседей
func (g *Grid) allocate(display DisplayFactory) {
	g.display = display
	g.tiles = make([]Tile, g.size*g.size)
	for i := 0; i < g.size; i++ {
		for j := 0; j < g.size; j++ {
			g.tiles[g.Index(i, j)] = newTile(g.ToPosition(vec.Vec2{X: i, Y: j}))
		}
	}
	// Соседей связываем вторым проходом, когда все клетки уже на месте
	for i := 0; i < g.size; i++ {
		for j := 0; j < g.size; j++ {
			t := &g.tiles[g.Index(i, j)]
			for _, d := range vec.Cardinals {
				off := d.Offset()
				t.neighbors[d] = g.Index(i+off.X, j+off.Y)
			}
		}
	}
	g.state = StateGenerated
}

// TileView - снимок клетки для чтения внешними системами
type TileView struct {
	Index     vec.Vec2                     `json:"index"`
	Position  vec.Vec2                     `json:"position"`
	Contents  []ContentView                `json:"contents"`
	Occupancy int                          `json:"occupancy"`
	Neighbors [vec.DirectionCount]*vec.Vec2 `json:"neighbors"`
}

// ContentView - запись стопки без визуальных ссылок
type ContentView struct {
	Type     TileType `json:"type"`
	Rotation uint8    `json:"rotation"`
}

// View возвращает снимок клетки с индексами p
func (g *Grid) View(p vec.Vec2) (TileView, bool) {
	t, ok := g.Tile(p)
	if !ok {
		return TileView{}, false
	}
	view := TileView{
		Index:     p,
		Position:  t.Position(),
		Contents:  make([]ContentView, 0, t.count),
		Occupancy: t.count,
	}
	for _, c := range t.contents[:t.count] {
		view.Contents = append(view.Contents, ContentView{Type: c.Type, Rotation: c.Rotation})
	}
	for d, idx := range t.neighbors {
		if n, ok := g.At(idx); ok {
			pos := n.Position()
			view.Neighbors[d] = &pos
		}
	}
	return view, true
}
