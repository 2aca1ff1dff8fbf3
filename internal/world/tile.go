package world

import (
	"errors"
	"fmt"

	"github.com/Quantum1000/the-factory-must-grow/internal/vec"
)

// MaxTileContents - ёмкость стопки одной клетки
const MaxTileContents = 16

var (
	// ErrIllegalPlacement - нарушены правила слоёв, клетка занята
	// несовместимым слоем или слияние стопок превысило ёмкость.
	// Состояние клетки при этом не меняется.
	ErrIllegalPlacement = errors.New("недопустимое размещение")

	// ErrStackOverflow - попытка превысить ёмкость стопки клетки.
	// При соблюдении правил слоёв недостижимо; используется в panic.
	ErrStackOverflow = errors.New("переполнение стопки клетки")
)

// TileIndex - плоский индекс клетки в массиве сетки
type TileIndex int

// NoTile обозначает отсутствующего соседа
const NoTile TileIndex = -1

// Outcome описывает результат успешного Place
type Outcome uint8

const (
	OutcomeNone    Outcome = iota
	OutcomePlaced          // создана новая запись стопки
	OutcomeMerged          // ресурсы влиты в верхнюю стопку
	OutcomeRemoved         // снята верхняя запись
)

func (o Outcome) String() string {
	switch o {
	case OutcomePlaced:
		return "placed"
	case OutcomeMerged:
		return "merged"
	case OutcomeRemoved:
		return "removed"
	default:
		return "none"
	}
}

// TileContent - одна запись стопки клетки.
// Одна установка владеет одним или двумя визуальными объектами:
// Handle всегда задан, Arm - только у рабочего.
type TileContent struct {
	Handle   DisplayHandle
	Arm      DisplayHandle
	Type     TileType
	Rotation uint8
}

// Handles возвращает все визуальные объекты записи, дочерние первыми
func (c TileContent) Handles() []DisplayHandle {
	hs := make([]DisplayHandle, 0, 2)
	if c.Arm != NoHandle {
		hs = append(hs, c.Arm)
	}
	if c.Handle != NoHandle {
		hs = append(hs, c.Handle)
	}
	return hs
}

// Tile - ограниченная стопка содержимого одной клетки.
// contents[0:count) заполнены, слой не убывает снизу вверх.
type Tile struct {
	pos       vec.Vec2
	contents  [MaxTileContents]TileContent
	count     int
	neighbors [vec.DirectionCount]TileIndex
}

func newTile(pos vec.Vec2) Tile {
	t := Tile{pos: pos}
	for i := range t.neighbors {
		t.neighbors[i] = NoTile
	}
	return t
}

// Position возвращает координаты клетки относительно центра мира
func (t *Tile) Position() vec.Vec2 { return t.pos }

// Len возвращает количество занятых записей стопки
func (t *Tile) Len() int { return t.count }

// IsEmpty возвращает true, если в стопке нет записей
func (t *Tile) IsEmpty() bool { return t.count == 0 }

// Contents возвращает копию занятой части стопки, снизу вверх
func (t *Tile) Contents() []TileContent {
	out := make([]TileContent, t.count)
	copy(out, t.contents[:t.count])
	return out
}

// Top возвращает верхнюю запись стопки
func (t *Tile) Top() (TileContent, bool) {
	if t.count == 0 {
		return TileContent{}, false
	}
	return t.contents[t.count-1], true
}

// TopType возвращает тип верхней записи или Empty
func (t *Tile) TopType() TileType {
	if top, ok := t.Top(); ok {
		return top.Type
	}
	return Empty
}

// Neighbor возвращает индекс соседа в направлении d
func (t *Tile) Neighbor(d vec.Direction) (TileIndex, bool) {
	if d >= vec.DirectionCount {
		return NoTile, false
	}
	idx := t.neighbors[d]
	return idx, idx != NoTile
}

// Push кладёт tileType на вершину стопки (или снимает верхнюю запись для Empty).
// Возвращает false, если размещение недопустимо; клетка при этом не меняется.
func (t *Tile) Push(df DisplayFactory, tileType TileType, rotation uint8) bool {
	_, err := t.Place(df, tileType, rotation)
	return err == nil
}

// Place - форма Push с причиной отказа. Ошибки оборачивают ErrIllegalPlacement.
// Коллаборатор отрисовки вызывается только после проверки допустимости.
func (t *Tile) Place(df DisplayFactory, tileType TileType, rotation uint8) (Outcome, error) {
	prev := t.TopType()
	kind := tileType.Kind

	switch {
	case kind == KindEmpty:
		return t.pop(df)

	case kind.IsOre():
		if t.count != 0 {
			return OutcomeNone, fmt.Errorf("%w: руда %s требует пустую клетку, сверху %s", ErrIllegalPlacement, kind, prev.Kind)
		}
		t.mustHaveRoom()
		h := createObject(df, t.request(DisplayOre, kind, rotation))
		t.append(TileContent{Handle: h, Type: tileType, Rotation: rotation})
		return OutcomePlaced, nil

	case kind.IsBuilding():
		if prev.Layer() >= LayerBuilding {
			return OutcomeNone, fmt.Errorf("%w: здание %s нельзя ставить на %s", ErrIllegalPlacement, kind, prev.Kind)
		}
		t.mustHaveRoom()
		content := TileContent{Type: tileType, Rotation: rotation}
		if kind == KindWorker {
			content.Handle = createObject(df, t.request(DisplayWorkerBase, kind, rotation))
			content.Arm = createObject(df, DisplayRequest{
				Kind:     DisplayWorkerArm,
				Tile:     kind,
				Texture:  workerArmTexture,
				Position: vec.Vec2Float{X: 0, Y: TileSize / 2},
				Size:     vec.Vec2Float{X: TileSize, Y: TileSize * 2},
				Parent:   content.Handle,
			})
		} else {
			content.Handle = createObject(df, t.request(DisplayBuilding, kind, rotation))
		}
		t.append(content)
		return OutcomePlaced, nil

	case kind == KindResource:
		incoming := tileType.Stack
		if incoming.Count <= 0 || incoming.Count > MaxResourcePerTile {
			return OutcomeNone, fmt.Errorf("%w: ресурсная стопка с количеством %d", ErrIllegalPlacement, incoming.Count)
		}
		if prev.Kind == KindResource {
			top := &t.contents[t.count-1]
			if !top.Type.Stack.canAbsorb(incoming) {
				return OutcomeNone, fmt.Errorf("%w: %d + %d ресурсов не меньше ёмкости %d",
					ErrIllegalPlacement, top.Type.Stack.Count, incoming.Count, MaxResourcePerTile)
			}
			top.Type.Stack.absorb(incoming)
			return OutcomeMerged, nil
		}
		t.mustHaveRoom()
		h := createObject(df, t.request(DisplayResource, kind, rotation))
		t.append(TileContent{Handle: h, Type: tileType, Rotation: rotation})
		return OutcomePlaced, nil

	default:
		return OutcomeNone, fmt.Errorf("%w: неизвестный тип %s", ErrIllegalPlacement, kind)
	}
}

// pop снимает верхнюю запись и уничтожает её визуальные объекты
func (t *Tile) pop(df DisplayFactory) (Outcome, error) {
	if t.count == 0 {
		return OutcomeNone, fmt.Errorf("%w: клетка %s уже пуста", ErrIllegalPlacement, t.pos)
	}
	top := t.contents[t.count-1]
	t.contents[t.count-1] = TileContent{}
	t.count--
	if df != nil {
		for _, h := range top.Handles() {
			df.DestroyDisplayObject(h)
		}
	}
	return OutcomeRemoved, nil
}

func (t *Tile) mustHaveRoom() {
	if t.count >= MaxTileContents {
		panic(fmt.Errorf("%w: клетка %s, %d записей", ErrStackOverflow, t.pos, t.count))
	}
}

func (t *Tile) append(c TileContent) {
	t.contents[t.count] = c
	t.count++
}

func (t *Tile) request(kind DisplayKind, tile TileKind, rotation uint8) DisplayRequest {
	return DisplayRequest{
		Kind:     kind,
		Tile:     tile,
		Texture:  TextureFor(tile),
		Position: WorldPosition(t.pos),
		Rotation: rotation,
		Size:     vec.Vec2Float{X: TileSize, Y: TileSize},
		Parent:   NoHandle,
	}
}

func createObject(df DisplayFactory, req DisplayRequest) DisplayHandle {
	if df == nil {
		return NoHandle
	}
	return df.CreateDisplayObject(req)
}

// checkInvariants проверяет ограничения стопки
func (t *Tile) checkInvariants() error {
	if t.count < 0 || t.count > MaxTileContents {
		return fmt.Errorf("клетка %s: недопустимое количество записей %d", t.pos, t.count)
	}
	for i := 1; i < t.count; i++ {
		if t.contents[i].Type.Layer() < t.contents[i-1].Type.Layer() {
			return fmt.Errorf("клетка %s: слой убывает на позиции %d", t.pos, i)
		}
	}
	for i := t.count; i < MaxTileContents; i++ {
		if t.contents[i] != (TileContent{}) {
			return fmt.Errorf("клетка %s: запись %d за пределами стопки не пуста", t.pos, i)
		}
	}
	return nil
}
