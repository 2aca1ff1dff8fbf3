package world

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MaxResourcePerTile - ёмкость буфера одной ресурсной стопки.
// Слияние стопок допустимо, только пока итог строго меньше этого значения.
const MaxResourcePerTile = 16

// TileKind - тег варианта содержимого клетки
type TileKind uint8

const (
	KindEmpty TileKind = iota

	// Руды
	KindCopper
	KindIron
	KindSilicon

	// Здания
	KindPrinter3D
	KindWireExtruder
	KindWorker

	// Произведённые ресурсы
	KindResource

	kindCount // всегда последний
)

var kindNames = [kindCount]string{
	KindEmpty:        "empty",
	KindCopper:       "copper",
	KindIron:         "iron",
	KindSilicon:      "silicon",
	KindPrinter3D:    "printer3d",
	KindWireExtruder: "wire_extruder",
	KindWorker:       "worker",
	KindResource:     "resource",
}

var kindLayers = [kindCount]Layer{
	KindEmpty:        LayerGround,
	KindCopper:       LayerOre,
	KindIron:         LayerOre,
	KindSilicon:      LayerOre,
	KindPrinter3D:    LayerBuilding,
	KindWireExtruder: LayerBuilding,
	KindWorker:       LayerBuilding,
	KindResource:     LayerResource,
}

// Layer возвращает слой варианта. Неизвестные значения считаются землёй.
func (k TileKind) Layer() Layer {
	if k >= kindCount {
		return LayerGround
	}
	return kindLayers[k]
}

// IsOre возвращает true для рудных вариантов
func (k TileKind) IsOre() bool { return k.Layer() == LayerOre }

// IsBuilding возвращает true для зданий (включая рабочего)
func (k TileKind) IsBuilding() bool { return k.Layer() == LayerBuilding }

// Valid проверяет, что значение входит в закрытый набор вариантов
func (k TileKind) Valid() bool { return k < kindCount }

func (k TileKind) String() string {
	if k >= kindCount {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// ParseTileKind разбирает имя варианта (регистр не важен)
func ParseTileKind(s string) (TileKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == name {
			return TileKind(k), nil
		}
	}
	return KindEmpty, fmt.Errorf("неизвестный тип клетки %q", s)
}

func (k TileKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("неизвестный тип клетки %d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *TileKind) UnmarshalText(text []byte) error {
	parsed, err := ParseTileKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ResourceID - вид единицы ресурса в ресурсной стопке
type ResourceID uint8

const (
	ResourceNone ResourceID = iota
	ResourceCopper
	ResourceIron
	ResourceSilicon
	ResourceWire

	resourceCount
)

var resourceNames = [resourceCount]string{
	ResourceNone:    "none",
	ResourceCopper:  "copper",
	ResourceIron:    "iron",
	ResourceSilicon: "silicon",
	ResourceWire:    "wire",
}

func (r ResourceID) String() string {
	if r >= resourceCount {
		return fmt.Sprintf("resource(%d)", uint8(r))
	}
	return resourceNames[r]
}

// ParseResourceID разбирает имя ресурса
func ParseResourceID(s string) (ResourceID, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for r, n := range resourceNames {
		if r != int(ResourceNone) && n == name {
			return ResourceID(r), nil
		}
	}
	return ResourceNone, fmt.Errorf("неизвестный ресурс %q", s)
}

func (r ResourceID) MarshalText() ([]byte, error) {
	if r == ResourceNone || r >= resourceCount {
		return nil, fmt.Errorf("недопустимый ресурс %d", uint8(r))
	}
	return []byte(r.String()), nil
}

func (r *ResourceID) UnmarshalText(text []byte) error {
	parsed, err := ParseResourceID(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ErrResourceOverflow возвращается, когда в буфер стопки не помещаются единицы
var ErrResourceOverflow = errors.New("ресурсная стопка переполнена")

// ResourceStack - ограниченный буфер ресурсов с фиксированной ёмкостью.
// Заполнены первые Count элементов Items.
type ResourceStack struct {
	Items [MaxResourcePerTile]ResourceID
	Count int
}

// NewResourceStack собирает стопку из перечисленных единиц
func NewResourceStack(items ...ResourceID) (ResourceStack, error) {
	var s ResourceStack
	if len(items) > MaxResourcePerTile {
		return s, fmt.Errorf("%w: %d единиц при ёмкости %d", ErrResourceOverflow, len(items), MaxResourcePerTile)
	}
	for _, it := range items {
		if it == ResourceNone || it >= resourceCount {
			return ResourceStack{}, fmt.Errorf("недопустимый ресурс %d", uint8(it))
		}
		s.Items[s.Count] = it
		s.Count++
	}
	return s, nil
}

// Slice возвращает копию занятой части буфера
func (s ResourceStack) Slice() []ResourceID {
	if s.Count <= 0 {
		return nil
	}
	n := s.Count
	if n > MaxResourcePerTile {
		n = MaxResourcePerTile
	}
	out := make([]ResourceID, n)
	copy(out, s.Items[:n])
	return out
}

// canAbsorb проверяет, что после слияния итог останется строго меньше ёмкости
func (s ResourceStack) canAbsorb(other ResourceStack) bool {
	return s.Count+other.Count < MaxResourcePerTile
}

// absorb копирует единицы other в конец буфера. Вызывать только после canAbsorb.
func (s *ResourceStack) absorb(other ResourceStack) {
	copy(s.Items[s.Count:], other.Items[:other.Count])
	s.Count += other.Count
}

// TileType - вариант содержимого клетки. Только KindResource несёт стопку.
// Значение сравнимо через ==.
type TileType struct {
	Kind  TileKind
	Stack ResourceStack
}

// Готовые варианты без полезной нагрузки
var (
	Empty        = TileType{Kind: KindEmpty}
	Copper       = TileType{Kind: KindCopper}
	Iron         = TileType{Kind: KindIron}
	Silicon      = TileType{Kind: KindSilicon}
	Printer3D    = TileType{Kind: KindPrinter3D}
	WireExtruder = TileType{Kind: KindWireExtruder}
	Worker       = TileType{Kind: KindWorker}
)

// Ores - рудные варианты в порядке равновероятного выбора при генерации
var Ores = [3]TileType{Copper, Iron, Silicon}

// ResourceTile возвращает вариант ресурсной стопки
func ResourceTile(stack ResourceStack) TileType {
	return TileType{Kind: KindResource, Stack: stack}
}

// Of возвращает вариант без нагрузки для указанного тега
func Of(kind TileKind) TileType {
	return TileType{Kind: kind}
}

// Layer возвращает слой варианта
func (t TileType) Layer() Layer { return t.Kind.Layer() }

func (t TileType) String() string {
	if t.Kind != KindResource {
		return t.Kind.String()
	}
	return fmt.Sprintf("resource[%d]", t.Stack.Count)
}

type tileTypeJSON struct {
	Kind      TileKind     `json:"kind"`
	Resources []ResourceID `json:"resources,omitempty"`
}

func (t TileType) MarshalJSON() ([]byte, error) {
	dto := tileTypeJSON{Kind: t.Kind}
	if t.Kind == KindResource {
		dto.Resources = t.Stack.Slice()
	}
	return json.Marshal(dto)
}

func (t *TileType) UnmarshalJSON(data []byte) error {
	var dto tileTypeJSON
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}
	out := TileType{Kind: dto.Kind}
	if dto.Kind == KindResource {
		stack, err := NewResourceStack(dto.Resources...)
		if err != nil {
			return err
		}
		out.Stack = stack
	} else if len(dto.Resources) > 0 {
		return fmt.Errorf("ресурсы допустимы только для типа %s", KindResource)
	}
	*t = out
	return nil
}
