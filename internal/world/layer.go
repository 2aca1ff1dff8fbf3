package world

// Layer определяет "этаж" содержимого внутри клетки.
// Содержимое стопки клетки снизу вверх идёт с неубывающим слоем.
//
// 0 – LayerGround: голая земля (пустая клетка);
// 1 – LayerOre: рудные залежи;
// 2 – LayerBuilding: здания и рабочие;
// 3 – LayerResource: стопки произведённых ресурсов.
type Layer uint8

const (
	LayerGround Layer = iota
	LayerOre
	LayerBuilding
	LayerResource
)

func (l Layer) String() string {
	switch l {
	case LayerGround:
		return "ground"
	case LayerOre:
		return "ore"
	case LayerBuilding:
		return "building"
	case LayerResource:
		return "resource"
	default:
		return "unknown"
	}
}
