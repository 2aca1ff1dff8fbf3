package world

import (
	"github.com/Quantum1000/the-factory-must-grow/internal/vec"
	"github.com/google/uuid"
)

// TileSize - размер клетки в единицах мирового пространства отрисовки
const TileSize = 16.0

// DisplayHandle - непрозрачная ссылка на визуальный объект.
// Объектом владеет слой отрисовки; ядро только хранит ссылку.
type DisplayHandle = uuid.UUID

// NoHandle обозначает отсутствие визуального объекта
var NoHandle = uuid.Nil

// DisplayKind определяет, какой визуальный объект нужно создать
type DisplayKind uint8

const (
	DisplayOre DisplayKind = iota
	DisplayBuilding
	DisplayWorkerBase
	DisplayWorkerArm
	DisplayResource
)

func (k DisplayKind) String() string {
	switch k {
	case DisplayOre:
		return "ore"
	case DisplayBuilding:
		return "building"
	case DisplayWorkerBase:
		return "worker_base"
	case DisplayWorkerArm:
		return "worker_arm"
	case DisplayResource:
		return "resource"
	default:
		return "unknown"
	}
}

// DisplayRequest описывает визуальный объект для создания
type DisplayRequest struct {
	Kind     DisplayKind
	Tile     TileKind
	Texture  string
	Position vec.Vec2Float // мировая позиция; для дочернего объекта - смещение от родителя
	Rotation uint8         // четверти оборота
	Size     vec.Vec2Float
	Parent   DisplayHandle // NoHandle для корневых объектов
}

// DisplayFactory - внешний коллаборатор, создающий и уничтожающий визуальные объекты
type DisplayFactory interface {
	CreateDisplayObject(req DisplayRequest) DisplayHandle
	DestroyDisplayObject(h DisplayHandle)
}

var textures = map[TileKind]string{
	KindCopper:       "textures/Copper.png",
	KindIron:         "textures/Iron.png",
	KindSilicon:      "textures/Silicon.png",
	KindPrinter3D:    "textures/3D_Printer.png",
	KindWireExtruder: "textures/Wire_Extruder.png",
	KindWorker:       "textures/Worker_Base.png",
	KindResource:     "textures/Resource.png",
}

const workerArmTexture = "textures/Worker_Arm.png"

// TextureFor возвращает путь к текстуре варианта ("" для Empty)
func TextureFor(kind TileKind) string {
	return textures[kind]
}

// WorldPosition переводит координаты клетки в мировое пространство
func WorldPosition(pos vec.Vec2) vec.Vec2Float {
	return vec.FromVec2(pos).Mul(TileSize)
}
