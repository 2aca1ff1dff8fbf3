package world

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/Quantum1000/the-factory-must-grow/internal/vec"
	"github.com/aquilax/go-perlin"
)

// Константы генерации
const (
	DefaultGridSize   = 512
	DefaultOreSpacing = 32
	MaxVeinSteps      = 32 // максимальная длина случайного блуждания жилы
)

// Rand - источник равномерных целых чисел на [0, n). *rand.Rand ему удовлетворяет.
type Rand interface {
	Intn(n int) int
}

// NewRand создаёт детерминированный генератор для сида
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// OreMode определяет способ выбора руды для ячейки рассева
type OreMode string

const (
	OreModeUniform OreMode = "uniform" // равновероятный выбор из Ores
	OreModePerlin  OreMode = "perlin"  // руда по полю шума Перлина: рудные провинции
)

// ParseOreMode разбирает режим; пустая строка означает uniform
func ParseOreMode(s string) (OreMode, error) {
	switch OreMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", OreModeUniform:
		return OreModeUniform, nil
	case OreModePerlin:
		return OreModePerlin, nil
	default:
		return "", fmt.Errorf("%w: неизвестный режим руды %q", ErrInvalidOptions, s)
	}
}

// GenerateOptions - параметры генерации мира
type GenerateOptions struct {
	OreSpacing int     // размер стороны ячейки рассева руды
	OreMode    OreMode // uniform по умолчанию
	Seed       int64   // сид для шума и для записи в снимок
}

// OreVein описывает одну рудную жилу
type OreVein struct {
	Seed    vec.Vec2   // индексы стартовой клетки
	Ore     TileKind
	Path    []vec.Vec2 // посещённые клетки, начиная с Seed
	Placed  int        // сколько размещений руды удалось
	Escaped bool       // блуждание прервано выходом за границу
}

// GenerationReport - итог генерации
type GenerationReport struct {
	Size     int
	Veins    []OreVein
	Placed   int // успешные размещения, включая стартовую раскладку
	Rejected int // отклонённые размещения (наложение руды и т.п.)
}

// Generate заполняет несгенерированную сетку: клетки, соседи, стартовая
// раскладка в центре и рассев рудных жил. Повторная генерация запрещена.
func (g *Grid) Generate(opts GenerateOptions, rng Rand, display DisplayFactory) (*GenerationReport, error) {
	if g.state != StateUninitialized {
		return nil, ErrAlreadyGenerated
	}
	if err := validateOptions(g.size, &opts); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = NewRand(opts.Seed)
	}

	g.seed = opts.Seed
	g.oreSpacing = opts.OreSpacing
	g.oreMode = opts.OreMode
	g.allocate(display)

	report := &GenerationReport{Size: g.size}
	g.seedLayout(report)
	g.scatterOre(opts, rng, report)
	return report, nil
}

func validateOptions(size int, opts *GenerateOptions) error {
	if size < 3 {
		return fmt.Errorf("%w: размер сетки %d меньше 3", ErrInvalidOptions, size)
	}
	if opts.OreSpacing <= 0 || opts.OreSpacing > size {
		return fmt.Errorf("%w: шаг руды %d вне (0, %d]", ErrInvalidOptions, opts.OreSpacing, size)
	}
	mode, err := ParseOreMode(string(opts.OreMode))
	if err != nil {
		return err
	}
	opts.OreMode = mode
	return nil
}

type seedPlacement struct {
	offset   vec.Vec2
	tile     TileType
	rotation uint8
}

// initialLayout - стартовая база вокруг центра сетки, в порядке размещения
var initialLayout = []seedPlacement{
	{offset: vec.Vec2{X: 0, Y: 0}, tile: Printer3D, rotation: 0},
	{offset: vec.Vec2{X: 1, Y: 0}, tile: Iron, rotation: 0},
	{offset: vec.Vec2{X: -1, Y: 0}, tile: Copper, rotation: 0},
	{offset: vec.Vec2{X: 0, Y: -1}, tile: Silicon, rotation: 0},
	{offset: vec.Vec2{X: 1, Y: 0}, tile: WireExtruder, rotation: 0},
	{offset: vec.Vec2{X: -1, Y: 0}, tile: WireExtruder, rotation: 2},
	{offset: vec.Vec2{X: 0, Y: -1}, tile: WireExtruder, rotation: 3},
	{offset: vec.Vec2{X: 0, Y: 1}, tile: Worker, rotation: 1},
}

// seedLayout размещает стартовую раскладку. Результаты не проверяются:
// на свежей сетке раскладка всегда допустима.
func (g *Grid) seedLayout(report *GenerationReport) {
	c := g.Center()
	for _, sp := range initialLayout {
		report.record(g.place(c.Add(sp.offset), sp.tile, sp.rotation, SourceWorldgen))
	}
}

// scatterOre делит сетку на (size/spacing)^2 ячеек; в каждой выбирается
// случайная стартовая клетка и руда, затем идёт блуждание до MaxVeinSteps
// шагов. Блуждание обрывается на первом шаге за границу сетки.
func (g *Grid) scatterOre(opts GenerateOptions, rng Rand, report *GenerationReport) {
	spacing := opts.OreSpacing
	cells := g.size / spacing

	var noise *perlin.Perlin
	if opts.OreMode == OreModePerlin {
		noise = perlin.NewPerlin(2, 2, 3, opts.Seed)
	}

	for i := 0; i < cells; i++ {
		for j := 0; j < cells; j++ {
			column := i*spacing + rng.Intn(spacing)
			row := j*spacing + rng.Intn(spacing)

			var ore TileType
			if noise != nil {
				ore = oreFromNoise(noise, i, j)
			} else {
				ore = Ores[rng.Intn(len(Ores))]
			}

			pos := vec.Vec2{X: column, Y: row}
			vein := OreVein{Seed: pos, Ore: ore.Kind, Path: []vec.Vec2{pos}}
			if report.record(g.place(pos, ore, 0, SourceWorldgen)) {
				vein.Placed++
			}

			for step := 0; step < MaxVeinSteps; step++ {
				pos = pos.Add(vec.Cardinals[rng.Intn(len(vec.Cardinals))].Offset())
				if !g.InBounds(pos) {
					vein.Escaped = true
					break
				}
				vein.Path = append(vein.Path, pos)
				if report.record(g.place(pos, ore, 0, SourceWorldgen)) {
					vein.Placed++
				}
			}
			report.Veins = append(report.Veins, vein)
		}
	}
}

// oreFromNoise делит диапазон шума на три равные полосы по числу руд
func oreFromNoise(noise *perlin.Perlin, cellX, cellY int) TileType {
	// Шум Перлина равен нулю в узлах решётки, поэтому берём середину ячейки
	v := (noise.Noise2D(float64(cellX)*0.35+0.5, float64(cellY)*0.35+0.5) + 1) / 2
	idx := int(v * float64(len(Ores)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(Ores) {
		idx = len(Ores) - 1
	}
	return Ores[idx]
}

func (r *GenerationReport) record(_ Outcome, err error) bool {
	if err != nil {
		r.Rejected++
		return false
	}
	r.Placed++
	return true
}
