// Package app связывает сетку мира с отрисовкой, метриками, шиной событий и
// хранилищем снимков. Все операции над сеткой выполняются под одним мьютексом.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Quantum1000/the-factory-must-grow/internal/config"
	"github.com/Quantum1000/the-factory-must-grow/internal/display"
	"github.com/Quantum1000/the-factory-must-grow/internal/logging"
	"github.com/Quantum1000/the-factory-must-grow/internal/metrics"
	"github.com/Quantum1000/the-factory-must-grow/internal/observability"
	"github.com/Quantum1000/the-factory-must-grow/internal/storage"
	"github.com/Quantum1000/the-factory-must-grow/internal/vec"
	"github.com/Quantum1000/the-factory-must-grow/internal/world"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxRegionTiles ограничивает размер области в Region
const MaxRegionTiles = 64 * 64

var (
	ErrRegionTooLarge = errors.New("запрошенная область слишком велика")
	ErrNoRepository   = errors.New("хранилище снимков не настроено")
)

// Options - зависимости Game. Обязателен только World.
type Options struct {
	World     config.WorldConfig
	WorldID   string
	Repo      storage.SnapshotRepo
	Metrics   *metrics.Collector
	Observers []world.PlacementObserver
	Logger    *logging.Logger
	Tracer    trace.Tracer
}

// Info - сводка о текущем мире
type Info struct {
	ID             string        `json:"id"`
	State          string        `json:"state"`
	Size           int           `json:"size"`
	Seed           int64         `json:"seed"`
	OreSpacing     int           `json:"ore_spacing"`
	OreMode        world.OreMode `json:"ore_mode"`
	Occupied       int           `json:"occupied"`
	Veins          int           `json:"veins"`
	DisplayObjects int           `json:"display_objects"`
	GeneratedAt    time.Time     `json:"generated_at"`
}

// worldIDSetter реализуют наблюдатели, помечающие события идентификатором мира
type worldIDSetter interface {
	SetWorldID(id string)
}

// Game владеет сеткой и её коллабораторами
type Game struct {
	mu          sync.Mutex
	cfg         config.WorldConfig
	worldID     string
	grid        *world.Grid
	display     *display.Registry
	report      *world.GenerationReport
	generatedAt time.Time

	repo      storage.SnapshotRepo
	metrics   *metrics.Collector
	observers []world.PlacementObserver
	logger    *logging.Logger
	tracer    trace.Tracer
}

// New создаёт сервис с несгенерированной сеткой
func New(opts Options) *Game {
	if opts.WorldID == "" {
		opts.WorldID = "default"
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetGameLogger()
	}
	if opts.Tracer == nil {
		opts.Tracer = observability.Tracer()
	}
	g := &Game{
		cfg:       opts.World,
		worldID:   opts.WorldID,
		display:   display.NewRegistry(),
		repo:      opts.Repo,
		metrics:   opts.Metrics,
		observers: opts.Observers,
		logger:    opts.Logger,
		tracer:    opts.Tracer,
	}
	if g.metrics != nil {
		g.observers = append([]world.PlacementObserver{g.metrics}, g.observers...)
	}
	g.grid = g.newGrid(opts.World.Size)
	return g
}

func (g *Game) newGrid(size int) *world.Grid {
	grid := world.NewGrid(size)
	for _, o := range g.observers {
		grid.Observe(o)
	}
	return grid
}

// Generate генерирует мир по конфигурации. Seed == 0 заменяется временем запуска.
func (g *Game) Generate(ctx context.Context) (*world.GenerationReport, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	seed := g.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	mode, err := world.ParseOreMode(g.cfg.OreMode)
	if err != nil {
		return nil, err
	}

	_, span := g.tracer.Start(ctx, "worldgen.generate", trace.WithAttributes(
		attribute.Int("world.size", g.cfg.Size),
		attribute.Int("world.ore_spacing", g.cfg.OreSpacing),
		attribute.Int64("world.seed", seed),
		attribute.String("world.ore_mode", string(mode)),
	))
	defer span.End()

	start := time.Now()
	opts := world.GenerateOptions{OreSpacing: g.cfg.OreSpacing, OreMode: mode, Seed: seed}
	report, err := g.grid.Generate(opts, world.NewRand(seed), g.display)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	elapsed := time.Since(start)

	span.SetAttributes(
		attribute.Int("worldgen.veins", len(report.Veins)),
		attribute.Int("worldgen.placed", report.Placed),
		attribute.Int("worldgen.rejected", report.Rejected),
	)
	if g.metrics != nil {
		g.metrics.ObserveGeneration(report, elapsed)
	}

	g.report = report
	g.cfg.OreMode = string(mode)
	g.generatedAt = time.Now().UTC()
	g.logger.Info("Мир %s сгенерирован за %s: size=%d seed=%d жил=%d размещено=%d отклонено=%d",
		g.worldID, elapsed, report.Size, seed, len(report.Veins), report.Placed, report.Rejected)
	return report, nil
}

// Place размещает тип на клетке с индексами p
func (g *Game) Place(p vec.Vec2, tileType world.TileType, rotation uint8) (world.Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	outcome, err := g.grid.Place(p, tileType, rotation)
	if err != nil {
		g.logger.Debug("Размещение %s на %s отклонено: %v", tileType, p, err)
	}
	return outcome, err
}

// Remove снимает верхнюю запись клетки
func (g *Game) Remove(p vec.Vec2) (world.Outcome, error) {
	return g.Place(p, world.Empty, 0)
}

// Tile возвращает снимок клетки
func (g *Game) Tile(p vec.Vec2) (world.TileView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.viewLocked(p)
}

func (g *Game) viewLocked(p vec.Vec2) (world.TileView, error) {
	if g.grid.State() != world.StateGenerated {
		return world.TileView{}, world.ErrNotGenerated
	}
	view, ok := g.grid.View(p)
	if !ok {
		return world.TileView{}, fmt.Errorf("%w: %s", world.ErrOutOfBounds, p)
	}
	return view, nil
}

// TileAt возвращает снимок клетки по координатам относительно центра мира
func (g *Game) TileAt(pos vec.Vec2) (world.TileView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.viewLocked(g.grid.ToIndexCoords(pos))
}

// Region возвращает непустые клетки прямоугольника [from, to] включительно,
// обрезанного по границам сетки
func (g *Game) Region(from, to vec.Vec2) ([]world.TileView, error) {
	if from.X > to.X {
		from.X, to.X = to.X, from.X
	}
	if from.Y > to.Y {
		from.Y, to.Y = to.Y, from.Y
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.grid.State() != world.StateGenerated {
		return nil, world.ErrNotGenerated
	}

	size := g.grid.Size()
	from.X, from.Y = max(from.X, 0), max(from.Y, 0)
	to.X, to.Y = min(to.X, size-1), min(to.Y, size-1)
	if to.X < from.X || to.Y < from.Y {
		return nil, nil
	}
	if (to.X-from.X+1)*(to.Y-from.Y+1) > MaxRegionTiles {
		return nil, fmt.Errorf("%w: максимум %d клеток", ErrRegionTooLarge, MaxRegionTiles)
	}

	var views []world.TileView
	for i := from.X; i <= to.X; i++ {
		for j := from.Y; j <= to.Y; j++ {
			view, ok := g.grid.View(vec.Vec2{X: i, Y: j})
			if ok && view.Occupancy > 0 {
				views = append(views, view)
			}
		}
	}
	return views, nil
}

// Info возвращает сводку о мире
func (g *Game) Info() Info {
	g.mu.Lock()
	defer g.mu.Unlock()

	info := Info{
		ID:             g.worldID,
		State:          g.grid.State().String(),
		Size:           g.grid.Size(),
		Seed:           g.grid.Seed(),
		OreSpacing:     g.cfg.OreSpacing,
		OreMode:        world.OreMode(g.cfg.OreMode),
		Occupied:       g.grid.Occupied(),
		DisplayObjects: g.display.Len(),
		GeneratedAt:    g.generatedAt,
	}
	if g.report != nil {
		info.Veins = len(g.report.Veins)
	}
	return info
}

// Display возвращает реестр визуальных объектов текущей сетки
func (g *Game) Display() *display.Registry {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.display
}

// WithGrid выполняет fn под мьютексом сервиса. fn не должна сохранять grid.
func (g *Game) WithGrid(fn func(grid *world.Grid)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(g.grid)
}

// Save сохраняет снимок текущего мира в хранилище под его идентификатором
func (g *Game) Save(ctx context.Context) (string, error) {
	if g.repo == nil {
		return "", ErrNoRepository
	}

	g.mu.Lock()
	snap, err := g.grid.Snapshot()
	id := g.worldID
	g.mu.Unlock()
	if err != nil {
		return "", err
	}

	if err := g.repo.Save(ctx, id, snap); err != nil {
		return "", fmt.Errorf("сохранение мира %s: %w", id, err)
	}
	g.logger.Info("Мир %s сохранён: %d непустых клеток", id, len(snap.Tiles))
	return id, nil
}

// Load заменяет текущий мир снимком из хранилища. При ошибке текущий мир не меняется.
func (g *Game) Load(ctx context.Context, id string) error {
	if g.repo == nil {
		return ErrNoRepository
	}
	snap, err := g.repo.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("загрузка мира %s: %w", id, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// Наблюдатели подключаются после успешной переигровки снимка
	registry := display.NewRegistry()
	grid, err := world.Restore(snap, registry)
	if err != nil {
		return fmt.Errorf("восстановление мира %s: %w", id, err)
	}
	for _, o := range g.observers {
		grid.Observe(o)
		if w, ok := o.(worldIDSetter); ok {
			w.SetWorldID(id)
		}
	}

	g.grid = grid
	g.display = registry
	g.worldID = id
	g.report = nil
	g.generatedAt = time.Now().UTC()
	g.cfg.Size = snap.Size
	g.cfg.OreSpacing = snap.OreSpacing
	g.cfg.OreMode = string(snap.OreMode)
	g.cfg.Seed = snap.Seed
	if g.metrics != nil {
		g.metrics.SetOccupied(grid.Occupied())
	}
	g.logger.Info("Мир %s загружен: size=%d, %d непустых клеток", id, snap.Size, grid.Occupied())
	return nil
}
