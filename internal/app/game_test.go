package app

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/Quantum1000/the-factory-must-grow/internal/config"
	"github.com/Quantum1000/the-factory-must-grow/internal/eventbus"
	"github.com/Quantum1000/the-factory-must-grow/internal/metrics"
	"github.com/Quantum1000/the-factory-must-grow/internal/storage"
	"github.com/Quantum1000/the-factory-must-grow/internal/vec"
	"github.com/Quantum1000/the-factory-must-grow/internal/world"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGame(t *testing.T, repo storage.SnapshotRepo) *Game {
	t.Helper()
	return New(Options{
		World:   config.WorldConfig{Size: 32, OreSpacing: 8, Seed: 21, OreMode: "uniform"},
		WorldID: "test",
		Repo:    repo,
		Metrics: metrics.NewCollector(prometheus.NewRegistry()),
	})
}

func TestGameGenerateAndInfo(t *testing.T) {
	g := newTestGame(t, nil)
	assert.Equal(t, "uninitialized", g.Info().State)

	_, err := g.Tile(vec.Vec2{})
	assert.ErrorIs(t, err, world.ErrNotGenerated)

	report, err := g.Generate(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Veins, 16)

	info := g.Info()
	assert.Equal(t, "generated", info.State)
	assert.Equal(t, int64(21), info.Seed)
	assert.Equal(t, 16, info.Veins)
	assert.Greater(t, info.Occupied, 0)
	assert.Equal(t, g.Display().Len(), info.DisplayObjects)
	assert.False(t, info.GeneratedAt.IsZero())

	_, err = g.Generate(context.Background())
	assert.ErrorIs(t, err, world.ErrAlreadyGenerated)
}

func TestGameRandomSeedWhenZero(t *testing.T) {
	g := New(Options{World: config.WorldConfig{Size: 16, OreSpacing: 8}})
	_, err := g.Generate(context.Background())
	require.NoError(t, err)
	assert.NotZero(t, g.Info().Seed)
	assert.Equal(t, world.OreModeUniform, g.Info().OreMode)
}

func TestGamePlaceRemoveAndRegion(t *testing.T) {
	g := newTestGame(t, nil)
	_, err := g.Generate(context.Background())
	require.NoError(t, err)

	center := vec.Vec2{X: 16, Y: 16}
	_, err = g.Place(center, world.WireExtruder, 0)
	assert.ErrorIs(t, err, world.ErrIllegalPlacement)

	_, err = g.Place(vec.Vec2{X: 40, Y: 0}, world.Iron, 0)
	assert.ErrorIs(t, err, world.ErrOutOfBounds)

	before := g.Display().Len()
	outcome, err := g.Remove(center)
	require.NoError(t, err)
	assert.Equal(t, world.OutcomeRemoved, outcome)
	assert.Equal(t, before-1, g.Display().Len(), "визуальный объект принтера уничтожен")

	view, err := g.Tile(center)
	require.NoError(t, err)
	assert.Equal(t, 0, view.Occupancy)

	// Центральный крест: у рабочего, экструдеров и руд клетки заняты
	views, err := g.Region(vec.Vec2{X: 17, Y: 17}, vec.Vec2{X: 15, Y: 15})
	require.NoError(t, err)
	positions := make(map[vec.Vec2]bool)
	for _, v := range views {
		positions[v.Index] = true
		assert.Greater(t, v.Occupancy, 0)
	}
	for _, p := range []vec.Vec2{{X: 17, Y: 16}, {X: 15, Y: 16}, {X: 16, Y: 15}, {X: 16, Y: 17}} {
		assert.True(t, positions[p], "клетка %s должна попасть в область", p)
	}
	assert.False(t, positions[center])

	views, err = g.Region(vec.Vec2{}, vec.Vec2{X: 100, Y: 100})
	require.NoError(t, err, "после обрезки область 32x32 укладывается в лимит")
	assert.Len(t, views, g.Info().Occupied)

	views, err = g.Region(vec.Vec2{X: -5, Y: -5}, vec.Vec2{X: 2, Y: 2})
	require.NoError(t, err, "область обрезается по границам сетки")
	for _, v := range views {
		assert.True(t, v.Index.InSquare(32))
	}
}

func TestGameSaveLoad(t *testing.T) {
	repo := storage.NewMemorySnapshotRepo()
	g := newTestGame(t, repo)
	_, err := g.Generate(context.Background())
	require.NoError(t, err)

	p := vec.Vec2{X: 16, Y: 16}
	stack, err := world.NewResourceStack(world.ResourceWire, world.ResourceWire)
	require.NoError(t, err)
	_, err = g.Place(p, world.ResourceTile(stack), 0)
	require.NoError(t, err)

	id, err := g.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test", id)
	saved, err := g.Tile(p)
	require.NoError(t, err)
	objects := g.Display().Len()

	// Меняем мир после сохранения и откатываемся загрузкой
	_, err = g.Remove(p)
	require.NoError(t, err)
	require.NoError(t, g.Load(context.Background(), "test"))

	restored, err := g.Tile(p)
	require.NoError(t, err)
	assert.Equal(t, saved, restored)
	assert.Equal(t, objects, g.Display().Len())

	err = g.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, "test", g.Info().ID, "неудачная загрузка не меняет мир")
}

func TestGameSaveWithoutRepo(t *testing.T) {
	g := newTestGame(t, nil)
	_, err := g.Save(context.Background())
	assert.ErrorIs(t, err, ErrNoRepository)
	assert.ErrorIs(t, g.Load(context.Background(), "x"), ErrNoRepository)
}

func TestGameRegionLimitAppliesToClampedArea(t *testing.T) {
	g := New(Options{World: config.WorldConfig{Size: 128, OreSpacing: 64, Seed: 4}})
	_, err := g.Generate(context.Background())
	require.NoError(t, err)

	_, err = g.Region(vec.Vec2{X: math.MinInt, Y: math.MinInt}, vec.Vec2{X: math.MaxInt, Y: math.MaxInt})
	assert.ErrorIs(t, err, ErrRegionTooLarge, "крайние координаты не обходят лимит")

	_, err = g.Region(vec.Vec2{X: math.MinInt, Y: 0}, vec.Vec2{X: 63, Y: 63})
	assert.NoError(t, err, "64x64 после обрезки допустимо")

	views, err := g.Region(vec.Vec2{X: 500, Y: 500}, vec.Vec2{X: 600, Y: 600})
	require.NoError(t, err)
	assert.Empty(t, views, "область вне сетки пуста")
}

func TestGameTileAtCenteredPosition(t *testing.T) {
	g := newTestGame(t, nil)
	_, err := g.Generate(context.Background())
	require.NoError(t, err)

	view, err := g.TileAt(vec.Vec2{})
	require.NoError(t, err)
	assert.Equal(t, vec.Vec2{X: 16, Y: 16}, view.Index)
	require.Len(t, view.Contents, 1)
	assert.Equal(t, world.KindPrinter3D, view.Contents[0].Type.Kind)

	view, err = g.TileAt(vec.Vec2{X: -16, Y: 15})
	require.NoError(t, err)
	assert.Equal(t, vec.Vec2{X: 0, Y: 31}, view.Index)

	_, err = g.TileAt(vec.Vec2{X: 16, Y: 0})
	assert.ErrorIs(t, err, world.ErrOutOfBounds)
}

func occupiedGauge(t *testing.T, reg *prometheus.Registry) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "factory_tiles_occupied" {
			return mf.Metric[0].GetGauge().GetValue()
		}
	}
	t.Fatal("factory_tiles_occupied не зарегистрирована")
	return 0
}

func TestGameFailedLoadKeepsOccupiedGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	repo := storage.NewMemorySnapshotRepo()
	g := New(Options{
		World:   config.WorldConfig{Size: 16, OreSpacing: 16, Seed: 9},
		WorldID: "live",
		Repo:    repo,
		Metrics: metrics.NewCollector(reg),
	})
	_, err := g.Generate(context.Background())
	require.NoError(t, err)
	occupied := g.Info().Occupied
	require.Equal(t, float64(occupied), occupiedGauge(t, reg))

	// Пять рудных клеток, затем экструдер поверх принтера
	bad := world.Snapshot{Version: world.SnapshotVersion, Size: 16, OreSpacing: 16, OreMode: world.OreModeUniform}
	for i := 0; i < 5; i++ {
		bad.Tiles = append(bad.Tiles, world.TileSnapshot{
			Index:    vec.Vec2{X: i, Y: 0},
			Contents: []world.ContentView{{Type: world.Iron}},
		})
	}
	bad.Tiles = append(bad.Tiles, world.TileSnapshot{
		Index:    vec.Vec2{X: 8, Y: 8},
		Contents: []world.ContentView{{Type: world.Printer3D}, {Type: world.WireExtruder}},
	})
	require.NoError(t, repo.Save(context.Background(), "broken", bad))

	err = g.Load(context.Background(), "broken")
	require.ErrorIs(t, err, world.ErrIllegalPlacement)
	assert.Equal(t, "live", g.Info().ID)
	assert.Equal(t, occupied, g.Info().Occupied)
	assert.Equal(t, float64(occupied), occupiedGauge(t, reg), "gauge описывает живой мир, а не отброшенный снимок")
}

func TestGameLoadRetagsPublishedEvents(t *testing.T) {
	bus := eventbus.NewMemoryBus(64)
	defer bus.Close()

	var (
		mu     sync.Mutex
		worlds []string
	)
	_, err := bus.Subscribe(context.Background(), eventbus.Filter{}, func(_ context.Context, ev *eventbus.Envelope) {
		te, err := eventbus.DecodeTileEvent(ev)
		if err != nil {
			return
		}
		mu.Lock()
		worlds = append(worlds, te.WorldID)
		mu.Unlock()
	})
	require.NoError(t, err)

	repo := storage.NewMemorySnapshotRepo()
	g := New(Options{
		World:     config.WorldConfig{Size: 16, OreSpacing: 16, Seed: 2},
		WorldID:   "a",
		Repo:      repo,
		Observers: []world.PlacementObserver{eventbus.NewPlacementPublisher(bus, "test", "a")},
	})
	_, err = g.Generate(context.Background())
	require.NoError(t, err)

	other := world.NewGrid(16)
	_, err = other.Generate(world.GenerateOptions{OreSpacing: 16, Seed: 3}, world.NewRand(3), nil)
	require.NoError(t, err)
	snap, err := other.Snapshot()
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), "b", snap))

	require.NoError(t, g.Load(context.Background(), "b"))
	_, err = g.Remove(vec.Vec2{X: 8, Y: 8})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(worlds) == 1
	}, 2*time.Second, 10*time.Millisecond, "восстановление снимка не публикует события")
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"b"}, worlds, "события после загрузки помечены новым миром")
}
