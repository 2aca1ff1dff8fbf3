package eventbus

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Quantum1000/the-factory-must-grow/internal/vec"
	"github.com/Quantum1000/the-factory-must-grow/internal/world"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector собирает доставленные события
type collector struct {
	mu     sync.Mutex
	events []*Envelope
}

func (c *collector) handle(_ context.Context, ev *Envelope) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *collector) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.EventType)
	}
	return out
}

func TestMemoryBusDeliversInOrderWithFilter(t *testing.T) {
	bus := NewMemoryBus(16)
	all, placedOnly := &collector{}, &collector{}

	_, err := bus.Subscribe(context.Background(), Filter{}, all.handle)
	require.NoError(t, err)
	_, err = bus.Subscribe(context.Background(), Filter{Types: []string{EventTilePlaced}}, placedOnly.handle)
	require.NoError(t, err)

	ctx := context.Background()
	for _, typ := range []string{EventTilePlaced, EventTileMerged, EventTileRemoved, EventTilePlaced} {
		require.NoError(t, bus.Publish(ctx, &Envelope{ID: typ, EventType: typ}))
	}
	require.NoError(t, bus.Close(), "Close дожидается доставки")

	assert.Equal(t, []string{EventTilePlaced, EventTileMerged, EventTileRemoved, EventTilePlaced}, all.types())
	assert.Equal(t, []string{EventTilePlaced, EventTilePlaced}, placedOnly.types())

	stats := bus.Metrics()
	assert.Equal(t, uint64(4), stats.Published)
	assert.Equal(t, uint64(6), stats.Consumed)

	assert.ErrorIs(t, bus.Publish(ctx, &Envelope{EventType: EventTilePlaced}), ErrBusClosed)
	_, err = bus.Subscribe(ctx, Filter{}, all.handle)
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestMemoryBusDropsLowPriorityWhenFull(t *testing.T) {
	bus := NewMemoryBus(1)
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	_, err := bus.Subscribe(context.Background(), Filter{}, func(context.Context, *Envelope) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, &Envelope{EventType: "a"}))
	<-started // первое событие застряло в обработчике
	require.NoError(t, bus.Publish(ctx, &Envelope{EventType: "b"}))
	require.NoError(t, bus.Publish(ctx, &Envelope{EventType: "c", Priority: 1}))
	assert.Equal(t, uint64(1), bus.Metrics().Dropped)

	// Высокий приоритет ждёт места и уважает отмену контекста
	cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, bus.Publish(cctx, &Envelope{EventType: "d", Priority: 9}), context.DeadlineExceeded)

	close(release)
	require.NoError(t, bus.Close())
}

func TestMemoryBusUnsubscribe(t *testing.T) {
	bus := NewMemoryBus(4)
	c := &collector{}
	sub, err := bus.Subscribe(context.Background(), Filter{}, c.handle)
	require.NoError(t, err)
	sub.Unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), &Envelope{EventType: EventTilePlaced}))
	require.NoError(t, bus.Close())
	assert.Empty(t, c.types())
}

func TestPlacementPublisher(t *testing.T) {
	bus := NewMemoryBus(64)
	c := &collector{}
	_, err := bus.Subscribe(context.Background(), Filter{}, c.handle)
	require.NoError(t, err)

	g := world.NewGrid(16)
	g.Observe(NewPlacementPublisher(bus, "factory-test", "w1"))
	_, err = g.Generate(world.GenerateOptions{OreSpacing: 16, Seed: 9}, world.NewRand(9), nil)
	require.NoError(t, err)

	p := vec.Vec2{X: 0, Y: 15}
	tile, _ := g.Tile(p)
	for !tile.IsEmpty() {
		require.True(t, g.Push(p, world.Empty, 0))
	}
	stack, err := world.NewResourceStack(world.ResourceWire)
	require.NoError(t, err)

	require.True(t, g.Push(p, world.ResourceTile(stack), 0))
	require.True(t, g.Push(p, world.ResourceTile(stack), 0))
	require.False(t, g.Push(p, world.Printer3D, 0), "здание на ресурсе недопустимо")
	require.True(t, g.Push(p, world.Empty, 0))
	require.NoError(t, bus.Close())

	types := c.types()
	// Снятие остатков генерации в начале даёт TileRemoved; смотрим на хвост
	require.GreaterOrEqual(t, len(types), 3)
	assert.Equal(t, []string{EventTilePlaced, EventTileMerged, EventTileRemoved}, types[len(types)-3:])

	last := c.events[len(c.events)-1]
	assert.Equal(t, "factory-test", last.Source)
	assert.NotEmpty(t, last.ID)
	te, err := DecodeTileEvent(last)
	require.NoError(t, err)
	assert.Equal(t, "w1", te.WorldID)
	assert.Equal(t, p, te.Index)
	assert.Equal(t, vec.Vec2{X: -8, Y: 7}, te.Position)
	assert.Equal(t, world.SourcePlayer, te.Origin)

	for _, ev := range c.events {
		te, err := DecodeTileEvent(ev)
		require.NoError(t, err)
		assert.NotEqual(t, world.SourceWorldgen, te.Origin)
	}
}

func TestMetricsExporterCollect(t *testing.T) {
	bus := NewMemoryBus(8)
	reg := prometheus.NewRegistry()
	me := NewMetricsExporter(bus, reg)

	require.NoError(t, bus.Publish(context.Background(), &Envelope{EventType: "x"}))
	require.NoError(t, bus.Publish(context.Background(), &Envelope{EventType: "y"}))
	me.collect()
	me.collect()
	assert.Equal(t, float64(2), testutil.ToFloat64(me.published), "приращения не удваиваются")
	require.NoError(t, bus.Close())
}

func TestJetStreamBus(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		url = "nats://127.0.0.1:4222"
	}
	bus, err := NewJetStreamBus(url, "FACTORY_EVENTS_TEST", time.Minute)
	if err != nil {
		t.Skipf("NATS not available, skipping test: %v", err)
	}
	defer bus.Close()

	got := make(chan *Envelope, 1)
	sub, err := bus.Subscribe(context.Background(), Filter{Types: []string{EventTilePlaced}}, func(_ context.Context, ev *Envelope) {
		select {
		case got <- ev:
		default:
		}
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), &Envelope{ID: "js-1", EventType: EventTilePlaced, Payload: []byte(`{}`)}))
	select {
	case ev := <-got:
		assert.Equal(t, EventTilePlaced, ev.EventType)
	case <-time.After(5 * time.Second):
		t.Fatal("событие не доставлено")
	}
}
