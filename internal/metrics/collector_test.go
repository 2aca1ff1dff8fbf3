package metrics

import (
	"testing"
	"time"

	"github.com/Quantum1000/the-factory-must-grow/internal/vec"
	"github.com/Quantum1000/the-factory-must-grow/internal/world"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	g := world.NewGrid(16)
	g.Observe(c)
	report, err := g.Generate(world.GenerateOptions{OreSpacing: 8, Seed: 4}, world.NewRand(4), nil)
	require.NoError(t, err)
	c.ObserveGeneration(report, 20*time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.placements.WithLabelValues("printer3d", "placed", world.SourceWorldgen)))
	assert.Equal(t, float64(3), testutil.ToFloat64(c.placements.WithLabelValues("wire_extruder", "placed", world.SourceWorldgen)))
	assert.Equal(t, float64(g.Occupied()), testutil.ToFloat64(c.occupied))

	var veins float64
	for _, ore := range world.Ores {
		veins += testutil.ToFloat64(c.oreVeins.WithLabelValues(ore.Kind.String()))
	}
	assert.Equal(t, float64(len(report.Veins)), veins)

	// Экструдер на 3D-принтере запрещён
	_, err = g.Place(g.Center(), world.WireExtruder, 0)
	require.Error(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(c.rejections.WithLabelValues("wire_extruder", world.SourcePlayer)))

	_, err = g.Place(g.Center(), world.Empty, 0)
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(c.placements.WithLabelValues("empty", "removed", world.SourcePlayer)))
	assert.Equal(t, float64(g.Occupied()), testutil.ToFloat64(c.occupied))

	count, err := testutil.GatherAndCount(reg, "factory_worldgen_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCollectorIgnoresOutOfBounds(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	g := world.NewGrid(8)
	g.Observe(c)
	_, err := g.Generate(world.GenerateOptions{OreSpacing: 8}, world.NewRand(1), nil)
	require.NoError(t, err)

	before := testutil.CollectAndCount(c.rejections)
	_, err = g.Place(vec.Vec2{X: 100, Y: 100}, world.Iron, 0)
	assert.ErrorIs(t, err, world.ErrOutOfBounds)
	assert.Equal(t, before, testutil.CollectAndCount(c.rejections))
}
