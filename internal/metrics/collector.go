// Package metrics экспортирует счётчики размещений и генерации мира в Prometheus.
package metrics

import (
	"time"

	"github.com/Quantum1000/the-factory-must-grow/internal/world"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "factory"

// Collector подписывается на события сетки как world.PlacementObserver.
//
// Метрики:
// * factory_placements_total{kind,outcome,source} - успешные размещения
// * factory_placement_rejections_total{kind,source} - отказы правил слоёв
// * factory_tiles_occupied - число непустых клеток
// * factory_worldgen_duration_seconds - длительность генерации
// * factory_ore_veins_total{ore} - рудные жилы по виду руды
type Collector struct {
	placements *prometheus.CounterVec
	rejections *prometheus.CounterVec
	occupied   prometheus.Gauge
	worldgen   prometheus.Histogram
	oreVeins   *prometheus.CounterVec
}

// NewCollector создаёт метрики и регистрирует их в reg.
// При reg == nil используется prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		placements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "placements_total",
			Help:      "Успешные размещения на сетке.",
		}, []string{"kind", "outcome", "source"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "placement_rejections_total",
			Help:      "Размещения, отклонённые правилами слоёв.",
		}, []string{"kind", "source"}),
		occupied: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tiles_occupied",
			Help:      "Количество клеток с непустой стопкой.",
		}),
		worldgen: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "worldgen_duration_seconds",
			Help:      "Длительность генерации мира.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		oreVeins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ore_veins_total",
			Help:      "Рудные жилы, созданные генерацией.",
		}, []string{"ore"}),
	}
	reg.MustRegister(c.placements, c.rejections, c.occupied, c.worldgen, c.oreVeins)
	return c
}

// OnPlacement реализует world.PlacementObserver
func (c *Collector) OnPlacement(ev world.PlacementEvent) {
	kind := ev.Type.Kind.String()
	if ev.Err != nil {
		c.rejections.WithLabelValues(kind, ev.Source).Inc()
	} else {
		c.placements.WithLabelValues(kind, ev.Outcome.String(), ev.Source).Inc()
	}
	c.occupied.Set(float64(ev.Occupied))
}

// ObserveGeneration записывает итог генерации
func (c *Collector) ObserveGeneration(report *world.GenerationReport, elapsed time.Duration) {
	c.worldgen.Observe(elapsed.Seconds())
	if report == nil {
		return
	}
	for _, v := range report.Veins {
		c.oreVeins.WithLabelValues(v.Ore.String()).Inc()
	}
}

// SetOccupied выставляет gauge напрямую, например после Restore
func (c *Collector) SetOccupied(n int) {
	c.occupied.Set(float64(n))
}
