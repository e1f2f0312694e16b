// Package metrics counts what a pixelization run did. A run has its own
// registry, written once at the end as a node exporter textfile.
package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome of a single region.
const (
	OutcomeKept    = "kept"
	OutcomeEmpty   = "empty"
	OutcomeSkipped = "skipped"
)

type Metrics struct {
	registry *prometheus.Registry

	RegionsTotal       *prometheus.CounterVec
	PixelizeDurationMs *prometheus.HistogramVec
	PixelizedArea      prometheus.Counter
	RawArea            prometheus.Counter
	StatusWritesTotal  prometheus.Counter
	MapCells           prometheus.Gauge
	MapArea            prometheus.Gauge
	MapWeightedArea    prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RegionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skypix_regions_total",
			Help: "Regions read within the index range, by type and outcome",
		}, []string{"type", "outcome"}),
		PixelizeDurationMs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "skypix_pixelize_duration_ms",
			Help:    "Time to pixelize a single region in milliseconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000, 5000},
		}, []string{"type"}),
		PixelizedArea: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skypix_pixelized_area_sq_degrees",
			Help: "Summed area of the pixelized regions",
		}),
		RawArea: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skypix_raw_area_sq_degrees",
			Help: "Summed exact area of the pixelized regions",
		}),
		StatusWritesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skypix_status_writes_total",
			Help: "Number of times the status file was written",
		}),
		MapCells: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "skypix_map_cells",
			Help: "Number of cells in the coverage map",
		}),
		MapArea: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "skypix_map_area_sq_degrees",
			Help: "Area covered by the coverage map",
		}),
		MapWeightedArea: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "skypix_map_weighted_area_sq_degrees",
			Help: "Weighted area of the coverage map",
		}),
	}
	m.registry.MustRegister(
		m.RegionsTotal,
		m.PixelizeDurationMs,
		m.PixelizedArea,
		m.RawArea,
		m.StatusWritesTotal,
		m.MapCells,
		m.MapArea,
		m.MapWeightedArea,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Region records one region's outcome. durationMs and the areas are only
// observed for kept regions.
func (m *Metrics) Region(typ, outcome string, durationMs, pixelized, raw float64) {
	m.RegionsTotal.WithLabelValues(typ, outcome).Inc()
	if outcome != OutcomeKept {
		return
	}
	m.PixelizeDurationMs.WithLabelValues(typ).Observe(durationMs)
	m.PixelizedArea.Add(pixelized)
	m.RawArea.Add(raw)
}

func (m *Metrics) SetMap(cells int, area, weightedArea float64) {
	m.MapCells.Set(float64(cells))
	m.MapArea.Set(area)
	m.MapWeightedArea.Set(weightedArea)
}

// WriteFile writes all metrics in the text exposition format.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Wrapf(err, "writing metrics to %s", path)
	}
	return nil
}
