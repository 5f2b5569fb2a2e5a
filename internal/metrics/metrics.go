// Package metrics records per-item pipeline outcomes as Prometheus metrics.
// A Collector owns its registry, so several batches or tests never share
// state, and can dump it in the node_exporter textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"turfpix/internal/processor"
)

const namespace = "turfpix"

type Collector struct {
	registry *prometheus.Registry

	ItemsTotal    *prometheus.CounterVec
	BytesIn       prometheus.Counter
	BytesOut      prometheus.Counter
	EncodePasses  prometheus.Histogram
	QualityUsed   prometheus.Histogram
	ItemDuration  *prometheus.HistogramVec
	SavedRatioPct prometheus.Histogram
}

var _ processor.Recorder = (*Collector)(nil)

func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		ItemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_total",
				Help:      "Items handled by the pipeline, by outcome and failure reason",
			},
			[]string{"outcome", "reason"},
		),
		BytesIn: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "input_bytes_total",
			Help:      "Original bytes of successfully processed items",
		}),
		BytesOut: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_bytes_total",
			Help:      "Encoded bytes of successfully processed items",
		}),
		EncodePasses: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "encode_passes",
			Help:      "Encode passes needed per item",
			Buckets:   []float64{1, 2, 3, 4, 8},
		}),
		QualityUsed: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quality_used",
			Help:      "Quality factor of the accepted encode pass",
			Buckets:   []float64{0.2, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		}),
		ItemDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "item_duration_seconds",
				Help:      "Time spent on one item, by outcome",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"outcome"},
		),
		SavedRatioPct: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compression_ratio_percent",
			Help:      "Size reduction per item in percent",
			Buckets:   []float64{0, 25, 50, 75, 90, 95, 99},
		}),
	}
}

// Registry exposes the collector's private registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) ObserveProcessed(item processor.ProcessedItem, took time.Duration) {
	c.ItemsTotal.WithLabelValues("processed", "").Inc()
	c.BytesIn.Add(float64(item.Original.ByteLength))
	c.BytesOut.Add(float64(item.OutputBytes))
	c.EncodePasses.Observe(float64(item.Passes))
	c.QualityUsed.Observe(item.QualityUsed)
	c.SavedRatioPct.Observe(item.CompressionRatioPercent)
	c.ItemDuration.WithLabelValues("processed").Observe(took.Seconds())
}

func (c *Collector) ObserveFailed(item processor.FailedItem, took time.Duration) {
	c.ItemsTotal.WithLabelValues("failed", string(item.Reason)).Inc()
	c.ItemDuration.WithLabelValues("failed").Observe(took.Seconds())
}

// WriteTextfile writes every metric to path in the Prometheus text format.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
