// Package prom exports cache and key-value service metrics to Prometheus.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/kvcache/cache"
	"github.com/IvanBrykalov/kvcache/kv"
	"github.com/IvanBrykalov/kvcache/kverr"
)

// Adapter implements cache.Metrics and exports Prometheus counters/gauges.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits    prometheus.Counter
	misses  prometheus.Counter
	evicts  *prometheus.CounterVec
	sizeEnt prometheus.Gauge
}

// New constructs a Prometheus cache metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "Cache hits",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "Cache misses",
			ConstLabels: constLabels,
		}),
		evicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "evictions_total",
				Help:        "Cache evictions by reason",
				ConstLabels: constLabels,
			},
			[]string{"reason"},
		),
		sizeEnt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_entries",
			Help:        "Number of resident entries",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.sizeEnt)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter with a reason label.
func (a *Adapter) Evict(r cache.EvictReason) {
	a.evicts.WithLabelValues(r.String()).Inc()
}

// Size updates the resident entries gauge.
func (a *Adapter) Size(entries int) {
	a.sizeEnt.Set(float64(entries))
}

// Observer implements kv.Observer: it counts finished operations per layer,
// op and result, and records their latency.
type Observer struct {
	ops     *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewObserver registers the operation metrics with reg (nil => default).
func NewObserver(reg prometheus.Registerer, ns string, constLabels prometheus.Labels) *Observer {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &Observer{
		ops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Name:        "ops_total",
				Help:        "Finished operations by layer, op and result",
				ConstLabels: constLabels,
			},
			[]string{"layer", "op", "result"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Name:        "op_duration_seconds",
				Help:        "Operation latency by layer and op",
				Buckets:     prometheus.ExponentialBuckets(1e-6, 4, 10),
				ConstLabels: constLabels,
			},
			[]string{"layer", "op"},
		),
	}
	reg.MustRegister(o.ops, o.latency)
	return o
}

// Started is a no-op; the start time travels in the event.
func (o *Observer) Started(kv.Event) {}

// Finished records the outcome of ev.
func (o *Observer) Finished(ev kv.Event, err error) {
	layer, op := ev.Layer.String(), ev.Op.String()
	o.ops.WithLabelValues(layer, op, result(err)).Inc()
	o.latency.WithLabelValues(layer, op).Observe(time.Since(ev.Start).Seconds())
}

func result(err error) string {
	if err == nil {
		return "ok"
	}
	return kverr.KindOf(err).String()
}

var (
	_ cache.Metrics = (*Adapter)(nil)
	_ kv.Observer   = (*Observer)(nil)
)
