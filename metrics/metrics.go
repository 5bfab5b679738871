// Package metrics 定义训练、索引与推荐链路的 Prometheus 指标。
//
// 指标注册在调用方传入的 Registerer 上，不使用全局注册表。
// 所有方法允许 nil 接收者，未配置指标时组件照常运行。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "graphrec"

// Collector 聚合全部指标。
type Collector struct {
	TrainEpochs       prometheus.Counter
	TrainLoss         prometheus.Gauge
	TrainRecall       prometheus.Gauge
	TrainRuns         *prometheus.CounterVec
	Requests          *prometheus.CounterVec
	Degraded          *prometheus.CounterVec
	SearchDuration    *prometheus.HistogramVec
	VersionSwaps      prometheus.Counter
	CurrentVersion    prometheus.Gauge
	IndexRecall       *prometheus.GaugeVec
	HealthTransitions *prometheus.CounterVec
}

// New 创建并注册指标。
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		TrainEpochs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "train", Name: "epochs_total",
			Help: "Training epochs completed.",
		}),
		TrainLoss: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "train", Name: "loss",
			Help: "Mean BPR loss of the last completed epoch.",
		}),
		TrainRecall: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "train", Name: "validation_recall",
			Help: "Held-out Recall@K of the last completed epoch.",
		}),
		TrainRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "train", Name: "runs_total",
			Help: "Training runs by terminal state.",
		}, []string{"state"}),
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "engine", Name: "requests_total",
			Help: "Recommendation requests by path and outcome.",
		}, []string{"path", "outcome"}),
		Degraded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "engine", Name: "degraded_total",
			Help: "Responses served by the heuristic fallback, by reason.",
		}, []string{"reason"}),
		SearchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "store", Name: "search_duration_seconds",
			Help:    "Nearest-neighbour search latency by space.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"space"}),
		VersionSwaps: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "store", Name: "version_swaps_total",
			Help: "Embedding versions published.",
		}),
		CurrentVersion: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "store", Name: "current_version",
			Help: "Sequence number of the serving embedding version.",
		}),
		IndexRecall: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "store", Name: "index_recall",
			Help: "Measured ANN recall against exact search at index build, by space.",
		}, []string{"space"}),
		HealthTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "health", Name: "breaker_transitions_total",
			Help: "Vector backend circuit breaker state changes.",
		}, []string{"to"}),
	}
}

func (c *Collector) ObserveEpoch(loss, recall float64, hasRecall bool) {
	if c == nil {
		return
	}
	c.TrainEpochs.Inc()
	c.TrainLoss.Set(loss)
	if hasRecall {
		c.TrainRecall.Set(recall)
	}
}

func (c *Collector) TrainingFinished(state string) {
	if c == nil {
		return
	}
	c.TrainRuns.WithLabelValues(state).Inc()
}

func (c *Collector) Request(path, outcome string) {
	if c == nil {
		return
	}
	c.Requests.WithLabelValues(path, outcome).Inc()
}

func (c *Collector) DegradedResponse(reason string) {
	if c == nil {
		return
	}
	c.Degraded.WithLabelValues(reason).Inc()
}

func (c *Collector) ObserveSearch(space string, d time.Duration) {
	if c == nil {
		return
	}
	c.SearchDuration.WithLabelValues(space).Observe(d.Seconds())
}

func (c *Collector) VersionPublished(seq uint64) {
	if c == nil {
		return
	}
	c.VersionSwaps.Inc()
	c.CurrentVersion.Set(float64(seq))
}

func (c *Collector) IndexBuilt(space string, recall float64) {
	if c == nil {
		return
	}
	c.IndexRecall.WithLabelValues(space).Set(recall)
}

func (c *Collector) BreakerTransition(to string) {
	if c == nil {
		return
	}
	c.HealthTransitions.WithLabelValues(to).Inc()
}
