package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"cycle-trader/internal/execution"
)

const namespace = "cycle_trader"

// Collector 汇总交易周期相关的 Prometheus 指标，nil 接收者上的方法均为空操作。
type Collector struct {
	CyclesTotal      *prometheus.CounterVec
	CycleDuration    prometheus.Histogram
	CycleInFlight    prometheus.Gauge
	OrdersTotal      *prometheus.CounterVec
	CanceledTotal    prometheus.Counter
	PlanSize         prometheus.Gauge
	ForecastExcluded prometheus.Counter
}

// NewCollector 在给定注册器上创建指标，reg 为空时使用默认注册器。
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "total",
			Help:      "Trading cycles by outcome.",
		}, []string{"outcome"}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Wall time of a trading cycle.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		CycleInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "in_flight",
			Help:      "1 while a cycle is running.",
		}),
		OrdersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "total",
			Help:      "Order placements by side and status.",
		}, []string{"side", "status"}),
		CanceledTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "canceled_total",
			Help:      "Open orders canceled before reopening.",
		}),
		PlanSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "plan",
			Name:      "operations",
			Help:      "Operations in the last prepared plan.",
		}),
		ForecastExcluded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "excluded_pairs_total",
			Help:      "Pairs excluded from a cycle because data or forecast failed.",
		}),
	}
}

// CycleStarted 标记周期开始。
func (c *Collector) CycleStarted() {
	if c == nil {
		return
	}
	c.CycleInFlight.Set(1)
}

// CycleFinished 记录周期结果与耗时。
func (c *Collector) CycleFinished(outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.CycleInFlight.Set(0)
	c.CyclesTotal.WithLabelValues(outcome).Inc()
	c.CycleDuration.Observe(elapsed.Seconds())
}

// ObservePlan 记录计划大小。
func (c *Collector) ObservePlan(size int) {
	if c == nil {
		return
	}
	c.PlanSize.Set(float64(size))
}

// ObserveExcluded 累加被剔除的交易对数量。
func (c *Collector) ObserveExcluded(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.ForecastExcluded.Add(float64(n))
}

// ObserveResults 按方向与状态统计执行结果。
func (c *Collector) ObserveResults(results []execution.Result) {
	if c == nil {
		return
	}
	for _, r := range results {
		status := "placed"
		switch {
		case !r.OK():
			status = "failed"
		case r.Simulated:
			status = "simulated"
		}
		c.OrdersTotal.WithLabelValues(string(r.Operation.Type.Side()), status).Inc()
		c.CanceledTotal.Add(float64(len(r.Canceled)))
	}
}
