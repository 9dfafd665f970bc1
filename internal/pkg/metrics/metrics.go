// internal/pkg/metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "beerorder"

// OrderMetrics 收集订单生命周期相关的指标。
// 所有方法对 nil 接收者安全，测试中可以直接传 nil。
type OrderMetrics struct {
	Transitions      *prometheus.CounterVec
	Rejected         *prometheus.CounterVec
	RaceTimeouts     *prometheus.CounterVec
	Published        *prometheus.CounterVec
	Consumed         *prometheus.CounterVec
	HandlingDuration *prometheus.HistogramVec
}

// NewOrderMetrics 创建并注册指标。reg 为 nil 时使用默认 registry。
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &OrderMetrics{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Accepted order state transitions.",
		}, []string{"from", "to", "event"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_events_rejected_total",
			Help:      "Events not accepted in the order's current status.",
		}, []string{"status", "event"}),
		RaceTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_race_timeouts_total",
			Help:      "Bounded waits for an expected status that ran out.",
		}, []string{"operation"}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_messages_published_total",
			Help:      "Outbound messages by channel and result.",
		}, []string{"channel", "result"}),
		Consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_messages_consumed_total",
			Help:      "Inbound messages by topic and result.",
		}, []string{"topic", "result"}),
		HandlingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_message_handling_seconds",
			Help:      "Time spent handling one inbound message.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"topic"}),
	}
	reg.MustRegister(m.Transitions, m.Rejected, m.RaceTimeouts, m.Published, m.Consumed, m.HandlingDuration)
	return m
}

func (m *OrderMetrics) Transition(from, to, event string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to, event).Inc()
}

func (m *OrderMetrics) EventRejected(status, event string) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(status, event).Inc()
}

func (m *OrderMetrics) RaceTimeout(operation string) {
	if m == nil {
		return
	}
	m.RaceTimeouts.WithLabelValues(operation).Inc()
}

func (m *OrderMetrics) MessagePublished(channel string, err error) {
	if m == nil {
		return
	}
	m.Published.WithLabelValues(channel, result(err)).Inc()
}

func (m *OrderMetrics) MessageConsumed(topic string, err error, seconds float64) {
	m.MessageConsumedResult(topic, result(err), seconds)
}

// MessageConsumedResult 按调用方给出的 result 标签计数，例如 ResultDLTFailed。
func (m *OrderMetrics) MessageConsumedResult(topic, result string, seconds float64) {
	if m == nil {
		return
	}
	m.Consumed.WithLabelValues(topic, result).Inc()
	m.HandlingDuration.WithLabelValues(topic).Observe(seconds)
}

const (
	ResultOK        = "ok"
	ResultError     = "error"
	ResultDLTFailed = "dlt_failed"
)

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

func Handler() http.Handler {
	return promhttp.Handler()
}
