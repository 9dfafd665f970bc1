package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestOrderMetrics_Counters(t *testing.T) {
	m := NewOrderMetrics(prometheus.NewRegistry())

	m.Transition("NEW", "VALIDATION_PENDING", "VALIDATE_ORDER")
	m.Transition("NEW", "VALIDATION_PENDING", "VALIDATE_ORDER")
	m.EventRejected("ALLOCATED", "ALLOCATION_SUCCESS")
	m.RaceTimeout("validation_result")
	m.MessagePublished("validate-order", nil)
	m.MessagePublished("validate-order", errors.New("broker down"))
	m.MessageConsumed("validate-order-result", nil, 0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Transitions.WithLabelValues("NEW", "VALIDATION_PENDING", "VALIDATE_ORDER")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejected.WithLabelValues("ALLOCATED", "ALLOCATION_SUCCESS")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RaceTimeouts.WithLabelValues("validation_result")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Published.WithLabelValues("validate-order", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Published.WithLabelValues("validate-order", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Consumed.WithLabelValues("validate-order-result", "ok")))
}

func TestOrderMetrics_ConsumedResultLabels(t *testing.T) {
	m := NewOrderMetrics(prometheus.NewRegistry())

	m.MessageConsumed("allocate-order-result", errors.New("boom"), 0.02)
	m.MessageConsumedResult("allocate-order-result", ResultDLTFailed, 0.03)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Consumed.WithLabelValues("allocate-order-result", ResultError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Consumed.WithLabelValues("allocate-order-result", ResultDLTFailed)))
}

func TestOrderMetrics_NilSafe(t *testing.T) {
	var m *OrderMetrics
	assert.NotPanics(t, func() {
		m.Transition("a", "b", "c")
		m.EventRejected("a", "b")
		m.RaceTimeout("x")
		m.MessagePublished("c", nil)
		m.MessageConsumed("t", nil, 0)
		m.MessageConsumedResult("t", ResultDLTFailed, 0)
	})
}
