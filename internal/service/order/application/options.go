// internal/service/order/application/options.go
package application

import (
	"time"

	"beerorder/internal/pkg/metrics"
	"beerorder/internal/service/order/port"

	"go.opentelemetry.io/otel/trace"
)

// Config 控制竞态等待、冲突重试和加锁超时。
type Config struct {
	AwaitInterval   time.Duration
	AwaitAttempts   int
	StrictRace      bool
	ConflictRetries int
	LockTimeout     time.Duration

	NotifyValidationFailure bool
}

// DefaultConfig 与原有行为一致：每 100ms 查一次，最多 50 次，超时后继续处理。
func DefaultConfig() Config {
	return Config{
		AwaitInterval:           100 * time.Millisecond,
		AwaitAttempts:           50,
		ConflictRetries:         3,
		LockTimeout:             10 * time.Second,
		NotifyValidationFailure: true,
	}
}

type Option func(*OrderApplicationService)

func WithConfig(cfg Config) Option {
	return func(s *OrderApplicationService) { s.cfg = cfg }
}

func WithLocker(l port.OrderLocker) Option {
	return func(s *OrderApplicationService) { s.locker = l }
}

func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *OrderApplicationService) { s.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *OrderApplicationService) { s.tracer = t }
}

func WithObservers(obs ...port.StatusObserver) Option {
	return func(s *OrderApplicationService) { s.observers = append(s.observers, obs...) }
}
