// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

const (
	FieldService = "service"
	FieldTraceID = "trace_id"
	FieldSpanID  = "span_id"
	FieldOrderID = "order_id"
)

var (
	once sync.Once
	base = zerolog.New(os.Stdout).With().Timestamp().Logger()
	mu   sync.RWMutex
)

// Init 配置全局 logger，只有第一次调用生效。
func Init(service, level string) {
	once.Do(func() {
		configure(os.Stdout, service, level)
	})
}

// InitWithWriter 用于测试或需要自定义输出的场景，每次调用都会覆盖全局 logger。
func InitWithWriter(w io.Writer, service, level string) {
	configure(w, service, level)
}

func configure(w io.Writer, service, level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	l := zerolog.New(w).Level(lvl).With().Timestamp()
	if service != "" {
		l = l.Str(FieldService, service)
	}

	mu.Lock()
	base = l.Logger()
	mu.Unlock()
}

// L 返回不带上下文信息的全局 logger。
func L() *zerolog.Logger {
	mu.RLock()
	l := base
	mu.RUnlock()
	return &l
}

// Ctx 返回带有 trace_id / span_id 的 logger，便于在 Jaeger 和日志之间跳转。
func Ctx(ctx context.Context) *zerolog.Logger {
	l := L()
	if ctx == nil {
		return l
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	enriched := l.With().
		Str(FieldTraceID, sc.TraceID().String()).
		Str(FieldSpanID, sc.SpanID().String()).
		Logger()
	return &enriched
}
