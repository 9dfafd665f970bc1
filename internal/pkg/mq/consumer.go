// internal/pkg/mq/consumer.go
package mq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"beerorder/internal/pkg/logger"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Handler 处理一条消息。返回的错误由 Consumer 根据 SoftError 判断是否进入死信。
type Handler func(ctx context.Context, msg kafka.Message) error

// MessageReader 是 *kafka.Reader 中 Consumer 用到的部分。
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ConsumerOption func(*Consumer)

// WithWorkers 设置按 key 分发的 worker 数量。
func WithWorkers(n int) ConsumerOption {
	return func(c *Consumer) { c.workers = n }
}

func WithFailureHandler(h *FailureHandler) ConsumerOption {
	return func(c *Consumer) { c.failure = h }
}

// WithSoftError 设置哪些错误只记录日志、不进入死信。
func WithSoftError(fn func(error) bool) ConsumerOption {
	return func(c *Consumer) { c.isSoft = fn }
}

func WithTracer(t trace.Tracer) ConsumerOption {
	return func(c *Consumer) { c.tracer = t }
}

// WithObserver 在每条消息处理完后回调，用于打点。
func WithObserver(fn func(topic string, err error, elapsed time.Duration)) ConsumerOption {
	return func(c *Consumer) { c.observe = fn }
}

func WithMessageTimeout(d time.Duration) ConsumerOption {
	return func(c *Consumer) { c.timeout = d }
}

type inflight struct {
	msg  kafka.Message
	done <-chan struct{}
}

// Consumer 拉取消息后按消息 key 分发到 KeyedPool，
// 再按拉取顺序提交 offset，保证并行处理时 offset 不会越过未完成的消息。
type Consumer struct {
	topic   string
	reader  MessageReader
	handler Handler

	workers int
	timeout time.Duration
	pool    *KeyedPool
	failure *FailureHandler
	isSoft  func(error) bool
	tracer  trace.Tracer
	observe func(topic string, err error, elapsed time.Duration)

	pending chan inflight
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewConsumer(topic string, reader MessageReader, handler Handler, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		topic:   topic,
		reader:  reader,
		handler: handler,
		workers: 4,
		timeout: 30 * time.Second,
		isSoft:  func(error) bool { return false },
		tracer:  noop.NewTracerProvider().Tracer("mq"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.pool = NewKeyedPool(c.workers, 16)
	c.pending = make(chan inflight, c.workers*16)
	return c
}

func (c *Consumer) Topic() string { return c.topic }

// Start 启动拉取和提交两个 goroutine，立即返回。
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)
	c.pool.Start()

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		defer close(c.pending)
		c.fetchLoop(ctx)
	}()
	go func() {
		defer c.wg.Done()
		c.commitLoop(context.WithoutCancel(ctx))
	}()

	logger.Ctx(ctx).Info().Str("topic", c.topic).Int("workers", c.workers).Msg("✅ Kafka consumer started")
	return nil
}

// Stop 停止拉取，等待已拉取的消息处理并提交后关闭 reader。
func (c *Consumer) Stop(ctx context.Context) {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	if err := c.pool.Stop(); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("topic", c.topic).Msg("worker pool stopped with error")
	}
	if err := c.reader.Close(); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("topic", c.topic).Msg("failed to close kafka reader")
	}
	logger.Ctx(ctx).Info().Str("topic", c.topic).Msg("🛑 Kafka consumer stopped")
}

func (c *Consumer) fetchLoop(ctx context.Context) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			logger.Ctx(ctx).Error().Err(err).Str("topic", c.topic).Msg("could not fetch message, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		msgCtx := context.WithoutCancel(ctx)
		done, err := c.pool.Submit(ctx, string(msg.Key), func(context.Context) {
			c.process(msgCtx, msg)
		})
		if err != nil {
			// 未提交的消息会在重启后重新投递
			return
		}
		select {
		case c.pending <- inflight{msg: msg, done: done}:
		case <-ctx.Done():
			return
		}
	}
}

// commitLoop 在消息处理结束后无条件提交 offset。死信投递失败的消息也会被提交，
// 因此死信最多投递一次；这类消息只留下错误日志和 dlt_failed 计数。
func (c *Consumer) commitLoop(ctx context.Context) {
	for p := range c.pending {
		<-p.done
		if err := c.reader.CommitMessages(ctx, p.msg); err != nil {
			logger.Ctx(ctx).Error().Err(err).
				Str("topic", c.topic).
				Int64("offset", p.msg.Offset).
				Msg("failed to commit message")
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	ctx = ExtractTraceContext(ctx, msg.Headers)
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "consume "+c.topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", c.topic),
			attribute.String("messaging.kafka.message.key", string(msg.Key)),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
		))
	defer span.End()

	start := time.Now()
	err := c.handle(ctx, msg)
	outcome := err
	if c.observe != nil {
		defer func() { c.observe(c.topic, outcome, time.Since(start)) }()
	}
	if err == nil {
		return
	}

	if c.isSoft(err) {
		logger.Ctx(ctx).Warn().Err(err).Str("topic", c.topic).Str("key", string(msg.Key)).Msg("message dropped")
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "message handling failed")
	if c.failure == nil {
		logger.Ctx(ctx).Error().Err(err).Str("topic", c.topic).Str("key", string(msg.Key)).Msg("message handling failed")
		return
	}
	if dltErr := c.failure.Handle(ctx, msg, err); dltErr != nil {
		outcome = fmt.Errorf("%w: %v (cause: %v)", ErrDeadLetterFailed, dltErr, err)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return c.handler(ctx, msg)
}

// ErrDeadLetterFailed 表示消息处理失败后转发死信也失败了，消息只能丢弃。
var ErrDeadLetterFailed = errors.New("dead letter forwarding failed")

// PanicError 包装 handler 中的 panic。
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panic: %v", e.Value)
}
