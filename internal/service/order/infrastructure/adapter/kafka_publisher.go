// internal/service/order/infrastructure/adapter/kafka_publisher.go
package adapter

import (
	"context"

	"beerorder/internal/pkg/metrics"
	"beerorder/internal/pkg/mq"
	"beerorder/internal/service/order/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// KafkaPublisher 实现了 port.Publisher：channel 即 topic，订单 ID 作为消息 key。
type KafkaPublisher struct {
	publisher *mq.JSONPublisher
	metrics   *metrics.OrderMetrics
	tracer    trace.Tracer
}

// NewKafkaPublisher 要求 writer 不绑定 topic，由每条消息自己指定。
func NewKafkaPublisher(writer mq.MessageWriter, m *metrics.OrderMetrics, tracer trace.Tracer) *KafkaPublisher {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("publisher")
	}
	return &KafkaPublisher{publisher: mq.NewJSONPublisher(writer), metrics: m, tracer: tracer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, channel domain.Channel, key string, payload any) error {
	ctx, span := p.tracer.Start(ctx, "publish "+string(channel),
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", string(channel)),
			attribute.String("messaging.kafka.message.key", key),
		))
	defer span.End()

	err := p.publisher.PublishJSON(ctx, string(channel), key, payload)
	p.metrics.MessagePublished(string(channel), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
	}
	return err
}
