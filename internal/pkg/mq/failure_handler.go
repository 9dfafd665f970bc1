// internal/pkg/mq/failure_handler.go
package mq

import (
	"context"
	"fmt"
	"strconv"

	"beerorder/internal/pkg/logger"

	"github.com/segmentio/kafka-go"
)

const (
	HeaderOriginalTopic     = "x-original-topic"
	HeaderOriginalPartition = "x-original-partition"
	HeaderOriginalOffset    = "x-original-offset"
	HeaderExceptionFqcn     = "x-exception-fqcn"
	HeaderExceptionMessage  = "x-exception-message"

	DLTSuffix = ".DLT"
)

// DLTTopic 返回某个 topic 对应的死信 topic。
func DLTTopic(topic string) string {
	return topic + DLTSuffix
}

// FailureHandler 把处理失败的消息转发到死信 topic。
type FailureHandler struct {
	writer MessageWriter
}

func NewFailureHandler(writer MessageWriter) *FailureHandler {
	return &FailureHandler{writer: writer}
}

// Handle 投递死信。投递本身失败时只记录日志，由调用方决定是否提交 offset。
func (h *FailureHandler) Handle(ctx context.Context, msg kafka.Message, cause error) error {
	dlt := kafka.Message{
		Topic: DLTTopic(msg.Topic),
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(append([]kafka.Header(nil), msg.Headers...),
			kafka.Header{Key: HeaderOriginalTopic, Value: []byte(msg.Topic)},
			kafka.Header{Key: HeaderOriginalPartition, Value: []byte(strconv.Itoa(msg.Partition))},
			kafka.Header{Key: HeaderOriginalOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
			kafka.Header{Key: HeaderExceptionFqcn, Value: []byte(fmt.Sprintf("%T", cause))},
			kafka.Header{Key: HeaderExceptionMessage, Value: []byte(cause.Error())},
		),
	}

	if err := h.writer.WriteMessages(ctx, dlt); err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("topic", msg.Topic).
			Int64("offset", msg.Offset).
			Msg("🚨 failed to forward message to DLT")
		return err
	}
	logger.Ctx(ctx).Warn().Err(cause).
		Str("topic", msg.Topic).
		Str("dlt", dlt.Topic).
		Str("key", string(msg.Key)).
		Msg("message forwarded to DLT")
	return nil
}
