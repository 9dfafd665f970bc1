// internal/service/order/interfaces/dlt_handler.go
package interfaces

import (
	"context"

	"beerorder/internal/pkg/logger"
	"beerorder/internal/pkg/mq"

	"github.com/segmentio/kafka-go"
)

// HandleDeadLetter 记录死信详情。死信消息总是视为已处理，直接提交。
func HandleDeadLetter(ctx context.Context, msg kafka.Message) error {
	logger.Ctx(ctx).Error().
		Str("reason", "dead_letter_message_received").
		Str("original_topic", mq.HeaderValue(msg, mq.HeaderOriginalTopic)).
		Str("original_partition", mq.HeaderValue(msg, mq.HeaderOriginalPartition)).
		Str("original_offset", mq.HeaderValue(msg, mq.HeaderOriginalOffset)).
		Str("exception_fqcn", mq.HeaderValue(msg, mq.HeaderExceptionFqcn)).
		Str("exception_message", mq.HeaderValue(msg, mq.HeaderExceptionMessage)).
		Str("key", string(msg.Key)).
		Str("value", string(msg.Value)).
		Msg("🚨 CRITICAL: Dead letter message received")
	return nil
}
