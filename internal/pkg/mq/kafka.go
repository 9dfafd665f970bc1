// internal/pkg/mq/kafka.go
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// SplitBrokers 解析 "host1:9092,host2:9092" 形式的 broker 列表。
func SplitBrokers(csv string) []string {
	var brokers []string
	for _, b := range strings.Split(csv, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// NewKafkaWriter 创建一个按 key 哈希分区的 writer。
// topic 为空时每条消息需要自己指定 Topic。
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
}

// NewKafkaReader 创建一个消费组 reader，offset 由调用方手动提交。
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: 0,
	})
}

// MessageWriter 是 *kafka.Writer 的最小子集，方便在测试中替换。
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// ProduceMessage 写入一条带 trace 上下文的消息。
func ProduceMessage(ctx context.Context, writer MessageWriter, topic string, key, value []byte) error {
	msg := kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
		Time:  time.Now().UTC(),
	}
	InjectTraceContext(ctx, &msg.Headers)
	return writer.WriteMessages(ctx, msg)
}

// JSONPublisher 把任意 payload 序列化为 JSON 并发送到指定 topic。
type JSONPublisher struct {
	writer MessageWriter
}

func NewJSONPublisher(writer MessageWriter) *JSONPublisher {
	return &JSONPublisher{writer: writer}
}

func (p *JSONPublisher) PublishJSON(ctx context.Context, topic, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for topic %s: %w", topic, err)
	}
	if err := ProduceMessage(ctx, p.writer, topic, []byte(key), data); err != nil {
		return fmt.Errorf("produce to topic %s: %w", topic, err)
	}
	return nil
}
