// internal/service/order/infrastructure/adapter/memory_publisher.go
package adapter

import (
	"context"
	"sync"

	"beerorder/internal/service/order/domain"
)

// PublishedMessage 是 MemoryPublisher 记录下的一次发布。
type PublishedMessage struct {
	Channel domain.Channel
	Key     string
	Payload any
}

// MemoryPublisher 只记录消息，不做投递。用于单机模式和测试。
type MemoryPublisher struct {
	mu   sync.Mutex
	msgs []PublishedMessage
	err  error
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(_ context.Context, channel domain.Channel, key string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, PublishedMessage{Channel: channel, Key: key, Payload: payload})
	return nil
}

// FailWith 让后续的 Publish 都返回 err，传 nil 恢复。
func (p *MemoryPublisher) FailWith(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

// Messages 返回所有已发布消息的副本。
func (p *MemoryPublisher) Messages() []PublishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PublishedMessage(nil), p.msgs...)
}

// On 返回发往 channel 的消息。
func (p *MemoryPublisher) On(channel domain.Channel) []PublishedMessage {
	var out []PublishedMessage
	for _, m := range p.Messages() {
		if m.Channel == channel {
			out = append(out, m)
		}
	}
	return out
}

// Drain 取出并清空已记录的消息。
func (p *MemoryPublisher) Drain() []PublishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.msgs
	p.msgs = nil
	return out
}
