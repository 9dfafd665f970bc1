// internal/pkg/mq/keyed_pool.go
package mq

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"golang.org/x/sync/errgroup"
)

var ErrPoolClosed = errors.New("keyed pool closed")

type keyedTask struct {
	ctx  context.Context
	fn   func(context.Context)
	done chan struct{}
}

// KeyedPool 按 key 把任务固定分配给同一个 worker：
// 同一个 key 的任务严格串行，不同 key 之间并行。
type KeyedPool struct {
	queues []chan keyedTask
	group  errgroup.Group

	mu      sync.RWMutex
	started bool
	closed  bool
}

func NewKeyedPool(workers, depth int) *KeyedPool {
	if workers <= 0 {
		workers = 1
	}
	if depth < 0 {
		depth = 0
	}
	queues := make([]chan keyedTask, workers)
	for i := range queues {
		queues[i] = make(chan keyedTask, depth)
	}
	return &KeyedPool{queues: queues}
}

// Start 启动所有 worker，重复调用无效果。
func (p *KeyedPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true
	for _, q := range p.queues {
		q := q
		p.group.Go(func() error {
			for t := range q {
				t.fn(t.ctx)
				close(t.done)
			}
			return nil
		})
	}
}

// Submit 把任务放入 key 对应的队列，返回的 channel 在任务执行完毕后关闭。
func (p *KeyedPool) Submit(ctx context.Context, key string, fn func(context.Context)) (<-chan struct{}, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrPoolClosed
	}

	t := keyedTask{ctx: ctx, fn: fn, done: make(chan struct{})}
	select {
	case p.queues[p.slot(key)] <- t:
		return t.done, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop 关闭队列并等待已提交的任务全部执行完。
func (p *KeyedPool) Stop() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	for _, q := range p.queues {
		close(q)
	}
	started := p.started
	p.mu.Unlock()

	if !started {
		return nil
	}
	return p.group.Wait()
}

func (p *KeyedPool) slot(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(p.queues)))
}
