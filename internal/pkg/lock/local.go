package lock

import (
	"context"
	"fmt"
	"sync"
)

type localEntry struct {
	ch   chan struct{}
	refs int
}

// LocalLocker 是进程内的按 key 互斥锁，空闲的 key 会被回收。
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localEntry
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*localEntry)}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func() error, error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &localEntry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, ctx.Err())
	}

	var once sync.Once
	return func() error {
		err := ErrNotHeld
		once.Do(func() {
			<-e.ch
			l.release(key, e)
			err = nil
		})
		return err
	}, nil
}

func (l *LocalLocker) release(key string, e *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

// size 返回当前持有或等待中的 key 数量。
func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
