package lock

import (
	"context"
	"fmt"
	"sync"
)

type localLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocalLocker returns a process-local Locker.
func NewLocalLocker() Locker {
	return &localLocker{slots: make(map[string]chan struct{})}
}

func (l *localLocker) slot(name string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[name]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[name] = ch
	}
	return ch
}

func (l *localLocker) Lock(ctx context.Context, name string) (Lock, error) {
	ch := l.slot(name)
	select {
	case ch <- struct{}{}:
		return &localLock{ch: ch}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("lock %s: %w: %w", name, ErrLockNotAcquired, ctx.Err())
	}
}

type localLock struct {
	once sync.Once
	ch   chan struct{}
}

func (l *localLock) Unlock(context.Context) error {
	l.once.Do(func() { <-l.ch })
	return nil
}
