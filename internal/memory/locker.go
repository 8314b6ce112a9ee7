package memory

import (
	"context"
	"sync"

	redisclient "github.com/qzero-app/scheduling-engine/internal/redis"
)

// Locker is the in-process equivalent of the Redis locker: one mutex
// per key. Unlike SetNX it blocks instead of failing, which is the
// behavior wanted when everything runs in a single process.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var _ redisclient.Locker = (*Locker)(nil)

func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*sync.Mutex)}
}

func (l *Locker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}
