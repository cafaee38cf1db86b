package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrLockTimeout возвращается, когда блокировку сделки не удалось взять
// за отведённое время. Вызывающий может повторить операцию.
var ErrLockTimeout = errors.New("escrow lock acquisition timed out")

// lockTable сериализует операции над одной сделкой. Блокировки разных
// сделок независимы: ожидание по одной не задерживает другие. Это
// механизм конкурентного доступа, не бизнес-состояние.
type lockTable struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{entries: make(map[uuid.UUID]*lockEntry)}
}

// acquire берёт блокировку сделки с ограниченным ожиданием.
// Возвращает функцию освобождения либо ErrLockTimeout / ошибку контекста.
func (t *lockTable) acquire(ctx context.Context, id uuid.UUID, wait time.Duration) (func(), error) {
	t.mu.Lock()
	entry, ok := t.entries[id]
	if !ok {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		t.entries[id] = entry
	}
	entry.refs++
	t.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case entry.sem <- struct{}{}:
		return func() {
			<-entry.sem
			t.release(id, entry)
		}, nil
	case <-timer.C:
		t.release(id, entry)
		return nil, ErrLockTimeout
	case <-ctx.Done():
		t.release(id, entry)
		return nil, ctx.Err()
	}
}

// release уменьшает счётчик ссылок и убирает запись, когда ждать больше некому.
func (t *lockTable) release(id uuid.UUID, entry *lockEntry) {
	t.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(t.entries, id)
	}
	t.mu.Unlock()
}
