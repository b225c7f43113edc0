// Пакет ratelimit: token bucket на каждый ключ (IP клиента, получатель уведомления).
package ratelimit

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Keyed хранит отдельный лимитер для каждого ключа и периодически
// удаляет ключи, которые давно не появлялись.
type Keyed struct {
	rps   rate.Limit
	burst int
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

func NewKeyed(rps float64, burst int, ttl time.Duration) *Keyed {
	return &Keyed{
		rps:     rate.Limit(rps),
		burst:   burst,
		ttl:     ttl,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Allow расходует один токен ключа.
func (k *Keyed) Allow(key string) bool {
	k.mu.Lock()
	e, found := k.entries[key]
	if !found {
		e = &entry{limiter: rate.NewLimiter(k.rps, k.burst)}
		k.entries[key] = e
		slog.Debug("Создан новый лимитер", "key", key, "rps", float64(k.rps), "burst", k.burst)
	}
	now := k.now()
	e.lastSeen = now
	l := e.limiter
	k.mu.Unlock()

	return l.AllowN(now, 1)
}

// Cleanup удаляет ключи, неактивные дольше ttl. Возвращает число удаленных.
func (k *Keyed) Cleanup() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	removed := 0
	now := k.now()
	for key, e := range k.entries {
		if now.Sub(e.lastSeen) > k.ttl {
			delete(k.entries, key)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("Удалены неактивные лимитеры", "count", removed)
	}
	return removed
}

// Len: число отслеживаемых ключей.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

// StartCleanup запускает периодическую очистку до закрытия stop.
func (k *Keyed) StartCleanup(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				k.Cleanup()
			case <-stop:
				return
			}
		}
	}()
}
