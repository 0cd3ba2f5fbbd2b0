// Package cache holds the availability cache implementations: a process-local
// mutex-guarded map for single-instance deployments and a redis-backed variant
// for multi-instance ones. Both trade a short staleness window for throughput;
// callers layer a ~60s HTTP cache hint on top so a missed invalidation
// self-heals within a minute.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/clinicboard/clinicboard/internal/availability"
)

// Memory is the in-process availability cache. Safe for concurrent readers and
// a single invalidator; entries expire passively after maxAge as a backstop on
// top of explicit invalidation.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	maxAge  time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	res      *availability.Result
	storedAt time.Time
}

func NewMemory(maxAge time.Duration) *Memory {
	if maxAge <= 0 {
		maxAge = 5 * time.Minute
	}
	return &Memory{
		entries: make(map[string]memoryEntry),
		maxAge:  maxAge,
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, serviceCode, date string) (*availability.Result, bool) {
	m.mu.RLock()
	entry, ok := m.entries[entryKey(serviceCode, date)]
	m.mu.RUnlock()
	if !ok || m.now().Sub(entry.storedAt) > m.maxAge {
		return nil, false
	}
	return entry.res.Clone(), true
}

func (m *Memory) Set(_ context.Context, serviceCode, date string, res *availability.Result) {
	m.mu.Lock()
	m.entries[entryKey(serviceCode, date)] = memoryEntry{res: res, storedAt: m.now()}
	m.mu.Unlock()
}

// Invalidate drops the entry for (serviceCode, date); with an empty serviceCode
// it drops every service's entry for the date, which is what an all-services
// closure change requires.
func (m *Memory) Invalidate(_ context.Context, date, serviceCode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if serviceCode != "" {
		delete(m.entries, entryKey(serviceCode, date))
		return
	}
	suffix := "|" + date
	for k := range m.entries {
		if len(k) >= len(suffix) && k[len(k)-len(suffix):] == suffix {
			delete(m.entries, k)
		}
	}
}

func entryKey(serviceCode, date string) string {
	return serviceCode + "|" + date
}
