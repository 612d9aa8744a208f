// Package cache remembers screening results per resume content and job posting.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/spigell/hr-screener/internal/decision"
)

const DefaultMaxEntries = 256

// Key identifies a result by the resume bytes and the job URL it was screened against.
func Key(resume []byte, jobURL string) string {
	sum := sha256.Sum256(resume)
	return hex.EncodeToString(sum[:]) + "-" + jobURL
}

type Entry struct {
	Decision   decision.Decision
	Score      int
	Summary    string
	Email      string
	FilePath   string
	Similarity *float64
	CreatedAt  time.Time
}

// Store keeps entries up to a fixed count, dropping the oldest first.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Put(ctx context.Context, key string, entry *Entry) error
	Len(ctx context.Context) (int, error)
}

type Memory struct {
	mu      sync.Mutex
	max     int
	order   []string
	entries map[string]*Entry
}

func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Memory{max: maxEntries, entries: make(map[string]*Entry)}
}

func (m *Memory) Get(_ context.Context, key string) (*Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	cp := *entry
	return &cp, true, nil
}

// Put stores entry. Replacing an existing key keeps its position in the
// eviction order.
func (m *Memory) Put(_ context.Context, key string, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *entry
	if _, ok := m.entries[key]; ok {
		m.entries[key] = &cp
		return nil
	}

	m.entries[key] = &cp
	m.order = append(m.order, key)

	for len(m.order) > m.max {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.entries, oldest)
	}
	return nil
}

func (m *Memory) Len(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries), nil
}
