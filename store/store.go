// package store keeps sweep results keyed by run key, so that a repeated
// sweep over the same data and candidates can skip candidates it has already
// evaluated. See crossval.RunKey for how keys are formed.
package store

import (
	"context"
	"sync"

	"github.com/btracey/crossval"
)

// Store is a crossval.ResultStore that can be closed.
type Store interface {
	crossval.ResultStore
	Close() error
}

// Memory is a Store that lives in the process. The zero value is not usable;
// use NewMemory.
type Memory struct {
	mu      sync.RWMutex
	results map[string]crossval.SweepResult
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{results: make(map[string]crossval.SweepResult)}
}

func (m *Memory) Get(ctx context.Context, key string) (crossval.SweepResult, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[key]
	return r, ok, nil
}

func (m *Memory) Put(ctx context.Context, key string, r crossval.SweepResult) error {
	m.mu.Lock()
	m.results[key] = r
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored results.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.results)
}

func (m *Memory) Close() error { return nil }
