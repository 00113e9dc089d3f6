package districtstats

import (
	"context"
	"sync"

	"github.com/gunhoflash/Project-ComputerGraphics/pkg/model"
)

// MemoryRunStore keeps the most recent refresh runs in memory.
type MemoryRunStore struct {
	mu    sync.Mutex
	cap   int
	order []string
	runs  map[string]model.RefreshRun
}

func NewMemoryRunStore(capacity int) *MemoryRunStore {
	if capacity <= 0 {
		capacity = 50
	}
	return &MemoryRunStore{cap: capacity, runs: make(map[string]model.RefreshRun)}
}

func (m *MemoryRunStore) CreateRun(_ context.Context, run model.RefreshRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.RunID]; !ok {
		m.order = append(m.order, run.RunID)
	}
	m.runs[run.RunID] = run
	for len(m.order) > m.cap {
		delete(m.runs, m.order[0])
		m.order = m.order[1:]
	}
	return nil
}

func (m *MemoryRunStore) UpdateRun(ctx context.Context, run model.RefreshRun) error {
	return m.CreateRun(ctx, run)
}

// ListRuns returns runs newest first.
func (m *MemoryRunStore) ListRuns(_ context.Context, limit int) ([]model.RefreshRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.order) {
		limit = len(m.order)
	}
	out := make([]model.RefreshRun, 0, limit)
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[m.order[i]])
	}
	return out, nil
}

// MemorySnapshotStore keeps the last saved snapshot. Used by tests and the CLI.
type MemorySnapshotStore struct {
	mu    sync.Mutex
	saved []model.Snapshot
}

func (m *MemorySnapshotStore) SaveSnapshot(_ context.Context, snap model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, snap)
	return nil
}

func (m *MemorySnapshotStore) LatestSnapshot(_ context.Context) (model.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return model.Snapshot{}, ErrNoSnapshot
	}
	return m.saved[len(m.saved)-1], nil
}

// Saved returns how many snapshots were saved.
func (m *MemorySnapshotStore) Saved() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}
