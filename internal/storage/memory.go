package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"kindlecrm/internal/core"
)

// MemoryDrafts is a DraftRepository for development and tests. Drafts are
// lost on restart.
type MemoryDrafts struct {
	mu     sync.RWMutex
	nextID int64
	drafts []core.Draft
	now    func() time.Time
}

var _ DraftRepository = (*MemoryDrafts)(nil)

func NewMemoryDrafts() *MemoryDrafts {
	return &MemoryDrafts{now: time.Now}
}

func (m *MemoryDrafts) SaveDraft(_ context.Context, d core.Draft) (core.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	d.ID = m.nextID
	if d.CreatedAt.IsZero() {
		d.CreatedAt = m.now()
	}
	d.CreatedAt = d.CreatedAt.UTC()
	d.Version = 1
	d.SyncStatus = core.SyncPending
	m.drafts = append(m.drafts, d)
	return d, nil
}

func (m *MemoryDrafts) GetDraft(_ context.Context, id int64) (core.Draft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.index(id); i >= 0 {
		return m.drafts[i], nil
	}
	return core.Draft{}, fmt.Errorf("get draft %d: %w", id, ErrDraftNotFound)
}

func (m *MemoryDrafts) ListRecentDrafts(_ context.Context, limit int) ([]core.Draft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := slices.Clone(m.drafts)
	slices.Reverse(out)
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []core.Draft{}
	}
	return out, nil
}

func (m *MemoryDrafts) GetPendingSyncDrafts(_ context.Context, limit int) ([]PendingSyncDraft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []PendingSyncDraft
	for _, d := range m.drafts {
		if len(out) >= limit {
			break
		}
		if d.SyncStatus == core.SyncPending || d.SyncStatus == core.SyncError {
			out = append(out, PendingSyncDraft{ID: d.ID, Version: d.Version, CreatedAt: d.CreatedAt})
		}
	}
	return out, nil
}

func (m *MemoryDrafts) MarkSynced(_ context.Context, id int64) error {
	return m.setStatus(id, core.SyncSynced)
}

func (m *MemoryDrafts) MarkSyncError(_ context.Context, id int64) error {
	return m.setStatus(id, core.SyncError)
}

func (m *MemoryDrafts) Close() error { return nil }

func (m *MemoryDrafts) setStatus(id int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(id)
	if i < 0 {
		return fmt.Errorf("set sync status of draft %d: %w", id, ErrDraftNotFound)
	}
	m.drafts[i].SyncStatus = status
	return nil
}

func (m *MemoryDrafts) index(id int64) int {
	for i, d := range m.drafts {
		if d.ID == id {
			return i
		}
	}
	return -1
}
