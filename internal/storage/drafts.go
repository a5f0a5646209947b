// Package storage keeps composed drafts and their archive sync state.
package storage

import (
	"context"
	"errors"
	"time"

	"kindlecrm/internal/core"
)

// DefaultListLimit applies when a caller asks for a non-positive number of drafts.
const DefaultListLimit = 20

// ErrDraftNotFound is returned when no draft has the requested id.
var ErrDraftNotFound = errors.New("draft not found")

// DraftRepository is implemented by the SQLite and in-memory stores.
type DraftRepository interface {
	SaveDraft(ctx context.Context, d core.Draft) (core.Draft, error)
	GetDraft(ctx context.Context, id int64) (core.Draft, error)
	ListRecentDrafts(ctx context.Context, limit int) ([]core.Draft, error)
	GetPendingSyncDrafts(ctx context.Context, limit int) ([]PendingSyncDraft, error)
	MarkSynced(ctx context.Context, id int64) error
	MarkSyncError(ctx context.Context, id int64) error
	Close() error
}

// PendingSyncDraft is the minimal data needed to queue a draft for archiving.
type PendingSyncDraft struct {
	ID        int64
	Version   int64
	CreatedAt time.Time
}
