package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kindlecrm/internal/amqp"
	"kindlecrm/internal/core"
	"kindlecrm/internal/metrics"
	"kindlecrm/internal/sheets/memory"
	"kindlecrm/internal/storage"
)

func seed(t *testing.T, repo storage.DraftRepository, names ...string) []core.Draft {
	t.Helper()
	var out []core.Draft
	for _, n := range names {
		d, err := repo.SaveDraft(context.Background(), core.NewDraft(core.ComposeRequest{
			DonorName:    n,
			TotalDonated: decimal.NewFromInt(10),
			MessageType:  core.ThankYou,
		}, n+"@x.com", "Dear "+n))
		require.NoError(t, err)
		out = append(out, d)
	}
	return out
}

func status(t *testing.T, repo storage.DraftRepository, id int64) string {
	t.Helper()
	d, err := repo.GetDraft(context.Background(), id)
	require.NoError(t, err)
	return d.SyncStatus
}

func TestHandleSyncMessageArchivesAndMarks(t *testing.T) {
	repo := storage.NewMemoryDrafts()
	arch := memory.New()
	w := NewSyncWorker(repo, arch, metrics.New(), nil, 0)
	drafts := seed(t, repo, "Alice")

	msg := amqp.NewDraftSyncMessage(drafts[0].ID, drafts[0].Version)
	require.NoError(t, w.HandleSyncMessage(context.Background(), msg))
	assert.Equal(t, core.SyncSynced, status(t, repo, drafts[0].ID))
	assert.Len(t, arch.Rows(), 1)

	// redelivery is a no-op
	require.NoError(t, w.HandleSyncMessage(context.Background(), msg))
	assert.Len(t, arch.Rows(), 1)
}

func TestHandleSyncMessageFailureMarksErrorAndRequeues(t *testing.T) {
	repo := storage.NewMemoryDrafts()
	arch := memory.New()
	arch.SetFailure(errors.New("quota exceeded"))
	w := NewSyncWorker(repo, arch, nil, nil, 0)
	drafts := seed(t, repo, "Bob")

	err := w.HandleSyncMessage(context.Background(), amqp.NewDraftSyncMessage(drafts[0].ID, 1))
	require.Error(t, err)
	assert.Equal(t, core.SyncError, status(t, repo, drafts[0].ID))
}

func TestHandleSyncMessageUnknownDraftIsAcked(t *testing.T) {
	w := NewSyncWorker(storage.NewMemoryDrafts(), memory.New(), nil, nil, 0)
	assert.NoError(t, w.HandleSyncMessage(context.Background(), amqp.NewDraftSyncMessage(99, 1)))
}

func TestProcessPendingDraftsRetriesFailures(t *testing.T) {
	repo := storage.NewMemoryDrafts()
	arch := memory.New()
	w := NewSyncWorker(repo, arch, nil, nil, 2)
	drafts := seed(t, repo, "A", "B", "C")

	arch.SetFailure(errors.New("sheet offline"))
	n, err := w.ProcessPendingDrafts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, core.SyncError, status(t, repo, drafts[0].ID))

	arch.SetFailure(nil)
	n, err = w.ProcessPendingDrafts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n, "batch size bounds one sweep")

	require.NoError(t, w.StartupSyncCheck(context.Background()))
	for _, d := range drafts {
		assert.Equal(t, core.SyncSynced, status(t, repo, d.ID))
	}
	assert.Len(t, arch.Rows(), 3)
}
