// Package worker archives composed drafts to the shared spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"

	"kindlecrm/internal/amqp"
	"kindlecrm/internal/core"
	"kindlecrm/internal/log"
	"kindlecrm/internal/metrics"
	"kindlecrm/internal/sheets"
	"kindlecrm/internal/storage"
)

const DefaultBatchSize = 20

// SyncWorker moves drafts from the local store to the archive sheet.
type SyncWorker struct {
	drafts    storage.DraftRepository
	archiver  sheets.DraftArchiver
	metrics   *metrics.Metrics
	logger    *log.Logger
	batchSize int
}

func NewSyncWorker(drafts storage.DraftRepository, archiver sheets.DraftArchiver, m *metrics.Metrics, logger *log.Logger, batchSize int) *SyncWorker {
	if logger == nil {
		logger = log.Discard()
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &SyncWorker{
		drafts:    drafts,
		archiver:  archiver,
		metrics:   m,
		logger:    logger.WithComponent(log.ComponentWorker),
		batchSize: batchSize,
	}
}

// HandleSyncMessage archives the draft named by msg. A returned error makes
// the consumer requeue the message; unknown or already archived drafts are
// acknowledged.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.DraftSyncMessage) error {
	d, err := w.drafts.GetDraft(ctx, msg.ID)
	if errors.Is(err, storage.ErrDraftNotFound) {
		w.logger.WarnContext(ctx, "Sync message for unknown draft", log.FieldDraftID, msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get draft from storage: %w", err)
	}
	if d.SyncStatus == core.SyncSynced || d.Version > msg.Version {
		w.logger.DebugContext(ctx, "Draft already archived, skipping",
			log.FieldDraftID, d.ID, "version", msg.Version)
		return nil
	}
	return w.archive(ctx, d)
}

// ProcessPendingDrafts sweeps drafts whose message was lost or whose last
// archive attempt failed. It returns how many were archived.
func (w *SyncWorker) ProcessPendingDrafts(ctx context.Context) (int, error) {
	return w.sweep(ctx, w.batchSize)
}

// StartupSyncCheck runs a larger sweep when the worker starts.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	n, err := w.sweep(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	w.logger.InfoContext(ctx, "Startup sync completed", "synced", n)
	return nil
}

func (w *SyncWorker) sweep(ctx context.Context, limit int) (int, error) {
	pending, err := w.drafts.GetPendingSyncDrafts(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending drafts: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}
	w.logger.InfoContext(ctx, "Processing pending drafts", "count", len(pending))

	synced := 0
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		d, err := w.drafts.GetDraft(ctx, p.ID)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to load pending draft", log.FieldDraftID, p.ID, log.FieldError, err)
			continue
		}
		if err := w.archive(ctx, d); err != nil {
			continue
		}
		synced++
	}
	return synced, nil
}

func (w *SyncWorker) archive(ctx context.Context, d core.Draft) error {
	ref, err := w.archiver.ArchiveDraft(ctx, d)
	if err != nil {
		w.observe(false)
		w.logger.ErrorContext(ctx, "Failed to archive draft",
			log.FieldDraftID, d.ID, log.FieldError, err, log.FieldOperation, log.OpSync)
		if markErr := w.drafts.MarkSyncError(ctx, d.ID); markErr != nil {
			w.logger.ErrorContext(ctx, "Failed to mark sync error", log.FieldDraftID, d.ID, log.FieldError, markErr)
		}
		return fmt.Errorf("archive draft %d: %w", d.ID, err)
	}
	w.observe(true)

	// The row is written; a failed status update only means a duplicate row
	// on the next sweep.
	if err := w.drafts.MarkSynced(ctx, d.ID); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mark draft as synced", log.FieldDraftID, d.ID, log.FieldError, err)
	}
	w.logger.InfoContext(ctx, "Draft archived",
		log.FieldDraftID, d.ID,
		log.FieldSheetsRef, ref,
		log.FieldDonorName, d.DonorName,
		log.FieldMessageType, string(d.MessageType))
	return nil
}

func (w *SyncWorker) observe(ok bool) {
	if w.metrics != nil {
		w.metrics.ObserveArchive(ok)
	}
}
