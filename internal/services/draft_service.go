package services

import (
	"context"
	"fmt"

	"kindlecrm/internal/core"
	"kindlecrm/internal/log"
	"kindlecrm/internal/storage"
)

// SyncPublisher queues a stored draft for archiving.
type SyncPublisher interface {
	PublishDraftSync(ctx context.Context, id, version int64) error
}

// DraftService saves drafts locally and then tells the worker about them.
type DraftService struct {
	repo      storage.DraftRepository
	publisher SyncPublisher
	logger    *log.Logger
}

// NewDraftService accepts a nil publisher; drafts then wait for the
// worker's periodic sweep.
func NewDraftService(repo storage.DraftRepository, publisher SyncPublisher, logger *log.Logger) *DraftService {
	if logger == nil {
		logger = log.Discard()
	}
	return &DraftService{
		repo:      repo,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentDrafts),
	}
}

// Save stores the draft first and publishes the sync message second. A
// publish failure is logged and does not fail the call.
func (s *DraftService) Save(ctx context.Context, d core.Draft) (core.Draft, error) {
	saved, err := s.repo.SaveDraft(ctx, d)
	if err != nil {
		return d, fmt.Errorf("save draft: %w", err)
	}

	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP client not available, draft left for the sweep", log.FieldDraftID, saved.ID)
		return saved, nil
	}
	if err := s.publisher.PublishDraftSync(ctx, saved.ID, saved.Version); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish sync message",
			log.FieldDraftID, saved.ID,
			log.FieldError, err,
			log.FieldOperation, log.OpPublish)
	}
	return saved, nil
}

// Recent lists the newest drafts.
func (s *DraftService) Recent(ctx context.Context, limit int) ([]core.Draft, error) {
	drafts, err := s.repo.ListRecentDrafts(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	return drafts, nil
}

func (s *DraftService) Close() error {
	return s.repo.Close()
}
