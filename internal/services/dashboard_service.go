// Package services orchestrates the dashboard: uploads, summaries, history
// and message composition for one browser session at a time.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"kindlecrm/internal/composer"
	"kindlecrm/internal/core"
	"kindlecrm/internal/ingest"
	"kindlecrm/internal/log"
	"kindlecrm/internal/metrics"
	"kindlecrm/internal/session"
)

var (
	// ErrNoUpload means the session has no table yet.
	ErrNoUpload = errors.New("no donation table uploaded")
	// ErrTableInvalid means the stored upload failed column validation.
	ErrTableInvalid = errors.New("uploaded table failed validation")
)

// MatchPolicy selects how the history view finds a donor's records.
type MatchPolicy string

const (
	MatchName MatchPolicy = "name"
	MatchKey  MatchPolicy = "key"
)

// Overview is everything the summary panel shows.
type Overview struct {
	Upload    *core.Upload
	Summaries []core.DonorSummary
	Totals    core.Totals
	Names     []string
	Ambiguous []string
}

// HistoryView is one donor's donation history.
type HistoryView struct {
	Name      string
	Email     string
	Records   []core.DonationRecord
	Ambiguous bool
	Policy    MatchPolicy
}

// ComposeInput is the compose form as submitted.
type ComposeInput struct {
	Name        string
	Email       string
	MessageType string
	Context     string
}

// ComposeResult is a generated message and, when it could be stored, its draft.
type ComposeResult struct {
	Request core.ComposeRequest
	Text    string
	Draft   *core.Draft
}

type DashboardOptions struct {
	Sessions session.Store
	Composer composer.Composer
	Drafts   *DraftService
	Metrics  *metrics.Metrics
	Logger   *log.Logger
	Policy   MatchPolicy
}

type DashboardService struct {
	sessions session.Store
	composer composer.Composer
	drafts   *DraftService
	metrics  *metrics.Metrics
	logger   *log.Logger
	events   *log.StructuredLogger
	policy   MatchPolicy
	group    singleflight.Group
	now      func() time.Time
}

func NewDashboardService(opts DashboardOptions) *DashboardService {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	policy := opts.Policy
	if policy != MatchKey {
		policy = MatchName
	}
	return &DashboardService{
		sessions: opts.Sessions,
		composer: opts.Composer,
		drafts:   opts.Drafts,
		metrics:  opts.Metrics,
		logger:   logger.WithComponent(log.ComponentDashboard),
		events:   log.NewStructuredLogger(logger),
		policy:   policy,
		now:      time.Now,
	}
}

func (s *DashboardService) Policy() MatchPolicy {
	return s.policy
}

// Upload loads a CSV and stores it in the session, also when it failed
// column validation so the raw table stays visible. The validation error is
// returned alongside the upload.
func (s *DashboardService) Upload(ctx context.Context, sid, fileName string, r io.Reader) (*core.Upload, error) {
	up, loadErr := ingest.Load(r)
	if up == nil {
		s.observeUpload(metrics.UploadError, nil)
		s.logger.WarnContext(ctx, "Unreadable upload",
			log.FieldFileName, fileName, log.FieldError, loadErr, log.FieldOperation, log.OpUpload)
		return nil, loadErr
	}
	up.FileName = fileName
	up.LoadedAt = s.now().UTC()

	if err := s.sessions.Put(ctx, sid, up); err != nil {
		s.observeUpload(metrics.UploadError, up)
		return nil, fmt.Errorf("store upload: %w", err)
	}
	s.group.Forget(sid)

	if loadErr != nil {
		s.observeUpload(metrics.UploadInvalid, up)
		s.logger.WarnContext(ctx, "Upload failed column validation",
			log.FieldFileName, fileName,
			log.FieldMissing, strings.Join(up.Missing, ","),
			log.FieldErrorType, log.ErrorTypeValidation)
		return up, loadErr
	}

	s.observeUpload(metrics.UploadOK, up)
	donors := len(core.Summarize(up.Table))
	s.events.LogUploadLoaded(ctx, fileName, up.Table.Len(), donors, up.InvalidDates, up.InvalidAmounts)
	return up, nil
}

func (s *DashboardService) observeUpload(result string, up *core.Upload) {
	if s.metrics == nil {
		return
	}
	if up == nil || result != metrics.UploadOK {
		s.metrics.ObserveUpload(result, 0, 0, 0)
		return
	}
	s.metrics.ObserveUpload(result, up.Table.Len(), up.InvalidDates, up.InvalidAmounts)
}

// Current returns the session's upload, valid or not.
func (s *DashboardService) Current(ctx context.Context, sid string) (*core.Upload, error) {
	up, ok, err := s.sessions.Get(ctx, sid)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !ok || up == nil {
		return nil, ErrNoUpload
	}
	return up, nil
}

func (s *DashboardService) validTable(ctx context.Context, sid string) (*core.Upload, error) {
	up, err := s.Current(ctx, sid)
	if err != nil {
		return nil, err
	}
	if !up.Valid() {
		return up, ErrTableInvalid
	}
	return up, nil
}

// Summaries aggregates the session's table. Concurrent calls for the same
// session share one computation, which does not stop when the caller that
// started it goes away.
func (s *DashboardService) Summaries(ctx context.Context, sid string) ([]core.DonorSummary, error) {
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(sid, func() (any, error) {
		up, err := s.validTable(shared, sid)
		if err != nil {
			return nil, err
		}
		return core.Summarize(up.Table), nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]core.DonorSummary)), nil
}

// Overview bundles the summaries with the headline figures.
func (s *DashboardService) Overview(ctx context.Context, sid string) (*Overview, error) {
	up, err := s.validTable(ctx, sid)
	if err != nil {
		return nil, err
	}
	summaries, err := s.Summaries(ctx, sid)
	if err != nil {
		return nil, err
	}
	return &Overview{
		Upload:    up,
		Summaries: summaries,
		Totals:    core.DashboardTotals(summaries),
		Names:     core.DonorNames(summaries),
		Ambiguous: core.AmbiguousNames(summaries),
	}, nil
}

// History returns the donor's records newest first. Under the key policy an
// email narrows the match to one donor.
func (s *DashboardService) History(ctx context.Context, sid, name, email string) (*HistoryView, error) {
	up, err := s.validTable(ctx, sid)
	if err != nil {
		return nil, err
	}
	summaries, err := s.Summaries(ctx, sid)
	if err != nil {
		return nil, err
	}

	view := &HistoryView{Name: name, Policy: s.policy}
	if s.policy == MatchKey && email != "" {
		view.Email = email
		view.Records = core.HistoryForKey(up.Table, core.DonorKey{Name: name, Email: email})
	} else {
		view.Records = core.History(up.Table, name)
		view.Ambiguous = slices.Contains(core.AmbiguousNames(summaries), name)
	}
	return view, nil
}

// Compose drafts a message for a donor of the session's table. The total is
// taken from the donor's summary. A composer failure leaves the session
// untouched and is returned as a *core.CompositionError.
func (s *DashboardService) Compose(ctx context.Context, sid string, in ComposeInput) (*ComposeResult, error) {
	mt, err := core.ParseMessageType(in.MessageType)
	if err != nil {
		s.observeCompose("unknown", metrics.ComposeInvalid, 0)
		return nil, &core.ValidationError{Fields: []string{"MessageType (oneof)"}}
	}

	summaries, err := s.Summaries(ctx, sid)
	if err != nil {
		return nil, err
	}
	donor, ok := s.findDonor(summaries, strings.TrimSpace(in.Name), strings.TrimSpace(in.Email))
	if !ok {
		s.observeCompose(string(mt), metrics.ComposeInvalid, 0)
		return nil, &core.ValidationError{Fields: []string{"DonorName (unknown donor)"}}
	}

	req := core.ComposeRequest{
		DonorName:    donor.Name,
		TotalDonated: donor.Total,
		MessageType:  mt,
		Context:      in.Context,
	}
	if err := req.Validate(); err != nil {
		s.observeCompose(string(mt), metrics.ComposeInvalid, 0)
		return nil, err
	}

	start := s.now()
	text, err := s.composer.Compose(ctx, req)
	took := s.now().Sub(start)
	if err != nil {
		if core.IsValidationError(err) {
			s.observeCompose(string(mt), metrics.ComposeInvalid, took)
			return nil, err
		}
		if !core.IsCompositionError(err) {
			err = &core.CompositionError{DonorName: req.DonorName, MessageType: mt, Err: err}
		}
		s.observeCompose(string(mt), metrics.ComposeFailed, took)
		s.events.LogError(ctx, "Message composition failed", err,
			log.ComponentComposer, log.OpCompose, log.ErrorTypeComposition,
			log.NewFields().WithDraft(0, req.DonorName, string(mt)))
		return nil, err
	}
	s.observeCompose(string(mt), metrics.ComposeOK, took)

	res := &ComposeResult{Request: req, Text: text}
	var draftID int64
	if s.drafts != nil {
		d, err := s.drafts.Save(ctx, core.NewDraft(req, donor.Email, text))
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to store draft",
				log.FieldDonorName, req.DonorName, log.FieldError, err)
		} else {
			res.Draft = &d
			draftID = d.ID
		}
	}
	s.events.LogDraftComposed(ctx, draftID, req.DonorName, string(mt))
	return res, nil
}

// RecentDrafts lists stored drafts, newest first. Without a draft store it
// returns nothing.
func (s *DashboardService) RecentDrafts(ctx context.Context, limit int) ([]core.Draft, error) {
	if s.drafts == nil {
		return []core.Draft{}, nil
	}
	return s.drafts.Recent(ctx, limit)
}

type donorTarget struct {
	Name  string
	Email string
	Total decimal.Decimal
}

// findDonor resolves the compose target. Under the name policy the totals of
// every donor sharing the name are combined, matching the history view.
func (s *DashboardService) findDonor(summaries []core.DonorSummary, name, email string) (donorTarget, bool) {
	matches := core.SummaryFor(summaries, name)
	if len(matches) == 0 {
		return donorTarget{}, false
	}
	if s.policy == MatchKey && email != "" {
		for _, m := range matches {
			if m.Key.Email == email {
				return donorTarget{Name: name, Email: email, Total: m.TotalDonated}, true
			}
		}
		return donorTarget{}, false
	}
	t := donorTarget{Name: name, Email: matches[0].Key.Email, Total: decimal.Zero}
	for _, m := range matches {
		t.Total = t.Total.Add(m.TotalDonated)
	}
	return t, true
}

func (s *DashboardService) observeCompose(messageType, result string, took time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveComposition(messageType, result, took)
	}
}
