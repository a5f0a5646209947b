package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"kindlecrm/internal/core"
	"kindlecrm/internal/log"

	_ "modernc.org/sqlite"
)

const draftColumns = `id, donor_name, donor_email, message_type, total_donated, context, body, created_at, version, sync_status`

// SQLiteRepository stores drafts in a local SQLite file.
type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
	now    func() time.Time
}

var _ DraftRepository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between the web process goroutines.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		logger: logger.WithComponent(log.ComponentStorage),
		now:    time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping is used by the readiness probe.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) SaveDraft(ctx context.Context, d core.Draft) (core.Draft, error) {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = r.now()
	}
	d.CreatedAt = d.CreatedAt.UTC().Truncate(time.Millisecond)
	d.Version = 1
	d.SyncStatus = core.SyncPending

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO drafts (donor_name, donor_email, message_type, total_donated, context, body, created_at, version, sync_status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.DonorName, d.DonorEmail, string(d.MessageType), d.TotalDonated.String(), d.Context, d.Text,
		d.CreatedAt.UnixMilli(), d.Version, d.SyncStatus)
	if err != nil {
		return d, fmt.Errorf("insert draft: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return d, fmt.Errorf("draft id: %w", err)
	}
	d.ID = id

	r.logger.InfoContext(ctx, "Draft saved to SQLite",
		log.FieldDraftID, d.ID,
		log.FieldDonorName, d.DonorName,
		log.FieldMessageType, string(d.MessageType))
	return d, nil
}

func (r *SQLiteRepository) GetDraft(ctx context.Context, id int64) (core.Draft, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+draftColumns+` FROM drafts WHERE id = ?`, id)
	d, err := scanDraft(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Draft{}, fmt.Errorf("get draft %d: %w", id, ErrDraftNotFound)
	}
	if err != nil {
		return core.Draft{}, fmt.Errorf("get draft %d: %w", id, err)
	}
	return d, nil
}

// ListRecentDrafts returns the newest drafts first.
func (r *SQLiteRepository) ListRecentDrafts(ctx context.Context, limit int) ([]core.Draft, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+draftColumns+` FROM drafts ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()

	out := make([]core.Draft, 0, limit)
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetPendingSyncDrafts returns drafts not yet archived, oldest first.
// Drafts whose last attempt failed are included so the sweep retries them.
func (r *SQLiteRepository) GetPendingSyncDrafts(ctx context.Context, limit int) ([]PendingSyncDraft, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, version, created_at FROM drafts
		 WHERE sync_status IN ('pending', 'error')
		 ORDER BY created_at ASC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync drafts: %w", err)
	}
	defer rows.Close()

	var out []PendingSyncDraft
	for rows.Next() {
		var p PendingSyncDraft
		var created int64
		if err := rows.Scan(&p.ID, &p.Version, &created); err != nil {
			return nil, fmt.Errorf("scan pending draft: %w", err)
		}
		p.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	if err := r.setSyncStatus(ctx, id, core.SyncSynced); err != nil {
		return fmt.Errorf("mark draft synced: %w", err)
	}
	r.logger.InfoContext(ctx, "Draft marked as synced", log.FieldDraftID, id)
	return nil
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if err := r.setSyncStatus(ctx, id, core.SyncError); err != nil {
		return fmt.Errorf("mark draft sync error: %w", err)
	}
	r.logger.WarnContext(ctx, "Draft marked with sync error", log.FieldDraftID, id)
	return nil
}

func (r *SQLiteRepository) setSyncStatus(ctx context.Context, id int64, status string) error {
	var syncedAt any
	if status == core.SyncSynced {
		syncedAt = r.now().UnixMilli()
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE drafts SET sync_status = ?, synced_at = ? WHERE id = ?`, status, syncedAt, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDraftNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDraft(s scanner) (core.Draft, error) {
	var (
		d       core.Draft
		mt      string
		total   string
		created int64
	)
	if err := s.Scan(&d.ID, &d.DonorName, &d.DonorEmail, &mt, &total, &d.Context, &d.Text, &created, &d.Version, &d.SyncStatus); err != nil {
		return d, err
	}
	d.MessageType = core.MessageType(mt)
	d.CreatedAt = time.UnixMilli(created).UTC()
	amt, err := decimal.NewFromString(total)
	if err != nil {
		return d, fmt.Errorf("total_donated %q: %w", total, err)
	}
	d.TotalDonated = amt
	return d, nil
}
