// Package google archives drafts to a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"kindlecrm/internal/core"
	"kindlecrm/internal/log"
	ports "kindlecrm/internal/sheets"
)

const DefaultDraftsSheet = "Drafts"

var _ ports.DraftArchiver = (*Client)(nil)

// Config selects the spreadsheet and the service account used to write it.
type Config struct {
	SpreadsheetID      string
	DraftsSheet        string
	ServiceAccountJSON string
	ServiceAccountFile string
	// Endpoint and HTTPClient override the Google defaults (tests).
	Endpoint   string
	HTTPClient *http.Client
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	draftsSheet   string
	logger        *log.Logger
}

func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheet := strings.TrimSpace(cfg.DraftsSheet)
	if sheet == "" {
		sheet = DefaultDraftsSheet
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		draftsSheet:   sheet,
		logger:        logger.WithComponent(log.ComponentSheets),
	}, nil
}

// newSheetsService authenticates with a service account, given inline or as
// a file. An explicit HTTP client skips authentication.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	var opts []goption.ClientOption
	switch {
	case cfg.HTTPClient != nil:
		opts = append(opts, goption.WithHTTPClient(cfg.HTTPClient))
	case strings.TrimSpace(cfg.ServiceAccountJSON) != "":
		opts = append(opts, goption.WithCredentialsJSON([]byte(cfg.ServiceAccountJSON)))
	case strings.TrimSpace(cfg.ServiceAccountFile) != "":
		b, err := os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		opts = append(opts, goption.WithCredentialsJSON(b))
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
	if cfg.HTTPClient == nil {
		opts = append(opts, goption.WithScopes(gsheet.SpreadsheetsScope))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, goption.WithEndpoint(cfg.Endpoint))
	}
	return gsheet.NewService(ctx, opts...)
}

// EnsureHeader writes the column titles when the archive sheet is empty.
func (c *Client) EnsureHeader(ctx context.Context) error {
	rng := fmt.Sprintf("%s!A1:G1", c.draftsSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header of %s: %w", c.draftsSheet, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}
	header := make([]any, len(ports.Header))
	for i, h := range ports.Header {
		header[i] = h
	}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{header}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header of %s: %w", c.draftsSheet, err)
	}
	c.logger.InfoContext(ctx, "Archive sheet header written", "sheet", c.draftsSheet)
	return nil
}

// ArchiveDraft appends the draft as a new row after the last used one.
func (c *Client) ArchiveDraft(ctx context.Context, d core.Draft) (string, error) {
	if d.ID == 0 {
		return "", errors.New("draft has no id")
	}
	rng := fmt.Sprintf("%s!A:G", c.draftsSheet)
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{ports.Row(d)}}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append draft %d to %s: %w", d.ID, c.draftsSheet, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.InfoContext(ctx, "Draft archived",
		log.FieldDraftID, d.ID,
		log.FieldSheetsRef, ref)
	return ref, nil
}
