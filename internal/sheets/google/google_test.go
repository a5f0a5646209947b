package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kindlecrm/internal/core"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(context.Background(), Config{
		SpreadsheetID: "sheet-123",
		Endpoint:      srv.URL + "/",
		HTTPClient:    srv.Client(),
	}, nil)
	require.NoError(t, err)
	return c
}

func TestNewRequiresSpreadsheetAndCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	assert.EqualError(t, err, "missing GOOGLE_SPREADSHEET_ID")

	_, err = New(context.Background(), Config{SpreadsheetID: "x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")

	_, err = New(context.Background(), Config{SpreadsheetID: "x", ServiceAccountFile: "/does/not/exist.json"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read service account file")
}

func TestArchiveDraftAppendsRow(t *testing.T) {
	var body map[string]any
	var path, query string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path, query = r.URL.Path, r.URL.RawQuery
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"updates":{"updatedRange":"Drafts!A5:G5","updatedRows":1}}`))
	})

	ref, err := c.ArchiveDraft(context.Background(), core.Draft{
		ID:           42,
		DonorName:    "Alice",
		DonorEmail:   "a@x.com",
		MessageType:  core.DonationAppeal,
		TotalDonated: decimal.RequireFromString("60"),
		Text:         "Dear Alice",
		CreatedAt:    time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "Drafts!A5:G5", ref)
	assert.True(t, strings.HasSuffix(path, ":append"), path)
	assert.Contains(t, path, "sheet-123")
	assert.Contains(t, query, "insertDataOption=INSERT_ROWS")

	values := body["values"].([]any)
	row := values[0].([]any)
	assert.Equal(t, "2024-02-03 04:05:06", row[0])
	assert.Equal(t, "Alice", row[2])
	assert.Equal(t, "Donation Appeal", row[4])
	assert.Equal(t, "60.00", row[5])
}

func TestArchiveDraftPropagatesAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"caller does not have permission"}}`))
	})
	_, err := c.ArchiveDraft(context.Background(), core.Draft{ID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append draft 1")
}

func TestEnsureHeaderWritesOnlyWhenEmpty(t *testing.T) {
	var updates int
	existing := `{"range":"Drafts!A1:G1"}`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPut {
			updates++
			_, _ = w.Write([]byte(`{"updatedRange":"Drafts!A1:G1"}`))
			return
		}
		_, _ = w.Write([]byte(existing))
	})

	require.NoError(t, c.EnsureHeader(context.Background()))
	assert.Equal(t, 1, updates)

	existing = `{"range":"Drafts!A1:G1","values":[["created_at"]]}`
	require.NoError(t, c.EnsureHeader(context.Background()))
	assert.Equal(t, 1, updates)
}
