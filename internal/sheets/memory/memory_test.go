package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kindlecrm/internal/core"
)

func TestArchiveDraft(t *testing.T) {
	a := New()
	d := core.Draft{
		ID:           7,
		DonorName:    "Alice",
		DonorEmail:   "a@x.com",
		MessageType:  core.ThankYou,
		TotalDonated: decimal.RequireFromString("60"),
		Text:         "Dear Alice",
		CreatedAt:    time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC),
	}

	ref, err := a.ArchiveDraft(context.Background(), d)
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected archive: ref=%q err=%v", ref, err)
	}
	rows := a.Rows()
	if len(rows) != 1 || rows[0][0] != "2024-02-03 04:05:06" || rows[0][5] != "60.00" {
		t.Fatalf("unexpected rows %v", rows)
	}

	if _, err := a.ArchiveDraft(context.Background(), core.Draft{}); err == nil {
		t.Error("expected error for draft without id")
	}

	a.SetFailure(errors.New("quota"))
	if _, err := a.ArchiveDraft(context.Background(), d); err == nil {
		t.Error("expected injected failure")
	}
}
