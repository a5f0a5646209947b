// Package sheets defines the outbound port towards the draft archive sheet.
package sheets

import (
	"context"

	"kindlecrm/internal/core"
)

// DraftArchiver appends a composed draft to the shared archive and returns
// a reference to the written row.
type DraftArchiver interface {
	ArchiveDraft(ctx context.Context, d core.Draft) (rowRef string, err error)
}

// Header is the first row of the archive sheet; Row must match it.
var Header = []string{"created_at", "draft_id", "donor_name", "donor_email", "message_type", "total_donated", "message"}

// Row renders a draft as an archive sheet row.
func Row(d core.Draft) []any {
	return []any{
		d.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		d.ID,
		d.DonorName,
		d.DonorEmail,
		string(d.MessageType),
		d.TotalDonated.StringFixed(2),
		d.Text,
	}
}
