package composer

import (
	"context"
	"fmt"
	"strings"

	"kindlecrm/internal/core"
)

// Template composes messages offline from fixed copy. It is used when no
// text generation backend is configured.
type Template struct {
	Organization string
}

var _ Composer = Template{}

func (t Template) Compose(ctx context.Context, req core.ComposeRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fail(req, err)
	}
	if err := req.Validate(); err != nil {
		return "", err
	}

	org := t.Organization
	if org == "" {
		org = "our organization"
	}
	name := strings.TrimSpace(req.DonorName)
	total := core.FormatUSD(req.TotalDonated)

	var body string
	switch req.MessageType {
	case core.ThankYou:
		body = fmt.Sprintf("Dear %s,\n\nThank you for your generous support of %s. Your gifts, totaling %s, make our work possible.", name, org, total)
	case core.DonationAppeal:
		body = fmt.Sprintf("Dear %s,\n\nYour past generosity of %s has already made a difference at %s. Would you consider making another gift today?", name, total, org)
	case core.RenewalAsk:
		body = fmt.Sprintf("Dear %s,\n\nIt has been a while since your last gift to %s. Renewing your support, building on the %s you have given, keeps our programs running.", name, org, total)
	default:
		return "", fail(req, core.ErrInvalidMessageType)
	}
	if c := strings.TrimSpace(req.Context); c != "" {
		body += "\n\n" + c
	}
	return body + "\n\nWith gratitude,\n" + org, nil
}
