// Package composer drafts fundraising emails for a donor.
package composer

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"kindlecrm/internal/core"
)

// Composer turns a compose request into a short plain-text message.
//
// Implementations return *core.CompositionError for every failure and never
// a partial text. They do not retry.
type Composer interface {
	Compose(ctx context.Context, req core.ComposeRequest) (string, error)
}

// ComposerFunc adapts a function to the Composer interface.
type ComposerFunc func(ctx context.Context, req core.ComposeRequest) (string, error)

func (f ComposerFunc) Compose(ctx context.Context, req core.ComposeRequest) (string, error) {
	return f(ctx, req)
}

var promptTemplate = template.Must(template.New("prompt").Parse(
	`Write a short, warm {{.Type}} email for a donor named {{.Name}} who has given {{.Total}} in total.
{{- if .Context}}
Additional context: {{.Context}}
{{- end}}
Keep it to a few sentences of plain text. Do not use markdown, headings or placeholders.`))

type promptData struct {
	Type    string
	Name    string
	Total   string
	Context string
}

// BuildPrompt renders the instruction sent to the text generation model.
func BuildPrompt(req core.ComposeRequest) (string, error) {
	var buf bytes.Buffer
	err := promptTemplate.Execute(&buf, promptData{
		Type:    strings.ToLower(string(req.MessageType)),
		Name:    strings.TrimSpace(req.DonorName),
		Total:   core.FormatUSD(req.TotalDonated),
		Context: strings.TrimSpace(req.Context),
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}

// fail wraps err as the CompositionError for req.
func fail(req core.ComposeRequest, err error) error {
	return &core.CompositionError{
		DonorName:   req.DonorName,
		MessageType: req.MessageType,
		Err:         err,
	}
}
