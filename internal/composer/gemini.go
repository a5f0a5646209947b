package composer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	glang "google.golang.org/api/generativelanguage/v1beta"
	goption "google.golang.org/api/option"

	"kindlecrm/internal/core"
)

const DefaultModel = "gemini-1.5-flash"

var (
	ErrBlocked       = errors.New("prompt blocked")
	ErrEmptyResponse = errors.New("empty response")
)

// GeminiConfig is the explicit configuration of the Gemini composer. The API
// key is never read from the environment here.
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	// Endpoint and HTTPClient override the Google defaults (tests).
	Endpoint   string
	HTTPClient *http.Client
}

// Gemini composes messages with the Google Generative Language API.
type Gemini struct {
	svc     *glang.Service
	model   string
	timeout time.Duration
}

var _ Composer = (*Gemini)(nil)

func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" && cfg.HTTPClient == nil {
		return nil, errors.New("missing Gemini API key")
	}
	opts := []goption.ClientOption{}
	if cfg.HTTPClient != nil {
		opts = append(opts, goption.WithHTTPClient(cfg.HTTPClient))
	} else {
		opts = append(opts, goption.WithAPIKey(cfg.APIKey))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, goption.WithEndpoint(cfg.Endpoint))
	}
	svc, err := glang.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("generativelanguage service: %w", err)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}
	return &Gemini{svc: svc, model: model, timeout: cfg.Timeout}, nil
}

// Compose sends one generation request. Any failure, including a blocked
// prompt or a response without text, is a *core.CompositionError.
func (g *Gemini) Compose(ctx context.Context, req core.ComposeRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	prompt, err := BuildPrompt(req)
	if err != nil {
		return "", fail(req, err)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.svc.Models.GenerateContent(g.model, &glang.GenerateContentRequest{
		Contents: []*glang.Content{{
			Role:  "user",
			Parts: []*glang.Part{{Text: prompt}},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return "", fail(req, fmt.Errorf("generate content: %w", err))
	}

	text, err := responseText(resp)
	if err != nil {
		return "", fail(req, err)
	}
	return text, nil
}

func responseText(resp *glang.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", ErrEmptyResponse
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: %s", ErrBlocked, resp.PromptFeedback.BlockReason)
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range c.Content.Parts {
			if p != nil {
				b.WriteString(p.Text)
			}
		}
		if text := strings.TrimSpace(b.String()); text != "" {
			return text, nil
		}
	}
	return "", ErrEmptyResponse
}
