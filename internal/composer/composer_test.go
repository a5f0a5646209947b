package composer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kindlecrm/internal/core"
)

func request() core.ComposeRequest {
	return core.ComposeRequest{
		DonorName:    "Alice",
		TotalDonated: decimal.RequireFromString("1234.5"),
		MessageType:  core.ThankYou,
		Context:      "She volunteered at the spring gala.",
	}
}

func TestBuildPrompt(t *testing.T) {
	p, err := BuildPrompt(request())
	require.NoError(t, err)
	assert.Contains(t, p, "thank you email")
	assert.Contains(t, p, "Alice")
	assert.Contains(t, p, "$1,234.50")
	assert.Contains(t, p, "Additional context: She volunteered at the spring gala.")

	req := request()
	req.Context = "  "
	p, err = BuildPrompt(req)
	require.NoError(t, err)
	assert.NotContains(t, p, "Additional context")
}

func TestTemplateComposesEveryType(t *testing.T) {
	tc := Template{Organization: "Kindle Shelter"}
	for _, mt := range core.MessageTypes {
		req := request()
		req.MessageType = mt
		text, err := tc.Compose(context.Background(), req)
		require.NoError(t, err, mt)
		assert.Contains(t, text, "Dear Alice")
		assert.Contains(t, text, "$1,234.50")
		assert.Contains(t, text, "Kindle Shelter")
	}
}

func TestTemplateRejectsInvalidRequest(t *testing.T) {
	req := request()
	req.MessageType = "Birthday"
	_, err := Template{}.Compose(context.Background(), req)
	assert.True(t, core.IsValidationError(err))
}

// fakeGemini serves the generateContent endpoint with the given handler.
func fakeGemini(t *testing.T, h http.HandlerFunc) *Gemini {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	g, err := NewGemini(context.Background(), GeminiConfig{
		Model:      "test-model",
		Timeout:    2 * time.Second,
		Endpoint:   srv.URL + "/",
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)
	return g
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestGeminiCompose(t *testing.T) {
	var gotPath, gotBody string
	g := fakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		writeJSON(w, http.StatusOK, map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": "Dear Alice, "}, map[string]any{"text": "thank you!"}},
				},
			}},
		})
	})

	text, err := g.Compose(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "Dear Alice, thank you!", text)
	assert.True(t, strings.HasSuffix(gotPath, "models/test-model:generateContent"), gotPath)
	assert.Contains(t, gotBody, "Alice")
}

func TestGeminiFailuresAreCompositionErrors(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"quota": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error": map[string]any{"code": 429, "message": "quota exceeded", "status": "RESOURCE_EXHAUSTED"},
			})
		},
		"blocked": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"promptFeedback": map[string]any{"blockReason": "SAFETY"},
			})
		},
		"empty": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"candidates": []any{}})
		},
		"malformed": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("{not json"))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			g := fakeGemini(t, h)
			text, err := g.Compose(context.Background(), request())
			require.Error(t, err)
			assert.Empty(t, text)

			var ce *core.CompositionError
			require.True(t, errors.As(err, &ce), "got %T: %v", err, err)
			assert.Equal(t, "Alice", ce.DonorName)
			assert.Equal(t, core.ThankYou, ce.MessageType)
		})
	}
}

func TestGeminiDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	g := fakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": map[string]any{"code": 500, "message": "backend error"},
		})
	})

	_, err := g.Compose(context.Background(), request())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGeminiValidatesBeforeCalling(t *testing.T) {
	var calls atomic.Int32
	g := fakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	req := request()
	req.DonorName = ""

	_, err := g.Compose(context.Background(), req)
	assert.True(t, core.IsValidationError(err))
	assert.Zero(t, calls.Load())
}

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), GeminiConfig{})
	assert.Error(t, err)
}
