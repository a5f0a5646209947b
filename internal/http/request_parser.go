// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// the CSV upload, the compose form and the panel query strings.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"kindlecrm/internal/services"
)

const (
	maxFormBytes   = 64 << 10
	maxDraftsLimit = 100
)

var (
	errNoFile         = errors.New("no file in the upload")
	errUploadTooLarge = errors.New("upload too large")
)

// sanitizeInput removes control characters except tab and newlines, and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// ReadUpload returns the "file" part of a multipart upload, capped at
// maxBytes. The caller closes the file.
func ReadUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (multipart.File, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) ||
			strings.Contains(err.Error(), "request body too large") {
			return nil, "", errUploadTooLarge
		}
		return nil, "", fmt.Errorf("%w: %v", errNoFile, err)
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, "", errNoFile
		}
		return nil, "", fmt.Errorf("read form file: %w", err)
	}
	name := sanitizeInput(filepath.Base(hdr.Filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "upload.csv"
	}
	return file, name, nil
}

// RequestBodyParser reads a small form-encoded or JSON body once. htmx
// posts forms; scripts may post JSON.
type RequestBodyParser struct {
	jsonData map[string]any
	formData url.Values
	err      error
}

func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFormBytes))
	if err != nil {
		p.err = fmt.Errorf("read body: %w", err)
		return p
	}
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") || strings.HasPrefix(trimmed, "{") {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(body, &p.jsonData); err != nil {
			p.err = fmt.Errorf("decode JSON body: %w", err)
		}
		return p
	}
	p.formData, p.err = url.ParseQuery(trimmed)
	return p
}

func (p *RequestBodyParser) Err() error {
	return p.err
}

// Get returns a sanitized string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		return sanitizeInput(stringValue(p.jsonData[key]))
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseComposeInput maps the compose form onto the service input.
func ParseComposeInput(p *RequestBodyParser) services.ComposeInput {
	return services.ComposeInput{
		Name:        p.Get("name"),
		Email:       p.Get("email"),
		MessageType: p.Get("message_type"),
		Context:     p.Get("context"),
	}
}

// HistoryParams is the donor selected in the history panel.
type HistoryParams struct {
	Name  string
	Email string
}

// ParseHistoryParams reads ?name= and ?email=.
func ParseHistoryParams(query url.Values) HistoryParams {
	return HistoryParams{
		Name:  sanitizeInput(query.Get("name")),
		Email: sanitizeInput(query.Get("email")),
	}
}

// ParseLimit reads ?limit=, falling back to def for missing or invalid
// values and capping at maxDraftsLimit.
func ParseLimit(query url.Values, def int) int {
	v := strings.TrimSpace(query.Get("limit"))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return min(n, maxDraftsLimit)
}
