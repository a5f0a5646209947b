package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"kindlecrm/internal/core"
	"kindlecrm/internal/ingest"
	"kindlecrm/internal/services"
)

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&core.ValidationError{Missing: []string{"email"}}, http.StatusUnprocessableEntity},
		{fmt.Errorf("wrapped: %w", &core.CompositionError{DonorName: "A", Err: errors.New("quota")}), http.StatusBadGateway},
		{services.ErrNoUpload, http.StatusConflict},
		{services.ErrTableInvalid, http.StatusConflict},
		{fmt.Errorf("%w: bare quote", ingest.ErrMalformedCSV), http.StatusBadRequest},
		{errNoFile, http.StatusBadRequest},
		{errUploadTooLarge, http.StatusRequestEntityTooLarge},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got, _ := errorStatus(tt.err); got != tt.want {
			t.Errorf("errorStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestCompositionErrorMessageHidesDetails(t *testing.T) {
	_, msg := errorStatus(&core.CompositionError{DonorName: "A", Err: errors.New("api key sk-123 rejected")})
	if msg == "" || strings.Contains(msg, "sk-123") {
		t.Errorf("message leaks upstream detail: %q", msg)
	}
}

func TestNewUploadViewTruncates(t *testing.T) {
	up := &core.Upload{FileName: "big.csv", Raw: core.RawTable{Header: []string{"name"}}}
	for i := 0; i < rawPreviewRows+5; i++ {
		up.Raw.Rows = append(up.Raw.Rows, []string{"x"})
	}
	v := newUploadView(up)
	if !v.Truncated || len(v.Rows) != rawPreviewRows || v.TotalRows != rawPreviewRows+5 {
		t.Errorf("newUploadView = truncated %v, rows %d, total %d", v.Truncated, len(v.Rows), v.TotalRows)
	}
}
