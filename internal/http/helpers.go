package http

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"kindlecrm/internal/core"
	"kindlecrm/internal/ingest"
	"kindlecrm/internal/services"
)

// rawPreviewRows caps the rows of the raw table echoed after an upload.
const rawPreviewRows = 50

var templateFuncs = template.FuncMap{
	"usd": core.FormatUSD,
	"amount": func(n decimal.NullDecimal) string {
		if !n.Valid {
			return ""
		}
		return core.FormatUSD(n.Decimal)
	},
	"date": func(d core.Date) string {
		if d.IsEmpty() {
			return "no date"
		}
		return d.String()
	},
	"messageTypes": func() []core.MessageType { return core.MessageTypes },
	// hx-* attributes are not URL attributes to html/template
	"query": url.QueryEscape,
}

// uploadView is the data of upload_result.html.
type uploadView struct {
	FileName       string
	Missing        []string
	Header         []string
	Rows           [][]string
	TotalRows      int
	Truncated      bool
	InvalidDates   int
	InvalidAmounts int
}

func newUploadView(up *core.Upload) uploadView {
	v := uploadView{
		FileName:       up.FileName,
		Missing:        up.Missing,
		Header:         up.Raw.Header,
		Rows:           up.Raw.Rows,
		TotalRows:      len(up.Raw.Rows),
		InvalidDates:   up.InvalidDates,
		InvalidAmounts: up.InvalidAmounts,
	}
	if len(v.Rows) > rawPreviewRows {
		v.Rows = v.Rows[:rawPreviewRows]
		v.Truncated = true
	}
	return v
}

// summaryView is the data of summary.html.
type summaryView struct {
	*services.Overview
	KeyPolicy bool
	// Notice replaces the panel when there is nothing to summarize.
	Notice string
}

// errorStatus maps a dashboard error to its HTTP status and the message
// shown to the user.
func errorStatus(err error) (int, string) {
	var ce *core.CompositionError
	switch {
	case errors.As(err, &ce):
		return http.StatusBadGateway, "The message could not be generated. Please try again."
	case core.IsValidationError(err):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, services.ErrNoUpload):
		return http.StatusConflict, "Upload a donation CSV first."
	case errors.Is(err, services.ErrTableInvalid):
		return http.StatusConflict, "The uploaded file failed validation. Upload a corrected CSV."
	case errors.Is(err, ingest.ErrMalformedCSV):
		return http.StatusBadRequest, "The file could not be read as CSV."
	case errors.Is(err, errNoFile):
		return http.StatusBadRequest, "Choose a CSV file to upload."
	case errors.Is(err, errUploadTooLarge):
		return http.StatusRequestEntityTooLarge, "The file is too large."
	default:
		return http.StatusInternalServerError, "Something went wrong. Please try again."
	}
}
