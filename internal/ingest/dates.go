package ingest

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"kindlecrm/internal/core"
)

// ParseDate reads a donation date cell. Any common layout is accepted;
// ambiguous slashed dates are read month first. The result is the calendar
// day as written in the cell; an offset does not move it to another day.
// ok is false for empty or unparsable cells.
func ParseDate(s string) (core.Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Date{}, false
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return core.Date{}, false
	}
	return core.DateOf(t), true
}
