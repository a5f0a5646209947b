// Package ingest reads uploaded donation CSV files into a core.Upload.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"kindlecrm/internal/core"
)

// ErrMalformedCSV is returned when the stream is not readable as CSV at all.
var ErrMalformedCSV = errors.New("malformed csv")

// Load reads a CSV stream with a header row.
//
// When required columns are missing the returned Upload still carries the
// raw table, and the error is a *core.ValidationError. Bad dates and amounts
// are never errors: they become null and are counted on the Upload.
func Load(r io.Reader) (*core.Upload, error) {
	raw, err := readRaw(r)
	if err != nil {
		return nil, err
	}

	up := &core.Upload{Raw: raw}
	cols := indexColumns(raw.Header)
	for _, c := range core.RequiredColumns {
		if _, ok := cols[c]; !ok {
			up.Missing = append(up.Missing, c)
		}
	}
	if len(up.Missing) > 0 {
		return up, up.Err()
	}

	up.Table.Records = make([]core.DonationRecord, 0, len(raw.Rows))
	for _, row := range raw.Rows {
		rec := core.DonationRecord{
			Name:  row[cols[core.ColumnName]],
			Email: row[cols[core.ColumnEmail]],
		}

		if d, ok := ParseDate(row[cols[core.ColumnDonationDate]]); ok {
			rec.DonationDate = d
		} else {
			up.InvalidDates++
		}

		if amt, err := core.ParseAmount(row[cols[core.ColumnDonationAmount]]); err == nil {
			rec.DonationAmount.Decimal = amt
			rec.DonationAmount.Valid = true
		} else {
			up.InvalidAmounts++
		}

		rec.Extra = extraColumns(raw.Header, cols, row)
		up.Table.Records = append(up.Table.Records, rec)
	}
	return up, nil
}

func readRaw(r io.Reader) (core.RawTable, error) {
	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(transform.Nop)))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var raw core.RawTable
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return raw, nil
	}
	if err != nil {
		return raw, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
	}
	raw.Header = make([]string, len(header))
	for i, h := range header {
		raw.Header[i] = normalizeHeader(h)
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return raw, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
		}
		if isBlank(rec) {
			continue
		}
		row := make([]string, len(raw.Header))
		for i := range row {
			if i < len(rec) {
				row[i] = strings.TrimSpace(rec[i])
			}
		}
		raw.Rows = append(raw.Rows, row)
	}
	return raw, nil
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// indexColumns maps each header to its first position.
func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	return cols
}

func extraColumns(header []string, cols map[string]int, row []string) map[string]string {
	var extra map[string]string
	for i, h := range header {
		if h == "" || isRequired(h) || cols[h] != i {
			continue
		}
		if extra == nil {
			extra = make(map[string]string)
		}
		extra[h] = row[i]
	}
	return extra
}

func isRequired(col string) bool {
	for _, c := range core.RequiredColumns {
		if c == col {
			return true
		}
	}
	return false
}

func isBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
