package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Canonical column names of an uploaded donation table.
const (
	ColumnName           = "name"
	ColumnEmail          = "email"
	ColumnDonationDate   = "donation_date"
	ColumnDonationAmount = "donation_amount"
)

// RequiredColumns lists the columns every upload must carry, in display order.
var RequiredColumns = []string{ColumnName, ColumnEmail, ColumnDonationDate, ColumnDonationAmount}

type (
	// Date is a calendar day held at midnight UTC. The zero value means "no date".
	Date struct {
		time.Time
	}

	// DonorKey identifies a donor.
	DonorKey struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	DonationRecord struct {
		Name           string              `json:"name"`
		Email          string              `json:"email"`
		DonationDate   Date                `json:"donation_date"`
		DonationAmount decimal.NullDecimal `json:"donation_amount"`
		// Extra holds the non-required columns of the row, keyed by normalized header.
		Extra map[string]string `json:"extra,omitempty"`
	}

	// DonationTable is the normalized result of one upload.
	DonationTable struct {
		Records []DonationRecord `json:"records"`
	}

	// RawTable is the upload as it was read, kept for inspection.
	RawTable struct {
		Header []string   `json:"header"`
		Rows   [][]string `json:"rows"`
	}

	// Upload is everything a session remembers about the last uploaded file.
	Upload struct {
		FileName string        `json:"file_name"`
		LoadedAt time.Time     `json:"loaded_at"`
		Raw      RawTable      `json:"raw"`
		Table    DonationTable `json:"table"`
		// Missing is non-empty when the upload failed column validation; Table is then empty.
		Missing        []string `json:"missing,omitempty"`
		InvalidDates   int      `json:"invalid_dates"`
		InvalidAmounts int      `json:"invalid_amounts"`
	}

	DonorSummary struct {
		Key           DonorKey        `json:"key"`
		TotalDonated  decimal.Decimal `json:"total_donated"`
		LastDonation  Date            `json:"last_donation"`
		DonationCount int             `json:"donation_count"`
	}

	// Totals is the headline of the dashboard.
	Totals struct {
		Donors       int
		Donations    int
		TotalDonated decimal.Decimal
		LastDonation Date
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// IsEmpty returns true if the date is null.
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// String renders the date as YYYY-MM-DD, or "" when null.
func (d Date) String() string {
	if d.IsEmpty() {
		return ""
	}
	return d.Format("2006-01-02")
}

// Key returns the donor identity of the record.
func (r DonationRecord) Key() DonorKey {
	return DonorKey{Name: r.Name, Email: r.Email}
}

func (k DonorKey) String() string {
	return k.Name + " <" + k.Email + ">"
}

// Valid reports whether the upload passed column validation.
func (u *Upload) Valid() bool {
	return u != nil && len(u.Missing) == 0
}

// Err returns the validation error recorded for the upload, if any.
func (u *Upload) Err() error {
	if u == nil || len(u.Missing) == 0 {
		return nil
	}
	return &ValidationError{Missing: append([]string(nil), u.Missing...)}
}

// Len returns the number of records in the table.
func (t DonationTable) Len() int {
	return len(t.Records)
}
