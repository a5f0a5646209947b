package core

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"
)

// Summarize groups the table by DonorKey and computes the per-donor totals.
//
// Amounts that could not be parsed contribute nothing to the total; every
// row counts towards DonationCount. The result is ordered by name, then
// email, and the table is left untouched.
func Summarize(t DonationTable) []DonorSummary {
	index := make(map[DonorKey]int, len(t.Records))
	out := make([]DonorSummary, 0)
	for _, r := range t.Records {
		k := r.Key()
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, DonorSummary{Key: k, TotalDonated: decimal.Zero})
		}
		s := &out[i]
		s.DonationCount++
		if r.DonationAmount.Valid {
			s.TotalDonated = s.TotalDonated.Add(r.DonationAmount.Decimal)
		}
		if !r.DonationDate.IsEmpty() && r.DonationDate.After(s.LastDonation.Time) {
			s.LastDonation = r.DonationDate
		}
	}
	slices.SortFunc(out, func(a, b DonorSummary) int {
		return compareKeys(a.Key, b.Key)
	})
	return out
}

// History returns the records whose name matches, newest first. Records
// without a date go last; ties keep upload order.
//
// Matching is on name only, so two donors sharing a name but not an email
// are merged here. Use HistoryForKey when the full identity is known.
func History(t DonationTable, name string) []DonationRecord {
	return history(t, func(r DonationRecord) bool { return r.Name == name })
}

// HistoryForKey is History restricted to one DonorKey.
func HistoryForKey(t DonationTable, key DonorKey) []DonationRecord {
	return history(t, func(r DonationRecord) bool { return r.Key() == key })
}

func history(t DonationTable, match func(DonationRecord) bool) []DonationRecord {
	out := make([]DonationRecord, 0)
	for _, r := range t.Records {
		if match(r) {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b DonationRecord) int {
		return compareDatesDesc(a.DonationDate, b.DonationDate)
	})
	return out
}

// DonorNames returns the distinct donor names in summary order.
func DonorNames(summaries []DonorSummary) []string {
	seen := make(map[string]struct{}, len(summaries))
	names := make([]string, 0, len(summaries))
	for _, s := range summaries {
		if _, ok := seen[s.Key.Name]; ok {
			continue
		}
		seen[s.Key.Name] = struct{}{}
		names = append(names, s.Key.Name)
	}
	return names
}

// AmbiguousNames returns the names carried by more than one DonorKey.
func AmbiguousNames(summaries []DonorSummary) []string {
	counts := make(map[string]int, len(summaries))
	for _, s := range summaries {
		counts[s.Key.Name]++
	}
	var out []string
	for _, name := range DonorNames(summaries) {
		if counts[name] > 1 {
			out = append(out, name)
		}
	}
	return out
}

// SummaryFor finds the summaries of the donors carrying name.
func SummaryFor(summaries []DonorSummary, name string) []DonorSummary {
	var out []DonorSummary
	for _, s := range summaries {
		if s.Key.Name == name {
			out = append(out, s)
		}
	}
	return out
}

// DashboardTotals folds the summaries into the dashboard headline.
func DashboardTotals(summaries []DonorSummary) Totals {
	t := Totals{Donors: len(summaries), TotalDonated: decimal.Zero}
	for _, s := range summaries {
		t.Donations += s.DonationCount
		t.TotalDonated = t.TotalDonated.Add(s.TotalDonated)
		if s.LastDonation.After(t.LastDonation.Time) {
			t.LastDonation = s.LastDonation
		}
	}
	return t
}

func compareKeys(a, b DonorKey) int {
	if c := cmp.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return cmp.Compare(a.Email, b.Email)
}

// compareDatesDesc orders newer dates first and null dates last.
func compareDatesDesc(a, b Date) int {
	switch {
	case a.IsEmpty() && b.IsEmpty():
		return 0
	case a.IsEmpty():
		return 1
	case b.IsEmpty():
		return -1
	}
	return b.Compare(a.Time)
}
