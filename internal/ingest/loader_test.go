package ingest

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kindlecrm/internal/core"
)

func TestLoadNormalizesHeadersAndParsesValues(t *testing.T) {
	in := "\ufeffName,EMAIL, Donation_Date ,donation_amount,Campaign\n" +
		"Alice,alice@x.com,2023-01-01,10,Spring\n" +
		"Alice,alice@x.com,not-a-date,$1,200.50,Spring\n" +
		"Bob,bob@x.com,03/04/2023,abc\n"

	up, err := Load(strings.NewReader(in))
	require.NoError(t, err)
	require.True(t, up.Valid())

	assert.Equal(t, []string{"name", "email", "donation_date", "donation_amount", "campaign"}, up.Raw.Header)
	require.Len(t, up.Table.Records, 3)

	a := up.Table.Records[0]
	assert.Equal(t, "Alice", a.Name)
	assert.Equal(t, "2023-01-01", a.DonationDate.String())
	assert.True(t, a.DonationAmount.Valid)
	assert.True(t, a.DonationAmount.Decimal.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, map[string]string{"campaign": "Spring"}, a.Extra)

	// unquoted thousands separator splits the cell; the amount is "$1"
	b := up.Table.Records[1]
	assert.True(t, b.DonationDate.IsEmpty())
	assert.True(t, b.DonationAmount.Decimal.Equal(decimal.NewFromInt(1)))

	c := up.Table.Records[2]
	assert.Equal(t, "2023-03-04", c.DonationDate.String())
	assert.False(t, c.DonationAmount.Valid)
	assert.Equal(t, "", c.Extra["campaign"])

	assert.Equal(t, 1, up.InvalidDates)
	assert.Equal(t, 1, up.InvalidAmounts)
}

func TestLoadQuotedAmountWithSeparators(t *testing.T) {
	in := "name,email,donation_date,donation_amount\n" +
		"Carol,c@x.com,2024-05-06,\"$1,200.50\"\n"

	up, err := Load(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, up.Table.Records, 1)
	assert.True(t, up.Table.Records[0].DonationAmount.Decimal.Equal(decimal.RequireFromString("1200.50")))
	assert.Zero(t, up.InvalidAmounts)
}

func TestLoadMissingColumnsKeepsRawTable(t *testing.T) {
	in := "name,amount\nAlice,10\n"

	up, err := Load(strings.NewReader(in))
	require.Error(t, err)

	var ve *core.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"email", "donation_date", "donation_amount"}, ve.Missing)

	require.NotNil(t, up)
	assert.False(t, up.Valid())
	assert.Equal(t, []string{"name", "amount"}, up.Raw.Header)
	assert.Equal(t, [][]string{{"Alice", "10"}}, up.Raw.Rows)
	assert.Empty(t, up.Table.Records)
}

func TestLoadRequiredColumnsAnyCaseAnyOrder(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		missing []string
	}{
		{
			name: "reordered and mixed case",
			in:   "DONATION_AMOUNT,Donation_Date,eMail,NAME\n10,2023-01-01,a@x.com,Alice\n",
		},
		{
			name:    "only amount missing",
			in:      "NAME,Email,Donation_Date\nAlice,a@x.com,2023-01-01\n",
			missing: []string{"donation_amount"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			up, err := Load(strings.NewReader(tc.in))
			require.NotNil(t, up)
			if tc.missing != nil {
				var ve *core.ValidationError
				require.True(t, errors.As(err, &ve), "got %v", err)
				assert.Equal(t, tc.missing, ve.Missing)
				assert.False(t, up.Valid())
				return
			}
			require.NoError(t, err)
			require.Len(t, up.Table.Records, 1)
			r := up.Table.Records[0]
			assert.Equal(t, "Alice", r.Name)
			assert.Equal(t, "a@x.com", r.Email)
			assert.Equal(t, "2023-01-01", r.DonationDate.String())
			assert.True(t, r.DonationAmount.Valid)
			assert.True(t, r.DonationAmount.Decimal.Equal(decimal.NewFromInt(10)))
		})
	}
}

func TestLoadEmptyInput(t *testing.T) {
	up, err := Load(strings.NewReader(""))
	var ve *core.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, core.RequiredColumns, ve.Missing)
	require.NotNil(t, up)
}

func TestLoadHeaderOnly(t *testing.T) {
	up, err := Load(strings.NewReader("name,email,donation_date,donation_amount\n"))
	require.NoError(t, err)
	assert.True(t, up.Valid())
	assert.NotNil(t, up.Table.Records)
	assert.Empty(t, up.Table.Records)
}

func TestLoadPadsShortRowsAndSkipsBlankLines(t *testing.T) {
	in := "name,email,donation_date,donation_amount\n" +
		"Dan,d@x.com\n" +
		",,,\n" +
		"Eve,e@x.com,2022-12-31,5\n"

	up, err := Load(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, up.Table.Records, 2)
	assert.True(t, up.Table.Records[0].DonationDate.IsEmpty())
	assert.False(t, up.Table.Records[0].DonationAmount.Valid)
	assert.Equal(t, 1, up.InvalidDates)
	assert.Equal(t, 1, up.InvalidAmounts)
}

func TestLoadUnreadableStream(t *testing.T) {
	_, err := Load(iotest.ErrReader(errors.New("connection reset")))
	assert.ErrorIs(t, err, ErrMalformedCSV)
}

func TestParseDate(t *testing.T) {
	cases := map[string]string{
		"2023-01-01":                "2023-01-01",
		"2023-01-01 15:04:05":       "2023-01-01",
		"03/04/2023":                "2023-03-04",
		"January 2, 2006":           "2006-01-02",
		"2023-06-30T23:30:00Z":      "2023-06-30",
		// the day as written, not shifted to UTC
		"2023-06-30T23:30:00-05:00": "2023-06-30",
	}
	for in, want := range cases {
		d, ok := ParseDate(in)
		if assert.True(t, ok, in) {
			assert.Equal(t, want, d.String(), in)
		}
	}

	for _, in := range []string{"", "   ", "yesterday", "13/45/2023"} {
		_, ok := ParseDate(in)
		assert.False(t, ok, in)
	}
}
