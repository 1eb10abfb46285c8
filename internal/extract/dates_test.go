package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, time.November, 3, 10, 30, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFindDates(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []time.Time
	}{
		{name: "iso", text: "leave on 2025-11-20", want: []time.Time{day(2025, time.November, 20)}},
		{name: "day month year", text: "4 nov 2025 and sick leave", want: []time.Time{day(2025, time.November, 4)}},
		{name: "day month without year", text: "on 12th december", want: []time.Time{day(2025, time.December, 12)}},
		{name: "month day", text: "Nov 7, 2025 please", want: []time.Time{day(2025, time.November, 7)}},
		{name: "numeric day first", text: "05/11/2025", want: []time.Time{day(2025, time.November, 5)}},
		{name: "misspelled month", text: "5 novmber", want: []time.Time{day(2025, time.November, 5)}},
		{name: "today", text: "apply on duty for today", want: []time.Time{day(2025, time.November, 3)}},
		{name: "tomorrow", text: "leave tomorrow", want: []time.Time{day(2025, time.November, 4)}},
		{name: "day after tomorrow wins over tomorrow", text: "day after tomorrow", want: []time.Time{day(2025, time.November, 5)}},
		{name: "hindi today", text: "आज on duty", want: []time.Time{day(2025, time.November, 3)}},
		{name: "two dates in order", text: "from 10 nov to 2025-11-12", want: []time.Time{day(2025, time.November, 10), day(2025, time.November, 12)}},
		{name: "impossible date", text: "31 nov", want: nil},
		{name: "time is not a date", text: "9am to 6pm", want: nil},
		{name: "no date", text: "wfh", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found := FindDates(tt.text, testNow)
			var got []time.Time
			for _, f := range found {
				got = append(got, f.Date)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindDateRange(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		from, to time.Time
		ok       bool
	}{
		{name: "single date is one day", text: "4 nov 2025", from: day(2025, time.November, 4), to: day(2025, time.November, 4), ok: true},
		{name: "compact range", text: "from 5 to 7 nov", from: day(2025, time.November, 5), to: day(2025, time.November, 7), ok: true},
		{name: "dash range", text: "5-7 dec 2025", from: day(2025, time.December, 5), to: day(2025, time.December, 7), ok: true},
		{name: "two full dates", text: "5 nov to 7 nov", from: day(2025, time.November, 5), to: day(2025, time.November, 7), ok: true},
		{name: "reversed dates are ordered", text: "12 nov and 10 nov", from: day(2025, time.November, 10), to: day(2025, time.November, 12), ok: true},
		{name: "nothing", text: "sick leave", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, ok := FindDateRange(tt.text, testNow)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.from, from)
				assert.Equal(t, tt.to, to)
			}
		})
	}
}

func TestFindMonthAndYear(t *testing.T) {
	m, ok := FindMonth("salary slip for october 2024")
	require.True(t, ok)
	assert.Equal(t, time.October, m)

	y, ok := FindYear("salary slip for october 2024")
	require.True(t, ok)
	assert.Equal(t, 2024, y)

	_, ok = FindMonth("salary slip")
	assert.False(t, ok)

	_, ok = FindYear("salary slip")
	assert.False(t, ok)
}
