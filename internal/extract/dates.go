package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var monthWords = map[string]time.Month{
	"jan": time.January, "janu": time.January, "january": time.January, "jnauary": time.January,
	"feb": time.February, "febr": time.February, "february": time.February, "feburary": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April, "aprl": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August, "agust": time.August,
	"sep": time.September, "sept": time.September, "september": time.September, "septmber": time.September,
	"oct": time.October, "october": time.October, "octbr": time.October, "octobr": time.October,
	"nov": time.November, "nv": time.November, "novem": time.November, "november": time.November, "novmber": time.November,
	"dec": time.December, "december": time.December, "decmber": time.December, "dcm": time.December,
}

// MonthFromWord resolves a (possibly misspelled) month name
func MonthFromWord(w string) (time.Month, bool) {
	m, ok := monthWords[strings.TrimSuffix(strings.ToLower(w), ".")]
	return m, ok
}

var (
	isoDateRe    = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	numericRe    = regexp.MustCompile(`\b(\d{1,2})[/.](\d{1,2})(?:[/.](\d{2}|\d{4}))?\b`)
	dayMonthRe   = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s*(?:of\s+)?([a-z]+)\.?(?:\s*,?\s*(\d{4}))?\b`)
	monthDayRe   = regexp.MustCompile(`\b([a-z]+)\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b(?:\s*,?\s*(\d{4})\b)?`)
	dayRangeRe   = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s*(?:to|till|until|-)\s*(\d{1,2})(?:st|nd|rd|th)?\s+([a-z]+)\.?(?:\s*,?\s*(\d{4}))?\b`)
	yearRe       = regexp.MustCompile(`\b(20\d{2})\b`)
	relativeDays = []struct {
		phrase string
		offset int
	}{
		{"day after tomorrow", 2},
		{"tomorrow", 1},
		{"tmrw", 1},
		{"tommorow", 1},
		{"yesterday", -1},
		{"today", 0},
		{"aaj", 0},
		{"आज", 0},
	}
)

// DateMatch is a date found in an utterance with its position
type DateMatch struct {
	Date  time.Time
	Start int
	End   int
}

// FindDates returns the calendar dates mentioned in text, in order of appearance.
// Dates without a year fall in now's year; day-first is assumed for numeric forms.
func FindDates(text string, now time.Time) []DateMatch {
	lower := Normalize(text)
	var found []DateMatch

	add := func(start, end int, d time.Time) {
		for _, f := range found {
			if start < f.End && end > f.Start {
				return
			}
		}
		found = append(found, DateMatch{Date: d, Start: start, End: end})
	}

	for _, m := range isoDateRe.FindAllStringSubmatchIndex(lower, -1) {
		y, _ := strconv.Atoi(lower[m[2]:m[3]])
		mo, _ := strconv.Atoi(lower[m[4]:m[5]])
		d, _ := strconv.Atoi(lower[m[6]:m[7]])
		if t, ok := makeDate(y, time.Month(mo), d, now); ok {
			add(m[0], m[1], t)
		}
	}

	for _, m := range numericRe.FindAllStringSubmatchIndex(lower, -1) {
		d, _ := strconv.Atoi(lower[m[2]:m[3]])
		mo, _ := strconv.Atoi(lower[m[4]:m[5]])
		y := now.Year()
		if m[6] >= 0 {
			y, _ = strconv.Atoi(lower[m[6]:m[7]])
			if y < 100 {
				y += 2000
			}
		}
		if t, ok := makeDate(y, time.Month(mo), d, now); ok {
			add(m[0], m[1], t)
		}
	}

	for _, m := range dayMonthRe.FindAllStringSubmatchIndex(lower, -1) {
		month, ok := MonthFromWord(lower[m[4]:m[5]])
		if !ok {
			continue
		}
		d, _ := strconv.Atoi(lower[m[2]:m[3]])
		y := yearOr(lower, m[6], m[7], now)
		if t, ok := makeDate(y, month, d, now); ok {
			add(m[0], m[1], t)
		}
	}

	for _, m := range monthDayRe.FindAllStringSubmatchIndex(lower, -1) {
		month, ok := MonthFromWord(lower[m[2]:m[3]])
		if !ok {
			continue
		}
		d, _ := strconv.Atoi(lower[m[4]:m[5]])
		y := yearOr(lower, m[6], m[7], now)
		if t, ok := makeDate(y, month, d, now); ok {
			add(m[0], m[1], t)
		}
	}

	for _, rel := range relativeDays {
		idx := phraseIndexInString(lower, rel.phrase)
		if idx < 0 {
			continue
		}
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, rel.offset)
		add(idx, idx+len(rel.phrase), day)
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].Start < found[j].Start })
	return found
}

// FindDateRange returns the start and end of a leave-style range. A single date yields a
// one-day range; "5 to 7 nov" and "5 nov to 7 nov" both yield the 5th to the 7th.
func FindDateRange(text string, now time.Time) (time.Time, time.Time, bool) {
	lower := Normalize(text)

	if m := dayRangeRe.FindStringSubmatchIndex(lower); m != nil {
		if month, ok := MonthFromWord(lower[m[6]:m[7]]); ok {
			from, _ := strconv.Atoi(lower[m[2]:m[3]])
			to, _ := strconv.Atoi(lower[m[4]:m[5]])
			y := yearOr(lower, m[8], m[9], now)
			start, okStart := makeDate(y, month, from, now)
			end, okEnd := makeDate(y, month, to, now)
			if okStart && okEnd {
				return orderRange(start, end)
			}
		}
	}

	dates := FindDates(lower, now)
	switch len(dates) {
	case 0:
		return time.Time{}, time.Time{}, false
	case 1:
		return dates[0].Date, dates[0].Date, true
	default:
		return orderRange(dates[0].Date, dates[1].Date)
	}
}

// FindMonth returns the first month name mentioned in text
func FindMonth(text string) (time.Month, bool) {
	for _, tok := range Tokens(text) {
		if m, ok := MonthFromWord(tok); ok && len(tok) >= 3 {
			return m, true
		}
	}
	return 0, false
}

// FindYear returns the first four-digit year (20xx) mentioned in text
func FindYear(text string) (int, bool) {
	m := yearRe.FindStringSubmatch(Normalize(text))
	if m == nil {
		return 0, false
	}
	y, err := strconv.Atoi(m[1])
	return y, err == nil
}

func orderRange(a, b time.Time) (time.Time, time.Time, bool) {
	if b.Before(a) {
		a, b = b, a
	}
	return a, b, true
}

func yearOr(s string, start, end int, now time.Time) int {
	if start < 0 {
		return now.Year()
	}
	y, err := strconv.Atoi(s[start:end])
	if err != nil {
		return now.Year()
	}
	return y
}

func makeDate(y int, m time.Month, d int, now time.Time) (time.Time, bool) {
	if m < time.January || m > time.December || d < 1 || d > 31 || y < 2000 || y > 2100 {
		return time.Time{}, false
	}
	t := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	if t.Month() != m {
		return time.Time{}, false // 31 nov and friends
	}
	return t, true
}

func phraseIndexInString(text, phrase string) int {
	from := 0
	for {
		idx := strings.Index(text[from:], phrase)
		if idx < 0 {
			return -1
		}
		idx += from
		end := idx + len(phrase)
		if boundaryBefore(text, idx) && boundaryAfter(text, end) {
			return idx
		}
		from = idx + 1
	}
}

func boundaryBefore(s string, i int) bool {
	return i == 0 || s[i-1] == ' ' || strings.IndexByte(",.;!?()", s[i-1]) >= 0
}

func boundaryAfter(s string, i int) bool {
	return i >= len(s) || s[i] == ' ' || strings.IndexByte(",.;!?()", s[i]) >= 0
}
