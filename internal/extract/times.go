package extract

import (
	"fmt"
	"regexp"
	"strconv"
)

var timeRangeRe = regexp.MustCompile(`\b(\d{1,2})(?:[:.](\d{2}))?\s*(am|pm|a\.m\.|p\.m\.)?\s*(?:to|till|until|se|-)\s*(\d{1,2})(?:[:.](\d{2}))?\s*(am|pm|a\.m\.|p\.m\.)?`)

// TimeRange is a from/to pair in 24h HH:MM
type TimeRange struct {
	From string
	To   string
}

// FindTimeRange recognises "9am to 6pm", "9:30am - 1pm", "09:00 to 18:00" and similar.
// A bare "5 to 7" is not a time range: at least one side needs minutes or am/pm.
func FindTimeRange(text string) (TimeRange, bool) {
	lower := Normalize(text)

	for _, m := range timeRangeRe.FindAllStringSubmatch(lower, -1) {
		fromMin, fromPeriod := m[2], periodOf(m[3])
		toMin, toPeriod := m[5], periodOf(m[6])
		if fromMin == "" && toMin == "" && fromPeriod == "" && toPeriod == "" {
			continue
		}

		fromHour, _ := strconv.Atoi(m[1])
		toHour, _ := strconv.Atoi(m[4])

		// "2 to 5pm" means the afternoon; "9 to 6pm" and "10 to 12pm" keep the morning start
		carried := false
		if fromPeriod == "" && toPeriod != "" && fromHour <= toHour && toHour != 12 {
			fromPeriod = toPeriod
			carried = true
		}

		from, ok := clock(fromHour, fromMin, fromPeriod)
		if !ok {
			continue
		}
		to, ok := clock(toHour, toMin, toPeriod)
		if !ok {
			continue
		}
		// a borrowed period must not push the start past the end ("5:30 to 5pm")
		if carried && from > to {
			if from, ok = clock(fromHour, fromMin, ""); !ok {
				continue
			}
		}
		return TimeRange{From: from, To: to}, true
	}

	return TimeRange{}, false
}

func periodOf(s string) string {
	switch s {
	case "am", "a.m.":
		return "am"
	case "pm", "p.m.":
		return "pm"
	default:
		return ""
	}
}

func clock(hour int, minutes, period string) (string, bool) {
	minute := 0
	if minutes != "" {
		minute, _ = strconv.Atoi(minutes)
	}
	if minute > 59 {
		return "", false
	}

	switch period {
	case "am":
		if hour < 1 || hour > 12 {
			return "", false
		}
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour < 1 || hour > 12 {
			return "", false
		}
		if hour != 12 {
			hour += 12
		}
	default:
		if hour > 23 {
			return "", false
		}
	}

	return fmt.Sprintf("%02d:%02d", hour, minute), true
}
