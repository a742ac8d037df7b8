package pipeline

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var monthNames = map[string]time.Month{
	"January":   time.January,
	"February":  time.February,
	"March":     time.March,
	"April":     time.April,
	"May":       time.May,
	"June":      time.June,
	"July":      time.July,
	"August":    time.August,
	"September": time.September,
	"October":   time.October,
	"November":  time.November,
	"December":  time.December,
}

var (
	reMonthNameDate = regexp.MustCompile(`\b([A-Z][a-z]+)\s+(\d{1,2}),?\s+(\d{4})\b`)
	reSlashDate     = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	reDashDate      = regexp.MustCompile(`\b(\d{1,2})-(\d{1,2})-(\d{4})\b`)
	reISODate       = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
)

// NormalizeDate finds a date in text and renders it as YYYY-MM-DD. It accepts
// "Month DD, YYYY", "MM/DD/YYYY" and "MM-DD-YYYY"; an already normalized
// date is passed through. Impossible calendar dates are rejected.
func NormalizeDate(text string) (string, bool) {
	for _, m := range reMonthNameDate.FindAllStringSubmatch(text, -1) {
		month, ok := monthNames[m[1]]
		if !ok {
			continue
		}
		if out, ok := calendarDate(m[3], int(month), m[2]); ok {
			return out, true
		}
	}

	for _, re := range []*regexp.Regexp{reSlashDate, reDashDate} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			month, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			if out, ok := calendarDate(m[3], month, m[2]); ok {
				return out, true
			}
		}
	}

	if m := reISODate.FindStringSubmatch(text); m != nil {
		month, _ := strconv.Atoi(m[2])
		return calendarDate(m[1], month, m[3])
	}
	return "", false
}

func calendarDate(yearText string, month int, dayText string) (string, bool) {
	year, err := strconv.Atoi(yearText)
	if err != nil {
		return "", false
	}
	day, err := strconv.Atoi(dayText)
	if err != nil {
		return "", false
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return "", false
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
}
