package shortlist

import (
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
)

// dateLayouts are tried in order; the first one that parses wins, so "05-06-2020"
// is the 5th of June. Single digit days and months are accepted.
var dateLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	"2-1-2006",
	"2/1/2006",
}

const (
	daysPerYear   = 365.25
	secondsPerDay = 24 * 60 * 60
)

// ParseDate parses a date in one of the accepted layouts.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// TotalYears sums the whole days of every experience entry and converts them to years
// rounded to two decimals. An absent or empty End means the entry is ongoing. Entries
// without a usable Start, or with an End that cannot be parsed, count for nothing.
func TotalYears(experience []map[string]any, logger *zap.Logger) float64 {
	if logger == nil {
		logger = zap.NewNop()
	}

	days := 0
	for i, entry := range experience {
		startText := dateText(entry["Start"])
		start, ok := ParseDate(startText)
		if !ok {
			logger.Debug("experience entry without usable start date",
				zap.Int("entry", i),
				zap.String("value", startText),
			)
			continue
		}

		end := now()
		if endText := dateText(entry["End"]); strings.TrimSpace(endText) != "" {
			parsed, ok := ParseDate(endText)
			if !ok {
				logger.Debug("could not parse end date",
					zap.Int("entry", i),
					zap.String("value", endText),
				)
				continue
			}
			end = parsed
		}

		if end.After(start) {
			// Unix seconds, since a time.Duration saturates after about 292 years.
			days += int((end.Unix() - start.Unix()) / secondsPerDay)
		}
	}

	return math.Round(float64(days)/daysPerYear*100) / 100
}

func dateText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
