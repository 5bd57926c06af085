package normalizer

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Supported date shapes, tried in priority order:
//  1. ISO-8601 with time
//  2. Korean natural-language dates with an optional parenthetical weekday
//     and either HH:MM or an 오전/오후-marked hour
//  3. dot/slash/hyphen delimited Y-M-D with optional H:M
//  4. bare Y-M-D, implied midnight (covered by 3)
//
// Anything else returns nil: never a guess, never a panic.

var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

var (
	koreanDateRe = regexp.MustCompile(`(\d{4})년\s*(\d{1,2})월\s*(\d{1,2})일(?:\s*\([^)]*\))?\s*(.*)`)
	clockTimeRe  = regexp.MustCompile(`^(\d{1,2}):(\d{2})`)
	meridiemRe   = regexp.MustCompile(`^(오전|오후)\s*(\d{1,2})시(?:\s*(\d{1,2})분)?`)
	delimitedRe  = regexp.MustCompile(`^(\d{4})[.\-/]\s*(\d{1,2})[.\-/]\s*(\d{1,2})\.?(?:\s+(\d{1,2}):(\d{2}))?$`)
)

// ParseDateTime parses one date-time string into local time.
func ParseDateTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return &t
		}
	}

	if m := koreanDateRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		hour, minute := 0, 0
		rest := strings.TrimSpace(m[4])
		if tm := clockTimeRe.FindStringSubmatch(rest); tm != nil {
			hour, _ = strconv.Atoi(tm[1])
			minute, _ = strconv.Atoi(tm[2])
		} else if tm := meridiemRe.FindStringSubmatch(rest); tm != nil {
			hour, _ = strconv.Atoi(tm[2])
			if tm[3] != "" {
				minute, _ = strconv.Atoi(tm[3])
			}
			if tm[1] == "오후" && hour < 12 {
				hour += 12
			}
		}
		return buildDate(year, month, day, hour, minute)
	}

	if m := delimitedRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		hour, minute := 0, 0
		if m[4] != "" {
			hour, _ = strconv.Atoi(m[4])
			minute, _ = strconv.Atoi(m[5])
		}
		return buildDate(year, month, day, hour, minute)
	}

	return nil
}

// buildDate constructs the timestamp and rejects components that do not
// round-trip (time.Date would silently normalize 2025-13-40).
func buildDate(year, month, day, hour, minute int) *time.Time {
	if month < 1 || month > 12 || day < 1 || day > 31 || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil
	}
	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.Local)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return nil
	}
	return &t
}
