package util

import (
    "strconv"
    "time"
)

// DateLayout is the canonical layout for mandi arrival dates.
const DateLayout = "2006-01-02"

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
    if s == "" {
        return time.Time{}, false
    }
    if t, err := time.Parse(time.RFC3339, s); err == nil {
        return t, true
    }
    if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
        return t, true
    }
    if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
        return time.Unix(ts, 0), true
    }
    return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
    if t, ok := ParseTime(s); ok {
        return t
    }
    return def
}

// ParseDate parses an arrival date. Accepts the canonical layout plus the
// slash and month-name forms Agmarknet and eNAM publish.
func ParseDate(s string) (time.Time, bool) {
    if s == "" {
        return time.Time{}, false
    }
    for _, layout := range []string{DateLayout, "02/01/2006", "02-Jan-2006"} {
        if t, err := time.Parse(layout, s); err == nil {
            return t.UTC(), true
        }
    }
    return time.Time{}, false
}

// FormatDate renders a time as a canonical arrival date string.
func FormatDate(t time.Time) string {
    return t.UTC().Format(DateLayout)
}

// TruncateToDay drops the time-of-day component, keeping the UTC date.
func TruncateToDay(t time.Time) time.Time {
    y, m, d := t.UTC().Date()
    return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
