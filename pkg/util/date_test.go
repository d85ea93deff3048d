package util

import (
    "strconv"
    "testing"
    "time"
)

func TestParseTimeRFC3339(t *testing.T) {
    s := "2024-10-10T10:10:10Z"
    got, ok := ParseTime(s)
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.UTC().Format(time.RFC3339) != s {
        t.Fatalf("unexpected time %v", got)
    }
}

func TestParseTimeUnix(t *testing.T) {
    ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
    got, ok := ParseTime(strconv.FormatInt(ts, 10))
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.Unix() != ts {
        t.Fatalf("unexpected unix %v", got.Unix())
    }
}

func TestParseTimeDefault(t *testing.T) {
    def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
    got := ParseTimeDefault("", def)
    if !got.Equal(def) {
        t.Fatalf("expected default")
    }
}

func TestParseDateLayouts(t *testing.T) {
    want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
    for _, s := range []string{"2024-05-01", "01/05/2024", "01-May-2024"} {
        got, ok := ParseDate(s)
        if !ok {
            t.Fatalf("expected ok for %q", s)
        }
        if !got.Equal(want) {
            t.Fatalf("parse %q: got %v", s, got)
        }
    }
    if _, ok := ParseDate("not-a-date"); ok {
        t.Fatalf("expected failure")
    }
}

func TestTruncateToDay(t *testing.T) {
    in := time.Date(2024, 5, 1, 17, 42, 9, 0, time.UTC)
    got := TruncateToDay(in)
    if FormatDate(got) != "2024-05-01" || got.Hour() != 0 {
        t.Fatalf("unexpected truncation %v", got)
    }
}
