// Package civil pins date and wall-clock handling to one configured timezone.
package civil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// Zone parses and formats dates and times in a fixed location.
type Zone struct {
	loc *time.Location
}

// Load resolves an IANA timezone name; empty means UTC.
func Load(name string) (*Zone, error) {
	if name == "" {
		return &Zone{loc: time.UTC}, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return &Zone{loc: loc}, nil
}

// MustLoad is Load for tests and static setup.
func MustLoad(name string) *Zone {
	z, err := Load(name)
	if err != nil {
		panic(err)
	}
	return z
}

// UTC returns a zone anchored at UTC.
func UTC() *Zone { return &Zone{loc: time.UTC} }

// Location exposes the underlying location.
func (z *Zone) Location() *time.Location { return z.loc }

// ParseDate parses a YYYY-MM-DD reference date at local midnight.
func (z *Zone) ParseDate(raw string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(raw), z.loc)
}

// FormatDate renders the calendar date t carries. Dates read back from DATE columns arrive at
// UTC midnight, so no zone conversion happens here.
func (z *Zone) FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// StorageDate pins the calendar date of t to UTC midnight so the driver never shifts it
// across a day boundary when binding DATE parameters.
func StorageDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current reference date.
func (z *Zone) Today() string {
	return time.Now().In(z.loc).Format(DateLayout)
}

// FormatClock renders t as HH:MM in the zone.
func (z *Zone) FormatClock(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.In(z.loc).Format(ClockLayout)
}

// ParseTimestamp reads an upstream timestamp. Bare HH:MM or HH:MM:SS values are placed on date.
func (z *Zone) ParseTimestamp(date time.Time, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	if h, m, s, ok := splitClock(raw); ok {
		y, mo, d := date.Date()
		// wall clock on the service day; hours past 23 roll into the next day
		t := time.Date(y, mo, d, h, m, s, 0, z.loc)
		return &t, nil
	}

	for _, layout := range timestampLayouts {
		var (
			t   time.Time
			err error
		)
		if layout == time.RFC3339 {
			t, err = time.Parse(layout, raw)
		} else {
			t, err = time.ParseInLocation(layout, raw, z.loc)
		}
		if err == nil {
			t = t.In(z.loc)
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognised timestamp %q", raw)
}

// ValidClock reports whether raw is a 24h HH:MM value.
func ValidClock(raw string) bool {
	if len(raw) != 5 || raw[2] != ':' {
		return false
	}
	_, err := time.Parse(ClockLayout, raw)
	return err == nil
}

// splitClock accepts H:MM, HH:MM and HH:MM:SS; hours past 23 are kept for after-midnight service.
func splitClock(raw string) (int, int, int, bool) {
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, 0, false
	}
	vals := make([]int, 3)
	for i, p := range parts {
		if p == "" || len(p) > 2 {
			return 0, 0, 0, false
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, 0, 0, false
		}
		vals[i] = n
	}
	if vals[0] > 47 || vals[1] > 59 || vals[2] > 59 {
		return 0, 0, 0, false
	}
	return vals[0], vals[1], vals[2], true
}
