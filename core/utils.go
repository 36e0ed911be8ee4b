package core

import (
	"encoding/json"
	"os"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var NowFunc = time.Now // mockable

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Getwd returns the working directory, or "." when it cannot be determined.
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// Today returns the current calendar date (UTC, midnight).
func Today() time.Time {
	return TruncateDate(NowFunc())
}

// TruncateDate drops the time of day of t, keeping its calendar date.
func TruncateDate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string. An empty string is the zero date.
func ParseDate(s string) (time.Time, error) {
	s = CleanString(s)
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(DateLayout, s)
}

// Date is a calendar date transmitted as "YYYY-MM-DD".
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date { return Date{TruncateDate(t)} }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateLayout))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == nil || *s == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(DateLayout, *s)
	if err != nil {
		// accept full timestamps too
		if t, err = time.Parse(time.RFC3339, *s); err != nil {
			return err
		}
	}
	d.Time = TruncateDate(t)
	return nil
}
