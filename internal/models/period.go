package models

import (
	"fmt"
	"time"
)

// PeriodKey identifies the calendar month a conversation belongs to, in
// "YYYY-MM" form. Keys are zero-padded so lexicographic order matches
// chronological order, which lets the store compare periods with plain
// string comparison.
type PeriodKey string

// PeriodForTime returns the period key for the given instant in UTC.
func PeriodForTime(t time.Time) PeriodKey {
	return PeriodKey(t.UTC().Format("2006-01"))
}

// CurrentPeriod returns the period key for now.
func CurrentPeriod() PeriodKey {
	return PeriodForTime(time.Now())
}

// ParsePeriod parses a "YYYY-MM" string into a PeriodKey.
func ParsePeriod(s string) (PeriodKey, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return "", fmt.Errorf("invalid period key %q: %w", s, err)
	}
	return PeriodForTime(t), nil
}

// AddPeriods returns the period n months after k (n may be negative).
func (k PeriodKey) AddPeriods(n int) PeriodKey {
	t, err := time.Parse("2006-01", string(k))
	if err != nil {
		return k
	}
	return PeriodForTime(t.AddDate(0, n, 0))
}

// Before reports whether k is strictly earlier than other.
func (k PeriodKey) Before(other PeriodKey) bool {
	return string(k) < string(other)
}

func (k PeriodKey) String() string {
	return string(k)
}
