package models

import (
	"testing"
	"time"
)

func TestPeriodForTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		t    time.Time
		want PeriodKey
	}{
		{
			name: "mid month",
			t:    time.Date(2024, 5, 14, 10, 0, 0, 0, time.UTC),
			want: "2024-05",
		},
		{
			name: "single digit month zero padded",
			t:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			want: "2024-01",
		},
		{
			name: "non-UTC time normalized to UTC",
			t:    time.Date(2024, 6, 1, 0, 30, 0, 0, time.FixedZone("east", 2*3600)),
			want: "2024-05",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := PeriodForTime(tt.t); got != tt.want {
				t.Errorf("PeriodForTime(%v) = %s, want %s", tt.t, got, tt.want)
			}
		})
	}
}

func TestParsePeriod(t *testing.T) {
	t.Parallel()

	got, err := ParsePeriod("2024-11")
	if err != nil {
		t.Fatalf("ParsePeriod failed: %v", err)
	}
	if got != "2024-11" {
		t.Errorf("ParsePeriod = %s, want 2024-11", got)
	}

	for _, bad := range []string{"2024", "2024-13", "24-05", "not-a-period"} {
		if _, err := ParsePeriod(bad); err == nil {
			t.Errorf("ParsePeriod(%q) succeeded, expected error", bad)
		}
	}
}

func TestAddPeriods(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		key  PeriodKey
		n    int
		want PeriodKey
	}{
		{
			name: "forward within year",
			key:  "2024-05",
			n:    2,
			want: "2024-07",
		},
		{
			name: "backward across year boundary",
			key:  "2024-01",
			n:    -1,
			want: "2023-12",
		},
		{
			name: "backward several months",
			key:  "2024-05",
			n:    -4,
			want: "2024-01",
		},
		{
			name: "zero is identity",
			key:  "2024-05",
			n:    0,
			want: "2024-05",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.key.AddPeriods(tt.n); got != tt.want {
				t.Errorf("%s.AddPeriods(%d) = %s, want %s", tt.key, tt.n, got, tt.want)
			}
		})
	}
}

func TestPeriodBefore(t *testing.T) {
	t.Parallel()

	if !PeriodKey("2024-04").Before("2024-05") {
		t.Error("Expected 2024-04 before 2024-05")
	}
	if PeriodKey("2024-05").Before("2024-05") {
		t.Error("Expected equal periods not to be before each other")
	}
	if PeriodKey("2024-10").Before("2024-09") {
		t.Error("Expected 2024-10 not before 2024-09")
	}
	if !PeriodKey("2023-12").Before("2024-01") {
		t.Error("Expected 2023-12 before 2024-01 across year boundary")
	}
}

func TestTierForScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score int
		want  QualityTier
	}{
		{100, TierExcellent},
		{75, TierExcellent},
		{74, TierGood},
		{50, TierGood},
		{49, TierFair},
		{25, TierFair},
		{24, TierLimited},
		{0, TierLimited},
	}

	for _, tt := range tests {
		if got := TierForScore(tt.score); got != tt.want {
			t.Errorf("TierForScore(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}
