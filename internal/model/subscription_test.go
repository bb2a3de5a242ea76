package model

import (
	"testing"
	"time"
)

func TestPeriodEnd(t *testing.T) {
	start := time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		duration PlanDuration
		want     time.Time
	}{
		{DurationMonthly, start.AddDate(0, 1, 0)},
		{DurationYearly, start.AddDate(1, 0, 0)},
		{DurationLifetime, start.AddDate(100, 0, 0)},
	}

	for _, tt := range tests {
		if got := PeriodEnd(start, tt.duration); !got.Equal(tt.want) {
			t.Errorf("PeriodEnd(%s) = %v, want %v", tt.duration, got, tt.want)
		}
	}
}

func TestIsLifetime(t *testing.T) {
	sub := Subscription{PlanDuration: DurationLifetime}
	if !sub.IsLifetime() {
		t.Fatal("expected lifetime subscription")
	}
	sub.PlanDuration = DurationMonthly
	if sub.IsLifetime() {
		t.Fatal("monthly subscription reported as lifetime")
	}
}
