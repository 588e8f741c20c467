package guard

import (
	"testing"
	"time"
)

func entry(placedAt time.Time, stake float64, eventID, teamID string) LedgerEntry {
	return LedgerEntry{PlacedAt: placedAt, Stake: stake, EventID: eventID, TeamID: teamID}
}

func TestWeekStart(t *testing.T) {
	loc := time.UTC
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "midweek wednesday",
			now:  time.Date(2026, 8, 19, 15, 30, 0, 0, loc), // Wednesday
			want: time.Date(2026, 8, 17, 0, 0, 0, 0, loc),   // Monday
		},
		{
			name: "monday starts its own week",
			now:  time.Date(2026, 8, 17, 0, 0, 1, 0, loc),
			want: time.Date(2026, 8, 17, 0, 0, 0, 0, loc),
		},
		{
			name: "sunday belongs to the previous monday",
			now:  time.Date(2026, 8, 23, 23, 59, 59, 0, loc),
			want: time.Date(2026, 8, 17, 0, 0, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WeekStart(tt.now); !got.Equal(tt.want) {
				t.Fatalf("WeekStart(%v)=%v, expected %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestAggregateWindows(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 8, 19, 18, 0, 0, 0, loc) // Wednesday evening

	entries := []LedgerEntry{
		// Today: counts toward daily, weekly, rolling 7d.
		entry(time.Date(2026, 8, 19, 9, 0, 0, 0, loc), 10, "e1", "t1"),
		// Yesterday just before midnight: weekly and rolling only.
		entry(time.Date(2026, 8, 18, 23, 59, 0, 0, loc), 20, "e1", "t2"),
		// Monday 00:00 this week: weekly boundary is inclusive.
		entry(time.Date(2026, 8, 17, 0, 0, 0, 0, loc), 30, "e2", "t1"),
		// Sunday last week: outside calendar week, inside rolling 7d.
		entry(time.Date(2026, 8, 16, 12, 0, 0, 0, loc), 40, "e2", "t1"),
		// Eight days ago: outside everything.
		entry(time.Date(2026, 8, 11, 12, 0, 0, 0, loc), 50, "e1", "t1"),
	}

	snap := Aggregate(entries, "e1", "t1", now)

	if snap.DailyStaked != 10 {
		t.Fatalf("DailyStaked=%v, expected 10", snap.DailyStaked)
	}
	if snap.BetsToday != 1 {
		t.Fatalf("BetsToday=%v, expected 1", snap.BetsToday)
	}
	if snap.WeeklyStaked != 60 {
		t.Fatalf("WeeklyStaked=%v, expected 60 (today + yesterday + monday midnight)", snap.WeeklyStaked)
	}
	if snap.SameEventStaked != 10 {
		t.Fatalf("SameEventStaked=%v, expected 10 (same event within today)", snap.SameEventStaked)
	}
	// Team t1 within the rolling window: today's 10, Monday's 30, Sunday's 40.
	if snap.SameTeam7dStaked != 80 {
		t.Fatalf("SameTeam7dStaked=%v, expected 80", snap.SameTeam7dStaked)
	}
}

// One entry can feed several sums at once; no window excludes another.
func TestAggregateEntryCountsInAllMatchingWindows(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 8, 19, 18, 0, 0, 0, loc)
	entries := []LedgerEntry{
		entry(time.Date(2026, 8, 19, 10, 0, 0, 0, loc), 15, "e1", "t1"),
	}

	snap := Aggregate(entries, "e1", "t1", now)

	if snap.DailyStaked != 15 || snap.WeeklyStaked != 15 ||
		snap.SameEventStaked != 15 || snap.SameTeam7dStaked != 15 || snap.BetsToday != 1 {
		t.Fatalf("entry missing from a window: %+v", snap)
	}
}

func TestAggregateRollingWindowInclusiveLowerBound(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 8, 19, 18, 0, 0, 0, loc)
	boundary := now.Add(-7 * 24 * time.Hour)

	entries := []LedgerEntry{
		entry(boundary, 10, "e1", "t1"),                      // exactly 168h ago: included
		entry(boundary.Add(-time.Second), 20, "e1", "t1"),    // just outside
		entry(boundary.Add(time.Second), 30, "e1", "other"),  // inside, other team
	}

	snap := Aggregate(entries, "e1", "t1", now)

	if snap.SameTeam7dStaked != 10 {
		t.Fatalf("SameTeam7dStaked=%v, expected only the boundary entry (10)", snap.SameTeam7dStaked)
	}
}

func TestAggregateEmptyLedger(t *testing.T) {
	snap := Aggregate(nil, "e1", "t1", time.Now())
	if snap != (ExposureSnapshot{}) {
		t.Fatalf("empty ledger produced non-zero snapshot: %+v", snap)
	}
}
