package guard

import "time"

// DayStart returns local midnight of now's calendar date.
func DayStart(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// WeekStart returns local midnight of the ISO Monday on or before now.
// A Monday "now" starts its own week.
func WeekStart(now time.Time) time.Time {
	day := DayStart(now)
	offset := int(day.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset += 7 // Sunday
	}
	return day.AddDate(0, 0, -offset)
}

// Aggregate reduces the ledger into the exposure snapshot for one candidate
// bet. Single pass; each entry is tested against every window independently,
// so one entry can count toward several sums at once. Only timestamps and
// group-id equality ever exclude an entry.
func Aggregate(entries []LedgerEntry, eventID, teamID string, now time.Time) ExposureSnapshot {
	dayStart := DayStart(now)
	weekStart := WeekStart(now)
	// Fixed-duration window, deliberately not calendar-aligned.
	rollingStart := now.Add(-7 * 24 * time.Hour)

	var snap ExposureSnapshot
	for _, e := range entries {
		if !e.PlacedAt.Before(dayStart) {
			snap.DailyStaked += e.Stake
			snap.BetsToday++
			if e.EventID == eventID {
				snap.SameEventStaked += e.Stake
			}
		}
		if !e.PlacedAt.Before(weekStart) {
			snap.WeeklyStaked += e.Stake
		}
		if !e.PlacedAt.Before(rollingStart) && e.TeamID == teamID {
			snap.SameTeam7dStaked += e.Stake
		}
	}
	return snap
}
