package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"stake-guard/internal/guard"
)

func newTestDB(t *testing.T) *Queries {
	t.Helper()
	database, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := ApplyMigrations(database); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}
	return database.Queries()
}

func TestBetRoundTrip(t *testing.T) {
	q := newTestDB(t)
	ctx := context.Background()

	placed := time.Date(2026, 8, 19, 10, 0, 0, 0, time.UTC)
	bet := guard.LedgerEntry{
		ID:       "bet-1",
		PlacedAt: placed,
		Stake:    25,
		Odds:     -110,
		EventID:  "e1",
		TeamID:   "t1",
		Verdict:  guard.VerdictWarn,
		Reasons:  []guard.Reason{guard.ReasonUnitSizeCap},
	}
	if err := q.InsertBet(ctx, bet); err != nil {
		t.Fatalf("InsertBet returned error: %v", err)
	}

	entries, err := q.ListBets(ctx, 10)
	if err != nil {
		t.Fatalf("ListBets returned error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len=%d, expected 1", len(entries))
	}
	got := entries[0]
	if got.ID != bet.ID || got.Stake != bet.Stake || got.Odds != bet.Odds ||
		got.EventID != bet.EventID || got.TeamID != bet.TeamID {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Verdict != guard.VerdictWarn {
		t.Fatalf("Verdict=%v, expected WARN", got.Verdict)
	}
	if len(got.Reasons) != 1 || got.Reasons[0] != guard.ReasonUnitSizeCap {
		t.Fatalf("Reasons=%v, expected [UNIT_SIZE_CAP_EXCEEDED]", got.Reasons)
	}
	if !got.PlacedAt.Equal(placed) {
		t.Fatalf("PlacedAt=%v, expected %v", got.PlacedAt, placed)
	}
}

func TestListBetsOrderAndLimit(t *testing.T) {
	q := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 19, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"bet-a", "bet-b", "bet-c"} {
		e := guard.LedgerEntry{
			ID:       id,
			PlacedAt: base.Add(time.Duration(i) * time.Minute),
			Stake:    10,
			Odds:     -110,
			EventID:  "e1",
			TeamID:   "t1",
			Verdict:  guard.VerdictAllow,
		}
		if err := q.InsertBet(ctx, e); err != nil {
			t.Fatalf("InsertBet returned error: %v", err)
		}
	}

	entries, err := q.ListBets(ctx, 2)
	if err != nil {
		t.Fatalf("ListBets returned error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len=%d, expected limit of 2", len(entries))
	}
	if entries[0].ID != "bet-c" || entries[1].ID != "bet-b" {
		t.Fatalf("ordering wrong: %s, %s — expected newest first", entries[0].ID, entries[1].ID)
	}
}

func TestTrimBetsKeepsNewest(t *testing.T) {
	q := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 19, 10, 0, 0, 0, time.UTC)

	ids := []string{"bet-1", "bet-2", "bet-3", "bet-4", "bet-5", "bet-6"}
	for i, id := range ids {
		e := guard.LedgerEntry{
			ID:       id,
			PlacedAt: base.Add(time.Duration(i) * time.Minute),
			Stake:    10,
			Odds:     -110,
			EventID:  "e1",
			TeamID:   "t1",
		}
		if err := q.InsertBet(ctx, e); err != nil {
			t.Fatalf("InsertBet returned error: %v", err)
		}
	}

	if err := q.TrimBets(ctx, 4); err != nil {
		t.Fatalf("TrimBets returned error: %v", err)
	}

	n, err := q.CountBets(ctx)
	if err != nil {
		t.Fatalf("CountBets returned error: %v", err)
	}
	if n != 4 {
		t.Fatalf("CountBets=%d after trim, expected 4", n)
	}

	entries, err := q.ListBets(ctx, 0)
	if err != nil {
		t.Fatalf("ListBets returned error: %v", err)
	}
	// The two oldest rows must be gone.
	for _, e := range entries {
		if e.ID == "bet-1" || e.ID == "bet-2" {
			t.Fatalf("trim kept old row %q", e.ID)
		}
	}
}

func TestBehaviorStateUpsert(t *testing.T) {
	q := newTestDB(t)
	ctx := context.Background()

	if _, err := q.GetBehaviorState(ctx); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on empty table, got %v", err)
	}

	until := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	state := BehaviorState{
		ConsecutiveOverrides: 2,
		CooldownViolations:   1,
		CooldownUntil:        sql.NullTime{Time: until, Valid: true},
	}
	if err := q.SaveBehaviorState(ctx, state); err != nil {
		t.Fatalf("SaveBehaviorState returned error: %v", err)
	}

	got, err := q.GetBehaviorState(ctx)
	if err != nil {
		t.Fatalf("GetBehaviorState returned error: %v", err)
	}
	if got.ConsecutiveOverrides != 2 || got.CooldownViolations != 1 {
		t.Fatalf("counters mismatch: %+v", got)
	}
	if !got.CooldownUntil.Valid || !got.CooldownUntil.Time.Equal(until) {
		t.Fatalf("CooldownUntil=%+v, expected %v", got.CooldownUntil, until)
	}

	// Second save replaces, never duplicates the singleton row.
	state.ConsecutiveOverrides = 0
	state.CooldownUntil = sql.NullTime{}
	if err := q.SaveBehaviorState(ctx, state); err != nil {
		t.Fatalf("SaveBehaviorState (update) returned error: %v", err)
	}
	got, err = q.GetBehaviorState(ctx)
	if err != nil {
		t.Fatalf("GetBehaviorState returned error: %v", err)
	}
	if got.ConsecutiveOverrides != 0 || got.CooldownUntil.Valid {
		t.Fatalf("update not applied: %+v", got)
	}
}

func TestBankrollUpsert(t *testing.T) {
	q := newTestDB(t)
	ctx := context.Background()

	if _, err := q.GetBankroll(ctx); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on empty table, got %v", err)
	}

	if err := q.SetBankroll(ctx, 1000); err != nil {
		t.Fatalf("SetBankroll returned error: %v", err)
	}
	if err := q.SetBankroll(ctx, 2500); err != nil {
		t.Fatalf("SetBankroll (update) returned error: %v", err)
	}

	b, err := q.GetBankroll(ctx)
	if err != nil {
		t.Fatalf("GetBankroll returned error: %v", err)
	}
	if b.Amount != 2500 {
		t.Fatalf("Amount=%v, expected 2500", b.Amount)
	}
}
