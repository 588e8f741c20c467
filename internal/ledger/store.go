package ledger

import (
	"context"
	"log"
	"sync"

	"stake-guard/internal/guard"
	"stake-guard/pkg/db"
)

// Store keeps the most-recent-first bet ledger in memory while persisting to
// the DB for durability. The in-memory slice is the stable snapshot the
// aggregator reads; appends are a separate, caller-sequenced step.
type Store struct {
	mu      sync.RWMutex
	entries []guard.LedgerEntry
	version uint64
	cap     int
	queries *db.Queries
}

// NewStore creates a ledger store. cap <= 0 falls back to guard.LedgerCap.
func NewStore(queries *db.Queries, cap int) *Store {
	if cap <= 0 {
		cap = guard.LedgerCap
	}
	return &Store{queries: queries, cap: cap}
}

// Load seeds in-memory state from the DB on startup. Absent or unreadable
// storage loads as an empty ledger (fail open, not fatal).
func (s *Store) Load(ctx context.Context) error {
	if s.queries == nil {
		return nil
	}
	entries, err := s.queries.ListBets(ctx, s.cap)
	if err != nil {
		log.Printf("[LEDGER] load failed, starting empty: %v", err)
		entries = nil
	}
	s.mu.Lock()
	s.entries = entries
	s.version++
	s.mu.Unlock()
	return nil
}

// Append records one entry, prepends it in memory, and trims the ledger to
// its cap. Oldest entries beyond the cap are silently discarded.
func (s *Store) Append(ctx context.Context, e guard.LedgerEntry) error {
	if s.queries != nil {
		if err := s.queries.InsertBet(ctx, e); err != nil {
			return err
		}
		if err := s.queries.TrimBets(ctx, s.cap); err != nil {
			log.Printf("[LEDGER] trim failed: %v", err)
		}
	}

	s.mu.Lock()
	s.entries = append([]guard.LedgerEntry{e}, s.entries...)
	if len(s.entries) > s.cap {
		s.entries = s.entries[:s.cap]
	}
	s.version++
	s.mu.Unlock()
	return nil
}

// Snapshot returns the entries and the version they belong to under a single
// lock acquisition, so the pair can never disagree. Exposure memoization must
// key on exactly the version its entries came from.
func (s *Store) Snapshot() ([]guard.LedgerEntry, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]guard.LedgerEntry, len(s.entries))
	copy(out, s.entries)
	return out, s.version
}

// Entries returns the current snapshot, most-recent-first.
func (s *Store) Entries() []guard.LedgerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]guard.LedgerEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Recent returns up to n of the newest entries.
func (s *Store) Recent(n int) []guard.LedgerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.entries) {
		n = len(s.entries)
	}
	out := make([]guard.LedgerEntry, n)
	copy(out, s.entries[:n])
	return out
}

// Len returns the ledger length.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Version increases on every mutation; exposure memoization keys on it.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}
