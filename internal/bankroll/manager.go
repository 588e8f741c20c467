package bankroll

import (
	"context"
	"errors"
	"log"
	"sync"

	"stake-guard/pkg/db"
)

var ErrInvalidAmount = errors.New("bankroll must be positive")

// Manager manages the capital base all percentage caps derive from. The
// current amount is cached in memory and persisted on every change.
type Manager struct {
	mu      sync.RWMutex
	amount  float64
	queries *db.Queries
}

// NewManager creates a bankroll manager seeded from the DB; when no row
// exists yet the configured default is persisted.
func NewManager(ctx context.Context, queries *db.Queries, defaultAmount float64) (*Manager, error) {
	m := &Manager{queries: queries}

	if queries == nil {
		m.amount = defaultAmount
		return m, nil
	}

	stored, err := queries.GetBankroll(ctx)
	if err == db.ErrNotFound {
		if defaultAmount > 0 {
			if err := queries.SetBankroll(ctx, defaultAmount); err != nil {
				return nil, err
			}
		}
		m.amount = defaultAmount
		log.Printf("[BANKROLL] initialized: %.2f", defaultAmount)
		return m, nil
	}
	if err != nil {
		return nil, err
	}

	m.amount = stored.Amount
	return m, nil
}

// Amount returns the current bankroll.
func (m *Manager) Amount() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.amount
}

// Set replaces the bankroll. Non-positive amounts are rejected so cap
// derivation never runs against a zero or negative capital base.
func (m *Manager) Set(ctx context.Context, amount float64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.queries != nil {
		if err := m.queries.SetBankroll(ctx, amount); err != nil {
			return err
		}
	}
	m.amount = amount
	return nil
}

// Adjust applies a delta (deposit or withdrawal). The result must stay
// positive.
func (m *Manager) Adjust(ctx context.Context, delta float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.amount + delta
	if next <= 0 {
		return m.amount, ErrInvalidAmount
	}
	if m.queries != nil {
		if err := m.queries.SetBankroll(ctx, next); err != nil {
			return m.amount, err
		}
	}
	m.amount = next
	return next, nil
}
