// Package events carries the guard's internal notifications: bet lifecycle,
// rule and bankroll changes, cooldown starts, and alerts.
package events

import "sync"

// Event names one bus topic.
type Event string

const (
	EventBetEvaluated    Event = "bet.evaluated"
	EventBetRecorded     Event = "bet.recorded"
	EventRulesUpdated    Event = "rules.updated"
	EventBankrollChanged Event = "bankroll.changed"
	EventCooldownStarted Event = "cooldown.started"
	EventGuardAlert      Event = "guard.alert"
)

// Bus fans guard events out to subscribers. Publishing never blocks: a
// subscriber that falls behind loses messages rather than stalling the
// evaluation path.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[Event]map[int]chan any
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Event]map[int]chan any)}
}

// Subscribe registers a listener on one topic with the given channel buffer.
// The returned cancel function drops the subscription and closes the channel;
// it is safe to call more than once.
func (b *Bus) Subscribe(e Event, buffer int) (<-chan any, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	ch := make(chan any, buffer)
	if b.subs[e] == nil {
		b.subs[e] = make(map[int]chan any)
	}
	b.subs[e][id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[e][id]; ok {
			delete(b.subs[e], id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers the payload to every subscriber of the topic. Full
// subscriber buffers drop the message.
func (b *Bus) Publish(e Event, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[e] {
		select {
		case ch <- payload:
		default:
		}
	}
}

// SubscriberCount reports how many listeners a topic currently has.
func (b *Bus) SubscriberCount(e Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[e])
}
