package strategy

import (
	"fmt"
	"sync"
	"time"
)

// TrackerStatus is a point in time view of the tracker
type TrackerStatus struct {
	Strategy      string    `json:"strategy"`
	Active        bool      `json:"active"`
	LastVerdict   Verdict   `json:"last_verdict"`
	LastLostItems []string  `json:"last_lost_items,omitempty"`
	LastLostAt    time.Time `json:"last_lost_at,omitempty"`
	Frames        int64     `json:"frames"`
}

// Tracker holds the active boarding strategy. Lost items are only reported
// while tracking is active.
type Tracker struct {
	mu            sync.Mutex
	strategy      BoardingStrategy
	active        bool
	lastVerdict   Verdict
	lastLostItems []string
	lastLostAt    time.Time
	frames        int64
}

// NewTracker creates a tracker using strategy
func NewTracker(strategy BoardingStrategy, active bool) *Tracker {
	return &Tracker{
		strategy: strategy,
		active:   active,
	}
}

// New builds a strategy by name
func New(name, personLabel string) (BoardingStrategy, error) {
	switch name {
	case PresenceStrategyName, "":
		return NewPresenceStrategy(personLabel), nil
	case CabinStrategyName:
		return NewCabinSignalStrategy(personLabel), nil
	default:
		return nil, fmt.Errorf("unknown boarding strategy %q", name)
	}
}

// SetStrategy swaps the active strategy
func (t *Tracker) SetStrategy(strategy BoardingStrategy) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.strategy = strategy
	t.lastVerdict = Verdict{}
}

// SetActive turns lost item reporting on or off
func (t *Tracker) SetActive(active bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = active
}

// SetSignals forwards door and seat signals. It reports false when the
// current strategy does not use them.
func (t *Tracker) SetSignals(door, seat bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	receiver, ok := t.strategy.(SignalReceiver)
	if !ok {
		return false
	}
	receiver.SetSignals(door, seat)
	return true
}

// Observe runs the labels of one frame through the strategy. The returned
// verdict has no lost items while tracking is inactive.
func (t *Tracker) Observe(labels []string) Verdict {
	t.mu.Lock()
	defer t.mu.Unlock()

	v := t.strategy.Observe(labels)
	if !t.active {
		v.LostItems = nil
	}
	t.frames++
	t.lastVerdict = v
	if len(v.LostItems) > 0 {
		t.lastLostItems = v.LostItems
		t.lastLostAt = time.Now()
	}
	return v
}

// Reset clears the strategy state and the recorded results
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.strategy.Reset()
	t.lastVerdict = Verdict{}
	t.lastLostItems = nil
	t.lastLostAt = time.Time{}
}

// Status returns the current tracker state
func (t *Tracker) Status() TrackerStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TrackerStatus{
		Strategy:      t.strategy.GetStrategyName(),
		Active:        t.active,
		LastVerdict:   t.lastVerdict,
		LastLostItems: t.lastLostItems,
		LastLostAt:    t.lastLostAt,
		Frames:        t.frames,
	}
}
