package strategy

import (
	"sync"
)

// Verdict is what a boarding strategy concluded from one frame
type Verdict struct {
	Strategy      string `json:"strategy"`
	State         string `json:"state"`
	PersonPresent bool   `json:"person_present"`
	// Alighted is set on the frame where a passenger is judged to have left
	Alighted  bool     `json:"alighted"`
	LostItems []string `json:"lost_items,omitempty"`
}

// BoardingStrategy decides from the labels seen in each frame when a
// passenger has left and which items stayed behind
type BoardingStrategy interface {
	Observe(labels []string) Verdict
	GetStrategyName() string
	Reset()
}

// SignalReceiver is implemented by strategies driven by vehicle signals
type SignalReceiver interface {
	SetSignals(door, seat bool)
}

const (
	PresenceStrategyName = "presence"
	CabinStrategyName    = "cabin"
)

func contains(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

func snapshot(labels []string) []string {
	out := make([]string, len(labels))
	copy(out, labels)
	return out
}

// FindLostItems returns the items in after that are not accounted for in
// before. Each entry of before cancels at most one equal entry of after and
// the order of after is preserved.
func FindLostItems(before, after []string) []string {
	remaining := make(map[string]int, len(before))
	for _, item := range before {
		remaining[item]++
	}

	lost := make([]string, 0)
	for _, item := range after {
		if remaining[item] > 0 {
			remaining[item]--
			continue
		}
		lost = append(lost, item)
	}
	return lost
}

// PresenceStrategy treats a visible person as boarded. When the person
// disappears the cabin is compared with the last snapshot taken while it was
// empty.
type PresenceStrategy struct {
	personLabel string
	personSeen  bool
	before      []string
}

// NewPresenceStrategy creates a presence strategy keyed on personLabel
func NewPresenceStrategy(personLabel string) *PresenceStrategy {
	return &PresenceStrategy{personLabel: personLabel}
}

// Observe processes the labels of one frame
func (s *PresenceStrategy) Observe(labels []string) Verdict {
	v := Verdict{Strategy: s.GetStrategyName()}

	if contains(labels, s.personLabel) {
		s.personSeen = true
		v.PersonPresent = true
		v.State = "occupied"
		return v
	}

	if s.personSeen {
		v.Alighted = true
		v.LostItems = FindLostItems(s.before, labels)
	}
	s.personSeen = false
	s.before = snapshot(labels)
	v.State = "empty"
	return v
}

// GetStrategyName returns the strategy name
func (s *PresenceStrategy) GetStrategyName() string {
	return PresenceStrategyName
}

// Reset forgets the boarding state and snapshot
func (s *PresenceStrategy) Reset() {
	s.personSeen = false
	s.before = nil
}

// BoardingStatus is the stage of the door and seat driven state machine
type BoardingStatus string

const (
	StatusBefore BoardingStatus = "BEFORE"
	StatusDuring BoardingStatus = "DURING"
	StatusAfter  BoardingStatus = "AFTER"
)

// CabinSignalStrategy follows door and seat signals from the vehicle bus.
// BEFORE keeps refreshing the snapshot until the door opens. DURING moves to
// AFTER once the door is closed with an occupied seat and a visible person.
// AFTER checks for lost items when the door opens with an empty seat and no
// person in view.
type CabinSignalStrategy struct {
	mu          sync.Mutex
	personLabel string
	status      BoardingStatus
	door        bool
	seat        bool
	before      []string
}

// NewCabinSignalStrategy creates a signal driven strategy keyed on personLabel
func NewCabinSignalStrategy(personLabel string) *CabinSignalStrategy {
	return &CabinSignalStrategy{
		personLabel: personLabel,
		status:      StatusBefore,
	}
}

// SetSignals records the latest door and seat state
func (s *CabinSignalStrategy) SetSignals(door, seat bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.door = door
	s.seat = seat
}

// Status returns the current stage
func (s *CabinSignalStrategy) Status() BoardingStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Observe processes the labels of one frame
func (s *CabinSignalStrategy) Observe(labels []string) Verdict {
	s.mu.Lock()
	defer s.mu.Unlock()

	human := contains(labels, s.personLabel)
	v := Verdict{Strategy: s.GetStrategyName(), PersonPresent: human}

	switch s.status {
	case StatusBefore:
		if s.door {
			s.status = StatusDuring
		} else {
			s.before = snapshot(labels)
		}
	case StatusDuring:
		switch {
		case !s.door && s.seat && human:
			s.status = StatusAfter
		case !s.door:
			s.before = snapshot(labels)
			s.status = StatusBefore
		}
	case StatusAfter:
		if s.door && !s.seat && !human {
			v.Alighted = true
			v.LostItems = FindLostItems(s.before, labels)
			s.status = StatusDuring
		}
	}

	v.State = string(s.status)
	return v
}

// GetStrategyName returns the strategy name
func (s *CabinSignalStrategy) GetStrategyName() string {
	return CabinStrategyName
}

// Reset returns to BEFORE with closed door, empty seat and no snapshot
func (s *CabinSignalStrategy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusBefore
	s.door = false
	s.seat = false
	s.before = nil
}
