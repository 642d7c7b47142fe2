package strategy

import (
	"reflect"
	"testing"
)

func TestFindLostItems(t *testing.T) {
	tests := []struct {
		name   string
		before []string
		after  []string
		want   []string
	}{
		{"nothing left", []string{"cup", "bag"}, []string{"bag", "cup"}, []string{}},
		{"one new item", []string{"cup"}, []string{"cup", "phone"}, []string{"phone"}},
		{"duplicate counted once", []string{"bag"}, []string{"bag", "bag"}, []string{"bag"}},
		{"removed items ignored", []string{"cup", "bag"}, []string{"umbrella"}, []string{"umbrella"}},
		{"empty before", nil, []string{"wallet", "phone"}, []string{"wallet", "phone"}},
		{"empty after", []string{"wallet"}, nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindLostItems(tt.before, tt.after)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestPresenceStrategy(t *testing.T) {
	s := NewPresenceStrategy("person")

	v := s.Observe([]string{"seat_belt"})
	if v.PersonPresent || v.Alighted {
		t.Errorf("Expected empty cabin verdict, got %+v", v)
	}

	v = s.Observe([]string{"person", "bag"})
	if !v.PersonPresent || v.State != "occupied" {
		t.Errorf("Expected occupied verdict, got %+v", v)
	}

	// still occupied, snapshot must not change
	s.Observe([]string{"person", "bag", "phone"})

	v = s.Observe([]string{"seat_belt", "bag", "phone"})
	if !v.Alighted {
		t.Fatalf("Expected alighted verdict, got %+v", v)
	}
	if !reflect.DeepEqual(v.LostItems, []string{"bag", "phone"}) {
		t.Errorf("Expected [bag phone], got %v", v.LostItems)
	}

	v = s.Observe([]string{"seat_belt", "bag", "phone"})
	if v.Alighted || len(v.LostItems) != 0 {
		t.Errorf("Expected no second report, got %+v", v)
	}
}

func TestPresenceStrategy_Reset(t *testing.T) {
	s := NewPresenceStrategy("person")
	s.Observe([]string{"person"})
	s.Reset()

	if v := s.Observe([]string{"bag"}); v.Alighted {
		t.Errorf("Expected reset to forget the passenger, got %+v", v)
	}
}

func TestCabinSignalStrategy_FullRide(t *testing.T) {
	s := NewCabinSignalStrategy("person")

	s.Observe([]string{"cup"})
	if s.Status() != StatusBefore {
		t.Fatalf("Expected BEFORE, got %s", s.Status())
	}

	s.SetSignals(true, false)
	s.Observe([]string{"cup", "person"})
	if s.Status() != StatusDuring {
		t.Fatalf("Expected DURING after door opens, got %s", s.Status())
	}

	s.SetSignals(false, true)
	s.Observe([]string{"cup", "person", "bag"})
	if s.Status() != StatusAfter {
		t.Fatalf("Expected AFTER once seated with door closed, got %s", s.Status())
	}

	// door opens but passenger still seated
	s.SetSignals(true, true)
	if v := s.Observe([]string{"cup", "person", "bag"}); v.Alighted {
		t.Errorf("Expected no alighting while seated, got %+v", v)
	}

	s.SetSignals(true, false)
	v := s.Observe([]string{"cup", "bag"})
	if !v.Alighted {
		t.Fatalf("Expected alighted verdict, got %+v", v)
	}
	if !reflect.DeepEqual(v.LostItems, []string{"bag"}) {
		t.Errorf("Expected [bag], got %v", v.LostItems)
	}
	if s.Status() != StatusDuring {
		t.Errorf("Expected DURING after alighting, got %s", s.Status())
	}
}

func TestCabinSignalStrategy_DoorClosedWithoutBoarding(t *testing.T) {
	s := NewCabinSignalStrategy("person")
	s.SetSignals(true, false)
	s.Observe(nil)
	s.SetSignals(false, false)
	v := s.Observe([]string{"umbrella"})

	if v.State != string(StatusBefore) {
		t.Errorf("Expected return to BEFORE, got %s", v.State)
	}

	// the refreshed snapshot now includes the umbrella
	s.SetSignals(true, false)
	s.Observe(nil)
	s.SetSignals(false, true)
	s.Observe([]string{"person", "umbrella"})
	s.SetSignals(true, false)
	if v := s.Observe([]string{"umbrella"}); len(v.LostItems) != 0 {
		t.Errorf("Expected umbrella to be part of the snapshot, got %v", v.LostItems)
	}
}

func TestTracker(t *testing.T) {
	tracker := NewTracker(NewPresenceStrategy("person"), false)

	tracker.Observe([]string{})
	tracker.Observe([]string{"person"})
	if v := tracker.Observe([]string{"bag"}); len(v.LostItems) != 0 {
		t.Errorf("Expected no lost items while inactive, got %v", v.LostItems)
	}

	tracker.SetActive(true)
	tracker.Observe([]string{"person"})
	v := tracker.Observe([]string{"bag", "phone"})
	if !reflect.DeepEqual(v.LostItems, []string{"phone"}) {
		t.Errorf("Expected [phone], got %v", v.LostItems)
	}

	status := tracker.Status()
	if !status.Active || status.Strategy != PresenceStrategyName || status.Frames != 5 {
		t.Errorf("Unexpected status %+v", status)
	}
	if !reflect.DeepEqual(status.LastLostItems, []string{"phone"}) || status.LastLostAt.IsZero() {
		t.Errorf("Expected last lost items to be recorded, got %+v", status)
	}

	if tracker.SetSignals(true, true) {
		t.Error("Expected presence strategy to ignore signals")
	}

	tracker.SetStrategy(NewCabinSignalStrategy("person"))
	if !tracker.SetSignals(true, true) {
		t.Error("Expected cabin strategy to accept signals")
	}

	tracker.Reset()
	if status := tracker.Status(); status.LastLostItems != nil {
		t.Errorf("Expected reset to clear lost items, got %v", status.LastLostItems)
	}
}

func TestNew(t *testing.T) {
	for _, name := range []string{"", PresenceStrategyName, CabinStrategyName} {
		if _, err := New(name, "person"); err != nil {
			t.Errorf("Expected %q to build, got %v", name, err)
		}
	}
	if _, err := New("psychic", "person"); err == nil {
		t.Error("Expected unknown strategy to fail")
	}
}
