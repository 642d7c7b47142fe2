package observer

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type countingObserver struct {
	name string
	mu   sync.Mutex
	seen []EventType
	wg   *sync.WaitGroup
}

func (o *countingObserver) OnEvent(ctx context.Context, event DetectionEvent) {
	o.mu.Lock()
	o.seen = append(o.seen, event.EventType)
	o.mu.Unlock()
	o.wg.Done()
}

func (o *countingObserver) GetObserverName() string {
	return o.name
}

func TestMetricsObserver(t *testing.T) {
	m := NewMetricsObserver()
	ctx := context.Background()

	m.OnEvent(ctx, DetectionEvent{EventType: FrameAccepted})
	m.OnEvent(ctx, DetectionEvent{EventType: FrameAccepted})
	m.OnEvent(ctx, DetectionEvent{EventType: FrameDropped})
	m.OnEvent(ctx, DetectionEvent{EventType: DetectionCompleted, Detections: 3, InferenceTime: 40 * time.Millisecond})
	m.OnEvent(ctx, DetectionEvent{EventType: DetectionCompleted, Detections: 1, InferenceTime: 20 * time.Millisecond})
	m.OnEvent(ctx, DetectionEvent{EventType: EngineInitFailed})
	m.OnEvent(ctx, DetectionEvent{EventType: LostItemsFound})

	metrics := m.GetMetrics()
	checks := map[string]int64{
		"frames_accepted":       2,
		"frames_dropped":        1,
		"successful_detections": 2,
		"engine_init_failures":  1,
		"lost_item_events":      1,
		"objects_detected":      4,
		"avg_inference_time_ms": 30,
	}
	for key, want := range checks {
		if got := metrics[key].(int64); got != want {
			t.Errorf("Expected %s to be %d, got %d", key, want, got)
		}
	}
}

func TestEventPublisher_Notify(t *testing.T) {
	publisher := NewEventPublisher()
	var wg sync.WaitGroup
	a := &countingObserver{name: "a", wg: &wg}
	b := &countingObserver{name: "b", wg: &wg}
	publisher.Subscribe(a)
	publisher.Subscribe(b)

	wg.Add(2)
	publisher.NotifyObservers(context.Background(), DetectionEvent{EventType: DetectionCompleted})
	wg.Wait()

	publisher.Unsubscribe(a)
	wg.Add(1)
	publisher.NotifyObservers(context.Background(), DetectionEvent{EventType: FrameDropped})
	wg.Wait()

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.seen) != 1 {
		t.Errorf("Expected unsubscribed observer to see 1 event, got %d", len(a.seen))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.seen) != 2 {
		t.Errorf("Expected subscribed observer to see 2 events, got %d", len(b.seen))
	}
}

func TestLoggingObserver(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	NewLoggingObserver(log).OnEvent(context.Background(), DetectionEvent{
		EventType:    LostItemsFound,
		Labels:       []string{"bag"},
		ErrorMessage: "",
	})

	out := buf.String()
	if !strings.Contains(out, "Lost items found") || !strings.Contains(out, "\"bag\"") {
		t.Errorf("Expected lost items log entry, got %s", out)
	}
}
