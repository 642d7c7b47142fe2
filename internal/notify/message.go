package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MessageType identifies what a message reports
type MessageType string

const (
	// LabelsMessage carries the labels detected in one frame
	LabelsMessage MessageType = "labels"
	// LostItemsMessage reports items left behind by a passenger
	LostItemsMessage MessageType = "lost_items"
)

// Message is published to subscribers after a frame is processed
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	FrameID   string      `json:"frame_id,omitempty"`
	Labels    []string    `json:"labels"`
	Text      string      `json:"text"`
	Timestamp time.Time   `json:"timestamp"`
}

// Notifier delivers messages to one kind of subscriber
type Notifier interface {
	Publish(ctx context.Context, msg Message) error
	Name() string
	Close() error
}

// JoinLabels renders labels as "a/b/" and falls back to noLabel when there
// are none
func JoinLabels(labels []string, noLabel string) string {
	if len(labels) == 0 {
		return noLabel
	}
	var b strings.Builder
	for _, l := range labels {
		b.WriteString(l)
		b.WriteByte('/')
	}
	return b.String()
}

// NewLabelsMessage builds the per-frame labels message
func NewLabelsMessage(frameID string, labels []string, noLabel string) Message {
	return Message{
		ID:        uuid.NewString(),
		Type:      LabelsMessage,
		FrameID:   frameID,
		Labels:    labels,
		Text:      JoinLabels(labels, noLabel),
		Timestamp: time.Now(),
	}
}

// NewLostItemsMessage builds a lost items report. Text lists the items
// separated by spaces.
func NewLostItemsMessage(frameID string, items []string) Message {
	return Message{
		ID:        uuid.NewString(),
		Type:      LostItemsMessage,
		FrameID:   frameID,
		Labels:    items,
		Text:      strings.Join(items, " "),
		Timestamp: time.Now(),
	}
}

// Multi fans a message out to every notifier. Failures do not stop delivery
// to the remaining notifiers; all errors are returned joined.
type Multi struct {
	notifiers []Notifier
}

// NewMulti combines notifiers
func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

// Add appends a notifier
func (m *Multi) Add(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Len returns the number of combined notifiers
func (m *Multi) Len() int {
	return len(m.notifiers)
}

// Publish delivers msg to every notifier
func (m *Multi) Publish(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Publish(ctx, msg); err != nil {
			errs = append(errs, &PublishError{Notifier: n.Name(), Err: err})
		}
	}
	return errors.Join(errs...)
}

// Name returns the notifier name
func (m *Multi) Name() string {
	return "multi"
}

// Close closes every notifier
func (m *Multi) Close() error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Close(); err != nil {
			errs = append(errs, &PublishError{Notifier: n.Name(), Err: err})
		}
	}
	return errors.Join(errs...)
}

// PublishError records which notifier failed
type PublishError struct {
	Notifier string
	Err      error
}

func (e *PublishError) Error() string {
	return e.Notifier + ": " + e.Err.Error()
}

func (e *PublishError) Unwrap() error {
	return e.Err
}
