package mocks

import (
	"sync"

	"github.com/BulshitMan-BM/ntr-sub000/domain"
)

// RecordingObserver collects every event the state machine emits.
type RecordingObserver struct {
	mu     sync.Mutex
	events []domain.Event
}

func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{}
}

func (o *RecordingObserver) OnAuthEvent(e domain.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
}

// Events returns a snapshot of everything recorded so far.
func (o *RecordingObserver) Events() []domain.Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]domain.Event, len(o.events))
	copy(out, o.events)
	return out
}

// CountType returns how many events of the given type were recorded.
func (o *RecordingObserver) CountType(t domain.EventType) int {
	n := 0
	for _, e := range o.Events() {
		if e.Type == t {
			n++
		}
	}
	return n
}

// LastOfType returns the most recent event of the given type.
func (o *RecordingObserver) LastOfType(t domain.EventType) (domain.Event, bool) {
	events := o.Events()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == t {
			return events[i], true
		}
	}
	return domain.Event{}, false
}

// Reset discards everything recorded so far.
func (o *RecordingObserver) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = nil
}

// Compile-time interface compliance verification
var _ domain.Observer = (*RecordingObserver)(nil)
