package journal

import (
	"sync"
	"time"
)

// Sink receives batches of journal events.
type Sink interface {
	PutEvents(events []Event) error
}

// Journal records settlement events in order. Events are observability
// output, not transactional state: entries from a reverted lock session stay
// in the journal, terminated by a lock_reverted marker.
type Journal struct {
	mu     sync.Mutex
	seq    uint64
	events []Event
}

func New() *Journal {
	return &Journal{}
}

// Emit appends an event of the given kind.
func (j *Journal) Emit(kind Kind, payload interface{}) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.seq++
	j.events = append(j.events, Event{
		Seq:     j.seq,
		Kind:    kind,
		At:      time.Now().UTC().Format(time.RFC3339Nano),
		Payload: payload,
	})
}

// Events returns a copy of all recorded events.
func (j *Journal) Events() []Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Event, len(j.events))
	copy(out, j.events)
	return out
}

// Flush writes all recorded events to the sink and clears the buffer.
func (j *Journal) Flush(sink Sink) error {
	j.mu.Lock()
	batch := j.events
	j.events = nil
	j.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if err := sink.PutEvents(batch); err != nil {
		j.mu.Lock()
		j.events = append(batch, j.events...)
		j.mu.Unlock()
		return err
	}
	return nil
}
