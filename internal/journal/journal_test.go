package journal

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
)

func TestJournalOrdersEvents(t *testing.T) {
	j := New()
	j.Emit(KindLockOpened, LockPayload{Locker: "0x01"})
	j.Emit(KindSettled, SettledPayload{Account: "0x01", Currency: "0x02", Paid: "1000"})
	j.Emit(KindLockClosed, LockPayload{Locker: "0x01"})

	events := j.Events()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, event := range events {
		if event.Seq != uint64(i+1) {
			t.Fatalf("event %d has seq %d", i, event.Seq)
		}
	}
	if events[1].Kind != KindSettled {
		t.Fatalf("unexpected kind: %s", events[1].Kind)
	}
}

func TestJsonlRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal", "run.jsonl")
	sink := NewJsonlSink(path)

	j := New()
	j.Emit(KindLockOpened, LockPayload{Locker: "0xrouter"})
	j.Emit(KindDeltaPosted, DeltaPostedPayload{
		App:       "0xapp",
		Account:   "0xrouter",
		Currency0: "0xc0",
		Currency1: "0xc1",
		Amount0:   "-1000000000000000000",
		Amount1:   "1994000000000000000000",
	})
	j.Emit(KindLockClosed, LockPayload{Locker: "0xrouter"})

	if err := j.Flush(sink); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got := j.Events(); len(got) != 0 {
		t.Fatalf("flush should drain the buffer, %d events left", len(got))
	}

	records, err := ReadJsonl(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].Kind != KindLockOpened || records[2].Kind != KindLockClosed {
		t.Fatalf("kinds out of order: %s, %s", records[0].Kind, records[2].Kind)
	}

	var posted DeltaPostedPayload
	if err := json.Unmarshal(records[1].Payload, &posted); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if posted.Amount0 != "-1000000000000000000" || posted.Amount1 != "1994000000000000000000" {
		t.Fatalf("amounts did not survive the round trip: %s, %s", posted.Amount0, posted.Amount1)
	}

	// a second flush appends rather than truncating
	j.Emit(KindLockReverted, LockPayload{Locker: "0xrouter", Reason: "callback failed"})
	if err := j.Flush(sink); err != nil {
		t.Fatalf("second flush: %v", err)
	}
	records, err = ReadJsonl(path)
	if err != nil {
		t.Fatalf("re-read: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected 4 records after append, got %d", len(records))
	}
	if records[3].Kind != KindLockReverted {
		t.Fatalf("unexpected appended kind: %s", records[3].Kind)
	}
}

type failingSink struct{ err error }

func (s failingSink) PutEvents([]Event) error { return s.err }

func TestFlushKeepsEventsOnSinkError(t *testing.T) {
	j := New()
	j.Emit(KindSynced, SyncedPayload{Currency: "0xc0", Balance: "0"})

	sinkErr := errors.New("sink down")
	if err := j.Flush(failingSink{err: sinkErr}); !errors.Is(err, sinkErr) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if got := j.Events(); len(got) != 1 {
		t.Fatalf("failed flush should keep events, got %d", len(got))
	}
}
