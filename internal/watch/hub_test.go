package watch

import (
	"testing"
	"time"

	"mediflow/internal/diagnosis"
	"mediflow/internal/tester"
)

func TestHubDeliversToSessionSubscribers(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("s1")
	defer cancel()
	other, cancelOther := hub.Subscribe("s2")
	defer cancelOther()

	hub.Publish(Event{SessionID: "s1", Stage: diagnosis.StageTranslator, Status: diagnosis.StageProcessing})

	select {
	case ev := <-ch:
		tester.Eq(t, ev.Stage, diagnosis.StageTranslator)
		tester.False(t, ev.At.IsZero(), "publish stamps the event time")
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the event")
	}

	select {
	case ev := <-other:
		t.Fatalf("subscriber for another session received %+v", ev)
	default:
	}
}

func TestHubCancelClosesChannel(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("s1")
	cancel()
	cancel() // second call is a no-op

	_, open := <-ch
	tester.False(t, open, "channel closed after cancel")

	// Publishing after cancel must not panic or deliver.
	hub.Publish(Event{SessionID: "s1"})
}

func TestHubFullBufferDropsEvent(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("s1")
	defer cancel()

	for i := 0; i < 40; i++ {
		hub.Publish(Event{SessionID: "s1"})
	}
	// Buffer is 32; the rest were dropped without blocking.
	tester.Eq(t, len(ch), 32)
}
