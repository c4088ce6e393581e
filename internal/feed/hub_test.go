package feed

import (
	"testing"

	"github.com/hikmah-systems/isnad/internal/trust"
)

func TestHub_PublishDelivers(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe()
	defer sub.Close()

	e := trust.Event{AgentID: "a", Score: 42, Tier: "trusted", Trigger: "vouch"}
	h.Publish(e)

	select {
	case got := <-sub.C:
		if got != e {
			t.Errorf("got %+v, want %+v", got, e)
		}
	default:
		t.Fatal("no event delivered")
	}
}

func TestHub_MultipleSubscribers(t *testing.T) {
	h := NewHub()
	a := h.Subscribe()
	b := h.Subscribe()
	defer a.Close()
	defer b.Close()

	if h.SubscriberCount() != 2 {
		t.Fatalf("SubscriberCount = %d, want 2", h.SubscriberCount())
	}

	h.Publish(trust.Event{AgentID: "x"})
	if len(a.C) != 1 || len(b.C) != 1 {
		t.Errorf("queued events = %d and %d, want 1 each", len(a.C), len(b.C))
	}
}

func TestHub_CloseStopsDelivery(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe()
	sub.Close()

	if h.SubscriberCount() != 0 {
		t.Fatalf("SubscriberCount = %d after close, want 0", h.SubscriberCount())
	}
	h.Publish(trust.Event{AgentID: "x"})
	if len(sub.C) != 0 {
		t.Errorf("closed subscription received %d events, want 0", len(sub.C))
	}
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe()
	defer sub.Close()

	// Overfill the buffer; Publish must never block.
	for i := 0; i < subscriberBuffer+10; i++ {
		h.Publish(trust.Event{AgentID: "a", Score: i})
	}
	if len(sub.C) != subscriberBuffer {
		t.Errorf("queued events = %d, want %d", len(sub.C), subscriberBuffer)
	}
}
