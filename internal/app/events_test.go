package app

import (
	"testing"

	"github.com/raysh454/comply/internal/dispatch"
	"github.com/raysh454/comply/internal/model"
)

func TestEventHub_DeliversUntilResult(t *testing.T) {
	h := newEventHub(4)
	ch, cancel := h.subscribe("scan-1")
	other, cancelOther := h.subscribe("scan-2")
	defer cancelOther()

	h.publish(dispatch.Event{ScanID: "scan-1", Type: dispatch.EventStatus, Status: model.ScanScanning})
	h.publish(dispatch.Event{ScanID: "scan-1", Type: dispatch.EventResult, Status: model.ScanCompleted})

	var got []model.ScanStatus
	for ev := range ch {
		got = append(got, ev.Status)
	}
	if len(got) != 2 || got[0] != model.ScanScanning || got[1] != model.ScanCompleted {
		t.Fatalf("unexpected events: %v", got)
	}
	if n := h.subscriberCount("scan-1"); n != 0 {
		t.Fatalf("subscriber not released: %d", n)
	}

	select {
	case ev := <-other:
		t.Fatalf("unrelated subscriber received %+v", ev)
	default:
	}

	// cancelling after the result must not panic on a closed channel
	cancel()
}

func TestEventHub_DropsWhenSubscriberIsSlow(t *testing.T) {
	h := newEventHub(1)
	ch, cancel := h.subscribe("scan-1")
	defer cancel()

	for i := 0; i < 5; i++ {
		h.publish(dispatch.Event{ScanID: "scan-1", Type: dispatch.EventStatus, Status: model.ScanScanning})
	}
	if len(ch) != 1 {
		t.Fatalf("expected buffered events to be capped at 1, got %d", len(ch))
	}
}

func TestEventHub_CancelClosesChannel(t *testing.T) {
	h := newEventHub(0)
	ch, cancel := h.subscribe("scan-1")
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
}
