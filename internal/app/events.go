package app

import (
	"sync"

	"github.com/raysh454/comply/internal/dispatch"
)

// eventHub fans scan events out to per-scan subscribers. A subscriber's
// channel is closed after the scan's result event or on cancel.
type eventHub struct {
	buffer int

	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

type subscriber struct {
	ch     chan dispatch.Event
	closed bool
}

func newEventHub(buffer int) *eventHub {
	if buffer <= 0 {
		buffer = 16
	}
	return &eventHub{
		buffer: buffer,
		subs:   make(map[string]map[*subscriber]struct{}),
	}
}

func (h *eventHub) subscribe(scanID string) (<-chan dispatch.Event, func()) {
	s := &subscriber{ch: make(chan dispatch.Event, h.buffer)}

	h.mu.Lock()
	if h.subs[scanID] == nil {
		h.subs[scanID] = make(map[*subscriber]struct{})
	}
	h.subs[scanID][s] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.remove(scanID, s)
	}
	return s.ch, cancel
}

// publish never blocks; events for a slow subscriber are dropped.
func (h *eventHub) publish(ev dispatch.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subs[ev.ScanID] {
		select {
		case s.ch <- ev:
		default:
		}
		if ev.Type == dispatch.EventResult {
			h.remove(ev.ScanID, s)
		}
	}
}

// remove must be called with mu held.
func (h *eventHub) remove(scanID string, s *subscriber) {
	set := h.subs[scanID]
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, scanID)
	}
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

func (h *eventHub) subscriberCount(scanID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[scanID])
}
