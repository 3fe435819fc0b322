// Package watch fans out stage transition events to live observers. The hub
// carries no business meaning: losing a subscriber or an event is not a
// correctness failure, the session store remains the source of truth.
package watch

import (
	"sync"
	"time"

	"mediflow/internal/diagnosis"
)

// Event is one observable session transition.
type Event struct {
	SessionID string                  `json:"sessionId"`
	Stage     diagnosis.Stage         `json:"stage,omitempty"`
	Status    diagnosis.StageStatus   `json:"status,omitempty"`
	Session   diagnosis.SessionStatus `json:"sessionStatus,omitempty"`
	Error     string                  `json:"error,omitempty"`
	Terminal  bool                    `json:"terminal,omitempty"`
	At        time.Time               `json:"at"`
}

type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers an observer for one session id. The returned cancel
// function must be called exactly once; after it returns the channel is
// closed.
func (h *Hub) Subscribe(sessionID string) (<-chan Event, func()) {
	ch := make(chan Event, 32)
	h.mu.Lock()
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[chan Event]struct{})
		h.subs[sessionID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.subs[sessionID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(h.subs, sessionID)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers ev to current subscribers. Slow subscribers whose buffer
// is full miss the event rather than blocking the pipeline.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[ev.SessionID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
