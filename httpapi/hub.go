package httpapi

import (
	"context"
	"sync"
	"time"

	"pkt.systems/shotpdf/internal/logx"
	"pkt.systems/shotpdf/schema"
)

// StreamEvent is sent to SSE clients.
type StreamEvent struct {
	Seq       uint64              `json:"seq"`
	Type      string              `json:"type"`
	State     *schema.StateEvent  `json:"state,omitempty"`
	Session   *schema.SessionInfo `json:"session,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

const (
	streamSnapshot = "snapshot"
	streamState    = "state"
)

// Hub broadcasts state events per capture session.
type Hub struct {
	mu          sync.Mutex
	sessions    map[schema.SessionID]*sessionHub
	historySize int
}

// NewHub constructs a hub with the given history size.
func NewHub(historySize int) *Hub {
	if historySize <= 0 {
		historySize = 64
	}
	return &Hub{
		sessions:    make(map[schema.SessionID]*sessionHub),
		historySize: historySize,
	}
}

// OnStateChange implements core.EventSink.
func (h *Hub) OnStateChange(event schema.StateEvent) {
	log := logx.WithSession(logx.Ctx(context.Background()), event.SessionID)
	log.Trace("hub state event", "from", event.Previous, "to", event.State)
	h.publish(event.SessionID, StreamEvent{
		Type:      streamState,
		State:     &event,
		Timestamp: event.Timestamp,
	})
}

// Subscribe registers a subscriber for a session. The returned channel is
// closed by the unsubscribe func or when the session is removed.
func (h *Hub) Subscribe(id schema.SessionID) (<-chan StreamEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sh := h.getOrCreateLocked(id)
	ch := make(chan StreamEvent, 64)
	sh.subs[ch] = struct{}{}
	log := logx.WithSession(logx.Ctx(context.Background()), id)
	log.Info("hub subscribe", "subs", len(sh.subs), "history", len(sh.history))
	unsub := func() {
		h.mu.Lock()
		if _, ok := sh.subs[ch]; ok {
			delete(sh.subs, ch)
			close(ch)
		}
		remaining := len(sh.subs)
		h.mu.Unlock()
		log.Info("hub unsubscribe", "subs", remaining)
	}
	return ch, unsub
}

// Replay returns events after the provided seq.
func (h *Hub) Replay(id schema.SessionID, after uint64) []StreamEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	sh := h.sessions[id]
	if sh == nil {
		return nil
	}
	events := make([]StreamEvent, 0, len(sh.history))
	for _, event := range sh.history {
		if event.Seq > after {
			events = append(events, event)
		}
	}
	logx.WithSession(logx.Ctx(context.Background()), id).Debug("hub replay", "after", after, "count", len(events))
	return events
}

// Seq returns the last sequence number published for a session.
func (h *Hub) Seq(id schema.SessionID) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sh := h.sessions[id]; sh != nil {
		return sh.seq
	}
	return 0
}

// Remove drops a session's history and closes its subscribers.
func (h *Hub) Remove(id schema.SessionID) {
	h.mu.Lock()
	sh := h.sessions[id]
	delete(h.sessions, id)
	closed := 0
	if sh != nil {
		for ch := range sh.subs {
			delete(sh.subs, ch)
			close(ch)
			closed++
		}
	}
	h.mu.Unlock()
	if sh != nil {
		logx.WithSession(logx.Ctx(context.Background()), id).Debug("hub session removed", "subs", closed)
	}
}

func (h *Hub) publish(id schema.SessionID, event StreamEvent) {
	h.mu.Lock()
	sh := h.getOrCreateLocked(id)
	sh.seq++
	event.Seq = sh.seq
	sh.history = append(sh.history, event)
	if len(sh.history) > h.historySize {
		sh.history = sh.history[len(sh.history)-h.historySize:]
	}
	dropped := 0
	for sub := range sh.subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	h.mu.Unlock()

	if dropped > 0 {
		logx.WithSession(logx.Ctx(context.Background()), id).Warn("hub event dropped", "type", event.Type, "dropped", dropped)
	}
}

func (h *Hub) getOrCreateLocked(id schema.SessionID) *sessionHub {
	sh := h.sessions[id]
	if sh == nil {
		sh = &sessionHub{
			subs: make(map[chan StreamEvent]struct{}),
		}
		h.sessions[id] = sh
	}
	return sh
}

type sessionHub struct {
	seq     uint64
	history []StreamEvent
	subs    map[chan StreamEvent]struct{}
}
