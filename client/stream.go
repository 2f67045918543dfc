package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"sync"

	"github.com/inercia/spaceclient/internal/sse"
)

// Limits on messages buffered for event ids no call has claimed yet.
const (
	maxUnclaimed    = 256
	maxUnclaimedIDs = 64
	// maxFinished is how many ended event ids are remembered, so late
	// messages for them are dropped instead of buffered.
	maxFinished = 1024
)

// streamHub owns the session-wide event stream of the multiplexed
// protocols and routes its messages to calls by event id.
type streamHub struct {
	client *Client
	logger *slog.Logger

	mu     sync.Mutex
	routes map[string]*mailbox
	// unclaimed holds messages that arrived before their call registered.
	unclaimed map[string][]ServerMessage
	// finished holds the ids of calls that unregistered, oldest first in
	// finishedOrder.
	finished      map[string]struct{}
	finishedOrder []string
	gen           uint64
	cancel        context.CancelFunc
	closed        bool
}

func newStreamHub(c *Client) *streamHub {
	return &streamHub{
		client:    c,
		logger:    c.transportLog,
		routes:    make(map[string]*mailbox),
		unclaimed: make(map[string][]ServerMessage),
		finished:  make(map[string]struct{}),
	}
}

// register returns the mailbox for eventID, opening the stream if needed.
func (h *streamHub) register(eventID string) *mailbox {
	h.mu.Lock()
	defer h.mu.Unlock()

	mb := newMailbox()
	if h.closed {
		mb.close()
		return mb
	}
	if h.cancel == nil {
		h.gen++
		ctx, cancel := context.WithCancel(context.Background())
		h.cancel = cancel
		go h.run(ctx, h.gen)
	}
	mb.gen = h.gen
	delete(h.finished, eventID)
	if pending := h.unclaimed[eventID]; len(pending) > 0 {
		mb.push(pending...)
		delete(h.unclaimed, eventID)
	}
	h.routes[eventID] = mb
	return mb
}

// unregister drops eventID and closes the stream once no call is pending.
func (h *streamHub) unregister(eventID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.routes, eventID)
	delete(h.unclaimed, eventID)
	h.markFinished(eventID)
	if len(h.routes) == 0 && h.cancel != nil {
		h.logger.Debug("Closing idle event stream")
		h.cancel()
		h.cancel = nil
	}
}

// markFinished remembers eventID, forgetting the oldest id past
// maxFinished. Callers hold h.mu.
func (h *streamHub) markFinished(eventID string) {
	if eventID == "" {
		return
	}
	if _, ok := h.finished[eventID]; ok {
		return
	}
	h.finished[eventID] = struct{}{}
	h.finishedOrder = append(h.finishedOrder, eventID)
	if len(h.finishedOrder) > maxFinished {
		oldest := h.finishedOrder[0]
		h.finishedOrder = h.finishedOrder[1:]
		delete(h.finished, oldest)
	}
}

func (h *streamHub) close() {
	h.mu.Lock()
	h.closed = true
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	routes := h.routes
	h.routes = make(map[string]*mailbox)
	h.mu.Unlock()

	for _, mb := range routes {
		mb.close()
	}
}

func (h *streamHub) run(ctx context.Context, gen uint64) {
	defer h.detach(gen)

	c := h.client
	u := joinURL(c.config.Root, "/queue/data") + "?" + url.Values{"session_hash": {c.sessionHash}}.Encode()
	resp, err := c.openStream(ctx, u)
	if err != nil {
		if ctx.Err() == nil {
			h.logger.Warn("Event stream failed", "error", err)
		}
		return
	}
	defer resp.Body.Close()
	h.logger.Debug("Event stream opened", "session_hash", c.sessionHash)

	err = sse.Read(resp.Body, func(data []byte) bool {
		var msg ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("Ignoring malformed event", "error", err)
			return true
		}
		switch {
		case msg.Msg == MsgHeartbeat:
			return true
		case msg.Msg == MsgCloseStream:
			h.logger.Debug("Server closed the event stream")
			return false
		case msg.EventID == "" && msg.Msg == MsgUnexpectedError:
			h.broadcast(msg)
			return true
		}
		h.route(msg)
		return true
	})
	if err != nil && ctx.Err() == nil {
		h.logger.Debug("Event stream ended", "error", err)
	}
}

func (h *streamHub) route(msg ServerMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if mb, ok := h.routes[msg.EventID]; ok {
		mb.push(msg)
		return
	}
	if _, ok := h.finished[msg.EventID]; ok {
		// Late message for a call that was cancelled or already ended.
		return
	}
	pending, known := h.unclaimed[msg.EventID]
	if !known && len(h.unclaimed) >= maxUnclaimedIDs {
		h.logger.Debug("Dropping message for unknown event", "event_id", msg.EventID, "msg", msg.Msg)
		return
	}
	if len(pending) < maxUnclaimed {
		h.unclaimed[msg.EventID] = append(pending, msg)
	}
}

func (h *streamHub) broadcast(msg ServerMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, mb := range h.routes {
		mb.push(msg)
	}
}

// detach closes the mailboxes served by stream generation gen. Calls that
// register afterwards open a new stream.
func (h *streamHub) detach(gen uint64) {
	h.mu.Lock()
	if h.gen == gen && h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	var orphans []*mailbox
	for id, mb := range h.routes {
		if mb.gen == gen {
			orphans = append(orphans, mb)
			delete(h.routes, id)
		}
	}
	h.mu.Unlock()

	for _, mb := range orphans {
		mb.close()
	}
}

// mailbox is an unbounded queue of messages for one call.
type mailbox struct {
	gen   uint64
	ready chan struct{}

	mu     sync.Mutex
	msgs   []ServerMessage
	closed bool
}

func newMailbox() *mailbox {
	return &mailbox{ready: make(chan struct{}, 1)}
}

func (m *mailbox) push(msgs ...ServerMessage) {
	m.mu.Lock()
	if !m.closed {
		m.msgs = append(m.msgs, msgs...)
	}
	m.mu.Unlock()
	m.signal()
}

func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.signal()
}

// drain returns the queued messages and whether the mailbox is closed.
func (m *mailbox) drain() ([]ServerMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.msgs
	m.msgs = nil
	return msgs, m.closed
}

func (m *mailbox) signal() {
	select {
	case m.ready <- struct{}{}:
	default:
	}
}
