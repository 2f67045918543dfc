package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/inercia/spaceclient/internal/sse"
)

// openStream issues a GET for an event stream. The returned response
// has a 200 status; callers close its body.
func (c *Client) openStream(ctx context.Context, u string) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

// runSSE drives a queued call over its own event stream. The payload is
// posted to /queue/data when the server asks for it.
func (s *Submission) runSSE() {
	c := s.client
	q := url.Values{}
	q.Set("fn_index", strconv.Itoa(s.fnIndex))
	q.Set("session_hash", c.sessionHash)

	resp, err := c.openStream(s.ctx, joinURL(c.config.Root, "/queue/join")+"?"+q.Encode())
	if err != nil {
		if s.ctx.Err() == nil {
			s.logger.Warn("Event stream failed", "error", err)
		}
		return
	}
	defer resp.Body.Close()

	r := &sseResponder{s: s}
	err = sse.Read(resp.Body, func(data []byte) bool {
		var msg ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug("Ignoring malformed event", "error", err)
			return true
		}
		if msg.EventID != "" {
			s.setEventID(msg.EventID)
		}
		return !s.handle(msg, r)
	})
	if err != nil && s.ctx.Err() == nil {
		s.logger.Debug("Event stream ended", "error", err)
	}
}

type sseResponder struct {
	s *Submission
}

func (r *sseResponder) sendHash() error {
	// The sse join request already carries the session hash.
	return nil
}

func (r *sseResponder) sendData(eventID string) error {
	s := r.s
	payload := s.payload
	payload.EventID = eventID

	resp, err := s.client.postJSON(s.ctx, joinURL(s.client.config.Root, "/queue/data"), payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send data: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// runMultiplexed joins the queue with a POST and consumes this call's
// messages from the session-wide stream.
func (s *Submission) runMultiplexed() {
	c := s.client
	resp, err := c.postJSON(s.ctx, joinURL(c.config.Root, "/queue/join"), s.payload)
	if err != nil {
		if s.ctx.Err() == nil {
			s.logger.Warn("Queue join failed", "error", err)
		}
		return
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		s.finish(Status{Stage: StageError, Queue: true, Message: QueueFullMessage}, nil, false)
		return
	case resp.StatusCode != http.StatusOK:
		var detail struct {
			Error  string `json:"error"`
			Detail string `json:"detail"`
		}
		_ = json.Unmarshal(body, &detail)
		msg := detail.Error
		if msg == "" {
			msg = detail.Detail
		}
		if msg == "" {
			msg = BrokenConnectionMessage
		}
		s.finish(Status{Stage: StageError, Queue: true, Message: msg}, nil, false)
		return
	}

	var joined struct {
		EventID string `json:"event_id"`
	}
	if err := json.Unmarshal(body, &joined); err != nil || joined.EventID == "" {
		s.logger.Warn("Queue join returned no event id", "body", truncate(string(body), 200))
		return
	}
	s.setEventID(joined.EventID)

	mb := c.hub.register(joined.EventID)
	defer c.hub.unregister(joined.EventID)

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-mb.ready:
		}
		msgs, closed := mb.drain()
		for _, msg := range msgs {
			if s.handle(msg, nil) {
				return
			}
		}
		if closed {
			return
		}
	}
}
