package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// runWebSocket drives a queued call over ws(s)://{root}/queue/join.
// The server asks for the session hash and then the payload.
func (s *Submission) runWebSocket() {
	c := s.client
	u, err := websocketURL(c.config.Root, "/queue/join")
	if err == nil && c.jwt != "" {
		u, err = signURL(u, c.jwt)
	}
	if err != nil {
		s.finish(Status{Stage: StageError, Queue: true, Message: err.Error()}, nil, false)
		return
	}

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := c.dialer.DialContext(s.ctx, u, header)
	if err != nil {
		if s.ctx.Err() == nil {
			s.logger.Warn("WebSocket connect failed", "url", u, "error", err)
		}
		return
	}
	defer conn.Close()
	stop := context.AfterFunc(s.ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	c.transportLog.Debug("WebSocket connected", "call_id", s.id, "url", u)
	r := &wsResponder{conn: conn, s: s}
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() == nil {
				s.logger.Debug("WebSocket closed", "error", err,
					"clean", websocket.IsCloseError(err, websocket.CloseNormalClosure))
			}
			return
		}
		var msg ServerMessage
		if err := json.Unmarshal(frame, &msg); err != nil {
			s.logger.Debug("Ignoring malformed frame", "error", err)
			continue
		}
		if s.handle(msg, r) {
			return
		}
	}
}

type wsResponder struct {
	conn *websocket.Conn
	s    *Submission
}

func (r *wsResponder) sendHash() error {
	return r.conn.WriteJSON(struct {
		FnIndex     int    `json:"fn_index"`
		SessionHash string `json:"session_hash"`
	}{r.s.fnIndex, r.s.payload.SessionHash})
}

func (r *wsResponder) sendData(string) error {
	return r.conn.WriteJSON(r.s.payload)
}

// websocketURL converts an http(s) root into the ws(s) URL of path.
func websocketURL(root, path string) (string, error) {
	u, err := url.Parse(joinURL(root, path))
	if err != nil {
		return "", fmt.Errorf("parse root %q: %w", root, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported root scheme %q", u.Scheme)
	}
	u.Path = strings.ReplaceAll(u.Path, "//", "/")
	return u.String(), nil
}

// signURL adds the space token as the __sign query parameter.
func signURL(raw, jwt string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("__sign", jwt)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
