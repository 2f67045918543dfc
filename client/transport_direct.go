package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// runDirect posts the payload to /run/{api_name} and waits for the
// complete response. Used for dependencies that skip the queue.
func (s *Submission) runDirect() {
	c := s.client
	name := "predict"
	if s.apiName != "" {
		name = trimName(s.apiName)
	}
	s.setState(StateRunning)

	resp, err := c.postJSON(s.ctx, joinURL(c.config.Root, "/run/"+name), s.payload)
	if err != nil {
		if s.ctx.Err() == nil {
			s.logger.Warn("Direct call failed", "error", err)
			s.finish(Status{Stage: StageError, Message: BrokenConnectionMessage}, nil, false)
		}
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if s.ctx.Err() == nil {
			s.finish(Status{Stage: StageError, Message: BrokenConnectionMessage}, nil, false)
		}
		return
	}

	var out Output
	decodeErr := json.Unmarshal(body, &out)
	if resp.StatusCode == http.StatusOK && decodeErr == nil {
		success := true
		s.finish(Status{
			Stage:   StageComplete,
			ETA:     out.AverageDuration,
			Success: &success,
		}, out.Data, true)
		return
	}

	msg := out.Error
	switch {
	case msg != "":
	case resp.StatusCode == http.StatusOK:
		msg = fmt.Sprintf("decode response: %v", decodeErr)
	case decodeErr != nil && len(bytes.TrimSpace(body)) > 0:
		msg = truncate(strings.TrimSpace(string(body)), 512)
	default:
		msg = http.StatusText(resp.StatusCode)
	}
	s.logger.Debug("Direct call rejected", "status", resp.StatusCode, "message", msg)
	s.finish(Status{Stage: StageError, Message: msg}, nil, false)
}

// newRequest builds a request against the app, authorized with the
// client token when one is set. body is encoded as JSON unless nil.
func (c *Client) newRequest(ctx context.Context, method, url string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) postJSON(ctx context.Context, url string, body any) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	return c.httpClient.Do(req)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
