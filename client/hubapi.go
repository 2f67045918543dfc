package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/inercia/spaceclient/internal/logging"
)

// HardwareTypes lists the hardware a duplicated space can request.
var HardwareTypes = []string{
	"cpu-basic",
	"cpu-upgrade",
	"t4-small",
	"t4-medium",
	"a10g-small",
	"a10g-large",
	"a100-large",
}

// DefaultSleepTime is how long a duplicated space stays up without traffic.
const DefaultSleepTime = 300 * time.Second

// ErrTokenRequired is returned by Duplicate when no token was given.
var ErrTokenRequired = errors.New("a token is required")

// hubError is a non-2xx answer from the hub.
type hubError struct {
	Status int
	Body   string
}

func (e *hubError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

// hubJSON sends a request to the hub and decodes the JSON answer into out,
// which may be nil.
func hubJSON(ctx context.Context, httpClient *http.Client, method, endpoint, token string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &hubError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// fetchSpaceJWT returns the token websocket joins of a private space are
// signed with. An empty token is not an error.
func fetchSpaceJWT(ctx context.Context, httpClient *http.Client, hubURL, spaceID, token string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := hubJSON(ctx, httpClient, http.MethodGet, joinURL(hubURL, "/api/spaces/"+spaceID+"/jwt"), token, nil, &out); err != nil {
		return "", fmt.Errorf("space token %s: %w", spaceID, err)
	}
	return out.Token, nil
}

// DuplicateOptions configures Duplicate.
type DuplicateOptions struct {
	// Private makes the copy private.
	Private bool
	// Hardware is one of HardwareTypes. Empty keeps the hardware of the
	// original space.
	Hardware string
	// SleepTime defaults to DefaultSleepTime.
	SleepTime time.Duration
}

// Duplicate copies the hosted space spaceID into the account of the
// token owner and connects to the copy. The copy keeps the space name;
// when it already exists Duplicate connects to it unchanged.
//
// opts must include WithToken. They are applied to the hub requests and
// to the returned client alike.
func Duplicate(ctx context.Context, spaceID string, dopts DuplicateOptions, opts ...Option) (*Client, error) {
	if dopts.Hardware != "" && !slices.Contains(HardwareTypes, dopts.Hardware) {
		return nil, fmt.Errorf("invalid hardware %q: valid types are %s", dopts.Hardware, strings.Join(HardwareTypes, ", "))
	}
	_, name, ok := strings.Cut(spaceID, "/")
	if !ok || name == "" || !spaceNamePattern.MatchString(spaceID) {
		return nil, fmt.Errorf("invalid space %q: want org/space", spaceID)
	}

	// Only the hub settings of the options matter here.
	hub := &Client{hubURL: DefaultHubURL, httpClient: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(hub)
	}
	if hub.token == "" {
		return nil, fmt.Errorf("duplicate %s: %w", spaceID, ErrTokenRequired)
	}
	log := hub.logger
	if log == nil {
		log = logging.Space()
	}
	log = log.With("space", spaceID)

	var who struct {
		Name string `json:"name"`
	}
	if err := hubJSON(ctx, hub.httpClient, http.MethodGet, joinURL(hub.hubURL, "/api/whoami-v2"), hub.token, nil, &who); err != nil {
		return nil, fmt.Errorf("duplicate %s: whoami: %w", spaceID, err)
	}
	if who.Name == "" {
		return nil, fmt.Errorf("duplicate %s: the token has no user name", spaceID)
	}
	target := who.Name + "/" + name

	body := map[string]any{"repository": target}
	if dopts.Private {
		body["private"] = true
	}
	err := hubJSON(ctx, hub.httpClient, http.MethodPost, joinURL(hub.hubURL, "/api/spaces/"+spaceID+"/duplicate"), hub.token, body, nil)
	var herr *hubError
	switch {
	case errors.As(err, &herr) && herr.Status == http.StatusConflict:
		log.Info("Space already duplicated", "copy", target)
		return Connect(ctx, target, opts...)
	case err != nil:
		return nil, fmt.Errorf("duplicate %s: %w", spaceID, err)
	}
	log.Info("Space duplicated", "copy", target)

	hardware := dopts.Hardware
	if hardware == "" {
		// Keep what the original runs on.
		if hardware, err = spaceHardware(ctx, hub.httpClient, hub.hubURL, spaceID, hub.token); err != nil {
			log.Warn("Could not read space hardware", "error", err)
		}
	}
	if hardware == "" {
		hardware = "cpu-basic"
	}
	if err := hubJSON(ctx, hub.httpClient, http.MethodPost, joinURL(hub.hubURL, "/api/spaces/"+target+"/hardware"), hub.token,
		map[string]string{"flavor": hardware}, nil); err != nil {
		return nil, fmt.Errorf("duplicate %s: set hardware %s: %w", spaceID, hardware, err)
	}

	sleep := dopts.SleepTime
	if sleep <= 0 {
		sleep = DefaultSleepTime
	}
	if err := hubJSON(ctx, hub.httpClient, http.MethodPost, joinURL(hub.hubURL, "/api/spaces/"+target+"/sleeptime"), hub.token,
		map[string]int{"seconds": int(sleep / time.Second)}, nil); err != nil {
		return nil, fmt.Errorf("duplicate %s: set sleep time: %w", spaceID, err)
	}

	return Connect(ctx, target, opts...)
}

// spaceHardware returns the hardware a space currently runs on.
func spaceHardware(ctx context.Context, httpClient *http.Client, hubURL, spaceID, token string) (string, error) {
	var runtime struct {
		Hardware struct {
			Current string `json:"current"`
		} `json:"hardware"`
	}
	if err := hubJSON(ctx, httpClient, http.MethodGet, joinURL(hubURL, "/api/spaces/"+spaceID+"/runtime"), token, nil, &runtime); err != nil {
		return "", err
	}
	return runtime.Hardware.Current, nil
}
