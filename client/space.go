package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultSpacePollInterval is the delay between status checks of a hosted
// space that is waking up or building.
const DefaultSpacePollInterval = time.Second

// SpaceState is the coarse state of a hosted space.
type SpaceState string

const (
	SpaceSleeping SpaceState = "sleeping"
	SpaceBuilding SpaceState = "building"
	SpaceRunning  SpaceState = "running"
	SpacePaused   SpaceState = "paused"
	// SpaceError means the hosting service reports a problem with the space.
	SpaceError SpaceState = "space_error"
	// SpaceUnavailable means the space or its status could not be found.
	SpaceUnavailable SpaceState = "error"
)

// LoadStatus tells whether loading the app can still succeed.
type LoadStatus string

const (
	LoadPending  LoadStatus = "pending"
	LoadComplete LoadStatus = "complete"
	LoadError    LoadStatus = "error"
)

// SpaceStatus is reported to the status callback while connecting.
type SpaceStatus struct {
	Status     SpaceState `json:"status"`
	LoadStatus LoadStatus `json:"load_status"`
	Message    string     `json:"message"`
	// Detail is the runtime stage reported by the hub, or NOT_FOUND.
	Detail             string `json:"detail,omitempty"`
	DiscussionsEnabled bool   `json:"discussions_enabled,omitempty"`
}

var (
	reDiscussions = regexp.MustCompile(`\b[dD]iscussions?\b`)
	reDisabled    = regexp.MustCompile(`\b[dD]isabled\b`)
)

// CheckSpaceStatus asks the hub for the runtime state of a space. id is an
// "org/space" name or a space subdomain.
func (c *Client) CheckSpaceStatus(ctx context.Context, id string) SpaceStatus {
	return checkSpaceStatus(ctx, c.httpClient, c.hubURL, id, c.token)
}

// SpaceStatusOf is CheckSpaceStatus without a connected client. A nil
// httpClient means http.DefaultClient.
func SpaceStatusOf(ctx context.Context, httpClient *http.Client, hubURL, id, token string) SpaceStatus {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return checkSpaceStatus(ctx, httpClient, strings.TrimRight(hubURL, "/"), id, token)
}

func checkSpaceStatus(ctx context.Context, httpClient *http.Client, hubURL, id, token string) SpaceStatus {
	endpoint := joinURL(hubURL, "/api/spaces/by-subdomain/"+id)
	if spaceNamePattern.MatchString(id) {
		endpoint = joinURL(hubURL, "/api/spaces/"+id)
	}
	notFound := SpaceStatus{
		Status:     SpaceUnavailable,
		LoadStatus: LoadError,
		Message:    "Could not get space status",
		Detail:     "NOT_FOUND",
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return notFound
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return notFound
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return notFound
	}

	var info struct {
		ID      string `json:"id"`
		Runtime struct {
			Stage string `json:"stage"`
		} `json:"runtime"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return notFound
	}

	stage := info.Runtime.Stage
	switch stage {
	case "STOPPED", "SLEEPING":
		return SpaceStatus{Status: SpaceSleeping, LoadStatus: LoadPending, Message: "Space is asleep. Waking it up...", Detail: stage}
	case "RUNNING", "RUNNING_BUILDING":
		return SpaceStatus{Status: SpaceRunning, LoadStatus: LoadComplete, Detail: stage}
	case "BUILDING":
		return SpaceStatus{Status: SpaceBuilding, LoadStatus: LoadPending, Message: "Space is building...", Detail: stage}
	case "PAUSED":
		return SpaceStatus{
			Status:             SpacePaused,
			LoadStatus:         LoadError,
			Message:            "This space has been paused by the author. If you would like to try this demo, consider duplicating the space.",
			Detail:             stage,
			DiscussionsEnabled: discussionsEnabled(ctx, httpClient, hubURL, info.ID),
		}
	}
	return SpaceStatus{
		Status:             SpaceError,
		LoadStatus:         LoadError,
		Message:            "This space is experiencing an issue.",
		Detail:             stage,
		DiscussionsEnabled: discussionsEnabled(ctx, httpClient, hubURL, info.ID),
	}
}

// discussionsEnabled reports whether the space accepts discussions, so a
// failing space can point users there.
func discussionsEnabled(ctx context.Context, httpClient *http.Client, hubURL, spaceName string) bool {
	if spaceName == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, joinURL(hubURL, "/api/spaces/"+spaceName+"/discussions"), nil)
	if err != nil {
		return false
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	msg := resp.Header.Get("X-Error-Message")
	return !(reDiscussions.MatchString(msg) && reDisabled.MatchString(msg))
}

// awaitSpace polls the hub until the space runs, then fetches its config.
// Every observed state is reported to the status callback.
func (c *Client) awaitSpace(ctx context.Context, ref AppRef) (*Config, error) {
	log := c.spaceLog.With("space", ref.SpaceID)
	limiter := rate.NewLimiter(rate.Every(c.pollInterval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for space %s: %w", ref.SpaceID, err)
		}
		st := c.CheckSpaceStatus(ctx, ref.SpaceID)
		log.Debug("Space status", "status", st.Status, "detail", st.Detail)
		c.reportStatus(st)

		switch st.Status {
		case SpaceSleeping, SpaceBuilding:
			continue
		case SpaceRunning:
			cfg, err := ResolveConfig(ctx, c.httpClient, ref.Endpoint, c.token, nil)
			if err != nil {
				c.reportStatus(SpaceStatus{
					Status:     SpaceUnavailable,
					LoadStatus: LoadError,
					Message:    "Could not load this space.",
					Detail:     "NOT_FOUND",
				})
				return nil, err
			}
			return cfg, nil
		}
		return nil, &ConfigError{Detail: st.Message}
	}
}

func (c *Client) reportStatus(st SpaceStatus) {
	if c.statusCallback != nil {
		c.statusCallback(st)
	}
}
