package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/inercia/spaceclient/internal/logging"
)

// ErrClosed is reported by calls submitted after Close, and by Predict
// when Close destroys its call.
var ErrClosed = errors.New("client closed")

// resetTimeout bounds the background request that cancels a call on the server.
const resetTimeout = 10 * time.Second

// Client is a connection to one app. It is safe for concurrent use.
type Client struct {
	ref            AppRef
	config         *Config
	apiMap         map[string]int
	sessionHash    string
	token          string
	jwt            string
	hubURL         string
	apiInfoURL     string
	httpClient     *http.Client
	streamClient   *http.Client
	dialer         *websocket.Dialer
	embedded       *EmbeddedConfig
	uploader       Uploader
	statusCallback func(SpaceStatus)
	pollInterval   time.Duration

	logger       *slog.Logger
	transportLog *slog.Logger
	spaceLog     *slog.Logger

	hub *streamHub

	mu         sync.Mutex
	lastStatus map[string]Stage
	active     map[string]*Submission
	apiInfo    *APIInfo
	closed     bool
}

// Option configures the client.
type Option func(*Client)

// WithToken authorizes every request with a bearer token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithStatusCallback receives the status of a hosted space while Connect
// waits for it to start.
func WithStatusCallback(fn func(SpaceStatus)) Option {
	return func(c *Client) {
		c.statusCallback = fn
	}
}

// WithHTTPClient sets the HTTP client used for requests. Its Timeout is
// not applied to event streams.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger. Defaults to the client component logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithHubURL sets the hosting service used to resolve spaces.
// Default is DefaultHubURL.
func WithHubURL(u string) Option {
	return func(c *Client) {
		c.hubURL = strings.TrimRight(u, "/")
	}
}

// WithEmbeddedConfig supplies a config document so Connect can skip the
// config request.
func WithEmbeddedConfig(cfg *EmbeddedConfig) Option {
	return func(c *Client) {
		c.embedded = cfg
	}
}

// WithUploader sets the collaborator used by Upload.
func WithUploader(u Uploader) Option {
	return func(c *Client) {
		c.uploader = u
	}
}

// WithSpacePollInterval sets the delay between space status checks.
func WithSpacePollInterval(d time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = d
	}
}

// WithDialer sets the dialer for the websocket protocol.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// Connect resolves ref, loads the app config and returns a ready client.
//
// ref is an http(s) URL, a bare host, an "org/space" name, or a
// "file:" path to a saved config document. When the config cannot be
// fetched and ref names a hosted space, Connect waits for the space to
// start, reporting progress to the status callback.
func Connect(ctx context.Context, ref string, opts ...Option) (*Client, error) {
	c := &Client{
		hubURL:       DefaultHubURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		dialer:       websocket.DefaultDialer,
		pollInterval: DefaultSpacePollInterval,
		sessionHash:  newSessionHash(),
		lastStatus:   make(map[string]Stage),
		active:       make(map[string]*Submission),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.Client()
	}
	c.transportLog = logging.Transport()
	c.spaceLog = logging.Space()
	c.streamClient = &http.Client{
		Transport:     c.httpClient.Transport,
		Jar:           c.httpClient.Jar,
		CheckRedirect: c.httpClient.CheckRedirect,
	}

	appRef, err := ResolveAppRef(ctx, c.httpClient, c.hubURL, ref, c.token)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", ref, err)
	}

	embedded := c.embedded
	if appRef.ConfigFile != "" {
		cfg, err := LoadConfigFile(appRef.ConfigFile)
		if err != nil {
			return nil, &ConfigError{Detail: err.Error(), Err: err}
		}
		embedded = &EmbeddedConfig{Config: cfg}
	}

	cfg, err := ResolveConfig(ctx, c.httpClient, appRef.Endpoint, c.token, embedded)
	if err != nil {
		if appRef.SpaceID == "" {
			c.reportStatus(SpaceStatus{
				Status:     SpaceUnavailable,
				LoadStatus: LoadError,
				Message:    "Could not load this space.",
				Detail:     "NOT_FOUND",
			})
			return nil, err
		}
		c.logger.Info("Config not available, checking space status", "space", appRef.SpaceID, "error", err)
		if cfg, err = c.awaitSpace(ctx, appRef); err != nil {
			return nil, err
		}
	}

	// Hosted spaces sign websocket joins with a short-lived token.
	if c.token != "" && appRef.SpaceID != "" {
		jwt, err := fetchSpaceJWT(ctx, c.httpClient, c.hubURL, appRef.SpaceID, c.token)
		if err != nil {
			c.logger.Warn("Could not get space token", "space", appRef.SpaceID, "error", err)
		}
		c.jwt = jwt
	}

	c.ref = appRef
	c.config = cfg
	c.apiMap = MapNamesToIDs(cfg.Dependencies)
	c.logger = logging.WithApp(c.logger, cfg.Root, c.sessionHash)
	c.hub = newStreamHub(c)
	c.logger.Debug("Connected",
		"protocol", string(cfg.Protocol),
		"version", cfg.Version,
		"dependencies", len(cfg.Dependencies),
	)
	return c, nil
}

// newSessionHash returns a short random identifier shared by every call
// of one client.
func newSessionHash() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:11]
}

// Config returns the resolved app config. It must not be modified.
func (c *Client) Config() *Config {
	return c.config
}

// Ref returns the resolved app reference.
func (c *Client) Ref() AppRef {
	return c.ref
}

// SessionHash returns the session identifier sent with every call.
func (c *Client) SessionHash() string {
	return c.sessionHash
}

// APIMap returns a copy of the api name to dependency index map.
func (c *Client) APIMap() map[string]int {
	return maps.Clone(c.apiMap)
}

// LastStatus returns the stage last reported for an endpoint label, as
// returned by Submission.Endpoint.
func (c *Client) LastStatus(endpoint string) (Stage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.lastStatus[endpoint]
	return st, ok
}

// Active returns the number of calls in flight.
func (c *Client) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

// Close destroys every call in flight and the shared event stream.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	subs := make([]*Submission, 0, len(c.active))
	for _, s := range c.active {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		s.Destroy()
	}
	if c.hub != nil {
		c.hub.close()
	}
	c.logger.Debug("Client closed", "destroyed_calls", len(subs))
	return nil
}

func (c *Client) register(s *Submission) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.active[s.id] = s
	return true
}

func (c *Client) unregister(s *Submission) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, s.id)
}

func (c *Client) recordStatus(endpoint string, stage Stage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastStatus[endpoint] = stage
}

// cancelDependents cancels the calls in flight for the dependencies
// that s's dependency declares in its cancels list.
func (c *Client) cancelDependents(s *Submission) {
	dep, ok := c.config.Dependency(s.fnIndex)
	if !ok || len(dep.Cancels) == 0 {
		return
	}
	targets := make(map[int]bool, len(dep.Cancels))
	for _, i := range dep.Cancels {
		targets[i] = true
	}

	c.mu.Lock()
	var victims []*Submission
	for _, other := range c.active {
		if other != s && targets[other.fnIndex] {
			victims = append(victims, other)
		}
	}
	c.mu.Unlock()

	for _, v := range victims {
		s.logger.Debug("Cancelling dependent call", "target_call_id", v.id, "target_fn_index", v.fnIndex)
		v.Cancel()
	}
}

// resetCall asks the server to drop a call. It does not wait.
func (c *Client) resetCall(fnIndex int, eventID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), resetTimeout)
		defer cancel()

		body := map[string]any{
			"fn_index":     fnIndex,
			"session_hash": c.sessionHash,
		}
		if eventID != "" {
			body["event_id"] = eventID
		}
		resp, err := c.postJSON(ctx, joinURL(c.config.Root, "/reset"), body)
		if err != nil {
			c.logger.Debug("Reset request failed", "fn_index", fnIndex, "error", err)
			return
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			c.logger.Debug("Reset request rejected", "fn_index", fnIndex, "status", resp.StatusCode)
		}
	}()
}
