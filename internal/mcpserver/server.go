// Package mcpserver exposes the endpoints of a connected app as MCP tools,
// so agents can call them. In HTTP mode it binds only to 127.0.0.1.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/inercia/spaceclient/client"
	"github.com/inercia/spaceclient/internal/apidoc"
	"github.com/inercia/spaceclient/internal/logging"
)

const (
	// DefaultPort is the default port in HTTP mode.
	DefaultPort = 5757
	// ServerName is the MCP implementation name.
	ServerName = "spaceclient"
	// ServerVersion is the MCP implementation version.
	ServerVersion = "1.0.0"
)

// TransportMode specifies how the server talks to its client.
type TransportMode string

const (
	// TransportModeHTTP serves the Streamable HTTP transport on a TCP port.
	TransportModeHTTP TransportMode = "http"
	// TransportModeSTDIO uses standard input and output.
	TransportModeSTDIO TransportMode = "stdio"
)

// App is the part of a connected client the tools use.
type App interface {
	Config() *client.Config
	Ref() client.AppRef
	SessionHash() string
	Predict(ctx context.Context, ep client.Endpoint, data []any, opts ...client.SubmitOption) ([]any, error)
	ViewAPI(ctx context.Context) (*client.APIInfo, error)
}

// Config configures the server.
type Config struct {
	// Port in HTTP mode. -1 selects DefaultPort, 0 a random free port.
	Port int
	// Mode defaults to HTTP.
	Mode TransportMode
	// PredictTimeout bounds one predict tool call. Zero means no limit
	// beyond the request context.
	PredictTimeout time.Duration
}

// Server serves the tools of one app.
type Server struct {
	mcpServer *mcp.Server
	app       App
	logger    *slog.Logger
	timeout   time.Duration

	mu       sync.RWMutex
	port     int
	mode     TransportMode
	listener net.Listener
	httpSrv  *http.Server

	stdioSession *mcp.ServerSession
	stdioDone    chan struct{}

	running  bool
	shutdown bool
}

// NewServer creates a server for app.
func NewServer(cfg Config, app App) (*Server, error) {
	if app == nil {
		return nil, errors.New("mcpserver: no app")
	}
	if cfg.Port < 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Mode == "" {
		cfg.Mode = TransportModeHTTP
	}

	s := &Server{
		app:     app,
		logger:  logging.MCP(),
		timeout: cfg.PredictTimeout,
		port:    cfg.Port,
		mode:    cfg.Mode,
	}
	s.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: ServerVersion,
	}, nil)
	s.registerTools()
	return s, nil
}

// Start starts serving. It does not block; see Wait for STDIO mode.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.mu.Unlock()

	switch s.mode {
	case TransportModeSTDIO:
		return s.startSTDIO(ctx)
	case TransportModeHTTP:
		return s.startHTTP()
	default:
		return fmt.Errorf("unknown transport mode: %s", s.mode)
	}
}

func (s *Server) startHTTP() error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)
	mux := http.NewServeMux()
	mux.Handle("/mcp", handler)
	mux.Handle("/", handler)

	s.mu.Lock()
	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port
	s.httpSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	s.running = true
	srv := s.httpSrv
	port := s.port
	s.mu.Unlock()

	s.logger.Info("MCP server started", "mode", "http", "port", port, "app", s.app.Config().Root)

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("MCP server error", "error", err)
		}
	}()
	return nil
}

func (s *Server) startSTDIO(ctx context.Context) error {
	s.mu.Lock()
	s.running = true
	s.stdioDone = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("MCP server started", "mode", "stdio", "app", s.app.Config().Root)

	go func() {
		defer close(s.stdioDone)

		session, err := s.mcpServer.Connect(ctx, &mcp.StdioTransport{}, nil)
		if err != nil {
			s.logger.Error("Failed to connect STDIO transport", "error", err)
			return
		}
		s.mu.Lock()
		s.stdioSession = session
		s.mu.Unlock()

		if err := session.Wait(); err != nil {
			s.logger.Debug("STDIO session ended", "error", err)
		}

		s.mu.Lock()
		s.running = false
		s.stdioSession = nil
		s.mu.Unlock()
	}()
	return nil
}

// Wait blocks until a STDIO session ends. It returns at once in HTTP mode.
func (s *Server) Wait() error {
	s.mu.RLock()
	done := s.stdioDone
	s.mu.RUnlock()
	if done != nil {
		<-done
	}
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.shutdown {
		return nil
	}
	s.shutdown = true
	s.running = false

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Warn("Error shutting down MCP HTTP server", "error", err)
		}
	}
	if s.stdioSession != nil {
		if err := s.stdioSession.Close(); err != nil {
			s.logger.Warn("Error closing STDIO session", "error", err)
		}
	}
	s.logger.Info("MCP server stopped")
	return nil
}

// Port returns the listening port. Zero in STDIO mode.
func (s *Server) Port() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.mode == TransportModeSTDIO {
		return 0
	}
	return s.port
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running && !s.shutdown
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_endpoints",
		Description: "List the callable endpoints of the app with their inputs, outputs and queueing",
	}, s.listEndpoints)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_app_config",
		Description: "Describe the connected app: root URL, protocol, version and session",
	}, s.getAppConfig)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "predict",
		Description: "Call an endpoint with positional inputs and return its outputs",
	}, s.predict)
}

func (s *Server) listEndpoints(ctx context.Context, req *mcp.CallToolRequest, in ListEndpointsInput) (*mcp.CallToolResult, ListEndpointsOutput, error) {
	api := apidoc.Describe(s.app.Config(), in.IncludeUnnamed)
	if info, err := s.app.ViewAPI(ctx); err != nil {
		s.logger.Debug("Typed API description unavailable", "error", err)
	} else {
		api.Annotate(info)
	}
	return nil, ListEndpointsOutput{Endpoints: api.Endpoints}, nil
}

func (s *Server) getAppConfig(ctx context.Context, req *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, AppConfigInfo, error) {
	cfg := s.app.Config()
	api := apidoc.Describe(cfg, false)
	return nil, AppConfigInfo{
		Root:        cfg.Root,
		Title:       cfg.Title,
		Version:     cfg.Version,
		Protocol:    api.Protocol,
		EnableQueue: cfg.EnableQueue,
		SpaceID:     s.app.Ref().SpaceID,
		SessionHash: s.app.SessionHash(),
		Endpoints:   len(api.Endpoints),
		Description: cfg.Description,
	}, nil
}

func (s *Server) predict(ctx context.Context, req *mcp.CallToolRequest, in PredictInput) (*mcp.CallToolResult, PredictOutput, error) {
	if in.Endpoint == "" {
		return nil, PredictOutput{}, errors.New("endpoint is required")
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	ep := client.ParseEndpoint(in.Endpoint)
	log := s.logger.With("endpoint", ep.String())
	log.Debug("Predict tool called", "inputs", len(in.Data))

	data := in.Data
	if data == nil {
		data = []any{}
	}
	out, err := s.app.Predict(ctx, ep, data)
	if err != nil {
		log.Info("Predict tool failed", "error", err)
		return nil, PredictOutput{}, fmt.Errorf("predict %s: %w", ep, err)
	}
	if out == nil {
		out = []any{}
	}
	return nil, PredictOutput{Endpoint: ep.String(), Data: out}, nil
}
