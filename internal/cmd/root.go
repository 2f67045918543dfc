// Package cmd implements the spaceclient command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/inercia/spaceclient/client"
	"github.com/inercia/spaceclient/internal/config"
	"github.com/inercia/spaceclient/internal/logging"
)

var (
	// Global flags
	configPath    string
	appName       string
	tokenFlag     string
	hubURLFlag    string
	debug         bool
	logLevel      string
	logFile       string
	logComponents string
	timeout       time.Duration

	// settings is loaded before every command runs.
	settings *config.Settings
	// settingsPath is the file settings were loaded from.
	settingsPath string
)

var rootCmd = &cobra.Command{
	Use:   "spaceclient",
	Short: "Call the endpoints of a hosted ML demo app",
	Long: `spaceclient submits predictions to a Gradio-style app server and
streams its queue, progress and output events.

The app is selected with --app: a URL, an "org/space" name, an alias from
the settings file, or "file:" followed by a saved config document.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		if configPath == "" {
			configPath = config.DefaultConfigPath()
		}
		s, err := config.Load(configPath)
		if err != nil {
			return err
		}
		settings = s
		settingsPath = configPath

		return initLogging(cmd)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Close()
	},
}

// Execute runs the command line.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Settings file (default: $SPACECLIENTRC or the platform settings path)")
	pf.StringVarP(&appName, "app", "a", "", "App to use: URL, org/space, alias, or file:<config.json>")
	pf.StringVar(&tokenFlag, "token", "", "Access token (default: $HF_TOKEN, keychain, settings)")
	pf.StringVar(&hubURLFlag, "hub-url", "", "Hosting service used to resolve org/space names")
	pf.BoolVar(&debug, "debug", false, "Enable debug logging (shorthand for --log-level=debug)")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default: warn)")
	pf.StringVarP(&logFile, "log-file", "l", "", "Also write logs to this file, rotated")
	pf.StringVar(&logComponents, "log-components", "", "Comma-separated components to log (client,transport,space,cli,mcp). Empty means all.")
	pf.DurationVar(&timeout, "timeout", 0, "Timeout for one prediction (default: settings timeout or 5m)")
}

// initLogging applies flags over the settings file.
// Priority: --log-level > --debug > settings > warn.
func initLogging(cmd *cobra.Command) error {
	level := "warn"
	switch {
	case logLevel != "":
		level = logLevel
	case debug:
		level = "debug"
	case settings.Log.Level != "":
		level = settings.Log.Level
	}

	components := settings.Log.Components
	if logComponents != "" {
		components = splitList(logComponents)
	}

	cfg := logging.Config{
		Level:      level,
		JSON:       settings.Log.JSON,
		Components: components,
		Output:     cmd.ErrOrStderr(),
	}
	path := logFile
	if path == "" {
		path = settings.Log.File
	}
	if path != "" {
		fl := logging.DefaultFileLogConfig()
		fl.Path = path
		cfg.FileLog = &fl
	}
	if err := logging.Initialize(cfg); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// effectiveHubURL returns the hub from flags or settings.
func effectiveHubURL() string {
	if hubURLFlag != "" {
		return hubURLFlag
	}
	if settings != nil && settings.HubURL != "" {
		return settings.HubURL
	}
	return client.DefaultHubURL
}

// effectiveTimeout returns the per-prediction timeout.
func effectiveTimeout() time.Duration {
	if timeout > 0 {
		return timeout
	}
	return settings.EffectiveTimeout()
}

// resolveToken looks the keychain up under the hub in effect, which may
// come from --hub-url rather than the settings file.
func resolveToken() (string, config.TokenSource) {
	s := *settings
	s.HubURL = effectiveHubURL()
	return s.ResolveToken(tokenFlag)
}

// connectApp resolves --app and connects to it. Space status updates
// are written to status.
func connectApp(ctx context.Context, status io.Writer) (*client.Client, error) {
	ref, err := settings.ResolveApp(appName)
	if err != nil {
		return nil, err
	}
	opts, source := clientOptions(status)
	logging.CLI().Debug("Connecting", "app", ref, "token_source", string(source))

	c, err := client.Connect(ctx, ref, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", ref, err)
	}
	return c, nil
}

// clientOptions returns the options shared by every command that
// connects: hub, token and space status reporting.
func clientOptions(status io.Writer) ([]client.Option, config.TokenSource) {
	token, source := resolveToken()
	opts := []client.Option{
		client.WithHubURL(effectiveHubURL()),
		client.WithStatusCallback(func(st client.SpaceStatus) {
			if st.Message != "" {
				fmt.Fprintf(status, "⏳ %s\n", st.Message)
			}
		}),
	}
	if token != "" {
		opts = append(opts, client.WithToken(token))
	}
	return opts, source
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func stderr(cmd *cobra.Command) io.Writer {
	if cmd == nil {
		return os.Stderr
	}
	return cmd.ErrOrStderr()
}
