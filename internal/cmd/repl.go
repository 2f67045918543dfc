package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/shlex"
	"github.com/reeflective/readline"
	"github.com/spf13/cobra"

	"github.com/inercia/spaceclient/client"
	"github.com/inercia/spaceclient/internal/apidoc"
	"github.com/inercia/spaceclient/internal/appdir"
	"github.com/inercia/spaceclient/internal/logging"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive shell for calling endpoints",
	Long: `Start an interactive shell connected to the app.

Each line is "<endpoint> [inputs...]", split like a shell command line;
inputs are parsed as JSON when possible. Calls run in the background and
print their events as they arrive.

Commands:
  /endpoints      - List the named endpoints
  /cancel         - Cancel the calls in flight
  /quit, /exit    - Exit the shell
  /help           - Show available commands`,
	Args: cobra.NoArgs,
	RunE: runREPL,
}

func init() {
	rootCmd.AddCommand(replCmd)
}

// slashCommands defines the available slash commands with their descriptions.
var slashCommands = []struct {
	name        string
	description string
}{
	{"/help", "Show available commands"},
	{"/h", "Show available commands (alias)"},
	{"/?", "Show available commands (alias)"},
	{"/quit", "Exit the shell"},
	{"/exit", "Exit the shell (alias)"},
	{"/q", "Exit the shell (alias)"},
	{"/cancel", "Cancel the calls in flight"},
	{"/endpoints", "List the named endpoints"},
}

// replSession runs the lines typed into the shell against one client.
type replSession struct {
	client *client.Client
	out    io.Writer

	mu       sync.Mutex
	inflight map[string]*client.Submission
}

func newREPLSession(c *client.Client, out io.Writer) *replSession {
	return &replSession{
		client:   c,
		out:      out,
		inflight: make(map[string]*client.Submission),
	}
}

func runREPL(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	c, err := connectApp(ctx, stderr(cmd))
	if err != nil {
		return err
	}
	defer c.Close()

	rl := readline.NewShell()
	rl.Prompt.Primary(func() string { return "spaceclient> " })
	rl.History.Add("default", replHistory())

	session := newREPLSession(c, cmd.OutOrStdout())
	rl.Completer = func(line []rune, cursor int) readline.Completions {
		return completeInput(string(line), cursor, session.endpointNames())
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\n📡 Connected to %s. Type <endpoint> [inputs...] or /help.\n", c.Config().Root)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
				fmt.Fprintln(cmd.OutOrStdout(), "\n👋 Goodbye!")
				return nil
			}
			return err
		}
		if quit := session.handleLine(ctx, line); quit {
			return nil
		}
	}
}

// replHistory persists history in the data directory when possible.
func replHistory() readline.History {
	log := logging.CLI()
	if err := appdir.EnsureDir(); err == nil {
		if path, err := appdir.HistoryPath(); err == nil {
			h, err := readline.NewHistoryFromFile(path)
			if err == nil {
				return h
			}
			log.Debug("History file unavailable", "path", path, "error", err)
		}
	}
	return readline.NewInMemoryHistory()
}

// handleLine runs one line and reports whether the shell should exit.
func (r *replSession) handleLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if strings.HasPrefix(line, "/") {
		return r.handleCommand(line)
	}

	words, err := shlex.Split(line)
	if err != nil {
		fmt.Fprintf(r.out, "❌ %v\n", err)
		return false
	}
	if len(words) == 0 {
		return false
	}
	inputs, err := parseArgs(words[1:], strings.NewReader(""))
	if err != nil {
		fmt.Fprintf(r.out, "❌ %v\n", err)
		return false
	}
	r.submit(ctx, client.ParseEndpoint(words[0]), inputs)
	return false
}

func (r *replSession) submit(ctx context.Context, ep client.Endpoint, inputs []any) *client.Submission {
	sub := r.client.Submit(ctx, ep, inputs,
		client.WithListener(client.EventData, r.printEvent),
		client.WithListener(client.EventStatus, r.printEvent),
		client.WithListener(client.EventLog, r.printEvent),
	)

	r.mu.Lock()
	r.inflight[sub.ID()] = sub
	r.mu.Unlock()

	go func() {
		<-sub.Done()
		r.mu.Lock()
		delete(r.inflight, sub.ID())
		r.mu.Unlock()
	}()
	return sub
}

func (r *replSession) printEvent(ev client.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Type {
	case client.EventData:
		fmt.Fprintf(r.out, "📦 %s: ", ev.Endpoint)
		_ = writeResult(r.out, ev.Data, formatJSON)
	case client.EventLog:
		fmt.Fprintf(r.out, "📝 %s [%s] %s\n", ev.Endpoint, ev.Log.Level, ev.Log.Log)
	case client.EventStatus:
		st := ev.Status
		switch {
		case st.Cancelled:
			fmt.Fprintf(r.out, "🛑 %s cancelled\n", ev.Endpoint)
		case st.Stage == client.StageError:
			fmt.Fprintf(r.out, "❌ %s: %s\n", ev.Endpoint, st.Message)
		case st.Stage == client.StageComplete:
			fmt.Fprintf(r.out, "✅ %s done\n", ev.Endpoint)
		case st.Position != nil:
			fmt.Fprintf(r.out, "⏳ %s queued at position %d\n", ev.Endpoint, *st.Position)
		}
	}
}

func (r *replSession) handleCommand(line string) bool {
	parts := strings.Fields(strings.ToLower(strings.TrimPrefix(line, "/")))
	if len(parts) == 0 {
		return false
	}

	switch parts[0] {
	case "quit", "exit", "q":
		fmt.Fprintln(r.out, "👋 Goodbye!")
		return true
	case "cancel":
		r.mu.Lock()
		subs := make([]*client.Submission, 0, len(r.inflight))
		for _, s := range r.inflight {
			subs = append(subs, s)
		}
		r.mu.Unlock()
		if len(subs) == 0 {
			fmt.Fprintln(r.out, "Nothing to cancel")
		}
		for _, s := range subs {
			s.Cancel()
		}
	case "endpoints":
		for _, ep := range apidoc.Describe(r.client.Config(), false).Endpoints {
			labels := make([]string, len(ep.Inputs))
			for i, p := range ep.Inputs {
				labels[i] = p.Label
			}
			fmt.Fprintf(r.out, "  %-20s %s\n", ep.Name, strings.Join(labels, ", "))
		}
	case "help", "h", "?":
		printHelp(r.out)
	default:
		fmt.Fprintf(r.out, "❓ Unknown command: %s (use /help for available commands)\n", parts[0])
	}
	return false
}

func (r *replSession) endpointNames() []string {
	eps := apidoc.Describe(r.client.Config(), false).Endpoints
	names := make([]string, len(eps))
	for i, ep := range eps {
		names[i] = ep.Name
	}
	return names
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, `
Available commands:
  /endpoints        - List the named endpoints
  /cancel           - Cancel the calls in flight
  /quit, /exit, /q  - Exit the shell
  /help, /h, /?     - Show this help message

Calls:
  /predict "hello world" 3      - inputs are JSON or plain strings
  0 '{"a": 1}'                  - address a dependency by index`)
}

// completeInput completes slash commands and endpoint names. Only the
// first word of the line is completed.
func completeInput(line string, cursor int, endpoints []string) readline.Completions {
	if cursor > len(line) {
		cursor = len(line)
	}
	text := line[:cursor]
	if text == "" || strings.ContainsAny(text, " \t") {
		return readline.Completions{}
	}

	pairs := matchCompletions(text, endpoints)
	if len(pairs) == 0 {
		return readline.Completions{}
	}
	return readline.CompleteValuesDescribed(pairs...).
		Tag("commands").
		NoSpace('/')
}

// matchCompletions returns value-description pairs of the commands and
// endpoints starting with text.
func matchCompletions(text string, endpoints []string) []string {
	var pairs []string
	if strings.HasPrefix(text, "/") {
		for _, cmd := range slashCommands {
			if strings.HasPrefix(cmd.name, text) {
				pairs = append(pairs, cmd.name, cmd.description)
			}
		}
	}
	for _, ep := range endpoints {
		if strings.HasPrefix(ep, text) {
			pairs = append(pairs, ep, "endpoint")
		}
	}
	return pairs
}
