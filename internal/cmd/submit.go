package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/inercia/spaceclient/client"
	"github.com/inercia/spaceclient/internal/config"
	"github.com/inercia/spaceclient/internal/filter"
	"github.com/inercia/spaceclient/internal/logging"
)

var (
	submitFilter string
	submitWatch  string
)

var submitCmd = &cobra.Command{
	Use:   "submit <endpoint> [inputs...]",
	Short: "Call an endpoint and stream its events as JSON lines",
	Long: `Call an endpoint and print every data, status and log event as a
JSON line until the call ends.

--filter takes a CEL expression over the variables type, endpoint,
fn_index, stage, status, data, log and level; only matching events are
printed.

--watch reads the inputs from a JSON array file and submits again every
time the file changes, cancelling the call in flight. Stop with Ctrl+C.

Examples:
  spaceclient submit /generate "a cat" --filter 'type == "data"'
  spaceclient submit /generate --watch inputs.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().StringVar(&submitFilter, "filter", "", "CEL expression selecting the events to print")
	submitCmd.Flags().StringVar(&submitWatch, "watch", "", "JSON array file with the inputs; resubmit when it changes")
}

// eventPrinter writes the events that pass its filter. It is shared by
// the listeners of several calls, so writes are serialized.
type eventPrinter struct {
	mu     sync.Mutex
	w      io.Writer
	filter *filter.Filter
}

func (p *eventPrinter) print(ev client.Event) {
	ok, err := p.filter.Match(ev)
	if err != nil {
		// A runtime type error in the expression skips this event only
		logging.CLI().Warn("Filter failed", "error", err)
		return
	}
	if !ok {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = writeEvent(p.w, ev)
}

func (p *eventPrinter) options() []client.SubmitOption {
	return []client.SubmitOption{
		client.WithListener(client.EventData, p.print),
		client.WithListener(client.EventStatus, p.print),
		client.WithListener(client.EventLog, p.print),
	}
}

func runSubmit(cmd *cobra.Command, args []string) error {
	var f *filter.Filter
	if submitFilter != "" {
		var err error
		if f, err = filter.Compile(submitFilter); err != nil {
			return err
		}
	}
	printer := &eventPrinter{w: cmd.OutOrStdout(), filter: f}
	ep := client.ParseEndpoint(args[0])

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	c, err := connectApp(ctx, stderr(cmd))
	if err != nil {
		return err
	}
	defer c.Close()

	if submitWatch != "" {
		if len(args) > 1 {
			// Inputs come from the file, reloaded on every change
			return errors.New("inputs come from the --watch file; do not pass them as arguments")
		}
		return watchAndSubmit(ctx, c, ep, submitWatch, printer, stderr(cmd))
	}

	inputs, err := parseArgs(args[1:], cmd.InOrStdin())
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, effectiveTimeout())
	defer cancel()

	sub := c.Submit(ctx, ep, inputs, printer.options()...)
	<-sub.Done()

	st, _ := sub.LastStatus()
	switch {
	case st.Stage == client.StageError:
		return fmt.Errorf("%s failed: %s", ep, st.Message)
	case st.Cancelled && ctx.Err() != nil:
		// Timeout or Ctrl+C
		return ctx.Err()
	}
	return nil
}

// watchAndSubmit submits the inputs in path now and again whenever the
// file changes, until ctx ends.
func watchAndSubmit(ctx context.Context, c *client.Client, ep client.Endpoint, path string, printer *eventPrinter, status io.Writer) error {
	log := logging.CLI().With("endpoint", ep.String(), "file", path)

	var (
		mu      sync.Mutex
		current *client.Submission
	)
	submit := func() {
		inputs, err := readInputs(path, nil)
		if err != nil {
			fmt.Fprintf(status, "❌ %v\n", err)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		// Only the latest inputs matter
		if current != nil {
			current.Cancel()
		}
		log.Debug("Submitting", "inputs", len(inputs))
		current = c.Submit(ctx, ep, inputs, printer.options()...)
	}

	fw, err := config.NewFileWatcher(path, log, func(string) {
		fmt.Fprintf(status, "🔄 %s changed, submitting again\n", path)
		submit()
	})
	if err != nil {
		return err
	}
	defer fw.Close()

	submit()
	fmt.Fprintf(status, "👀 Watching %s (Ctrl+C to stop)\n", path)
	<-ctx.Done()
	return nil
}
