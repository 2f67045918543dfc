package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/inercia/spaceclient/client"
)

// Output formats for results.
const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// parseArgs turns command line arguments into input values. Arguments that
// parse as JSON are used as such; anything else is a string. "@path"
// reads a JSON array of inputs from a file, "@-" from stdin.
func parseArgs(args []string, stdin io.Reader) ([]any, error) {
	if len(args) == 1 && strings.HasPrefix(args[0], "@") {
		return readInputs(args[0][1:], stdin)
	}
	out := make([]any, 0, len(args))
	for _, arg := range args {
		var v any
		if err := json.Unmarshal([]byte(arg), &v); err == nil {
			out = append(out, v)
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}

// readInputs reads a JSON array of inputs from path, or from stdin when
// path is "-".
func readInputs(path string, stdin io.Reader) ([]any, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read inputs: %w", err)
	}
	var inputs []any
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("inputs in %s must be a JSON array: %w", path, err)
	}
	return inputs, nil
}

// writeResult prints prediction outputs in the given format.
func writeResult(w io.Writer, data []any, format string) error {
	switch format {
	case "", formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(data)
	default:
		return fmt.Errorf("unknown output format %q (want json or yaml)", format)
	}
}

// writeEvent prints one event as a JSON line.
func writeEvent(w io.Writer, ev client.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", b)
	return err
}
