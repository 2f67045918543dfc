package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inercia/spaceclient/client"
)

var predictOutput string

var predictCmd = &cobra.Command{
	Use:   "predict <endpoint> [inputs...]",
	Short: "Call an endpoint and print its outputs",
	Long: `Call an endpoint and wait for its final outputs.

The endpoint is an api name such as /predict, or a dependency index.
Each input is parsed as JSON when possible and passed as a string
otherwise. A single "@file.json" argument reads a JSON array of inputs.

Examples:
  spaceclient --app gradio/hello_world predict /predict World
  spaceclient --app http://127.0.0.1:7860 predict 0 '{"a": 1}' 3.5
  echo '["hi"]' | spaceclient predict /predict @-`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPredict,
}

func init() {
	rootCmd.AddCommand(predictCmd)
	predictCmd.Flags().StringVarP(&predictOutput, "output", "o", formatJSON, "Output format: json or yaml")
}

func runPredict(cmd *cobra.Command, args []string) error {
	inputs, err := parseArgs(args[1:], cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	c, err := connectApp(ctx, stderr(cmd))
	if err != nil {
		return err
	}
	defer c.Close()

	// Connecting may wait for a space to wake up; only the call is bounded
	ctx, cancel := context.WithTimeout(ctx, effectiveTimeout())
	defer cancel()

	out, err := c.Predict(ctx, client.ParseEndpoint(args[0]), inputs)
	if err != nil {
		return fmt.Errorf("predict %s: %w", args[0], err)
	}
	return writeResult(cmd.OutOrStdout(), out, predictOutput)
}
