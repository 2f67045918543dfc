package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inercia/spaceclient/internal/apidoc"
	"github.com/inercia/spaceclient/internal/fileutil"
	"github.com/inercia/spaceclient/internal/logging"
)

var (
	apiHTML    bool
	apiJSON    bool
	apiOut     string
	apiUnnamed bool
	apiStyle   string
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Show the API of the app",
	Long: `Print the callable endpoints of the app with their inputs and
outputs, as Markdown (default), JSON, or a standalone HTML page.

Examples:
  spaceclient --app gradio/hello_world api
  spaceclient --app gradio/hello_world api --html --out api.html`,
	Args: cobra.NoArgs,
	RunE: runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
	apiCmd.Flags().BoolVar(&apiHTML, "html", false, "Render an HTML page")
	apiCmd.Flags().BoolVar(&apiJSON, "json", false, "Print the description as JSON")
	apiCmd.Flags().StringVarP(&apiOut, "out", "o", "", "Write to this file instead of stdout")
	apiCmd.Flags().BoolVar(&apiUnnamed, "unnamed", false, "Include endpoints without an api name")
	apiCmd.Flags().StringVar(&apiStyle, "style", apidoc.DefaultStyle, "Code highlighting style for --html")
}

func runAPI(cmd *cobra.Command, args []string) error {
	if apiHTML && apiJSON {
		return fmt.Errorf("--html and --json are mutually exclusive")
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	c, err := connectApp(ctx, stderr(cmd))
	if err != nil {
		return err
	}
	defer c.Close()

	api := apidoc.Describe(c.Config(), apiUnnamed)
	// Types and descriptions are extras; the config alone is enough.
	if info, err := c.ViewAPI(ctx); err != nil {
		logging.CLI().Warn("Could not get typed API description", "error", err)
	} else {
		api.Annotate(info)
	}

	var buf bytes.Buffer
	switch {
	case apiJSON:
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(api); err != nil {
			return err
		}
	case apiHTML:
		title := api.Title
		if title == "" {
			title = api.Root
		}
		page, err := apidoc.NewRenderer(apidoc.WithStyle(apiStyle)).Page(title, apidoc.Markdown(api, appName))
		if err != nil {
			return err
		}
		buf.WriteString(page)
	default:
		buf.WriteString(apidoc.Markdown(api, appName))
	}

	if apiOut != "" {
		return fileutil.WriteAtomic(apiOut, buf.Bytes(), 0o644)
	}
	_, err = cmd.OutOrStdout().Write(buf.Bytes())
	return err
}
