package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inercia/spaceclient/client"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status [org/space]",
	Short: "Show the runtime status of a hosted space",
	Long: `Ask the hosting service whether a space is running, sleeping,
building, paused or failing. Defaults to the space given by --app.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the status as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	var id string
	if len(args) == 1 {
		id = args[0]
	} else {
		ref, err := settings.ResolveApp(appName)
		if err != nil {
			return err
		}
		id = spaceIDFromRef(ref)
	}
	if id == "" {
		return fmt.Errorf("status needs a hosted space, such as org/space")
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	// Private spaces need the token to report their status
	token, _ := resolveToken()
	st := client.SpaceStatusOf(ctx, nil, effectiveHubURL(), id, token)

	if statusJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s)\n", id, st.Status, st.Detail)
	if st.Message != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", st.Message)
	}
	if st.Status == client.SpaceError || st.Status == client.SpacePaused {
		if st.DiscussionsEnabled {
			fmt.Fprintf(cmd.OutOrStdout(), "  Report it in the space discussions.\n")
		}
	}
	return nil
}

// spaceIDFromRef extracts the space id from an app reference: an
// "org/space" name, or the subdomain of a *.hf.space host.
func spaceIDFromRef(ref string) string {
	if strings.HasPrefix(ref, "file:") {
		return ""
	}
	// org/space
	if !strings.Contains(ref, "://") && strings.Count(ref, "/") == 1 {
		return ref
	}
	host := ref
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	host, _, _ = strings.Cut(host, "/")
	if sub, ok := strings.CutSuffix(host, ".hf.space"); ok {
		return sub
	}
	return ""
}
