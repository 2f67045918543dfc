package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inercia/spaceclient/internal/fileutil"
)

var saveCmd = &cobra.Command{
	Use:   "save <file>",
	Short: "Save the app config for offline use",
	Long: `Fetch the config of the app and write it to a file. Later runs can
use --app file:<file> to skip the config request and space status checks.`,
	Args: cobra.ExactArgs(1),
	RunE: runSave,
}

func init() {
	rootCmd.AddCommand(saveCmd)
}

func runSave(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	c, err := connectApp(ctx, stderr(cmd))
	if err != nil {
		return err
	}
	defer c.Close()

	if err := fileutil.WriteJSONAtomic(args[0], c.Config(), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Saved %s (%d endpoints) to %s\n", c.Config().Root, len(c.APIMap()), args[0])
	return nil
}
