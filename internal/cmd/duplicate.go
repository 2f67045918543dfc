package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/inercia/spaceclient/client"
	"github.com/inercia/spaceclient/internal/logging"
)

var (
	duplicatePrivate  bool
	duplicateHardware string
	duplicateSleep    time.Duration
	duplicateAlias    string
)

var duplicateCmd = &cobra.Command{
	Use:   "duplicate <org/space>",
	Short: "Copy a hosted space into your account and connect to it",
	Long: `Duplicate a hosted space under the account that owns the token,
set its hardware and sleep time, and wait until the copy answers.

The copy keeps the space name. If it already exists it is reused as is.

Examples:
  spaceclient duplicate gradio/hello_world --private
  spaceclient duplicate gradio/hello_world --hardware t4-small --alias hello`,
	Args: cobra.ExactArgs(1),
	RunE: runDuplicate,
}

func init() {
	rootCmd.AddCommand(duplicateCmd)
	duplicateCmd.Flags().BoolVar(&duplicatePrivate, "private", false, "Make the copy private")
	duplicateCmd.Flags().StringVar(&duplicateHardware, "hardware", "",
		"Hardware for the copy: "+strings.Join(client.HardwareTypes, ", ")+" (default: same as the original)")
	duplicateCmd.Flags().DurationVar(&duplicateSleep, "sleep-time", client.DefaultSleepTime, "Idle time before the copy goes to sleep")
	duplicateCmd.Flags().StringVar(&duplicateAlias, "alias", "", "Save the copy under this app alias")
}

func runDuplicate(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	opts, source := clientOptions(stderr(cmd))
	logging.CLI().Debug("Duplicating", "space", args[0], "token_source", string(source))

	c, err := client.Duplicate(ctx, args[0], client.DuplicateOptions{
		Private:   duplicatePrivate,
		Hardware:  duplicateHardware,
		SleepTime: duplicateSleep,
	}, opts...)
	if err != nil {
		return err
	}
	defer c.Close()

	copyID := c.Ref().SpaceID
	fmt.Fprintf(cmd.OutOrStdout(), "✅ %s is ready at %s\n", copyID, c.Config().Root)

	if duplicateAlias != "" {
		if settings.Apps == nil {
			settings.Apps = make(map[string]string)
		}
		settings.Apps[duplicateAlias] = copyID
		if err := settings.Save(settingsPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved as app %q\n", duplicateAlias)
	}
	return nil
}
