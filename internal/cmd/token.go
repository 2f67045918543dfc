package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inercia/spaceclient/internal/secrets"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the access token in the system keychain",
}

var tokenSetCmd = &cobra.Command{
	Use:   "set [token]",
	Short: "Store a token for the hub (reads stdin when no argument is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTokenSet,
}

var tokenDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the stored token for the hub",
	Args:  cobra.NoArgs,
	RunE:  runTokenDelete,
}

var tokenStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where the token in effect comes from",
	Args:  cobra.NoArgs,
	RunE:  runTokenStatus,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenSetCmd, tokenDeleteCmd, tokenStatusCmd)
}

func runTokenSet(cmd *cobra.Command, args []string) error {
	if !secrets.Default().IsSupported() {
		return fmt.Errorf("%w: use $HF_TOKEN or the token setting instead", secrets.ErrNotSupported)
	}
	var token string
	if len(args) == 1 {
		token = args[0]
	} else {
		// Read from stdin so the token stays out of the shell history
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read token: %w", err)
		}
		token = line
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("empty token")
	}
	hub := effectiveHubURL()
	if err := secrets.SetToken(hub, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Token stored for %s\n", secrets.TokenAccount(hub))
	return nil
}

func runTokenDelete(cmd *cobra.Command, args []string) error {
	hub := effectiveHubURL()
	err := secrets.DeleteToken(hub)
	switch {
	case errors.Is(err, secrets.ErrNotFound):
		// Nothing to delete is not an error
		fmt.Fprintf(cmd.OutOrStdout(), "No token stored for %s\n", secrets.TokenAccount(hub))
		return nil
	case err != nil:
		return fmt.Errorf("delete token: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "🗑️  Token deleted for %s\n", secrets.TokenAccount(hub))
	return nil
}

func runTokenStatus(cmd *cobra.Command, args []string) error {
	token, source := resolveToken()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "hub:      %s\n", effectiveHubURL())
	fmt.Fprintf(out, "keychain: %v\n", secrets.Default().IsSupported())
	fmt.Fprintf(out, "source:   %s\n", source)
	if token != "" {
		fmt.Fprintf(out, "token:    %s\n", maskToken(token))
	}
	return nil
}

// maskToken keeps only enough of a token to recognize it.
func maskToken(t string) string {
	if len(t) <= 8 {
		return strings.Repeat("*", len(t))
	}
	return t[:4] + strings.Repeat("*", len(t)-8) + t[len(t)-4:]
}
