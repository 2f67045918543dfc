package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/inercia/spaceclient/internal/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective settings",
	Long: `Print the settings in effect after applying command line flags.
The token is never printed; its source is shown instead.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter settings file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configAliasCmd = &cobra.Command{
	Use:   "alias <name> <app>",
	Short: "Save an alias for an app reference",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigAlias,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configAliasCmd)
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "Overwrite an existing settings file")
}

// effectiveSettings is what `config` prints.
type effectiveSettings struct {
	SettingsFile string             `yaml:"settings_file"`
	App          string             `yaml:"app,omitempty"`
	HubURL       string             `yaml:"hub_url"`
	Timeout      string             `yaml:"timeout"`
	TokenSource  config.TokenSource `yaml:"token_source"`
	Log          config.LogSettings `yaml:"log"`
	Apps         map[string]string  `yaml:"apps,omitempty"`
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	_, source := resolveToken()
	app, _ := settings.ResolveApp(appName)

	eff := effectiveSettings{
		SettingsFile: settingsPath,
		App:          app,
		HubURL:       effectiveHubURL(),
		Timeout:      effectiveTimeout().String(),
		TokenSource:  source,
		Log:          settings.Log,
		Apps:         settings.Apps,
	}
	if logLevel != "" {
		eff.Log.Level = logLevel
	} else if debug {
		eff.Log.Level = "debug"
	}
	if logFile != "" {
		eff.Log.File = logFile
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	defer enc.Close()
	return enc.Encode(eff)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(settingsPath); err == nil && !configForce {
		fmt.Fprintf(cmd.OutOrStdout(), "⚠️  Settings file already exists: %s\n", settingsPath)
		fmt.Fprintln(cmd.OutOrStdout(), "Use --force to overwrite it.")
		return nil
	}
	starter := &config.Settings{
		DefaultApp: "hello",
		Apps:       map[string]string{"hello": "gradio/hello_world"},
		Timeout:    config.DefaultTimeout,
		Log:        config.LogSettings{Level: "warn"},
	}
	if err := starter.Save(settingsPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Settings file created: %s\n", settingsPath)
	return nil
}

func runConfigAlias(cmd *cobra.Command, args []string) error {
	if settings.Apps == nil {
		settings.Apps = make(map[string]string)
	}
	settings.Apps[args[0]] = args[1]
	if err := settings.Save(settingsPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ %s -> %s\n", args[0], args[1])
	return nil
}
