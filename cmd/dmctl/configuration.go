package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/datamapper-in-go/pkg/config"
)

// configurationCmd represents the configuration command
var configurationCmd = &cobra.Command{
	Use:   "configuration",
	Short: "Inspect configuration",
	Long:  `Inspect datamapper configuration settings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = cmd.Help()
		return fmt.Errorf("command 'configuration' requires a subcommand (show)")
	},
}

// configurationShowCmd represents the configuration show command
var configurationShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show configuration attributes and their sources",
	Long: `Show configuration attributes and their sources.

The values displayed by this command reflect the current state of the
configuration sources: the environment variables and config file. These may
not reflect the values used by a running server.

Config file location: /etc/datamapper/datamapper.yml (or DM_CONFIG_PATH)

Example:
  dmctl configuration show
  dmctl configuration show --output json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if output == "json" {
			jsonOutput, err := cfg.FormatJSON()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), jsonOutput)
			return nil
		}

		fmt.Fprint(cmd.OutOrStdout(), cfg.FormatText())
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "\nwarning: %v\n", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configurationCmd)
	configurationCmd.AddCommand(configurationShowCmd)
	configurationShowCmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
}
