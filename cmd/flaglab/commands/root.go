package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkorzun/flaglab/internal/cli"
	"github.com/mkorzun/flaglab/internal/client"
)

var (
	// Global flags
	baseURL string
	apiKey  string
	env     string
	format  string
	quiet   bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "flaglab",
	Short: "CLI tool for feature flags and experiments",
	Long: `Flaglab is a command-line tool for managing feature flags in the
flaglab service and for evaluating them the way the embedded engine does.

It provides commands for creating, reading, updating and deleting flags,
for resolving flags with parent-child hierarchy and composition, and for
simulating experiment traffic splits.

Examples:
  flaglab list --env prod
  flaglab create events.creation --enabled --env prod
  flaglab get events.creation --env prod
  flaglab eval events.creation billing --mode all
  flaglab simulate checkout-test --variants control,treatment --users 1000`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base URL of the flaglab API")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key for authentication")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "Environment (dev, staging, prod)")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress output")
}

// newClient builds an API client from the effective environment config.
func newClient() (*client.Client, error) {
	envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return client.NewClient(envCfg.BaseURL, envCfg.APIKey), nil
}
