package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkorzun/flaglab/internal/cli"
	"github.com/mkorzun/flaglab/internal/store"
)

var (
	updateEnabled     bool
	updateDisabled    bool
	updateDescription string
)

var updateCmd = &cobra.Command{
	Use:   "update <name>",
	Short: "Update a feature flag",
	Long: `Update the enabled state and description of an existing flag.

Examples:
  flaglab update events --enabled
  flaglab update events.creation --disabled --description "Paused for incident"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		if updateEnabled && updateDisabled {
			return fmt.Errorf("--enabled and --disabled are mutually exclusive")
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		ctx := context.Background()

		// Start from the current definition so an update that only sets
		// --description doesn't silently disable the flag.
		current, err := c.GetFlag(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to get flag: %w", err)
		}

		params := store.UpsertParams{
			Name:        name,
			Description: current.Description,
			Enabled:     current.Enabled,
		}
		if cmd.Flags().Changed("description") {
			params.Description = updateDescription
		}
		if updateEnabled {
			params.Enabled = true
		}
		if updateDisabled {
			params.Enabled = false
		}

		flag, err := c.UpdateFlag(ctx, params)
		if err != nil {
			return fmt.Errorf("failed to update flag: %w", err)
		}

		if !quiet {
			return cli.PrintFlag(flag, cli.OutputFormat(format))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)

	updateCmd.Flags().BoolVar(&updateEnabled, "enabled", false, "Enable the flag")
	updateCmd.Flags().BoolVar(&updateDisabled, "disabled", false, "Disable the flag")
	updateCmd.Flags().StringVar(&updateDescription, "description", "", "Flag description")
}
