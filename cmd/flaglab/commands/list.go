package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkorzun/flaglab/internal/cli"
)

var listStatus string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List feature flags",
	Long: `List feature flags, optionally filtered by status.

Examples:
  flaglab list --env prod
  flaglab list --status enabled --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if listStatus != "" && listStatus != "enabled" && listStatus != "disabled" {
			return fmt.Errorf("invalid status '%s': must be 'enabled' or 'disabled'", listStatus)
		}

		c, err := newClient()
		if err != nil {
			return err
		}

		flags, err := c.ListFlags(context.Background(), listStatus)
		if err != nil {
			return fmt.Errorf("failed to list flags: %w", err)
		}

		if !quiet {
			return cli.PrintFlags(flags, cli.OutputFormat(format))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status (enabled, disabled)")
}
