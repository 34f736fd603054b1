package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a feature flag",
	Long: `Delete a feature flag. Deleting a flag that does not exist succeeds.

Examples:
  flaglab delete old-feature --env prod`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		c, err := newClient()
		if err != nil {
			return err
		}

		if err := c.DeleteFlag(context.Background(), name); err != nil {
			return fmt.Errorf("failed to delete flag: %w", err)
		}

		if !quiet {
			fmt.Printf("Deleted flag '%s'\n", name)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
