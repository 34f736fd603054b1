package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkorzun/flaglab/internal/cli"
)

var getCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Get a feature flag",
	Long: `Get details of a specific feature flag.

Examples:
  flaglab get events.creation --env prod
  flaglab get events.creation --env prod --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		c, err := newClient()
		if err != nil {
			return err
		}

		flag, err := c.GetFlag(context.Background(), name)
		if err != nil {
			return fmt.Errorf("failed to get flag: %w", err)
		}

		if !quiet {
			return cli.PrintFlag(flag, cli.OutputFormat(format))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
