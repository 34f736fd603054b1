package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkorzun/flaglab/internal/cli"
	"github.com/mkorzun/flaglab/internal/store"
)

var (
	createEnabled     bool
	createDescription string
)

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new feature flag",
	Long: `Create a new feature flag with the specified name and options.
Dotted names form a hierarchy: "events.creation" is a child of "events".

Examples:
  flaglab create events --enabled --env prod
  flaglab create events.creation --description "Event creation form"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		c, err := newClient()
		if err != nil {
			return err
		}

		flag, err := c.CreateFlag(context.Background(), store.UpsertParams{
			Name:        name,
			Description: createDescription,
			Enabled:     createEnabled,
		})
		if err != nil {
			return fmt.Errorf("failed to create flag: %w", err)
		}

		if !quiet {
			return cli.PrintFlag(flag, cli.OutputFormat(format))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().BoolVar(&createEnabled, "enabled", false, "Enable the flag")
	createCmd.Flags().StringVar(&createDescription, "description", "", "Flag description")
}
