package commands

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mkorzun/flaglab/internal/cli"
	"github.com/mkorzun/flaglab/internal/compose"
	"github.com/mkorzun/flaglab/internal/resolver"
)

var (
	evalMode string
	evalFlat bool
)

var evalCmd = &cobra.Command{
	Use:   "eval <name>...",
	Short: "Evaluate feature flags",
	Long: `Evaluate one or more flags the way the embedded engine does:
dotted names check their parent first, and a disabled parent short-circuits
the child. With --mode the flags are composed into a single result.

Examples:
  flaglab eval events.creation
  flaglab eval events billing promo --mode any
  flaglab eval events.creation --flat`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if evalMode != "" && evalMode != string(compose.ModeAll) && evalMode != string(compose.ModeAny) {
			return fmt.Errorf("invalid mode '%s': must be 'all' or 'any'", evalMode)
		}

		c, err := newClient()
		if err != nil {
			return err
		}

		log := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)
		res, cache := resolver.New(c, 0, nil, log)
		ctx := context.Background()

		if evalMode != "" {
			result, err := compose.Evaluate(ctx, res, cache, args, compose.Mode(evalMode), !evalFlat, log)
			if err != nil {
				return fmt.Errorf("failed to compose flags: %w", err)
			}
			if quiet {
				return nil
			}

			names := make([]string, 0, len(result.Flags))
			for name := range result.Flags {
				names = append(names, name)
			}
			sort.Strings(names)
			results := make([]resolver.Result, 0, len(names))
			for _, name := range names {
				results = append(results, resolver.Result{Name: name, Enabled: result.Flags[name]})
			}
			if err := cli.PrintResults(results, cli.OutputFormat(format)); err != nil {
				return err
			}
			fmt.Printf("Composed (%s): %v\n", evalMode, result.Enabled)
			return nil
		}

		results := make([]resolver.Result, 0, len(args))
		for _, name := range args {
			var (
				r    resolver.Result
				rerr error
			)
			if evalFlat {
				r, rerr = res.ResolveFlat(ctx, name)
			} else {
				r, rerr = res.Resolve(ctx, name)
			}
			if rerr != nil {
				return fmt.Errorf("failed to evaluate %s: %w", name, rerr)
			}
			results = append(results, r)
		}

		if !quiet {
			return cli.PrintResults(results, cli.OutputFormat(format))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(evalCmd)

	evalCmd.Flags().StringVar(&evalMode, "mode", "", "Compose flags into one result (all, any)")
	evalCmd.Flags().BoolVar(&evalFlat, "flat", false, "Skip parent-child hierarchy")
}
