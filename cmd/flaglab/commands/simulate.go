package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mkorzun/flaglab/internal/cli"
	"github.com/mkorzun/flaglab/internal/experiment"
	"github.com/mkorzun/flaglab/internal/kv"
)

var (
	simulateVariants  string
	simulateWeights   []float64
	simulateUsers     int
	simulateConvRates []float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <experiment>",
	Short: "Simulate an experiment's traffic split",
	Long: `Simulate deterministic variant assignment for an experiment without
touching any persisted state. Useful for sanity-checking a split before
rolling it out: the same user keys always land in the same variants.

Examples:
  flaglab simulate checkout-test --variants control,treatment --users 1000
  flaglab simulate pricing --variants a,b,c --weights 0.5,0.3,0.2 --users 5000`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		names := strings.Split(simulateVariants, ",")
		if len(names) == 0 || simulateVariants == "" {
			return fmt.Errorf("--variants is required")
		}
		if simulateUsers <= 0 {
			return fmt.Errorf("--users must be positive")
		}

		split := experiment.SplitEqual
		variants := make([]experiment.Variant, len(names))
		for i, n := range names {
			variants[i] = experiment.Variant{Name: strings.TrimSpace(n)}
		}
		if len(simulateWeights) > 0 {
			if len(simulateWeights) != len(variants) {
				return fmt.Errorf("got %d weights for %d variants", len(simulateWeights), len(variants))
			}
			split = experiment.SplitWeighted
			for i := range variants {
				variants[i].Weight = simulateWeights[i]
			}
		}

		log := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)
		eng, err := experiment.NewEngine(context.Background(), kv.NewMemoryStore(), nil, log)
		if err != nil {
			return fmt.Errorf("failed to create experiment engine: %w", err)
		}

		exp, err := eng.CreateExperiment(name, variants, split)
		if err != nil {
			return fmt.Errorf("failed to create experiment: %w", err)
		}

		if len(simulateConvRates) > 0 && len(simulateConvRates) != len(variants) {
			return fmt.Errorf("got %d conversion rates for %d variants", len(simulateConvRates), len(variants))
		}
		rateByVariant := make(map[string]float64, len(variants))
		for i, v := range variants {
			if len(simulateConvRates) > 0 {
				rateByVariant[v.Name] = simulateConvRates[i]
			}
		}

		ctx := context.Background()
		counts := make(map[string]int, len(exp.Variants))
		conversions := make(map[string]int, len(exp.Variants))
		for i := 0; i < simulateUsers; i++ {
			variant, err := eng.GetUserVariant(ctx, name, fmt.Sprintf("user-%d", i))
			if err != nil {
				return fmt.Errorf("failed to assign user: %w", err)
			}
			counts[variant.Name]++

			if len(simulateConvRates) > 0 {
				if err := eng.TrackView(name, variant.Name); err != nil {
					return fmt.Errorf("failed to track view: %w", err)
				}
				// convert a deterministic share of each variant's users
				if float64(conversions[variant.Name]) < rateByVariant[variant.Name]*float64(counts[variant.Name]) {
					if err := eng.TrackConversion(name, variant.Name, 1); err != nil {
						return fmt.Errorf("failed to track conversion: %w", err)
					}
					conversions[variant.Name]++
				}
			}
		}

		if quiet {
			return nil
		}
		if cli.OutputFormat(format) != cli.FormatTable {
			type row struct {
				Variant string  `json:"variant" yaml:"variant"`
				Users   int     `json:"users" yaml:"users"`
				Share   float64 `json:"share" yaml:"share"`
			}
			rows := make([]row, 0, len(exp.Variants))
			for _, v := range exp.Variants {
				rows = append(rows, row{
					Variant: v.Name,
					Users:   counts[v.Name],
					Share:   float64(counts[v.Name]) / float64(simulateUsers),
				})
			}
			return cli.Print(rows, cli.OutputFormat(format))
		}

		fmt.Printf("Simulated %d users over %d variants (%s split):\n", simulateUsers, len(exp.Variants), split)
		for _, v := range exp.Variants {
			share := float64(counts[v.Name]) / float64(simulateUsers) * 100
			fmt.Printf("  %-20s %6d users  %5.1f%%\n", v.Name, counts[v.Name], share)
		}

		if len(simulateConvRates) > 0 {
			stats, err := eng.Statistics(name)
			if err != nil {
				return fmt.Errorf("failed to compute statistics: %w", err)
			}
			fmt.Println()
			return cli.PrintStatistics(stats, cli.FormatTable)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().StringVar(&simulateVariants, "variants", "", "Comma-separated variant names (required)")
	simulateCmd.Flags().Float64SliceVar(&simulateWeights, "weights", nil, "Variant weights summing to 1.0 (defaults to an equal split)")
	simulateCmd.Flags().IntVar(&simulateUsers, "users", 1000, "Number of simulated users")
	simulateCmd.Flags().Float64SliceVar(&simulateConvRates, "conversion-rates", nil, "Per-variant conversion rates to simulate tracking with")
	_ = simulateCmd.MarkFlagRequired("variants")
}
