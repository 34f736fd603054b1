package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/mkorzun/flaglab/internal/experiment"
	"github.com/mkorzun/flaglab/internal/resolver"
	"github.com/mkorzun/flaglab/internal/store"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// PrintFlags outputs flags in the specified format
func PrintFlags(flags []store.Flag, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(flags)
	case FormatYAML:
		return printYAML(flags)
	case FormatTable:
		return printFlagTable(flags)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintFlag outputs a single flag in the specified format
func PrintFlag(flag *store.Flag, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(flag)
	case FormatYAML:
		return printYAML(flag)
	case FormatTable:
		return printFlagTable([]store.Flag{*flag})
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintResults outputs resolution results in the specified format
func PrintResults(results []resolver.Result, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(results)
	case FormatYAML:
		return printYAML(results)
	case FormatTable:
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Name", "Enabled", "Reason"})
		for _, r := range results {
			table.Append([]string{r.Name, strconv.FormatBool(r.Enabled), r.Reason})
		}
		table.Render()
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintStatistics outputs per-variant experiment statistics
func PrintStatistics(stats *experiment.Statistics, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(stats)
	case FormatYAML:
		return printYAML(stats)
	case FormatTable:
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Variant", "Views", "Conversions", "Rate"})
		for _, v := range stats.Variants {
			table.Append([]string{
				v.Variant,
				strconv.FormatInt(v.Views, 10),
				strconv.FormatInt(v.Conversions, 10),
				fmt.Sprintf("%.2f%%", v.ConversionRate*100),
			})
		}
		table.Render()
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// Print encodes arbitrary data as JSON or YAML for commands without a
// tabular shape.
func Print(data interface{}, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(data)
	case FormatYAML:
		return printYAML(data)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printJSON(data interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	// Wrap slices of store.Flag in a "flags" key for consistency with the API
	if flags, ok := data.([]store.Flag); ok {
		return encoder.Encode(map[string][]store.Flag{"flags": flags})
	}
	return encoder.Encode(data)
}

func printYAML(data interface{}) error {
	encoder := yaml.NewEncoder(os.Stdout)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}

func printFlagTable(flags []store.Flag) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Name", "Enabled", "Description", "Updated At"})

	for _, flag := range flags {
		description := flag.Description
		if len(description) > 40 {
			description = description[:37] + "..."
		}
		table.Append([]string{
			flag.Name,
			strconv.FormatBool(flag.Enabled),
			description,
			flag.UpdatedAt.Format("2006-01-02 15:04"),
		})
	}

	table.Render()
	return nil
}
