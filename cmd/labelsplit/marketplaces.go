package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jackzampolin/labelsplit/internal/marketplace"
	"github.com/jackzampolin/labelsplit/internal/output"
)

var marketplacesCmd = &cobra.Command{
	Use:     "marketplaces",
	Aliases: []string{"mp"},
	Short:   "Inspect marketplace pattern definitions",
	Long: `Inspect the pattern definitions that tell labelsplit how to find order
keys, AWB numbers and line items for each marketplace.

Built-in definitions can be overridden field by field under "marketplaces:"
in the config file. A new marketplace needs at least order_patterns and
columns.

Examples:
  labelsplit marketplaces list -o table
  labelsplit marketplaces show meesho
  labelsplit marketplaces validate ./ajio.yaml`,
}

// marketplaceSummary is one row of the list command.
type marketplaceSummary struct {
	Name       string  `json:"name" yaml:"name"`
	Builtin    bool    `json:"builtin" yaml:"builtin"`
	Overridden bool    `json:"overridden" yaml:"overridden"`
	Patterns   int     `json:"order_patterns" yaml:"order_patterns"`
	SplitRatio float64 `json:"split_ratio,omitempty" yaml:"split_ratio,omitempty"`
}

type marketplaceList []marketplaceSummary

func (l marketplaceList) Header() []string {
	return []string{"name", "builtin", "overridden", "order_patterns", "split_ratio"}
}

func (l marketplaceList) Rows() [][]string {
	rows := make([][]string, len(l))
	for i, m := range l {
		rows[i] = []string{
			m.Name,
			strconv.FormatBool(m.Builtin),
			strconv.FormatBool(m.Overridden),
			strconv.Itoa(m.Patterns),
			strconv.FormatFloat(m.SplitRatio, 'f', -1, 64),
		}
	}
	return rows
}

var marketplacesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known marketplaces",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, overrides, err := loadRegistry()
		if err != nil {
			return err
		}

		var list marketplaceList
		for _, name := range reg.Names() {
			def, err := reg.Definition(name)
			if err != nil {
				return err
			}
			_, builtin := marketplace.Builtin(name)
			_, overridden := overrides[name]
			list = append(list, marketplaceSummary{
				Name:       name,
				Builtin:    builtin,
				Overridden: overridden,
				Patterns:   len(def.OrderPatterns),
				SplitRatio: def.SplitRatio,
			})
		}
		return output.Print(list)
	},
}

var marketplacesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print the effective definition of a marketplace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, _, err := loadRegistry()
		if err != nil {
			return err
		}
		// Compile so that a broken override is reported here
		if _, err := reg.Get(args[0]); err != nil {
			return err
		}
		def, err := reg.Definition(args[0])
		if err != nil {
			return err
		}
		return output.Print(def)
	},
}

var marketplacesValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a marketplace definition file (YAML or JSON)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read definition: %w", err)
		}
		var def marketplace.Definition
		if err := yaml.Unmarshal(data, &def); err != nil {
			return fmt.Errorf("failed to parse definition: %w", err)
		}
		if base, ok := marketplace.Builtin(strings.ToLower(def.Name)); ok {
			def = marketplace.Merge(base, def)
		}
		if _, err := marketplace.Compile(def); err != nil {
			return err
		}
		fmt.Printf("%s: ok\n", args[0])
		return nil
	},
}

// loadRegistry builds the registry from the config file overrides.
func loadRegistry() (*marketplace.Registry, map[string]marketplace.Definition, error) {
	h, err := getHome()
	if err != nil {
		return nil, nil, err
	}
	mgr, err := loadConfig(h)
	if err != nil {
		return nil, nil, err
	}
	overrides := make(map[string]marketplace.Definition)
	for name, def := range mgr.Get().Marketplaces {
		overrides[strings.ToLower(name)] = def
	}
	return marketplace.NewRegistry(overrides), overrides, nil
}

func init() {
	marketplacesCmd.AddCommand(marketplacesListCmd)
	marketplacesCmd.AddCommand(marketplacesShowCmd)
	marketplacesCmd.AddCommand(marketplacesValidateCmd)
	rootCmd.AddCommand(marketplacesCmd)
}
