package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/lenscan/lenscan/internal/lens"
)

var lensCmd = &cobra.Command{
	Use:   "lens",
	Short: "Inspect and validate lens documents",
}

// lensValidateCmd runs the full validation pass and reports every
// problem, not just the first one.
var lensValidateCmd = &cobra.Command{
	Use:   "validate <path>",
	Short: "Validate a lens document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := buildConfig()
		registry, err := buildRegistry(cfg)
		if err != nil {
			return err
		}
		contract, err := lens.LoadFile(args[0], registry.IDs())
		if err != nil {
			var cfgErr *lens.ConfigError
			if errors.As(err, &cfgErr) {
				fmt.Fprintf(os.Stderr, "%s: %d problem(s)\n", cfgErr.Source, len(cfgErr.Problems))
				for _, p := range cfgErr.Problems {
					fmt.Fprintf(os.Stderr, "  - %s\n", p)
				}
				return fmt.Errorf("lens document is invalid")
			}
			return err
		}
		fmt.Printf("%s: valid\n", args[0])
		fmt.Printf("  dimensions: %v\n", contract.DimensionNames())
		fmt.Printf("  modules:    %v\n", contract.ModuleNames())
		fmt.Printf("  hash:       %s\n", contract.Hash())
		return nil
	},
}

// lensShowCmd prints a readable summary of the parsed contract.
var lensShowCmd = &cobra.Command{
	Use:   "show <path>",
	Short: "Show the parsed contents of a lens document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := buildConfig()
		registry, err := buildRegistry(cfg)
		if err != nil {
			return err
		}
		contract, err := lens.LoadFile(args[0], registry.IDs())
		if err != nil {
			return err
		}
		fmt.Printf("Lens: %s\n", contract.Name)
		fmt.Printf("Hash: %s\n\n", contract.Hash())
		fmt.Printf("Vocabulary (%d groups):\n", len(contract.Vocabulary))
		for _, group := range sortedKeys(contract.Vocabulary) {
			fmt.Printf("  %-20s %d terms\n", group, len(contract.Vocabulary[group]))
		}
		fmt.Printf("\nConnector rules (%d):\n", len(contract.ConnectorRules))
		for _, rule := range contract.ConnectorRules {
			fmt.Printf("  %-20s priority %d, %d trigger(s)\n", rule.Connector, rule.Priority, len(rule.Triggers))
		}
		fmt.Printf("\nDimensions: %v\n", contract.DimensionNames())
		fmt.Printf("Modules:    %v\n", contract.ModuleNames())
		fmt.Printf("Mapping rules: %d\n", len(contract.MappingRules))
		return nil
	},
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// lensHashCmd prints the content hash alone, for change detection in
// scripts.
var lensHashCmd = &cobra.Command{
	Use:   "hash <path>",
	Short: "Print the content hash of a lens document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := buildConfig()
		registry, err := buildRegistry(cfg)
		if err != nil {
			return err
		}
		contract, err := lens.LoadFile(args[0], registry.IDs())
		if err != nil {
			return err
		}
		fmt.Println(contract.Hash())
		return nil
	},
}

func init() {
	lensCmd.AddCommand(lensValidateCmd)
	lensCmd.AddCommand(lensShowCmd)
	lensCmd.AddCommand(lensHashCmd)
	rootCmd.AddCommand(lensCmd)
}
