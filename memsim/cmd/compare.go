package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sarchlab/memsim/mem/cache"
	"github.com/sarchlab/memsim/runner"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Run the same workload under several eviction policies.",
	Long: "`compare` runs the configured workload once per eviction policy, " +
		"with every level switched to that policy, and prints the results " +
		"side by side.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		policies, err := comparedPolicies(cmd)
		if err != nil {
			return err
		}

		b, cleanup, err := prepare(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		reports, err := runner.Compare(cmd.Context(), b, policies)
		if err != nil {
			return err
		}

		return printReports(cmd, reports)
	},
}

func init() {
	rootCmd.AddCommand(compareCmd)
	addSimulationFlags(compareCmd)
	compareCmd.Flags().StringSlice("policies", nil,
		"policies to compare (default all)")
}

func comparedPolicies(cmd *cobra.Command) ([]cache.Policy, error) {
	names, _ := cmd.Flags().GetStringSlice("policies")
	if len(names) == 0 {
		return cache.AllPolicies(), nil
	}

	policies := make([]cache.Policy, 0, len(names))
	for _, name := range names {
		p, err := cache.ParsePolicy(name)
		if err != nil {
			return nil, err
		}

		policies = append(policies, p)
	}

	return policies, nil
}
