package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/memsim/runner"
)

func printReports(cmd *cobra.Command, reports []runner.Report) error {
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")

		return encoder.Encode(reports)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w,
		"RUN\tLEVEL\tPOLICY\tREAD HIT\tREAD MISS\tWRITE HIT\tWRITE MISS\tHIT RATE\t")

	for _, r := range reports {
		for _, l := range r.Levels {
			policy := l.Policy
			if policy == "" {
				policy = "-"
			}

			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%.2f%%\t\n",
				r.RunID, l.Name, policy,
				l.ReadHit, l.ReadMiss, l.WriteHit, l.WriteMiss,
				100*l.HitRate)
		}
	}

	return w.Flush()
}
