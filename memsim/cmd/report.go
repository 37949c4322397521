package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sarchlab/memsim/datarecording"
	"github.com/sarchlab/memsim/runner"
)

var reportCmd = &cobra.Command{
	Use:   "report <database>",
	Short: "Summarize the runs recorded in a database.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reader, err := datarecording.NewReader(args[0])
		if err != nil {
			return err
		}
		defer reader.Close()

		reports, err := runner.LoadReports(cmd.Context(), reader)
		if err != nil {
			return err
		}

		return printReports(cmd, reports)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}
