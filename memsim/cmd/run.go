package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/memsim/config"
	"github.com/sarchlab/memsim/datarecording"
	"github.com/sarchlab/memsim/mem/trace"
	"github.com/sarchlab/memsim/monitoring"
	"github.com/sarchlab/memsim/runner"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a workload on the memory hierarchy.",
	Long: "`run` issues the configured workload to the hierarchy and prints " +
		"the hits and misses of every level.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		b, cleanup, err := prepare(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		r, err := b.Build()
		if err != nil {
			return err
		}

		report, err := r.Run(cmd.Context())
		if err != nil {
			return err
		}

		return printReports(cmd, []runner.Report{report})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	addSimulationFlags(runCmd)
	runCmd.Flags().String("policy", "",
		"use this eviction policy on every level")
}

// prepare builds a runner builder from the configuration and attaches the
// recorder, monitor, and tracer that the configuration asks for. The
// cleanup function releases them.
func prepare(cmd *cobra.Command) (runner.Builder, func(), error) {
	c, err := loadConfig(cmd)
	if err != nil {
		return runner.Builder{}, nil, err
	}

	logger, err := newLogger(cmd)
	if err != nil {
		return runner.Builder{}, nil, err
	}

	h, err := c.Hierarchy()
	if err != nil {
		return runner.Builder{}, nil, err
	}

	accesses, err := c.Accesses()
	if err != nil {
		return runner.Builder{}, nil, err
	}

	b := runner.MakeBuilder().
		WithHierarchyConfig(h).
		WithAccesses(accesses).
		WithAccessesPerTick(c.Workload.AccessesPerTick).
		WithLogger(logger)

	b, cleanup := instrument(cmd, b, c)

	return b, cleanup, nil
}

func instrument(
	cmd *cobra.Command,
	b runner.Builder,
	c config.Config,
) (runner.Builder, func()) {
	var cleanups []func()

	if traceOn, _ := cmd.Flags().GetBool("trace"); traceOn {
		logger := log.New(os.Stderr, "", 0)
		b = b.WithHook(trace.NewTracer(logger))
	}

	if c.Record.Enabled {
		recorder := datarecording.New(c.Record.Path)
		b = b.WithDataRecorder(recorder, c.Record.Accesses)

		cleanups = append(cleanups, func() {
			if err := recorder.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Cannot close %s: %s\n",
					recorder.Path(), err)
			}
		})
	}

	if c.Monitor.Enabled {
		m := monitoring.NewMonitor().
			WithPortNumber(c.Monitor.Port).
			WithBrowser(c.Monitor.OpenBrowser)
		m.StartServer()
		b = b.WithMonitor(m)

		cleanups = append(cleanups, func() {
			if err := m.StopServer(); err != nil {
				fmt.Fprintf(os.Stderr, "Cannot stop monitor: %s\n", err)
			}
		})
	}

	return b, func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
}
