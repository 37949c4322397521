// Package cmd provides the command-line interface of memsim.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/memsim/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "memsim",
	Short: "memsim simulates a multi-level cache hierarchy.",
	Long: `memsim runs memory access workloads on a hierarchy of ` +
		`set-associative caches over a DRAM store and reports the hits and ` +
		`misses of every level under different eviction policies.`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "YAML configuration file")
	flags.StringSlice("env-file", nil,
		"files of MEMSIM_ variables to load (default .env if present)")
	flags.String("log-level", "info", "debug, info, warn, or error")
	flags.Bool("json", false, "print reports as JSON")
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	levelName, _ := cmd.Flags().GetString("log-level")

	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", levelName)
	}

	handler := slog.NewTextHandler(cmd.ErrOrStderr(),
		&slog.HandlerOptions{Level: level})

	return slog.New(handler), nil
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	envFiles, _ := cmd.Flags().GetStringSlice("env-file")

	c, err := config.Load(path, envFiles...)
	if err != nil {
		return config.Config{}, err
	}

	if err := applyFlags(cmd, &c); err != nil {
		return config.Config{}, err
	}

	return c, c.Validate()
}

// applyFlags overrides the loaded configuration with the flags that were set
// on the command line.
func applyFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()

	targets := map[string]any{
		"seed":            &c.Seed,
		"policy":          &c.Policy,
		"pattern":         &c.Workload.Pattern,
		"accesses":        &c.Workload.Accesses,
		"trace-file":      &c.Workload.TraceFile,
		"record":          &c.Record.Enabled,
		"record-path":     &c.Record.Path,
		"record-accesses": &c.Record.Accesses,
		"monitor":         &c.Monitor.Enabled,
		"monitor-port":    &c.Monitor.Port,
		"open-browser":    &c.Monitor.OpenBrowser,
	}

	for name, target := range targets {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			continue
		}

		var err error

		switch t := target.(type) {
		case *int64:
			*t, err = flags.GetInt64(name)
		case *int:
			*t, err = flags.GetInt(name)
		case *string:
			*t, err = flags.GetString(name)
		case *bool:
			*t, err = flags.GetBool(name)
		}

		if err != nil {
			return err
		}
	}

	if flags.Lookup("record-path") != nil && flags.Changed("record-path") {
		c.Record.Enabled = true
	}

	return nil
}

// addSimulationFlags registers the flags shared by the commands that run
// simulations.
func addSimulationFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.Int64("seed", 0, "seed of the random policy and workload")
	flags.String("pattern", "", "workload pattern: sequential, strided, "+
		"random, hashed, or transpose")
	flags.Int("accesses", 0, "number of generated accesses")
	flags.String("trace-file", "", "read the accesses from a trace file")
	flags.Bool("record", false, "record per-tick counters into SQLite")
	flags.String("record-path", "", "database name, implies --record")
	flags.Bool("record-accesses", false, "also record every access")
	flags.Bool("monitor", false, "serve the web monitor while running")
	flags.Int("monitor-port", 0, "port of the web monitor")
	flags.Bool("open-browser", false, "open the web monitor in a browser")
	flags.Bool("trace", false, "print every access and tick to stderr")
}
