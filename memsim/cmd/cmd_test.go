package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sarchlab/memsim/runner"
)

// resetFlags restores every flag to its default so that each execution of
// the shared root command starts clean.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if s, ok := f.Value.(pflag.SliceValue); ok {
			Expect(s.Replace(nil)).To(Succeed())
		} else {
			Expect(f.Value.Set(f.DefValue)).To(Succeed())
		}

		f.Changed = false
	}

	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)

	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(args ...string) (string, error) {
	resetFlags(rootCmd)

	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()

	return out.String(), err
}

func decodeReports(out string) []runner.Report {
	var reports []runner.Report
	Expect(json.Unmarshal([]byte(out), &reports)).To(Succeed())

	return reports
}

var _ = Describe("Commands", func() {
	It("should print the version", func() {
		out, err := execute("version")

		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(HavePrefix("memsim "))
	})

	It("should run a workload", func() {
		out, err := execute("run", "--json", "--log-level", "error",
			"--accesses", "2000", "--policy", "plru")
		Expect(err).ToNot(HaveOccurred())

		reports := decodeReports(out)
		Expect(reports).To(HaveLen(1))
		Expect(reports[0].Accesses).To(Equal(2000))
		Expect(reports[0].Levels).To(HaveLen(4))
		Expect(reports[0].Levels[0].Policy).To(Equal("plru"))
	})

	It("should print a table", func() {
		out, err := execute("run", "--log-level", "error",
			"--accesses", "2000", "--policy", "lru")

		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(ContainSubstring("HIT RATE"))
		Expect(out).To(ContainSubstring("DRAM"))
	})

	It("should reject unknown policies", func() {
		_, err := execute("compare", "--log-level", "error",
			"--policies", "fifo")

		Expect(err).To(MatchError(ContainSubstring("fifo")))
	})

	It("should reject bad log levels", func() {
		_, err := execute("run", "--log-level", "loud",
			"--accesses", "2000", "--policy", "lru")

		Expect(err).To(MatchError(ContainSubstring("log level")))
	})

	It("should compare policies and report recorded runs", func() {
		db := filepath.Join(GinkgoT().TempDir(), "runs")

		out, err := execute("compare", "--json", "--log-level", "error",
			"--accesses", "2000", "--policies", "lru,lfu",
			"--record-path", db)
		Expect(err).ToNot(HaveOccurred())

		compared := decodeReports(out)
		Expect(compared).To(HaveLen(2))
		Expect(compared[0].RunID).To(Equal("lru"))
		Expect(compared[1].RunID).To(Equal("lfu"))

		out, err = execute("report", "--json", db+".sqlite3")
		Expect(err).ToNot(HaveOccurred())

		loaded := decodeReports(out)
		Expect(loaded).To(HaveLen(2))
		Expect(loaded[1].RunID).To(Equal("lru"))
		Expect(loaded[1].Levels[0].Counters).
			To(Equal(compared[0].Levels[0].Counters))
	})
})
