package runner_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/memsim/datarecording"
	"github.com/sarchlab/memsim/mem"
	"github.com/sarchlab/memsim/mem/cache"
	"github.com/sarchlab/memsim/mem/hierarchy"
	"github.com/sarchlab/memsim/monitoring"
	"github.com/sarchlab/memsim/runner"
	"github.com/sarchlab/memsim/sim"
	"github.com/sarchlab/memsim/workload"
)

func smallConfig() hierarchy.Config {
	return hierarchy.Config{
		LineWidth: 64,
		StoreSize: 64 * mem.KB,
		Seed:      7,
		Levels: []hierarchy.LevelConfig{
			{SetCount: 2, TotalLines: 4, Policy: cache.LRU},
			{SetCount: 2, TotalLines: 16, Policy: cache.LRU},
		},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func randomAccesses(n int) []hierarchy.Access {
	accesses, err := workload.Generate(workload.Spec{
		Pattern:    workload.Random,
		Accesses:   n,
		Span:       8 * mem.KB,
		WriteRatio: 0.3,
		Seed:       11,
	})
	Expect(err).ToNot(HaveOccurred())

	return accesses
}

var _ = Describe("Runner", func() {
	var builder runner.Builder

	BeforeEach(func() {
		builder = runner.MakeBuilder().
			WithHierarchyConfig(smallConfig()).
			WithLogger(quietLogger())
	})

	It("should reject a non-positive tick size", func() {
		_, err := builder.WithAccessesPerTick(0).Build()

		Expect(err).To(MatchError(ContainSubstring("accesses per tick")))
	})

	It("should report invalid hierarchies", func() {
		c := smallConfig()
		c.Levels[0].SetCount = 3

		_, err := builder.WithHierarchyConfig(c).Build()

		Expect(err).To(HaveOccurred())
	})

	It("should issue every access in ticks", func() {
		r, err := builder.
			WithAccesses(randomAccesses(1000)).
			WithAccessesPerTick(300).
			WithRunID("run").
			Build()
		Expect(err).ToNot(HaveOccurred())

		report, err := r.Run(context.Background())
		Expect(err).ToNot(HaveOccurred())

		Expect(report.RunID).To(Equal("run"))
		Expect(report.Accesses).To(Equal(1000))
		Expect(report.Ticks).To(Equal(4))
		Expect(report.Levels).To(HaveLen(3))

		l1, ok := report.Level("L1")
		Expect(ok).To(BeTrue())
		Expect(l1.Policy).To(Equal("lru"))
		Expect(l1.Hits() + l1.Misses()).To(BeNumerically(">=", 1000))
		Expect(l1.HitRate).To(Equal(l1.Counters.HitRate()))

		_, ok = report.Level("L9")
		Expect(ok).To(BeFalse())
	})

	It("should leave no counts in the open interval", func() {
		r, err := builder.
			WithAccesses(randomAccesses(100)).
			WithAccessesPerTick(30).
			Build()
		Expect(err).ToNot(HaveOccurred())

		_, err = r.Run(context.Background())
		Expect(err).ToNot(HaveOccurred())

		for _, s := range r.Hierarchy().Stats() {
			Expect(s.Interval).To(Equal(mem.Counters{}))
		}
	})

	It("should reset the counters once before every tick", func() {
		var ticks []int
		hook := sim.HookAt(hierarchy.HookPosTick, func(ctx sim.HookCtx) {
			ticks = append(ticks, ctx.Item.(int))
		})

		r, err := builder.
			WithAccesses(randomAccesses(10)).
			WithAccessesPerTick(4).
			WithHook(hook).
			Build()
		Expect(err).ToNot(HaveOccurred())

		_, err = r.Run(context.Background())
		Expect(err).ToNot(HaveOccurred())

		Expect(ticks).To(Equal([]int{0, 1, 2}))
	})

	It("should stop when the context is cancelled", func() {
		r, err := builder.
			WithAccesses(randomAccesses(100)).
			WithAccessesPerTick(10).
			Build()
		Expect(err).ToNot(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		report, err := r.Run(ctx)

		Expect(err).To(MatchError(context.Canceled))
		Expect(report.Accesses).To(Equal(0))
	})

	It("should feed the future trace to clairvoyant caches", func() {
		c := smallConfig().WithPolicy(cache.Clairvoyant)
		accesses := randomAccesses(50)

		r, err := builder.
			WithHierarchyConfig(c).
			WithAccesses(accesses).
			Build()
		Expect(err).ToNot(HaveOccurred())

		_, err = r.Run(context.Background())
		Expect(err).ToNot(HaveOccurred())

		for _, c := range r.Hierarchy().Caches() {
			Expect(c.FutureAccesses()).To(Equal(workload.FutureTrace(accesses, 64)))
		}
		Expect(r.Hierarchy().Context().FutureCursor()).To(Equal(50))
	})

	It("should feed the future trace only once when a run resumes", func() {
		c := smallConfig().WithPolicy(cache.Clairvoyant)
		accesses := randomAccesses(50)

		r, err := builder.
			WithHierarchyConfig(c).
			WithAccesses(accesses).
			Build()
		Expect(err).ToNot(HaveOccurred())

		cancelled, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = r.Run(cancelled)
		Expect(err).To(MatchError(context.Canceled))

		report, err := r.Run(context.Background())
		Expect(err).ToNot(HaveOccurred())
		Expect(report.Accesses).To(Equal(50))

		for _, c := range r.Hierarchy().Caches() {
			Expect(c.FutureAccesses()).To(HaveLen(50))
		}
		Expect(r.Hierarchy().Context().FutureCursor()).To(Equal(50))
	})

	It("should show its progress on the monitor", func() {
		m := monitoring.NewMonitor()

		r, err := builder.
			WithAccesses(randomAccesses(20)).
			WithMonitor(m).
			Build()
		Expect(err).ToNot(HaveOccurred())

		_, err = r.Run(context.Background())
		Expect(err).ToNot(HaveOccurred())
	})
})

var _ = Describe("Compare", func() {
	It("should run every policy over the same accesses", func() {
		b := runner.MakeBuilder().
			WithHierarchyConfig(smallConfig()).
			WithAccesses(randomAccesses(2000)).
			WithAccessesPerTick(500).
			WithLogger(quietLogger())

		reports, err := runner.Compare(context.Background(), b,
			cache.AllPolicies())
		Expect(err).ToNot(HaveOccurred())
		Expect(reports).To(HaveLen(5))

		l1Hits := make(map[string]uint64)
		for _, report := range reports {
			l1, _ := report.Level("L1")
			Expect(l1.Policy).To(Equal(report.RunID))
			l1Hits[report.RunID] = l1.Hits()
		}

		Expect(l1Hits["clairvoyant"]).To(BeNumerically(">=", l1Hits["lru"]))
		Expect(l1Hits["clairvoyant"]).To(BeNumerically(">=", l1Hits["random"]))
	})
})

var _ = Describe("Recorded reports", func() {
	It("should rebuild the cumulative counters of every run", func() {
		recorder := datarecording.New(
			filepath.Join(GinkgoT().TempDir(), "compare"))
		DeferCleanup(recorder.Close)

		b := runner.MakeBuilder().
			WithHierarchyConfig(smallConfig()).
			WithAccesses(randomAccesses(600)).
			WithAccessesPerTick(100).
			WithDataRecorder(recorder, false).
			WithLogger(quietLogger())

		reports, err := runner.Compare(context.Background(), b,
			[]cache.Policy{cache.LRU, cache.LFU})
		Expect(err).ToNot(HaveOccurred())

		reader, err := datarecording.NewReader(recorder.Path())
		Expect(err).ToNot(HaveOccurred())
		DeferCleanup(reader.Close)

		loaded, err := runner.LoadReports(context.Background(), reader)
		Expect(err).ToNot(HaveOccurred())
		Expect(loaded).To(HaveLen(2))

		for i, runID := range []string{"lfu", "lru"} {
			Expect(loaded[i].RunID).To(Equal(runID))
			Expect(loaded[i].Ticks).To(Equal(6))
		}

		lru, _ := loaded[1].Level("L1")
		expected, _ := reports[0].Level("L1")
		Expect(lru.Counters).To(Equal(expected.Counters))
		Expect(loaded[1].Levels).To(HaveLen(3))
		Expect(loaded[1].Levels[2].Name).To(Equal("DRAM"))
	})
})

var _ = Describe("Recorded reports without ticks", func() {
	It("should fail on a database without tick records", func() {
		type note struct{ Text string }

		recorder := datarecording.New(
			filepath.Join(GinkgoT().TempDir(), "notes"))
		recorder.CreateTable("notes", note{})
		Expect(recorder.Close()).To(Succeed())

		reader, err := datarecording.NewReader(recorder.Path())
		Expect(err).ToNot(HaveOccurred())
		DeferCleanup(reader.Close)

		_, err = runner.LoadReports(context.Background(), reader)
		Expect(err).To(MatchError(ContainSubstring("level_ticks")))
	})
})
