// Package runner drives a memory hierarchy with a workload, one tick of
// accesses at a time, and reports the resulting hit and miss counters.
package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sarchlab/memsim/datarecording"
	"github.com/sarchlab/memsim/mem/cache"
	"github.com/sarchlab/memsim/mem/hierarchy"
	"github.com/sarchlab/memsim/monitoring"
	"github.com/sarchlab/memsim/workload"
)

// A Runner issues a list of accesses to a hierarchy. The accesses are
// grouped into ticks; the counters of the hierarchy are reset before the
// accesses of every tick and once more after the last tick.
type Runner struct {
	lock sync.Mutex

	hierarchy       *hierarchy.Hierarchy
	accesses        []hierarchy.Access
	accessesPerTick int
	runID           string
	recorder        datarecording.DataRecorder
	monitor         *monitoring.Monitor
	logger          *slog.Logger

	issued   int
	ticks    int
	prepared bool
}

// Hierarchy returns the hierarchy driven by the runner.
func (r *Runner) Hierarchy() *hierarchy.Hierarchy {
	return r.hierarchy
}

// RunID returns the ID of the run.
func (r *Runner) RunID() string {
	return r.runID
}

// Run issues all the accesses. It stops early, returning the partial
// report and the context error, if the context is cancelled between ticks.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	start := time.Now()

	r.prepareClairvoyantCaches()

	var bar *monitoring.ProgressBar
	if r.monitor != nil {
		bar = r.monitor.CreateProgressBar(
			"Run "+r.runID, uint64(len(r.accesses)))
		defer r.monitor.CompleteProgressBar(bar)
	}

	r.logger.Info("run started",
		"accesses", len(r.accesses),
		"accesses_per_tick", r.accessesPerTick)

	var err error

	for r.issued < len(r.accesses) {
		if err = ctx.Err(); err != nil {
			r.logger.Warn("run cancelled", "issued", r.issued)
			break
		}

		n := r.tick()

		if bar != nil {
			bar.IncrementFinished(uint64(n))
		}
	}

	r.lock.Lock()
	r.hierarchy.ResetCounters()
	r.lock.Unlock()

	if r.recorder != nil {
		r.recorder.Flush()
	}

	report := r.report(time.Since(start))

	for _, l := range report.Levels {
		r.logger.Debug("level finished",
			"level", l.Name,
			"hits", l.Hits(),
			"misses", l.Misses(),
			"hit_rate", l.HitRate)
	}

	r.logger.Info("run finished",
		"ticks", report.Ticks,
		"duration", report.Duration)

	return report, err
}

func (r *Runner) tick() int {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.hierarchy.ResetCounters()

	end := r.issued + r.accessesPerTick
	if end > len(r.accesses) {
		end = len(r.accesses)
	}

	for _, a := range r.accesses[r.issued:end] {
		r.hierarchy.Do(a)
	}

	n := end - r.issued
	r.issued = end
	r.ticks++

	r.logger.Debug("tick", "tick", r.ticks, "issued", r.issued)

	return n
}

// prepareClairvoyantCaches feeds the whole access sequence to clairvoyant
// caches. It only runs once, so a resumed run keeps the trace aligned with the
// future cursor.
func (r *Runner) prepareClairvoyantCaches() {
	if r.prepared {
		return
	}

	r.prepared = true

	needsTrace := false
	for _, c := range r.hierarchy.Caches() {
		if c.Policy() == cache.Clairvoyant {
			needsTrace = true
		}
	}

	if !needsTrace {
		return
	}

	r.hierarchy.AppendFutureAccesses(
		workload.FutureTrace(r.accesses, r.hierarchy.LineWidth())...)
}

func (r *Runner) report(d time.Duration) Report {
	r.lock.Lock()
	defer r.lock.Unlock()

	policies := make(map[string]string)
	for _, c := range r.hierarchy.Caches() {
		policies[c.Name()] = c.Policy().String()
	}

	report := Report{
		RunID:    r.runID,
		Accesses: r.issued,
		Ticks:    r.ticks,
		Duration: d,
	}

	for _, s := range r.hierarchy.Stats() {
		counters := s.Running()
		report.Levels = append(report.Levels, LevelReport{
			Name:     s.Name,
			Policy:   policies[s.Name],
			Counters: counters,
			HitRate:  counters.HitRate(),
		})
	}

	return report
}
