package runner

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/sarchlab/memsim/datarecording"
	"github.com/sarchlab/memsim/mem"
	"github.com/sarchlab/memsim/mem/cache"
	"github.com/sarchlab/memsim/mem/trace"
)

// LevelReport holds the cumulative counters of one level.
type LevelReport struct {
	Name   string `json:"name"`
	Policy string `json:"policy,omitempty"`
	mem.Counters
	HitRate float64 `json:"hit_rate"`
}

// Report summarizes a run.
type Report struct {
	RunID    string        `json:"run_id"`
	Accesses int           `json:"accesses"`
	Ticks    int           `json:"ticks"`
	Duration time.Duration `json:"duration"`
	Levels   []LevelReport `json:"levels"`
}

// Level returns the report of the named level.
func (r Report) Level(name string) (LevelReport, bool) {
	for _, l := range r.Levels {
		if l.Name == name {
			return l, true
		}
	}

	return LevelReport{}, false
}

// Compare runs the same builder once per policy, with every level of the
// hierarchy switched to that policy. The run ID of each run is the name of
// its policy.
func Compare(
	ctx context.Context,
	b Builder,
	policies []cache.Policy,
) ([]Report, error) {
	reports := make([]Report, 0, len(policies))

	for _, p := range policies {
		r, err := b.
			WithHierarchyConfig(b.config.WithPolicy(p)).
			WithRunID(p.String()).
			Build()
		if err != nil {
			return reports, err
		}

		report, err := r.Run(ctx)
		if err != nil {
			return reports, err
		}

		reports = append(reports, report)
	}

	return reports, nil
}

// LoadReports rebuilds the reports of the runs recorded in a database from
// their per-tick rows. Accesses and durations are not recorded and stay
// zero. Levels keep the order in which they were recorded.
func LoadReports(
	ctx context.Context,
	reader datarecording.DataReader,
) ([]Report, error) {
	found, err := reader.HasTable(ctx, trace.LevelTickTable)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, errors.Errorf("no %s table recorded", trace.LevelTickTable)
	}

	reader.MapTable(trace.LevelTickTable, trace.LevelTickEntry{})

	rows, _, err := reader.Query(ctx, trace.LevelTickTable,
		datarecording.QueryParams{OrderBy: "rowid ASC"})
	if err != nil {
		return nil, errors.Wrap(err, "cannot read tick records")
	}

	byRun := make(map[string]*Report)
	levelIndex := make(map[string]map[string]int)

	for _, row := range rows {
		e := row.(trace.LevelTickEntry)

		report, ok := byRun[e.RunID]
		if !ok {
			report = &Report{RunID: e.RunID}
			byRun[e.RunID] = report
			levelIndex[e.RunID] = make(map[string]int)
		}

		if e.Tick+1 > report.Ticks {
			report.Ticks = e.Tick + 1
		}

		i, ok := levelIndex[e.RunID][e.Level]
		if !ok {
			i = len(report.Levels)
			levelIndex[e.RunID][e.Level] = i
			report.Levels = append(report.Levels, LevelReport{Name: e.Level})
		}

		l := &report.Levels[i]
		l.Counters = l.Counters.Add(mem.Counters{
			ReadHit:   e.ReadHit,
			ReadMiss:  e.ReadMiss,
			WriteHit:  e.WriteHit,
			WriteMiss: e.WriteMiss,
		})
		l.HitRate = l.Counters.HitRate()
	}

	reports := make([]Report, 0, len(byRun))
	for _, r := range byRun {
		reports = append(reports, *r)
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].RunID < reports[j].RunID
	})

	return reports, nil
}
