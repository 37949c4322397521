// Package trace provides hooks that trace the accesses served by a memory
// hierarchy and the counters of every reporting interval.
package trace

import (
	"log"

	"github.com/sarchlab/memsim/datarecording"
	"github.com/sarchlab/memsim/mem/hierarchy"
	"github.com/sarchlab/memsim/sim"
)

// Tables written by the DB tracer.
const (
	LevelTickTable = "level_ticks"
	AccessTable    = "accesses"
)

// LevelTickEntry is the row recorded for one level at the end of an
// interval.
type LevelTickEntry struct {
	RunID     string
	Tick      int
	Level     string
	ReadHit   uint64
	ReadMiss  uint64
	WriteHit  uint64
	WriteMiss uint64
	HitRate   float64
}

// AccessEntry is the row recorded for one logical access.
type AccessEntry struct {
	RunID   string
	Seq     int
	Op      string
	Address uint64
	Value   uint32
}

// A tracer is a hook that prints the accesses of a hierarchy and the
// counters of every interval.
type tracer struct {
	logger *log.Logger
}

// NewTracer creates a hook that writes one line per access and one line per
// level and interval to the logger.
func NewTracer(logger *log.Logger) sim.Hook {
	return &tracer{logger: logger}
}

func (t *tracer) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case hierarchy.HookPosAccess:
		result := ctx.Detail.(hierarchy.AccessResult)
		t.logger.Printf("access, %d, %s, 0x%x, 0x%x\n",
			result.Index, result.Op, result.Address, result.Result)
	case hierarchy.HookPosTick:
		for _, level := range ctx.Detail.([]hierarchy.LevelStats) {
			c := level.Interval
			t.logger.Printf("tick, %d, %s, %d, %d, %d, %d\n",
				ctx.Item.(int), level.Name,
				c.ReadHit, c.ReadMiss, c.WriteHit, c.WriteMiss)
		}
	}
}

// A dbTracer is a hook that records the interval counters, and optionally
// the accesses, of a hierarchy into a database using the data recorder.
type dbTracer struct {
	dataRecorder   datarecording.DataRecorder
	runID          string
	recordAccesses bool
}

// NewDBTracer creates a hook that records into the data recorder. Several
// runs can share one recorder; their rows are told apart by the run ID.
func NewDBTracer(
	dataRecorder datarecording.DataRecorder,
	runID string,
	recordAccesses bool,
) sim.Hook {
	t := &dbTracer{
		dataRecorder:   dataRecorder,
		runID:          runID,
		recordAccesses: recordAccesses,
	}

	t.ensureTable(LevelTickTable, LevelTickEntry{}, "RunID", "Tick")

	if recordAccesses {
		t.ensureTable(AccessTable, AccessEntry{}, "RunID", "Seq")
	}

	return t
}

func (t *dbTracer) ensureTable(name string, sample any, key ...string) {
	for _, existing := range t.dataRecorder.ListTables() {
		if existing == name {
			return
		}
	}

	t.dataRecorder.CreateTable(name, sample)
	t.dataRecorder.CreateIndex(name, key...)
}

func (t *dbTracer) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case hierarchy.HookPosAccess:
		if !t.recordAccesses {
			return
		}

		result := ctx.Detail.(hierarchy.AccessResult)
		t.dataRecorder.InsertData(AccessTable, AccessEntry{
			RunID:   t.runID,
			Seq:     result.Index,
			Op:      result.Op.String(),
			Address: result.Address,
			Value:   result.Result,
		})
	case hierarchy.HookPosTick:
		tick := ctx.Item.(int)
		for _, level := range ctx.Detail.([]hierarchy.LevelStats) {
			c := level.Interval
			t.dataRecorder.InsertData(LevelTickTable, LevelTickEntry{
				RunID:     t.runID,
				Tick:      tick,
				Level:     level.Name,
				ReadHit:   c.ReadHit,
				ReadMiss:  c.ReadMiss,
				WriteHit:  c.WriteHit,
				WriteMiss: c.WriteMiss,
				HitRate:   c.HitRate(),
			})
		}
	}
}
