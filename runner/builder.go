package runner

import (
	"log/slog"

	"github.com/pkg/errors"

	"github.com/sarchlab/memsim/datarecording"
	"github.com/sarchlab/memsim/mem/hierarchy"
	"github.com/sarchlab/memsim/mem/trace"
	"github.com/sarchlab/memsim/monitoring"
	"github.com/sarchlab/memsim/sim"
)

// Builder can build runners.
type Builder struct {
	config          hierarchy.Config
	accesses        []hierarchy.Access
	accessesPerTick int
	runID           string
	recorder        datarecording.DataRecorder
	recordAccesses  bool
	monitor         *monitoring.Monitor
	logger          *slog.Logger
	hooks           []sim.Hook
}

// MakeBuilder creates a builder with the default hierarchy and 1024 accesses
// per tick.
func MakeBuilder() Builder {
	return Builder{
		config:          hierarchy.DefaultConfig(),
		accessesPerTick: 1024,
	}
}

// WithHierarchyConfig sets the configuration of the simulated hierarchy.
func (b Builder) WithHierarchyConfig(c hierarchy.Config) Builder {
	b.config = c
	return b
}

// WithAccesses sets the accesses to issue.
func (b Builder) WithAccesses(accesses []hierarchy.Access) Builder {
	b.accesses = accesses
	return b
}

// WithAccessesPerTick sets how many accesses form one reporting interval.
func (b Builder) WithAccessesPerTick(n int) Builder {
	b.accessesPerTick = n
	return b
}

// WithRunID sets the ID that tells the rows of this run apart from other
// runs that share the recorder. By default, the hierarchy ID is used.
func (b Builder) WithRunID(id string) Builder {
	b.runID = id
	return b
}

// WithDataRecorder records the counters of every tick, and optionally every
// access, into the recorder.
func (b Builder) WithDataRecorder(
	r datarecording.DataRecorder,
	recordAccesses bool,
) Builder {
	b.recorder = r
	b.recordAccesses = recordAccesses

	return b
}

// WithMonitor registers the hierarchy with the monitor and shows the
// progress of the run on it.
func (b Builder) WithMonitor(m *monitoring.Monitor) Builder {
	b.monitor = m
	return b
}

// WithLogger sets the logger of the run.
func (b Builder) WithLogger(l *slog.Logger) Builder {
	b.logger = l
	return b
}

// WithHook attaches an extra hook to the hierarchy.
func (b Builder) WithHook(h sim.Hook) Builder {
	b.hooks = append(b.hooks[:len(b.hooks):len(b.hooks)], h)
	return b
}

// Build creates the hierarchy and the runner that drives it.
func (b Builder) Build() (*Runner, error) {
	if b.accessesPerTick <= 0 {
		return nil, errors.Errorf(
			"accesses per tick must be positive, got %d", b.accessesPerTick)
	}

	h, err := hierarchy.New(b.config)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		hierarchy:       h,
		accesses:        b.accesses,
		accessesPerTick: b.accessesPerTick,
		runID:           b.runID,
		recorder:        b.recorder,
		monitor:         b.monitor,
		logger:          b.logger,
	}

	if r.runID == "" {
		r.runID = h.ID()
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}

	r.logger = r.logger.With("run", r.runID)

	if b.recorder != nil {
		h.AcceptHook(trace.NewDBTracer(b.recorder, r.runID, b.recordAccesses))
	}

	for _, hook := range b.hooks {
		h.AcceptHook(hook)
	}

	if b.monitor != nil {
		b.monitor.RegisterHierarchy(h, &r.lock)
	}

	return r, nil
}
