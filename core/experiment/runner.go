package experiment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/pdptw/core/central"
	"github.com/kilianp07/pdptw/core/logger"
	"github.com/kilianp07/pdptw/core/metrics"
	"github.com/kilianp07/pdptw/core/monitoring"
	"github.com/kilianp07/pdptw/core/route"
	"github.com/kilianp07/pdptw/core/solver"
	"github.com/kilianp07/pdptw/internal/eventbus"
)

// SolverFactory creates the solver of one instance.
type SolverFactory func(inst Instance) (solver.Solver, error)

// Runner executes instances concurrently.
type Runner struct {
	cfg         Config
	newSolver   SolverFactory
	solverName  string
	simulation  func(Instance) central.Config
	sink        metrics.MetricsSink
	transitions bool
	monitor     monitoring.Monitor
	progress    *eventbus.TypedBus[Progress]
	logger      logger.Logger

	// sinkMu serialises sink calls coming from the workers.
	sinkMu sync.Mutex
}

// Option configures a Runner.
type Option func(*Runner)

// WithSimulation sets the configuration shared by every simulation.
// Callbacks in it are invoked concurrently by the workers.
func WithSimulation(c central.Config) Option {
	return WithSimulationFor(func(Instance) central.Config { return c })
}

// WithSimulationFor derives the simulation configuration from each
// instance, e.g. to bind callbacks to its scenario.
func WithSimulationFor(fn func(Instance) central.Config) Option {
	return func(r *Runner) { r.simulation = fn }
}

// WithSink records instance results, replans and the summary to s.
func WithSink(s metrics.MetricsSink) Option { return func(r *Runner) { r.sink = s } }

// WithTransitions also records every executor transition to the sink.
func WithTransitions(on bool) Option { return func(r *Runner) { r.transitions = on } }

// WithMonitor reports failed instances to m.
func WithMonitor(m monitoring.Monitor) Option { return func(r *Runner) { r.monitor = m } }

// WithProgress publishes a Progress event after each instance.
func WithProgress(b *eventbus.TypedBus[Progress]) Option { return func(r *Runner) { r.progress = b } }

// WithSolverName labels recorded results.
func WithSolverName(name string) Option { return func(r *Runner) { r.solverName = name } }

func WithLogger(l logger.Logger) Option { return func(r *Runner) { r.logger = l } }

// NewRunner returns a Runner creating solvers with newSolver.
func NewRunner(cfg Config, newSolver SolverFactory, opts ...Option) (*Runner, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if newSolver == nil {
		return nil, errors.New("solver factory is required")
	}
	r := &Runner{
		cfg:       cfg,
		newSolver: newSolver,
		sink:      metrics.NopSink{},
		monitor:   monitoring.NopMonitor{},
	}
	for _, o := range opts {
		o(r)
	}
	r.logger = logger.OrNop(r.logger)
	if r.sink == nil {
		r.sink = metrics.NopSink{}
	}
	if r.monitor == nil {
		r.monitor = monitoring.NopMonitor{}
	}
	return r, nil
}

// Run executes instances on the worker pool. A failing instance never stops
// the others. Canceling ctx aborts the instances still running or pending;
// the report then holds what finished and Run returns the context error.
func (r *Runner) Run(ctx context.Context, instances []Instance) (Report, error) {
	runID := uuid.NewString()
	results := make([]InstanceResult, len(instances))
	var done atomic.Int64

	r.logger.Infof("run %s: %d instances on %d workers", runID, len(instances), r.cfg.Workers)
	// A plain group: errors are kept per instance and must not cancel the
	// siblings.
	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)
	for i, inst := range instances {
		g.Go(func() error {
			res := r.runInstance(ctx, runID, inst)
			results[i] = res
			r.recordInstance(runID, res)
			if r.progress != nil {
				r.progress.Publish(Progress{
					RunID:  runID,
					Done:   int(done.Add(1)),
					Total:  len(instances),
					Result: res,
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{RunID: runID, Results: results, Summary: Summarize(runID, results)}
	r.recordSummary(rep.Summary)
	r.logger.Infof("run %s: %d instances, %d failed, %d unfinished, mean objective %.1f",
		runID, rep.Summary.Instances, rep.Summary.Failed, rep.Summary.Unfinished, rep.Summary.Objective.Mean)
	return rep, ctx.Err()
}

func (r *Runner) runInstance(ctx context.Context, runID string, inst Instance) InstanceResult {
	res := InstanceResult{ScenarioID: inst.Scenario.ID, Repetition: inst.Repetition, Seed: inst.Seed}
	if err := ctx.Err(); err != nil {
		res.Err, res.Error = err, err.Error()
		return res
	}
	tags := map[string]string{
		"run_id":     runID,
		"scenario":   inst.Scenario.ID,
		"repetition": strconv.Itoa(inst.Repetition),
		"seed":       strconv.FormatUint(inst.Seed, 10),
	}
	start := time.Now()
	err := monitoring.Guard(reportable{r.monitor}, tags, func() error {
		s, err := r.newSolver(inst)
		if err != nil {
			return fmt.Errorf("solver: %w", err)
		}
		sm, err := central.New(ctx, inst.Scenario, s, r.simulationConfig(runID, inst))
		if err != nil {
			return err
		}
		out, err := sm.Run(ctx)
		res.Result = out
		return err
	})
	res.Duration = time.Since(start)
	res.Objective = Objective(res.Result)
	if err != nil {
		res.Err, res.Error = err, err.Error()
		r.logger.Warnf("run %s: scenario %s repetition %d failed: %v", runID, inst.Scenario.ID, inst.Repetition, err)
	}
	return res
}

func (r *Runner) simulationConfig(runID string, inst Instance) central.Config {
	var cfg central.Config
	if r.simulation != nil {
		cfg = r.simulation(inst)
	}
	scenarioID := inst.Scenario.ID
	onReplan := cfg.OnReplan
	cfg.OnReplan = func(p central.Replan) {
		if onReplan != nil {
			onReplan(p)
		}
		rec, ok := r.sink.(metrics.ReplanRecorder)
		if !ok {
			return
		}
		r.sinkMu.Lock()
		defer r.sinkMu.Unlock()
		err := rec.RecordReplan(metrics.ReplanEvent{
			RunID:      runID,
			ScenarioID: scenarioID,
			SimTime:    p.Time,
			Parcels:    p.Parcels,
			Duration:   p.Duration,
			Failed:     p.Err != nil,
			Time:       time.Now(),
		})
		if err != nil {
			r.logger.Warnf("record replan: %v", err)
		}
	}
	rec, ok := r.sink.(metrics.TransitionRecorder)
	if !r.transitions || !ok {
		return cfg
	}
	onTransition := cfg.OnTransition
	cfg.OnTransition = func(t route.Transition) {
		if onTransition != nil {
			onTransition(t)
		}
		r.sinkMu.Lock()
		defer r.sinkMu.Unlock()
		err := rec.RecordTransition(metrics.TransitionEvent{
			RunID:      runID,
			ScenarioID: scenarioID,
			VehicleID:  t.VehicleID,
			SimTime:    t.Time,
			From:       t.From,
			Event:      t.Event,
			To:         t.To,
			Time:       time.Now(),
		})
		if err != nil {
			r.logger.Warnf("record transition: %v", err)
		}
	}
	return cfg
}

func (r *Runner) recordInstance(runID string, res InstanceResult) {
	r.sinkMu.Lock()
	defer r.sinkMu.Unlock()
	err := r.sink.RecordInstance(metrics.InstanceEvent{
		RunID:      runID,
		ScenarioID: res.ScenarioID,
		Solver:     r.solverName,
		Repetition: res.Repetition,
		Seed:       res.Seed,
		Finished:   res.Result.Finished,
		Objective:  res.Objective,
		TravelTime: res.Result.TravelTime,
		Tardiness:  float64(res.Tardiness()),
		Overtime:   float64(res.Result.Overtime),
		Announced:  res.Result.Service.Announced,
		Delivered:  res.Result.Service.Delivered,
		Replans:    res.Result.Planning.Replans,
		Duration:   res.Duration,
		Error:      res.Error,
		Time:       time.Now(),
	})
	if err != nil {
		r.logger.Warnf("record instance: %v", err)
	}
}

func (r *Runner) recordSummary(s Summary) {
	rec, ok := r.sink.(metrics.SummaryRecorder)
	if !ok {
		return
	}
	r.sinkMu.Lock()
	defer r.sinkMu.Unlock()
	err := rec.RecordSummary(metrics.SummaryEvent{
		RunID:         s.RunID,
		Instances:     s.Instances,
		Failed:        s.Failed,
		Unfinished:    s.Unfinished,
		MeanObjective: s.Objective.Mean,
		StdObjective:  s.Objective.StdDev,
		MinObjective:  s.Objective.Min,
		MaxObjective:  s.Objective.Max,
		Duration:      s.Duration,
		Time:          time.Now(),
	})
	if err != nil {
		r.logger.Warnf("record summary: %v", err)
	}
}

// reportable drops context cancellations, which are not failures of the
// instance.
type reportable struct{ monitoring.Monitor }

func (m reportable) CaptureException(err error, tags map[string]string) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	m.Monitor.CaptureException(err, tags)
}
