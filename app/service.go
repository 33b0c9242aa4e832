package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kilianp07/pdptw/config"
	"github.com/kilianp07/pdptw/core/central"
	"github.com/kilianp07/pdptw/core/experiment"
	"github.com/kilianp07/pdptw/core/factory"
	coremetrics "github.com/kilianp07/pdptw/core/metrics"
	"github.com/kilianp07/pdptw/core/model"
	coremon "github.com/kilianp07/pdptw/core/monitoring"
	"github.com/kilianp07/pdptw/core/route"
	"github.com/kilianp07/pdptw/core/scenario"
	"github.com/kilianp07/pdptw/core/solver"
	"github.com/kilianp07/pdptw/core/vehiclestatus"
	"github.com/kilianp07/pdptw/infra/diag"
	"github.com/kilianp07/pdptw/infra/logger"
	"github.com/kilianp07/pdptw/infra/metrics"
	inframon "github.com/kilianp07/pdptw/infra/monitoring"
	"github.com/kilianp07/pdptw/infra/mqtt"
	"github.com/kilianp07/pdptw/internal/eventbus"
)

// Publisher forwards simulation events to an external broker.
type Publisher interface {
	PublishTransition(scenarioID string, t route.Transition) error
	PublishRoute(scenarioID string, now int64, vehicleID string, r []*model.Parcel) error
	PublishProgress(p experiment.Progress) error
	OnControl(fn mqtt.ControlFunc)
	Disconnect()
}

// Service runs scenarios and experiments with the configured solver,
// metrics sinks, monitoring and broker.
type Service struct {
	cfg       *config.Config
	log       logger.Logger
	sink      coremetrics.MetricsSink
	monitor   coremon.Monitor
	solvers   *factory.Registry[solver.Solver]
	echo      *diag.RotatingWriter
	publisher Publisher
	status    vehiclestatus.Store

	mu        sync.Mutex
	recorders map[string]*solver.Recorder
	cancel    context.CancelFunc
	runID     atomic.Value
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher replaces the MQTT client built from the configuration.
func WithPublisher(p Publisher) Option { return func(s *Service) { s.publisher = p } }

// WithSink replaces the sinks built from the configuration.
func WithSink(sink coremetrics.MetricsSink) Option { return func(s *Service) { s.sink = sink } }

// New creates a Service from the configuration.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if err := logger.Configure(cfg.Logging, os.Stderr); err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	svc := &Service{
		cfg:       cfg,
		log:       logger.New("service"),
		solvers:   solver.NewRegistry(logger.New("solver")),
		recorders: map[string]*solver.Recorder{},
		status:    vehiclestatus.NewMemoryStore(),
	}
	for _, o := range opts {
		o(svc)
	}

	mon, err := inframon.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)
	svc.monitor = mon

	if _, err := svc.solvers.Create(cfg.Solver.Module()); err != nil {
		return nil, fmt.Errorf("solver: %w", err)
	}
	if svc.sink == nil {
		sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
		if err != nil {
			return nil, fmt.Errorf("metrics sink: %w", err)
		}
		svc.sink = sink
	}
	if cfg.Solver.Echo.Path != "" {
		w, err := diag.NewRotatingWriter(cfg.Solver.Echo)
		if err != nil {
			return nil, fmt.Errorf("solver echo: %w", err)
		}
		svc.echo = w
	}
	if svc.publisher == nil && cfg.MQTT.Enabled {
		client, err := mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		svc.publisher = client
	}
	if svc.publisher != nil {
		svc.publisher.OnControl(svc.onControl)
	}
	return svc, nil
}

// RunScenario simulates one scenario.
func (s *Service) RunScenario(ctx context.Context, scn scenario.Scenario) (experiment.InstanceResult, error) {
	rep, err := s.RunExperiment(ctx, []experiment.Instance{{Scenario: scn}})
	if len(rep.Results) == 0 {
		return experiment.InstanceResult{}, err
	}
	res := rep.Results[0]
	if err == nil {
		err = res.Err
	}
	return res, err
}

// RunExperiment runs instances on the configured worker pool. Metrics are
// served while the run lasts when an address is configured. A "cancel"
// control message aborts the run.
func (s *Service) RunExperiment(ctx context.Context, instances []experiment.Instance) (experiment.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return experiment.Report{}, errors.New("a run is already in progress")
	}
	s.cancel = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		s.runID.Store("")
	}()

	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr, nil, s.log); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	bus := eventbus.NewTyped[experiment.Progress]()
	listenCtx, stopListening := context.WithCancel(context.Background())
	stopped := eventbus.Listen(listenCtx, bus, len(instances)+1, s.onProgress)

	runner, err := experiment.NewRunner(s.cfg.Experiment, s.newSolver,
		experiment.WithSimulationFor(s.simulationConfig),
		experiment.WithSink(s.sink),
		experiment.WithTransitions(s.cfg.Metrics.RecordTransitions),
		experiment.WithMonitor(s.monitor),
		experiment.WithProgress(bus),
		experiment.WithSolverName(s.cfg.Solver.Type),
		experiment.WithLogger(logger.New("experiment")),
	)
	if err != nil {
		stopListening()
		return experiment.Report{}, err
	}
	rep, err := runner.Run(ctx, s.applyOverrides(instances))
	bus.Close()
	<-stopped
	stopListening()
	if n := bus.Dropped(); n > 0 {
		s.log.Warnf("%d progress events dropped", n)
	}
	return rep, err
}

// Recorder returns the recorder of a scenario repetition when solver
// recording is enabled.
func (s *Service) Recorder(scenarioID string, repetition int) (*solver.Recorder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recorders[source(scenarioID, repetition)]
	return r, ok
}

// FleetStatus lists the last known state of the simulated vehicles.
func (s *Service) FleetStatus(f vehiclestatus.Filter) []vehiclestatus.Status {
	return s.status.List(f)
}

// Echo returns the diagnostic writer, nil when echoing is disabled.
func (s *Service) Echo() *diag.RotatingWriter { return s.echo }

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	if s.publisher != nil {
		s.publisher.Disconnect()
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	if s.echo != nil {
		errs = append(errs, s.echo.Close())
	}
	if s.monitor != nil {
		s.monitor.Flush(2 * time.Second)
	}
	return errors.Join(errs...)
}

func source(scenarioID string, repetition int) string {
	return scenarioID + "/" + strconv.Itoa(repetition)
}

func (s *Service) newSolver(inst experiment.Instance) (solver.Solver, error) {
	sv, err := s.solvers.Create(s.cfg.Solver.Module())
	if err != nil {
		return nil, err
	}
	if !s.cfg.Solver.Record && s.echo == nil {
		return sv, nil
	}
	var rec *solver.Recorder
	if s.echo != nil {
		rec = solver.NewRecorder(sv, s.echo, s.log)
	} else {
		rec = solver.NewRecorder(sv, nil, s.log)
	}
	key := source(inst.Scenario.ID, inst.Repetition)
	rec.Labeled(key)
	if s.cfg.Solver.Record {
		s.mu.Lock()
		s.recorders[key] = rec
		s.mu.Unlock()
	}
	return rec, nil
}

// simulationConfig binds the status and broker callbacks to the scenario
// of inst.
func (s *Service) simulationConfig(inst experiment.Instance) central.Config {
	sc := s.cfg.Simulation
	c := central.Config{
		DelayedRouteChanges: sc.DelayedRouteChanges,
		IdleReplanning:      sc.IdleReplanning || !s.cfg.Solver.MultiVehicle(),
		Logger:              logger.New("simulation"),
	}
	id := inst.Scenario.ID
	c.OnTransition = func(t route.Transition) {
		s.status.RecordTransition(id, t)
		if s.publisher == nil {
			return
		}
		if err := s.publisher.PublishTransition(id, t); err != nil {
			s.log.Warnf("publish transition: %v", err)
		}
	}
	c.OnRoutes = func(now int64, vehicleID string, r []*model.Parcel) {
		s.status.RecordRoute(id, now, vehicleID, r)
		if s.publisher == nil {
			return
		}
		if err := s.publisher.PublishRoute(id, now, vehicleID, r); err != nil {
			s.log.Warnf("publish route: %v", err)
		}
	}
	return c
}

func (s *Service) applyOverrides(instances []experiment.Instance) []experiment.Instance {
	sc := s.cfg.Simulation
	if sc.TickLength == 0 && sc.AllowDiversion == nil {
		return instances
	}
	out := make([]experiment.Instance, len(instances))
	for i, inst := range instances {
		if sc.TickLength > 0 {
			inst.Scenario.TickLength = sc.TickLength
		}
		if sc.AllowDiversion != nil {
			inst.Scenario.AllowDiversion = *sc.AllowDiversion
		}
		out[i] = inst
	}
	return out
}

func (s *Service) onProgress(p experiment.Progress) {
	s.runID.Store(p.RunID)
	res := p.Result
	if res.Err != nil {
		s.log.Warnf("[%d/%d] %s #%d failed: %v", p.Done, p.Total, res.ScenarioID, res.Repetition, res.Err)
	} else {
		s.log.Infof("[%d/%d] %s #%d objective %.1f", p.Done, p.Total, res.ScenarioID, res.Repetition, res.Objective)
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishProgress(p); err != nil {
		s.log.Warnf("publish progress: %v", err)
	}
}

func (s *Service) onControl(c mqtt.Control) {
	if c.Action != "cancel" {
		s.log.Warnf("unknown control action %q", c.Action)
		return
	}
	if c.RunID != "" {
		if current, _ := s.runID.Load().(string); current != c.RunID {
			return
		}
	}
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		s.log.Infof("run canceled by control message")
		cancel()
	}
}
