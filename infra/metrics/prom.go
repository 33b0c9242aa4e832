package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/pdptw/core/metrics"
)

// PromSink records experiment results in Prometheus metrics.
type PromSink struct {
	instances   *prometheus.CounterVec
	objective   *prometheus.HistogramVec
	tardiness   *prometheus.CounterVec
	replans     *prometheus.HistogramVec
	transitions *prometheus.CounterVec
	mean        *prometheus.GaugeVec
}

// NewPromSink registers the metrics on the default Prometheus registerer.
// The /metrics endpoint is served separately, see StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Metrics
// already registered by an earlier sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		instances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pdptw_instances_total",
			Help: "Simulated instances by outcome",
		}, []string{"scenario", "solver", "outcome"}),
		objective: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pdptw_instance_objective",
			Help:    "Objective of finished instances in scenario time units",
			Buckets: prometheus.ExponentialBuckets(1000, 4, 12),
		}, []string{"scenario", "solver"}),
		tardiness: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pdptw_tardiness_total",
			Help: "Summed pickup and delivery tardiness in scenario time units",
		}, []string{"scenario", "solver"}),
		replans: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pdptw_replan_duration_seconds",
			Help:    "Wall clock time of solver calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"scenario", "failed"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pdptw_executor_transitions_total",
			Help: "Route executor transitions by event",
		}, []string{"event", "to"}),
		mean: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pdptw_run_objective_mean",
			Help: "Mean objective of the finished instances of the last run",
		}, []string{"run_id"}),
	}
	var err error
	if s.instances, err = register(reg, s.instances); err != nil {
		return nil, err
	}
	if s.objective, err = register(reg, s.objective); err != nil {
		return nil, err
	}
	if s.tardiness, err = register(reg, s.tardiness); err != nil {
		return nil, err
	}
	if s.replans, err = register(reg, s.replans); err != nil {
		return nil, err
	}
	if s.transitions, err = register(reg, s.transitions); err != nil {
		return nil, err
	}
	if s.mean, err = register(reg, s.mean); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func outcome(ev coremetrics.InstanceEvent) string {
	switch {
	case ev.Error != "":
		return "failed"
	case !ev.Finished:
		return "unfinished"
	}
	return "finished"
}

// RecordInstance counts the instance and observes its objective.
func (s *PromSink) RecordInstance(ev coremetrics.InstanceEvent) error {
	o := outcome(ev)
	s.instances.WithLabelValues(ev.ScenarioID, ev.Solver, o).Inc()
	if o == "finished" {
		s.objective.WithLabelValues(ev.ScenarioID, ev.Solver).Observe(ev.Objective)
		s.tardiness.WithLabelValues(ev.ScenarioID, ev.Solver).Add(ev.Tardiness)
	}
	return nil
}

// RecordReplan observes the solver call duration.
func (s *PromSink) RecordReplan(ev coremetrics.ReplanEvent) error {
	s.replans.WithLabelValues(ev.ScenarioID, strconv.FormatBool(ev.Failed)).Observe(ev.Duration.Seconds())
	return nil
}

// RecordTransition counts the transition.
func (s *PromSink) RecordTransition(ev coremetrics.TransitionEvent) error {
	s.transitions.WithLabelValues(ev.Event, ev.To).Inc()
	return nil
}

// RecordSummary sets the mean objective of the run.
func (s *PromSink) RecordSummary(ev coremetrics.SummaryEvent) error {
	s.mean.WithLabelValues(ev.RunID).Set(ev.MeanObjective)
	return nil
}
