package metrics

import "time"

// InstanceEvent is the outcome of one simulated instance of an experiment.
// Times are in the scenario time unit.
type InstanceEvent struct {
	RunID      string
	ScenarioID string
	Solver     string
	Repetition int
	Seed       uint64
	Finished   bool
	Objective  float64
	TravelTime float64
	Tardiness  float64
	Overtime   float64
	Announced  int
	Delivered  int
	Replans    int
	Duration   time.Duration
	Error      string
	Time       time.Time
}

// MetricsSink records experiment results for observability purposes.
type MetricsSink interface {
	RecordInstance(ev InstanceEvent) error
}

// ReplanEvent captures one solver call inside a simulation.
type ReplanEvent struct {
	RunID      string
	ScenarioID string
	SimTime    int64
	Parcels    int
	Duration   time.Duration
	Failed     bool
	Time       time.Time
}

// ReplanRecorder records solver calls.
type ReplanRecorder interface {
	RecordReplan(ev ReplanEvent) error
}

// TransitionEvent is a state change of a route executor.
type TransitionEvent struct {
	RunID      string
	ScenarioID string
	VehicleID  string
	SimTime    int64
	From       string
	Event      string
	To         string
	Time       time.Time
}

// TransitionRecorder records executor transitions.
type TransitionRecorder interface {
	RecordTransition(ev TransitionEvent) error
}

// SummaryEvent aggregates the instances of a run. Objective statistics
// only cover finished instances.
type SummaryEvent struct {
	RunID         string
	Instances     int
	Failed        int
	Unfinished    int
	MeanObjective float64
	StdObjective  float64
	MinObjective  float64
	MaxObjective  float64
	Duration      time.Duration
	Time          time.Time
}

// SummaryRecorder records run summaries.
type SummaryRecorder interface {
	RecordSummary(ev SummaryEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordInstance(InstanceEvent) error     { return nil }
func (NopSink) RecordReplan(ReplanEvent) error         { return nil }
func (NopSink) RecordTransition(TransitionEvent) error { return nil }
func (NopSink) RecordSummary(SummaryEvent) error       { return nil }
