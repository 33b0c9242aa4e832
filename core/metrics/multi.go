package metrics

import "errors"

// MultiSink fans records out to multiple sinks. Every sink is tried; the
// errors are joined.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordInstance forwards the record to all sinks.
func (m *MultiSink) RecordInstance(ev InstanceEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordInstance(ev))
	}
	return errors.Join(errs...)
}

// RecordReplan forwards solver calls to the sinks supporting them.
func (m *MultiSink) RecordReplan(ev ReplanEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(ReplanRecorder); ok {
			errs = append(errs, rec.RecordReplan(ev))
		}
	}
	return errors.Join(errs...)
}

// RecordTransition forwards transitions to the sinks supporting them.
func (m *MultiSink) RecordTransition(ev TransitionEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(TransitionRecorder); ok {
			errs = append(errs, rec.RecordTransition(ev))
		}
	}
	return errors.Join(errs...)
}

// RecordSummary forwards run summaries to the sinks supporting them.
func (m *MultiSink) RecordSummary(ev SummaryEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(SummaryRecorder); ok {
			errs = append(errs, rec.RecordSummary(ev))
		}
	}
	return errors.Join(errs...)
}
