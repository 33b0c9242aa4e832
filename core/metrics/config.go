package metrics

import "github.com/kilianp07/pdptw/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusAddr serves /metrics when set, e.g. ":9100".
	PrometheusAddr string `json:"prometheus_addr"`
	// RecordTransitions forwards every executor transition, which is
	// verbose on long horizons.
	RecordTransitions bool `json:"record_transitions"`
}
