// Package metrics defines the sinks experiment results are recorded to.
// Every sink implements MetricsSink; the optional recorder interfaces are
// detected with type assertions so a sink only has to support what it can
// store. NewMetricsSink builds sinks from configuration and fans out to a
// MultiSink when several are configured.
package metrics
