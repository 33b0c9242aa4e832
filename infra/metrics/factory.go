package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/pdptw/core/factory"
	coremetrics "github.com/kilianp07/pdptw/core/metrics"
)

// init registers built-in metrics sinks.
func init() {
	_ = coremetrics.RegisterMetricsSink("prometheus", func(map[string]any) (coremetrics.MetricsSink, error) {
		return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
	})

	_ = coremetrics.RegisterMetricsSink("influx", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		c, err := factory.DecodeAs[InfluxConfig](conf)
		if err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c), nil
	})
}
