package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/pdptw/core/metrics"
	"github.com/kilianp07/pdptw/infra/logger"
)

// InfluxConfig locates the InfluxDB bucket.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes experiment results to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordInstance writes the outcome of an instance.
func (s *InfluxSink) RecordInstance(ev coremetrics.InstanceEvent) error {
	p := write.NewPointWithMeasurement("instance").
		AddTag("run_id", ev.RunID).
		AddTag("scenario", ev.ScenarioID).
		AddTag("solver", ev.Solver).
		AddTag("repetition", strconv.Itoa(ev.Repetition)).
		AddField("seed", strconv.FormatUint(ev.Seed, 10)).
		AddField("finished", ev.Finished).
		AddField("objective", round3(ev.Objective)).
		AddField("travel_time", round3(ev.TravelTime)).
		AddField("tardiness", round3(ev.Tardiness)).
		AddField("overtime", round3(ev.Overtime)).
		AddField("announced", ev.Announced).
		AddField("delivered", ev.Delivered).
		AddField("replans", ev.Replans).
		AddField("duration_ms", ev.Duration.Milliseconds())
	if ev.Error != "" {
		p = p.AddField("error", ev.Error)
	}
	return s.write(p.SetTime(ev.Time))
}

// RecordReplan writes a solver call.
func (s *InfluxSink) RecordReplan(ev coremetrics.ReplanEvent) error {
	p := write.NewPointWithMeasurement("replan").
		AddTag("run_id", ev.RunID).
		AddTag("scenario", ev.ScenarioID).
		AddField("sim_time", ev.SimTime).
		AddField("parcels", ev.Parcels).
		AddField("duration_ms", round3(float64(ev.Duration)/float64(time.Millisecond))).
		AddField("failed", ev.Failed).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordSummary writes the aggregate of a run.
func (s *InfluxSink) RecordSummary(ev coremetrics.SummaryEvent) error {
	p := write.NewPointWithMeasurement("run_summary").
		AddTag("run_id", ev.RunID).
		AddField("instances", ev.Instances).
		AddField("failed", ev.Failed).
		AddField("unfinished", ev.Unfinished).
		AddField("objective_mean", round3(ev.MeanObjective)).
		AddField("objective_std", round3(ev.StdObjective)).
		AddField("objective_min", round3(ev.MinObjective)).
		AddField("objective_max", round3(ev.MaxObjective)).
		SetTime(ev.Time)
	return s.write(p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
