package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/pdptw/core/metrics"
)

type lineServer struct {
	mu     sync.Mutex
	bodies []string
}

func (s *lineServer) start(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.bodies = append(s.bodies, strings.TrimSpace(string(data)))
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func line(p *write.Point) string {
	return strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
}

func TestInfluxSink_RecordInstance(t *testing.T) {
	ls := &lineServer{}
	srv := ls.start(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "token", Org: "org", Bucket: "bucket"})
	defer sink.Close()

	now := time.Unix(1700000000, 0)
	ev := coremetrics.InstanceEvent{
		RunID:      "r1",
		ScenarioID: "s1",
		Solver:     "sequential",
		Repetition: 2,
		Seed:       9,
		Finished:   true,
		Objective:  1234.56789,
		TravelTime: 1000,
		Tardiness:  200,
		Overtime:   34.56789,
		Announced:  3,
		Delivered:  3,
		Replans:    2,
		Duration:   1500 * time.Millisecond,
		Time:       now,
	}
	require.NoError(t, sink.RecordInstance(ev))

	p := write.NewPointWithMeasurement("instance").
		AddTag("run_id", "r1").
		AddTag("scenario", "s1").
		AddTag("solver", "sequential").
		AddTag("repetition", "2").
		AddField("seed", "9").
		AddField("finished", true).
		AddField("objective", 1234.568).
		AddField("travel_time", 1000.0).
		AddField("tardiness", 200.0).
		AddField("overtime", 34.568).
		AddField("announced", 3).
		AddField("delivered", 3).
		AddField("replans", 2).
		AddField("duration_ms", int64(1500)).
		SetTime(now)
	require.Len(t, ls.bodies, 1)
	assert.Equal(t, line(p), ls.bodies[0])
}

func TestInfluxSink_RecordSummary(t *testing.T) {
	ls := &lineServer{}
	srv := ls.start(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Org: "org", Bucket: "bucket"})
	defer sink.Close()

	now := time.Unix(1700000000, 0)
	require.NoError(t, sink.RecordSummary(coremetrics.SummaryEvent{
		RunID: "r1", Instances: 4, Failed: 1, MeanObjective: 10, StdObjective: 2, MinObjective: 8, MaxObjective: 12, Time: now,
	}))
	p := write.NewPointWithMeasurement("run_summary").
		AddTag("run_id", "r1").
		AddField("instances", 4).
		AddField("failed", 1).
		AddField("unfinished", 0).
		AddField("objective_mean", 10.0).
		AddField("objective_std", 2.0).
		AddField("objective_min", 8.0).
		AddField("objective_max", 12.0).
		SetTime(now)
	require.Len(t, ls.bodies, 1)
	assert.Equal(t, line(p), ls.bodies[0])
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	assert.IsType(t, coremetrics.NopSink{}, sink)
	assert.True(t, called, "health endpoint not called")
}
