package mqtt

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/pdptw/core/experiment"
	"github.com/kilianp07/pdptw/core/model"
	"github.com/kilianp07/pdptw/core/route"
)

// TransitionMessage is published on
// <prefix>/scenario/<scenario>/vehicle/<vehicle>/transition.
type TransitionMessage struct {
	MessageID  string `json:"message_id"`
	ScenarioID string `json:"scenario_id"`
	VehicleID  string `json:"vehicle_id"`
	Time       int64  `json:"time"`
	From       string `json:"from"`
	Event      string `json:"event"`
	To         string `json:"to"`
	Sent       int64  `json:"sent"`
}

// RouteMessage is published on
// <prefix>/scenario/<scenario>/vehicle/<vehicle>/route.
type RouteMessage struct {
	MessageID  string   `json:"message_id"`
	ScenarioID string   `json:"scenario_id"`
	VehicleID  string   `json:"vehicle_id"`
	Time       int64    `json:"time"`
	Route      []string `json:"route"`
	Sent       int64    `json:"sent"`
}

// ProgressMessage is published on <prefix>/run/<run>/progress.
type ProgressMessage struct {
	MessageID  string  `json:"message_id"`
	RunID      string  `json:"run_id"`
	Done       int     `json:"done"`
	Total      int     `json:"total"`
	ScenarioID string  `json:"scenario_id"`
	Repetition int     `json:"repetition"`
	Finished   bool    `json:"finished"`
	Objective  float64 `json:"objective"`
	Error      string  `json:"error,omitempty"`
	Sent       int64   `json:"sent"`
}

var topicEscaper = strings.NewReplacer("/", "_", "#", "_", "+", "_")

func (p *PahoClient) topic(parts ...string) string {
	var b strings.Builder
	b.WriteString(p.prefix)
	for _, s := range parts {
		b.WriteByte('/')
		b.WriteString(topicEscaper.Replace(s))
	}
	return b.String()
}

// PublishTransition publishes an executor transition.
func (p *PahoClient) PublishTransition(scenarioID string, t route.Transition) error {
	return p.publish("transition", p.topic("scenario", scenarioID, "vehicle", t.VehicleID, "transition"), TransitionMessage{
		MessageID:  uuid.NewString(),
		ScenarioID: scenarioID,
		VehicleID:  t.VehicleID,
		Time:       t.Time,
		From:       t.From,
		Event:      t.Event,
		To:         t.To,
		Sent:       time.Now().UnixMilli(),
	})
}

// PublishRoute publishes the route assigned to a vehicle.
func (p *PahoClient) PublishRoute(scenarioID string, now int64, vehicleID string, r []*model.Parcel) error {
	ids := make([]string, len(r))
	for i, parcel := range r {
		ids[i] = parcel.ID
	}
	return p.publish("route", p.topic("scenario", scenarioID, "vehicle", vehicleID, "route"), RouteMessage{
		MessageID:  uuid.NewString(),
		ScenarioID: scenarioID,
		VehicleID:  vehicleID,
		Time:       now,
		Route:      ids,
		Sent:       time.Now().UnixMilli(),
	})
}

// PublishProgress publishes the progress of an experiment run.
func (p *PahoClient) PublishProgress(pr experiment.Progress) error {
	return p.publish("progress", p.topic("run", pr.RunID, "progress"), ProgressMessage{
		MessageID:  uuid.NewString(),
		RunID:      pr.RunID,
		Done:       pr.Done,
		Total:      pr.Total,
		ScenarioID: pr.Result.ScenarioID,
		Repetition: pr.Result.Repetition,
		Finished:   pr.Result.Valid(),
		Objective:  pr.Result.Objective,
		Error:      pr.Result.Error,
		Sent:       time.Now().UnixMilli(),
	})
}
