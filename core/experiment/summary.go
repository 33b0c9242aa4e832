package experiment

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stat describes a sample.
type Stat struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

func describe(xs []float64) Stat {
	if len(xs) == 0 {
		return Stat{}
	}
	s := Stat{
		N:    len(xs),
		Mean: stat.Mean(xs, nil),
		Min:  floats.Min(xs),
		Max:  floats.Max(xs),
	}
	if len(xs) > 1 {
		s.StdDev = stat.StdDev(xs, nil)
	}
	return s
}

// Summary aggregates the valid instances of a run.
type Summary struct {
	RunID      string          `json:"run_id"`
	Instances  int             `json:"instances"`
	Failed     int             `json:"failed"`
	Unfinished int             `json:"unfinished"`
	Objective  Stat            `json:"objective"`
	TravelTime Stat            `json:"travel_time"`
	Tardiness  Stat            `json:"tardiness"`
	Overtime   Stat            `json:"overtime"`
	ByScenario map[string]Stat `json:"by_scenario"`
	Duration   time.Duration   `json:"duration"`
}

// Summarize aggregates results. Failed and unfinished instances are
// counted but left out of the statistics.
func Summarize(runID string, results []InstanceResult) Summary {
	s := Summary{RunID: runID, Instances: len(results), ByScenario: map[string]Stat{}}
	var obj, travel, tard, over []float64
	perScenario := map[string][]float64{}
	for _, r := range results {
		s.Duration += r.Duration
		switch {
		case r.Err != nil:
			s.Failed++
			continue
		case !r.Result.Finished:
			s.Unfinished++
			continue
		}
		obj = append(obj, r.Objective)
		travel = append(travel, r.Result.TravelTime)
		tard = append(tard, float64(r.Tardiness()))
		over = append(over, float64(r.Result.Overtime))
		perScenario[r.ScenarioID] = append(perScenario[r.ScenarioID], r.Objective)
	}
	s.Objective = describe(obj)
	s.TravelTime = describe(travel)
	s.Tardiness = describe(tard)
	s.Overtime = describe(over)
	for id, xs := range perScenario {
		s.ByScenario[id] = describe(xs)
	}
	return s
}
