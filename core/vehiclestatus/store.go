// Package vehiclestatus keeps the last known state of every simulated
// vehicle, fed by executor transitions and route assignments.
package vehiclestatus

import (
	"sort"
	"sync"

	"github.com/kilianp07/pdptw/core/model"
	"github.com/kilianp07/pdptw/core/route"
)

// Status captures the current known state of a vehicle.
type Status struct {
	ScenarioID string `json:"scenario_id"`
	VehicleID  string `json:"vehicle_id"`
	State      string `json:"state"`
	LastEvent  string `json:"last_event,omitempty"`
	// Time is the simulation time of the last update.
	Time        int64    `json:"time"`
	Route       []string `json:"route,omitempty"`
	Transitions int      `json:"transitions"`
}

type Filter struct {
	ScenarioID string
	State      string
}

type Store interface {
	Set(Status)
	List(Filter) []Status
	RecordTransition(scenarioID string, t route.Transition)
	RecordRoute(scenarioID string, now int64, vehicleID string, r []*model.Parcel)
}

type key struct{ scenario, vehicle string }

type MemoryStore struct {
	mu   sync.RWMutex
	data map[key]Status
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[key]Status{}}
}

func (s *MemoryStore) Set(st Status) {
	s.mu.Lock()
	s.data[key{st.ScenarioID, st.VehicleID}] = st
	s.mu.Unlock()
}

// RecordTransition moves the vehicle to the target state of t.
func (s *MemoryStore) RecordTransition(scenarioID string, t route.Transition) {
	k := key{scenarioID, t.VehicleID}
	s.mu.Lock()
	st := s.data[k]
	st.ScenarioID, st.VehicleID = scenarioID, t.VehicleID
	st.State = t.To
	st.LastEvent = t.Event
	st.Time = t.Time
	st.Transitions++
	s.data[k] = st
	s.mu.Unlock()
}

// RecordRoute replaces the planned route of the vehicle.
func (s *MemoryStore) RecordRoute(scenarioID string, now int64, vehicleID string, r []*model.Parcel) {
	ids := make([]string, len(r))
	for i, p := range r {
		ids[i] = p.ID
	}
	k := key{scenarioID, vehicleID}
	s.mu.Lock()
	st := s.data[k]
	st.ScenarioID, st.VehicleID = scenarioID, vehicleID
	st.Route = ids
	st.Time = now
	s.data[k] = st
	s.mu.Unlock()
}

// List returns the matching vehicles ordered by scenario then vehicle.
func (s *MemoryStore) List(f Filter) []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Status, 0, len(s.data))
	for _, st := range s.data {
		if f.ScenarioID != "" && st.ScenarioID != f.ScenarioID {
			continue
		}
		if f.State != "" && st.State != f.State {
			continue
		}
		res = append(res, st)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].ScenarioID != res[j].ScenarioID {
			return res[i].ScenarioID < res[j].ScenarioID
		}
		return res[i].VehicleID < res[j].VehicleID
	})
	return res
}
