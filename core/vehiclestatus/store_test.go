package vehiclestatus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/pdptw/core/model"
	"github.com/kilianp07/pdptw/core/route"
)

func TestMemoryStore_Filter(t *testing.T) {
	s := NewMemoryStore()
	s.Set(Status{ScenarioID: "s1", VehicleID: "v1", State: "wait"})
	s.Set(Status{ScenarioID: "s2", VehicleID: "v1", State: "goto"})
	out := s.List(Filter{ScenarioID: "s1"})
	require.Len(t, out, 1)
	assert.Equal(t, "wait", out[0].State)

	out = s.List(Filter{State: "goto"})
	require.Len(t, out, 1)
	assert.Equal(t, "s2", out[0].ScenarioID)
}

func TestMemoryStore_Order(t *testing.T) {
	s := NewMemoryStore()
	s.Set(Status{ScenarioID: "b", VehicleID: "v1"})
	s.Set(Status{ScenarioID: "a", VehicleID: "v2"})
	s.Set(Status{ScenarioID: "a", VehicleID: "v1"})
	out := s.List(Filter{})
	require.Len(t, out, 3)
	assert.Equal(t, []string{"a/v1", "a/v2", "b/v1"}, []string{
		out[0].ScenarioID + "/" + out[0].VehicleID,
		out[1].ScenarioID + "/" + out[1].VehicleID,
		out[2].ScenarioID + "/" + out[2].VehicleID,
	})
}

func TestMemoryStore_Records(t *testing.T) {
	s := NewMemoryStore()
	s.RecordRoute("day", 0, "v1", []*model.Parcel{{ID: "p1"}, {ID: "p1"}})
	s.RecordTransition("day", route.Transition{VehicleID: "v1", Time: 1000, From: "wait", Event: "goto", To: "goto"})
	s.RecordTransition("day", route.Transition{VehicleID: "v1", Time: 5000, From: "goto", Event: "arrived", To: "service"})

	out := s.List(Filter{ScenarioID: "day"})
	require.Len(t, out, 1)
	st := out[0]
	assert.Equal(t, "service", st.State)
	assert.Equal(t, "arrived", st.LastEvent)
	assert.Equal(t, int64(5000), st.Time)
	assert.Equal(t, 2, st.Transitions)
	assert.Equal(t, []string{"p1", "p1"}, st.Route)
}
