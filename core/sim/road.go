package sim

import (
	"fmt"
	"sync"

	"github.com/kilianp07/pdptw/core/model"
	"github.com/kilianp07/pdptw/core/route"
	"github.com/kilianp07/pdptw/core/snapshot"
)

// PlaneRoadModel moves vehicles along straight lines at constant speed. It
// implements route.RoadModel.
type PlaneRoadModel struct {
	units    snapshot.Units
	depot    model.Point
	allowDiv bool
	mu       sync.RWMutex
	vehicles map[string]*roadVehicle
}

type roadVehicle struct {
	pos       model.Point
	speed     model.Speed
	travelled float64
	// depotArrival is the last instant the vehicle reached the depot.
	depotArrival int64
}

// NewPlaneRoadModel returns an empty road model.
func NewPlaneRoadModel(units snapshot.Units, depot model.Point, allowDiversion bool) *PlaneRoadModel {
	return &PlaneRoadModel{
		units:    units,
		depot:    depot,
		allowDiv: allowDiversion,
		vehicles: make(map[string]*roadVehicle),
	}
}

// AddVehicle places v at its start position.
func (m *PlaneRoadModel) AddVehicle(v model.VehicleDTO) error {
	if err := v.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vehicles[v.ID]; ok {
		return fmt.Errorf("vehicle %s already on the road", v.ID)
	}
	m.vehicles[v.ID] = &roadVehicle{pos: v.StartPosition, speed: m.units.Speed.Of(v.Speed), depotArrival: -1}
	return nil
}

func (m *PlaneRoadModel) vehicle(id string) *roadVehicle {
	v, ok := m.vehicles[id]
	if !ok {
		panic("sim: unknown vehicle " + id)
	}
	return v
}

func (m *PlaneRoadModel) Depot() model.Point { return m.depot }

func (m *PlaneRoadModel) DiversionAllowed() bool { return m.allowDiv }

func (m *PlaneRoadModel) Position(id string) model.Point {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vehicle(id).pos
}

func (m *PlaneRoadModel) AtPosition(id string, p model.Point) bool {
	return model.SamePosition(m.Position(id), p)
}

// TravelTime is the time needed to reach p, rounded up to a whole time unit.
func (m *PlaneRoadModel) TravelTime(id string, p model.Point) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v := m.vehicle(id)
	return m.travelTime(v, model.Distance(v.pos, p))
}

func (m *PlaneRoadModel) travelTime(v *roadVehicle, dist float64) int64 {
	return model.Ceiling.Round(v.speed.TravelTime(dist, m.units.Distance, m.units.Time))
}

// MoveTo advances the vehicle towards p for at most the time left in tl.
func (m *PlaneRoadModel) MoveTo(id string, p model.Point, tl route.TimeLapse) {
	if !tl.HasTimeLeft() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.vehicle(id)
	dist := model.Distance(v.pos, p)
	reach := v.speed.Distance(float64(tl.TimeLeft()), m.units.Time, m.units.Distance)
	if dist-reach <= model.PositionTolerance {
		tl.Consume(min(m.travelTime(v, dist), tl.TimeLeft()))
		v.pos = p
		v.travelled += dist
		if model.SamePosition(p, m.depot) {
			v.depotArrival = tl.Time()
		}
		return
	}
	v.pos = model.Towards(v.pos, p, reach)
	v.travelled += reach
	tl.ConsumeAll()
}

// TravelledDistance is the distance covered by the vehicle so far.
func (m *PlaneRoadModel) TravelledDistance(id string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vehicle(id).travelled
}

// DepotArrival is the last instant the vehicle reached the depot by moving,
// and false when it never did.
func (m *PlaneRoadModel) DepotArrival(id string) (int64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t := m.vehicle(id).depotArrival
	return t, t >= 0
}
