package sim

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/kilianp07/pdptw/core/model"
	"github.com/kilianp07/pdptw/core/route"
)

var (
	// ErrService is returned when a pickup or delivery can not start.
	ErrService = errors.New("service refused")
)

// Stats are the service statistics of a PDPModel.
type Stats struct {
	Announced         int   `json:"announced"`
	PickedUp          int   `json:"picked_up"`
	Delivered         int   `json:"delivered"`
	PickupTardiness   int64 `json:"pickup_tardiness"`
	DeliveryTardiness int64 `json:"delivery_tardiness"`
}

// PDPModel is the servicing coordinator: it owns parcel states and vehicle
// contents. It implements route.PDPModel.
type PDPModel struct {
	road *PlaneRoadModel

	mu       sync.RWMutex
	parcels  map[*model.Parcel]model.ParcelState
	order    []*model.Parcel
	vehicles map[string]*pdpVehicle
	stats    Stats
}

type pdpVehicle struct {
	dto      model.VehicleDTO
	state    model.VehicleState
	contents []*model.Parcel
	action   *model.Parcel
	// remaining is the time left on action.
	remaining int64
}

// NewPDPModel returns a coordinator checking positions against road.
func NewPDPModel(road *PlaneRoadModel) *PDPModel {
	return &PDPModel{
		road:     road,
		parcels:  make(map[*model.Parcel]model.ParcelState),
		vehicles: make(map[string]*pdpVehicle),
	}
}

// AddVehicle registers an idle, empty vehicle.
func (m *PDPModel) AddVehicle(v model.VehicleDTO) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vehicles[v.ID]; ok {
		return fmt.Errorf("vehicle %s already registered", v.ID)
	}
	m.vehicles[v.ID] = &pdpVehicle{dto: v}
	return nil
}

// Register adds p in the unseen state.
func (m *PDPModel) Register(p *model.Parcel) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.parcels[p]; ok {
		return fmt.Errorf("%s already registered", p)
	}
	m.parcels[p] = model.ParcelUnseen
	m.order = append(m.order, p)
	return nil
}

// Announce makes an unseen parcel available.
func (m *PDPModel) Announce(p *model.Parcel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.parcels[p]; !ok || st != model.ParcelUnseen {
		return fmt.Errorf("%s can not be announced in state %s", p, st)
	}
	m.parcels[p] = model.ParcelAvailable
	m.stats.Announced++
	return nil
}

func (m *PDPModel) ParcelState(p *model.Parcel) model.ParcelState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.parcels[p]
}

func (m *PDPModel) VehicleState(id string) model.VehicleState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vehicle(id).state
}

func (m *PDPModel) Contains(id string, p *model.Parcel) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Contains(m.vehicle(id).contents, p)
}

// Contents returns the parcels aboard the vehicle.
func (m *PDPModel) Contents(id string) []*model.Parcel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.vehicle(id).contents)
}

func (m *PDPModel) ActionParcel(id string) *model.Parcel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vehicle(id).action
}

// RemainingServiceTime is the time left on the current action.
func (m *PDPModel) RemainingServiceTime(id string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vehicle(id).remaining
}

// Available returns the parcels a snapshot offers for planning: available
// ones and the ones being picked up, in registration order.
func (m *PDPModel) Available() []*model.Parcel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Parcel
	for _, p := range m.order {
		if st := m.parcels[p]; st == model.ParcelAvailable || st == model.ParcelPickingUp {
			out = append(out, p)
		}
	}
	return out
}

// Done reports whether every registered parcel is delivered.
func (m *PDPModel) Done() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, st := range m.parcels {
		if st != model.ParcelDelivered {
			return false
		}
	}
	return true
}

func (m *PDPModel) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

func (m *PDPModel) vehicle(id string) *pdpVehicle {
	v, ok := m.vehicles[id]
	if !ok {
		panic("sim: unknown vehicle " + id)
	}
	return v
}

// Service starts the pickup or delivery of p at the vehicle position. The
// vehicle must be idle, at the right location, and the window must be open.
func (m *PDPModel) Service(id string, p *model.Parcel, tl route.TimeLapse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.vehicle(id)
	if v.state != model.VehicleIdle {
		return fmt.Errorf("%w: vehicle %s is %s", ErrService, id, v.state)
	}
	delivery := slices.Contains(v.contents, p)
	loc, tw, dur := p.PickupLocation, p.PickupWindow, p.PickupDuration
	if delivery {
		loc, tw, dur = p.DeliveryLocation, p.DeliveryWindow, p.DeliveryDuration
	}
	if !m.road.AtPosition(id, loc) {
		return fmt.Errorf("%w: vehicle %s is not at the location of %s", ErrService, id, p)
	}
	if tw.IsBeforeStart(tl.Time()) {
		return fmt.Errorf("%w: window of %s opens at %d", ErrService, p, tw.Begin)
	}
	late := max(0, tl.Time()+dur-tw.End)

	if delivery {
		if m.parcels[p] != model.ParcelInCargo {
			return fmt.Errorf("%w: %s is %s", ErrService, p, m.parcels[p])
		}
		m.parcels[p] = model.ParcelDelivering
		v.state = model.VehicleDelivering
		m.stats.DeliveryTardiness += late
	} else {
		if m.parcels[p] != model.ParcelAvailable {
			return fmt.Errorf("%w: %s is %s", ErrService, p, m.parcels[p])
		}
		if load(v.contents)+p.Capacity > v.dto.Capacity {
			return fmt.Errorf("%w: %s does not fit in vehicle %s", ErrService, p, id)
		}
		m.parcels[p] = model.ParcelPickingUp
		v.state = model.VehiclePickingUp
		m.stats.PickupTardiness += late
	}
	v.action = p
	v.remaining = dur
	m.progress(v, tl)
	return nil
}

// Continue spends tl on the vehicle's unfinished action, if any.
func (m *PDPModel) Continue(id string, tl route.TimeLapse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v := m.vehicle(id); v.action != nil {
		m.progress(v, tl)
	}
}

func (m *PDPModel) progress(v *pdpVehicle, tl route.TimeLapse) {
	if v.remaining > tl.TimeLeft() {
		v.remaining -= tl.TimeLeft()
		tl.ConsumeAll()
		return
	}
	tl.Consume(v.remaining)
	p := v.action
	switch v.state {
	case model.VehiclePickingUp:
		v.contents = append(v.contents, p)
		m.parcels[p] = model.ParcelInCargo
		m.stats.PickedUp++
	case model.VehicleDelivering:
		v.contents = slices.DeleteFunc(v.contents, func(q *model.Parcel) bool { return q == p })
		m.parcels[p] = model.ParcelDelivered
		m.stats.Delivered++
	}
	v.action, v.remaining, v.state = nil, 0, model.VehicleIdle
}

func load(ps []*model.Parcel) float64 {
	var c float64
	for _, p := range ps {
		c += p.Capacity
	}
	return c
}
