// Package scenario describes simulation instances: the fleet, the depot, the
// stream of transport requests and the units everything is expressed in.
// Scenarios are read from and written to YAML or JSON files.
package scenario

import (
	"errors"
	"fmt"

	"github.com/kilianp07/pdptw/core/model"
	"github.com/kilianp07/pdptw/core/snapshot"
)

// Position is a point in the plane.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

func (p Position) Point() model.Point { return model.Pt(p.X, p.Y) }

// Window is a time window; a zero End means always open.
type Window struct {
	Begin int64 `json:"begin" yaml:"begin"`
	End   int64 `json:"end" yaml:"end"`
}

func (w Window) timeWindow() model.TimeWindow {
	if w.End == 0 {
		return model.TimeWindow{Begin: w.Begin, End: model.AlwaysOpen.End}
	}
	return model.TimeWindow{Begin: w.Begin, End: w.End}
}

// VehicleSpec describes a vehicle of the fleet.
type VehicleSpec struct {
	ID           string   `json:"id" yaml:"id"`
	Start        Position `json:"start" yaml:"start"`
	Speed        float64  `json:"speed" yaml:"speed"`
	Capacity     float64  `json:"capacity" yaml:"capacity"`
	Availability Window   `json:"availability" yaml:"availability"`
}

// ParcelSpec describes a transport request.
type ParcelSpec struct {
	ID               string   `json:"id" yaml:"id"`
	Pickup           Position `json:"pickup" yaml:"pickup"`
	Delivery         Position `json:"delivery" yaml:"delivery"`
	PickupWindow     Window   `json:"pickup_window" yaml:"pickup_window"`
	DeliveryWindow   Window   `json:"delivery_window" yaml:"delivery_window"`
	PickupDuration   int64    `json:"pickup_duration" yaml:"pickup_duration"`
	DeliveryDuration int64    `json:"delivery_duration" yaml:"delivery_duration"`
	Capacity         float64  `json:"capacity" yaml:"capacity"`
	AnnounceTime     int64    `json:"announce_time" yaml:"announce_time"`
}

// Scenario is one simulation instance.
type Scenario struct {
	ID           string `json:"id" yaml:"id"`
	TimeUnit     string `json:"time_unit" yaml:"time_unit"`
	DistanceUnit string `json:"distance_unit" yaml:"distance_unit"`
	SpeedUnit    string `json:"speed_unit" yaml:"speed_unit"`
	// TickLength and EndTime are expressed in TimeUnit.
	TickLength     int64         `json:"tick_length" yaml:"tick_length"`
	EndTime        int64         `json:"end_time" yaml:"end_time"`
	AllowDiversion bool          `json:"allow_diversion" yaml:"allow_diversion"`
	Depot          Position      `json:"depot" yaml:"depot"`
	Vehicles       []VehicleSpec `json:"vehicles" yaml:"vehicles"`
	Parcels        []ParcelSpec  `json:"parcels" yaml:"parcels"`
}

// SetDefaults fills in milliseconds, kilometers, km/h and one second ticks.
func (s *Scenario) SetDefaults() {
	if s.TimeUnit == "" {
		s.TimeUnit = "1ms"
	}
	if s.DistanceUnit == "" {
		s.DistanceUnit = "km"
	}
	if s.SpeedUnit == "" {
		s.SpeedUnit = "km/h"
	}
	if s.TickLength == 0 {
		s.TickLength = 1000
	}
}

// Validate checks units, the fleet and the requests.
func (s Scenario) Validate() error {
	if _, err := s.Units(); err != nil {
		return err
	}
	if s.TickLength <= 0 {
		return errors.New("tick_length must be positive")
	}
	if s.EndTime <= 0 {
		return errors.New("end_time must be positive")
	}
	if len(s.Vehicles) == 0 {
		return errors.New("at least one vehicle is required")
	}
	ids := make(map[string]bool, len(s.Vehicles))
	for _, v := range s.Vehicles {
		if ids[v.ID] {
			return fmt.Errorf("duplicate vehicle id %s", v.ID)
		}
		ids[v.ID] = true
		if err := v.dto().Validate(); err != nil {
			return err
		}
	}
	for i, p := range s.Parcels {
		if p.AnnounceTime < 0 {
			return fmt.Errorf("parcel %d: negative announce time", i)
		}
		if err := p.parcel().Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Units parses the units of the scenario.
func (s Scenario) Units() (snapshot.Units, error) {
	t, err := model.ParseTimeUnit(s.TimeUnit)
	if err != nil {
		return snapshot.Units{}, fmt.Errorf("time_unit: %w", err)
	}
	d, err := model.ParseDistanceUnit(s.DistanceUnit)
	if err != nil {
		return snapshot.Units{}, fmt.Errorf("distance_unit: %w", err)
	}
	sp, err := model.ParseSpeedUnit(s.SpeedUnit)
	if err != nil {
		return snapshot.Units{}, fmt.Errorf("speed_unit: %w", err)
	}
	return snapshot.Units{Time: t, Distance: d, Speed: sp}, nil
}

func (v VehicleSpec) dto() model.VehicleDTO {
	return model.VehicleDTO{
		ID:            v.ID,
		StartPosition: v.Start.Point(),
		Speed:         v.Speed,
		Capacity:      v.Capacity,
		Availability:  v.Availability.timeWindow(),
	}
}

// VehicleDTOs returns the fleet.
func (s Scenario) VehicleDTOs() []model.VehicleDTO {
	out := make([]model.VehicleDTO, len(s.Vehicles))
	for i, v := range s.Vehicles {
		out[i] = v.dto()
	}
	return out
}

func (p ParcelSpec) parcel() *model.Parcel {
	m := model.NewParcel(p.Pickup.Point(), p.Delivery.Point(), p.PickupWindow.timeWindow(), p.DeliveryWindow.timeWindow())
	if p.ID != "" {
		m.ID = p.ID
	}
	m.PickupDuration = p.PickupDuration
	m.DeliveryDuration = p.DeliveryDuration
	m.Capacity = p.Capacity
	m.AnnounceTime = p.AnnounceTime
	return m
}

// NewParcels returns fresh parcels for one run of the scenario. Every call
// returns new instances so that runs never share state.
func (s Scenario) NewParcels() []*model.Parcel {
	out := make([]*model.Parcel, len(s.Parcels))
	for i, p := range s.Parcels {
		out[i] = p.parcel()
	}
	return out
}
