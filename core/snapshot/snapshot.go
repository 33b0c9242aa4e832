// Package snapshot captures the state of a simulation at a planning instant.
// Snapshots are values: they are built once, validated, and never mutated.
package snapshot

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/kilianp07/pdptw/core/model"
)

// ErrInconsistentCut is returned when a snapshot reports a parcel in two
// places at once.
var ErrInconsistentCut = errors.New("snapshot is not a consistent cut")

// Units groups the units in which a snapshot expresses time, distance and
// speed.
type Units struct {
	Time     time.Duration
	Distance model.DistanceUnit
	Speed    model.SpeedUnit
}

// DefaultUnits are milliseconds, kilometers and km/h.
var DefaultUnits = Units{Time: time.Millisecond, Distance: model.Kilometer, Speed: model.KilometersPerHour}

// VehicleSnapshot is the state of one vehicle.
type VehicleSnapshot struct {
	DTO      model.VehicleDTO
	Position model.Point
	// Contents are the parcels physically aboard, including one being delivered.
	Contents []*model.Parcel
	// RemainingServiceTime is the time left on an in-progress pickup or delivery.
	RemainingServiceTime int64
	// Destination is the parcel the vehicle is committed to, nil when it is free.
	Destination *model.Parcel
	// Route is the route the vehicle is currently following. It is only
	// meaningful when RouteKnown is set.
	Route      []*model.Parcel
	RouteKnown bool
}

// RemainingCapacity returns the vehicle capacity minus the load aboard.
func (v VehicleSnapshot) RemainingCapacity() float64 {
	c := v.DTO.Capacity
	for _, p := range v.Contents {
		c -= p.Capacity
	}
	return c
}

// Carries reports whether p is aboard the vehicle.
func (v VehicleSnapshot) Carries(p *model.Parcel) bool {
	return slices.Contains(v.Contents, p)
}

// GlobalSnapshot is the input of a solver.
type GlobalSnapshot struct {
	Time      int64
	Units     Units
	Depot     model.Point
	Available []*model.Parcel
	Vehicles  []VehicleSnapshot
}

// New copies the given collections into a GlobalSnapshot and validates it.
func New(now int64, units Units, depot model.Point, available []*model.Parcel, vehicles []VehicleSnapshot) (GlobalSnapshot, error) {
	vs := make([]VehicleSnapshot, len(vehicles))
	for i, v := range vehicles {
		v.Contents = slices.Clone(v.Contents)
		v.Route = slices.Clone(v.Route)
		vs[i] = v
	}
	s := GlobalSnapshot{
		Time:      now,
		Units:     units,
		Depot:     depot,
		Available: slices.Clone(available),
		Vehicles:  vs,
	}
	if err := s.Validate(); err != nil {
		return GlobalSnapshot{}, err
	}
	return s, nil
}

// Validate checks the consistent cut invariant: a parcel is either
// available, or aboard exactly one vehicle.
func (s GlobalSnapshot) Validate() error {
	seen := make(map[*model.Parcel]string, len(s.Available))
	for _, p := range s.Available {
		if p == nil {
			return fmt.Errorf("%w: nil available parcel", ErrInconsistentCut)
		}
		if _, dup := seen[p]; dup {
			return fmt.Errorf("%w: %s listed twice as available", ErrInconsistentCut, p)
		}
		seen[p] = "available"
	}
	for _, v := range s.Vehicles {
		if v.RemainingServiceTime < 0 {
			return fmt.Errorf("vehicle %s: negative remaining service time", v.DTO.ID)
		}
		for _, p := range v.Contents {
			if where, dup := seen[p]; dup {
				return fmt.Errorf("%w: %s aboard %s and %s", ErrInconsistentCut, p, v.DTO.ID, where)
			}
			seen[p] = "vehicle " + v.DTO.ID
		}
	}
	return nil
}

// NumParcels returns the number of available plus in-cargo parcels.
func (s GlobalSnapshot) NumParcels() int {
	n := len(s.Available)
	for _, v := range s.Vehicles {
		n += len(v.Contents)
	}
	return n
}

// InCargo returns the parcels aboard any vehicle, in vehicle order.
func (s GlobalSnapshot) InCargo() []*model.Parcel {
	var out []*model.Parcel
	for _, v := range s.Vehicles {
		out = append(out, v.Contents...)
	}
	return out
}

// Summary is a compact, printable description of a snapshot.
type Summary struct {
	Time      int64            `json:"time"`
	Available []string         `json:"available"`
	Vehicles  []VehicleSummary `json:"vehicles"`
}

// VehicleSummary is the printable part of a VehicleSnapshot.
type VehicleSummary struct {
	ID                   string      `json:"id"`
	Position             model.Point `json:"position"`
	Contents             []string    `json:"contents"`
	RemainingServiceTime int64       `json:"remaining_service_time"`
	Destination          string      `json:"destination,omitempty"`
}

// Summarize returns a Summary of s.
func (s GlobalSnapshot) Summarize() Summary {
	sum := Summary{Time: s.Time, Available: ids(s.Available)}
	for _, v := range s.Vehicles {
		vs := VehicleSummary{
			ID:                   v.DTO.ID,
			Position:             v.Position,
			Contents:             ids(v.Contents),
			RemainingServiceTime: v.RemainingServiceTime,
		}
		if v.Destination != nil {
			vs.Destination = v.Destination.ID
		}
		sum.Vehicles = append(sum.Vehicles, vs)
	}
	return sum
}

func ids(ps []*model.Parcel) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}
