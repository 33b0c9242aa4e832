package arrays

import (
	"fmt"
	"time"

	"github.com/kilianp07/pdptw/core/model"
	"github.com/kilianp07/pdptw/core/snapshot"
)

// MultiBundle extends Bundle with the per vehicle arrays of a fleet problem.
type MultiBundle struct {
	Bundle

	// VehicleTravelTimes[v][j] is the travel time from the position of vehicle
	// v to location j.
	VehicleTravelTimes [][]int
	// Inventories holds one [vehicle, delivery index] row per parcel aboard.
	Inventories           [][2]int
	RemainingServiceTimes []int
	// CurrentDestinations is the location index vehicle v is committed to, or
	// zero when it is free to go anywhere.
	CurrentDestinations []int
}

// MultiVehicleProblem is the numeric input of a fleet solver.
type MultiVehicleProblem struct {
	TravelTime            [][]int
	ReleaseDates          []int
	DueDates              []int
	ServicePairs          [][2]int
	ServiceTimes          []int
	VehicleTravelTimes    [][]int
	Inventories           [][2]int
	RemainingServiceTimes []int
	CurrentDestinations   []int
	CurrentSolutions      []Solution
}

// Problem extracts the solver input from b.
func (b *MultiBundle) Problem() MultiVehicleProblem {
	return MultiVehicleProblem{
		TravelTime:            b.TravelTime,
		ReleaseDates:          b.ReleaseDates,
		DueDates:              b.DueDates,
		ServicePairs:          b.ServicePairs,
		ServiceTimes:          b.ServiceTimes,
		VehicleTravelTimes:    b.VehicleTravelTimes,
		Inventories:           b.Inventories,
		RemainingServiceTimes: b.RemainingServiceTimes,
		CurrentDestinations:   b.CurrentDestinations,
		CurrentSolutions:      b.CurrentSolutions,
	}
}

// ToMultiVehicleArrays builds the fleet problem for s. The depot due date is
// the latest end of availability over all vehicles. Warm start solutions are
// only produced when the routes of all vehicles are known.
func ToMultiVehicleArrays(s snapshot.GlobalSnapshot, out time.Duration) (*MultiBundle, error) {
	base, err := ToSingleVehicleArrays(s, out)
	if err != nil {
		return nil, err
	}
	conv := model.TimeConverter{From: s.Units.Time, To: out}
	mb := &MultiBundle{Bundle: *base}
	mb.CurrentSolutions = nil
	for _, v := range s.Vehicles {
		mb.DueDates[DepotIndex] = max(mb.DueDates[DepotIndex], windowEnd(v.DTO.Availability.End, s.Time, conv))
	}

	mb.Inventories, err = ToInventories(s, mb.ParcelIndex)
	if err != nil {
		return nil, err
	}
	mb.CurrentDestinations, err = ToCurrentDestinations(s, mb.ParcelIndex)
	if err != nil {
		return nil, err
	}
	mb.VehicleTravelTimes = ToVehicleTravelTimes(s, mb.Locations, mb.CurrentDestinations, out)
	mb.RemainingServiceTimes = ToRemainingServiceTimes(s, out)

	if allRoutesKnown(s) {
		mb.CurrentSolutions, err = ToCurrentSolutions(s, &mb.Bundle, mb.VehicleTravelTimes, mb.RemainingServiceTimes)
		if err != nil {
			return nil, err
		}
	}
	return mb, nil
}

func allRoutesKnown(s snapshot.GlobalSnapshot) bool {
	for _, v := range s.Vehicles {
		if !v.RouteKnown {
			return false
		}
	}
	return len(s.Vehicles) > 0
}

// ToInventories lists every parcel aboard a vehicle as a
// [vehicle, delivery index] row.
func ToInventories(s snapshot.GlobalSnapshot, table map[*model.Parcel]ParcelIndex) ([][2]int, error) {
	var inv [][2]int
	for i, v := range s.Vehicles {
		for _, p := range v.Contents {
			pi, ok := table[p]
			if !ok {
				return nil, fmt.Errorf("%w: %s aboard %s has no index", ErrMalformedSnapshot, p, v.DTO.ID)
			}
			inv = append(inv, [2]int{i, pi.Delivery})
		}
	}
	return inv, nil
}

// ToCurrentDestinations returns, per vehicle, the index of the location it is
// committed to: the delivery of a parcel aboard, the pickup otherwise. Free
// vehicles get zero.
func ToCurrentDestinations(s snapshot.GlobalSnapshot, table map[*model.Parcel]ParcelIndex) ([]int, error) {
	dest := make([]int, len(s.Vehicles))
	for i, v := range s.Vehicles {
		if v.Destination == nil {
			continue
		}
		pi, ok := table[v.Destination]
		if !ok {
			return nil, fmt.Errorf("%w: destination %s of %s has no index", ErrMalformedSnapshot, v.Destination, v.DTO.ID)
		}
		if v.Carries(v.Destination) || pi.Pickup < 0 {
			dest[i] = pi.Delivery
		} else {
			dest[i] = pi.Pickup
		}
	}
	return dest, nil
}

// ToVehicleTravelTimes computes the travel times from every vehicle position
// to every location, rounded up. A committed vehicle can only reach its
// destination; all other entries are Unreachable.
func ToVehicleTravelTimes(s snapshot.GlobalSnapshot, locs []model.Point, destinations []int, out time.Duration) [][]int {
	vtt := make([][]int, len(s.Vehicles))
	for i, v := range s.Vehicles {
		speed := s.Units.Speed.Of(v.DTO.Speed)
		row := make([]int, len(locs))
		for j, l := range locs {
			if destinations[i] > 0 && j != destinations[i] {
				row[j] = Unreachable
				continue
			}
			row[j] = RoundedTravelTime(speed, model.Distance(v.Position, l), s.Units.Distance, out, model.Ceiling)
		}
		vtt[i] = row
	}
	return vtt
}

// ToRemainingServiceTimes converts the in-progress service times, rounded up.
func ToRemainingServiceTimes(s snapshot.GlobalSnapshot, out time.Duration) []int {
	conv := model.TimeConverter{From: s.Units.Time, To: out}
	rst := make([]int, len(s.Vehicles))
	for i, v := range s.Vehicles {
		rst[i] = serviceTime(v.RemainingServiceTime, conv)
	}
	return rst
}
