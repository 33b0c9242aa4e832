package arrays

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/kilianp07/pdptw/core/model"
	"github.com/kilianp07/pdptw/core/snapshot"
)

const (
	// CurrentPositionIndex is the location index of the vehicle position.
	CurrentPositionIndex = 0
	// DepotIndex is the location index of the depot.
	DepotIndex = 1
	// Unreachable marks travel times to locations a vehicle may not visit.
	Unreachable = math.MaxInt32
)

var (
	// ErrMalformedSnapshot is returned for snapshots that can not be turned
	// into a numeric problem.
	ErrMalformedSnapshot = errors.New("malformed snapshot")
	// ErrUnknownIndex is returned when a solution refers to a location that
	// does not belong to the problem.
	ErrUnknownIndex = errors.New("unknown location index")
)

// ParcelIndex links a parcel to its pickup and delivery location indices.
// Pickup is -1 for parcels that are already aboard a vehicle.
type ParcelIndex struct {
	Parcel   *model.Parcel
	Pickup   int
	Delivery int
}

// Solution is an index sequence produced by an array solver, starting at
// CurrentPositionIndex and ending at DepotIndex.
type Solution struct {
	Route          []int `json:"route"`
	ArrivalTimes   []int `json:"arrival_times"`
	ObjectiveValue int   `json:"objective_value"`
}

// Bundle is the single vehicle problem together with the tables needed to
// map indices back to parcels.
type Bundle struct {
	TravelTime   [][]int
	ReleaseDates []int
	DueDates     []int
	// ServicePairs links each pickup index to its delivery index.
	ServicePairs [][2]int
	ServiceTimes []int
	// CurrentSolutions is the warm start, nil when routes are unknown.
	CurrentSolutions []Solution

	Locations   []model.Point
	ParcelIndex map[*model.Parcel]ParcelIndex
	IndexParcel map[int]ParcelIndex
}

// NumLocations returns the number of locations in the problem.
func (b *Bundle) NumLocations() int { return len(b.Locations) }

// SingleVehicleProblem is the numeric input of a single vehicle solver.
type SingleVehicleProblem struct {
	TravelTime      [][]int
	ReleaseDates    []int
	DueDates        []int
	ServicePairs    [][2]int
	ServiceTimes    []int
	CurrentSolution *Solution
}

// Problem extracts the solver input from b.
func (b *Bundle) Problem() SingleVehicleProblem {
	p := SingleVehicleProblem{
		TravelTime:   b.TravelTime,
		ReleaseDates: b.ReleaseDates,
		DueDates:     b.DueDates,
		ServicePairs: b.ServicePairs,
		ServiceTimes: b.ServiceTimes,
	}
	if len(b.CurrentSolutions) > 0 {
		sol := b.CurrentSolutions[0]
		p.CurrentSolution = &sol
	}
	return p
}

// ToSingleVehicleArrays builds the numeric problem for s, expressed in
// multiples of out. The current position and availability of the first
// vehicle are used; the parcels aboard all vehicles are included so the
// function can serve as the base of the multi vehicle conversion.
func ToSingleVehicleArrays(s snapshot.GlobalSnapshot, out time.Duration) (*Bundle, error) {
	if len(s.Vehicles) == 0 {
		return nil, fmt.Errorf("%w: no vehicles", ErrMalformedSnapshot)
	}
	if out <= 0 {
		return nil, fmt.Errorf("%w: output time unit must be positive", ErrMalformedSnapshot)
	}
	conv := model.TimeConverter{From: s.Units.Time, To: out}
	v := s.Vehicles[0]
	inCargo := s.InCargo()
	avail := len(s.Available)
	n := 2 + 2*avail + len(inCargo)

	b := &Bundle{
		ReleaseDates: make([]int, n),
		DueDates:     make([]int, n),
		ServicePairs: make([][2]int, 0, avail),
		ServiceTimes: make([]int, n),
		Locations:    make([]model.Point, 0, n),
		ParcelIndex:  make(map[*model.Parcel]ParcelIndex, avail+len(inCargo)),
		IndexParcel:  make(map[int]ParcelIndex, 2*avail+len(inCargo)),
	}
	b.Locations = append(b.Locations, v.Position, s.Depot)
	b.DueDates[DepotIndex] = windowEnd(v.DTO.Availability.End, s.Time, conv)

	index := 2
	for _, p := range s.Available {
		pi := ParcelIndex{Parcel: p, Pickup: index, Delivery: index + avail}
		b.ParcelIndex[p] = pi
		b.IndexParcel[pi.Pickup] = pi
		b.IndexParcel[pi.Delivery] = pi
		b.ServicePairs = append(b.ServicePairs, [2]int{pi.Pickup, pi.Delivery})
		b.Locations = append(b.Locations, p.PickupLocation)
		b.ServiceTimes[index] = serviceTime(p.PickupDuration, conv)
		b.ReleaseDates[index], b.DueDates[index] = ConvertTimeWindow(p.PickupWindow, s.Time, conv)
		index++
	}
	for _, p := range slices.Concat(s.Available, inCargo) {
		if index >= 2+2*avail {
			pi := ParcelIndex{Parcel: p, Pickup: -1, Delivery: index}
			b.ParcelIndex[p] = pi
			b.IndexParcel[index] = pi
		}
		b.Locations = append(b.Locations, p.DeliveryLocation)
		b.ServiceTimes[index] = serviceTime(p.DeliveryDuration, conv)
		b.ReleaseDates[index], b.DueDates[index] = ConvertTimeWindow(p.DeliveryWindow, s.Time, conv)
		index++
	}
	if index != n {
		return nil, fmt.Errorf("%w: built %d of %d locations", ErrMalformedSnapshot, index, n)
	}

	speed := s.Units.Speed.Of(v.DTO.Speed)
	b.TravelTime = TravelTimeMatrix(b.Locations, s.Units.Distance, speed, out, model.Ceiling)

	if v.RouteKnown && len(s.Vehicles) == 1 {
		sols, err := ToCurrentSolutions(s, b, [][]int{b.TravelTime[CurrentPositionIndex]}, []int{0})
		if err != nil {
			return nil, err
		}
		b.CurrentSolutions = sols
	}
	return b, nil
}

func serviceTime(d int64, conv model.TimeConverter) int {
	return int(model.Ceiling.Round(conv.Convert(d)))
}

// ConvertSolution maps the index sequence of sol back to parcels using
// table. The current position and depot indices are skipped wherever they
// occur; an index that is not in table is an error.
func ConvertSolution(sol Solution, table map[int]ParcelIndex) ([]*model.Parcel, error) {
	route := make([]*model.Parcel, 0, len(sol.Route))
	for _, idx := range sol.Route {
		if idx == CurrentPositionIndex || idx == DepotIndex {
			continue
		}
		pi, ok := table[idx]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownIndex, idx)
		}
		route = append(route, pi.Parcel)
	}
	return route, nil
}

// ToCurrentSolutions converts the known routes of all vehicles into warm
// start solutions. vehicleTravelTimes and remainingServiceTimes are indexed
// by vehicle.
func ToCurrentSolutions(s snapshot.GlobalSnapshot, b *Bundle, vehicleTravelTimes [][]int, remainingServiceTimes []int) ([]Solution, error) {
	sols := make([]Solution, len(s.Vehicles))
	for i, v := range s.Vehicles {
		route, err := routeIndices(v, b.ParcelIndex)
		if err != nil {
			return nil, fmt.Errorf("vehicle %s: %w", v.DTO.ID, err)
		}
		arrivals := ArrivalTimes(route, b.TravelTime, remainingServiceTimes[i], vehicleTravelTimes[i], b.ServiceTimes, b.ReleaseDates)
		tardiness := RouteTardiness(route, arrivals, b.ServiceTimes, b.DueDates, CurrentPositionIndex)
		travel := RouteTravelTime(route, b.TravelTime, vehicleTravelTimes[i])
		sols[i] = Solution{Route: route, ArrivalTimes: arrivals, ObjectiveValue: travel + tardiness}
	}
	return sols, nil
}

// routeIndices translates the route of v into location indices, framed by
// the current position and the depot. A parcel aboard v maps to its delivery
// index; any other parcel maps to its pickup on first and its delivery on
// second occurrence.
func routeIndices(v snapshot.VehicleSnapshot, table map[*model.Parcel]ParcelIndex) ([]int, error) {
	route := make([]int, 0, len(v.Route)+2)
	route = append(route, CurrentPositionIndex)
	seen := make(map[*model.Parcel]bool, len(v.Route))
	for _, p := range v.Route {
		pi, ok := table[p]
		if !ok {
			return nil, fmt.Errorf("%w: %s is not part of the snapshot", ErrMalformedSnapshot, p)
		}
		if v.Carries(p) || pi.Pickup < 0 || seen[p] {
			route = append(route, pi.Delivery)
			continue
		}
		seen[p] = true
		route = append(route, pi.Pickup)
	}
	return append(route, DepotIndex), nil
}
