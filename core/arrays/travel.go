package arrays

import (
	"time"

	"github.com/kilianp07/pdptw/core/model"
)

// TravelTimeMatrix returns the travel times between all locations. Distances
// are straight line distances expressed in unit, travelled at speed, and the
// result is expressed in multiples of out rounded with mode. The diagonal is
// zero.
func TravelTimeMatrix(locs []model.Point, unit model.DistanceUnit, speed model.Speed, out time.Duration, mode model.RoundingMode) [][]int {
	n := len(locs)
	m := make([][]int, n)
	for i := range m {
		m[i] = make([]int, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			m[i][j] = RoundedTravelTime(speed, model.Distance(locs[i], locs[j]), unit, out, mode)
		}
	}
	return m
}

// RoundedTravelTime is the travel time for a single distance.
func RoundedTravelTime(speed model.Speed, dist float64, unit model.DistanceUnit, out time.Duration, mode model.RoundingMode) int {
	return int(mode.Round(speed.TravelTime(dist, unit, out)))
}

// ConvertTimeWindow discretises tw relative to ref. The lower bound is
// rounded up and the upper bound rounded down, both clamped at zero, so the
// discrete window never exceeds the continuous one. When the continuous window
// is narrower than one output unit the two bounds cross by one; they are then
// swapped, yielding the single unit interval that contains the window.
func ConvertTimeWindow(tw model.TimeWindow, ref int64, conv model.TimeConverter) (int, int) {
	release := windowStart(tw.Begin, ref, conv)
	due := windowEnd(tw.End, ref, conv)
	if release > due {
		return due, release
	}
	return release, due
}

func windowStart(begin, ref int64, conv model.TimeConverter) int {
	return clampRounded(conv.Convert(begin-ref), model.Ceiling)
}

func windowEnd(end, ref int64, conv model.TimeConverter) int {
	return clampRounded(conv.Convert(end-ref), model.Floor)
}

// clampRounded rounds v into [0, Unreachable].
func clampRounded(v float64, mode model.RoundingMode) int {
	if v >= Unreachable {
		return Unreachable
	}
	return max(int(mode.Round(v)), 0)
}

// RouteTardiness sums max(0, arrival+service-due) over every position of
// route except the ones at currentPositionIndex: the vehicle already is at its
// current position, so time spent there can not be late. arrivalTimes is
// indexed by route position; serviceTimes and dueDates by location.
func RouteTardiness(route, arrivalTimes, serviceTimes, dueDates []int, currentPositionIndex int) int {
	total := 0
	for i, loc := range route {
		if loc == currentPositionIndex {
			continue
		}
		if late := arrivalTimes[i] + serviceTimes[loc] - dueDates[loc]; late > 0 {
			total += late
		}
	}
	return total
}

// ArrivalTimes computes the earliest arrival time at every position of route,
// which must start at location 0. The first leg uses vehicleTravelTimes and
// starts after remainingServiceTime; vehicles wait for release dates.
func ArrivalTimes(route []int, travelTime [][]int, remainingServiceTime int, vehicleTravelTimes, serviceTimes, releaseDates []int) []int {
	arrivals := make([]int, len(route))
	for j := 1; j < len(route); j++ {
		prev, cur := route[j-1], route[j]
		var earliest int
		if j == 1 {
			earliest = remainingServiceTime + vehicleTravelTimes[cur]
		} else {
			earliest = arrivals[j-1] + serviceTimes[prev] + travelTime[prev][cur]
		}
		arrivals[j] = max(earliest, releaseDates[cur])
	}
	return arrivals
}

// RouteTravelTime sums the travel times along route, using vehicleTravelTimes
// for the first leg.
func RouteTravelTime(route []int, travelTime [][]int, vehicleTravelTimes []int) int {
	total := 0
	for j := 1; j < len(route); j++ {
		if j == 1 {
			total += vehicleTravelTimes[route[j]]
			continue
		}
		total += travelTime[route[j-1]][route[j]]
	}
	return total
}
