package solver

import (
	"cmp"
	"context"
	"slices"

	"github.com/kilianp07/pdptw/core/arrays"
)

// Sequential is a reference optimizer. A vehicle first visits the stop it
// is committed to, then delivers its cargo, then serves the open requests
// one after the other by increasing pickup due date. In fleet mode the open
// requests are dealt round-robin. It makes no attempt at optimality and
// exists to drive simulations end to end.
type Sequential struct{}

// SolveSingle implements SingleVehicleArraysSolver. The first stop of the
// warm start, if any, is kept as first stop.
func (Sequential) SolveSingle(ctx context.Context, p arrays.SingleVehicleProblem) (arrays.Solution, error) {
	if err := ctx.Err(); err != nil {
		return arrays.Solution{}, err
	}
	paired := make(map[int]bool, 2*len(p.ServicePairs))
	for _, pr := range p.ServicePairs {
		paired[pr[0]], paired[pr[1]] = true, true
	}
	var cargo []int
	for i := arrays.DepotIndex + 1; i < len(p.TravelTime); i++ {
		if !paired[i] {
			cargo = append(cargo, i)
		}
	}
	dest := 0
	if ws := p.CurrentSolution; ws != nil && len(ws.Route) > 1 && ws.Route[1] != arrays.DepotIndex {
		dest = ws.Route[1]
	}
	route := sequence([][]int{{}}, []int{dest}, [][]int{cargo}, p.ServicePairs, p.DueDates)[0]
	return evaluate(route, p.TravelTime, p.TravelTime[arrays.CurrentPositionIndex], 0, p.ServiceTimes, p.ReleaseDates, p.DueDates), nil
}

// SolveMulti implements MultiVehicleArraysSolver.
func (Sequential) SolveMulti(ctx context.Context, p arrays.MultiVehicleProblem) ([]arrays.Solution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nv := len(p.VehicleTravelTimes)
	dests := make([]int, nv)
	copy(dests, p.CurrentDestinations)
	cargo := make([][]int, nv)
	for _, row := range p.Inventories {
		cargo[row[0]] = append(cargo[row[0]], row[1])
	}

	routes := sequence(make([][]int, nv), dests, cargo, p.ServicePairs, p.DueDates)
	sols := make([]arrays.Solution, nv)
	for v, route := range routes {
		rst := 0
		if v < len(p.RemainingServiceTimes) {
			rst = p.RemainingServiceTimes[v]
		}
		sols[v] = evaluate(route, p.TravelTime, p.VehicleTravelTimes[v], rst, p.ServiceTimes, p.ReleaseDates, p.DueDates)
	}
	return sols, nil
}

// sequence builds one index route per vehicle: destination, cargo, the
// delivery of a destination pickup, then the remaining pairs round-robin.
func sequence(routes [][]int, dests []int, cargo [][]int, pairs [][2]int, due []int) [][]int {
	deliveryOf := make(map[int]int, len(pairs))
	for _, pr := range pairs {
		deliveryOf[pr[0]] = pr[1]
	}
	claimed := make(map[int]bool)
	for v := range routes {
		routes[v] = []int{arrays.CurrentPositionIndex}
		dest := dests[v]
		if dest > arrays.DepotIndex {
			routes[v] = append(routes[v], dest)
		}
		for _, idx := range cargo[v] {
			if idx != dest {
				routes[v] = append(routes[v], idx)
			}
		}
		if del, ok := deliveryOf[dest]; ok {
			routes[v] = append(routes[v], del)
			claimed[dest] = true
		}
	}
	next := 0
	for _, pr := range byPickupDue(pairs, due) {
		if claimed[pr[0]] {
			continue
		}
		routes[next] = append(routes[next], pr[0], pr[1])
		next = (next + 1) % len(routes)
	}
	for v := range routes {
		routes[v] = append(routes[v], arrays.DepotIndex)
	}
	return routes
}

func byPickupDue(pairs [][2]int, due []int) [][2]int {
	out := slices.Clone(pairs)
	slices.SortStableFunc(out, func(a, b [2]int) int {
		return cmp.Compare(due[a[0]], due[b[0]])
	})
	return out
}

func evaluate(route []int, tt [][]int, vtt []int, rst int, service, release, due []int) arrays.Solution {
	arrivals := arrays.ArrivalTimes(route, tt, rst, vtt, service, release)
	return arrays.Solution{
		Route:        route,
		ArrivalTimes: arrivals,
		ObjectiveValue: arrays.RouteTravelTime(route, tt, vtt) +
			arrays.RouteTardiness(route, arrivals, service, due, arrays.CurrentPositionIndex),
	}
}
