package solver

import (
	"context"
	"fmt"

	"github.com/kilianp07/pdptw/core/model"
	"github.com/kilianp07/pdptw/core/snapshot"
)

// ValidateRoutes checks that routes is an executable plan for s: one route
// per vehicle, every available parcel visited twice by a single vehicle,
// every parcel aboard delivered once by its own vehicle, and committed
// vehicles starting with their destination.
func ValidateRoutes(s snapshot.GlobalSnapshot, routes [][]*model.Parcel) error {
	if len(routes) != len(s.Vehicles) {
		return fmt.Errorf("%w: %d routes for %d vehicles", ErrInvalidSolution, len(routes), len(s.Vehicles))
	}
	owner := make(map[*model.Parcel]int, s.NumParcels())
	want := make(map[*model.Parcel]int, s.NumParcels())
	for _, p := range s.Available {
		owner[p] = -1
		want[p] = 2
	}
	for i, v := range s.Vehicles {
		for _, p := range v.Contents {
			owner[p] = i
			want[p] = 1
		}
	}

	seen := make(map[*model.Parcel]int, len(want))
	assigned := make(map[*model.Parcel]int, len(s.Available))
	for i, route := range routes {
		v := s.Vehicles[i]
		if v.Destination != nil && (len(route) == 0 || route[0] != v.Destination) {
			return fmt.Errorf("%w: vehicle %s must start with its destination %s", ErrInvalidSolution, v.DTO.ID, v.Destination)
		}
		for _, p := range route {
			o, known := owner[p]
			if !known {
				return fmt.Errorf("%w: %s is not part of the snapshot", ErrInvalidSolution, p)
			}
			if o >= 0 && o != i {
				return fmt.Errorf("%w: %s is aboard %s but routed to %s", ErrInvalidSolution, p, s.Vehicles[o].DTO.ID, v.DTO.ID)
			}
			if o < 0 {
				if prev, ok := assigned[p]; ok && prev != i {
					return fmt.Errorf("%w: %s is split over two vehicles", ErrInvalidSolution, p)
				}
				assigned[p] = i
			}
			seen[p]++
		}
	}
	for p, n := range want {
		if seen[p] != n {
			return fmt.Errorf("%w: %s occurs %d times, want %d", ErrInvalidSolution, p, seen[p], n)
		}
	}
	return nil
}

// Validated decorates a Solver so that its output is checked with
// ValidateRoutes before being returned.
func Validated(s Solver) Solver {
	return SolverFunc(func(ctx context.Context, snap snapshot.GlobalSnapshot) ([][]*model.Parcel, error) {
		routes, err := s.Solve(ctx, snap)
		if err != nil {
			return nil, err
		}
		if err := ValidateRoutes(snap, routes); err != nil {
			return nil, fmt.Errorf("snapshot at %d: %w", snap.Time, err)
		}
		return routes, nil
	})
}
