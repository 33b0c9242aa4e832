package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/pdptw/core/arrays"
	"github.com/kilianp07/pdptw/core/logger"
	"github.com/kilianp07/pdptw/core/model"
	"github.com/kilianp07/pdptw/core/snapshot"
)

// SingleVehicleAdapter exposes a SingleVehicleArraysSolver as a Solver. It
// is stateless and safe for concurrent use when the wrapped optimizer is.
type SingleVehicleAdapter struct {
	solver   SingleVehicleArraysSolver
	timeUnit time.Duration
	logger   logger.Logger
}

// NewSingleVehicleAdapter returns an adapter expressing the numeric problem
// in multiples of timeUnit.
func NewSingleVehicleAdapter(s SingleVehicleArraysSolver, timeUnit time.Duration, log logger.Logger) (*SingleVehicleAdapter, error) {
	if s == nil {
		return nil, fmt.Errorf("single vehicle adapter: nil solver")
	}
	if timeUnit <= 0 {
		return nil, fmt.Errorf("single vehicle adapter: time unit must be positive")
	}
	return &SingleVehicleAdapter{solver: s, timeUnit: timeUnit, logger: logger.OrNop(log)}, nil
}

// Solve returns a single route. Problems with at most one parcel are solved
// without invoking the optimizer.
func (a *SingleVehicleAdapter) Solve(ctx context.Context, s snapshot.GlobalSnapshot) ([][]*model.Parcel, error) {
	if len(s.Vehicles) != 1 {
		return nil, fmt.Errorf("%w: single vehicle solver got %d vehicles", ErrPrecondition, len(s.Vehicles))
	}
	v := s.Vehicles[0]
	if v.RemainingServiceTime != 0 {
		return nil, fmt.Errorf("%w: vehicle %s has remaining service time %d", ErrPrecondition, v.DTO.ID, v.RemainingServiceTime)
	}

	switch {
	case s.NumParcels() == 0:
		return [][]*model.Parcel{{}}, nil
	case len(s.Available) == 1 && len(v.Contents) == 0:
		p := s.Available[0]
		return [][]*model.Parcel{{p, p}}, nil
	case len(s.Available) == 0 && len(v.Contents) == 1:
		return [][]*model.Parcel{{v.Contents[0]}}, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := arrays.ToSingleVehicleArrays(s, a.timeUnit)
	if err != nil {
		return nil, fmt.Errorf("snapshot at %d: %w", s.Time, err)
	}
	a.logger.Debugf("invoking single vehicle solver: %d locations", b.NumLocations())
	sol, err := a.solver.SolveSingle(ctx, b.Problem())
	if err != nil {
		return nil, err
	}
	route, err := arrays.ConvertSolution(sol, b.IndexParcel)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSolution, err)
	}
	return [][]*model.Parcel{route}, nil
}

// MultiVehicleAdapter exposes a MultiVehicleArraysSolver as a Solver. The
// optimizer is invoked once for the whole fleet.
type MultiVehicleAdapter struct {
	solver   MultiVehicleArraysSolver
	timeUnit time.Duration
	logger   logger.Logger
}

// NewMultiVehicleAdapter returns an adapter expressing the numeric problem
// in multiples of timeUnit.
func NewMultiVehicleAdapter(s MultiVehicleArraysSolver, timeUnit time.Duration, log logger.Logger) (*MultiVehicleAdapter, error) {
	if s == nil {
		return nil, fmt.Errorf("multi vehicle adapter: nil solver")
	}
	if timeUnit <= 0 {
		return nil, fmt.Errorf("multi vehicle adapter: time unit must be positive")
	}
	return &MultiVehicleAdapter{solver: s, timeUnit: timeUnit, logger: logger.OrNop(log)}, nil
}

// Solve returns one route per vehicle.
func (a *MultiVehicleAdapter) Solve(ctx context.Context, s snapshot.GlobalSnapshot) ([][]*model.Parcel, error) {
	if len(s.Vehicles) == 0 {
		return nil, fmt.Errorf("%w: no vehicles", ErrPrecondition)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := arrays.ToMultiVehicleArrays(s, a.timeUnit)
	if err != nil {
		return nil, fmt.Errorf("snapshot at %d: %w", s.Time, err)
	}
	a.logger.Debugf("invoking multi vehicle solver: %d locations, %d vehicles", b.NumLocations(), len(s.Vehicles))
	sols, err := a.solver.SolveMulti(ctx, b.Problem())
	if err != nil {
		return nil, err
	}
	if len(sols) != len(s.Vehicles) {
		return nil, fmt.Errorf("%w: %d solutions for %d vehicles", ErrInvalidSolution, len(sols), len(s.Vehicles))
	}
	routes := make([][]*model.Parcel, len(sols))
	for i, sol := range sols {
		r, err := arrays.ConvertSolution(sol, b.IndexParcel)
		if err != nil {
			return nil, fmt.Errorf("%w: vehicle %s: %w", ErrInvalidSolution, s.Vehicles[i].DTO.ID, err)
		}
		routes[i] = r
	}
	return routes, nil
}
