// Package solver wraps pluggable optimizers behind a uniform contract: a
// snapshot goes in, one ordered route per vehicle comes out.
//
// Optimizers work on the numeric problems built by package arrays. The
// adapters in this package perform the conversion both ways, shortcut
// trivial problems and reject snapshots an optimizer can not handle before it
// is invoked.
package solver

import (
	"context"
	"errors"

	"github.com/kilianp07/pdptw/core/arrays"
	"github.com/kilianp07/pdptw/core/model"
	"github.com/kilianp07/pdptw/core/snapshot"
)

var (
	// ErrPrecondition is returned when a snapshot does not satisfy the
	// requirements of an optimizer.
	ErrPrecondition = errors.New("solver precondition violated")
	// ErrInvalidSolution is returned when an optimizer produces routes that
	// can not be executed.
	ErrInvalidSolution = errors.New("invalid solution")
)

// Solver computes one route per vehicle, in snapshot vehicle order.
type Solver interface {
	Solve(ctx context.Context, s snapshot.GlobalSnapshot) ([][]*model.Parcel, error)
}

// SolverFunc adapts a function to the Solver interface.
type SolverFunc func(ctx context.Context, s snapshot.GlobalSnapshot) ([][]*model.Parcel, error)

func (f SolverFunc) Solve(ctx context.Context, s snapshot.GlobalSnapshot) ([][]*model.Parcel, error) {
	return f(ctx, s)
}

// SingleVehicleArraysSolver is an optimizer for a single idle vehicle.
type SingleVehicleArraysSolver interface {
	SolveSingle(ctx context.Context, p arrays.SingleVehicleProblem) (arrays.Solution, error)
}

// MultiVehicleArraysSolver is an optimizer for a whole fleet. It returns one
// solution per vehicle.
type MultiVehicleArraysSolver interface {
	SolveMulti(ctx context.Context, p arrays.MultiVehicleProblem) ([]arrays.Solution, error)
}
