// Package central couples a solver to the route executors of a simulated
// fleet: every time new requests are announced it captures a snapshot, asks
// the solver for a plan and hands each vehicle its route.
package central

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/pdptw/core/logger"
	"github.com/kilianp07/pdptw/core/model"
	"github.com/kilianp07/pdptw/core/route"
	"github.com/kilianp07/pdptw/core/sim"
	"github.com/kilianp07/pdptw/core/snapshot"
	"github.com/kilianp07/pdptw/core/solver"
)

// RoutesFunc observes the plans pushed to the fleet.
type RoutesFunc func(now int64, vehicleID string, route []*model.Parcel)

// Replan describes one call of the solver.
type Replan struct {
	Time     int64
	Parcels  int
	Duration time.Duration
	Err      error
}

// ReplanFunc observes solver calls, failed ones included.
type ReplanFunc func(Replan)

// Controller replans when requests are announced. It is a sim.TickListener
// and must be registered before the vehicles.
type Controller struct {
	ctx       context.Context
	solver    solver.Solver
	units     snapshot.Units
	road      *sim.PlaneRoadModel
	pdp       *sim.PDPModel
	vehicles  []model.VehicleDTO
	executors []*route.Executor
	// idleOnly defers replanning until no vehicle is in service.
	idleOnly bool
	onRoutes RoutesFunc
	onReplan ReplanFunc
	logger   logger.Logger

	dirty     bool
	replans   int
	solveTime time.Duration
}

// Stats are counters of a Controller.
type Stats struct {
	Replans   int           `json:"replans"`
	SolveTime time.Duration `json:"solve_time"`
}

// NotifyAnnounced marks the plan as outdated.
func (c *Controller) NotifyAnnounced() { c.dirty = true }

func (c *Controller) Stats() Stats {
	return Stats{Replans: c.replans, SolveTime: c.solveTime}
}

// Tick replans when needed.
func (c *Controller) Tick(tl route.TimeLapse) error {
	if !c.dirty {
		return nil
	}
	if c.idleOnly && !c.fleetIdle() {
		return nil
	}
	snap, err := c.Snapshot(tl.Time())
	if err != nil {
		return err
	}
	start := time.Now()
	routes, err := c.solver.Solve(c.ctx, snap)
	elapsed := time.Since(start)
	c.solveTime += elapsed
	if c.onReplan != nil {
		c.onReplan(Replan{Time: tl.Time(), Parcels: snap.NumParcels(), Duration: elapsed, Err: err})
	}
	if err != nil {
		return fmt.Errorf("solve at %d: %w", tl.Time(), err)
	}
	if len(routes) != len(c.executors) {
		return fmt.Errorf("solve at %d: %d routes for %d vehicles", tl.Time(), len(routes), len(c.executors))
	}
	for i, e := range c.executors {
		if err := e.SetRoute(routes[i]); err != nil {
			return fmt.Errorf("route for %s at %d: %w", e.VehicleID(), tl.Time(), err)
		}
		if c.onRoutes != nil {
			c.onRoutes(tl.Time(), e.VehicleID(), routes[i])
		}
	}
	c.dirty = false
	c.replans++
	c.logger.Debugf("replanned at %d for %d parcels", tl.Time(), snap.NumParcels())
	return nil
}

func (c *Controller) fleetIdle() bool {
	for _, v := range c.vehicles {
		if c.pdp.VehicleState(v.ID) != model.VehicleIdle {
			return false
		}
	}
	return true
}

// Snapshot captures the state of the fleet at now. A vehicle in service is
// committed to the parcel it services; without diversion a vehicle is also
// committed to the stop it is heading to or waiting at.
func (c *Controller) Snapshot(now int64) (snapshot.GlobalSnapshot, error) {
	vs := make([]snapshot.VehicleSnapshot, len(c.vehicles))
	for i, v := range c.vehicles {
		e := c.executors[i]
		vs[i] = snapshot.VehicleSnapshot{
			DTO:                  v,
			Position:             c.road.Position(v.ID),
			Contents:             c.pdp.Contents(v.ID),
			RemainingServiceTime: c.pdp.RemainingServiceTime(v.ID),
			Destination:          c.destination(v.ID, e),
			Route:                e.Route(),
			RouteKnown:           true,
		}
	}
	return snapshot.New(now, c.units, c.road.Depot(), c.pdp.Available(), vs)
}

func (c *Controller) destination(id string, e *route.Executor) *model.Parcel {
	if p := c.pdp.ActionParcel(id); p != nil {
		return p
	}
	if c.road.DiversionAllowed() {
		return nil
	}
	switch s := e.State().(type) {
	case route.GotoState:
		return s.Destination
	case route.WaitAtServiceState:
		if r := e.Route(); len(r) > 0 {
			return r[0]
		}
	}
	return nil
}
