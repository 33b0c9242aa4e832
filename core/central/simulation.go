package central

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/kilianp07/pdptw/core/logger"
	"github.com/kilianp07/pdptw/core/model"
	"github.com/kilianp07/pdptw/core/route"
	"github.com/kilianp07/pdptw/core/scenario"
	"github.com/kilianp07/pdptw/core/sim"
	"github.com/kilianp07/pdptw/core/snapshot"
	"github.com/kilianp07/pdptw/core/solver"
)

// Config tunes a Simulation.
type Config struct {
	// DelayedRouteChanges lets executors queue routes they can not apply.
	DelayedRouteChanges bool
	// IdleReplanning only replans when no vehicle is in service. Single
	// vehicle solvers need it since they reject vehicles in service.
	IdleReplanning bool
	OnTransition   route.TransitionFunc
	OnRoutes       RoutesFunc
	OnReplan       ReplanFunc
	Logger         logger.Logger
}

// Result summarises a finished simulation. Times are in the scenario time
// unit.
type Result struct {
	ScenarioID string    `json:"scenario_id"`
	EndTime    int64     `json:"end_time"`
	Finished   bool      `json:"finished"`
	Service    sim.Stats `json:"service"`
	Planning   Stats     `json:"planning"`
	Distance   float64   `json:"distance"`
	TravelTime float64   `json:"travel_time"`
	Overtime   int64     `json:"overtime"`
}

// Simulation is one run of a scenario. It owns its engine, models,
// executors and parcels; nothing is shared between simulations.
type Simulation struct {
	scenario   scenario.Scenario
	units      snapshot.Units
	engine     *sim.Engine
	road       *sim.PlaneRoadModel
	pdp        *sim.PDPModel
	vehicles   []model.VehicleDTO
	executors  []*route.Executor
	controller *Controller
	parcels    []*model.Parcel
	announced  int
	logger     logger.Logger
}

// New assembles a simulation of scn planned by s.
func New(ctx context.Context, scn scenario.Scenario, s solver.Solver, cfg Config) (*Simulation, error) {
	if err := scn.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scn.ID, err)
	}
	units, err := scn.Units()
	if err != nil {
		return nil, err
	}
	log := logger.OrNop(cfg.Logger)
	engine, err := sim.NewEngine(scn.TickLength, log)
	if err != nil {
		return nil, err
	}
	depot := scn.Depot.Point()
	road := sim.NewPlaneRoadModel(units, depot, scn.AllowDiversion)
	pdp := sim.NewPDPModel(road)

	parcels := scn.NewParcels()
	slices.SortStableFunc(parcels, func(a, b *model.Parcel) int {
		return cmp.Compare(a.AnnounceTime, b.AnnounceTime)
	})
	for _, p := range parcels {
		if err := pdp.Register(p); err != nil {
			return nil, err
		}
	}

	sm := &Simulation{
		scenario: scn,
		units:    units,
		engine:   engine,
		road:     road,
		pdp:      pdp,
		vehicles: scn.VehicleDTOs(),
		parcels:  parcels,
		logger:   log,
	}
	opts := []route.Option{
		route.WithDelayedRouteChanges(cfg.DelayedRouteChanges),
		route.WithTransitionFunc(cfg.OnTransition),
		route.WithLogger(log),
	}
	for _, v := range sm.vehicles {
		if err := road.AddVehicle(v); err != nil {
			return nil, err
		}
		if err := pdp.AddVehicle(v); err != nil {
			return nil, err
		}
		sm.executors = append(sm.executors, route.New(v, depot, road, pdp, opts...))
	}
	sm.controller = &Controller{
		ctx:       ctx,
		solver:    s,
		units:     units,
		road:      road,
		pdp:       pdp,
		vehicles:  sm.vehicles,
		executors: sm.executors,
		idleOnly:  cfg.IdleReplanning,
		onRoutes:  cfg.OnRoutes,
		onReplan:  cfg.OnReplan,
		logger:    log,
	}

	engine.Register(sim.TickFunc(sm.announce))
	engine.Register(sm.controller)
	for _, e := range sm.executors {
		engine.Register(sim.TickFunc(func(tl route.TimeLapse) error {
			pdp.Continue(e.VehicleID(), tl)
			return e.Tick(tl)
		}))
	}
	engine.SetStopCondition(sm.done)
	return sm, nil
}

// Controller returns the planning controller.
func (s *Simulation) Controller() *Controller { return s.controller }

// Executors returns the route executors in vehicle order.
func (s *Simulation) Executors() []*route.Executor { return slices.Clone(s.executors) }

// Run simulates until every request is delivered and the fleet is back at
// the depot, or the scenario end time is reached.
func (s *Simulation) Run(ctx context.Context) (Result, error) {
	if err := s.engine.Run(ctx); err != nil {
		return s.result(), fmt.Errorf("scenario %s: %w", s.scenario.ID, err)
	}
	res := s.result()
	s.logger.Infof("scenario %s ended at %d: delivered %d/%d, finished=%t",
		s.scenario.ID, res.EndTime, res.Service.Delivered, len(s.parcels), res.Finished)
	return res, nil
}

// announce makes the requests announced before the end of the tick
// available.
func (s *Simulation) announce(tl route.TimeLapse) error {
	for s.announced < len(s.parcels) && s.parcels[s.announced].AnnounceTime < tl.EndTime() {
		if err := s.pdp.Announce(s.parcels[s.announced]); err != nil {
			return err
		}
		s.announced++
		s.controller.NotifyAnnounced()
	}
	return nil
}

func (s *Simulation) done(now int64) bool {
	return now >= s.scenario.EndTime || s.finished()
}

func (s *Simulation) finished() bool {
	if s.announced < len(s.parcels) || !s.pdp.Done() {
		return false
	}
	for i, v := range s.vehicles {
		if len(s.executors[i].Route()) > 0 || !s.road.AtPosition(v.ID, s.road.Depot()) {
			return false
		}
	}
	return true
}

func (s *Simulation) result() Result {
	res := Result{
		ScenarioID: s.scenario.ID,
		EndTime:    s.engine.Now(),
		Finished:   s.finished(),
		Service:    s.pdp.Stats(),
		Planning:   s.controller.Stats(),
	}
	for _, v := range s.vehicles {
		d := s.road.TravelledDistance(v.ID)
		res.Distance += d
		res.TravelTime += s.units.Speed.Of(v.Speed).TravelTime(d, s.units.Distance, s.units.Time)
		back := s.engine.Now()
		if t, ok := s.road.DepotArrival(v.ID); ok && s.road.AtPosition(v.ID, s.road.Depot()) {
			back = t
		} else if d == 0 {
			continue
		}
		res.Overtime += max(0, back-v.Availability.End)
	}
	return res
}
