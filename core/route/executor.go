// Package route executes vehicle routes tick by tick.
//
// An Executor owns the route of one vehicle and walks it through four
// states: it waits until it is time to leave, travels to the next stop, waits
// for the stop's time window to open and services it. Routes may be replaced
// at any time with SetRoute; a replacement that would redirect a vehicle
// which is not allowed to divert is either queued until the vehicle is idle
// again or rejected.
package route

import (
	"errors"
	"fmt"
	"slices"

	"github.com/kilianp07/pdptw/core/logger"
	"github.com/kilianp07/pdptw/core/model"
)

var (
	// ErrIllegalArgument is returned for routes or route changes that break
	// the route invariants.
	ErrIllegalArgument = errors.New("illegal argument")
	// ErrIllegalState is returned when the executor finds the world in a
	// state it can not act on, e.g. its next parcel serviced by another
	// vehicle.
	ErrIllegalState = errors.New("illegal state")
)

// maxStalledEvents bounds the transitions fired in a row without time
// passing or the route getting shorter. Servicing a stop takes four.
const maxStalledEvents = 8

// Option configures an Executor.
type Option func(*Executor)

// WithDelayedRouteChanges allows SetRoute to queue a route it can not apply
// immediately. The queued route is applied the next time the vehicle waits.
func WithDelayedRouteChanges(allow bool) Option {
	return func(e *Executor) { e.allowDelayed = allow }
}

// WithTransitionFunc registers an observer for state changes.
func WithTransitionFunc(f TransitionFunc) Option {
	return func(e *Executor) { e.onTransition = f }
}

// WithLogger sets the logger used for transition tracing.
func WithLogger(l logger.Logger) Option {
	return func(e *Executor) { e.logger = logger.OrNop(l) }
}

// Executor is the route state machine of a single vehicle. It is not safe
// for concurrent use; Tick and SetRoute must be called from the goroutine
// driving the simulation.
type Executor struct {
	vehicle model.VehicleDTO
	depot   model.Point
	road    RoadModel
	pdp     PDPModel

	route   []*model.Parcel
	pending []*model.Parcel
	// hasPending distinguishes a queued empty route from no queued route.
	hasPending bool

	state    State
	prevDest *model.Parcel

	allowDelayed bool
	onTransition TransitionFunc
	logger       logger.Logger
}

// New returns an executor in the wait state with an empty route.
func New(vehicle model.VehicleDTO, depot model.Point, road RoadModel, pdp PDPModel, opts ...Option) *Executor {
	e := &Executor{
		vehicle: vehicle,
		depot:   depot,
		road:    road,
		pdp:     pdp,
		state:   WaitState{},
		logger:  logger.NopLogger{},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// VehicleID returns the id of the driven vehicle.
func (e *Executor) VehicleID() string { return e.vehicle.ID }

// State returns the current state.
func (e *Executor) State() State { return e.state }

// Route returns a copy of the remaining route.
func (e *Executor) Route() []*model.Parcel { return slices.Clone(e.route) }

// PreviousDestination is the destination of the last completed or abandoned
// leg, nil before the first one.
func (e *Executor) PreviousDestination() *model.Parcel { return e.prevDest }

// HasPendingRoute reports whether a delayed route change is queued.
func (e *Executor) HasPendingRoute() bool { return e.hasPending }

// SetRoute replaces the route. Every parcel is checked against its lifecycle:
// delivered parcels are rejected, parcels picked up must be aboard this
// vehicle and occur at most once, other parcels at most twice, and a parcel
// in a pickup or delivery must be the one this vehicle is servicing.
//
// The route is applied immediately when the vehicle waits, has an empty
// route, may divert outside of a service, or keeps the same next parcel.
// Otherwise it is queued when delayed changes are allowed and rejected when
// they are not.
func (e *Executor) SetRoute(r []*model.Parcel) error {
	if err := e.validate(r); err != nil {
		return err
	}
	_, waiting := e.state.(WaitState)
	_, servicing := e.state.(ServiceState)
	sameHead := len(r) > 0 && len(e.route) > 0 && r[0] == e.route[0]
	divertable := e.road.DiversionAllowed() && !servicing

	if waiting || len(e.route) == 0 || divertable || sameHead {
		e.route = slices.Clone(r)
		e.pending, e.hasPending = nil, false
		return nil
	}
	if !e.allowDelayed {
		return fmt.Errorf("%w: vehicle %s can not divert and delayed route changes are disabled", ErrIllegalArgument, e.vehicle.ID)
	}
	e.pending, e.hasPending = slices.Clone(r), true
	return nil
}

func (e *Executor) validate(r []*model.Parcel) error {
	freq := make(map[*model.Parcel]int, len(r))
	for _, p := range r {
		freq[p]++
	}
	for _, p := range r {
		if p == nil {
			return fmt.Errorf("%w: nil parcel in route of %s", ErrIllegalArgument, e.vehicle.ID)
		}
		st := e.pdp.ParcelState(p)
		if st.IsDelivered() {
			return fmt.Errorf("%w: %s is already delivered", ErrIllegalArgument, p)
		}
		if st.IsTransition() {
			want := model.VehiclePickingUp
			if st == model.ParcelDelivering {
				want = model.VehicleDelivering
			}
			if vs := e.pdp.VehicleState(e.vehicle.ID); vs != want {
				return fmt.Errorf("%w: %s is %s but vehicle %s is %s", ErrIllegalArgument, p, st, e.vehicle.ID, vs)
			}
			if cur := e.pdp.ActionParcel(e.vehicle.ID); cur != p {
				return fmt.Errorf("%w: %s is being serviced but vehicle %s services %s", ErrIllegalArgument, p, e.vehicle.ID, cur)
			}
		}
		if st.IsPickedUp() {
			if !e.pdp.Contains(e.vehicle.ID, p) {
				return fmt.Errorf("%w: %s is not aboard vehicle %s", ErrIllegalArgument, p, e.vehicle.ID)
			}
			if freq[p] > 1 {
				return fmt.Errorf("%w: %s is in cargo and occurs %d times", ErrIllegalArgument, p, freq[p])
			}
		} else if freq[p] > 2 {
			return fmt.Errorf("%w: %s occurs %d times", ErrIllegalArgument, p, freq[p])
		}
	}
	return nil
}

// Tick evaluates the current state with the budget of tl. Events are chained
// within the tick until a state stays put, so any number of stops that take
// no time are serviced in one tick.
func (e *Executor) Tick(tl TimeLapse) error {
	stalled := 0
	for {
		left, remaining := tl.TimeLeft(), len(e.route)
		ev, err := e.handle(tl)
		if err != nil {
			return fmt.Errorf("vehicle %s at %d in %s: %w", e.vehicle.ID, tl.Time(), e.state, err)
		}
		if ev == 0 {
			return nil
		}
		if err := e.fire(ev, tl); err != nil {
			return fmt.Errorf("vehicle %s at %d on %s: %w", e.vehicle.ID, tl.Time(), ev, err)
		}
		if tl.TimeLeft() < left || len(e.route) < remaining {
			stalled = 0
			continue
		}
		if stalled++; stalled > maxStalledEvents {
			return fmt.Errorf("%w: vehicle %s fired %d events without progress, remaining route %d",
				ErrIllegalState, e.vehicle.ID, stalled, len(e.route))
		}
	}
}

func (e *Executor) fire(ev Event, tl TimeLapse) error {
	to, ok := transitions[transitionKey{kindOf(e.state), ev}]
	if !ok {
		return fmt.Errorf("%w: no transition from %s on %s", ErrIllegalState, e.state, ev)
	}
	from := e.state

	var next State
	switch to {
	case kindWait:
		if err := e.enterWait(ev); err != nil {
			return err
		}
		if ev == EventDone {
			e.route = e.route[1:]
		}
		if e.hasPending {
			e.route = e.pending
			e.pending, e.hasPending = nil, false
		}
		next = WaitState{}
	case kindGoto:
		dest, err := e.enterGoto(ev)
		if err != nil {
			return err
		}
		next = GotoState{Destination: dest}
	case kindWaitAtService:
		next = WaitAtServiceState{}
	case kindService:
		if err := e.pdp.Service(e.vehicle.ID, e.route[0], tl); err != nil {
			return err
		}
		next = ServiceState{}
	}
	if g, ok := from.(GotoState); ok {
		e.prevDest = g.Destination
	}
	e.state = next

	t := Transition{VehicleID: e.vehicle.ID, Time: tl.Time(), From: from.String(), Event: ev.String(), To: next.String()}
	e.logger.Debugw("route transition", map[string]any{
		"vehicle": t.VehicleID, "time": t.Time, "from": t.From, "event": t.Event, "to": t.To,
	})
	if e.onTransition != nil {
		e.onTransition(t)
	}
	return nil
}

// enterWait checks the wait state can be entered, including the queued
// route it will apply. It changes nothing.
func (e *Executor) enterWait(ev Event) error {
	if vs := e.pdp.VehicleState(e.vehicle.ID); vs != model.VehicleIdle {
		return fmt.Errorf("%w: vehicle can only wait when idle, it is %s", ErrIllegalState, vs)
	}
	if ev == EventNogo && !e.road.DiversionAllowed() {
		return fmt.Errorf("%w: route emptied while diversion is not allowed", ErrIllegalArgument)
	}
	if e.hasPending {
		return e.validate(e.pending)
	}
	return nil
}

func (e *Executor) enterGoto(ev Event) (*model.Parcel, error) {
	if ev == EventReroute && !e.road.DiversionAllowed() {
		return nil, fmt.Errorf("%w: reroute while diversion is not allowed", ErrIllegalArgument)
	}
	if err := e.checkOwnership(); err != nil {
		return nil, err
	}
	return e.route[0], nil
}

func (e *Executor) handle(tl TimeLapse) (Event, error) {
	switch s := e.state.(type) {
	case GotoState:
		return e.handleGoto(s, tl), nil
	case WaitAtServiceState:
		return e.handleWaitAtService(tl)
	case ServiceState:
		return e.handleService(), nil
	default:
		return e.handleWait(tl)
	}
}

func (e *Executor) handleWait(tl TimeLapse) (Event, error) {
	if len(e.route) > 0 {
		if err := e.checkOwnership(); err != nil {
			return 0, err
		}
		if !e.isTooEarly(e.route[0], tl) {
			return EventGoto, nil
		}
	} else if tl.HasTimeLeft() && e.isEndOfDay(tl) && !e.road.AtPosition(e.vehicle.ID, e.depot) {
		e.road.MoveTo(e.vehicle.ID, e.depot, tl)
	}
	tl.ConsumeAll()
	return 0, nil
}

func (e *Executor) handleGoto(s GotoState, tl TimeLapse) Event {
	if len(e.route) == 0 {
		return EventNogo
	}
	if s.Destination != e.route[0] {
		return EventReroute
	}
	target := e.location(e.route[0])
	if e.road.AtPosition(e.vehicle.ID, target) {
		return EventArrived
	}
	e.road.MoveTo(e.vehicle.ID, target, tl)
	if e.road.AtPosition(e.vehicle.ID, target) && tl.HasTimeLeft() {
		return EventArrived
	}
	return 0
}

func (e *Executor) handleWaitAtService(tl TimeLapse) (Event, error) {
	if len(e.route) == 0 {
		return EventNogo, nil
	}
	if err := e.checkOwnership(); err != nil {
		return 0, err
	}
	cur := e.route[0]
	if !e.road.AtPosition(e.vehicle.ID, e.location(cur)) {
		return EventReroute, nil
	}
	opening := cur.PickupWindow.Begin
	if e.pdp.Contains(e.vehicle.ID, cur) {
		opening = cur.DeliveryWindow.Begin
	}
	if untilReady := opening - tl.Time(); untilReady > 0 {
		if tl.TimeLeft() < untilReady {
			tl.ConsumeAll()
			return 0, nil
		}
		tl.Consume(untilReady)
	}
	if tl.HasTimeLeft() {
		return EventReadyToService, nil
	}
	return 0, nil
}

func (e *Executor) handleService() Event {
	if e.pdp.VehicleState(e.vehicle.ID) == model.VehicleIdle {
		return EventDone
	}
	return 0
}

// checkOwnership fails when the next parcel is being serviced by another
// vehicle.
func (e *Executor) checkOwnership() error {
	p := e.route[0]
	if st := e.pdp.ParcelState(p); st.IsTransition() && e.pdp.ActionParcel(e.vehicle.ID) != p {
		return fmt.Errorf("%w: %s is already %s by another vehicle", ErrIllegalState, p, st)
	}
	return nil
}

// location is where p has to be serviced by this vehicle next.
func (e *Executor) location(p *model.Parcel) model.Point {
	if e.pdp.Contains(e.vehicle.ID, p) {
		return p.DeliveryLocation
	}
	return p.PickupLocation
}

// isTooEarly reports whether leaving at the end of this tick still reaches p
// before its window opens.
func (e *Executor) isTooEarly(p *model.Parcel, tl TimeLapse) bool {
	opening := p.PickupWindow.Begin
	if e.pdp.Contains(e.vehicle.ID, p) {
		opening = p.DeliveryWindow.Begin
	}
	latestLeave := opening - e.road.TravelTime(e.vehicle.ID, e.location(p))
	return latestLeave >= tl.EndTime()
}

func (e *Executor) isEndOfDay(tl TimeLapse) bool {
	toDepot := e.road.TravelTime(e.vehicle.ID, e.depot)
	return tl.EndTime()-1 >= e.vehicle.Availability.End-toDepot
}
