package route

import (
	"fmt"

	"github.com/kilianp07/pdptw/core/model"
)

// State is one of WaitState, GotoState, WaitAtServiceState and
// ServiceState.
type State interface {
	fmt.Stringer
	isState()
}

// WaitState is the initial state: the vehicle is idle and decides when to
// leave for the next stop.
type WaitState struct{}

// GotoState is travelling towards Destination.
type GotoState struct {
	Destination *model.Parcel
}

// WaitAtServiceState is waiting at a stop for its time window to open.
type WaitAtServiceState struct{}

// ServiceState is picking up or delivering the head of the route.
type ServiceState struct{}

func (WaitState) isState()          {}
func (GotoState) isState()          {}
func (WaitAtServiceState) isState() {}
func (ServiceState) isState()       {}

func (WaitState) String() string          { return "wait" }
func (GotoState) String() string          { return "goto" }
func (WaitAtServiceState) String() string { return "wait_at_service" }
func (ServiceState) String() string       { return "service" }

// Event triggers a transition.
type Event int

const (
	EventGoto Event = iota + 1
	EventNogo
	EventArrived
	EventReadyToService
	EventReroute
	EventDone
)

func (e Event) String() string {
	switch e {
	case EventGoto:
		return "GOTO"
	case EventNogo:
		return "NOGO"
	case EventArrived:
		return "ARRIVED"
	case EventReadyToService:
		return "READY_TO_SERVICE"
	case EventReroute:
		return "REROUTE"
	case EventDone:
		return "DONE"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

type stateKind int

const (
	kindWait stateKind = iota
	kindGoto
	kindWaitAtService
	kindService
)

func kindOf(s State) stateKind {
	switch s.(type) {
	case GotoState:
		return kindGoto
	case WaitAtServiceState:
		return kindWaitAtService
	case ServiceState:
		return kindService
	default:
		return kindWait
	}
}

type transitionKey struct {
	from  stateKind
	event Event
}

var transitions = map[transitionKey]stateKind{
	{kindWait, EventGoto}:                    kindGoto,
	{kindGoto, EventNogo}:                    kindWait,
	{kindGoto, EventArrived}:                 kindWaitAtService,
	{kindGoto, EventReroute}:                 kindGoto,
	{kindWaitAtService, EventReroute}:        kindGoto,
	{kindWaitAtService, EventNogo}:           kindWait,
	{kindWaitAtService, EventReadyToService}: kindService,
	{kindService, EventDone}:                 kindWait,
}

// Transition describes one state change of an executor.
type Transition struct {
	VehicleID string `json:"vehicle_id"`
	Time      int64  `json:"time"`
	From      string `json:"from"`
	Event     string `json:"event"`
	To        string `json:"to"`
}

// TransitionFunc observes transitions. It is called synchronously.
type TransitionFunc func(Transition)
