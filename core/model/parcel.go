package model

import (
	"fmt"

	"github.com/google/uuid"
)

// TimeWindow is the half-open interval [Begin, End) in simulation time.
type TimeWindow struct {
	Begin int64 `json:"begin" yaml:"begin"`
	End   int64 `json:"end" yaml:"end"`
}

// AlwaysOpen is a window that never closes.
var AlwaysOpen = TimeWindow{Begin: 0, End: 1<<62 - 1}

// Validate checks that Begin does not exceed End.
func (tw TimeWindow) Validate() error {
	if tw.Begin > tw.End {
		return fmt.Errorf("time window begin %d after end %d", tw.Begin, tw.End)
	}
	return nil
}

// IsIn reports whether t lies within the window.
func (tw TimeWindow) IsIn(t int64) bool { return t >= tw.Begin && t < tw.End }

// IsBeforeStart reports whether t lies before the window opens.
func (tw TimeWindow) IsBeforeStart(t int64) bool { return t < tw.Begin }

// IsAfterEnd reports whether t lies at or after the window closes.
func (tw TimeWindow) IsAfterEnd(t int64) bool { return t >= tw.End }

// Length returns End-Begin.
func (tw TimeWindow) Length() int64 { return tw.End - tw.Begin }

// Parcel is a transport request. It is immutable once created; routes and
// snapshots refer to parcels by pointer identity.
type Parcel struct {
	ID               string     `json:"id"`
	PickupLocation   Point      `json:"pickup_location"`
	DeliveryLocation Point      `json:"delivery_location"`
	PickupWindow     TimeWindow `json:"pickup_window"`
	DeliveryWindow   TimeWindow `json:"delivery_window"`
	PickupDuration   int64      `json:"pickup_duration"`
	DeliveryDuration int64      `json:"delivery_duration"`
	Capacity         float64    `json:"capacity"`
	AnnounceTime     int64      `json:"announce_time"`
}

// NewParcel returns a parcel with a random identifier. Zero windows are
// replaced by AlwaysOpen.
func NewParcel(pickup, delivery Point, pickupTW, deliveryTW TimeWindow) *Parcel {
	if pickupTW == (TimeWindow{}) {
		pickupTW = AlwaysOpen
	}
	if deliveryTW == (TimeWindow{}) {
		deliveryTW = AlwaysOpen
	}
	return &Parcel{
		ID:               uuid.NewString(),
		PickupLocation:   pickup,
		DeliveryLocation: delivery,
		PickupWindow:     pickupTW,
		DeliveryWindow:   deliveryTW,
	}
}

// Validate checks durations, capacity and windows.
func (p *Parcel) Validate() error {
	if p.PickupDuration < 0 || p.DeliveryDuration < 0 {
		return fmt.Errorf("parcel %s: negative service duration", p.ID)
	}
	if p.Capacity < 0 {
		return fmt.Errorf("parcel %s: negative capacity", p.ID)
	}
	if err := p.PickupWindow.Validate(); err != nil {
		return fmt.Errorf("parcel %s pickup: %w", p.ID, err)
	}
	if err := p.DeliveryWindow.Validate(); err != nil {
		return fmt.Errorf("parcel %s delivery: %w", p.ID, err)
	}
	return nil
}

func (p *Parcel) String() string {
	if p == nil {
		return "<nil>"
	}
	return "parcel(" + p.ID + ")"
}

// ParcelState is the lifecycle of a parcel. Transitions are strictly forward.
type ParcelState int

const (
	ParcelUnseen ParcelState = iota
	ParcelAvailable
	ParcelPickingUp
	ParcelInCargo
	ParcelDelivering
	ParcelDelivered
)

func (s ParcelState) String() string {
	switch s {
	case ParcelUnseen:
		return "unseen"
	case ParcelAvailable:
		return "available"
	case ParcelPickingUp:
		return "picking_up"
	case ParcelInCargo:
		return "in_cargo"
	case ParcelDelivering:
		return "delivering"
	case ParcelDelivered:
		return "delivered"
	default:
		return fmt.Sprintf("ParcelState(%d)", int(s))
	}
}

// IsTransition reports whether the parcel is being picked up or delivered.
func (s ParcelState) IsTransition() bool {
	return s == ParcelPickingUp || s == ParcelDelivering
}

// IsPickedUp reports whether the pickup has completed.
func (s ParcelState) IsPickedUp() bool {
	return s == ParcelInCargo || s == ParcelDelivering || s == ParcelDelivered
}

// IsDelivered reports whether the delivery has completed.
func (s ParcelState) IsDelivered() bool { return s == ParcelDelivered }
