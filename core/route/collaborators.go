package route

import "github.com/kilianp07/pdptw/core/model"

// TimeLapse is the time budget of one simulation tick, [Time, EndTime).
type TimeLapse interface {
	// Time is the current instant inside the tick.
	Time() int64
	EndTime() int64
	TimeLeft() int64
	HasTimeLeft() bool
	Consume(d int64)
	ConsumeAll()
}

// RoadModel positions and moves vehicles.
type RoadModel interface {
	Position(vehicleID string) model.Point
	// AtPosition reports whether the vehicle is physically at p.
	AtPosition(vehicleID string, p model.Point) bool
	// MoveTo advances the vehicle towards p, consuming time from tl. The
	// vehicle may stop short of p when tl runs out.
	MoveTo(vehicleID string, p model.Point, tl TimeLapse)
	// TravelTime is the time the vehicle needs to reach p, rounded up.
	TravelTime(vehicleID string, p model.Point) int64
	DiversionAllowed() bool
}

// PDPModel is the servicing coordinator. It owns the parcel and vehicle
// lifecycles.
type PDPModel interface {
	ParcelState(p *model.Parcel) model.ParcelState
	VehicleState(vehicleID string) model.VehicleState
	Contains(vehicleID string, p *model.Parcel) bool
	// ActionParcel is the parcel the vehicle is picking up or delivering, nil
	// when the vehicle is idle.
	ActionParcel(vehicleID string) *model.Parcel
	// Service starts picking up or delivering p, depending on whether the
	// vehicle carries it. The service may last beyond tl.
	Service(vehicleID string, p *model.Parcel, tl TimeLapse) error
}
