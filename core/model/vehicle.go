package model

import "fmt"

// VehicleDTO describes the static properties of a vehicle.
type VehicleDTO struct {
	ID            string     `json:"id"`
	StartPosition Point      `json:"start_position"`
	Speed         float64    `json:"speed"`
	Capacity      float64    `json:"capacity"`
	Availability  TimeWindow `json:"availability"`
}

// Validate checks that the vehicle can move and has a usable availability.
func (v VehicleDTO) Validate() error {
	if v.ID == "" {
		return fmt.Errorf("vehicle id is required")
	}
	if v.Speed <= 0 {
		return fmt.Errorf("vehicle %s: speed must be positive", v.ID)
	}
	if v.Capacity < 0 {
		return fmt.Errorf("vehicle %s: negative capacity", v.ID)
	}
	return v.Availability.Validate()
}

// VehicleState is what the servicing coordinator reports for a vehicle.
type VehicleState int

const (
	VehicleIdle VehicleState = iota
	VehiclePickingUp
	VehicleDelivering
)

func (s VehicleState) String() string {
	switch s {
	case VehicleIdle:
		return "idle"
	case VehiclePickingUp:
		return "picking_up"
	case VehicleDelivering:
		return "delivering"
	default:
		return fmt.Sprintf("VehicleState(%d)", int(s))
	}
}
