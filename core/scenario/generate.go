package scenario

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kilianp07/pdptw/core/model"
)

// GeneratorConfig parameterises Generate. Times are in milliseconds and
// distances in kilometers.
type GeneratorConfig struct {
	Seed            uint64  `json:"seed"`
	Vehicles        int     `json:"vehicles"`
	Parcels         int     `json:"parcels"`
	AreaSize        float64 `json:"area_size"`
	Horizon         int64   `json:"horizon"`
	VehicleSpeed    float64 `json:"vehicle_speed"`
	VehicleCapacity float64 `json:"vehicle_capacity"`
	ServiceDuration int64   `json:"service_duration"`
	WindowLength    int64   `json:"window_length"`
	TickLength      int64   `json:"tick_length"`
}

// SetDefaults describes a four hour day on a 10km square.
func (c *GeneratorConfig) SetDefaults() {
	if c.Vehicles == 0 {
		c.Vehicles = 2
	}
	if c.Parcels == 0 {
		c.Parcels = 20
	}
	if c.AreaSize == 0 {
		c.AreaSize = 10
	}
	if c.Horizon == 0 {
		c.Horizon = 4 * time.Hour.Milliseconds()
	}
	if c.VehicleSpeed == 0 {
		c.VehicleSpeed = 30
	}
	if c.VehicleCapacity == 0 {
		c.VehicleCapacity = 5
	}
	if c.ServiceDuration == 0 {
		c.ServiceDuration = 2 * time.Minute.Milliseconds()
	}
	if c.WindowLength == 0 {
		c.WindowLength = time.Hour.Milliseconds()
	}
	if c.TickLength == 0 {
		c.TickLength = time.Second.Milliseconds()
	}
}

// Validate checks that the configuration describes a feasible instance.
func (c GeneratorConfig) Validate() error {
	switch {
	case c.Vehicles <= 0:
		return errors.New("vehicles must be positive")
	case c.Parcels < 0:
		return errors.New("parcels must not be negative")
	case c.AreaSize <= 0 || c.VehicleSpeed <= 0:
		return errors.New("area size and vehicle speed must be positive")
	case c.Horizon <= 0 || c.WindowLength <= 0 || c.TickLength <= 0:
		return errors.New("horizon, window length and tick length must be positive")
	case c.VehicleCapacity < 1:
		return errors.New("vehicle capacity must hold at least one parcel")
	}
	return nil
}

// Generate builds a random scenario. Requests are announced during the first
// half of the horizon following a Poisson process; the same seed always
// yields the same scenario.
func Generate(c GeneratorConfig) (Scenario, error) {
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return Scenario{}, err
	}
	src := rand.NewPCG(c.Seed, c.Seed^0x9e3779b97f4a7c15)
	coord := distuv.Uniform{Min: 0, Max: c.AreaSize, Src: src}
	slack := distuv.Uniform{Min: 0, Max: float64(c.WindowLength), Src: src}
	announceUntil := c.Horizon / 2
	var arrivals distuv.Exponential
	if c.Parcels > 0 {
		arrivals = distuv.Exponential{Rate: float64(c.Parcels) / float64(announceUntil), Src: src}
	}
	speed := model.KilometersPerHour.Of(c.VehicleSpeed)

	s := Scenario{
		ID:           fmt.Sprintf("generated-%d", c.Seed),
		TimeUnit:     "1ms",
		DistanceUnit: "km",
		SpeedUnit:    "km/h",
		TickLength:   c.TickLength,
		EndTime:      c.Horizon + c.Horizon/2,
		Depot:        Position{X: c.AreaSize / 2, Y: c.AreaSize / 2},
	}
	for i := range c.Vehicles {
		s.Vehicles = append(s.Vehicles, VehicleSpec{
			ID:           fmt.Sprintf("v%d", i+1),
			Start:        s.Depot,
			Speed:        c.VehicleSpeed,
			Capacity:     c.VehicleCapacity,
			Availability: Window{Begin: 0, End: c.Horizon},
		})
	}

	var t float64
	for i := range c.Parcels {
		t += arrivals.Rand()
		announce := min(int64(t), announceUntil)
		pickup := Position{X: coord.Rand(), Y: coord.Rand()}
		delivery := Position{X: coord.Rand(), Y: coord.Rand()}
		direct := model.Distance(pickup.Point(), delivery.Point())
		travel := model.Ceiling.Round(speed.TravelTime(direct, model.Kilometer, time.Millisecond))

		pickupBegin := announce + int64(slack.Rand())
		deliveryBegin := pickupBegin + c.ServiceDuration + travel
		s.Parcels = append(s.Parcels, ParcelSpec{
			ID:               fmt.Sprintf("p%d", i+1),
			Pickup:           pickup,
			Delivery:         delivery,
			PickupWindow:     Window{Begin: pickupBegin, End: pickupBegin + c.WindowLength},
			DeliveryWindow:   Window{Begin: deliveryBegin, End: deliveryBegin + c.WindowLength},
			PickupDuration:   c.ServiceDuration,
			DeliveryDuration: c.ServiceDuration,
			Capacity:         1,
			AnnounceTime:     announce,
		})
	}
	return s, s.Validate()
}
