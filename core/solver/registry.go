package solver

import (
	"fmt"
	"time"

	"github.com/kilianp07/pdptw/core/factory"
	"github.com/kilianp07/pdptw/core/logger"
	"github.com/kilianp07/pdptw/core/model"
)

// AdapterConfig is the raw configuration shared by the registered solvers.
type AdapterConfig struct {
	// TimeUnit is the unit of the numeric problem, e.g. "1s".
	TimeUnit     string `json:"time_unit"`
	MultiVehicle bool   `json:"multi_vehicle"`
}

func (c AdapterConfig) unit() (time.Duration, error) {
	if c.TimeUnit == "" {
		return time.Second, nil
	}
	return model.ParseTimeUnit(c.TimeUnit)
}

// Adapt wraps an optimizer implementing both array interfaces in the adapter
// selected by conf. The result validates its routes.
func Adapt[S interface {
	SingleVehicleArraysSolver
	MultiVehicleArraysSolver
}](s S, conf AdapterConfig, log logger.Logger) (Solver, error) {
	unit, err := conf.unit()
	if err != nil {
		return nil, err
	}
	if conf.MultiVehicle {
		a, err := NewMultiVehicleAdapter(s, unit, log)
		if err != nil {
			return nil, err
		}
		return Validated(a), nil
	}
	a, err := NewSingleVehicleAdapter(s, unit, log)
	if err != nil {
		return nil, err
	}
	return Validated(a), nil
}

// NewRegistry returns a registry holding the built-in optimizers.
func NewRegistry(log logger.Logger) *factory.Registry[Solver] {
	reg := factory.NewRegistry[Solver]()
	_ = reg.Register("sequential", func(conf map[string]any) (Solver, error) {
		var c AdapterConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, fmt.Errorf("sequential solver config: %w", err)
		}
		return Adapt(Sequential{}, c, log)
	})
	return reg
}
