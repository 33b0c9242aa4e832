// Package sim contains the discrete time simulation the route executors run
// in: a tick engine, a straight line road model and the parcel servicing
// coordinator.
package sim

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/pdptw/core/logger"
	"github.com/kilianp07/pdptw/core/route"
)

// TickListener is called once per tick with its own full budget.
type TickListener interface {
	Tick(tl route.TimeLapse) error
}

// TickFunc adapts a function to TickListener.
type TickFunc func(tl route.TimeLapse) error

func (f TickFunc) Tick(tl route.TimeLapse) error { return f(tl) }

// AfterTickListener is additionally notified once all listeners ticked.
type AfterTickListener interface {
	AfterTick(start, end int64)
}

// Engine advances simulation time in fixed ticks.
type Engine struct {
	tickLength int64
	now        int64
	listeners  []TickListener
	stop       func(now int64) bool
	logger     logger.Logger
}

// NewEngine returns an engine at time zero.
func NewEngine(tickLength int64, log logger.Logger) (*Engine, error) {
	if tickLength <= 0 {
		return nil, errors.New("tick length must be positive")
	}
	return &Engine{tickLength: tickLength, logger: logger.OrNop(log)}, nil
}

// Register appends l; listeners are ticked in registration order.
func (e *Engine) Register(l TickListener) { e.listeners = append(e.listeners, l) }

// SetStopCondition sets the predicate checked before every tick.
func (e *Engine) SetStopCondition(f func(now int64) bool) { e.stop = f }

func (e *Engine) Now() int64        { return e.now }
func (e *Engine) TickLength() int64 { return e.tickLength }

// Tick runs a single tick.
func (e *Engine) Tick() error {
	start, end := e.now, e.now+e.tickLength
	for _, l := range e.listeners {
		if err := l.Tick(NewTimeLapse(start, end)); err != nil {
			return fmt.Errorf("tick [%d,%d): %w", start, end, err)
		}
	}
	for _, l := range e.listeners {
		if a, ok := l.(AfterTickListener); ok {
			a.AfterTick(start, end)
		}
	}
	e.now = end
	return nil
}

// Run ticks until the stop condition holds, a listener fails or ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	ticks := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if e.stop != nil && e.stop(e.now) {
			e.logger.Debugf("simulation stopped at %d after %d ticks", e.now, ticks)
			return nil
		}
		if err := e.Tick(); err != nil {
			return err
		}
		ticks++
	}
}
