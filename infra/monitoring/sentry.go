// Package monitoring reports failed simulation instances to Sentry.
package monitoring

import (
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/kilianp07/pdptw/config"
	coremon "github.com/kilianp07/pdptw/core/monitoring"
	"github.com/kilianp07/pdptw/core/route"
	"github.com/kilianp07/pdptw/core/solver"
)

// NewSentryMonitor initializes Sentry. An empty DSN disables reporting.
func NewSentryMonitor(cfg config.SentryConfig) (coremon.Monitor, error) {
	if cfg.DSN == "" {
		return coremon.NopMonitor{}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		TracesSampleRate: cfg.TracesSampleRate,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, err
	}
	return &sentryMonitor{hub: sentry.CurrentHub()}, nil
}

type sentryMonitor struct {
	hub *sentry.Hub
}

// CaptureException reports err with tags. Failures of the same scenario
// are grouped together.
func (s *sentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		scope.SetLevel(levelOf(err))
		if scn, ok := tags["scenario"]; ok {
			scope.SetFingerprint([]string{"{{ default }}", scn})
		}
		var pe *coremon.PanicError
		if errors.As(err, &pe) {
			scope.SetExtra("panic", fmt.Sprint(pe.Value))
		}
		s.hub.CaptureException(err)
	})
}

func (s *sentryMonitor) Recover() {
	if r := recover(); r != nil {
		s.hub.Recover(r)
		s.hub.Flush(2 * time.Second)
		panic(r)
	}
}

func (s *sentryMonitor) Flush(timeout time.Duration) { s.hub.Flush(timeout) }

// levelOf ranks planning errors: solver preconditions and rejected routes
// are configuration problems, executor state violations and panics are bugs.
func levelOf(err error) sentry.Level {
	var pe *coremon.PanicError
	switch {
	case errors.As(err, &pe), errors.Is(err, route.ErrIllegalState):
		return sentry.LevelFatal
	case errors.Is(err, solver.ErrPrecondition), errors.Is(err, route.ErrIllegalArgument):
		return sentry.LevelWarning
	}
	return sentry.LevelError
}
