package solver

import (
	"context"
	"encoding/json"
	"io"
	"slices"
	"sync"

	"github.com/kilianp07/pdptw/core/logger"
	"github.com/kilianp07/pdptw/core/model"
	"github.com/kilianp07/pdptw/core/snapshot"
)

// Recorder is a Solver decorator keeping every snapshot it receives and
// every plan its delegate returns, in call order. Inputs are recorded before
// delegating; outputs only when the delegate succeeds. Both can optionally be
// echoed as JSON lines to a diagnostic writer; echo failures are logged and
// never affect the solve call.
type Recorder struct {
	delegate Solver
	echo     io.Writer
	source   string
	logger   logger.Logger

	mu      sync.Mutex
	inputs  []snapshot.GlobalSnapshot
	outputs [][][]*model.Parcel
}

// NewRecorder wraps delegate. echo may be nil.
func NewRecorder(delegate Solver, echo io.Writer, log logger.Logger) *Recorder {
	return &Recorder{delegate: delegate, echo: echo, logger: logger.OrNop(log)}
}

// Labeled sets the source written with every echoed record, which tells
// recorders sharing an echo writer apart.
func (r *Recorder) Labeled(source string) *Recorder {
	r.source = source
	return r
}

// Kinds of echoed records.
const (
	EchoInput  = "input"
	EchoOutput = "output"
)

// EchoRecord is one echoed JSON line.
type EchoRecord struct {
	Kind     string            `json:"kind"`
	Source   string            `json:"source,omitempty"`
	Time     int64             `json:"time"`
	Snapshot *snapshot.Summary `json:"snapshot,omitempty"`
	Routes   [][]string        `json:"routes,omitempty"`
}

// Solve records s, delegates and records the result.
func (r *Recorder) Solve(ctx context.Context, s snapshot.GlobalSnapshot) ([][]*model.Parcel, error) {
	r.mu.Lock()
	r.inputs = append(r.inputs, s)
	r.mu.Unlock()
	sum := s.Summarize()
	r.write(EchoRecord{Kind: EchoInput, Time: s.Time, Snapshot: &sum})

	routes, err := r.delegate.Solve(ctx, s)
	if err != nil {
		return routes, err
	}

	r.mu.Lock()
	r.outputs = append(r.outputs, cloneRoutes(routes))
	r.mu.Unlock()
	r.write(EchoRecord{Kind: EchoOutput, Time: s.Time, Routes: routeIDs(routes)})
	return routes, nil
}

// Inputs returns the recorded snapshots.
func (r *Recorder) Inputs() []snapshot.GlobalSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.inputs)
}

// Outputs returns the recorded plans.
func (r *Recorder) Outputs() [][][]*model.Parcel {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][][]*model.Parcel, len(r.outputs))
	for i, routes := range r.outputs {
		out[i] = cloneRoutes(routes)
	}
	return out
}

func (r *Recorder) write(rec EchoRecord) {
	if r.echo == nil {
		return
	}
	rec.Source = r.source
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := json.NewEncoder(r.echo).Encode(rec); err != nil {
		r.logger.Warnf("recorder echo failed: %v", err)
	}
}

func cloneRoutes(routes [][]*model.Parcel) [][]*model.Parcel {
	out := make([][]*model.Parcel, len(routes))
	for i, route := range routes {
		out[i] = slices.Clone(route)
	}
	return out
}

func routeIDs(routes [][]*model.Parcel) [][]string {
	out := make([][]string, len(routes))
	for i, route := range routes {
		ids := make([]string, len(route))
		for j, p := range route {
			ids[j] = p.ID
		}
		out[i] = ids
	}
	return out
}
