package solver

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/pdptw/core/arrays"
	"github.com/kilianp07/pdptw/core/factory"
	"github.com/kilianp07/pdptw/core/model"
	"github.com/kilianp07/pdptw/core/snapshot"
)

type mockOptimizer struct {
	mock.Mock
}

func (m *mockOptimizer) SolveSingle(ctx context.Context, p arrays.SingleVehicleProblem) (arrays.Solution, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(arrays.Solution), args.Error(1)
}

func (m *mockOptimizer) SolveMulti(ctx context.Context, p arrays.MultiVehicleProblem) ([]arrays.Solution, error) {
	args := m.Called(ctx, p)
	sols, _ := args.Get(0).([]arrays.Solution)
	return sols, args.Error(1)
}

func vehicle(id string, pos model.Point, contents ...*model.Parcel) snapshot.VehicleSnapshot {
	return snapshot.VehicleSnapshot{
		DTO:      model.VehicleDTO{ID: id, Speed: 60, Capacity: 10, Availability: model.TimeWindow{Begin: 0, End: 3600000}},
		Position: pos,
		Contents: contents,
	}
}

func parcel(x float64) *model.Parcel {
	return model.NewParcel(model.Pt(x, 0), model.Pt(x, 1), model.TimeWindow{}, model.TimeWindow{})
}

func snap(t *testing.T, available []*model.Parcel, vehicles ...snapshot.VehicleSnapshot) snapshot.GlobalSnapshot {
	t.Helper()
	s, err := snapshot.New(0, snapshot.DefaultUnits, model.Pt(0, 0), available, vehicles)
	require.NoError(t, err)
	return s
}

func TestSingleVehicleAdapterPreconditions(t *testing.T) {
	opt := &mockOptimizer{}
	a, err := NewSingleVehicleAdapter(opt, time.Second, nil)
	require.NoError(t, err)

	_, err = a.Solve(context.Background(), snap(t, nil, vehicle("a", model.Pt(0, 0)), vehicle("b", model.Pt(0, 0))))
	assert.ErrorIs(t, err, ErrPrecondition)

	busy := vehicle("a", model.Pt(0, 0))
	busy.RemainingServiceTime = 10
	_, err = a.Solve(context.Background(), snap(t, nil, busy))
	assert.ErrorIs(t, err, ErrPrecondition)

	opt.AssertNotCalled(t, "SolveSingle", mock.Anything, mock.Anything)
}

func TestSingleVehicleAdapterTrivialCases(t *testing.T) {
	opt := &mockOptimizer{}
	a, err := NewSingleVehicleAdapter(opt, time.Second, nil)
	require.NoError(t, err)
	ctx := context.Background()

	routes, err := a.Solve(ctx, snap(t, nil, vehicle("a", model.Pt(0, 0))))
	require.NoError(t, err)
	assert.Equal(t, [][]*model.Parcel{{}}, routes)

	p := parcel(1)
	routes, err = a.Solve(ctx, snap(t, []*model.Parcel{p}, vehicle("a", model.Pt(0, 0))))
	require.NoError(t, err)
	assert.Equal(t, [][]*model.Parcel{{p, p}}, routes)

	routes, err = a.Solve(ctx, snap(t, nil, vehicle("a", model.Pt(0, 0), p)))
	require.NoError(t, err)
	assert.Equal(t, [][]*model.Parcel{{p}}, routes)

	opt.AssertNotCalled(t, "SolveSingle", mock.Anything, mock.Anything)
}

func TestSingleVehicleAdapterConvertsSolution(t *testing.T) {
	p1, p2 := parcel(1), parcel(2)
	opt := &mockOptimizer{}
	opt.On("SolveSingle", mock.Anything, mock.MatchedBy(func(p arrays.SingleVehicleProblem) bool {
		return len(p.TravelTime) == 6 && len(p.ServicePairs) == 2
	})).Return(arrays.Solution{Route: []int{0, 3, 2, 5, 4, 1}}, nil).Once()

	a, err := NewSingleVehicleAdapter(opt, time.Second, nil)
	require.NoError(t, err)
	routes, err := a.Solve(context.Background(), snap(t, []*model.Parcel{p1, p2}, vehicle("a", model.Pt(0, 0))))
	require.NoError(t, err)
	assert.Equal(t, [][]*model.Parcel{{p2, p1, p2, p1}}, routes)
	opt.AssertExpectations(t)
}

func TestSingleVehicleAdapterPropagatesOptimizerError(t *testing.T) {
	boom := errors.New("boom")
	opt := &mockOptimizer{}
	opt.On("SolveSingle", mock.Anything, mock.Anything).Return(arrays.Solution{}, boom)

	a, err := NewSingleVehicleAdapter(opt, time.Second, nil)
	require.NoError(t, err)
	_, err = a.Solve(context.Background(), snap(t, []*model.Parcel{parcel(1), parcel(2)}, vehicle("a", model.Pt(0, 0))))
	assert.Same(t, boom, err)
}

func TestSingleVehicleAdapterRejectsUnknownIndex(t *testing.T) {
	opt := &mockOptimizer{}
	opt.On("SolveSingle", mock.Anything, mock.Anything).Return(arrays.Solution{Route: []int{0, 9, 1}}, nil)

	a, err := NewSingleVehicleAdapter(opt, time.Second, nil)
	require.NoError(t, err)
	_, err = a.Solve(context.Background(), snap(t, []*model.Parcel{parcel(1), parcel(2)}, vehicle("a", model.Pt(0, 0))))
	assert.ErrorIs(t, err, ErrInvalidSolution)
	assert.ErrorIs(t, err, arrays.ErrUnknownIndex)
}

func TestSequentialSingleVehicle(t *testing.T) {
	p1, p2, c := parcel(1), parcel(2), parcel(3)
	s, err := Adapt(Sequential{}, AdapterConfig{TimeUnit: "1s"}, nil)
	require.NoError(t, err)

	routes, err := s.Solve(context.Background(), snap(t, []*model.Parcel{p1, p2}, vehicle("a", model.Pt(0, 0), c)))
	require.NoError(t, err)
	assert.Equal(t, [][]*model.Parcel{{c, p1, p1, p2, p2}}, routes)
}

func TestSequentialMultiVehicle(t *testing.T) {
	p1, p2, p3, c := parcel(1), parcel(2), parcel(3), parcel(4)
	v1 := vehicle("a", model.Pt(0, 0), c)
	v1.Destination = c
	v1.RemainingServiceTime = 500
	v2 := vehicle("b", model.Pt(5, 0))
	v2.Destination = p3

	s, err := Adapt(Sequential{}, AdapterConfig{MultiVehicle: true}, nil)
	require.NoError(t, err)
	routes, err := s.Solve(context.Background(), snap(t, []*model.Parcel{p1, p2, p3}, v1, v2))
	require.NoError(t, err)
	assert.Equal(t, [][]*model.Parcel{
		{c, p1, p1},
		{p3, p3, p2, p2},
	}, routes)
}

func TestMultiVehicleAdapterRejectsEmptyFleet(t *testing.T) {
	a, err := NewMultiVehicleAdapter(Sequential{}, time.Second, nil)
	require.NoError(t, err)
	_, err = a.Solve(context.Background(), snap(t, nil))
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestMultiVehicleAdapterConvertsSolutions(t *testing.T) {
	p1, p2 := parcel(1), parcel(2)
	opt := &mockOptimizer{}
	opt.On("SolveMulti", mock.Anything, mock.MatchedBy(func(p arrays.MultiVehicleProblem) bool {
		return len(p.VehicleTravelTimes) == 2 && len(p.ServicePairs) == 2
	})).Return([]arrays.Solution{{Route: []int{0, 3, 5, 1}}, {Route: []int{0, 2, 4, 1}}}, nil).Once()

	a, err := NewMultiVehicleAdapter(opt, time.Second, nil)
	require.NoError(t, err)
	routes, err := a.Solve(context.Background(), snap(t, []*model.Parcel{p1, p2}, vehicle("a", model.Pt(0, 0)), vehicle("b", model.Pt(3, 0))))
	require.NoError(t, err)
	assert.Equal(t, [][]*model.Parcel{{p2, p2}, {p1, p1}}, routes)
	opt.AssertExpectations(t)
}

func TestMultiVehicleAdapterFailures(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		sols []arrays.Solution
		err  error
		want error
	}{
		{name: "optimizer error", err: boom, want: boom},
		{name: "missing vehicle", sols: []arrays.Solution{{Route: []int{0, 2, 4, 1}}}, want: ErrInvalidSolution},
		{name: "unknown index", sols: []arrays.Solution{{Route: []int{0, 1}}, {Route: []int{0, 7, 1}}}, want: arrays.ErrUnknownIndex},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt := &mockOptimizer{}
			opt.On("SolveMulti", mock.Anything, mock.Anything).Return(tt.sols, tt.err)

			a, err := NewMultiVehicleAdapter(opt, time.Second, nil)
			require.NoError(t, err)
			routes, err := a.Solve(context.Background(), snap(t, []*model.Parcel{parcel(1), parcel(2)}, vehicle("a", model.Pt(0, 0)), vehicle("b", model.Pt(3, 0))))
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, routes)
		})
	}
}

func TestValidateRoutes(t *testing.T) {
	p1, c := parcel(1), parcel(2)
	s := snap(t, []*model.Parcel{p1}, vehicle("a", model.Pt(0, 0), c), vehicle("b", model.Pt(0, 0)))

	assert.NoError(t, ValidateRoutes(s, [][]*model.Parcel{{c, p1, p1}, {}}))
	assert.NoError(t, ValidateRoutes(s, [][]*model.Parcel{{c}, {p1, p1}}))

	invalid := map[string][][]*model.Parcel{
		"route count":      {{c, p1, p1}},
		"missing parcel":   {{c}, {}},
		"cargo twice":      {{c, c, p1, p1}, {}},
		"cargo elsewhere":  {{p1, p1}, {c}},
		"split request":    {{c, p1}, {p1}},
		"unknown parcel":   {{c, p1, p1, parcel(9)}, {}},
		"available thrice": {{c, p1, p1, p1}, {}},
	}
	for name, routes := range invalid {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, ValidateRoutes(s, routes), ErrInvalidSolution)
		})
	}
}

func TestRecorderKeepsCallOrder(t *testing.T) {
	p := parcel(1)
	fail := errors.New("fail")
	calls := 0
	delegate := SolverFunc(func(ctx context.Context, s snapshot.GlobalSnapshot) ([][]*model.Parcel, error) {
		calls++
		if calls == 2 {
			return nil, fail
		}
		return [][]*model.Parcel{{p, p}}, nil
	})
	var echo bytes.Buffer
	r := NewRecorder(delegate, &echo, nil)

	s1 := snap(t, []*model.Parcel{p}, vehicle("a", model.Pt(0, 0)))
	_, err := r.Solve(context.Background(), s1)
	require.NoError(t, err)
	_, err = r.Solve(context.Background(), s1)
	assert.Same(t, fail, err)
	routes, err := r.Solve(context.Background(), s1)
	require.NoError(t, err)

	assert.Len(t, r.Inputs(), 3)
	require.Len(t, r.Outputs(), 2)
	assert.Equal(t, routes, r.Outputs()[1])

	// Views are copies.
	r.Outputs()[0][0][0] = nil
	assert.Same(t, p, r.Outputs()[0][0][0])

	lines := strings.Split(strings.TrimSpace(echo.String()), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], `"kind":"input"`)
	assert.Contains(t, lines[1], `"kind":"output"`)
	assert.Contains(t, lines[1], p.ID)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestRecorderEchoFailureIsIgnored(t *testing.T) {
	p := parcel(1)
	r := NewRecorder(SolverFunc(func(context.Context, snapshot.GlobalSnapshot) ([][]*model.Parcel, error) {
		return [][]*model.Parcel{{p, p}}, nil
	}), failingWriter{}, nil)

	routes, err := r.Solve(context.Background(), snap(t, []*model.Parcel{p}, vehicle("a", model.Pt(0, 0))))
	require.NoError(t, err)
	assert.Equal(t, [][]*model.Parcel{{p, p}}, routes)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(nil)
	s, err := reg.Create(factory.ModuleConfig{Type: "sequential", Conf: map[string]any{"time_unit": "1ms", "multi_vehicle": true}})
	require.NoError(t, err)
	assert.NotNil(t, s)

	_, err = reg.Create(factory.ModuleConfig{Type: "sequential", Conf: map[string]any{"time_unit": "-1s"}})
	assert.Error(t, err)
}

func TestSequentialKeepsWarmStartHead(t *testing.T) {
	p1, p2 := parcel(1), parcel(2)
	v := vehicle("a", model.Pt(0, 0))
	v.Route = []*model.Parcel{p2, p2, p1, p1}
	v.RouteKnown = true

	s, err := Adapt(Sequential{}, AdapterConfig{}, nil)
	require.NoError(t, err)
	routes, err := s.Solve(context.Background(), snap(t, []*model.Parcel{p1, p2}, v))
	require.NoError(t, err)
	assert.Equal(t, [][]*model.Parcel{{p2, p2, p1, p1}}, routes)
}
