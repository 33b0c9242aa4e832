package arrays

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/pdptw/core/model"
	"github.com/kilianp07/pdptw/core/snapshot"
)

var square = []model.Point{model.Pt(0, 0), model.Pt(10, 0), model.Pt(10, 10), model.Pt(0, 10)}

func TestTravelTimeMatrixKilometersCeiling(t *testing.T) {
	m := TravelTimeMatrix(square, model.Kilometer, model.KilometersPerHour.Of(40), time.Minute, model.Ceiling)
	assert.Equal(t, [][]int{
		{0, 15, 22, 15},
		{15, 0, 15, 22},
		{22, 15, 0, 15},
		{15, 22, 15, 0},
	}, m)
	for i := range m {
		assert.Zero(t, m[i][i])
		for j := range m {
			assert.Equal(t, m[i][j], m[j][i])
		}
	}
}

func TestTravelTimeMatrixMetersFloor(t *testing.T) {
	locs := append(append([]model.Point{}, square...), model.Pt(11, 3))
	m := TravelTimeMatrix(locs, model.Meter, model.MetersPerMillisecond.Of(0.0699), time.Millisecond, model.Floor)
	assert.Equal(t, []int{0, 143, 202, 143, 163}, m[0])
	assert.Equal(t, []int{163, 45, 101, 186, 0}, m[4])
}

func TestConvertTimeWindow(t *testing.T) {
	toSeconds := model.TimeConverter{From: time.Millisecond, To: time.Second}
	tests := []struct {
		name      string
		tw        model.TimeWindow
		ref       int64
		wantBegin int
		wantEnd   int
	}{
		{"narrower than a unit", model.TimeWindow{Begin: 300, End: 800}, 5, 0, 1},
		{"absolute", model.TimeWindow{Begin: 7300, End: 8800}, 0, 8, 8},
		{"relative to begin", model.TimeWindow{Begin: 7300, End: 8800}, 7300, 0, 1},
		{"in the past", model.TimeWindow{Begin: 0, End: 1000}, 5000, 0, 0},
		{"always open", model.AlwaysOpen, 0, 0, Unreachable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b, e := ConvertTimeWindow(tc.tw, tc.ref, toSeconds)
			assert.Equal(t, tc.wantBegin, b)
			assert.Equal(t, tc.wantEnd, e)
		})
	}
}

func TestRouteTardiness(t *testing.T) {
	total := RouteTardiness(
		[]int{0, 1, 2, 3},
		[]int{50, 70, 90, 100},
		[]int{0, 5, 5, 0},
		[]int{40, 70, 80, 110},
		0,
	)
	assert.Equal(t, 20, total)
}

func TestArrivalTimesWaitForRelease(t *testing.T) {
	tt := [][]int{{0, 5, 5}, {5, 0, 3}, {5, 3, 0}}
	arrivals := ArrivalTimes([]int{0, 2, 1}, tt, 2, []int{0, 5, 5}, []int{0, 0, 4}, []int{0, 0, 20})
	assert.Equal(t, []int{0, 20, 27}, arrivals)
	assert.Equal(t, 8, RouteTravelTime([]int{0, 2, 1}, tt, []int{0, 5, 5}))
}

type fixture struct {
	a, b, c *model.Parcel
	snap    snapshot.GlobalSnapshot
}

func newFixture(t *testing.T, vehicles ...snapshot.VehicleSnapshot) fixture {
	t.Helper()
	f := fixture{
		a: model.NewParcel(model.Pt(1, 0), model.Pt(2, 0), model.TimeWindow{Begin: 0, End: 60000}, model.TimeWindow{}),
		b: model.NewParcel(model.Pt(3, 0), model.Pt(4, 0), model.TimeWindow{}, model.TimeWindow{}),
		c: model.NewParcel(model.Pt(0, 5), model.Pt(0, 6), model.TimeWindow{}, model.TimeWindow{Begin: 0, End: 120000}),
	}
	f.a.PickupDuration = 1500
	f.c.DeliveryDuration = 2000
	if len(vehicles) == 0 {
		vehicles = []snapshot.VehicleSnapshot{{
			DTO:      model.VehicleDTO{ID: "v1", Speed: 60, Capacity: 10, Availability: model.TimeWindow{Begin: 0, End: 3600000}},
			Position: model.Pt(0, 0),
		}}
	}
	vehicles[0].Contents = append(vehicles[0].Contents, f.c)
	s, err := snapshot.New(0, snapshot.DefaultUnits, model.Pt(0, 0), []*model.Parcel{f.a, f.b}, vehicles)
	require.NoError(t, err)
	f.snap = s
	return f
}

func TestToSingleVehicleArraysLayout(t *testing.T) {
	f := newFixture(t)
	b, err := ToSingleVehicleArrays(f.snap, time.Second)
	require.NoError(t, err)

	require.Equal(t, 7, b.NumLocations())
	assert.Equal(t, [][2]int{{2, 4}, {3, 5}}, b.ServicePairs)
	assert.Equal(t, ParcelIndex{Parcel: f.a, Pickup: 2, Delivery: 4}, b.ParcelIndex[f.a])
	assert.Equal(t, ParcelIndex{Parcel: f.c, Pickup: -1, Delivery: 6}, b.ParcelIndex[f.c])
	assert.Equal(t, []int{0, 0, 2, 0, 0, 0, 2}, b.ServiceTimes)
	assert.Equal(t, 3600, b.DueDates[DepotIndex])
	assert.Equal(t, 60, b.DueDates[2])
	assert.Equal(t, 120, b.DueDates[6])
	assert.Equal(t, Unreachable, b.DueDates[3])
	// 1km at 60km/h is one minute.
	assert.Equal(t, 60, b.TravelTime[0][2])
	assert.Nil(t, b.CurrentSolutions)
}

func TestRoundTripIdentityPermutation(t *testing.T) {
	f := newFixture(t)
	b, err := ToSingleVehicleArrays(f.snap, time.Second)
	require.NoError(t, err)

	identity := make([]int, b.NumLocations())
	for i := range identity {
		identity[i] = i
	}
	route, err := ConvertSolution(Solution{Route: identity}, b.IndexParcel)
	require.NoError(t, err)
	assert.Equal(t, []*model.Parcel{f.a, f.b, f.a, f.b, f.c}, route)

	for _, pair := range b.ServicePairs {
		assert.Same(t, b.IndexParcel[pair[0]].Parcel, b.IndexParcel[pair[1]].Parcel)
	}
}

func TestConvertSolutionUnknownIndex(t *testing.T) {
	f := newFixture(t)
	b, err := ToSingleVehicleArrays(f.snap, time.Second)
	require.NoError(t, err)

	_, err = ConvertSolution(Solution{Route: []int{0, 2, 42, 1}}, b.IndexParcel)
	assert.ErrorIs(t, err, ErrUnknownIndex)
}

func TestToSingleVehicleArraysWarmStart(t *testing.T) {
	f := newFixture(t)
	v := f.snap.Vehicles[0]
	v.Route = []*model.Parcel{f.a, f.c, f.a}
	v.RouteKnown = true
	f.snap.Vehicles[0] = v

	b, err := ToSingleVehicleArrays(f.snap, time.Second)
	require.NoError(t, err)
	require.Len(t, b.CurrentSolutions, 1)
	sol := b.CurrentSolutions[0]
	assert.Equal(t, []int{0, 2, 6, 4, 1}, sol.Route)
	assert.Equal(t, RouteTravelTime(sol.Route, b.TravelTime, b.TravelTime[0])+
		RouteTardiness(sol.Route, sol.ArrivalTimes, b.ServiceTimes, b.DueDates, 0), sol.ObjectiveValue)
	require.NotNil(t, b.Problem().CurrentSolution)
}

func TestToSingleVehicleArraysRejectsEmptyFleet(t *testing.T) {
	s, err := snapshot.New(0, snapshot.DefaultUnits, model.Pt(0, 0), nil, nil)
	require.NoError(t, err)
	_, err = ToSingleVehicleArrays(s, time.Second)
	assert.ErrorIs(t, err, ErrMalformedSnapshot)
}

func TestToMultiVehicleArrays(t *testing.T) {
	dto := func(id string, end int64) model.VehicleDTO {
		return model.VehicleDTO{ID: id, Speed: 60, Capacity: 10, Availability: model.TimeWindow{Begin: 0, End: end}}
	}
	f := newFixture(t,
		snapshot.VehicleSnapshot{DTO: dto("v1", 3600000), Position: model.Pt(0, 0), RemainingServiceTime: 1200},
		snapshot.VehicleSnapshot{DTO: dto("v2", 7200000), Position: model.Pt(5, 0)},
	)
	// v1 is delivering c, v2 is free.
	f.snap.Vehicles[0].Destination = f.c

	mb, err := ToMultiVehicleArrays(f.snap, time.Second)
	require.NoError(t, err)

	assert.Equal(t, 7200, mb.DueDates[DepotIndex])
	assert.Equal(t, [][2]int{{0, 6}}, mb.Inventories)
	assert.Equal(t, []int{6, 0}, mb.CurrentDestinations)
	assert.Equal(t, []int{2, 0}, mb.RemainingServiceTimes)

	require.Len(t, mb.VehicleTravelTimes, 2)
	for j, tt := range mb.VehicleTravelTimes[0] {
		if j == 6 {
			assert.Equal(t, 360, tt)
			continue
		}
		assert.Equal(t, Unreachable, tt)
	}
	assert.Equal(t, 300, mb.VehicleTravelTimes[1][CurrentPositionIndex])
	assert.Equal(t, 240, mb.VehicleTravelTimes[1][2])
	assert.Nil(t, mb.CurrentSolutions)

	p := mb.Problem()
	assert.Equal(t, mb.Inventories, p.Inventories)
}
