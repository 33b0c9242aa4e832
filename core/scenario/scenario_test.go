package scenario

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/pdptw/core/model"
)

const sample = `
id: small
tick_length: 500
end_time: 3600000
depot: {x: 0, y: 0}
vehicles:
  - id: v1
    start: {x: 0, y: 0}
    speed: 40
    capacity: 2
    availability: {begin: 0, end: 3600000}
parcels:
  - id: p1
    pickup: {x: 1, y: 0}
    delivery: {x: 2, y: 0}
    pickup_window: {begin: 0, end: 600000}
    pickup_duration: 1000
    capacity: 1
    announce_time: 10
`

func TestDecodeYAML(t *testing.T) {
	s, err := Decode(strings.NewReader(sample), "yaml")
	require.NoError(t, err)

	assert.Equal(t, "small", s.ID)
	assert.Equal(t, int64(500), s.TickLength)
	u, err := s.Units()
	require.NoError(t, err)
	assert.Equal(t, time.Millisecond, u.Time)
	assert.Equal(t, model.Kilometer, u.Distance)
	assert.Equal(t, model.KilometersPerHour, u.Speed)

	dtos := s.VehicleDTOs()
	require.Len(t, dtos, 1)
	assert.Equal(t, model.Pt(0, 0), dtos[0].StartPosition)

	ps := s.NewParcels()
	require.Len(t, ps, 1)
	assert.Equal(t, "p1", ps[0].ID)
	assert.Equal(t, model.TimeWindow{Begin: 0, End: 600000}, ps[0].PickupWindow)
	assert.Equal(t, model.AlwaysOpen, ps[0].DeliveryWindow)
	assert.Equal(t, int64(10), ps[0].AnnounceTime)
	assert.NotSame(t, ps[0], s.NewParcels()[0])
}

func TestDecodeRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"no vehicles":    "end_time: 10\n",
		"no end":         "vehicles: [{id: a, speed: 1}]\n",
		"bad unit":       "end_time: 10\ndistance_unit: mile\nvehicles: [{id: a, speed: 1}]\n",
		"duplicate id":   "end_time: 10\nvehicles: [{id: a, speed: 1}, {id: a, speed: 1}]\n",
		"zero speed":     "end_time: 10\nvehicles: [{id: a}]\n",
		"bad window":     "end_time: 10\nvehicles: [{id: a, speed: 1}]\nparcels: [{pickup_window: {begin: 5, end: 2}}]\n",
		"early announce": "end_time: 10\nvehicles: [{id: a, speed: 1}]\nparcels: [{announce_time: -1}]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(doc), "yaml")
			assert.Error(t, err)
		})
	}
	_, err := Decode(strings.NewReader("{}"), "toml")
	assert.Error(t, err)
}

func TestSaveAndLoad(t *testing.T) {
	s, err := Generate(GeneratorConfig{Seed: 7, Parcels: 5})
	require.NoError(t, err)
	dir := t.TempDir()

	for _, name := range []string{"gen.yaml", "gen.json"} {
		path := filepath.Join(dir, name)
		require.NoError(t, Save(path, s))
		loaded, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, s, loaded, name)
	}

	var buf bytes.Buffer
	assert.Error(t, Encode(&buf, s, "xml"))
	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadDefaultsID(t *testing.T) {
	s, err := Decode(strings.NewReader(sample), "yaml")
	require.NoError(t, err)
	s.ID = ""
	path := filepath.Join(t.TempDir(), "depot-day.yml")
	require.NoError(t, Save(path, s))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "depot-day", loaded.ID)
}

func TestGenerateIsDeterministic(t *testing.T) {
	cfg := GeneratorConfig{Seed: 42, Vehicles: 3, Parcels: 30}
	a, err := Generate(cfg)
	require.NoError(t, err)
	b, err := Generate(cfg)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	cfg.Seed = 43
	c, err := Generate(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, a.Parcels, c.Parcels)

	require.Len(t, a.Vehicles, 3)
	require.Len(t, a.Parcels, 30)
	var last int64
	for _, p := range a.Parcels {
		assert.GreaterOrEqual(t, p.AnnounceTime, last)
		assert.LessOrEqual(t, p.AnnounceTime, a.EndTime)
		assert.GreaterOrEqual(t, p.PickupWindow.Begin, p.AnnounceTime)
		assert.Greater(t, p.DeliveryWindow.Begin, p.PickupWindow.Begin)
		last = p.AnnounceTime
	}
}

func TestGenerateRejectsInvalidConfig(t *testing.T) {
	_, err := Generate(GeneratorConfig{Vehicles: -1})
	assert.Error(t, err)
	_, err = Generate(GeneratorConfig{VehicleCapacity: 0.5})
	assert.Error(t, err)
}
