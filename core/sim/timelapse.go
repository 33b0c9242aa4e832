package sim

import "fmt"

// TimeLapse is the consumable budget of one tick for one tick listener. It
// implements route.TimeLapse.
type TimeLapse struct {
	start, end int64
	cur        int64
}

// NewTimeLapse returns a full budget for [start, end).
func NewTimeLapse(start, end int64) *TimeLapse {
	return &TimeLapse{start: start, end: end, cur: start}
}

func (t *TimeLapse) StartTime() int64  { return t.start }
func (t *TimeLapse) EndTime() int64    { return t.end }
func (t *TimeLapse) Time() int64       { return t.cur }
func (t *TimeLapse) TimeLeft() int64   { return t.end - t.cur }
func (t *TimeLapse) HasTimeLeft() bool { return t.cur < t.end }
func (t *TimeLapse) ConsumeAll()       { t.cur = t.end }

// Consume uses d units of the budget. Consuming more than is left is a
// programming error.
func (t *TimeLapse) Consume(d int64) {
	if d < 0 || d > t.TimeLeft() {
		panic(fmt.Sprintf("sim: consume %d with %d left", d, t.TimeLeft()))
	}
	t.cur += d
}
