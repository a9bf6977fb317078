package options

import "time"

var _ Range = (*TimeRange)(nil)

// TimeRange describes a lower and upper bound for Time values.
// Either bound is optional.
type TimeRange struct {
	Low  *time.Time
	High *time.Time
}

func (r *TimeRange) From() (interface{}, bool) {
	if r.Low != nil {
		return *r.Low, true
	}
	return nil, false
}

func (r *TimeRange) To() (interface{}, bool) {
	if r.High != nil {
		return *r.High, true
	}
	return nil, false
}

// DayRange covers whole UTC calendar days: from the start of startDay to the
// end of endDay. Nil days leave that side open.
func DayRange(startDay, endDay *time.Time) *TimeRange {
	r := &TimeRange{}
	if startDay != nil {
		low := StartOfDay(*startDay)
		r.Low = &low
	}
	if endDay != nil {
		high := EndOfDay(*endDay)
		r.High = &high
	}
	return r
}

func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EndOfDay is the last instant Postgres can store on t's day. timestamptz has
// microsecond resolution, so a nanosecond bound would round up into the next day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Microsecond)
}
