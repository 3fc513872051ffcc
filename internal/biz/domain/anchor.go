package domain

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used for anchors, export dirs and digests
const DateLayout = "2006-01-02"

// TimeOfDay is a wall-clock time without a date
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM"
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// On returns the instant this time of day falls on the calendar date of day, in loc
func (t TimeOfDay) On(day time.Time, loc *time.Location) time.Time {
	d := day.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour, t.Minute, 0, 0, loc)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ScheduleAnchor is a daily wall-clock trigger that fires at most once per calendar date
type ScheduleAnchor struct {
	Name      string
	At        TimeOfDay
	Location  *time.Location
	LastFired string // DateLayout date of the last firing, "" when never fired
}

// NewScheduleAnchor creates an anchor that has never fired
func NewScheduleAnchor(name string, at TimeOfDay, loc *time.Location) *ScheduleAnchor {
	return &ScheduleAnchor{Name: name, At: at, Location: loc}
}

// Today returns the calendar date of now in the anchor's zone
func (a *ScheduleAnchor) Today(now time.Time) string {
	return now.In(a.Location).Format(DateLayout)
}

// TargetOn returns today's target instant
func (a *ScheduleAnchor) TargetOn(now time.Time) time.Time {
	return a.At.On(now, a.Location)
}

// LatestTarget returns the most recent target instant at or before at
func (a *ScheduleAnchor) LatestTarget(at time.Time) time.Time {
	target := a.TargetOn(at)
	if !at.Before(target) {
		return target
	}
	local := at.In(a.Location)
	yesterday := time.Date(local.Year(), local.Month(), local.Day()-1, 12, 0, 0, 0, a.Location)
	return a.At.On(yesterday, a.Location)
}

// IsDue reports whether today's target has been reached and the anchor has not fired today
func (a *ScheduleAnchor) IsDue(now time.Time) bool {
	return !now.Before(a.TargetOn(now)) && a.LastFired != a.Today(now)
}

// MarkFired records that the anchor fired for today's date
func (a *ScheduleAnchor) MarkFired(now time.Time) {
	a.LastFired = a.Today(now)
}

// NextTarget returns the next instant at which the anchor may become due
func (a *ScheduleAnchor) NextTarget(now time.Time) time.Time {
	target := a.TargetOn(now)
	if now.Before(target) && a.LastFired != a.Today(now) {
		return target
	}
	// roll over via the calendar so DST days stay on the configured wall-clock time
	local := now.In(a.Location)
	tomorrow := time.Date(local.Year(), local.Month(), local.Day()+1, 12, 0, 0, 0, a.Location)
	return a.At.On(tomorrow, a.Location)
}
