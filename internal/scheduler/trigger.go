package scheduler

import (
	"errors"
	"fmt"
	"time"
)

// TriggerKind selects how a trigger computes its firing times.
type TriggerKind int

// Trigger kinds
const (
	// TriggerDaily fires once a day at a fixed local wall-clock time.
	TriggerDaily TriggerKind = iota
	// TriggerInterval fires every Interval, aligned to local midnight.
	TriggerInterval
)

// Trigger describes when a job fires.
type Trigger struct {
	Kind     TriggerKind
	Hour     int
	Minute   int
	Interval time.Duration
}

// Daily returns a trigger firing every day at hour:minute local time.
func Daily(hour, minute int) Trigger {
	return Trigger{Kind: TriggerDaily, Hour: hour, Minute: minute}
}

// Every returns a trigger firing every d, aligned so that a one-hour
// interval fires on the hour.
func Every(d time.Duration) Trigger {
	return Trigger{Kind: TriggerInterval, Interval: d}
}

// Validate checks the trigger can produce firing times.
func (t Trigger) Validate() error {
	switch t.Kind {
	case TriggerDaily:
		if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
			return fmt.Errorf("invalid daily trigger time %02d:%02d", t.Hour, t.Minute)
		}
	case TriggerInterval:
		if t.Interval <= 0 {
			return errors.New("trigger interval must be positive")
		}
	default:
		return fmt.Errorf("unknown trigger kind %d", t.Kind)
	}
	return nil
}

// Next returns the first firing time strictly after after, evaluated in loc.
func (t Trigger) Next(after time.Time, loc *time.Location) time.Time {
	local := after.In(loc)
	y, m, d := local.Date()

	if t.Kind == TriggerDaily {
		next := time.Date(y, m, d, t.Hour, t.Minute, 0, 0, loc)
		if !next.After(local) {
			next = time.Date(y, m, d+1, t.Hour, t.Minute, 0, 0, loc)
		}
		return next
	}

	midnight := time.Date(y, m, d, 0, 0, 0, 0, loc)
	tomorrow := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	steps := local.Sub(midnight)/t.Interval + 1
	next := midnight.Add(steps * t.Interval)
	// alignment restarts every local midnight
	if next.After(tomorrow) {
		next = tomorrow
	}
	return next
}
