package calendar

import (
	"fmt"
	"time"

	"lapsecam/internal/config"
)

// Reason names the calendar rule that produced a decision.
type Reason string

const (
	ReasonRestDay       Reason = "rest_day"
	ReasonBeforeMorning Reason = "before_morning_check"
	ReasonPreOpen       Reason = "pre_open"
	ReasonBusinessHours Reason = "business_hours"
	ReasonAfterHours    Reason = "after_hours"
)

// restDayInterval is the polling cadence on the rest day before its
// end-of-day threshold.
const restDayInterval = time.Hour

// PreOpen configures polling between the morning check and business start.
type PreOpen struct {
	Strategy    string
	MinInterval time.Duration
	MaxInterval time.Duration
	Divisor     int
	Steps       []time.Duration
}

// Policy holds the working-hours calendar. The zero value is not usable;
// build one with FromConfig or fill every field.
type Policy struct {
	Location          *time.Location
	RestDay           time.Weekday
	RestDayEndHour    int
	MorningCheckHour  int
	BusinessStartHour int
	BusinessEndHour   int
	SteadyInterval    time.Duration
	MaxBackoff        time.Duration
	MaxDelay          time.Duration
	PreOpen           PreOpen
}

// Decision is the outcome of one calendar evaluation.
type Decision struct {
	Delay    time.Duration
	Reason   Reason
	Local    time.Time
	Failures int
}

// FromConfig builds a Policy from the schedule section.
func FromConfig(s config.Schedule) (Policy, error) {
	loc, err := s.Location()
	if err != nil {
		return Policy{}, fmt.Errorf("schedule.utc_offset: %w", err)
	}
	restDay, err := s.Weekday()
	if err != nil {
		return Policy{}, fmt.Errorf("schedule.rest_day: %w", err)
	}
	return Policy{
		Location:          loc,
		RestDay:           restDay,
		RestDayEndHour:    s.RestDayEndHour,
		MorningCheckHour:  s.MorningCheckHour,
		BusinessStartHour: s.BusinessStartHour,
		BusinessEndHour:   s.BusinessEndHour,
		SteadyInterval:    s.SteadyInterval(),
		MaxBackoff:        s.MaxBackoff(),
		MaxDelay:          s.MaxDelay(),
		PreOpen: PreOpen{
			Strategy:    s.PreOpenStrategy,
			MinInterval: s.PreOpenMinInterval(),
			MaxInterval: s.PreOpenMaxInterval(),
			Divisor:     s.PreOpenDivisor,
			Steps:       s.PreOpenSteps(),
		},
	}, nil
}

// NextDelay returns how long to wait before the next attempt.
func (p Policy) NextDelay(now time.Time, failures int) time.Duration {
	return p.Decide(now, failures).Delay
}

// Decide evaluates the calendar rules in order for now, converted to the
// policy's zone, and the given failure count.
func (p Policy) Decide(now time.Time, failures int) Decision {
	if failures < 0 {
		failures = 0
	}
	local := now.In(p.location())
	decision := Decision{Local: local, Failures: failures}

	switch {
	case local.Weekday() == p.RestDay && local.Hour() < p.RestDayEndHour:
		decision.Reason = ReasonRestDay
		decision.Delay = capDuration(restDayInterval, p.MaxBackoff)
	case local.Weekday() == p.RestDay:
		decision.Reason = ReasonAfterHours
		decision.Delay = p.at(local, 1, p.MorningCheckHour).Sub(local)
	case local.Hour() < p.MorningCheckHour:
		decision.Reason = ReasonBeforeMorning
		decision.Delay = p.at(local, 0, p.MorningCheckHour).Sub(local)
	case local.Hour() < p.BusinessStartHour:
		decision.Reason = ReasonPreOpen
		decision.Delay = p.preOpenDelay(local, failures)
	case local.Hour() < p.BusinessEndHour:
		decision.Reason = ReasonBusinessHours
		decision.Delay = escalate(p.SteadyInterval, failures, p.MaxBackoff)
	default:
		decision.Reason = ReasonAfterHours
		decision.Delay = p.at(local, 1, p.MorningCheckHour).Sub(local)
	}

	decision.Delay = capDuration(decision.Delay, p.MaxDelay)
	return decision
}

// InBusinessHours reports whether now falls within business hours on a
// business day.
func (p Policy) InBusinessHours(now time.Time) bool {
	local := now.In(p.location())
	if local.Weekday() == p.RestDay {
		return false
	}
	return local.Hour() >= p.BusinessStartHour && local.Hour() < p.BusinessEndHour
}

func (p Policy) preOpenDelay(local time.Time, failures int) time.Duration {
	remaining := p.at(local, 0, p.BusinessStartHour).Sub(local)
	divisor := p.PreOpen.Divisor
	if divisor < 1 {
		divisor = 1
	}
	base := remaining / time.Duration(divisor)
	if base < p.PreOpen.MinInterval {
		base = p.PreOpen.MinInterval
	}
	if p.PreOpen.MaxInterval > 0 && base > p.PreOpen.MaxInterval {
		base = p.PreOpen.MaxInterval
	}

	var delay time.Duration
	switch {
	case p.PreOpen.Strategy == config.PreOpenStepped && failures > 0 && len(p.PreOpen.Steps) > 0:
		step := p.PreOpen.Steps[min(failures, len(p.PreOpen.Steps))-1]
		delay = max(base, step)
		delay = capDuration(delay, p.MaxBackoff)
	case p.PreOpen.Strategy == config.PreOpenStepped:
		delay = capDuration(base, p.MaxBackoff)
	default:
		delay = escalate(base, failures, p.MaxBackoff)
	}
	return capDuration(delay, remaining)
}

// at returns hour:00 on the local day offset by dayOffset. time.Date
// normalizes day and month overflow.
func (p Policy) at(local time.Time, dayOffset, hour int) time.Time {
	return time.Date(local.Year(), local.Month(), local.Day()+dayOffset, hour, 0, 0, 0, local.Location())
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// escalate doubles base once per failure and caps the result.
func escalate(base time.Duration, failures int, ceiling time.Duration) time.Duration {
	delay := base
	for i := 0; i < failures; i++ {
		if ceiling > 0 && delay >= ceiling {
			break
		}
		if delay >= time.Duration(1<<62) {
			break
		}
		delay *= 2
	}
	return capDuration(delay, ceiling)
}

func capDuration(d, ceiling time.Duration) time.Duration {
	if ceiling > 0 && d > ceiling {
		return ceiling
	}
	if d < 0 {
		return 0
	}
	return d
}
