package model

import (
	"errors"
	"fmt"
	"time"
)

// Frequency is the closed set of recurrence rule shapes. Rules are validated
// at construction; a Rule that round-trips through JSON should be
// re-validated before use.
type Frequency string

const (
	Daily          Frequency = "daily"
	Weekly         Frequency = "weekly"
	MonthlyDay     Frequency = "monthly_day"
	MonthlyLastDay Frequency = "monthly_last_day"
	Yearly         Frequency = "yearly"
)

// Anchor selects the reference point for computing the next due date.
type Anchor string

const (
	// FromDueDate advances the previous due date by one interval,
	// regardless of when completion happened.
	FromDueDate Anchor = "from_due_date"
	// FromCompletion advances the completion timestamp by one interval;
	// the schedule resets to whenever the user actually finished.
	FromCompletion Anchor = "from_completion"
	// Strict picks the next calendar occurrence after now per the rule,
	// ignoring both the prior due date and the completion time.
	Strict Anchor = "strict"
)

// SubtaskMode governs subtask carry-over onto a generated next instance.
type SubtaskMode string

const (
	// SubtaskDefault carries the full list reset to incomplete when every
	// subtask was done, otherwise the list is inherited unchanged.
	SubtaskDefault SubtaskMode = "default"
	// SubtaskPartial carries only the completed subtasks, still complete.
	SubtaskPartial SubtaskMode = "partial"
	// SubtaskAlways carries the full list, all reset to incomplete.
	SubtaskAlways SubtaskMode = "always"
)

var (
	ErrInvalidRule       = errors.New("invalid recurrence rule")
	ErrEmptyWeekdays     = fmt.Errorf("%w: weekly rule requires at least one weekday", ErrInvalidRule)
	ErrBadDayOfMonth     = fmt.Errorf("%w: day of month must be 1..31", ErrInvalidRule)
	ErrBadInterval       = fmt.Errorf("%w: interval must be >= 1", ErrInvalidRule)
	ErrUnknownFrequency  = fmt.Errorf("%w: unknown frequency", ErrInvalidRule)
	ErrUnknownAnchor     = errors.New("unknown recurrence anchor")
	ErrUnknownSubtaskMod = errors.New("unknown subtask recurrence mode")
)

type Rule struct {
	Freq     Frequency `json:"freq"`
	Interval int       `json:"interval"`
	// Weekdays applies to weekly rules only.
	Weekdays []time.Weekday `json:"weekdays,omitempty"`
	// DayOfMonth applies to monthly_day rules only.
	DayOfMonth int `json:"dayOfMonth,omitempty"`
}

func (r Rule) Validate() error {
	if r.Interval < 1 {
		return ErrBadInterval
	}
	switch r.Freq {
	case Daily, MonthlyLastDay, Yearly:
		return nil
	case Weekly:
		if len(r.Weekdays) == 0 {
			return ErrEmptyWeekdays
		}
		for _, wd := range r.Weekdays {
			if wd < time.Sunday || wd > time.Saturday {
				return fmt.Errorf("%w: weekday %d out of range", ErrInvalidRule, wd)
			}
		}
		return nil
	case MonthlyDay:
		if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
			return ErrBadDayOfMonth
		}
		return nil
	default:
		return ErrUnknownFrequency
	}
}

func DailyRule(interval int) (Rule, error) {
	r := Rule{Freq: Daily, Interval: interval}
	return r, r.Validate()
}

func WeeklyRule(interval int, weekdays ...time.Weekday) (Rule, error) {
	r := Rule{Freq: Weekly, Interval: interval, Weekdays: weekdays}
	return r, r.Validate()
}

func MonthlyDayRule(interval, dayOfMonth int) (Rule, error) {
	r := Rule{Freq: MonthlyDay, Interval: interval, DayOfMonth: dayOfMonth}
	return r, r.Validate()
}

func MonthlyLastDayRule(interval int) (Rule, error) {
	r := Rule{Freq: MonthlyLastDay, Interval: interval}
	return r, r.Validate()
}

func YearlyRule(interval int) (Rule, error) {
	r := Rule{Freq: Yearly, Interval: interval}
	return r, r.Validate()
}

// Recurrence is the full recurrence specification on a task.
type Recurrence struct {
	Rule        Rule        `json:"rule"`
	Anchor      Anchor      `json:"anchor"`
	SubtaskMode SubtaskMode `json:"subtaskMode"`
}

func (r Recurrence) Validate() error {
	if err := r.Rule.Validate(); err != nil {
		return err
	}
	switch r.Anchor {
	case FromDueDate, FromCompletion, Strict:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAnchor, r.Anchor)
	}
	switch r.SubtaskMode {
	case SubtaskDefault, SubtaskPartial, SubtaskAlways:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSubtaskMod, r.SubtaskMode)
	}
	return nil
}
