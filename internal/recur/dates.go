// Package recur decides what happens when a recurring task is completed:
// the next occurrence's due date, which subtasks carry forward, and how the
// streak updates. Everything here is pure; persistence is the caller's job.
package recur

import (
	"time"

	"motido/internal/model"
)

// Dates are day-granular. Weeks run Monday through Sunday; a weekly advance
// that wraps past Sunday applies the remaining interval weeks. Monthly and
// yearly advancement clamps to the last valid day of the target month
// (Jan 31 + 1 month = Feb 28/29, Feb 29 + 1 year = Feb 28) rather than
// letting overflow normalize into the following month.

// NextDueDate computes the next occurrence per the recurrence anchor.
//
//   - from_due_date: previous due date advanced one interval. With no prior
//     due date the completion day stands in as the base.
//   - from_completion: completion day advanced one interval.
//   - strict: occurrences are walked forward from the rule's grid until the
//     first one on or after today; the schedule never drifts behind now.
func NextDueDate(rec model.Recurrence, prevDue *time.Time, completedAt, now time.Time) (time.Time, error) {
	if err := rec.Validate(); err != nil {
		return time.Time{}, err
	}

	base := startOfDay(completedAt)
	if prevDue != nil {
		base = startOfDay(*prevDue)
	}

	switch rec.Anchor {
	case model.FromDueDate:
		return advance(rec.Rule, base), nil
	case model.FromCompletion:
		return advance(rec.Rule, startOfDay(completedAt)), nil
	default: // model.Strict, rejected otherwise by Validate
		today := startOfDay(now)
		next := advance(rec.Rule, base)
		for next.Before(today) {
			next = advance(rec.Rule, next)
		}
		return next, nil
	}
}

// advance moves base forward by one recurrence interval. The rule is assumed
// valid; callers go through NextDueDate or validate up front.
func advance(r model.Rule, base time.Time) time.Time {
	switch r.Freq {
	case model.Weekly:
		return advanceWeekly(r, base)
	case model.MonthlyDay:
		return addMonthsClamped(base, r.Interval, r.DayOfMonth)
	case model.MonthlyLastDay:
		return addMonthsClamped(base, r.Interval, 31)
	case model.Yearly:
		return addMonthsClamped(base, 12*r.Interval, base.Day())
	default: // model.Daily
		return base.AddDate(0, 0, r.Interval)
	}
}

// advanceWeekly finds the next configured weekday strictly after base. When
// that match falls in a later Monday-based week and the interval is more
// than one, the remaining interval weeks are skipped as well.
func advanceWeekly(r model.Rule, base time.Time) time.Time {
	inSet := make(map[time.Weekday]bool, len(r.Weekdays))
	for _, wd := range r.Weekdays {
		inSet[wd] = true
	}

	for offset := 1; offset <= 7; offset++ {
		candidate := base.AddDate(0, 0, offset)
		if !inSet[candidate.Weekday()] {
			continue
		}
		if r.Interval > 1 && !sameWeek(base, candidate) {
			candidate = candidate.AddDate(0, 0, 7*(r.Interval-1))
		}
		return candidate
	}
	// Unreachable for a validated rule: a non-empty weekday set always
	// matches within seven days.
	return base.AddDate(0, 0, 7*r.Interval)
}

func sameWeek(a, b time.Time) bool {
	return weekStart(a).Equal(weekStart(b))
}

// weekStart truncates to the Monday beginning the ISO week of t.
func weekStart(t time.Time) time.Time {
	day := startOfDay(t)
	back := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -back)
}

// addMonthsClamped lands on day-of-month `day` in the month `months` ahead,
// clamping to that month's last day instead of rolling over.
func addMonthsClamped(base time.Time, months, day int) time.Time {
	total := int(base.Month()) - 1 + months
	year := base.Year() + total/12
	month := time.Month(total%12 + 1)

	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, base.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
