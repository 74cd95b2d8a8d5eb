// Package accounting holds the pure work-time math: pause and gross/net
// seconds, the lunch deduction, the daily cap and the derived leave-time
// projections. It carries no state and never touches the store.
package accounting

import (
	"fmt"
	"time"
)

// WorkDaysPerWeek divides the weekly quota into a daily requirement.
// The source of the quota rules assumes a 5-day week; making this
// configurable would need clarified semantics first.
const WorkDaysPerWeek = 5

// Config are the accounting knobs, validated by the config loader.
type Config struct {
	WeeklyHours          float64
	MaxDailyHours        float64
	LunchThresholdHours  float64
	LunchDurationMinutes int
}

// RequiredDailySeconds is the daily work target derived from the weekly quota.
func (c Config) RequiredDailySeconds() int {
	return int(c.WeeklyHours * 3600 / WorkDaysPerWeek)
}

// MaxDailySeconds is the accounting ceiling: net work is never reported or
// persisted above it.
func (c Config) MaxDailySeconds() int {
	return int(c.MaxDailyHours * 3600)
}

// LunchThresholdSeconds is the gross work duration at which the lunch
// deduction starts to apply.
func (c Config) LunchThresholdSeconds() int {
	return int(c.LunchThresholdHours * 3600)
}

// LunchDurationSeconds is the fixed deduction once the threshold is crossed.
func (c Config) LunchDurationSeconds() int {
	return c.LunchDurationMinutes * 60
}

// Interval is one pause; a nil End means the pause is still open and counts
// up to "now".
type Interval struct {
	Start time.Time
	End   *time.Time
}

// Figures is one consistent accounting snapshot for a session at a given
// instant. Seconds fields are plain ints so negative overtime survives.
type Figures struct {
	PauseSeconds          int
	GrossSeconds          int
	LunchApplies          bool
	LunchDeductionSeconds int
	NetSeconds            int
	OvertimeSeconds       int
	RemainingSeconds      int
	EarliestLeave         time.Time
	NormalLeave           time.Time
	LatestLeave           time.Time
	LunchBreakAt          time.Time
}

// TotalPauseSeconds sums the pause durations; an open pause contributes up
// to now.
func TotalPauseSeconds(pauses []Interval, now time.Time) int {
	total := 0
	for _, p := range pauses {
		end := now
		if p.End != nil {
			end = *p.End
		}
		total += int(end.Sub(p.Start).Seconds())
	}
	return total
}

// GrossWorkSeconds is elapsed time minus pauses, floored at zero.
func GrossWorkSeconds(start time.Time, end *time.Time, pauses []Interval, now time.Time) int {
	until := now
	if end != nil {
		until = *end
	}
	gross := int(until.Sub(start).Seconds()) - TotalPauseSeconds(pauses, now)
	if gross < 0 {
		return 0
	}
	return gross
}

// NetWorkSeconds applies the lunch deduction and the daily cap to the gross
// figure.
func NetWorkSeconds(cfg Config, start time.Time, end *time.Time, pauses []Interval, now time.Time) int {
	gross := GrossWorkSeconds(start, end, pauses, now)
	net := gross - lunchDeduction(cfg, gross)
	if net < 0 {
		net = 0
	}
	if max := cfg.MaxDailySeconds(); net > max {
		net = max
	}
	return net
}

// Compute produces the full snapshot used by status reads and the UI.
func Compute(cfg Config, start time.Time, end *time.Time, pauses []Interval, now time.Time) Figures {
	pause := TotalPauseSeconds(pauses, now)
	gross := GrossWorkSeconds(start, end, pauses, now)
	deduction := lunchDeduction(cfg, gross)

	net := gross - deduction
	if net < 0 {
		net = 0
	}
	if max := cfg.MaxDailySeconds(); net > max {
		net = max
	}

	required := cfg.RequiredDailySeconds()
	remaining := required - net
	if remaining < 0 {
		remaining = 0
	}

	base := start.Add(time.Duration(pause) * time.Second)
	return Figures{
		PauseSeconds:          pause,
		GrossSeconds:          gross,
		LunchApplies:          deduction > 0,
		LunchDeductionSeconds: deduction,
		NetSeconds:            net,
		OvertimeSeconds:       net - required,
		RemainingSeconds:      remaining,
		EarliestLeave:         leaveAt(cfg, base, required),
		NormalLeave:           leaveAt(cfg, base, required),
		LatestLeave:           leaveAt(cfg, base, cfg.MaxDailySeconds()),
		LunchBreakAt:          base.Add(time.Duration(cfg.LunchThresholdSeconds()) * time.Second),
	}
}

// lunchDeduction returns the deduction earned by a given gross work
// duration: the full lunch once the threshold is reached, else nothing.
func lunchDeduction(cfg Config, grossSeconds int) int {
	if grossSeconds >= cfg.LunchThresholdSeconds() {
		return cfg.LunchDurationSeconds()
	}
	return 0
}

// leaveAt projects the clock time at which net work reaches the target,
// adding the lunch deduction when the target itself crosses the threshold.
func leaveAt(cfg Config, base time.Time, targetSeconds int) time.Time {
	total := targetSeconds + lunchDeduction(cfg, targetSeconds)
	return base.Add(time.Duration(total) * time.Second)
}

// FormatDuration renders seconds as HH:MM:SS, keeping the sign for deficits.
func FormatDuration(seconds int) string {
	sign := ""
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, seconds/3600, seconds%3600/60, seconds%60)
}

// FormatDurationShort renders seconds as HH:MM.
func FormatDurationShort(seconds int) string {
	sign := ""
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	return fmt.Sprintf("%s%02d:%02d", sign, seconds/3600, seconds%3600/60)
}

// FormatClock renders a wall-clock time as HH:MM.
func FormatClock(t time.Time) string {
	return t.Format("15:04")
}
