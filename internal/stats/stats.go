// Package stats aggregates completed sessions into weekly and monthly
// summaries and serves per-session detail views. All heavy lifting is a
// group-by-date summation over the net seconds the timer already persisted.
package stats

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/dadav/ticktick/internal/accounting"
	"github.com/dadav/ticktick/internal/models"
)

// Service reads completed sessions; it never mutates them.
type Service struct {
	db  *gorm.DB
	cfg accounting.Config

	// now is swapped out in tests.
	now func() time.Time
}

func New(db *gorm.DB, cfg accounting.Config) *Service {
	return &Service{db: db, cfg: cfg, now: time.Now}
}

// ErrNotFound is returned for lookups of unknown session ids.
var ErrNotFound = errors.New("session not found")

// WeekSummary covers the current calendar week (Monday start).
type WeekSummary struct {
	TotalSeconds      int     `json:"total_seconds"`
	TotalFormatted    string  `json:"total_formatted"`
	TargetSeconds     int     `json:"target_seconds"`
	TargetFormatted   string  `json:"target_formatted"`
	DaysWorked        int     `json:"days_worked"`
	AvgPerDay         string  `json:"avg_per_day_formatted"`
	OvertimeSeconds   int     `json:"overtime_seconds"`
	OvertimeFormatted string  `json:"overtime_formatted"`
	AverageStartTime  *string `json:"average_start_time"`
	AverageEndTime    *string `json:"average_end_time"`
}

// MonthSummary covers the current calendar month; its target scales with
// the days actually worked.
type MonthSummary struct {
	TotalSeconds      int     `json:"total_seconds"`
	TotalFormatted    string  `json:"total_formatted"`
	DaysWorked        int     `json:"days_worked"`
	AvgPerDay         string  `json:"avg_per_day_formatted"`
	OvertimeSeconds   int     `json:"overtime_seconds"`
	OvertimeFormatted string  `json:"overtime_formatted"`
	AverageStartTime  *string `json:"average_start_time"`
	AverageEndTime    *string `json:"average_end_time"`
}

// SessionSummary is one row of the recent-sessions list.
type SessionSummary struct {
	ID                uint    `json:"id"`
	Date              string  `json:"date"`
	StartTime         string  `json:"start_time"`
	EndTime           *string `json:"end_time"`
	NetWorkFormatted  string  `json:"net_work_formatted"`
	OvertimeSeconds   int     `json:"overtime_seconds"`
	OvertimeFormatted string  `json:"overtime_formatted"`
	Status            string  `json:"status"`
}

// Summary is the statistics page payload.
type Summary struct {
	ThisWeek       WeekSummary      `json:"this_week"`
	ThisMonth      MonthSummary     `json:"this_month"`
	RecentSessions []SessionSummary `json:"recent_sessions"`
}

// PauseInfo is one pause row in a session detail view.
type PauseInfo struct {
	ID                uint    `json:"id"`
	PauseStart        string  `json:"pause_start"`
	PauseEnd          *string `json:"pause_end"`
	DurationFormatted string  `json:"duration_formatted"`
}

// SessionDetail is the full view of one session including its pauses.
type SessionDetail struct {
	ID                 uint        `json:"id"`
	Date               string      `json:"date"`
	StartTime          string      `json:"start_time"`
	EndTime            *string     `json:"end_time"`
	NetWorkFormatted   string      `json:"net_work_formatted"`
	GrossWorkFormatted string      `json:"gross_work_formatted"`
	TotalPauseFormat   string      `json:"total_pause_formatted"`
	OvertimeSeconds    int         `json:"overtime_seconds"`
	OvertimeFormatted  string      `json:"overtime_formatted"`
	Status             string      `json:"status"`
	PauseCount         int         `json:"pause_count"`
	Pauses             []PauseInfo `json:"pauses"`
}

// Get builds the week/month summaries plus the ten most recent sessions.
// Completed sessions dated in the future are ignored so a clock mishap
// cannot inflate the totals.
func (s *Service) Get() (Summary, error) {
	now := s.now()
	today := dayOf(now)
	weekStart := today.AddDate(0, 0, -mondayOffset(today))
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	weekSessions, err := s.completedSince(weekStart, today)
	if err != nil {
		return Summary{}, err
	}
	monthSessions, err := s.completedSince(monthStart, today)
	if err != nil {
		return Summary{}, err
	}

	weekTotal := netSum(weekSessions)
	weekDays := distinctDays(weekSessions)
	weekTarget := int(s.cfg.WeeklyHours * 3600)
	weekStartAvg, weekEndAvg := averageTimes(weekSessions)

	monthTotal := netSum(monthSessions)
	monthDays := distinctDays(monthSessions)
	monthTarget := monthDays * s.cfg.RequiredDailySeconds()
	monthStartAvg, monthEndAvg := averageTimes(monthSessions)

	var recent []models.WorkSession
	err = s.db.Where("status = ?", models.StatusCompleted).
		Order("date DESC, start_time DESC").
		Limit(10).
		Find(&recent).Error
	if err != nil {
		return Summary{}, fmt.Errorf("recent sessions: %w", err)
	}

	summaries := make([]SessionSummary, 0, len(recent))
	for _, sess := range recent {
		summaries = append(summaries, s.summarize(sess))
	}

	return Summary{
		ThisWeek: WeekSummary{
			TotalSeconds:      weekTotal,
			TotalFormatted:    accounting.FormatDuration(weekTotal),
			TargetSeconds:     weekTarget,
			TargetFormatted:   accounting.FormatDuration(weekTarget),
			DaysWorked:        weekDays,
			AvgPerDay:         accounting.FormatDuration(average(weekTotal, weekDays)),
			OvertimeSeconds:   weekTotal - weekTarget,
			OvertimeFormatted: accounting.FormatDuration(weekTotal - weekTarget),
			AverageStartTime:  weekStartAvg,
			AverageEndTime:    weekEndAvg,
		},
		ThisMonth: MonthSummary{
			TotalSeconds:      monthTotal,
			TotalFormatted:    accounting.FormatDuration(monthTotal),
			DaysWorked:        monthDays,
			AvgPerDay:         accounting.FormatDuration(average(monthTotal, monthDays)),
			OvertimeSeconds:   monthTotal - monthTarget,
			OvertimeFormatted: accounting.FormatDuration(monthTotal - monthTarget),
			AverageStartTime:  monthStartAvg,
			AverageEndTime:    monthEndAvg,
		},
		RecentSessions: summaries,
	}, nil
}

// ListCompleted returns completed sessions whose date falls in [from, to],
// newest first. This is the query surface the export handlers build on.
func (s *Service) ListCompleted(from, to time.Time) ([]models.WorkSession, error) {
	var sessions []models.WorkSession
	q := s.db.Where("status = ?", models.StatusCompleted)
	if !from.IsZero() {
		q = q.Where("date >= ?", dayOf(from))
	}
	if !to.IsZero() {
		q = q.Where("date <= ?", dayOf(to))
	}
	if err := q.Order("date DESC, start_time DESC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("list completed sessions: %w", err)
	}
	return sessions, nil
}

// Details returns one session with its ordered pauses. Figures for a still
// active session are computed live against now.
func (s *Service) Details(id uint) (*SessionDetail, error) {
	var session models.WorkSession
	err := s.db.Preload("PausePeriods", func(db *gorm.DB) *gorm.DB {
		return db.Order("pause_start ASC")
	}).First(&session, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	pauses := make([]accounting.Interval, 0, len(session.PausePeriods))
	for _, p := range session.PausePeriods {
		pauses = append(pauses, accounting.Interval{Start: p.PauseStart, End: p.PauseEnd})
	}

	net := 0
	if session.NetSeconds != nil {
		net = *session.NetSeconds
	} else if session.Status.Active() {
		net = accounting.NetWorkSeconds(s.cfg, session.StartTime, session.EndTime, pauses, now)
	}

	gross := accounting.GrossWorkSeconds(session.StartTime, session.EndTime, pauses, now)
	pauseSeconds := accounting.TotalPauseSeconds(pauses, now)
	overtime := net - s.cfg.RequiredDailySeconds()

	infos := make([]PauseInfo, 0, len(session.PausePeriods))
	for _, p := range session.PausePeriods {
		end := now
		var endStr *string
		if p.PauseEnd != nil {
			end = *p.PauseEnd
			formatted := accounting.FormatClock(end)
			endStr = &formatted
		}
		infos = append(infos, PauseInfo{
			ID:                p.ID,
			PauseStart:        accounting.FormatClock(p.PauseStart),
			PauseEnd:          endStr,
			DurationFormatted: accounting.FormatDurationShort(int(end.Sub(p.PauseStart).Seconds())),
		})
	}

	detail := &SessionDetail{
		ID:                 session.ID,
		Date:               session.Date.Format("2006-01-02"),
		StartTime:          accounting.FormatClock(session.StartTime),
		NetWorkFormatted:   accounting.FormatDurationShort(net),
		GrossWorkFormatted: accounting.FormatDurationShort(gross),
		TotalPauseFormat:   accounting.FormatDurationShort(pauseSeconds),
		OvertimeSeconds:    overtime,
		OvertimeFormatted:  accounting.FormatDurationShort(overtime),
		Status:             session.Status.String(),
		PauseCount:         len(infos),
		Pauses:             infos,
	}
	if session.EndTime != nil {
		formatted := accounting.FormatClock(*session.EndTime)
		detail.EndTime = &formatted
	}
	return detail, nil
}

func (s *Service) summarize(sess models.WorkSession) SessionSummary {
	net := 0
	if sess.NetSeconds != nil {
		net = *sess.NetSeconds
	}
	overtime := net - s.cfg.RequiredDailySeconds()

	summary := SessionSummary{
		ID:                sess.ID,
		Date:              sess.Date.Format("2006-01-02"),
		StartTime:         accounting.FormatClock(sess.StartTime),
		NetWorkFormatted:  accounting.FormatDurationShort(net),
		OvertimeSeconds:   overtime,
		OvertimeFormatted: accounting.FormatDurationShort(overtime),
		Status:            sess.Status.String(),
	}
	if sess.EndTime != nil {
		formatted := accounting.FormatClock(*sess.EndTime)
		summary.EndTime = &formatted
	}
	return summary
}

func (s *Service) completedSince(from, today time.Time) ([]models.WorkSession, error) {
	var sessions []models.WorkSession
	err := s.db.Where("status = ? AND date >= ? AND date <= ?", models.StatusCompleted, from, today).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("completed sessions since %s: %w", from.Format("2006-01-02"), err)
	}
	return sessions, nil
}

func netSum(sessions []models.WorkSession) int {
	total := 0
	for _, s := range sessions {
		if s.NetSeconds != nil {
			total += *s.NetSeconds
		}
	}
	return total
}

func distinctDays(sessions []models.WorkSession) int {
	days := map[string]struct{}{}
	for _, s := range sessions {
		days[s.Date.Format("2006-01-02")] = struct{}{}
	}
	return len(days)
}

func average(total, days int) int {
	if days == 0 {
		return 0
	}
	return total / days
}

// averageTimes computes the mean start and end clock times as seconds since
// midnight; end times only count sessions that have one.
func averageTimes(sessions []models.WorkSession) (*string, *string) {
	var startSum, startCount, endSum, endCount int
	for _, s := range sessions {
		startSum += secondsSinceMidnight(s.StartTime)
		startCount++
		if s.EndTime != nil {
			endSum += secondsSinceMidnight(*s.EndTime)
			endCount++
		}
	}

	var start, end *string
	if startCount > 0 {
		formatted := accounting.FormatDurationShort(startSum / startCount)
		start = &formatted
	}
	if endCount > 0 {
		formatted := accounting.FormatDurationShort(endSum / endCount)
		end = &formatted
	}
	return start, end
}

func secondsSinceMidnight(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

// mondayOffset is the number of days since the last Monday.
func mondayOffset(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 { // Sunday
		return 6
	}
	return wd - 1
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
