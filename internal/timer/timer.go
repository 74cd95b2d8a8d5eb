// Package timer is the singleton state machine coordinating work sessions:
// it interprets start/pause/continue/stop/reset against the persisted
// TimerState row, enforces the legal transitions and guards session
// creation with a compare-and-set on the singleton.
package timer

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/dadav/ticktick/internal/accounting"
	"github.com/dadav/ticktick/internal/models"
)

// Service owns all transitions of the timer state machine. Safe for
// concurrent use: the only racy transition (start) is serialized by a
// conditional update on the timer_state row, everything else runs inside
// a single transaction.
type Service struct {
	db  *gorm.DB
	cfg accounting.Config
	log zerolog.Logger

	// now is swapped out in tests.
	now func() time.Time
}

func New(db *gorm.DB, cfg accounting.Config, log zerolog.Logger) *Service {
	return &Service{db: db, cfg: cfg, log: log, now: time.Now}
}

// ActionResult is the outcome of a timer action. Illegal transitions are
// reported here with Success=false, not as errors; errors are reserved for
// store failures.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// SessionInfo is the live view of the current session inside a status
// snapshot.
type SessionInfo struct {
	ID                uint      `json:"id"`
	StartTime         time.Time `json:"start_time"`
	CurrentTime       time.Time `json:"current_time"`
	NetWorkSeconds    int       `json:"net_work_seconds"`
	NetWorkFormatted  string    `json:"net_work_formatted"`
	PauseCount        int       `json:"pause_count"`
	TotalPauseSeconds int       `json:"total_pause_seconds"`
}

// Calculations are the derived figures shown next to a live session.
type Calculations struct {
	LunchBreakApplies bool    `json:"lunch_break_applies"`
	LunchBreakAt      *string `json:"lunch_break_at"`
	EarliestLeave     string  `json:"earliest_leave"`
	NormalLeave       string  `json:"normal_leave"`
	LatestLeave       string  `json:"latest_leave"`
	RemainingForDaily string  `json:"remaining_for_daily"`
	OvertimeSeconds   int     `json:"overtime_seconds"`
	OvertimeFormatted string  `json:"overtime_formatted"`
}

// StatusSnapshot is the full answer to a status poll.
type StatusSnapshot struct {
	Status       string        `json:"status"`
	Session      *SessionInfo  `json:"session"`
	Calculations *Calculations `json:"calculations"`
}

const (
	statusIdle      = "idle"
	statusRunning   = "running"
	statusPaused    = "paused"
	statusCompleted = "completed"
)

// Start creates a new running session. Two concurrent starts may both get
// here with an idle snapshot; both insert a session row speculatively and
// then race on a single conditional update of timer_state. The loser
// deletes its own row and reports the winner's state.
func (s *Service) Start() (ActionResult, error) {
	now := s.now()

	state, err := s.loadState(s.db)
	if err != nil {
		return ActionResult{}, err
	}
	if state.CurrentSessionID != nil {
		return ActionResult{Message: "Timer already running", Status: s.currentLabel()}, nil
	}

	session := models.WorkSession{
		Date:      dayOf(now),
		StartTime: now,
		Status:    models.StatusRunning,
	}
	if err := s.db.Create(&session).Error; err != nil {
		return ActionResult{}, fmt.Errorf("create session: %w", err)
	}

	res := s.db.Model(&models.TimerState{}).
		Where("id = ? AND current_session_id IS NULL", models.TimerStateID).
		Update("current_session_id", session.ID)
	if res.Error != nil {
		return ActionResult{}, fmt.Errorf("claim timer: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Lost the race: drop the speculative row, report the winner.
		if err := s.db.Delete(&models.WorkSession{}, session.ID).Error; err != nil {
			return ActionResult{}, fmt.Errorf("discard losing session: %w", err)
		}
		return ActionResult{Message: "Timer already running", Status: s.currentLabel()}, nil
	}

	s.log.Info().Uint("session_id", session.ID).Time("start_time", now).Msg("timer started")
	return ActionResult{Success: true, Message: "Timer started", Status: statusRunning}, nil
}

// Pause opens a new pause period on the running session.
func (s *Service) Pause() (ActionResult, error) {
	now := s.now()
	result := ActionResult{}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		_, session, err := s.current(tx)
		if err != nil {
			return err
		}
		if session == nil {
			result = ActionResult{Message: "No active session", Status: statusIdle}
			return nil
		}
		if !session.Status.CanPause() {
			result = ActionResult{Message: "Timer already paused", Status: statusPaused}
			return nil
		}

		pause := models.PausePeriod{SessionID: session.ID, PauseStart: now}
		if err := tx.Create(&pause).Error; err != nil {
			return err
		}
		if err := tx.Model(session).Update("status", models.StatusPaused).Error; err != nil {
			return err
		}

		result = ActionResult{Success: true, Message: "Timer paused", Status: statusPaused}
		return nil
	})
	if err != nil {
		return ActionResult{}, err
	}
	if result.Success {
		s.log.Info().Time("pause_start", now).Msg("timer paused")
	}
	return result, nil
}

// Continue closes the open pause and resumes the session.
func (s *Service) Continue() (ActionResult, error) {
	now := s.now()
	result := ActionResult{}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		_, session, err := s.current(tx)
		if err != nil {
			return err
		}
		if session == nil {
			result = ActionResult{Message: "No active session", Status: statusIdle}
			return nil
		}
		if !session.Status.CanResume() {
			result = ActionResult{Message: "Timer not paused", Status: statusRunning}
			return nil
		}

		if open := session.OpenPause(); open != nil {
			if err := tx.Model(&models.PausePeriod{}).
				Where("id = ?", open.ID).
				Update("pause_end", now).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(session).Update("status", models.StatusRunning).Error; err != nil {
			return err
		}

		result = ActionResult{Success: true, Message: "Timer resumed", Status: statusRunning}
		return nil
	})
	if err != nil {
		return ActionResult{}, err
	}
	if result.Success {
		s.log.Info().Time("pause_end", now).Msg("timer resumed")
	}
	return result, nil
}

// Stop completes the current session: closes any open pause, persists the
// capped net seconds and releases the singleton.
func (s *Service) Stop() (ActionResult, error) {
	now := s.now()
	result := ActionResult{}
	var stoppedID uint

	err := s.db.Transaction(func(tx *gorm.DB) error {
		state, session, err := s.current(tx)
		if err != nil {
			return err
		}
		if session == nil {
			result = ActionResult{Message: "No active session", Status: statusIdle}
			return nil
		}
		if err := s.finish(tx, state, session, now); err != nil {
			return err
		}
		stoppedID = session.ID
		result = ActionResult{Success: true, Message: "Timer stopped and saved", Status: statusIdle}
		return nil
	})
	if err != nil {
		return ActionResult{}, err
	}
	if result.Success {
		s.log.Info().Uint("session_id", stoppedID).Time("end_time", now).Msg("timer stopped")
	}
	return result, nil
}

// Reset discards the current session: the row and its pauses are deleted
// and the singleton cleared. Nothing reaches the statistics.
func (s *Service) Reset() (ActionResult, error) {
	result := ActionResult{}
	var droppedID uint

	err := s.db.Transaction(func(tx *gorm.DB) error {
		_, session, err := s.current(tx)
		if err != nil {
			return err
		}
		if session == nil {
			result = ActionResult{Message: "No active session", Status: statusIdle}
			return nil
		}

		if err := tx.Where("session_id = ?", session.ID).Delete(&models.PausePeriod{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.WorkSession{}, session.ID).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.TimerState{}).
			Where("id = ?", models.TimerStateID).
			Update("current_session_id", nil).Error; err != nil {
			return err
		}

		droppedID = session.ID
		result = ActionResult{Success: true, Message: "Timer reset (session discarded)", Status: statusIdle}
		return nil
	})
	if err != nil {
		return ActionResult{}, err
	}
	if result.Success {
		s.log.Info().Uint("session_id", droppedID).Msg("timer reset, session discarded")
	}
	return result, nil
}

// Status returns a live snapshot. When the live net work time has reached
// the daily cap the session is auto-stopped as a side effect; the
// triggering poll reports the final figures, later polls report idle.
func (s *Service) Status() (StatusSnapshot, error) {
	now := s.now()

	state, session, err := s.current(s.db)
	if err != nil {
		return StatusSnapshot{}, err
	}
	if session == nil {
		return StatusSnapshot{Status: statusIdle}, nil
	}

	figures := accounting.Compute(s.cfg, session.StartTime, session.EndTime, intervals(session.PausePeriods), now)

	label := statusRunning
	if session.Status == models.StatusPaused {
		label = statusPaused
	}

	if figures.NetSeconds >= s.cfg.MaxDailySeconds() {
		err := s.db.Transaction(func(tx *gorm.DB) error {
			return s.finish(tx, state, session, now)
		})
		if err != nil {
			return StatusSnapshot{}, err
		}
		s.log.Info().Uint("session_id", session.ID).
			Int("net_seconds", figures.NetSeconds).
			Msg("daily maximum reached, session auto-stopped")
		label = statusCompleted
		figures = accounting.Compute(s.cfg, session.StartTime, &now, intervals(session.PausePeriods), now)
	}

	return s.snapshot(label, session, figures, now), nil
}

func (s *Service) snapshot(label string, session *models.WorkSession, f accounting.Figures, now time.Time) StatusSnapshot {
	info := &SessionInfo{
		ID:                session.ID,
		StartTime:         session.StartTime,
		CurrentTime:       now,
		NetWorkSeconds:    f.NetSeconds,
		NetWorkFormatted:  accounting.FormatDuration(f.NetSeconds),
		PauseCount:        len(session.PausePeriods),
		TotalPauseSeconds: f.PauseSeconds,
	}

	calc := &Calculations{
		LunchBreakApplies: f.LunchApplies,
		EarliestLeave:     accounting.FormatClock(f.EarliestLeave),
		NormalLeave:       accounting.FormatClock(f.NormalLeave),
		LatestLeave:       accounting.FormatClock(f.LatestLeave),
		RemainingForDaily: accounting.FormatDuration(f.RemainingSeconds),
		OvertimeSeconds:   f.OvertimeSeconds,
		OvertimeFormatted: accounting.FormatDuration(f.OvertimeSeconds),
	}
	if !f.LunchApplies {
		at := accounting.FormatClock(f.LunchBreakAt)
		calc.LunchBreakAt = &at
	}

	return StatusSnapshot{Status: label, Session: info, Calculations: calc}
}

// UpdateSessionRequest carries the editable bounds of a completed session.
// Nil fields keep the stored value.
type UpdateSessionRequest struct {
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}

// UpdateSession edits the bounds of a completed session and recomputes its
// persisted net seconds. The current session cannot be edited, and every
// recorded pause must stay fully contained in the new bounds.
func (s *Service) UpdateSession(id uint, req UpdateSessionRequest) (*models.WorkSession, error) {
	var updated models.WorkSession

	err := s.db.Transaction(func(tx *gorm.DB) error {
		state, err := s.loadState(tx)
		if err != nil {
			return err
		}
		if state.CurrentSessionID != nil && *state.CurrentSessionID == id {
			return fmt.Errorf("%w: session %d is currently active", ErrConflict, id)
		}

		var session models.WorkSession
		if err := tx.Preload("PausePeriods", orderedPauses).First(&session, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: session %d", ErrNotFound, id)
			}
			return err
		}
		if session.Status != models.StatusCompleted || session.EndTime == nil {
			return fmt.Errorf("%w: only completed sessions can be edited", ErrInvalidState)
		}

		start := session.StartTime
		end := *session.EndTime
		if req.StartTime != nil {
			start = *req.StartTime
		}
		if req.EndTime != nil {
			end = *req.EndTime
		}
		if !start.Before(end) {
			return fmt.Errorf("%w: start_time must be before end_time", ErrValidation)
		}
		for _, p := range session.PausePeriods {
			if p.PauseEnd == nil {
				return fmt.Errorf("%w: session %d has an open pause", ErrValidation, id)
			}
			if p.PauseStart.Before(start) || p.PauseEnd.After(end) || !p.PauseStart.Before(end) {
				return fmt.Errorf("%w: pause %s-%s would fall outside the session bounds",
					ErrValidation,
					accounting.FormatClock(p.PauseStart),
					accounting.FormatClock(*p.PauseEnd))
			}
		}

		net := accounting.NetWorkSeconds(s.cfg, start, &end, intervals(session.PausePeriods), end)
		if err := tx.Model(&session).Updates(map[string]interface{}{
			"date":        dayOf(start),
			"start_time":  start,
			"end_time":    end,
			"net_seconds": net,
		}).Error; err != nil {
			return err
		}

		updated = session
		updated.Date = dayOf(start)
		updated.StartTime = start
		updated.EndTime = &end
		updated.NetSeconds = &net
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Uint("session_id", id).Msg("session bounds updated")
	return &updated, nil
}

// DeleteSession removes a non-current session and its pauses.
func (s *Service) DeleteSession(id uint) (ActionResult, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		state, err := s.loadState(tx)
		if err != nil {
			return err
		}
		if state.CurrentSessionID != nil && *state.CurrentSessionID == id {
			return fmt.Errorf("%w: cannot delete the currently active session", ErrConflict)
		}

		var session models.WorkSession
		if err := tx.First(&session, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: session %d", ErrNotFound, id)
			}
			return err
		}

		if err := tx.Where("session_id = ?", id).Delete(&models.PausePeriod{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.WorkSession{}, id).Error
	})
	if err != nil {
		return ActionResult{}, err
	}

	s.log.Info().Uint("session_id", id).Msg("session deleted")
	return ActionResult{Success: true, Message: "Session deleted", Status: s.currentLabel()}, nil
}

// finish is the shared stop path: closes an open pause, persists the capped
// net seconds and end time, releases the singleton. Runs inside the
// caller's transaction.
func (s *Service) finish(tx *gorm.DB, state *models.TimerState, session *models.WorkSession, now time.Time) error {
	if open := session.OpenPause(); open != nil {
		if err := tx.Model(&models.PausePeriod{}).
			Where("id = ?", open.ID).
			Update("pause_end", now).Error; err != nil {
			return err
		}
		open.PauseEnd = &now
	}

	net := accounting.NetWorkSeconds(s.cfg, session.StartTime, &now, intervals(session.PausePeriods), now)
	if err := tx.Model(session).Updates(map[string]interface{}{
		"end_time":    now,
		"net_seconds": net,
		"status":      models.StatusCompleted,
	}).Error; err != nil {
		return err
	}

	if err := tx.Model(&models.TimerState{}).
		Where("id = ?", state.ID).
		Update("current_session_id", nil).Error; err != nil {
		return err
	}

	session.EndTime = &now
	session.NetSeconds = &net
	session.Status = models.StatusCompleted
	return nil
}

// loadState fetches the singleton, creating it on first use.
func (s *Service) loadState(tx *gorm.DB) (*models.TimerState, error) {
	state := models.TimerState{ID: models.TimerStateID}
	if err := tx.FirstOrCreate(&state).Error; err != nil {
		return nil, fmt.Errorf("load timer state: %w", err)
	}
	return &state, nil
}

// current loads the singleton plus the session it points at, with ordered
// pauses. A dangling reference is treated as idle.
func (s *Service) current(tx *gorm.DB) (*models.TimerState, *models.WorkSession, error) {
	state, err := s.loadState(tx)
	if err != nil {
		return nil, nil, err
	}
	if state.CurrentSessionID == nil {
		return state, nil, nil
	}

	var session models.WorkSession
	err = tx.Preload("PausePeriods", orderedPauses).First(&session, *state.CurrentSessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return state, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return state, &session, nil
}

// currentLabel reports the timer status as a plain label, for responses
// that only need the word.
func (s *Service) currentLabel() string {
	_, session, err := s.current(s.db)
	if err != nil || session == nil {
		return statusIdle
	}
	if session.Status == models.StatusPaused {
		return statusPaused
	}
	return statusRunning
}

func orderedPauses(db *gorm.DB) *gorm.DB {
	return db.Order("pause_start ASC")
}

func intervals(pauses []models.PausePeriod) []accounting.Interval {
	out := make([]accounting.Interval, 0, len(pauses))
	for _, p := range pauses {
		out = append(out, accounting.Interval{Start: p.PauseStart, End: p.PauseEnd})
	}
	return out
}

// dayOf truncates a timestamp to its local calendar day.
func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
