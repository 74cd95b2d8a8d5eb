package timer

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dadav/ticktick/internal/accounting"
	"github.com/dadav/ticktick/internal/models"
)

var testConfig = accounting.Config{
	WeeklyHours:          41,
	MaxDailyHours:        10,
	LunchThresholdHours:  6,
	LunchDurationMinutes: 30,
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *fakeClock) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.WorkSession{},
		&models.PausePeriod{},
		&models.TimerState{},
	))

	clock := &fakeClock{t: time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local)}
	svc := New(db, testConfig, zerolog.Nop())
	svc.now = clock.Now
	return svc, db, clock
}

func sessionCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.WorkSession{}).Count(&n).Error)
	return n
}

func pauseCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.PausePeriod{}).Count(&n).Error)
	return n
}

func loadSingleton(t *testing.T, db *gorm.DB) models.TimerState {
	t.Helper()
	var state models.TimerState
	require.NoError(t, db.First(&state, models.TimerStateID).Error)
	return state
}

func TestStartCreatesRunningSession(t *testing.T) {
	svc, db, _ := newTestService(t)

	result, err := svc.Start()
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "running", result.Status)

	state := loadSingleton(t, db)
	require.NotNil(t, state.CurrentSessionID)

	var session models.WorkSession
	require.NoError(t, db.First(&session, *state.CurrentSessionID).Error)
	assert.Equal(t, models.StatusRunning, session.Status)
	assert.Nil(t, session.EndTime)
}

func TestStartWhileRunningIsRejected(t *testing.T) {
	svc, db, _ := newTestService(t)

	_, err := svc.Start()
	require.NoError(t, err)

	result, err := svc.Start()
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Timer already running", result.Message)
	assert.Equal(t, "running", result.Status)
	assert.EqualValues(t, 1, sessionCount(t, db))
}

func TestConcurrentStartLeavesExactlyOneSession(t *testing.T) {
	svc, db, _ := newTestService(t)

	// Seed the singleton so both goroutines observe an idle timer.
	_, err := svc.loadState(svc.db)
	require.NoError(t, err)

	results := make([]ActionResult, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Start()
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	wins := 0
	for _, r := range results {
		if r.Success {
			wins++
		} else {
			assert.Equal(t, "Timer already running", r.Message)
		}
	}
	assert.Equal(t, 1, wins, "exactly one start must win the race")

	// The loser's speculative row must not survive.
	assert.EqualValues(t, 1, sessionCount(t, db))

	state := loadSingleton(t, db)
	require.NotNil(t, state.CurrentSessionID)
}

func TestPauseWhileIdleFails(t *testing.T) {
	svc, db, _ := newTestService(t)

	result, err := svc.Pause()
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "No active session", result.Message)
	assert.Equal(t, "idle", result.Status)
	assert.EqualValues(t, 0, sessionCount(t, db))
}

func TestPauseAndContinue(t *testing.T) {
	svc, db, clock := newTestService(t)

	_, err := svc.Start()
	require.NoError(t, err)

	clock.Advance(time.Hour)
	result, err := svc.Pause()
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "paused", result.Status)

	var open models.PausePeriod
	require.NoError(t, db.Where("pause_end IS NULL").First(&open).Error)

	again, err := svc.Pause()
	require.NoError(t, err)
	assert.False(t, again.Success)
	assert.Equal(t, "Timer already paused", again.Message)

	clock.Advance(15 * time.Minute)
	resumed, err := svc.Continue()
	require.NoError(t, err)
	assert.True(t, resumed.Success)
	assert.Equal(t, "running", resumed.Status)

	var closed models.PausePeriod
	require.NoError(t, db.First(&closed, open.ID).Error)
	require.NotNil(t, closed.PauseEnd)
	assert.Equal(t, 15*time.Minute, closed.PauseEnd.Sub(closed.PauseStart))

	notPaused, err := svc.Continue()
	require.NoError(t, err)
	assert.False(t, notPaused.Success)
	assert.Equal(t, "Timer not paused", notPaused.Message)
}

func TestContinueWhileIdleFails(t *testing.T) {
	svc, _, _ := newTestService(t)

	result, err := svc.Continue()
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "idle", result.Status)
}

func TestStopClosesOpenPauseBeforeComputingNet(t *testing.T) {
	svc, db, clock := newTestService(t)

	_, err := svc.Start()
	require.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = svc.Pause()
	require.NoError(t, err)

	clock.Advance(time.Hour)
	result, err := svc.Stop()
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "idle", result.Status)

	var session models.WorkSession
	require.NoError(t, db.Preload("PausePeriods").First(&session).Error)
	assert.Equal(t, models.StatusCompleted, session.Status)
	require.NotNil(t, session.EndTime)
	require.Len(t, session.PausePeriods, 1)
	require.NotNil(t, session.PausePeriods[0].PauseEnd)
	assert.Equal(t, *session.EndTime, *session.PausePeriods[0].PauseEnd)

	// 2h elapsed minus the 1h pause that ran until stop.
	require.NotNil(t, session.NetSeconds)
	assert.Equal(t, 3600, *session.NetSeconds)

	state := loadSingleton(t, db)
	assert.Nil(t, state.CurrentSessionID)
}

func TestStopWhileIdleFails(t *testing.T) {
	svc, _, _ := newTestService(t)

	result, err := svc.Stop()
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "No active session", result.Message)
}

func TestResetDiscardsSessionAndPauses(t *testing.T) {
	svc, db, clock := newTestService(t)

	_, err := svc.Start()
	require.NoError(t, err)
	clock.Advance(time.Hour)
	_, err = svc.Pause()
	require.NoError(t, err)

	result, err := svc.Reset()
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "idle", result.Status)

	assert.EqualValues(t, 0, sessionCount(t, db))
	assert.EqualValues(t, 0, pauseCount(t, db))
	assert.Nil(t, loadSingleton(t, db).CurrentSessionID)
}

func TestResetWhileIdleFails(t *testing.T) {
	svc, _, _ := newTestService(t)

	result, err := svc.Reset()
	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestStatusIdle(t *testing.T) {
	svc, _, _ := newTestService(t)

	snapshot, err := svc.Status()
	require.NoError(t, err)
	assert.Equal(t, "idle", snapshot.Status)
	assert.Nil(t, snapshot.Session)
	assert.Nil(t, snapshot.Calculations)
}

func TestStatusComputesLiveFigures(t *testing.T) {
	svc, _, clock := newTestService(t)

	_, err := svc.Start()
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	snapshot, err := svc.Status()
	require.NoError(t, err)
	assert.Equal(t, "running", snapshot.Status)
	require.NotNil(t, snapshot.Session)
	assert.Equal(t, 7200, snapshot.Session.NetWorkSeconds)
	assert.Equal(t, "02:00:00", snapshot.Session.NetWorkFormatted)
	assert.Equal(t, 0, snapshot.Session.TotalPauseSeconds)

	require.NotNil(t, snapshot.Calculations)
	assert.False(t, snapshot.Calculations.LunchBreakApplies)
	require.NotNil(t, snapshot.Calculations.LunchBreakAt)
	assert.Equal(t, "15:00", *snapshot.Calculations.LunchBreakAt)
	// 09:00 + 8h12m + 30m lunch.
	assert.Equal(t, "17:42", snapshot.Calculations.EarliestLeave)
	assert.Equal(t, snapshot.Calculations.EarliestLeave, snapshot.Calculations.NormalLeave)
	// 09:00 + 10h + 30m lunch.
	assert.Equal(t, "19:30", snapshot.Calculations.LatestLeave)
	assert.Equal(t, 7200-testConfig.RequiredDailySeconds(), snapshot.Calculations.OvertimeSeconds)

	// Values are live, not cached: another hour moves the figures.
	clock.Advance(time.Hour)
	later, err := svc.Status()
	require.NoError(t, err)
	assert.Equal(t, 10800, later.Session.NetWorkSeconds)
}

func TestStatusPausedUsesOpenPauseLive(t *testing.T) {
	svc, _, clock := newTestService(t)

	_, err := svc.Start()
	require.NoError(t, err)
	clock.Advance(time.Hour)
	_, err = svc.Pause()
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	snapshot, err := svc.Status()
	require.NoError(t, err)
	assert.Equal(t, "paused", snapshot.Status)
	assert.Equal(t, 1800, snapshot.Session.TotalPauseSeconds)
	assert.Equal(t, 3600, snapshot.Session.NetWorkSeconds)
}

func TestAutoStopAtDailyCap(t *testing.T) {
	svc, db, clock := newTestService(t)

	_, err := svc.Start()
	require.NoError(t, err)

	// 11h elapsed: net = 11h - 30m lunch = 10.5h, above the 10h cap.
	clock.Advance(11 * time.Hour)
	snapshot, err := svc.Status()
	require.NoError(t, err)
	assert.Equal(t, "completed", snapshot.Status)
	require.NotNil(t, snapshot.Session)
	assert.Equal(t, testConfig.MaxDailySeconds(), snapshot.Session.NetWorkSeconds)

	var session models.WorkSession
	require.NoError(t, db.First(&session).Error)
	assert.Equal(t, models.StatusCompleted, session.Status)
	require.NotNil(t, session.EndTime)
	require.NotNil(t, session.NetSeconds)
	assert.Equal(t, testConfig.MaxDailySeconds(), *session.NetSeconds)

	assert.Nil(t, loadSingleton(t, db).CurrentSessionID)

	later, err := svc.Status()
	require.NoError(t, err)
	assert.Equal(t, "idle", later.Status)
}

// completeSession drives a full 09:00-17:00 day with one 15m pause at 10:00
// through the state machine and returns the persisted row.
func completeSession(t *testing.T, svc *Service, db *gorm.DB, clock *fakeClock) models.WorkSession {
	t.Helper()

	_, err := svc.Start()
	require.NoError(t, err)
	clock.Advance(time.Hour)
	_, err = svc.Pause()
	require.NoError(t, err)
	clock.Advance(15 * time.Minute)
	_, err = svc.Continue()
	require.NoError(t, err)
	clock.Advance(6*time.Hour + 45*time.Minute)
	_, err = svc.Stop()
	require.NoError(t, err)

	var session models.WorkSession
	require.NoError(t, db.Preload("PausePeriods").Order("id DESC").First(&session).Error)
	return session
}

func TestUpdateSessionRecomputesNet(t *testing.T) {
	svc, db, clock := newTestService(t)
	session := completeSession(t, svc, db, clock)

	// Sanity: 8h minus 15m pause minus 30m lunch.
	require.NotNil(t, session.NetSeconds)
	require.Equal(t, 26100, *session.NetSeconds)

	newStart := session.StartTime.Add(-time.Hour)
	updated, err := svc.UpdateSession(session.ID, UpdateSessionRequest{StartTime: &newStart})
	require.NoError(t, err)

	// 9h minus 15m pause minus 30m lunch.
	require.NotNil(t, updated.NetSeconds)
	assert.Equal(t, 29700, *updated.NetSeconds)
	assert.Equal(t, newStart, updated.StartTime)

	var stored models.WorkSession
	require.NoError(t, db.First(&stored, session.ID).Error)
	assert.Equal(t, 29700, *stored.NetSeconds)
}

func TestUpdateSessionRejectsBoundsCrossingPauses(t *testing.T) {
	svc, db, clock := newTestService(t)
	session := completeSession(t, svc, db, clock)

	// New end before the recorded 10:00 pause.
	badEnd := session.StartTime.Add(30 * time.Minute)
	_, err := svc.UpdateSession(session.ID, UpdateSessionRequest{EndTime: &badEnd})
	require.ErrorIs(t, err, ErrValidation)

	// Unchanged on failure.
	var stored models.WorkSession
	require.NoError(t, db.First(&stored, session.ID).Error)
	assert.Equal(t, 26100, *stored.NetSeconds)
}

func TestUpdateSessionRejectsInvertedBounds(t *testing.T) {
	svc, db, clock := newTestService(t)
	session := completeSession(t, svc, db, clock)

	badStart := session.EndTime.Add(time.Minute)
	_, err := svc.UpdateSession(session.ID, UpdateSessionRequest{StartTime: &badStart})
	require.ErrorIs(t, err, ErrValidation)
}

func TestUpdateSessionRejectsActiveSession(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Start()
	require.NoError(t, err)
	state, err := svc.loadState(svc.db)
	require.NoError(t, err)
	require.NotNil(t, state.CurrentSessionID)

	newStart := time.Now().Add(-time.Hour)
	_, err = svc.UpdateSession(*state.CurrentSessionID, UpdateSessionRequest{StartTime: &newStart})
	require.ErrorIs(t, err, ErrConflict)
}

func TestUpdateSessionUnknownID(t *testing.T) {
	svc, _, _ := newTestService(t)

	end := time.Now()
	_, err := svc.UpdateSession(999, UpdateSessionRequest{EndTime: &end})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteSessionRemovesRowAndPauses(t *testing.T) {
	svc, db, clock := newTestService(t)
	session := completeSession(t, svc, db, clock)
	require.EqualValues(t, 1, pauseCount(t, db))

	// A second session is running while we delete the first.
	clock.Advance(16 * time.Hour)
	_, err := svc.Start()
	require.NoError(t, err)

	result, err := svc.DeleteSession(session.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "running", result.Status)

	assert.EqualValues(t, 1, sessionCount(t, db))
	assert.EqualValues(t, 0, pauseCount(t, db))
}

func TestDeleteCurrentSessionIsConflict(t *testing.T) {
	svc, db, _ := newTestService(t)

	_, err := svc.Start()
	require.NoError(t, err)
	state := loadSingleton(t, db)
	require.NotNil(t, state.CurrentSessionID)

	_, err = svc.DeleteSession(*state.CurrentSessionID)
	require.ErrorIs(t, err, ErrConflict)
	assert.EqualValues(t, 1, sessionCount(t, db))
}

func TestDeleteSessionUnknownID(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.DeleteSession(42)
	require.ErrorIs(t, err, ErrNotFound)
}
