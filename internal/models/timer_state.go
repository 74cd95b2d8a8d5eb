package models

// TimerStateID is the fixed primary key of the singleton row.
const TimerStateID = 1

// TimerState is the persisted singleton pointing at the current session.
// It survives restarts; CurrentSessionID is nil exactly when the timer is
// idle. The reference is non-owning: deleting the state never deletes a
// session.
type TimerState struct {
	ID               uint  `gorm:"primaryKey" json:"id"`
	CurrentSessionID *uint `json:"current_session_id"`
}

// TableName keeps the singular table name used since the first schema.
func (TimerState) TableName() string { return "timer_state" }
