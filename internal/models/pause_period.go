package models

import "time"

// PausePeriod is one pause interval within a WorkSession. A nil PauseEnd
// means the pause is still open; at most one open pause may exist per
// session, and only while the session is paused.
type PausePeriod struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	SessionID  uint       `gorm:"index;not null" json:"session_id"`
	PauseStart time.Time  `gorm:"not null" json:"pause_start"`
	PauseEnd   *time.Time `json:"pause_end"`
}
