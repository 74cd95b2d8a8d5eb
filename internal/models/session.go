package models

import "time"

// WorkSession is one work day's tracked session.
// NetSeconds is persisted only once the session is completed; live values
// are always recomputed from StartTime and the pause periods.
type WorkSession struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Date       time.Time  `gorm:"index;not null" json:"date"`
	StartTime  time.Time  `gorm:"not null" json:"start_time"`
	EndTime    *time.Time `json:"end_time"`
	NetSeconds *int       `json:"net_seconds"`
	Status     Status     `gorm:"size:20;index;not null" json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	PausePeriods []PausePeriod `gorm:"constraint:OnDelete:CASCADE" json:"pause_periods"`
}

// OpenPause returns the currently open pause period, if any.
func (s *WorkSession) OpenPause() *PausePeriod {
	for i := range s.PausePeriods {
		if s.PausePeriods[i].PauseEnd == nil {
			return &s.PausePeriods[i]
		}
	}
	return nil
}
