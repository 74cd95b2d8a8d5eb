package models

// Status is the lifecycle state of a WorkSession. The set is closed:
// a discarded session is deleted, not given a status.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// Active reports whether the session still owns the timer.
func (s Status) Active() bool {
	return s == StatusRunning || s == StatusPaused
}

func (s Status) CanPause() bool  { return s == StatusRunning }
func (s Status) CanResume() bool { return s == StatusPaused }
func (s Status) CanStop() bool   { return s.Active() }

func (s Status) String() string { return string(s) }
