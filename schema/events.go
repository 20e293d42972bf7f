package schema

import "time"

// StateEvent reports a session state transition.
type StateEvent struct {
	SessionID SessionID    `json:"session_id"`
	State     SessionState `json:"state"`
	Previous  SessionState `json:"previous"`
	Width     int          `json:"width"`
	Height    int          `json:"height"`
	// Error is set when the transition was caused by a failed ingestion.
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
