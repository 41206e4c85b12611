// Package performance provides request timing markers and per-operation
// aggregates for the campaigns API.
package performance

import "time"

// Marker represents a single performance measurement for an operation
type Marker struct {
	Operation string        `json:"operation"`       // e.g., "campaigns:evaluate"
	ClientID  string        `json:"clientId"`        // Reader the operation ran for, if any
	StartTime time.Time     `json:"startTime"`       // When the operation started
	Duration  time.Duration `json:"duration"`        // Total operation duration
	Success   bool          `json:"success"`         // Whether the operation completed successfully
	Error     string        `json:"error,omitempty"` // Error message if operation failed
	Completed bool          `json:"completed"`       // Whether Complete() has been called

	tracker *Tracker
}

// Complete marks the operation as finished and reports it to its tracker
func (m *Marker) Complete() {
	if m == nil || m.Completed {
		return
	}
	m.Duration = time.Since(m.StartTime)
	m.Completed = true
	if m.tracker != nil {
		m.tracker.record(m)
	}
}

// SetSuccess marks the operation as successful or failed
func (m *Marker) SetSuccess(success bool) {
	m.Success = success
}

// SetError sets an error message and marks the operation as failed
func (m *Marker) SetError(err error) {
	if err != nil {
		m.Error = err.Error()
		m.Success = false
	}
}
