package lifecycle

import "time"

// State is the derived run state; it is computed on demand from the PID
// record and process liveness, never stored.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// Status is the read-only view reported to the operator.
type Status struct {
	State       State     `json:"state"`
	PID         int       `json:"pid,omitempty"`
	Endpoint    string    `json:"endpoint,omitempty"`
	LogPath     string    `json:"log_path"`
	LastEvent   string    `json:"last_event,omitempty"`
	LastEventAt time.Time `json:"last_event_at,omitzero"`
}
