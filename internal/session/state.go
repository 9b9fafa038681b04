// internal/session/state.go
package session

import "errors"

// State is the connection lifecycle state of a Manager.
type State int

const (
	Idle State = iota
	Connecting
	Open
	Closing
	Reconnecting
	Stopped
)

var stateNames = [...]string{"idle", "connecting", "open", "closing", "reconnecting", "stopped"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ErrInvalidTransition is returned when Start or Stop is called from a
// state that does not allow it.
var ErrInvalidTransition = errors.New("session: invalid state transition")
