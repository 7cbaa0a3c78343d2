package gamenet

import "fmt"

// State is the connection lifecycle position.
type State int32

const (
	// StateDisconnected means no session exists.
	StateDisconnected State = iota
	// StateConnecting means the handshake was sent and no reply arrived yet.
	StateConnecting
	// StateHandshaken means keys were exchanged; login is pending on the
	// central path.
	StateHandshaken
	// StateAuthenticated means the central server accepted the login.
	StateAuthenticated
	// StateStandalone means a standalone server session is ready.
	StateStandalone
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateHandshaken:
		return "handshaken"
	case StateAuthenticated:
		return "authenticated"
	case StateStandalone:
		return "standalone"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Connected reports whether a session exists in any form.
func (s State) Connected() bool {
	return s != StateDisconnected
}

// Handshaken reports whether the key exchange has completed.
func (s State) Handshaken() bool {
	return s >= StateHandshaken
}

// Established reports whether game traffic may flow.
func (s State) Established() bool {
	return s == StateAuthenticated || s == StateStandalone
}
