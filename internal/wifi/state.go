package wifi

import "fmt"

// ConnectionState is the state of the connection state machine.
type ConnectionState int32

const (
	StateIdle ConnectionState = iota
	StateStarting
	StateConnecting
	StateConnected
	StateDisconnected
)

// String returns the lowercase state name used in logs.
func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("ConnectionState(%d)", int32(s))
	}
}
