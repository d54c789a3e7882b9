package relay

import "errors"

var (
	ErrNotOpen        = errors.New("connection is not open")
	ErrSendBufferFull = errors.New("send buffer full")
	ErrManagerStopped = errors.New("manager stopped")
)

// Conn is the relay's view of one client link. Send and Ping only submit
// work; they must not wait for the frame to reach the network.
type Conn interface {
	ID() string
	Ready() bool
	Send(p Packet) error
	Ping() error
}

// State is the readiness of a connection's transport.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
