package relay

import (
	"time"

	"github.com/gorilla/websocket"
)

// Framing tells whether a packet travelled as a text or a binary frame.
type Framing uint8

const (
	FramingText Framing = iota + 1
	FramingBinary
)

// FramingFromMessageType maps a gorilla message type onto a Framing.
// Control opcodes are not packets and report false.
func FramingFromMessageType(messageType int) (Framing, bool) {
	switch messageType {
	case websocket.TextMessage:
		return FramingText, true
	case websocket.BinaryMessage:
		return FramingBinary, true
	default:
		return 0, false
	}
}

// MessageType returns the websocket opcode used to write a packet with this framing.
func (f Framing) MessageType() int {
	if f == FramingBinary {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

func (f Framing) String() string {
	switch f {
	case FramingText:
		return "text"
	case FramingBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Packet is one application message. The relay never looks inside Data.
type Packet struct {
	Framing    Framing
	Data       []byte
	ReceivedAt time.Time
}

// NewPacket builds a packet stamped with the given receive time.
func NewPacket(framing Framing, data []byte, receivedAt time.Time) Packet {
	return Packet{Framing: framing, Data: data, ReceivedAt: receivedAt}
}

// Clone returns a copy whose payload does not alias p's.
func (p Packet) Clone() Packet {
	out := p
	if p.Data != nil {
		out.Data = make([]byte, len(p.Data))
		copy(out.Data, p.Data)
	}
	return out
}
