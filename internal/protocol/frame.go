package protocol

import (
	"fmt"

	"github.com/gorilla/websocket"
)

// FrameKind tags a frame as text or binary. The tag comes from the transport
// and decides how the payload is interpreted: binary payloads are never
// parsed as JSON.
type FrameKind int

const (
	// KindText is a UTF-8 text frame carrying a JSON control message
	KindText FrameKind = iota + 1
	// KindBinary is a binary frame carrying raw image bytes
	KindBinary
)

// String returns a human-readable frame kind name
func (k FrameKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBinary:
		return "binary"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// MessageType returns the gorilla/websocket message type for the kind
func (k FrameKind) MessageType() int {
	if k == KindBinary {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// KindFromMessageType maps a gorilla/websocket data message type to a frame kind.
// ok is false for control and unknown message types.
func KindFromMessageType(messageType int) (kind FrameKind, ok bool) {
	switch messageType {
	case websocket.TextMessage:
		return KindText, true
	case websocket.BinaryMessage:
		return KindBinary, true
	default:
		return 0, false
	}
}

// Frame is one complete WebSocket message
type Frame struct {
	Kind    FrameKind
	Payload []byte
}

// Text creates a text frame
func Text(payload []byte) Frame {
	return Frame{Kind: KindText, Payload: payload}
}

// Binary creates a binary frame
func Binary(payload []byte) Frame {
	return Frame{Kind: KindBinary, Payload: payload}
}

// String returns a debug representation of the frame
func (f Frame) String() string {
	return fmt.Sprintf("Frame{Kind=%s, Length=%d}", f.Kind, len(f.Payload))
}
