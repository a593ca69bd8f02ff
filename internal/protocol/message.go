package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/muurk/photorelay/internal/relayerr"
)

// Greeting is sent as a plain text frame (not JSON) when a session opens
const Greeting = "Hello"

// Message types
const (
	// TypeUploadImage is a client upload with the image inline (inline mode)
	TypeUploadImage = "UPIMG"
	// TypeImageUploaded acknowledges an upload with the new id or file name
	TypeImageUploaded = "IMGUP"
	// TypeDownloadImage requests an image by id (inline) or file name (disk)
	TypeDownloadImage = "DOWNIMG"
	// TypeImageDownloaded carries the requested image (inline mode only)
	TypeImageDownloaded = "IMGDOWN"
	// TypeError reports a failed request
	TypeError = "ERROR"
)

// Message is the JSON envelope of every control message
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecodeMessage parses a text frame payload.
// Malformed JSON and a missing type are protocol errors.
func DecodeMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, relayerr.NewProtocolError("malformed message", err)
	}
	if msg.Type == "" {
		return nil, relayerr.NewProtocolError("message has no type", nil)
	}
	return &msg, nil
}

// EncodeMessage builds a text frame holding {"type": typ, "payload": payload}
func EncodeMessage(typ string, payload any) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to marshal %s payload: %w", typ, err)
	}
	data, err := json.Marshal(Message{Type: typ, Payload: raw})
	if err != nil {
		return Frame{}, fmt.Errorf("failed to marshal %s message: %w", typ, err)
	}
	return Text(data), nil
}

// ErrorReply builds the explicit error frame sent for a failed request.
// Only the kind and message of a relay error reach the client.
func ErrorReply(err error) Frame {
	message := "Internal Error"
	var relayErr *relayerr.Error
	if errors.As(err, &relayErr) {
		message = relayErr.Summary()
	}

	frame, encErr := EncodeMessage(TypeError, message)
	if encErr != nil {
		// a string payload always marshals
		return Text([]byte(`{"type":"ERROR"}`))
	}
	return frame
}

// StringPayload returns the payload as a JSON string
func (m *Message) StringPayload() (string, error) {
	var s string
	if err := json.Unmarshal(m.Payload, &s); err != nil {
		return "", relayerr.NewProtocolError(fmt.Sprintf("%s payload must be a string", m.Type), err)
	}
	return s, nil
}

// IntPayload returns the payload as an integer. Numeric strings such as "3"
// are accepted as well.
func (m *Message) IntPayload() (int, error) {
	raw := bytes.TrimSpace(m.Payload)

	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		if id, err := strconv.Atoi(n.String()); err == nil {
			return id, nil
		}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if id, err := strconv.Atoi(s); err == nil {
			return id, nil
		}
	}

	return 0, relayerr.NewProtocolError(fmt.Sprintf("%s payload must be an integer id", m.Type), nil)
}
