package protocol

import (
	"context"
	"fmt"
	"strings"

	"github.com/muurk/photorelay/internal/logging"
	"github.com/muurk/photorelay/internal/relayerr"
	"go.uber.org/zap"
)

// Mode selects how the dispatcher treats uploads
type Mode string

const (
	// ModeInline stores images sent inline in UPIMG messages in memory
	ModeInline Mode = "inline"
	// ModeDisk stores binary frames as files
	ModeDisk Mode = "disk"
	// ModeLog only logs inbound frames
	ModeLog Mode = "log"
)

// Modes lists every supported mode
var Modes = []Mode{ModeInline, ModeDisk, ModeLog}

// ParseMode validates a mode name
func ParseMode(s string) (Mode, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, m := range Modes {
		if m == mode {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q (expected inline, disk or log)", s)
}

// MemoryImages is the store used in inline mode
type MemoryImages interface {
	Put(ctx context.Context, data []byte) (int, error)
	Get(ctx context.Context, id int) ([]byte, error)
}

// DiskImages is the store used in disk mode
type DiskImages interface {
	Put(ctx context.Context, data []byte) (string, error)
	GetByName(ctx context.Context, name string) ([]byte, error)
}

// Dispatcher routes inbound frames to the handler for the configured mode.
// It is shared by all sessions and holds no per-session state.
type Dispatcher struct {
	mode   Mode
	memory MemoryImages
	disk   DiskImages
}

// NewInlineDispatcher creates a dispatcher for inline uploads
func NewInlineDispatcher(store MemoryImages) *Dispatcher {
	return &Dispatcher{mode: ModeInline, memory: store}
}

// NewDiskDispatcher creates a dispatcher that persists binary frames
func NewDiskDispatcher(store DiskImages) *Dispatcher {
	return &Dispatcher{mode: ModeDisk, disk: store}
}

// NewLogDispatcher creates a dispatcher that only logs
func NewLogDispatcher() *Dispatcher {
	return &Dispatcher{mode: ModeLog}
}

// Mode returns the dispatcher's mode
func (d *Dispatcher) Mode() Mode {
	return d.mode
}

// Dispatch handles one inbound frame and returns the reply, if any.
// A nil reply with a nil error means the frame was accepted silently.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID string, frame Frame) (*Frame, error) {
	if d.mode == ModeLog {
		logging.Info("New message",
			zap.String("session_id", sessionID),
			zap.String("frame_type", frame.Kind.String()),
			zap.ByteString("content", frame.Payload),
		)
		return nil, nil
	}

	switch frame.Kind {
	case KindText:
		return d.handleText(ctx, sessionID, frame.Payload)
	case KindBinary:
		return d.handleBinary(ctx, sessionID, frame.Payload)
	default:
		return nil, relayerr.NewProtocolError(fmt.Sprintf("unsupported frame kind %s", frame.Kind), nil)
	}
}

func (d *Dispatcher) handleText(ctx context.Context, sessionID string, data []byte) (*Frame, error) {
	msg, err := DecodeMessage(data)
	if err != nil {
		return nil, err
	}

	if msg.Type == TypeUploadImage {
		logging.Info("New image message",
			zap.String("session_id", sessionID),
			zap.Int("length", payloadLength(msg)),
		)
	} else {
		logging.Info("New message",
			zap.String("session_id", sessionID),
			zap.ByteString("content", data),
		)
	}

	switch {
	case d.mode == ModeInline && msg.Type == TypeUploadImage:
		return d.uploadInline(ctx, sessionID, msg)
	case d.mode == ModeInline && msg.Type == TypeDownloadImage:
		return d.downloadInline(ctx, sessionID, msg)
	case d.mode == ModeDisk && msg.Type == TypeDownloadImage:
		return d.downloadFile(ctx, sessionID, msg)
	default:
		logging.Debug("Ignoring message type",
			zap.String("session_id", sessionID),
			zap.String("type", msg.Type),
			zap.String("mode", string(d.mode)),
		)
		return nil, nil
	}
}

func (d *Dispatcher) handleBinary(ctx context.Context, sessionID string, data []byte) (*Frame, error) {
	if d.mode != ModeDisk {
		logging.Info("Ignoring binary frame",
			zap.String("session_id", sessionID),
			zap.Int("bytes", len(data)),
			zap.String("mode", string(d.mode)),
		)
		return nil, nil
	}

	logging.Info("New binary image",
		zap.String("session_id", sessionID),
		zap.Int("bytes", len(data)),
	)

	name, err := d.disk.Put(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to store binary upload: %w", err)
	}

	logging.Info("Image uploaded",
		zap.String("session_id", sessionID),
		zap.String("name", name),
	)
	return reply(TypeImageUploaded, name)
}

func (d *Dispatcher) uploadInline(ctx context.Context, sessionID string, msg *Message) (*Frame, error) {
	payload, err := msg.StringPayload()
	if err != nil {
		return nil, err
	}

	id, err := d.memory.Put(ctx, []byte(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to store inline upload: %w", err)
	}

	logging.Info("Image uploaded",
		zap.String("session_id", sessionID),
		zap.Int("image_id", id),
	)
	return reply(TypeImageUploaded, id)
}

func (d *Dispatcher) downloadInline(ctx context.Context, sessionID string, msg *Message) (*Frame, error) {
	id, err := msg.IntPayload()
	if err != nil {
		return nil, err
	}

	data, err := d.memory.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	logging.Info("Image downloaded",
		zap.String("session_id", sessionID),
		zap.Int("image_id", id),
	)
	return reply(TypeImageDownloaded, string(data))
}

func (d *Dispatcher) downloadFile(ctx context.Context, sessionID string, msg *Message) (*Frame, error) {
	name, err := msg.StringPayload()
	if err != nil {
		return nil, err
	}

	data, err := d.disk.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	logging.Info("Image downloaded",
		zap.String("session_id", sessionID),
		zap.String("name", name),
		zap.Int("bytes", len(data)),
	)
	frame := Binary(data)
	return &frame, nil
}

// payloadLength is the decoded length of a string payload, or the raw JSON
// length when the payload is not a string
func payloadLength(msg *Message) int {
	if s, err := msg.StringPayload(); err == nil {
		return len(s)
	}
	return len(msg.Payload)
}

func reply(typ string, payload any) (*Frame, error) {
	frame, err := EncodeMessage(typ, payload)
	if err != nil {
		return nil, err
	}
	return &frame, nil
}
