package server

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/muurk/photorelay/internal/logging"
	"github.com/muurk/photorelay/internal/protocol"
	"github.com/muurk/photorelay/internal/relayerr"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// DefaultMaxMessageBytes is the largest inbound frame accepted by default
	DefaultMaxMessageBytes = 16 << 20
)

// State is the lifecycle state of a session
type State int32

const (
	// StateOpen is a live session
	StateOpen State = iota
	// StateErrored is a session that hit a transport error and is being torn down
	StateErrored
	// StateClosed is terminal
	StateClosed
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateErrored:
		return "errored"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// SessionOptions holds the per-connection timing and size limits
type SessionOptions struct {
	WriteWait       time.Duration
	PongWait        time.Duration
	PingPeriod      time.Duration
	MaxMessageBytes int64
}

// DefaultSessionOptions returns the limits used when none are configured
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		WriteWait:       writeWait,
		PongWait:        pongWait,
		PingPeriod:      pingPeriod,
		MaxMessageBytes: DefaultMaxMessageBytes,
	}
}

func (o SessionOptions) withDefaults() SessionOptions {
	d := DefaultSessionOptions()
	if o.WriteWait <= 0 {
		o.WriteWait = d.WriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = d.PongWait
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = (o.PongWait * 9) / 10
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = d.MaxMessageBytes
	}
	return o
}

// Session is one client connection
type Session struct {
	id         string
	remoteAddr string
	conn       *websocket.Conn
	opts       SessionOptions

	// gorilla/websocket allows one concurrent writer
	writeMu sync.Mutex

	state     atomic.Int32
	closing   atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

func newSession(conn *websocket.Conn, remoteAddr string, opts SessionOptions) *Session {
	s := &Session{
		id:         uuid.NewString(),
		remoteAddr: remoteAddr,
		conn:       conn,
		opts:       opts.withDefaults(),
		done:       make(chan struct{}),
	}
	s.state.Store(int32(StateOpen))
	return s
}

// ID returns the session id, stable for the lifetime of the connection
func (s *Session) ID() string {
	return s.id
}

// RemoteAddr returns the peer address
func (s *Session) RemoteAddr() string {
	return s.remoteAddr
}

// State returns the current lifecycle state
func (s *Session) State() State {
	return State(s.state.Load())
}

// markErrored moves an open session to errored. It reports whether this
// call made the transition.
func (s *Session) markErrored() bool {
	return s.state.CompareAndSwap(int32(StateOpen), int32(StateErrored))
}

func (s *Session) markClosed() {
	s.state.Store(int32(StateClosed))
}

// Send writes one frame to the peer
func (s *Session) Send(frame protocol.Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait)); err != nil {
		return relayerr.NewTransportError("failed to set write deadline", err)
	}
	if err := s.conn.WriteMessage(frame.Kind.MessageType(), frame.Payload); err != nil {
		return relayerr.NewTransportError("write failed", err)
	}

	logging.LogWebSocketMessage(s.id, "sent", frame.Kind.String(), frame.Payload)
	return nil
}

// Close sends a close frame and closes the connection. It is safe to call
// more than once and from any goroutine.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		close(s.done)

		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.opts.WriteWait))
		err = s.conn.Close()
	})
	return err
}

// readFrame blocks until the next data frame arrives
func (s *Session) readFrame() (protocol.Frame, error) {
	messageType, data, err := s.conn.ReadMessage()
	if err != nil {
		return protocol.Frame{}, err
	}
	// a full frame arrived, the peer is alive
	_ = s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))

	kind, ok := protocol.KindFromMessageType(messageType)
	if !ok {
		return protocol.Frame{}, relayerr.NewProtocolError(fmt.Sprintf("unexpected message type %d", messageType), nil)
	}

	logging.LogWebSocketMessage(s.id, "received", kind.String(), data)
	return protocol.Frame{Kind: kind, Payload: data}, nil
}

// startHeartbeat applies the read limit and deadlines and pings the peer
// until the session closes.
func (s *Session) startHeartbeat() {
	s.conn.SetReadLimit(s.opts.MaxMessageBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	})

	go func() {
		ticker := time.NewTicker(s.opts.PingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.opts.WriteWait)); err != nil {
					return
				}
			}
		}
	}()
}

// isDisconnect reports whether a read error is the peer (or us) going away
// rather than a transport failure.
func (s *Session) isDisconnect(err error) bool {
	if s.closing.Load() {
		return true
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
		websocket.CloseAbnormalClosure,
	) {
		return true
	}
	return errors.Is(err, io.EOF)
}
