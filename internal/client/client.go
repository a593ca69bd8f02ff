package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/photorelay/internal/logging"
	"github.com/muurk/photorelay/internal/protocol"
	"github.com/muurk/photorelay/internal/version"
	"go.uber.org/zap"
)

// DefaultTimeout bounds each request when the context has no deadline
const DefaultTimeout = 10 * time.Second

// Client is a connection to a photorelay server
type Client struct {
	conn     *websocket.Conn
	greeting string

	// one request in flight at a time so replies match requests
	mu sync.Mutex
}

// Reply is a decoded JSON reply from the server
type Reply struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ServerError is returned when the server answers with an ERROR message
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "server error: " + e.Message
}

// Dial connects to url (wss://host:port/) and reads the greeting.
// A nil tlsConfig uses the system roots.
func Dial(ctx context.Context, url string, tlsConfig *tls.Config) (*Client, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: DefaultTimeout,
		TLSClientConfig:  tlsConfig,
	}

	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s (HTTP %d): %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	c := &Client{conn: conn}

	frame, err := c.Receive(ctx)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to read greeting: %w", err)
	}
	if frame.Kind != protocol.KindText {
		_ = conn.Close()
		return nil, fmt.Errorf("unexpected greeting frame: %s", frame)
	}
	c.greeting = string(frame.Payload)

	logging.Debug("Connected to relay",
		zap.String("url", url),
		zap.String("greeting", c.greeting),
	)
	return c, nil
}

// Greeting returns the text frame the server sent on connect
func (c *Client) Greeting() string {
	return c.greeting
}

// UploadInline sends an UPIMG message and returns the assigned id
func (c *Client) UploadInline(ctx context.Context, image string) (int, error) {
	reply, err := c.request(ctx, protocol.TypeUploadImage, image)
	if err != nil {
		return 0, err
	}
	if err := expectType(reply, protocol.TypeImageUploaded); err != nil {
		return 0, err
	}

	var id int
	if err := json.Unmarshal(reply.Payload, &id); err != nil {
		return 0, fmt.Errorf("invalid IMGUP payload %s: %w", reply.Payload, err)
	}
	return id, nil
}

// DownloadInline sends a DOWNIMG message for id and returns the image
func (c *Client) DownloadInline(ctx context.Context, id int) (string, error) {
	reply, err := c.request(ctx, protocol.TypeDownloadImage, id)
	if err != nil {
		return "", err
	}
	if err := expectType(reply, protocol.TypeImageDownloaded); err != nil {
		return "", err
	}

	var image string
	if err := json.Unmarshal(reply.Payload, &image); err != nil {
		return "", fmt.Errorf("invalid IMGDOWN payload: %w", err)
	}
	return image, nil
}

// UploadBinary sends data as a binary frame and returns the stored file name
func (c *Client) UploadBinary(ctx context.Context, data []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.Send(ctx, protocol.Binary(data)); err != nil {
		return "", err
	}
	frame, err := c.Receive(ctx)
	if err != nil {
		return "", err
	}
	reply, err := decodeReply(frame)
	if err != nil {
		return "", err
	}
	if err := expectType(reply, protocol.TypeImageUploaded); err != nil {
		return "", err
	}

	var name string
	if err := json.Unmarshal(reply.Payload, &name); err != nil {
		return "", fmt.Errorf("invalid IMGUP payload %s: %w", reply.Payload, err)
	}
	return name, nil
}

// DownloadFile sends a DOWNIMG message for name and returns the raw bytes
func (c *Client) DownloadFile(ctx context.Context, name string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	frame, err := protocol.EncodeMessage(protocol.TypeDownloadImage, name)
	if err != nil {
		return nil, err
	}
	if err := c.Send(ctx, frame); err != nil {
		return nil, err
	}

	reply, err := c.Receive(ctx)
	if err != nil {
		return nil, err
	}
	if reply.Kind == protocol.KindBinary {
		return reply.Payload, nil
	}

	decoded, err := decodeReply(reply)
	if err != nil {
		return nil, err
	}
	return nil, expectType(decoded, "binary frame")
}

// Send writes one frame
func (c *Client) Send(ctx context.Context, frame protocol.Frame) error {
	if err := c.conn.SetWriteDeadline(deadline(ctx)); err != nil {
		return err
	}
	if err := c.conn.WriteMessage(frame.Kind.MessageType(), frame.Payload); err != nil {
		return fmt.Errorf("failed to send %s: %w", frame, err)
	}
	logging.LogWebSocketMessage("", "sent", frame.Kind.String(), frame.Payload)
	return nil
}

// Receive reads the next data frame. The read is bounded by the context
// deadline, or DefaultTimeout when there is none.
func (c *Client) Receive(ctx context.Context) (protocol.Frame, error) {
	if err := c.conn.SetReadDeadline(deadline(ctx)); err != nil {
		return protocol.Frame{}, err
	}

	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		return protocol.Frame{}, fmt.Errorf("failed to read reply: %w", err)
	}

	kind, ok := protocol.KindFromMessageType(messageType)
	if !ok {
		return protocol.Frame{}, fmt.Errorf("unexpected message type %d", messageType)
	}
	logging.LogWebSocketMessage("", "received", kind.String(), data)
	return protocol.Frame{Kind: kind, Payload: data}, nil
}

// Close sends a normal close frame and closes the connection
func (c *Client) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.conn.Close()
}

func (c *Client) request(ctx context.Context, typ string, payload any) (*Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	frame, err := protocol.EncodeMessage(typ, payload)
	if err != nil {
		return nil, err
	}
	if err := c.Send(ctx, frame); err != nil {
		return nil, err
	}

	reply, err := c.Receive(ctx)
	if err != nil {
		return nil, err
	}
	return decodeReply(reply)
}

func decodeReply(frame protocol.Frame) (*Reply, error) {
	if frame.Kind != protocol.KindText {
		return nil, fmt.Errorf("unexpected %s reply", frame)
	}
	var reply Reply
	if err := json.Unmarshal(frame.Payload, &reply); err != nil {
		return nil, fmt.Errorf("invalid reply %q: %w", frame.Payload, err)
	}
	return &reply, nil
}

func expectType(reply *Reply, want string) error {
	if reply.Type == want {
		return nil
	}
	if reply.Type == protocol.TypeError {
		var message string
		if err := json.Unmarshal(reply.Payload, &message); err != nil {
			message = string(reply.Payload)
		}
		return &ServerError{Message: message}
	}
	return fmt.Errorf("unexpected reply %s, want %s", reply.Type, want)
}

func deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(DefaultTimeout)
}
