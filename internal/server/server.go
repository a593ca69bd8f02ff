package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/photorelay/internal/config"
	"github.com/muurk/photorelay/internal/imagestore"
	"github.com/muurk/photorelay/internal/logging"
	"github.com/muurk/photorelay/internal/protocol"
	"github.com/muurk/photorelay/internal/relayerr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds how long Shutdown waits for sessions to finish
const shutdownTimeout = 10 * time.Second

// Dispatcher handles inbound frames for every session
type Dispatcher interface {
	Dispatch(ctx context.Context, sessionID string, frame protocol.Frame) (*protocol.Frame, error)
	Mode() protocol.Mode
}

// Server is the photorelay WebSocket server
type Server struct {
	config     *config.Config
	tlsConfig  *tls.Config
	dispatcher Dispatcher
	registry   *Registry
	upgrader   websocket.Upgrader
	opts       SessionOptions

	httpServer   *http.Server
	wg           sync.WaitGroup
	mu           sync.Mutex
	listener     net.Listener
	shutdownOnce sync.Once
	closing      chan struct{}
}

// New creates a Server from a validated configuration. It initialises
// logging, loads or generates the TLS certificate and builds the image store
// for the configured mode.
func New(cfg *config.Config) (*Server, error) {
	if err := logging.InitializeWithOptions(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile}); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	tlsConfig, err := loadTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	dispatcher, err := newDispatcher(cfg)
	if err != nil {
		return nil, err
	}

	return NewWithDispatcher(cfg, tlsConfig, dispatcher), nil
}

// NewWithDispatcher creates a Server around an existing dispatcher. It does
// not touch the global logger.
func NewWithDispatcher(cfg *config.Config, tlsConfig *tls.Config, dispatcher Dispatcher) *Server {
	opts := DefaultSessionOptions()
	opts.MaxMessageBytes = cfg.MaxMessageBytes

	s := &Server{
		config:     cfg,
		tlsConfig:  tlsConfig,
		dispatcher: dispatcher,
		registry:   NewRegistry(),
		opts:       opts.withDefaults(),
		closing:    make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		// no authentication and no origin policy
		CheckOrigin: func(*http.Request) bool { return true },
		Error:       s.upgradeError,
	}
	return s
}

func loadTLSConfig(cfg *config.Config) (*tls.Config, error) {
	if !cfg.GenerateCert {
		tlsConfig, err := NewTLSConfig(cfg.CertPath, cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		return tlsConfig, nil
	}

	logging.Info("Generating self-signed server certificate")
	hosts := []string{"localhost", "127.0.0.1", "::1"}
	if cfg.Host != "" && cfg.Host != "0.0.0.0" && cfg.Host != "::" {
		hosts = append(hosts, cfg.Host)
	}
	certPEM, keyPEM, err := GenerateSelfSigned(hosts, 365*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("failed to generate certificate: %w", err)
	}
	return NewTLSConfigFromMemory(certPEM, keyPEM)
}

func newDispatcher(cfg *config.Config) (*protocol.Dispatcher, error) {
	mode, err := cfg.ParsedMode()
	if err != nil {
		return nil, err
	}

	switch mode {
	case protocol.ModeDisk:
		store, err := imagestore.NewDiskStore(cfg.StorageDir, cfg.ImageExt)
		if err != nil {
			return nil, fmt.Errorf("failed to open storage directory: %w", err)
		}
		logging.Info("Storing uploads on disk", zap.String("dir", store.Dir()))
		return protocol.NewDiskDispatcher(store), nil
	case protocol.ModeLog:
		return protocol.NewLogDispatcher(), nil
	default:
		return protocol.NewInlineDispatcher(imagestore.NewMemoryStore()), nil
	}
}

// Handler returns the HTTP handler that upgrades every request on any path
// to a WebSocket session.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.serveHTTP)
}

// Registry returns the registry of open sessions
func (s *Server) Registry() *Registry {
	return s.registry
}

// Start listens on the configured address and blocks until SIGINT or
// SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run listens on the configured address and serves until ctx is done
func (s *Server) Run(ctx context.Context) error {
	addr := s.config.Addr()

	certSource := s.config.CertPath
	if s.config.GenerateCert {
		certSource = "auto-generated (in-memory)"
	}
	logging.Info("Starting photorelay server",
		zap.String("addr", addr),
		zap.String("mode", string(s.dispatcher.Mode())),
		zap.String("cert", certSource),
		zap.String("log_level", s.config.LogLevel),
	)
	logging.Info("TLS Configuration", zap.Any("tls_info", GetTLSInfo(s.tlsConfig)))

	listener, err := tls.Listen("tcp", addr, s.tlsConfig)
	if err != nil {
		return fmt.Errorf("failed to create TLS listener: %w", err)
	}

	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is done or the server is
// shut down. The listener must already speak TLS.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.mu.Lock()
	select {
	case <-s.closing:
		s.mu.Unlock()
		_ = listener.Close()
		return http.ErrServerClosed
	default:
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(logging.GetLogger()),
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	logging.Info("Server listening for connections", zap.String("addr", listener.Addr().String()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-s.closing:
			return nil
		}
		logging.Info("Shutdown signal received, stopping server...")
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Addr returns the address the server is listening on, or nil before Serve
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting connections, closes every open session and waits
// for the session goroutines to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		logging.Info("Shutting down server...")

		s.mu.Lock()
		close(s.closing)
		httpServer := s.httpServer
		s.mu.Unlock()

		if httpServer != nil {
			// hijacked WebSocket connections are not tracked by net/http
			if shutdownErr := httpServer.Shutdown(ctx); shutdownErr != nil {
				logging.Error("Error closing listener", zap.Error(shutdownErr))
				err = shutdownErr
			}
		}

		s.registry.Each(func(session *Session) {
			logging.Info("Closing active connection",
				zap.String("session_id", session.ID()),
				zap.String("remote_addr", session.RemoteAddr()),
			)
			_ = session.Close()
		})

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			logging.Info("All connections closed gracefully")
		case <-ctx.Done():
			logging.Warn("Shutdown timeout, forcing close")
		}

		logging.Sync()
	})
	return err
}

// GetActiveConnections returns the number of open sessions
func (s *Server) GetActiveConnections() int {
	return s.registry.Len()
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	LogHTTPRequestDetails(r)

	s.mu.Lock()
	select {
	case <-s.closing:
		s.mu.Unlock()
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}
	// counted before Shutdown can start waiting
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	if !IsWebSocketUpgrade(r) {
		logging.Debug("Rejecting plain HTTP request", zap.String("remote_addr", r.RemoteAddr))
		w.Header().Set("Upgrade", "websocket")
		http.Error(w, "WebSocket upgrade required", http.StatusUpgradeRequired)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already replied with an HTTP error
		return
	}

	s.serveSession(r.Context(), conn, r.RemoteAddr)
}

// serveSession runs one session from greeting to close
func (s *Server) serveSession(ctx context.Context, conn *websocket.Conn, remoteAddr string) {
	session := newSession(conn, remoteAddr, s.opts)
	s.registry.Register(session)

	defer func() {
		_ = session.Close()
		s.registry.Unregister(session)
		session.markClosed()
		logging.LogConnection(session.ID(), remoteAddr, "Connection gone")
	}()

	// Shutdown may have taken its snapshot of the registry already
	select {
	case <-s.closing:
		return
	default:
	}

	logging.LogConnection(session.ID(), remoteAddr, "New connection")

	if err := session.Send(protocol.Text([]byte(protocol.Greeting))); err != nil {
		s.transportError(session, err)
		return
	}

	session.startHeartbeat()

	for {
		frame, err := session.readFrame()
		if err != nil {
			if relayerr.IsProtocol(err) {
				s.handleDispatchError(session, err)
				continue
			}
			if session.isDisconnect(err) {
				logging.Debug("Peer closed connection",
					zap.String("session_id", session.ID()),
					zap.Error(err),
				)
				return
			}
			s.transportError(session, err)
			return
		}

		reply, err := s.dispatcher.Dispatch(ctx, session.ID(), frame)
		if err != nil {
			s.handleDispatchError(session, err)
			continue
		}
		if reply == nil {
			continue
		}

		if err := session.Send(*reply); err != nil {
			s.transportError(session, err)
			return
		}
	}
}

// handleDispatchError logs a session-scoped error and, where configured,
// replies with an ERROR message. The session stays open.
func (s *Server) handleDispatchError(session *Session, err error) {
	sendReply := s.config.ExplicitErrors

	kind, ok := relayerr.KindOf(err)
	if !ok {
		logging.Error("Failed to handle message",
			zap.String("session_id", session.ID()),
			zap.Error(err),
		)
	} else {
		fields := []zap.Field{
			zap.String("session_id", session.ID()),
			zap.String("kind", kind.String()),
			zap.Error(err),
		}
		switch kind {
		case relayerr.KindStorage:
			logging.Error("Failed to store image", fields...)
			sendReply = true
		case relayerr.KindNotFound:
			logging.Warn("Image not found", fields...)
		default:
			logging.Warn("Ignoring malformed message", fields...)
		}
	}

	if !sendReply {
		return
	}
	if sendErr := session.Send(protocol.ErrorReply(err)); sendErr != nil {
		s.transportError(session, sendErr)
	}
}

// transportError moves the session to errored and closes it. The read loop
// then observes the close and runs the disconnect path.
func (s *Server) transportError(session *Session, err error) {
	if !session.markErrored() {
		return
	}
	logging.Error("An error occurred on connection",
		zap.String("session_id", session.ID()),
		zap.Error(err),
	)
	_ = session.Close()
}

func (s *Server) upgradeError(w http.ResponseWriter, r *http.Request, status int, reason error) {
	logging.Warn("Invalid WebSocket upgrade request",
		zap.String("remote_addr", r.RemoteAddr),
		zap.Int("status", status),
		zap.Error(reason),
	)
	http.Error(w, http.StatusText(status), status)
}
