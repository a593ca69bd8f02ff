// Package server implements the photorelay TLS WebSocket server.
//
// Every HTTP request on any path is upgraded to a WebSocket session. On
// connect the session is registered, greeted with the text frame "Hello" and
// then read frame by frame. Each frame goes to the Dispatcher for the
// configured mode and at most one reply is written back to the same session.
//
// # Session Lifecycle
//
//	open ──peer close / EOF──────────────────────────► closed
//	open ──transport error──► errored ──close──────────► closed
//
// Protocol, NotFound and Storage errors never end a session. Transport errors
// always do. Sessions are independent: one failing never affects another.
//
// # Heartbeat
//
// The server pings each session every 54 seconds and expects any frame or a
// pong within 60 seconds. Writes time out after 10 seconds. Inbound frames
// larger than the configured limit (16 MiB by default) end the session.
//
// # Usage Example
//
//	cfg := config.Default()
//	cfg.GenerateCert = true
//
//	srv, err := server.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Start blocks until SIGINT or SIGTERM
//	if err := srv.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// Shutdown stops the listener, sends a close frame to every registered
// session and waits for the session goroutines to finish, bounded by the
// context passed in.
package server
