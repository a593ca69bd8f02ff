// Package protocol implements the photorelay message protocol.
//
// Clients talk to the relay over a WebSocket. Every WebSocket message is a
// Frame tagged text or binary by the transport:
//
//   - Text frames carry JSON control messages: {"type": "...", "payload": ...}
//   - Binary frames carry raw image bytes with no extra framing
//
// The first frame on every connection is the plain text greeting "Hello".
//
// # Message Types
//
//	type     payload                   direction
//	UPIMG    image bytes as a string   client -> server (inline mode)
//	IMGUP    new id or file name       server -> client
//	DOWNIMG  id (inline) or name       client -> server
//	IMGDOWN  image bytes as a string   server -> client (inline mode)
//	ERROR    error message             server -> client (explicit errors)
//
// In disk mode the reply to DOWNIMG is the raw file as a binary frame, not
// an IMGDOWN message.
//
// # Modes
//
// The Dispatcher runs in one of three modes:
//
//   - inline: UPIMG stores the payload in memory and replies with a dense
//     integer id; DOWNIMG looks it up again.
//   - disk: a binary frame is written to its own file and the reply carries
//     the generated file name; DOWNIMG with that name returns the bytes.
//   - log: every frame is logged, nothing is ever sent back.
//
// Malformed messages, unknown ids and unknown message types never produce a
// reply on their own. The dispatcher returns a classified relayerr error and
// leaves it to the session to decide whether to send an ERROR frame.
//
// # Usage Example
//
//	store := imagestore.NewMemoryStore()
//	d := protocol.NewInlineDispatcher(store)
//
//	reply, err := d.Dispatch(ctx, sessionID, protocol.Text([]byte(`{"type":"UPIMG","payload":"..."}`)))
//	// reply is {"type":"IMGUP","payload":0}
package protocol
