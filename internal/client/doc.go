// Package client talks to a photorelay server over a TLS WebSocket.
//
// Requests are synchronous: each call sends one frame and waits for the
// reply. The server stays silent on unknown ids and malformed input unless it
// runs with explicit errors, so every call is bounded by the context deadline
// (or DefaultTimeout).
//
//	c, err := client.Dial(ctx, "wss://relay.local:8888/", nil)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	id, err := c.UploadInline(ctx, encodedImage)
package client
