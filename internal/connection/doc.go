// Package connection implements the gateway transport.
//
// A Client is one WebSocket connection to the gateway:
//   - Dialed through a Dialer so the session layer can be tested without a network
//   - Delivers every inbound text frame, in order, on Messages()
//   - Reports the terminating read error (close frame or network failure) on Errors()
//   - Serialises writes with a per-connection deadline
//
// Protocol logic (handshake, heartbeats, reconnects) lives in package gateway.
package connection
