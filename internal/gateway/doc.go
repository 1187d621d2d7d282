// Package gateway implements the gateway connection manager.
//
// A Session keeps one authenticated connection alive for one credential:
//   - Performs the Hello → Identify → READY handshake
//   - Heartbeats at the interval the gateway announces, carrying the last sequence
//   - Reconnects with capped exponential backoff plus jitter on retryable closes
//   - Goes dormant on fatal close codes, on exhausted attempts, or on Disconnect
//   - Caches the desired presence and replays it once READY arrives
//
// All session state is guarded by one mutex. Read loops and timer callbacks
// carry the generation they were created under and do nothing once a newer
// transport (or a disconnect) has superseded it.
package gateway
