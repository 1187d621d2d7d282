// Package mirror publishes the latest status snapshot of every session to
// Redis so other processes can read it without calling the relay.
//
// Each session has one key, <prefix><session id>, holding the JSON
// snapshot with a TTL. Keys are refreshed every TTL/2 while the session
// exists and deleted when the session is disconnected.
package mirror
