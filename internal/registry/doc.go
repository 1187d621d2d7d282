// Package registry maps request-layer session ids to gateway sessions.
//
// Each registered session owns exactly one gateway.Session and one
// credential. In single-session mode (the default) connecting a session
// disconnects and forgets every other one first.
package registry
