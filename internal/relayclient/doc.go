// Package relayclient is a Go client for the presence relay REST API.
//
// Requests that fail with 5xx or 429 are retried with jittered exponential
// backoff. Other failures are returned as *APIError carrying the relay's
// error message.
package relayclient
