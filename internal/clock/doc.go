// Package clock abstracts wall time and one-shot timers so that gateway
// scheduling (heartbeats, reconnect backoff, delayed re-identify) can be
// driven deterministically in tests.
//
// Production code uses Real(). Tests use Fake(), whose AfterFunc callbacks
// run synchronously inside Advance in deadline order.
package clock
