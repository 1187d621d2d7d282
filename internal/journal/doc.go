// Package journal records gateway session events in PostgreSQL.
//
// Observers returned by ForSession convert events to model.GatewayEvent
// rows and queue them without blocking the session. A consumer goroutine
// drains the queue into batches that are flushed when full or on a
// ticker, with INSERT ... ON CONFLICT (id) DO NOTHING.
package journal
