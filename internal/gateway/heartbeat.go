package gateway

import (
	"time"

	"github.com/rickgao/presence-relay/internal/clock"
)

// heartbeat is a periodic timer built from re-armed one-shot timers. It
// holds no lock of its own: every method runs under the session lock.
//
// Every start opens a new epoch. A tick carries the epoch it was armed
// in, so a tick already waiting on the session lock when start runs
// again can tell it belongs to a dead schedule.
type heartbeat struct {
	clock    clock.Clock
	interval time.Duration
	timer    *clock.Timer
	tick     func(epoch uint64)
	epoch    uint64
	active   bool
}

// start cancels any running schedule and fires tick every interval.
func (h *heartbeat) start(interval time.Duration, tick func(epoch uint64)) {
	h.stop()
	h.epoch++
	h.interval = interval
	h.tick = tick
	h.active = true
	h.rearm()
}

// rearm schedules the next tick. Called from tick after a successful send.
func (h *heartbeat) rearm() {
	if !h.active {
		return
	}
	epoch := h.epoch
	h.timer = h.clock.AfterFunc(h.interval, func() { h.tick(epoch) })
}

// stop cancels the pending tick. Idempotent.
func (h *heartbeat) stop() {
	h.active = false
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

// current reports whether a tick armed in epoch may still act.
func (h *heartbeat) current(epoch uint64) bool {
	return h.active && h.epoch == epoch
}
