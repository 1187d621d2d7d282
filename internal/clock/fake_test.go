package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFake_AfterFuncFiresOnAdvance(t *testing.T) {
	c := Fake(epoch)
	fired := 0
	c.AfterFunc(5*time.Second, func() { fired++ })

	c.Advance(4 * time.Second)
	if fired != 0 {
		t.Fatalf("fired = %d before deadline, want 0", fired)
	}

	c.Advance(time.Second)
	if fired != 1 {
		t.Fatalf("fired = %d at deadline, want 1", fired)
	}

	c.Advance(time.Hour)
	if fired != 1 {
		t.Errorf("fired = %d after deadline, want 1", fired)
	}
}

func TestFake_StopCancels(t *testing.T) {
	c := Fake(epoch)
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Error("first Stop should report true")
	}
	if timer.Stop() {
		t.Error("second Stop should report false")
	}
	if c.PendingCount() != 0 {
		t.Errorf("PendingCount = %d, want 0", c.PendingCount())
	}

	c.Advance(time.Minute)
	if fired {
		t.Error("stopped timer fired")
	}
}

func TestFake_RearmingCallbackActsAsTicker(t *testing.T) {
	c := Fake(epoch)
	var ticks []time.Time

	var arm func()
	arm = func() {
		c.AfterFunc(10*time.Second, func() {
			ticks = append(ticks, c.Now())
			arm()
		})
	}
	arm()

	c.Advance(35 * time.Second)

	if len(ticks) != 3 {
		t.Fatalf("ticks = %d, want 3", len(ticks))
	}
	for i, tick := range ticks {
		want := epoch.Add(time.Duration(i+1) * 10 * time.Second)
		if !tick.Equal(want) {
			t.Errorf("tick %d at %v, want %v", i, tick, want)
		}
	}
	if got := c.Now(); !got.Equal(epoch.Add(35 * time.Second)) {
		t.Errorf("Now = %v, want epoch+35s", got)
	}
}

func TestFake_DeadlineOrder(t *testing.T) {
	c := Fake(epoch)
	var order []string
	c.AfterFunc(3*time.Second, func() { order = append(order, "c") })
	c.AfterFunc(1*time.Second, func() { order = append(order, "a") })
	c.AfterFunc(2*time.Second, func() { order = append(order, "b") })

	if d, ok := c.NextDeadline(); !ok || d != time.Second {
		t.Errorf("NextDeadline = %v, %v; want 1s, true", d, ok)
	}

	c.Advance(3 * time.Second)

	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("order = %v, want [a b c]", order)
	}
	if _, ok := c.NextDeadline(); ok {
		t.Error("NextDeadline should report nothing pending")
	}
}

func TestTimer_NilStop(t *testing.T) {
	var timer *Timer
	if timer.Stop() {
		t.Error("nil timer Stop should report false")
	}
}
