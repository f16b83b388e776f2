package clock

import (
	"testing"
	"time"
)

func TestFakeAdvanceFiresInDeadlineOrder(t *testing.T) {
	clk := NewFake()

	var order []string
	clk.AfterFunc(3*time.Second, func() { order = append(order, "c") })
	clk.AfterFunc(1*time.Second, func() { order = append(order, "a") })
	clk.AfterFunc(2*time.Second, func() { order = append(order, "b") })

	clk.Advance(5 * time.Second)

	want := "abc"
	var got string
	for _, s := range order {
		got += s
	}
	if got != want {
		t.Errorf("fire order = %q, want %q", got, want)
	}
}

func TestFakeCallbackSeesItsDeadline(t *testing.T) {
	clk := NewFake()
	start := clk.Now()

	var at time.Duration
	clk.AfterFunc(2*time.Second, func() { at = clk.Since(start) })

	clk.Advance(10 * time.Second)

	if at != 2*time.Second {
		t.Errorf("callback observed t+%v, want t+2s", at)
	}
	if got := clk.Since(start); got != 10*time.Second {
		t.Errorf("after advance, elapsed = %v, want 10s", got)
	}
}

func TestFakeTimerBeyondWindowWaits(t *testing.T) {
	clk := NewFake()

	fired := false
	clk.AfterFunc(5*time.Second, func() { fired = true })

	clk.Advance(4 * time.Second)
	if fired {
		t.Fatal("timer fired before its deadline")
	}

	clk.Advance(1 * time.Second)
	if !fired {
		t.Error("timer did not fire at its deadline")
	}
}

func TestFakeStop(t *testing.T) {
	clk := NewFake()

	fired := false
	timer := clk.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Error("first Stop = false, want true")
	}
	if timer.Stop() {
		t.Error("second Stop = true, want false")
	}

	clk.Advance(time.Minute)
	if fired {
		t.Error("stopped timer fired")
	}
}

func TestFakeStopAfterFire(t *testing.T) {
	clk := NewFake()
	timer := clk.AfterFunc(time.Second, func() {})

	clk.Advance(2 * time.Second)
	if timer.Stop() {
		t.Error("Stop after firing = true, want false")
	}
}

func TestFakeCallbackRegistersTimer(t *testing.T) {
	clk := NewFake()

	var fired []string
	clk.AfterFunc(1*time.Second, func() {
		fired = append(fired, "first")
		// Lands at t+3s, inside the same advance window.
		clk.AfterFunc(2*time.Second, func() { fired = append(fired, "chained") })
		// Lands at t+11s, outside the window.
		clk.AfterFunc(10*time.Second, func() { fired = append(fired, "late") })
	})

	clk.Advance(5 * time.Second)

	if len(fired) != 2 || fired[0] != "first" || fired[1] != "chained" {
		t.Errorf("fired = %v, want [first chained]", fired)
	}

	clk.Advance(10 * time.Second)
	if len(fired) != 3 || fired[2] != "late" {
		t.Errorf("fired = %v, want late to arrive on the second advance", fired)
	}
}
