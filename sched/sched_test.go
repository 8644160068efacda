package sched

import (
	"testing"
	"time"
)

func TestAddThreadRunsToFirstYield(t *testing.T) {
	sch := New(false, nil)
	var ran bool
	pid, err := sch.AddThread(func(y Yielder) {
		ran = true
		y.Yield(RoundRobin())
	})
	if err != nil {
		t.Fatalf("AddThread: %v", err)
	}
	if !ran {
		t.Errorf("body did not run up to its first yield")
	}
	if pid == 0 {
		t.Errorf("expected a non-zero pid")
	}
}

func TestAddThreadBadThread(t *testing.T) {
	sch := New(false, nil)
	_, err := sch.AddThread(func(y Yielder) {})
	if err != ErrBadThread {
		t.Errorf("expected ErrBadThread, got %v", err)
	}
}

func TestStopZeroDrainsAndReturns(t *testing.T) {
	sch := New(false, nil)
	var ticks int
	if _, err := sch.AddThread(func(y Yielder) {
		for {
			y.Yield(RoundRobin())
			ticks++
			if ticks == 3 {
				sch.Stop(0)
			}
		}
	}); err != nil {
		t.Fatalf("AddThread: %v", err)
	}
	if err := sch.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ticks != 3 {
		t.Errorf("expected 3 ticks before Stop(0) took effect, got %d", ticks)
	}
}

func TestStopPidTerminatesTask(t *testing.T) {
	sch := New(false, nil)
	pid, err := sch.AddThread(func(y Yielder) {
		for {
			y.Yield(RoundRobin())
		}
	})
	if err != nil {
		t.Fatalf("AddThread: %v", err)
	}
	if err := sch.Stop(pid); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := sch.Status(pid); got != Terminated {
		t.Errorf("expected Terminated, got %v", got)
	}
	if err := sch.Stop(pid); err != ErrTaskGone {
		t.Errorf("expected ErrTaskGone on double-Stop, got %v", err)
	}
}

func TestPauseExcludesFromSelection(t *testing.T) {
	sch := New(false, nil)
	var ticks int
	pid, err := sch.AddThread(func(y Yielder) {
		for {
			y.Yield(RoundRobin())
			ticks++
		}
	})
	if err != nil {
		t.Fatalf("AddThread: %v", err)
	}
	if err := sch.Pause(pid); err != nil {
		t.Fatalf("Pause: %v", err)
	}

	stopper, err := sch.AddThread(func(y Yielder) {
		y.Yield(MustTimeout(0.05))
		sch.Stop(0)
	})
	if err != nil {
		t.Fatalf("AddThread: %v", err)
	}
	_ = stopper
	if err := sch.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ticks != 0 {
		t.Errorf("paused task ran %d times, want 0", ticks)
	}
}

// TestPriorityOrderingOverRoundRobin reproduces the documented-starvation
// scenario: a Poller that is always runnable must win dispatch every cycle
// over a round-robin task, which never gets to run while it does.
func TestPriorityOrderingOverRoundRobin(t *testing.T) {
	sch := New(false, nil)
	var pollRuns, rrRuns int

	poller, err := NewPoller(func(args ...any) uint32 { return 5 }, -1)
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}
	if _, err := sch.AddThread(func(y Yielder) {
		for {
			y.Yield(poller)
			pollRuns++
		}
	}); err != nil {
		t.Fatalf("AddThread: %v", err)
	}
	if _, err := sch.AddThread(func(y Yielder) {
		for {
			y.Yield(RoundRobin())
			rrRuns++
		}
	}); err != nil {
		t.Fatalf("AddThread: %v", err)
	}
	if _, err := sch.AddThread(func(y Yielder) {
		y.Yield(MustTimeout(0.05))
		sch.Stop(0)
	}); err != nil {
		t.Fatalf("AddThread: %v", err)
	}
	// The Timeout task above is starved as well: its lateness-only tuple
	// ranks below the poller's poll value, so it never reaches its
	// Stop(0). The scheduler is stopped from outside instead.
	time.AfterFunc(100*time.Millisecond, func() { _ = sch.Stop(0) })

	if err := sch.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if pollRuns == 0 {
		t.Errorf("poller never ran")
	}
	if rrRuns != 0 {
		t.Errorf("round-robin task ran %d times, want 0 while the poller is always eligible", rrRuns)
	}
}

func TestLastBadYieldRecordsFailure(t *testing.T) {
	sch := New(false, nil)
	pid, err := sch.AddThread(func(y Yielder) {
		y.Yield(RoundRobin())
		y.(*task).yieldCh <- nil
	})
	if err != nil {
		t.Fatalf("AddThread: %v", err)
	}
	if _, err := sch.AddThread(func(y Yielder) {
		y.Yield(MustTimeout(0.05))
		sch.Stop(0)
	}); err != nil {
		t.Fatalf("AddThread: %v", err)
	}
	if err := sch.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	badPID, badErr := sch.LastBadYield()
	if badPID != pid || badErr != ErrBadYield {
		t.Errorf("LastBadYield() = (%v, %v), want (%v, %v)", badPID, badErr, pid, ErrBadYield)
	}
}

// TestPinblockPinHitsInvariant reproduces the documented guarantee that
// the delivered pin_hits equals the number of ISR increments observed
// since the last wakeup of that task: it fires two Pinblocks
// simultaneously, checks that losing the priority comparison on one
// dispatch cycle does not discard its hits, and that the winner's
// counter is exactly zeroed once its hits are actually delivered.
func TestPinblockPinHitsInvariant(t *testing.T) {
	sch := New(false, nil)

	var fireA, fireB func()
	pbA, err := NewPinblock(func(fire func()) func() {
		fireA = fire
		return func() {}
	}, nil, -1)
	if err != nil {
		t.Fatalf("NewPinblock A: %v", err)
	}
	pbB, err := NewPinblock(func(fire func()) func() {
		fireB = fire
		return func() {}
	}, nil, -1)
	if err != nil {
		t.Fatalf("NewPinblock B: %v", err)
	}

	deliveredA := make(chan uint32, 1)
	deliveredB := make(chan uint32, 1)
	pidA, err := sch.AddThread(func(y Yielder) {
		tup := y.Yield(pbA)
		deliveredA <- tup.PinHits
	})
	if err != nil {
		t.Fatalf("AddThread A: %v", err)
	}
	pidB, err := sch.AddThread(func(y Yielder) {
		tup := y.Yield(pbB)
		deliveredB <- tup.PinHits
	})
	if err != nil {
		t.Fatalf("AddThread B: %v", err)
	}

	fireA()
	fireA()
	fireA()
	fireB()
	fireB()

	winner, tuple, ok := sch.selectNext()
	if !ok {
		t.Fatalf("selectNext: nothing eligible")
	}
	if winner.pid != pidA {
		t.Fatalf("expected pid %d (more hits) to win, got %d", pidA, winner.pid)
	}
	if tuple.PinHits != 3 {
		t.Errorf("winner tuple.PinHits = %d, want 3", tuple.PinHits)
	}
	if got := pbB.counter.Load(); got != 2 {
		t.Errorf("B's hit counter after losing selection = %d, want 2 (unconsumed)", got)
	}

	c, ok := winner.desc.(committer)
	if !ok {
		t.Fatalf("Pinblock does not implement committer")
	}
	c.commit(tuple)
	if !sch.dispatch(winner, tuple) {
		t.Fatalf("dispatch unexpectedly asked Run to stop")
	}
	if got := <-deliveredA; got != 3 {
		t.Errorf("task A received PinHits=%d, want 3", got)
	}
	if got := pbA.counter.Load(); got != 0 {
		t.Errorf("A's hit counter after delivery = %d, want 0 (post-wakeup zero)", got)
	}

	winner2, tuple2, ok := sch.selectNext()
	if !ok {
		t.Fatalf("selectNext: nothing eligible for B's turn")
	}
	if winner2.pid != pidB {
		t.Fatalf("expected pid %d to win second cycle, got %d", pidB, winner2.pid)
	}
	if tuple2.PinHits != 2 {
		t.Errorf("B's tuple.PinHits = %d, want 2", tuple2.PinHits)
	}
	c2, ok := winner2.desc.(committer)
	if !ok {
		t.Fatalf("Pinblock does not implement committer")
	}
	c2.commit(tuple2)
	if !sch.dispatch(winner2, tuple2) {
		t.Fatalf("dispatch unexpectedly asked Run to stop")
	}
	if got := <-deliveredB; got != 2 {
		t.Errorf("task B received PinHits=%d, want 2", got)
	}
	if got := pbB.counter.Load(); got != 0 {
		t.Errorf("B's hit counter after delivery = %d, want 0", got)
	}
}

func TestReentrantRunRejected(t *testing.T) {
	sch := New(false, nil)
	started := make(chan struct{})
	if _, err := sch.AddThread(func(y Yielder) {
		close(started)
		y.Yield(MustTimeout(0.2))
		sch.Stop(0)
	}); err != nil {
		t.Fatalf("AddThread: %v", err)
	}
	go sch.Run()
	<-started
	time.Sleep(10 * time.Millisecond)
	if err := sch.Run(); err != ErrReentrant {
		t.Errorf("expected ErrReentrant, got %v", err)
	}
	sch.Stop(0)
}
