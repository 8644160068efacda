package sched

import "testing"

func TestNewTimeoutRejectsOutOfRange(t *testing.T) {
	if _, err := NewTimeout(float64(MaxSecs) + 1); err != ErrTimeRange {
		t.Errorf("NewTimeout(MaxSecs+1) = %v, want ErrTimeRange", err)
	}
	if _, err := NewTimeout(float64(MaxSecs)); err != nil {
		t.Errorf("NewTimeout(MaxSecs) returned %v, want nil", err)
	}
}

func TestMustTimeoutPanicsOnOutOfRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("MustTimeout did not panic on an out-of-range value")
		}
	}()
	MustTimeout(float64(MaxSecs) + 1)
}

func TestTimeoutEvaluateNotYetDue(t *testing.T) {
	to := MustTimeout(10)
	now := uint64(1_000_000)
	if _, eligible := to.evaluate(now); eligible {
		t.Errorf("freshly armed Timeout reported eligible before its deadline")
	}
}

func TestTimeoutEvaluateOverdueReportsLateness(t *testing.T) {
	to := &Timeout{secs: 1, deadline: 1_000_000, armed: true}
	tup, eligible := to.evaluate(1_500_000)
	if !eligible {
		t.Fatalf("overdue Timeout reported ineligible")
	}
	if tup.LatenessUS != 500_000 {
		t.Errorf("LatenessUS = %d, want 500000", tup.LatenessUS)
	}
}

func TestPollerReportsZeroAsIneligibleWithoutTimeout(t *testing.T) {
	p, err := NewPoller(func(args ...any) uint32 { return 0 }, -1)
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}
	if _, eligible := p.evaluate(0); eligible {
		t.Errorf("Poller with fn always returning 0 and no timeout reported eligible")
	}
}

func TestPollerNonzeroCarriesPollValue(t *testing.T) {
	p, err := NewPoller(func(args ...any) uint32 { return 7 }, -1)
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}
	tup, eligible := p.evaluate(0)
	if !eligible || tup.PollValue != 7 {
		t.Errorf("evaluate() = (%+v, %v), want PollValue=7, eligible=true", tup, eligible)
	}
}

func TestPollerFallsBackToTimeoutWhenIdle(t *testing.T) {
	p, err := NewPoller(func(args ...any) uint32 { return 0 }, 1)
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}
	if _, eligible := p.evaluate(0); eligible {
		t.Errorf("not yet due, expected ineligible")
	}
	p.to.deadline = 0
	p.to.armed = true
	tup, eligible := p.evaluate(2_000_000)
	if !eligible {
		t.Errorf("overdue timeout leg, expected eligible")
	}
	if tup.PollValue != 0 {
		t.Errorf("timeout leg should not carry a poll value, got %d", tup.PollValue)
	}
}

func TestPinblockAccumulatesHitsAcrossCycles(t *testing.T) {
	var fire func()
	pb, err := NewPinblock(func(f func()) func() {
		fire = f
		return func() {}
	}, nil, -1)
	if err != nil {
		t.Fatalf("NewPinblock: %v", err)
	}
	fire()
	fire()
	fire()
	tup, eligible := pb.evaluate(0)
	if !eligible || tup.PinHits != 3 {
		t.Errorf("evaluate() = (%+v, %v), want PinHits=3, eligible=true", tup, eligible)
	}
	// evaluate() only peeks: a task that lost the dispatch comparison must
	// see the same hit count again next cycle, not a drained counter.
	if tup2, eligible := pb.evaluate(0); !eligible || tup2.PinHits != 3 {
		t.Errorf("second evaluate() = (%+v, %v), want PinHits=3 again (peek, not drain)", tup2, eligible)
	}
	pb.commit(tup)
	if _, eligible := pb.evaluate(0); eligible {
		t.Errorf("counter should be zero after commit() consumed the delivered hits")
	}
}

func TestPinblockUserCallbackReceivesIncreasingIRQID(t *testing.T) {
	var fire func()
	var gotIDs []uint32
	_, err := NewPinblock(func(f func()) func() {
		fire = f
		return func() {}
	}, func(irqID uint32) { gotIDs = append(gotIDs, irqID) }, -1)
	if err != nil {
		t.Fatalf("NewPinblock: %v", err)
	}
	fire()
	fire()
	if len(gotIDs) != 2 || gotIDs[0] != 1 || gotIDs[1] != 2 {
		t.Errorf("irq ids = %v, want [1 2]", gotIDs)
	}
}

// fakeYielder stands in for a real Sched during a unit test of Wait's pure
// decomposition arithmetic: it returns immediately from every Yield instead
// of actually blocking for the requested delay, and records what it was
// asked to wait on.
type fakeYielder struct {
	secs []float64
}

func (f *fakeYielder) Yield(d WaitDescriptor) Tuple {
	to, ok := d.(*Timeout)
	if !ok {
		panic("fakeYielder: Wait must only yield *Timeout")
	}
	f.secs = append(f.secs, to.secs)
	return Tuple{LatenessUS: 1}
}

func TestWaitComposesBeyondMaxSecs(t *testing.T) {
	f := &fakeYielder{}
	secs := float64(MaxSecs)*2 + 5
	tup := Wait(f, secs)

	if len(f.secs) != 3 {
		t.Fatalf("Wait issued %d legs, want 3 (1 remainder + 2 full MaxSecs)", len(f.secs))
	}
	if got, want := f.secs[0], 5.0; got != want {
		t.Errorf("first leg = %vs, want %vs (the remainder)", got, want)
	}
	for _, leg := range f.secs[1:] {
		if leg != float64(MaxSecs) {
			t.Errorf("leg = %vs, want %ds (MaxSecs)", leg, MaxSecs)
		}
	}
	if tup.LatenessUS != 3 {
		t.Errorf("LatenessUS = %d, want 3 (lateness summed across all 3 legs)", tup.LatenessUS)
	}
}

func TestWaitWithoutRemainderIssuesOnlyFullLegs(t *testing.T) {
	f := &fakeYielder{}
	secs := float64(MaxSecs) * 3
	Wait(f, secs)
	if len(f.secs) != 3 {
		t.Fatalf("Wait issued %d legs, want 3 (no remainder leg when secs is an exact multiple)", len(f.secs))
	}
}
