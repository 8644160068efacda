package pin

import "testing"

func TestLoopbackWriteIsVisibleFromBothEnds(t *testing.T) {
	a, b := NewWirePair()
	a.Configure(Output, PullNone)
	b.Configure(Input, PullNone)

	a.Write(true)
	if !b.Read() {
		t.Errorf("b.Read() = false after a.Write(true)")
	}
	if !a.Read() {
		t.Errorf("a.Read() = false, want the driven value readable from the driving end too")
	}

	a.Write(false)
	if b.Read() {
		t.Errorf("b.Read() = true after a.Write(false)")
	}
}

func TestLoopbackConfigurePullSetsIdleState(t *testing.T) {
	a, b := NewWirePair()
	a.Configure(Output, PullNone)
	b.Configure(Input, PullUp)
	if !b.Read() {
		t.Errorf("PullUp input did not idle high")
	}

	c, d := NewWirePair()
	c.Configure(Output, PullNone)
	d.Configure(Input, PullDown)
	if d.Read() {
		t.Errorf("PullDown input did not idle low")
	}
}

func TestLoopbackAttachInterruptFiresOnMatchingEdge(t *testing.T) {
	a, b := NewWirePair()
	a.Configure(Output, PullNone)
	b.Configure(Input, PullNone)

	var rising, falling int
	detachRising := b.AttachInterrupt(RisingEdge, func() { rising++ })
	detachFalling := b.AttachInterrupt(FallingEdge, func() { falling++ })
	defer detachRising()
	defer detachFalling()

	a.Write(true)
	a.Write(false)
	a.Write(true)

	if rising != 2 {
		t.Errorf("rising fired %d times, want 2", rising)
	}
	if falling != 1 {
		t.Errorf("falling fired %d times, want 1", falling)
	}
}

func TestLoopbackAttachInterruptBothEdges(t *testing.T) {
	a, b := NewWirePair()
	a.Configure(Output, PullNone)
	b.Configure(Input, PullNone)

	var count int
	detach := b.AttachInterrupt(BothEdges, func() { count++ })
	defer detach()

	a.Write(true)
	a.Write(false)
	if count != 2 {
		t.Errorf("BothEdges fired %d times, want 2", count)
	}
}

func TestLoopbackDetachStopsFiring(t *testing.T) {
	a, b := NewWirePair()
	a.Configure(Output, PullNone)
	b.Configure(Input, PullNone)

	var count int
	detach := b.AttachInterrupt(BothEdges, func() { count++ })
	a.Write(true)
	detach()
	a.Write(false)
	a.Write(true)

	if count != 1 {
		t.Errorf("detached watcher fired %d times, want 1 (only the edge before detach)", count)
	}
}

func TestLoopbackWriteSameValueDoesNotFire(t *testing.T) {
	a, b := NewWirePair()
	a.Configure(Output, PullNone)
	b.Configure(Input, PullNone)

	var count int
	detach := b.AttachInterrupt(BothEdges, func() { count++ })
	defer detach()

	a.Write(false) // already false; no transition
	if count != 0 {
		t.Errorf("writing the same value fired %d watchers, want 0", count)
	}
}
