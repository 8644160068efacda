// Package pin is the hardware abstraction SynCom and the scheduler's
// interrupt-driven wait descriptor use to talk to a single GPIO line: an
// interface that target-specific code implements and that domain code
// depends on, never the other way round. Rather than a single global
// driver keyed by pin number, each Pin value here stands for one
// already-wired line — SynCom needs four independent lines (clock in,
// clock out, data in, data out) and a Pinblock demo needs a fifth, so a
// per-pin handle composes better than a global singleton.
package pin

// Mode selects a pin's direction.
type Mode int

const (
	Input Mode = iota
	Output
)

// Pull selects a pin's idle bias when configured as Input. It has no
// effect on an Output pin.
type Pull int

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// Edge selects which transition AttachInterrupt fires on.
type Edge int

const (
	RisingEdge Edge = iota
	FallingEdge
	BothEdges
)

// Pin is a single GPIO line. Configure must be called before Read, Write,
// or AttachInterrupt are meaningful. AttachInterrupt's fire callback runs
// from interrupt context on a real target (see sched.Pinblock's
// contract): it must not allocate or block.
type Pin interface {
	Configure(mode Mode, pull Pull)
	Read() bool
	Write(v bool)

	// AttachInterrupt installs fire to run on every transition matching
	// edge and returns a function that removes it. What a second call
	// before detaching does depends on the implementation: TinyGo replaces
	// the previous handler, Loopback keeps both.
	AttachInterrupt(edge Edge, fire func()) (detach func())
}
