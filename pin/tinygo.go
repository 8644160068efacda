//go:build tinygo

package pin

import "machine"

// TinyGo wraps a TinyGo machine.Pin as a Pin. It is the target-side
// counterpart of Loopback, talking to machine.Pin/PinConfig/SetInterrupt
// directly rather than through an intermediate global GPIO driver, since
// SynCom's four lines are each configured once at startup and never
// reassigned.
type TinyGo struct {
	p machine.Pin
}

// NewTinyGo wraps an already-numbered machine pin, e.g. pin.NewTinyGo(machine.GPIO2).
func NewTinyGo(p machine.Pin) *TinyGo {
	return &TinyGo{p: p}
}

func (m *TinyGo) Configure(mode Mode, pull Pull) {
	cfg := machine.PinConfig{Mode: machine.PinOutput}
	if mode == Input {
		switch pull {
		case PullUp:
			cfg.Mode = machine.PinInputPullup
		case PullDown:
			cfg.Mode = machine.PinInputPulldown
		default:
			cfg.Mode = machine.PinInput
		}
	}
	m.p.Configure(cfg)
}

func (m *TinyGo) Read() bool    { return m.p.Get() }
func (m *TinyGo) Write(v bool)  { m.p.Set(v) }

// AttachInterrupt wires fire to the pin's hardware edge IRQ. fire runs in
// interrupt context: sched.NewPinblock's wrapper around it only touches an
// atomic.Uint32, so this never allocates on the hot path.
func (m *TinyGo) AttachInterrupt(edge Edge, fire func()) func() {
	var change machine.PinChange
	switch edge {
	case RisingEdge:
		change = machine.PinRising
	case FallingEdge:
		change = machine.PinFalling
	default:
		change = machine.PinRising | machine.PinFalling
	}
	m.p.SetInterrupt(change, func(machine.Pin) { fire() })
	return func() {
		m.p.SetInterrupt(0, nil)
	}
}
