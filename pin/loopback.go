package pin

import "sync"

// wire is the shared state behind a pair of Loopback ends: a single
// GPIO line driven from one side and observed from the other, the way a
// soldered wire between two boards has exactly one electrical state no
// matter which end you probe it from.
type wire struct {
	mu    sync.Mutex
	state bool
	watch []watcher
}

type watcher struct {
	edge Edge
	fire func()
}

func (w *wire) write(v bool) {
	w.mu.Lock()
	old := w.state
	w.state = v
	watchers := append([]watcher(nil), w.watch...)
	w.mu.Unlock()
	if old == v {
		return
	}
	rising := !old && v
	for _, watched := range watchers {
		if watched.fire == nil {
			continue // detached
		}
		if watched.edge == BothEdges || (watched.edge == RisingEdge) == rising {
			watched.fire()
		}
	}
}

func (w *wire) read() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *wire) attach(edge Edge, fire func()) func() {
	w.mu.Lock()
	w.watch = append(w.watch, watcher{edge: edge, fire: fire})
	idx := len(w.watch) - 1
	w.mu.Unlock()
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if idx < len(w.watch) {
			w.watch[idx] = watcher{}
		}
	}
}

// Loopback is a host-side Pin backed by an in-memory wire instead of a
// real register. Two ends created by NewWirePair model one wire soldered
// between two devices — SynCom's test harness wires four of these
// together to run two scheduler instances "back to back" without real
// hardware.
type Loopback struct {
	w    *wire
	mode Mode
	pull Pull
}

// NewWirePair returns the two ends of one loopback wire.
func NewWirePair() (a, b *Loopback) {
	w := &wire{}
	return &Loopback{w: w}, &Loopback{w: w}
}

func (p *Loopback) Configure(mode Mode, pull Pull) {
	p.mode = mode
	p.pull = pull
	if mode == Input {
		switch pull {
		case PullUp:
			p.w.mu.Lock()
			p.w.state = true
			p.w.mu.Unlock()
		case PullDown:
			p.w.mu.Lock()
			p.w.state = false
			p.w.mu.Unlock()
		}
	}
}

func (p *Loopback) Read() bool   { return p.w.read() }
func (p *Loopback) Write(v bool) { p.w.write(v) }

func (p *Loopback) AttachInterrupt(edge Edge, fire func()) func() {
	return p.w.attach(edge, fire)
}
