// Package syncom implements a bit-banged, clock-following, full-duplex
// synchronous link between two devices over four GPIOs, scheduled as a
// background task on a sched.Sched. It ports the state machine of
// original_source/syncom/syncom.go's SynCom class: synchronisation on a
// reserved sync byte, character framing with a terminator, and latency
// batching between cooperative yields.
package syncom

import (
	"sync"
	"time"

	"synsched/codec"
	"synsched/pin"
	"synsched/sched"
)

// Phase is the link's synchronisation state.
type Phase uint8

const (
	Unsynced Phase = iota
	Synced
	TimedOut
)

func (p Phase) String() string {
	switch p {
	case Unsynced:
		return "unsynced"
	case Synced:
		return "synced"
	case TimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}

const (
	// syncSentinel is clocked out repeatedly by both ends until each has
	// seen it from the peer; it must be non-zero so l.indata (which
	// starts at 0) cannot satisfy the handshake before a single bit has
	// actually crossed the wire. It is never treated as a payload byte.
	syncSentinel = 0x9d
	// terminatorByte separates queued strings on the wire: a getByte
	// result of this value, once synchronised, means "no character" —
	// either idle-line filler or the end of the string in progress.
	terminatorByte = 0x00
	bitsSyn        = 8 // shift-register width used only for sync detection
)

// Link is one end of a SynCom connection. Construct with New, then call
// Start at least once before Send/Get do anything useful.
type Link struct {
	sch     *sched.Sched
	passive bool
	ckin    pin.Pin
	ckout   pin.Pin
	din     pin.Pin
	dout    pin.Pin
	latency int
	verbose bool

	// Bit-banging state: touched only by runTask's own goroutine, and by
	// Start() while (re)initialising — Start waits on doneCh for the
	// previous runTask to exit before touching any of it, so there is
	// never more than one writer at a time and no lock is needed.
	indata   uint32
	inbits   uint32
	odata    uint32
	clockBit int

	mu        sync.Mutex
	phase     Phase
	txQueue   [][]byte
	rxQueue   [][]byte
	timeoutUS int64
	lastRxUS  uint64
	pid       sched.PID
	doneCh    chan struct{}

	awaitObj *sched.Poller
}

// New configures a Link but does not start its background task; call
// Start to do that. latency below 1 is clamped to 1: a batch of at least
// one character between yields.
func New(sch *sched.Sched, passive bool, ckin, ckout, din, dout pin.Pin, latency int, verbose bool) *Link {
	if latency < 1 {
		latency = 1
	}
	l := &Link{
		sch:     sch,
		passive: passive,
		ckin:    ckin,
		ckout:   ckout,
		din:     din,
		dout:    dout,
		latency: latency,
		verbose: verbose,
		phase:   Unsynced,
	}
	l.awaitObj, _ = sched.NewPoller(func(args ...any) uint32 {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.checkTimeoutLocked(sched.NowUS())
		if l.phase == TimedOut {
			return 2
		}
		if len(l.rxQueue) > 0 {
			return 1
		}
		return 0
	}, -1)
	return l
}

// AwaitObj is the wait descriptor consumer tasks yield on instead of
// polling Any()/Running() themselves: it reports runnable with strength
// 1 once a message is waiting, or 2 once the link has timed out.
func (l *Link) AwaitObj() sched.WaitDescriptor {
	return l.awaitObj
}

// Start (re)synchronises the link: if resetPin is non-nil it is driven
// to resetLevel for 100ms to reboot the peer, then released; the pin
// levels for the initial clock edge are set the same way the active and
// passive roles always set them, and a fresh background task is spawned.
// Calling Start again after TimedOut is how a caller recovers a lost
// link.
func (l *Link) Start(resetPin pin.Pin, resetLevel bool) error {
	l.mu.Lock()
	oldPid := l.pid
	oldDone := l.doneCh
	l.pid = 0
	l.doneCh = nil
	l.mu.Unlock()

	if oldPid != 0 {
		_ = l.sch.Stop(oldPid)
	}
	if oldDone != nil {
		// Stop only signals the old runTask to exit; it does not wait
		// for that goroutine to actually unwind. Block here until it
		// has, so the re-initialisation below never races the old
		// task's own reads and writes of the same bit-banging state.
		<-oldDone
	}

	if resetPin != nil {
		resetPin.Write(resetLevel)
		time.Sleep(100 * time.Millisecond)
		resetPin.Write(!resetLevel)
	}

	l.indata = 0
	l.inbits = 0
	l.odata = syncSentinel
	l.clockBit = 0
	if l.passive {
		l.dout.Write(false)
		l.ckout.Write(false)
	} else {
		l.dout.Write(l.odata&1 != 0)
		l.ckout.Write(true)
		l.odata >>= 1
		l.clockBit = 1
	}

	l.mu.Lock()
	l.phase = Unsynced
	l.lastRxUS = sched.NowUS()
	l.mu.Unlock()

	done := make(chan struct{})
	pid, err := l.sch.AddThread(func(y sched.Yielder) {
		l.runTask(y, done)
	})
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.pid = pid
	l.doneCh = done
	l.mu.Unlock()
	return nil
}

// Running reports whether the link has not (yet) timed out.
func (l *Link) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.checkTimeoutLocked(sched.NowUS())
	return l.phase != TimedOut
}

// SetTimeout sets the liveness timeout in microseconds (0 disables it)
// and returns the previous value.
func (l *Link) SetTimeout(us int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	old := l.timeoutUS
	l.timeoutUS = us
	return old
}

// Any returns the number of fully-received messages waiting in the
// receive queue.
func (l *Link) Any() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rxQueue)
}

func (l *Link) checkTimeoutLocked(now uint64) bool {
	if l.timeoutUS <= 0 || l.phase != Synced {
		return false
	}
	if sched.Elapsed(l.lastRxUS, now) >= l.timeoutUS {
		l.phase = TimedOut
		return true
	}
	return false
}

// runTask is the link's sole background task: an initial bare yield
// (mirroring AddThread driving every task to its first suspension point
// before run() starts dispatching), the Unsynced handshake, then the
// framed send/receive loop batched by latency.
//
// Every per-bit clock wait yields (sched.RoundRobin) instead of
// busy-spinning, and waitEdge checks the liveness timeout on every spin
// of that wait: a peer that has gone silent mid-character is noticed
// directly, rather than only after a character happens to complete.
func (l *Link) runTask(y sched.Yielder, done chan struct{}) {
	defer func() {
		l.dout.Write(false)
		l.ckout.Write(false)
		close(done)
	}()

	y.Yield(sched.RoundRobin())

	for l.indata != syncSentinel {
		if timedOut := l.synchronise(y); timedOut {
			return
		}
	}

	l.mu.Lock()
	l.rxQueue = nil
	l.phase = Synced
	l.lastRxUS = sched.NowUS()
	l.mu.Unlock()

	var sendBuf []byte
	sendIdx := -1
	var getBuf []byte
	latency := l.latency

	for {
		l.mu.Lock()
		if sendIdx < 0 && len(l.txQueue) > 0 {
			sendBuf = l.txQueue[0]
			l.txQueue = l.txQueue[1:]
			sendIdx = 0
		}
		l.mu.Unlock()

		if sendIdx >= 0 {
			if sendIdx < len(sendBuf) {
				l.odata = uint32(sendBuf[sendIdx])
				sendIdx++
			} else {
				sendIdx = -1
			}
		}
		if sendIdx < 0 {
			l.odata = terminatorByte
		}

		if timedOut := l.getByte(y); timedOut {
			return
		}

		// A completed getByte is a received character regardless of
		// its value: the peer's clock just toggled, which is all
		// liveness needs. Filler/terminator bytes dominate an idle
		// line and must not starve this update.
		l.mu.Lock()
		l.lastRxUS = sched.NowUS()
		l.mu.Unlock()

		if l.indata != terminatorByte {
			getBuf = append(getBuf, byte(l.indata))
		} else if len(getBuf) > 0 {
			l.mu.Lock()
			l.rxQueue = append(l.rxQueue, getBuf)
			l.mu.Unlock()
			getBuf = nil
		}

		latency--
		if latency <= 0 {
			latency = l.latency
			y.Yield(sched.RoundRobin())
		}
	}
}

// waitEdge blocks (cooperatively) until the peer has driven ckin to the
// level this side's clockBit demands next, then returns. It reports
// timedOut if the liveness timeout elapsed while waiting: the bit
// exchange that called it must abandon the character in progress rather
// than sample a clock edge that may never come.
func (l *Link) waitEdge(y sched.Yielder) (timedOut bool) {
	passiveBit := 0
	if l.passive {
		passiveBit = 1
	}
	blocked := (l.clockBit^passiveBit^1) != 0
	for l.ckin.Read() == blocked {
		l.mu.Lock()
		timedOut = l.checkTimeoutLocked(sched.NowUS())
		l.mu.Unlock()
		if timedOut {
			return true
		}
		y.Yield(sched.RoundRobin())
	}
	return false
}

// shiftBit exchanges one bit cell: it waits for the clock edge, samples
// din into dest at bit position insertAt (then discards the lowest bit
// of dest, shifting the window), drives the next outgoing bit, and
// toggles the clock. timedOut reports a liveness timeout while waiting
// for the edge, in which case dest is returned unchanged.
func (l *Link) shiftBit(y sched.Yielder, dest uint32, insertAt uint) (result uint32, timedOut bool) {
	if l.waitEdge(y) {
		return dest, true
	}
	var bit uint32
	if l.din.Read() {
		bit = 1
	}
	dest = (dest | (bit << insertAt)) >> 1
	l.dout.Write(l.odata&1 != 0)
	l.odata >>= 1
	l.clockBit ^= 1
	l.ckout.Write(l.clockBit != 0)
	return dest, false
}

func (l *Link) synchronise(y sched.Yielder) (timedOut bool) {
	l.indata, timedOut = l.shiftBit(y, l.indata, bitsSyn)
	return timedOut
}

// getByte shifts in one full character. The passive side's first bit of
// each character is the bit left outstanding from the previous
// character's shift register, an "MSB is outstanding" pipelining that
// keeps the two sides' bit boundaries aligned without either needing to
// know the other's byte boundary in advance. timedOut reports a
// liveness timeout partway through the character.
func (l *Link) getByte(y sched.Yielder) (timedOut bool) {
	bits := codec.BitsPerChannel
	if l.passive {
		l.indata, timedOut = l.shiftBit(y, l.inbits, uint(bits))
		if timedOut {
			return true
		}
		inbits := uint32(0)
		for i := 0; i < bits-1; i++ {
			inbits, timedOut = l.shiftBit(y, inbits, uint(bits))
			if timedOut {
				return true
			}
		}
		l.inbits = inbits
	} else {
		inbits := uint32(0)
		for i := 0; i < bits; i++ {
			inbits, timedOut = l.shiftBit(y, inbits, uint(bits))
			if timedOut {
				return true
			}
		}
		l.indata = inbits
	}
	return false
}
