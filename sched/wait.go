package sched

import "sync/atomic"

// PID identifies a task for the lifetime of the Sched process that created
// it.
type PID uint32

// Tuple is the resume payload delivered to a task at its suspension point:
// the scheduling tuple carried back from evaluate, also used as
// dispatch's priority key.
type Tuple struct {
	PinHits    uint32
	PollValue  uint32
	LatenessUS int64
}

// isZero reports whether the tuple carries no eligibility signal at all,
// the round-robin case.
func (t Tuple) isZero() bool {
	return t.PinHits == 0 && t.PollValue == 0 && t.LatenessUS == 0
}

// less orders two tuples by the dispatch priority rule: lexicographic
// comparison of (PinHits, PollValue, LatenessUS).
func (t Tuple) less(o Tuple) bool {
	if t.PinHits != o.PinHits {
		return t.PinHits < o.PinHits
	}
	if t.PollValue != o.PollValue {
		return t.PollValue < o.PollValue
	}
	return t.LatenessUS < o.LatenessUS
}

// WaitDescriptor is the tagged variant a task hands the scheduler at each
// suspension point. The five concrete implementations below are the only
// legal cases; dispatch() matches on them exhaustively via evaluate.
type WaitDescriptor interface {
	// evaluate is called once per dispatch cycle for a pending task. It
	// returns the scheduling tuple and whether the task is eligible to
	// run at all. now is the dispatch cycle's snapshot of NowUS().
	evaluate(now uint64) (Tuple, bool)

	// roundRobin reports whether this descriptor belongs to the
	// lowest-priority, rotation-scheduled tier.
	roundRobin() bool
}

// committer is implemented by descriptors whose evaluate only peeks at
// shared state instead of draining it, because selectNext evaluates
// every pending task but dispatch resumes only the winner. commit is
// called exactly once, on the winner's descriptor only, with the Tuple
// it was selected with, so it can destructively consume what was
// actually delivered.
type committer interface {
	commit(delivered Tuple)
}

// newlyAdded is the sentinel descriptor a task holds before its first
// resume. It is always eligible and carries no payload signal, folding
// into the round-robin tier for the very first dispatch after AddThread's
// priming run returns control to the scheduler.
type newlyAdded struct{}

func (newlyAdded) evaluate(uint64) (Tuple, bool) { return Tuple{}, true }
func (newlyAdded) roundRobin() bool              { return true }

// RoundRobin returns a wait descriptor meaning "run me again after every
// other pending round-robin task has had a turn." Yielding RoundRobin is
// how a task joins the fairest, lowest-priority tier. A nil descriptor is
// not treated as round-robin: the scheduler terminates the task that
// yields it and records ErrBadYield.
func RoundRobin() WaitDescriptor { return roundRobinDescriptor{} }

type roundRobinDescriptor struct{}

func (roundRobinDescriptor) evaluate(uint64) (Tuple, bool) { return Tuple{}, true }
func (roundRobinDescriptor) roundRobin() bool              { return true }

// Timeout is a wait descriptor meaning "run me no earlier than a deadline
// computed from secs from now; being more overdue wins over being less
// overdue." Re-yielding the same *Timeout re-arms it from the yield point.
type Timeout struct {
	secs     float64
	deadline uint64
	armed    bool
}

// NewTimeout constructs a Timeout that fires secs seconds from when it is
// first yielded (or re-armed). It returns ErrTimeRange if secs exceeds
// MaxSecs; compose longer delays with Wait.
func NewTimeout(secs float64) (*Timeout, error) {
	if secs > float64(MaxSecs) {
		return nil, ErrTimeRange
	}
	return &Timeout{secs: secs}, nil
}

// MustTimeout is NewTimeout without the error return, for call sites that
// have already validated secs (e.g. a constant).
func MustTimeout(secs float64) *Timeout {
	t, err := NewTimeout(secs)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Timeout) arm(now uint64) {
	d, err := deadlineAfter(now, int64(t.secs*1e6))
	if err != nil {
		// Already validated at construction; a re-arm cannot regress.
		d = now
	}
	t.deadline = d
	t.armed = true
}

func (t *Timeout) evaluate(now uint64) (Tuple, bool) {
	if !t.armed {
		t.arm(now)
	}
	late := lateness(t.deadline, now)
	if late <= 0 {
		return Tuple{}, false
	}
	return Tuple{LatenessUS: late}, true
}

// commit disarms a Timeout that has just won dispatch, so that yielding
// it again arms a fresh deadline instead of reusing the expired one.
func (t *Timeout) commit(Tuple) { t.armed = false }

func (*Timeout) roundRobin() bool { return false }

// Poller is a wait descriptor meaning "call fn on each dispatch cycle;
// I'm runnable with strength r when fn returns r != 0, else on timeout."
// fn must be cheap and side-effect-light: the scheduler calls it on every
// cycle that this task is pending, so its cost directly constrains
// dispatch throughput.
type Poller struct {
	fn    func(args ...any) uint32
	args  []any
	hasTO bool
	to    *Timeout
}

// NewPoller constructs a Poller. If timeoutSecs is negative, the poller
// never times out on its own (it is only runnable when fn reports an
// event). A non-negative timeoutSecs arms a Timeout alongside the poll.
func NewPoller(fn func(args ...any) uint32, timeoutSecs float64, args ...any) (*Poller, error) {
	p := &Poller{fn: fn, args: args}
	if timeoutSecs >= 0 {
		to, err := NewTimeout(timeoutSecs)
		if err != nil {
			return nil, err
		}
		p.to = to
		p.hasTO = true
	}
	return p, nil
}

func (p *Poller) evaluate(now uint64) (Tuple, bool) {
	if r := p.fn(p.args...); r != 0 {
		// Re-arm the timeout leg so the next yield's deadline restarts
		// from this successful poll, matching Timeout's re-arm law.
		if p.hasTO {
			p.to.armed = false
		}
		return Tuple{PollValue: r}, true
	}
	if p.hasTO {
		return p.to.evaluate(now)
	}
	return Tuple{}, false
}

func (*Poller) roundRobin() bool { return false }

// Pinblock is a wait descriptor meaning "run me when an interrupt-driven
// counter is non-zero, with strength equal to its snapshot; else on
// timeout." Construction installs an ISR on pin via install; the ISR
// increments an atomic counter and then (if userCB is set) calls it with
// irqID — the ISR is the only preemptive code in the system and must not
// allocate or block.
type Pinblock struct {
	counter atomic.Uint32
	detach  func()
	hasTO   bool
	to      *Timeout
}

// PinInterruptInstaller matches the shape of the Pin collaborator's
// AttachInterrupt method: it wires fire to the hardware edge and returns a
// detach function.
type PinInterruptInstaller func(fire func()) (detach func())

// NewPinblock installs an ISR via install that increments its own atomic
// counter, then invokes userCB (if non-nil) with a monotonically
// increasing irq id. If timeoutSecs is negative, the block never times
// out on its own.
func NewPinblock(install PinInterruptInstaller, userCB func(irqID uint32), timeoutSecs float64) (*Pinblock, error) {
	pb := &Pinblock{}
	if timeoutSecs >= 0 {
		to, err := NewTimeout(timeoutSecs)
		if err != nil {
			return nil, err
		}
		pb.to = to
		pb.hasTO = true
	}
	var irqID uint32
	pb.detach = install(func() {
		pb.counter.Add(1)
		if userCB != nil {
			irqID++
			userCB(irqID)
		}
	})
	return pb, nil
}

// Close detaches the installed ISR. Safe to call once a task holding this
// Pinblock terminates or replaces it.
func (pb *Pinblock) Close() {
	if pb.detach != nil {
		pb.detach()
	}
}

// evaluate peeks the ISR counter rather than draining it: selectNext
// calls evaluate on every pending task each cycle but resumes only the
// winner, so a destructive read here would discard the hits of every
// Pinblock that loses the priority comparison. commit is what actually
// consumes the delivered count, and only the winner gets a commit call.
func (pb *Pinblock) evaluate(now uint64) (Tuple, bool) {
	if n := pb.counter.Load(); n != 0 {
		if pb.hasTO {
			pb.to.armed = false
		}
		return Tuple{PinHits: n}, true
	}
	if pb.hasTO {
		return pb.to.evaluate(now)
	}
	return Tuple{}, false
}

// commit subtracts exactly the hit count delivered to the winning task,
// not a blind reset to zero: an ISR firing between evaluate and commit
// would otherwise be lost instead of surviving to the next cycle.
func (pb *Pinblock) commit(delivered Tuple) {
	pb.counter.Add(-delivered.PinHits)
}

func (*Pinblock) roundRobin() bool { return false }

// Wait composes repeated bounded Timeout sub-sleeps to cover a delay
// longer than MaxSecs. After it returns, the wall-clock interval since it
// was called is at least secs, bounded above only by other tasks'
// cooperation. Call it from a task body, passing that task's Yielder.
func Wait(y Yielder, secs float64) Tuple {
	var overshoot int64
	count := int64(secs / float64(MaxSecs))
	rem := secs - float64(count)*float64(MaxSecs)
	if rem > 0 {
		res := y.Yield(MustTimeout(rem))
		overshoot = res.LatenessUS
	}
	for ; count > 0; count-- {
		res := y.Yield(MustTimeout(float64(MaxSecs)))
		overshoot += res.LatenessUS
	}
	return Tuple{LatenessUS: overshoot}
}
