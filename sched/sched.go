package sched

import (
	"runtime"
	"sort"
	"sync"
	"time"
)

// Status is a task's lifecycle state, returned by Sched.Status.
type Status int

const (
	// Terminated marks a task the scheduler no longer tracks.
	Terminated Status = 0
	// Running marks a task eligible for selection.
	Running Status = 1
	// Paused marks a task excluded from selection until Resume.
	Paused Status = 2
)

// GCTime is the minimum interval between idle-task heap-compaction passes,
// matching usched.py's Sched.GCTIME.
const GCTime = 50 * time.Millisecond

// HeartbeatPeriod is the toggle cadence of the optional heartbeat pin, a
// 500ms liveness indicator.
const HeartbeatPeriod = 500 * time.Millisecond

// Yielder is the handle a task body uses to suspend itself. A task's body
// has the shape func(y Yielder), and calls y.Yield at every suspension
// point.
type Yielder interface {
	// Yield hands d to the scheduler and blocks until this task is next
	// resumed, returning the resume payload computed for that dispatch.
	Yield(d WaitDescriptor) Tuple
}

// task is the scheduler's private bookkeeping record. External code only
// ever holds a task's PID.
type task struct {
	pid      PID
	status   Status
	desc     WaitDescriptor
	rrRank   uint64 // round-robin rotation sequence number last serviced
	yieldCh  chan WaitDescriptor
	resumeCh chan Tuple
	done     chan struct{}
	killCh   chan struct{}
}

// Yield hands d to the scheduler and blocks until resumed. A task stopped
// by Stop while suspended here never sees resumeCh fire again; instead
// killCh is closed and Yield ends the goroutine via runtime.Goexit
// without returning to the task body, so a stopped task cannot observe
// its own cancellation and cannot leak its goroutine either.
func (t *task) Yield(d WaitDescriptor) Tuple {
	t.yieldCh <- d
	select {
	case tup := <-t.resumeCh:
		return tup
	case <-t.killCh:
		runtime.Goexit()
		panic("unreachable")
	}
}

// DispatchEvent records one winning dispatch for Sched.RecentEvents, the
// scheduler's own instrumentation hook (see InstrumentRingSize).
type DispatchEvent struct {
	PID   PID
	Tuple Tuple
	At    uint64
}

// InstrumentRingSize bounds the dispatch-history ring kept for
// post-mortem/testing use.
const InstrumentRingSize = 64

// Sched is the cooperative scheduler. There should be at most one
// instance in flight per process; it owns every task added to it from
// AddThread until that task terminates or is Stopped.
type Sched struct {
	mu        sync.Mutex
	tasks     map[PID]*task
	order     []PID // insertion order, for add-order tie-breaking of new arrivals
	nextPID   PID
	running   bool
	stopAll   bool
	stopPID   PID
	gcEnable  bool
	heartbeat heartbeatPin
	lastGC    time.Time
	rrClock   uint64
	events    [InstrumentRingSize]DispatchEvent
	eventHead int
	eventN    int

	lastBadYield    PID
	lastBadYieldErr error
}

// heartbeatPin is the narrow interface Sched needs from a pin.Pin to
// drive the optional heartbeat indicator, kept local to avoid sched
// importing pin (the dependency runs the other way: demos wire a real
// pin.Pin in at construction).
type heartbeatPin interface {
	Write(bool)
}

// New constructs a scheduler. gcEnable turns on the idle task's periodic
// heap-compaction pass (see GCTime); heartbeat, if non-nil, is toggled by
// the idle task every HeartbeatPeriod.
func New(gcEnable bool, heartbeat heartbeatPin) *Sched {
	return &Sched{
		tasks:     make(map[PID]*task),
		gcEnable:  gcEnable,
		heartbeat: heartbeat,
	}
}

// AddThread assigns a fresh PID, installs body with the NewlyAdded
// descriptor, and immediately drives it to its first suspension point so
// that initializing statements run in AddThread call order. If body
// returns before yielding at all, AddThread reports ErrBadThread and the
// PID is not reused.
//
// Calling AddThread from within a running task's body is the normal
// "spawn a helper task" path; the new task participates starting from the
// scheduler's next dispatch cycle, never the one in progress. Calling it
// from interrupt context is not supported — it allocates and blocks.
func (s *Sched) AddThread(body func(y Yielder)) (PID, error) {
	s.mu.Lock()
	pid := s.nextPID + 1
	s.nextPID = pid
	s.mu.Unlock()

	t := &task{
		pid:      pid,
		status:   Running,
		desc:     newlyAdded{},
		yieldCh:  make(chan WaitDescriptor),
		resumeCh: make(chan Tuple),
		done:     make(chan struct{}),
		killCh:   make(chan struct{}),
	}

	go func() {
		defer close(t.done)
		body(t)
	}()

	select {
	case d := <-t.yieldCh:
		t.desc = d
	case <-t.done:
		return 0, ErrBadThread
	}

	s.mu.Lock()
	s.tasks[pid] = t
	s.order = append(s.order, pid)
	s.mu.Unlock()
	return pid, nil
}

// Pause excludes pid from selection until Resume. The currently-running
// task may pause itself; the effect takes hold at its next suspension.
// Returns ErrTaskGone if pid has already terminated.
func (s *Sched) Pause(pid PID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[pid]
	if !ok {
		return ErrTaskGone
	}
	t.status = Paused
	return nil
}

// Resume restores pid to Running; it resumes with whatever wait
// descriptor it had before pausing. Returns ErrTaskGone if pid has
// already terminated.
func (s *Sched) Resume(pid PID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[pid]
	if !ok {
		return ErrTaskGone
	}
	t.status = Running
	return nil
}

// Stop terminates pid: its resumable state is dropped and it never runs
// again. With pid==0, the scheduler itself stops after finishing the
// currently dispatched task — no further dispatches occur and Run
// returns to its caller.
func (s *Sched) Stop(pid PID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pid == 0 {
		s.stopAll = true
		return nil
	}
	t, ok := s.tasks[pid]
	if !ok {
		return ErrTaskGone
	}
	delete(s.tasks, pid)
	s.removeFromOrder(pid)
	if pb, ok := t.desc.(*Pinblock); ok {
		pb.Close()
	}
	close(t.killCh)
	return nil
}

func (s *Sched) removeFromOrder(pid PID) {
	for i, p := range s.order {
		if p == pid {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// Status reports pid's lifecycle state. A pid that was never issued or
// has been Stopped reports Terminated.
func (s *Sched) Status(pid PID) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[pid]
	if !ok {
		return Terminated
	}
	return t.status
}

// RecentEvents returns up to InstrumentRingSize of the most recently
// dispatched (pid, tuple) pairs, oldest first. It is the scheduler's own
// instrumentation hook, used by tests asserting dispatch-ordering
// invariants and by the host-side monitor.
func (s *Sched) RecentEvents() []DispatchEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DispatchEvent, s.eventN)
	for i := 0; i < s.eventN; i++ {
		out[i] = s.events[(s.eventHead-s.eventN+i+InstrumentRingSize)%InstrumentRingSize]
	}
	return out
}

func (s *Sched) recordEvent(ev DispatchEvent) {
	s.events[s.eventHead] = ev
	s.eventHead = (s.eventHead + 1) % InstrumentRingSize
	if s.eventN < InstrumentRingSize {
		s.eventN++
	}
}

// Run enters the dispatch loop and does not return until every task has
// terminated or Stop(0) has been called. Calling Run while already
// running returns ErrReentrant.
func (s *Sched) Run() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrReentrant
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	for {
		s.mu.Lock()
		if len(s.tasks) == 0 || s.stopAll {
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()

		winner, tuple, ok := s.selectNext()

		// Step 6/7 of the dispatch algorithm: idle-task housekeeping
		// runs only on a cycle with no higher-priority work ready
		// (nothing eligible, or a round-robin winner), and is gated
		// internally on elapsed time.
		if !ok || tuple.isZero() {
			s.idle()
		}
		if !ok {
			// Nothing eligible this instant: every pending task is
			// paused or waiting on a future deadline/poll/interrupt.
			continue
		}
		if c, ok := winner.desc.(committer); ok {
			c.commit(tuple)
		}
		if !s.dispatch(winner, tuple) {
			return nil
		}
	}
}

// selectNext evaluates every Running task's descriptor and returns the
// highest-priority winner per the §4.3 rule: lexicographic maximum of
// (pin_hits, poll_value, lateness_us), with round-robin tasks eligible
// only when nothing else is, served in strict rotation, ties on
// lateness broken by lower pid.
func (s *Sched) selectNext() (*task, Tuple, bool) {
	now := NowUS()

	s.mu.Lock()
	pids := make([]PID, 0, len(s.tasks))
	for _, p := range s.order {
		if _, ok := s.tasks[p]; ok {
			pids = append(pids, p)
		}
	}
	s.mu.Unlock()

	type candidate struct {
		t     *task
		tuple Tuple
	}
	var priority []candidate
	var roundRobin []candidate

	for _, pid := range pids {
		s.mu.Lock()
		t, ok := s.tasks[pid]
		s.mu.Unlock()
		if !ok || t.status != Running {
			continue
		}
		tuple, eligible := t.desc.evaluate(now)
		if !eligible {
			continue
		}
		if t.desc.roundRobin() || tuple.isZero() {
			roundRobin = append(roundRobin, candidate{t, tuple})
		} else {
			priority = append(priority, candidate{t, tuple})
		}
	}

	if len(priority) > 0 {
		sort.Slice(priority, func(i, j int) bool {
			a, b := priority[i], priority[j]
			if a.tuple != b.tuple {
				return b.tuple.less(a.tuple)
			}
			return a.t.pid < b.t.pid
		})
		return priority[0].t, priority[0].tuple, true
	}
	if len(roundRobin) == 0 {
		return nil, Tuple{}, false
	}
	sort.Slice(roundRobin, func(i, j int) bool {
		a, b := roundRobin[i], roundRobin[j]
		if a.t.rrRank != b.t.rrRank {
			return a.t.rrRank < b.t.rrRank
		}
		return a.t.pid < b.t.pid
	})
	winner := roundRobin[0].t
	s.rrClock++
	winner.rrRank = s.rrClock
	return winner, roundRobin[0].tuple, true
}

// dispatch resumes winner with tuple and waits for its next suspension
// (or termination). It returns false iff Stop(0) was requested from
// inside the resumed task, signalling Run to return.
func (s *Sched) dispatch(winner *task, tuple Tuple) bool {
	s.recordEvent(DispatchEvent{PID: winner.pid, Tuple: tuple, At: NowUS()})

	select {
	case winner.resumeCh <- tuple:
	case <-winner.killCh:
		// Stopped by another goroutine between selection and resume;
		// its bookkeeping is already gone, there is nothing left to do.
		s.mu.Lock()
		stop := s.stopAll
		s.mu.Unlock()
		return !stop
	}
	select {
	case d := <-winner.yieldCh:
		if d == nil {
			s.failYield(winner)
		} else {
			winner.desc = d
		}
	case <-winner.done:
		s.mu.Lock()
		delete(s.tasks, winner.pid)
		s.removeFromOrder(winner.pid)
		s.mu.Unlock()
	}

	s.mu.Lock()
	stop := s.stopAll
	s.mu.Unlock()
	return !stop
}

// failYield terminates a task that handed the scheduler something other
// than a valid WaitDescriptor — a programming error in user code. The
// scheduler itself is unaffected and continues with the remaining tasks;
// the failure is recorded and retrievable through LastBadYield.
func (s *Sched) failYield(winner *task) {
	s.mu.Lock()
	delete(s.tasks, winner.pid)
	s.removeFromOrder(winner.pid)
	s.lastBadYield = winner.pid
	s.lastBadYieldErr = ErrBadYield
	s.mu.Unlock()
}

// LastBadYield reports the pid and error of the most recently terminated
// task that yielded something other than a valid WaitDescriptor, or
// (0, nil) if that has never happened.
func (s *Sched) LastBadYield() (PID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastBadYield, s.lastBadYieldErr
}

// idle is the scheduler's internal round-robin task: heap compaction (when
// gcEnable and GCTime has elapsed) and the heartbeat toggle, run only when
// no higher-priority work is ready, so it never delays real work.
func (s *Sched) idle() {
	if s.gcEnable && (s.lastGC.IsZero() || time.Since(s.lastGC) >= GCTime) {
		runtime.GC()
		s.lastGC = time.Now()
	}
	if s.heartbeat != nil {
		phase := (time.Now().UnixMilli() / int64(HeartbeatPeriod/time.Millisecond)) % 2
		s.heartbeat.Write(phase == 0)
	}
}
