package sched

import "errors"

// Error kinds surfaced by the scheduler. All are data-shaped sentinel
// values: none carry a payload beyond what the caller already holds
// (its pid, its requested delay).
var (
	// ErrTimeRange is returned when a caller-supplied delay exceeds MAXSECS.
	ErrTimeRange = errors.New("sched: delay exceeds MAXSECS")

	// ErrBadThread is returned by AddThread when a task body ran to
	// completion before its first suspension point.
	ErrBadThread = errors.New("sched: task completed before first yield")

	// ErrTaskGone is returned by Pause/Resume/Stop when the target pid
	// has already terminated.
	ErrTaskGone = errors.New("sched: task is gone")

	// ErrReentrant is returned by Run when the scheduler is already
	// running.
	ErrReentrant = errors.New("sched: scheduler is already running")

	// ErrBadYield is recorded against a task that handed the scheduler
	// something other than a valid WaitDescriptor. The offending task is
	// terminated; the scheduler continues running the rest.
	ErrBadYield = errors.New("sched: task yielded an invalid wait descriptor")
)
