package syncom

import "errors"

// ErrLinkLost names the TimedOut condition: no character has crossed the
// wire for longer than the configured timeout. No function in this
// package returns it; Running reports the condition as false and
// AwaitObj's poll as 2. Recovery is the caller's responsibility: call
// Start again.
var ErrLinkLost = errors.New("syncom: link timed out")

// ErrEmptyMessage rejects Send/SendStr calls with zero-length payloads: an
// empty frame is indistinguishable on the wire from the terminator itself.
var ErrEmptyMessage = errors.New("syncom: cannot send an empty message")
