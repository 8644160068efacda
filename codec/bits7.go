//go:build !bits8

package codec

// BitsPerChannel is the payload width of one transmitted byte. The
// default build keeps the top bit clear on every byte SynCom puts on the
// wire, matching link hardware that only guarantees seven clean bits per
// character. Build with -tags bits8 to use the full byte instead (see
// bits8.go); the choice is made once, at compile time, never negotiated
// between peers.
const BitsPerChannel = 7

// escByte is the one payload value that introduces an escape instead of
// being transmitted literally: it would otherwise be indistinguishable
// from the "escape follows" marker it plays here. escMask recovers the
// original value from the byte following it.
const (
	escByte = 0x7F
	escMask = 0x40
)
