//go:build bits8

package codec

// BitsPerChannel is 8 under the bits8 build tag: the link hardware is
// known to pass every bit of every byte cleanly, so no bit is sacrificed
// to framing. See bits7.go for the default.
const BitsPerChannel = 8

const (
	escByte = 0xFF
	escMask = 0x80
)
