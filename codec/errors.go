package codec

import "errors"

var (
	// ErrEncode is returned by Encode when a value cannot be serialized
	// at all, or when its serialized form reaches maxFramePayload bytes.
	ErrEncode = errors.New("codec: value could not be encoded")

	// ErrDecode is returned by Decode when the stuffed byte stream holds
	// a literal zero or ends in a dangling escape byte, or when the
	// unstuffed bytes are not valid msgpack.
	ErrDecode = errors.New("codec: malformed encoded payload")
)
