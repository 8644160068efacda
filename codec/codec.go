// Package codec is SynCom's serializer collaborator: it turns an
// arbitrary Go value into a zero-free, link-clean byte string and back.
// github.com/vmihailenco/msgpack/v5 plays pickle's role — a general
// object codec, not a fixed schema — and a second pass (sevenbit.go)
// guarantees the wire-level property the link protocol depends on: no
// transmitted byte is ever the terminator (0x00), and under the default
// build every byte's top bit is clear.
package codec

import "github.com/vmihailenco/msgpack/v5"

// Encode serializes v and stuffs the result so it is safe to hand,
// byte-by-byte, to a SynCom link.
func Encode(v any) ([]byte, error) {
	raw, err := msgpack.Marshal(v)
	if err != nil {
		return nil, ErrEncode
	}
	out, err := stuff(raw)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Decode reverses Encode. The returned value has msgpack's usual dynamic
// shape: maps decode as map[string]any, arrays as []any, and so on.
func Decode(data []byte) (any, error) {
	raw, err := unstuff(data)
	if err != nil {
		return nil, err
	}
	var v any
	if err := msgpack.Unmarshal(raw, &v); err != nil {
		return nil, ErrDecode
	}
	return v, nil
}
