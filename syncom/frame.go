package syncom

import "synsched/codec"

// Send queues v for transmission: codec.Encode turns it into a zero-free,
// link-clean byte string, which runTask frames with a terminator the same
// way a queued, already-serialized string was framed before it.
func (l *Link) Send(v any) error {
	data, err := codec.Encode(v)
	if err != nil {
		return err
	}
	return l.enqueue(data)
}

// SendStr queues s for transmission verbatim, bypassing codec.Encode. The
// caller is responsible for s being 7-bit-clean (or 8-bit-clean under the
// bits8 build) and free of zero bytes, since a zero on the wire ends the
// message; nothing downstream re-checks it.
func (l *Link) SendStr(s string) error {
	return l.enqueue([]byte(s))
}

func (l *Link) enqueue(data []byte) error {
	if len(data) == 0 {
		return ErrEmptyMessage
	}
	l.mu.Lock()
	l.txQueue = append(l.txQueue, data)
	l.mu.Unlock()
	return nil
}

func (l *Link) dequeue() ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.rxQueue) == 0 {
		return nil, false
	}
	data := l.rxQueue[0]
	l.rxQueue = l.rxQueue[1:]
	return data, true
}

// Get pops and decodes the oldest fully-received message. ok is false if
// no message is waiting; an error means a message arrived but failed to
// decode (a framing or codec bug, not a timeout).
func (l *Link) Get() (v any, ok bool, err error) {
	data, ok := l.dequeue()
	if !ok {
		return nil, false, nil
	}
	v, err = codec.Decode(data)
	return v, true, err
}

// GetStr pops the oldest fully-received message as a raw string, the
// send_str counterpart: no codec.Decode is applied.
func (l *Link) GetStr() (string, bool) {
	data, ok := l.dequeue()
	if !ok {
		return "", false
	}
	return string(data), true
}
