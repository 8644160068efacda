// Package link is the host-side counterpart of syncom.Link: it speaks the
// same terminator-delimited, codec-stuffed byte stream, but over a
// host/serial.Port (a USB-serial bridge) rather than bit-banged GPIOs,
// since a host process cannot toggle a target's clock/data lines directly.
// Connecting opens a Port, reads and decodes in a background goroutine,
// and queues each decoded value for the CLI/TUI to consume.
package link

import (
	"bufio"
	"errors"
	"sync"

	"synsched/codec"
	"synsched/host/serial"
)

// ErrClosed is returned by Send once the Link has been closed.
var ErrClosed = errors.New("link: closed")

// Link reads and writes codec-framed messages over a serial.Port.
type Link struct {
	port   serial.Port
	reader *bufio.Reader

	mu     sync.Mutex
	closed bool

	rx chan any
	rxErr chan error
}

// Open wraps an already-opened serial.Port and starts the background
// reader. Received messages are available from Recv; a frame that fails
// to decode is skipped without being reported, so one corrupt frame
// cannot wedge the whole stream. RecvErr carries only the read error that
// ends the loop.
func Open(port serial.Port) *Link {
	l := &Link{
		port:   port,
		reader: bufio.NewReader(port),
		rx:     make(chan any, 64),
		rxErr:  make(chan error, 1),
	}
	go l.readLoop()
	return l
}

func (l *Link) readLoop() {
	for {
		frame, err := l.reader.ReadBytes(0x00)
		if err != nil {
			select {
			case l.rxErr <- err:
			default:
			}
			close(l.rx)
			return
		}
		frame = frame[:len(frame)-1] // drop the terminator
		if len(frame) == 0 {
			continue
		}
		v, err := codec.Decode(frame)
		if err != nil {
			continue
		}
		l.rx <- v
	}
}

// Recv returns the channel of successfully decoded messages. It closes
// once the underlying port errors or is closed.
func (l *Link) Recv() <-chan any {
	return l.rx
}

// RecvErr returns the channel the read loop's terminal error (if any) is
// published on, exactly once.
func (l *Link) RecvErr() <-chan error {
	return l.rxErr
}

// Send encodes v and writes it, terminator included, to the port.
func (l *Link) Send(v any) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}
	data, err := codec.Encode(v)
	if err != nil {
		return err
	}
	_, err = l.port.Write(append(data, 0x00))
	return err
}

// Close closes the underlying port; the read loop then exits on its next
// Read error.
func (l *Link) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return l.port.Close()
}
