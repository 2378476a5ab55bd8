package comm

import (
	"bytes"
	"errors"
	"io"
	"time"
)

// ErrNoDeadline is generated when NewTimeout wraps something that cannot take deadlines
var ErrNoDeadline = errors.New("connection does not support deadlines")

type deadliner interface {
	SetDeadline(time.Time) error
}

// Terminator wraps a ReadWriter, appending Tx to every Write and reading
// until Rx is seen
type Terminator struct {
	rw io.ReadWriter
	rx byte
	tx byte
}

// NewTerminator wraps rw with the given terminators
func NewTerminator(rw io.ReadWriter, rx, tx byte) *Terminator {
	return &Terminator{rw: rw, rx: rx, tx: tx}
}

// Write sends p followed by the Tx terminator.  The returned count does not
// include the terminator.
func (t *Terminator) Write(p []byte) (int, error) {
	buf := make([]byte, 0, len(p)+1)
	buf = append(buf, p...)
	buf = append(buf, t.tx)
	n, err := t.rw.Write(buf)
	if n > len(p) {
		n = len(p)
	}
	return n, err
}

// Read fills p until the Rx terminator arrives, p is full, or the
// underlying reader errors.  The terminator is kept in p.
func (t *Terminator) Read(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := t.rw.Read(p[total:])
		if n > 0 && bytes.IndexByte(p[total:total+n], t.rx) >= 0 {
			return total + n, nil
		}
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, ErrTerminatorNotFound
}

// SetDeadline forwards to the wrapped connection if it supports deadlines
func (t *Terminator) SetDeadline(d time.Time) error {
	if dl, ok := t.rw.(deadliner); ok {
		return dl.SetDeadline(d)
	}
	return ErrNoDeadline
}

// Timeout wraps a ReadWriter that supports deadlines, arming a fresh
// deadline before every Read and Write
type Timeout struct {
	rw      io.ReadWriter
	dl      deadliner
	timeout time.Duration
}

// NewTimeout wraps rw.  Connections without deadlines (serial ports, USB)
// are returned unwrapped.
func NewTimeout(rw io.ReadWriter, timeout time.Duration) (io.ReadWriter, error) {
	dl, ok := rw.(deadliner)
	if !ok {
		return rw, nil
	}
	if err := dl.SetDeadline(time.Now().Add(timeout)); err != nil {
		if err == ErrNoDeadline {
			return rw, nil
		}
		return nil, err
	}
	return &Timeout{rw: rw, dl: dl, timeout: timeout}, nil
}

func (t *Timeout) Read(p []byte) (int, error) {
	if err := t.dl.SetDeadline(time.Now().Add(t.timeout)); err != nil {
		return 0, err
	}
	return t.rw.Read(p)
}

func (t *Timeout) Write(p []byte) (int, error) {
	if err := t.dl.SetDeadline(time.Now().Add(t.timeout)); err != nil {
		return 0, err
	}
	return t.rw.Write(p)
}
