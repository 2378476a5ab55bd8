// Package comm provides connection handling for lab instruments and the
// bridge boards used to program synthesizers.
//
// There are two ways to talk to hardware with this package.  A RemoteDevice
// owns exactly one connection and knows the terminators of the remote, which
// suits serial devices that are opened for one transaction and closed again.
// A Pool leases connections created by a CreationFunc to concurrent callers
// and closes them after an idle timeout, which suits network instruments and
// is what package scpi uses.
//
// A minimal example for a bridge that answers "ID?" with its name:
//
//	rd := comm.NewRemoteDevice("/dev/ttyUSB0", true, &comm.Terminators{Rx: '\n', Tx: '\n'},
//		&serial.Config{Name: "/dev/ttyUSB0", Baud: 115200})
//	if err := rd.Open(); err != nil {
//		return err
//	}
//	defer rd.Close()
//	resp, err := rd.SendRecv([]byte("ID?"))
package comm

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"
)

var (
	defaultTerminator = byte('\r')

	// ErrNoSerialConf is generated when IsSerial is true and no serial config was given
	ErrNoSerialConf = errors.New("remote device is serial but has no serial config")

	// ErrNotConnected is generated when .Conn is nil and Send or Recv is called.
	ErrNotConnected = errors.New("conn is nil, not connected to remote")

	// ErrTerminatorNotFound is generated when the termination byte is not found in a response
	ErrTerminatorNotFound = errors.New("termination byte not found")
)

// Terminators holds the receipt and transmission termination bytes
type Terminators struct {
	Rx byte
	Tx byte
}

// Sender has a Send method that passes along a byte slice
type Sender interface {
	Send([]byte) error
}

// Recver has a Recv method that gets a byte slice
type Recver interface {
	Recv() ([]byte, error)
}

// SendRecver can send and recieve, and provides a method that sends then recieves
type SendRecver interface {
	Sender
	Recver

	SendRecv([]byte) ([]byte, error)
}

// A Communicator can Open, Send, Recv and Close
type Communicator interface {
	io.Closer
	SendRecver

	Open() error
}

// RemoteDevice has an address and implements Communicator.
//
// If IsSerial is true, Addr is the name of the port and SerialConf is used to
// open it.  Otherwise Addr is a host:port for TCP.
type RemoteDevice struct {
	Addr       string
	IsSerial   bool
	Conn       io.ReadWriteCloser
	SerialConf *serial.Config
	Timeout    time.Duration

	term Terminators
	rd   *bufio.Reader
}

// NewRemoteDevice creates a new RemoteDevice instance.  A nil tms
// uses carriage returns in both directions.
func NewRemoteDevice(addr string, serial bool, tms *Terminators, serCfg *serial.Config) RemoteDevice {
	term := Terminators{Rx: defaultTerminator, Tx: defaultTerminator}
	if tms != nil {
		term = *tms
	}
	return RemoteDevice{
		Addr:       addr,
		IsSerial:   serial,
		SerialConf: serCfg,
		Timeout:    3 * time.Second,
		term:       term}
}

// Open the connection, setting the Conn variable
func (rd *RemoteDevice) Open() error {
	if rd.Conn != nil {
		return nil
	}
	// an exponential backoff, the USB serial bridges
	// do not like being connection thrashed
	wasTimeout := false
	op := func() error {
		err := rd.open()
		if err != nil {
			if errors.Is(err, ErrNoSerialConf) {
				return backoff.Permanent(err)
			}
			errS := strings.ToLower(err.Error())
			if strings.Contains(errS, "refused") || strings.Contains(errS, "no such") {
				return backoff.Permanent(err)
			}
			wasTimeout = true
			return err
		}
		wasTimeout = false
		return nil
	}

	err := backoff.Retry(op, newBackoff(3*time.Second))
	if err == nil {
		return nil
	}
	if wasTimeout {
		return fmt.Errorf("connection timeout to %s: %w", rd.Addr, err)
	}
	return err
}

func (rd *RemoteDevice) open() error {
	var err error
	var conn io.ReadWriteCloser
	if rd.IsSerial {
		if rd.SerialConf == nil {
			return ErrNoSerialConf
		}
		conn, err = serial.OpenPort(rd.SerialConf)
	} else {
		conn, err = TCPSetup(rd.Addr, rd.Timeout)
	}
	if err != nil {
		return err
	}
	rd.Conn = conn
	rd.rd = bufio.NewReader(conn)
	return nil
}

// Close the connection, nil-ing the Conn variable
func (rd *RemoteDevice) Close() error {
	if rd.Conn == nil {
		return nil
	}
	err := rd.Conn.Close()
	if err == nil {
		rd.Conn = nil
		rd.rd = nil
	}
	return err
}

// Send writes data to the remote after appending the Tx terminator
func (rd *RemoteDevice) Send(b []byte) error {
	if rd.Conn == nil {
		return ErrNotConnected
	}
	buf := make([]byte, 0, len(b)+1)
	buf = append(buf, b...)
	buf = append(buf, rd.term.Tx)
	_, err := rd.Conn.Write(buf)
	return err
}

// Recv recieves data from the remote and strips the Rx terminator
func (rd *RemoteDevice) Recv() ([]byte, error) {
	if rd.Conn == nil {
		return nil, ErrNotConnected
	}
	if rd.rd == nil {
		rd.rd = bufio.NewReader(rd.Conn)
	}
	term := rd.term.Rx
	buf, err := rd.rd.ReadBytes(term)
	if err != nil {
		if err == io.EOF && len(buf) > 0 {
			return buf, ErrTerminatorNotFound
		}
		return []byte{}, err
	}
	return bytes.TrimSuffix(buf, []byte{term}), nil
}

// SendRecv sends a buffer after appending the Tx terminator,
// then returns the response with the Rx terminator stripped
func (rd *RemoteDevice) SendRecv(b []byte) ([]byte, error) {
	if err := rd.Send(b); err != nil {
		return []byte{}, err
	}
	return rd.Recv()
}

// TCPSetup opens a new TCP connection and sets a timeout on connect, read, and write
func TCPSetup(addr string, timeout time.Duration) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	deadline := time.Now().Add(timeout)
	conn.SetReadDeadline(deadline)
	conn.SetWriteDeadline(deadline)
	return conn, nil
}

func newBackoff(maxElapsed time.Duration) *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      maxElapsed,
		Clock:               backoff.SystemClock}
	b.Reset()
	return b
}
