// Package scpi provides primitives for working with devices that
// have SCPI interfaces
package scpi

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/synteira/rflab/comm"
)

const (
	timeout = 5 * time.Second

	tcpFrameSize = 1500
)

var (
	// ErrNotBlock is generated when a response expected to be an IEEE 488.2
	// definite length block does not start with '#'
	ErrNotBlock = errors.New("response is not a definite length block")

	// ErrEmptyResponse is generated when the device answers a query with nothing
	ErrEmptyResponse = errors.New("empty response")
)

// SCPI is a type for encapsulating SCPI communication
type SCPI struct {
	Pool *comm.Pool

	// Handshaking indicates if the communication shall use handshaking,
	// where an error query is sent with every message
	// to ensure the device accepted the input
	Handshaking bool

	// Timeout bounds each transaction, defaults to 5 s
	Timeout time.Duration
}

// noError is true for the "no error" answers of Keysight (+0,"No error")
// and Rigol (0,"No error") instruments
func noError(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "+0") || strings.HasPrefix(s, "0,") || s == "0"
}

func (s *SCPI) wrap(conn io.ReadWriter) (io.ReadWriter, error) {
	to := s.Timeout
	if to == 0 {
		to = timeout
	}
	return comm.NewTimeout(comm.NewTerminator(conn, '\n', '\n'), to)
}

// blockTimeout bounds each read of a block transfer.  Screenshots take a
// few seconds to render before the first byte arrives.
func (s *SCPI) blockTimeout() time.Duration {
	if s.Timeout > 2*timeout {
		return s.Timeout
	}
	return 2 * timeout
}

func (s *SCPI) join(cmds []string) string {
	if s.Handshaking {
		cmds = append([]string{"*CLS;"}, cmds...)
		cmds = append(cmds, ";:SYSTem:ERRor?")
	}
	return strings.Join(cmds, " ")
}

// Write sends a command to the device.  if s.Handshaking == true,
// it also requests an error response and checks that it is OK
// it is assumed this is used for set operations and not get.
func (s *SCPI) Write(cmds ...string) error {
	conn, err := s.Pool.Get()
	if err != nil {
		return err
	}
	defer func() { s.Pool.ReturnWithError(conn, err) }()
	wrap, err := s.wrap(conn)
	if err != nil {
		return err
	}
	_, err = io.WriteString(wrap, s.join(cmds))
	if err != nil {
		return err
	}
	if s.Handshaking {
		buf := make([]byte, tcpFrameSize)
		var n int
		n, err = wrap.Read(buf)
		if err != nil {
			return err
		}
		str := strings.TrimSpace(string(buf[:n]))
		if !noError(str) {
			return fmt.Errorf("%s", str)
		}
	}
	return nil
}

// WriteRead is write, but with a read call after.  It is assumed that "get"
// calls use this underlying mechanism
func (s *SCPI) WriteRead(cmds ...string) ([]byte, error) {
	var resp []byte
	conn, err := s.Pool.Get()
	if err != nil {
		return resp, err
	}
	defer func() { s.Pool.ReturnWithError(conn, err) }()
	wrap, err := s.wrap(conn)
	if err != nil {
		return resp, err
	}
	_, err = io.WriteString(wrap, s.join(cmds))
	if err != nil {
		return resp, err
	}
	buf := make([]byte, tcpFrameSize)
	n, err := wrap.Read(buf)
	if err != nil {
		return resp, err
	}
	resp = buf[:n]
	if s.Handshaking {
		pieces := bytes.Split(bytes.TrimSpace(resp), []byte{';'})
		errS := string(pieces[len(pieces)-1])
		if !noError(errS) {
			return resp, fmt.Errorf("%s", errS)
		}
		return bytes.Join(pieces[:len(pieces)-1], []byte{}), nil
	}
	return resp, nil
}

// ReadString sends a command to the device, the reads the response
// and returns it as a decoded ASCII or UTF-8 string
func (s *SCPI) ReadString(cmds ...string) (string, error) {
	resp, err := s.WriteRead(cmds...)
	if err != nil {
		return "", err
	}
	str := strings.TrimRight(string(resp), "\r\n")
	if str == "" {
		return "", ErrEmptyResponse
	}
	return str, nil
}

// ReadFloat sends a command to the device, then reads the
// response and parses it as a floating point value
func (s *SCPI) ReadFloat(cmds ...string) (float64, error) {
	resp, err := s.ReadString(cmds...)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(resp), 64)
}

// ReadBool sends a command to the device, then reads the
// response and parses it as a boolean.  ON and OFF are understood.
func (s *SCPI) ReadBool(cmds ...string) (bool, error) {
	resp, err := s.ReadString(cmds...)
	if err != nil {
		return false, err
	}
	switch strings.ToUpper(strings.TrimSpace(resp)) {
	case "ON":
		return true, nil
	case "OFF":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(resp))
}

// ReadInt sends a command to the device, then reads the
// response and parses it as an integer
func (s *SCPI) ReadInt(cmds ...string) (int, error) {
	resp, err := s.ReadString(cmds...)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(resp))
}

// ReadBlock sends a query and reads an IEEE 488.2 definite length block
// (#<n><length><payload>) from the response.  The payload is returned
// without the header or the trailing newline.
func (s *SCPI) ReadBlock(cmds ...string) ([]byte, error) {
	conn, err := s.Pool.Get()
	if err != nil {
		return nil, err
	}
	defer func() { s.Pool.ReturnWithError(conn, err) }()
	wrap, err := s.wrap(conn)
	if err != nil {
		return nil, err
	}
	_, err = io.WriteString(wrap, strings.Join(cmds, " "))
	if err != nil {
		return nil, err
	}
	// binary payloads may hold '\n', so the block is read from the raw
	// connection, through a fresh timeout wrapper
	raw, err := comm.NewTimeout(conn, s.blockTimeout())
	if err != nil {
		return nil, err
	}
	var data []byte
	data, err = DecodeBlock(bufio.NewReaderSize(raw, tcpFrameSize))
	return data, err
}

// DecodeBlock reads one definite length block from r
func DecodeBlock(r *bufio.Reader) ([]byte, error) {
	c, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if c != '#' {
		return nil, ErrNotBlock
	}
	c, err = r.ReadByte()
	if err != nil {
		return nil, err
	}
	ndigits := int(c - '0')
	if ndigits < 1 || ndigits > 9 {
		return nil, fmt.Errorf("%w: length digit count %q", ErrNotBlock, c)
	}
	lenTxt := make([]byte, ndigits)
	if _, err = io.ReadFull(r, lenTxt); err != nil {
		return nil, err
	}
	nbytes, err := strconv.Atoi(string(lenTxt))
	if err != nil {
		return nil, err
	}
	data := make([]byte, nbytes)
	if _, err = io.ReadFull(r, data); err != nil {
		return nil, err
	}
	// pop off the terminator if it arrived with the payload
	if r.Buffered() > 0 {
		if b, _ := r.Peek(1); len(b) == 1 && b[0] == '\n' {
			r.ReadByte()
		}
	}
	return data, nil
}

// Raw sends a command to the device and returns a response if it was a query,
// else a blank string
func (s *SCPI) Raw(str string) (string, error) {
	prev := s.Handshaking
	s.Handshaking = false
	defer func() { s.Handshaking = prev }()
	if strings.Contains(str, "?") {
		return s.ReadString(str)
	}
	return "", s.Write(str)
}

// Identity is the parsed reply to *IDN?
type Identity struct {
	Manufacturer string
	Model        string
	Serial       string
	Firmware     string
}

// ParseIdentity splits an *IDN? reply into its four comma separated fields
func ParseIdentity(s string) (Identity, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) < 2 {
		return Identity{}, fmt.Errorf("malformed identity %q", s)
	}
	for len(parts) < 4 {
		parts = append(parts, "")
	}
	return Identity{
		Manufacturer: strings.TrimSpace(parts[0]),
		Model:        strings.TrimSpace(parts[1]),
		Serial:       strings.TrimSpace(parts[2]),
		Firmware:     strings.TrimSpace(parts[3])}, nil
}

// Identify queries *IDN? and parses the reply
func (s *SCPI) Identify() (Identity, error) {
	str, err := s.Raw("*IDN?")
	if err != nil {
		return Identity{}, err
	}
	return ParseIdentity(str)
}

// PopError gets a single error from the queue on the device
func (s *SCPI) PopError() error {
	str, err := s.Raw("SYSTem:ERRor?")
	if err != nil {
		return err
	}
	if noError(str) {
		return nil
	}
	return fmt.Errorf("%s", str)
}

// AllErrors returns all errors from the device as a list
func (s *SCPI) AllErrors() []error {
	var errs []error
	for i := 0; i < 32; i++ { // the error queue of a SCPI device holds at most a few dozen
		err := s.PopError()
		if err == nil {
			break
		}
		errs = append(errs, err)
	}
	return errs
}

// AllErrorsString is equivalent to AllErrors, but joining by newline
// if there were no errors, the error return value is nil, otherwise
// it is the first error in the list and has no particular meaning
func (s *SCPI) AllErrorsString() (string, error) {
	errs := s.AllErrors()
	if len(errs) == 0 {
		return "", nil
	}
	strs := make([]string, len(errs))
	for i := 0; i < len(errs); i++ {
		strs[i] = errs[i].Error()
	}
	return strings.Join(strs, "\n"), errs[0]
}
