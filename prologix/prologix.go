// Package prologix drives Prologix GPIB-USB and GPIB-ETHERNET adapters in
// controller mode, which bridge a single GPIB bus to a virtual serial port or
// a TCP socket.
//
// Commands for the adapter itself start with "++".  Everything else is passed
// through to the instrument at the configured GPIB address.  With ++auto 1 the
// adapter addresses the instrument to talk after every command, so a query is
// just a write followed by a read.
package prologix

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"

	"github.com/synteira/rflab/comm"
)

const (
	// EthernetPort is the TCP port of the GPIB-ETHERNET adapter
	EthernetPort = 1234

	// Baud is the rate of the GPIB-USB virtual serial port.  The adapter
	// ignores it, but the driver on the host still needs one.
	Baud = 115200

	// EOTChar is the byte the adapter appends when the instrument asserts
	// EOI, configured by Setup
	EOTChar = '\n'

	defaultTimeout = 3 * time.Second
)

// Controller is a Prologix adapter addressing one instrument
type Controller struct {
	Pool *comm.Pool

	// Addr is the GPIB primary address of the instrument
	Addr int

	// Timeout bounds each read, defaults to 3 s
	Timeout time.Duration

	// the adapter has one bus, so a transaction must not interleave with another
	mu sync.Mutex
}

// NewSerial returns a controller for a GPIB-USB adapter on the named port
func NewSerial(port string, addr int) *Controller {
	conf := &serial.Config{Name: port, Baud: Baud, ReadTimeout: defaultTimeout}
	pool := comm.NewPool(1, time.Minute, comm.SerialConnMaker(conf))
	return &Controller{Pool: pool, Addr: addr}
}

// NewTCP returns a controller for a GPIB-ETHERNET adapter at host
func NewTCP(host string, addr int) *Controller {
	if !strings.Contains(host, ":") {
		host = host + ":" + strconv.Itoa(EthernetPort)
	}
	pool := comm.NewPool(1, time.Minute, comm.BackingOffTCPConnMaker(host, defaultTimeout))
	return &Controller{Pool: pool, Addr: addr}
}

// SetupCommands are sent by Setup, in order
func (c *Controller) SetupCommands() []string {
	return []string{
		"++mode 1", // controller
		"++addr " + strconv.Itoa(c.Addr),
		"++auto 1", // read after write
		"++eoi 1",
		"++eot_enable 1",
		"++eot_char " + strconv.Itoa(EOTChar),
		"++savecfg 0",
	}
}

func (c *Controller) timeout() time.Duration {
	if c.Timeout == 0 {
		return defaultTimeout
	}
	return c.Timeout
}

// do leases a connection and runs f with it under the bus lock
func (c *Controller) do(f func(io.ReadWriter) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, err := c.Pool.Get()
	if err != nil {
		return err
	}
	defer func() { c.Pool.ReturnWithError(conn, err) }()
	wrap, err := comm.NewTimeout(conn, c.timeout())
	if err != nil {
		return err
	}
	err = f(wrap)
	return err
}

func send(w io.Writer, cmd string) error {
	_, err := io.WriteString(w, cmd+"\n")
	return err
}

// Setup puts the adapter in controller mode and addresses the instrument
func (c *Controller) Setup() error {
	return c.do(func(rw io.ReadWriter) error {
		for _, cmd := range c.SetupCommands() {
			if err := send(rw, cmd); err != nil {
				return fmt.Errorf("prologix %s: %w", cmd, err)
			}
		}
		return nil
	})
}

// Write sends commands to the instrument without reading an answer
func (c *Controller) Write(cmds ...string) error {
	return c.do(func(rw io.ReadWriter) error {
		for _, cmd := range cmds {
			if err := send(rw, cmd); err != nil {
				return err
			}
		}
		return nil
	})
}

// Query sends cmd and returns the answer up to the EOT character, trimmed
func (c *Controller) Query(cmd string) (string, error) {
	var resp string
	err := c.do(func(rw io.ReadWriter) error {
		if err := send(rw, cmd); err != nil {
			return err
		}
		line, err := bufio.NewReader(rw).ReadString(EOTChar)
		if err != nil && !(err == io.EOF && line != "") {
			return err
		}
		resp = strings.TrimSpace(line)
		return nil
	})
	return resp, err
}

// ReadBinary sends cmd and reads exactly n bytes of binary answer, then
// consumes the EOT character the adapter appends
func (c *Controller) ReadBinary(cmd string, n int) ([]byte, error) {
	buf := make([]byte, n)
	err := c.do(func(rw io.ReadWriter) error {
		if err := send(rw, cmd); err != nil {
			return err
		}
		rd := bufio.NewReaderSize(rw, n+1)
		if _, err := io.ReadFull(rd, buf); err != nil {
			return fmt.Errorf("%s: read %d bytes: %w", cmd, n, err)
		}
		// a missing EOT only costs a timeout, the payload is complete
		rd.ReadByte()
		return nil
	})
	return buf, err
}

// Release returns the instrument to local control
func (c *Controller) Release() error {
	return c.Write("++loc")
}
