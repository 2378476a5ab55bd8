// Package rigol controls Rigol bench instruments over SCPI: the DSA815
// spectrum analyzer, the DG4102 function generator, the DP832 power supply and
// the DHO924 oscilloscope.
//
// Every instrument takes an address understood by NewSCPI, either a LAN host
// (port 5555 is assumed when none is given) or a USB-TMC device written
// usb:<pid> or usb:<vid>:<pid> in hexadecimal.
package rigol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/synteira/rflab/comm"
	"github.com/synteira/rflab/scpi"
	"github.com/synteira/rflab/usbtmc"
)

const (
	// SCPIPort is the raw socket port of the LAN interface
	SCPIPort = 5555

	// the pool keeps an idle connection this long
	idleTimeout = time.Minute
)

// USB product IDs of the bench units
const (
	PIDDG4102 = 0x0641
	PIDDP832  = 0x0E11
)

// Models as reported in the second field of *IDN?
const (
	ModelDSA815 = "DSA815"
	ModelDG4102 = "DG4102"
	ModelDP832  = "DP832"
	ModelDHO924 = "DHO924S"
)

// ErrUnknownModel is generated when an identity matches no supported instrument
var ErrUnknownModel = errors.New("instrument model is not supported")

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// parseUSB reads "usb:pid" or "usb:vid:pid"
func parseUSB(addr string) (vid, pid uint16, err error) {
	parts := strings.Split(strings.TrimPrefix(addr, "usb:"), ":")
	vid = usbtmc.RigolVID
	var v uint64
	switch len(parts) {
	case 1:
		v, err = strconv.ParseUint(parts[0], 16, 16)
		pid = uint16(v)
	case 2:
		v, err = strconv.ParseUint(parts[0], 16, 16)
		if err != nil {
			break
		}
		vid = uint16(v)
		v, err = strconv.ParseUint(parts[1], 16, 16)
		pid = uint16(v)
	default:
		err = fmt.Errorf("usb address %q, expected usb:<pid> or usb:<vid>:<pid>", addr)
	}
	return vid, pid, err
}

// Maker returns the connection maker for addr
func Maker(addr string) (comm.CreationFunc, error) {
	if strings.HasPrefix(strings.ToLower(addr), "usb:") {
		vid, pid, err := parseUSB(strings.ToLower(addr))
		if err != nil {
			return nil, err
		}
		return usbtmc.ConnMaker(vid, pid), nil
	}
	if addr == "" {
		return nil, fmt.Errorf("empty instrument address")
	}
	if !strings.Contains(addr, ":") {
		addr = addr + ":" + strconv.Itoa(SCPIPort)
	}
	return comm.BackingOffTCPConnMaker(addr, 2*time.Second), nil
}

// NewSCPI returns a SCPI session with a single pooled connection to addr
func NewSCPI(addr string) (scpi.SCPI, error) {
	maker, err := Maker(addr)
	if err != nil {
		return scpi.SCPI{}, err
	}
	return scpi.SCPI{Pool: comm.NewPool(1, idleTimeout, maker)}, nil
}

// Instrument is satisfied by every driver in this package
type Instrument interface {
	Identify() (scpi.Identity, error)
}

// Detect asks the instrument at addr who it is, and returns the matching driver
func Detect(addr string) (Instrument, scpi.Identity, error) {
	s, err := NewSCPI(addr)
	if err != nil {
		return nil, scpi.Identity{}, err
	}
	id, err := s.Identify()
	if err != nil {
		return nil, id, err
	}
	var inst Instrument
	switch id.Model {
	case ModelDSA815:
		inst = &DSA815{s}
	case ModelDG4102:
		inst = &DG4102{s}
	case ModelDP832:
		inst = &DP832{s}
	case ModelDHO924:
		inst = &DHO924{s}
	default:
		return nil, id, fmt.Errorf("%w: %s %s", ErrUnknownModel, id.Manufacturer, id.Model)
	}
	return inst, id, nil
}
