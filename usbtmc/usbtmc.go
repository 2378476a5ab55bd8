// Package usbtmc implements datagram encoding and decoding for USB Test and
// Measurement Class devices, enough to run SCPI on the USB port of the Rigol
// bench instruments.
//
// It does not include features to support multi-packet messaging for writes,
// and thus assumes a command fits in the remote's buffer.  Reads that span
// several bulk-in transfers are reassembled until the EOM bit is seen.
//
// To send a message:
// 1.  Allocate a send buffer
// 2.  Write the header to it
// 3.  Write your data to it
// 4.  Ensure that the total transmission size is a multiple of 4 bytes before flushing
//
// To receive a message:
// 1.  Create a read request header and send it on the Out endpoint
// 2.  Read from the In endpoint and strip the 12 byte header
//
// These are implemented as Write() and Read() on Device, which satisfies
// io.ReadWriteCloser and can sit in a comm.Pool.
package usbtmc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/gousb"

	"github.com/synteira/rflab/comm"
)

const (
	// reserved is the byte to insert in reserved header positions
	reserved = 0x00

	headerSize = 12

	msgDevDepOut   = 0x01
	msgDevDepInReq = 0x02

	// RigolVID is the USB vendor ID of Rigol Technologies
	RigolVID = 0x1AB1
)

// ErrShortHeader is generated when a bulk-in transfer is too short to hold a header
var ErrShortHeader = errors.New("bulk-in transfer shorter than the 12 byte header")

// BTagger can generate atomic bTags
type BTagger interface {
	nextbTag() byte
}

// bTagGen is a concurrent-safe bTag generator
type bTagGen struct {
	sync.Mutex

	value byte
}

func newBTagGen() *bTagGen {
	return &bTagGen{}
}

// nextbTag cycles 1..255; zero is not a legal bTag
func (b *bTagGen) nextbTag() byte {
	b.Lock()
	defer b.Unlock()
	b.value++
	if b.value == 0 {
		b.value = 1
	}
	return b.value
}

// invbTag computes the bitwise inversion of a btag, per USBTMC standard table 1 offset 2
func invbTag(b byte) byte {
	return b ^ 0xff
}

// encBulkOutHeader creates the header defined in USBTMC standard, Table 3
func encBulkOutHeader(tag byte, datalen int) [headerSize]byte {
	out := [headerSize]byte{}
	/* data map by offset:
	0 MsgID, DEV_DEP_MSG_OUT
	1 bTag, unique and incrementing with each message
	2 bTagInverse
	3 Reserved (0x00)
	4-7 transferSize, LSB first, exclusive of header and alignment
	8 bitmap, bit 0 EOM
	9-11 reserved
	*/
	out[0] = msgDevDepOut
	out[1] = tag
	out[2] = invbTag(tag)
	out[3] = reserved
	binary.LittleEndian.PutUint32(out[4:8], uint32(datalen))
	out[8] = 0x01 // always end of message
	return out
}

// encBulkInHeader creates the request header defined in USBTMC standard, Table 4.
// if terminator is nil, the device is told to ignore the termination character
func encBulkInHeader(tag byte, bufsize int, terminator *byte) [headerSize]byte {
	out := [headerSize]byte{}
	out[0] = msgDevDepInReq
	out[1] = tag
	out[2] = invbTag(tag)
	out[3] = reserved
	binary.LittleEndian.PutUint32(out[4:8], uint32(bufsize))
	if terminator != nil {
		out[8] = 0x02 // TermCharEnabled
		out[9] = *terminator
	}
	return out
}

// bulkInHeader is the decoded header of a DEV_DEP_MSG_IN transfer
type bulkInHeader struct {
	tag          byte
	transferSize int
	eom          bool
}

func decBulkInHeader(b []byte) (bulkInHeader, error) {
	var h bulkInHeader
	if len(b) < headerSize {
		return h, ErrShortHeader
	}
	if b[0] != msgDevDepInReq {
		return h, fmt.Errorf("unexpected MsgID %d in bulk-in header", b[0])
	}
	if b[2] != invbTag(b[1]) {
		return h, fmt.Errorf("corrupt bTag pair %d/%d", b[1], b[2])
	}
	h.tag = b[1]
	h.transferSize = int(binary.LittleEndian.Uint32(b[4:8]))
	h.eom = b[8]&0x01 != 0
	return h, nil
}

// pad appends zero bytes to b until its length is a multiple of 4
func pad(b []byte) []byte {
	const alignment = 4
	if residual := len(b) % alignment; residual > 0 {
		b = append(b, make([]byte, alignment-residual)...)
	}
	return b
}

// Device is a USBTMC instrument exposed as an io.ReadWriteCloser
type Device struct {
	tagger BTagger
	ctx    *gousb.Context
	in     *gousb.InEndpoint
	out    *gousb.OutEndpoint
	device *gousb.Device
	iface  *gousb.Interface
	closer func()

	pending []byte // data from a transfer larger than the last Read buffer
}

// Open opens the first device matching vid and pid and claims its bulk endpoints
func Open(vid, pid uint16) (*Device, error) {
	d := &Device{tagger: newBTagGen(), ctx: gousb.NewContext()}
	var err error
	d.device, err = d.ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		d.ctx.Close()
		return nil, err
	}
	if d.device == nil {
		d.ctx.Close()
		return nil, fmt.Errorf("no USB device %04x:%04x", vid, pid)
	}
	if err = d.device.SetAutoDetach(true); err != nil {
		d.Close()
		return nil, err
	}
	d.iface, d.closer, err = d.device.DefaultInterface()
	if err != nil {
		d.Close()
		return nil, err
	}
	inNum, outNum := -1, -1
	for _, ep := range d.iface.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if ep.Direction == gousb.EndpointDirectionIn && inNum < 0 {
			inNum = ep.Number
		}
		if ep.Direction == gousb.EndpointDirectionOut && outNum < 0 {
			outNum = ep.Number
		}
	}
	if inNum < 0 || outNum < 0 {
		d.Close()
		return nil, fmt.Errorf("device %04x:%04x has no bulk endpoint pair", vid, pid)
	}
	if d.in, err = d.iface.InEndpoint(inNum); err != nil {
		d.Close()
		return nil, err
	}
	if d.out, err = d.iface.OutEndpoint(outNum); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// ConnMaker returns a comm.CreationFunc that opens vid:pid
func ConnMaker(vid, pid uint16) comm.CreationFunc {
	return func() (io.ReadWriteCloser, error) {
		return Open(vid, pid)
	}
}

// Write sends b as a single DEV_DEP_MSG_OUT message
func (d *Device) Write(b []byte) (int, error) {
	hdr := encBulkOutHeader(d.tagger.nextbTag(), len(b))
	msg := make([]byte, 0, headerSize+len(b)+3)
	msg = append(msg, hdr[:]...)
	msg = append(msg, b...)
	msg = pad(msg)
	if _, err := d.out.Write(msg); err != nil {
		return 0, err
	}
	return len(b), nil
}

// Read requests one message from the device and copies its payload into p.
// Payload beyond len(p) is kept for the next Read.
func (d *Device) Read(p []byte) (int, error) {
	if len(d.pending) > 0 {
		n := copy(p, d.pending)
		d.pending = d.pending[n:]
		return n, nil
	}
	const bufSize = 4096
	var payload []byte
	for {
		hdr := encBulkInHeader(d.tagger.nextbTag(), bufSize-headerSize, nil)
		if _, err := d.out.Write(hdr[:]); err != nil {
			return 0, err
		}
		buf := make([]byte, bufSize)
		n, err := d.in.Read(buf)
		if err != nil {
			return 0, err
		}
		h, err := decBulkInHeader(buf[:n])
		if err != nil {
			return 0, err
		}
		end := headerSize + h.transferSize
		if end > n {
			end = n
		}
		payload = append(payload, buf[headerSize:end]...)
		if h.eom {
			break
		}
	}
	n := copy(p, payload)
	d.pending = payload[n:]
	return n, nil
}

// Close closes the device
func (d *Device) Close() error {
	var err error
	if d.closer != nil {
		d.closer()
	}
	if d.device != nil {
		err = d.device.Close()
	}
	if d.ctx != nil {
		d.ctx.Close()
	}
	return err
}
