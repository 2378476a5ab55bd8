package synth

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tarm/serial"

	"github.com/synteira/rflab/comm"
)

// LoaderPrefix is the command the loader firmware expects before each word
const LoaderPrefix = "$PLL"

// Loader programs a part through a bridge MCU that accepts
// "$PLL 0xXXXXXXXX" lines, one register per line
type Loader struct {
	// Conn is the link to the bridge
	Conn io.ReadWriter

	// Echo makes Load read one reply line per register
	Echo bool
}

// LoaderSerialConf returns the serial settings of the bridge at addr.
// The bridge firmware ships at 9600 or 115200 baud.
func LoaderSerialConf(addr string, baud int) *serial.Config {
	if baud == 0 {
		baud = 115200
	}
	return &serial.Config{
		Name:        addr,
		Baud:        baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: 100 * time.Millisecond}
}

// Load sends the bank highest address first and returns any replies
func (l *Loader) Load(b Bank) ([]string, error) {
	if len(b) == 0 {
		return nil, ErrEmptyBank
	}
	if l.Conn == nil {
		return nil, comm.ErrNotConnected
	}
	wrap := comm.NewTerminator(l.Conn, '\n', '\n')
	rd := bufio.NewReader(l.Conn)
	var replies []string
	for _, w := range b.Descending() {
		cmd := fmt.Sprintf("%s %s", LoaderPrefix, w)
		if _, err := io.WriteString(wrap, cmd); err != nil {
			return replies, fmt.Errorf("sending %s: %w", cmd, err)
		}
		if l.Echo {
			resp, err := rd.ReadString('\n')
			if err != nil {
				return replies, fmt.Errorf("reading reply to %s: %w", cmd, err)
			}
			replies = append(replies, strings.TrimRight(resp, "\r\n"))
		}
	}
	return replies, nil
}
