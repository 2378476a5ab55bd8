// Package maxim computes the fractional-N divider words of the synthesizers in
// the MAX2828 (5 GHz) and MAX2831 (2.4 GHz) WLAN transceivers.
//
// The dividers are computed with integer arithmetic in Hz so that channel
// tables published by the manufacturer are reproduced exactly.  Each part
// splits its fractional word into an MSB register (A4) and a few LSBs that
// share the integer register (A3).  Register words are data<<4 | address.
package maxim

import (
	"math"

	"github.com/synteira/rflab/synth"
)

// addresses of the divider registers
const (
	AddrInteger    = 3
	AddrFractional = 4
)

var (
	addrField = synth.Field{Shift: 0, Width: 4}
	dataField = synth.Field{Shift: 4, Width: 14}
)

func word(addr, data uint32) synth.Word {
	return synth.Word(0).With(dataField, data).With(addrField, addr)
}

// hz rounds a frequency to whole Hz
func hz(f float64) int64 {
	return int64(math.Round(f))
}

// Band is a run of equally spaced channels
type Band struct {
	Start float64 // Hz
	Stop  float64 // Hz, inclusive
	Step  float64 // Hz
}

// Channels lists the channel frequencies of the band
func (b Band) Channels() []float64 {
	if b.Step <= 0 || b.Stop < b.Start {
		return nil
	}
	n := int(math.Round((b.Stop-b.Start)/b.Step)) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = b.Start + float64(i)*b.Step
	}
	return out
}
