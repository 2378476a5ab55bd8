package maxim

import (
	"github.com/synteira/rflab/synth"
)

// MAX2828Bands are the 802.11a channel groups the part covers
var MAX2828Bands = []Band{
	{Start: 5180e6, Stop: 5320e6, Step: 20e6},
	{Start: 5500e6, Stop: 5700e6, Step: 20e6},
	{Start: 5745e6, Stop: 5805e6, Step: 20e6},
}

// MAX2828 limits
const (
	MAX2828RFMin  = 4.9e9
	MAX2828RFMax  = 5.9e9
	MAX2828RefMax = 40e6
)

// MAX2828Counters are the divider words of a MAX2828.  The VCO runs at 4/5
// of the RF frequency.
type MAX2828Counters struct {
	RF   float64
	R    int
	PFD  float64
	INT  int
	FRAC int // 16 bit fraction

	// MSB and LSB are FRAC split across the fractional and integer registers
	MSB int
	LSB int
}

// Output returns the RF frequency the counters produce
func (c MAX2828Counters) Output() float64 {
	return (float64(c.INT) + float64(c.FRAC)/(1<<16)) * c.PFD * 5 / 4
}

// MAX2828Calc computes the divider words for frf from fref.  The reference is
// divided by two above 20 MHz.
func MAX2828Calc(frf, fref float64) (MAX2828Counters, error) {
	c := MAX2828Counters{RF: frf}
	if err := synth.CheckRange("RF frequency", frf, MAX2828RFMin, MAX2828RFMax, "Hz"); err != nil {
		return c, err
	}
	if err := synth.CheckRange("reference frequency", fref, 1, MAX2828RefMax, "Hz"); err != nil {
		return c, err
	}
	c.R = 1
	if fref > 20e6 {
		c.R = 2
	}
	pfd := hz(fref) / int64(c.R)
	c.PFD = float64(pfd)

	// f_vco / f_pfd = 4*f_rf / (5*f_pfd)
	num, den := 4*hz(frf), 5*pfd
	c.INT = int(num / den)
	c.FRAC = int(num % den << 16 / den)
	c.MSB = c.FRAC >> 2
	c.LSB = c.FRAC & 0x3
	if err := synth.CheckRange("INT counter", float64(c.INT), 1, 255, ""); err != nil {
		return c, err
	}
	return c, nil
}

// MAX2828Registers packs the integer (A3) and fractional (A4) divider
// registers, in that order
func MAX2828Registers(c MAX2828Counters) synth.Bank {
	a3 := synth.Word(0).
		With(synth.Field{Shift: 12, Width: 2}, uint32(c.LSB)).
		With(synth.Field{Shift: 0, Width: 8}, uint32(c.INT))
	return synth.Bank{
		word(AddrInteger, uint32(a3)),
		word(AddrFractional, uint32(c.MSB)),
	}
}

// MAX2828Sweep computes the counters of every channel in b
func MAX2828Sweep(b Band, fref float64) ([]MAX2828Counters, error) {
	chans := b.Channels()
	out := make([]MAX2828Counters, 0, len(chans))
	for _, f := range chans {
		c, err := MAX2828Calc(f, fref)
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}
	return out, nil
}
