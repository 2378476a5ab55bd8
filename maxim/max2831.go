package maxim

import (
	"github.com/synteira/rflab/synth"
)

// MAX2831Band is the channel sweep used to characterize the part, 1 MHz
// steps either side of the 2.4 GHz ISM band
var MAX2831Band = Band{Start: 2390e6, Stop: 2510e6, Step: 1e6}

// MAX2831Counters are the divider words of a MAX2831
type MAX2831Counters struct {
	RF   float64
	R    int
	PFD  float64
	INT  int
	FRAC int // 20 bit fraction

	// MSB is the upper 14 bits of FRAC, LSB the lower 6
	MSB int
	LSB int
}

// Output returns the RF frequency the counters produce
func (c MAX2831Counters) Output() float64 {
	return (float64(c.INT) + float64(c.FRAC)/(1<<20)) * c.PFD
}

// MAX2831Calc computes the divider words for frf from fref divided by r
func MAX2831Calc(frf, fref float64, r int) (MAX2831Counters, error) {
	c := MAX2831Counters{RF: frf, R: r}
	if err := synth.CheckRange("R divider", float64(r), 1, 2, ""); err != nil {
		return c, err
	}
	if frf <= 0 || fref <= 0 {
		return c, &synth.RangeError{Quantity: "frequency", Value: frf, Min: 1, Max: 6e9, Unit: "Hz"}
	}
	pfd := hz(fref) / int64(r)
	c.PFD = float64(pfd)
	f := hz(frf)
	c.INT = int(f / pfd)
	c.FRAC = int(f % pfd << 20 / pfd)
	c.MSB = c.FRAC >> 6
	c.LSB = c.FRAC & 0x3F
	if err := synth.CheckRange("INT counter", float64(c.INT), 64, 255, ""); err != nil {
		return c, err
	}
	return c, nil
}

// MAX2831Registers packs the integer (A3) and fractional (A4) divider
// registers, in that order
func MAX2831Registers(c MAX2831Counters) synth.Bank {
	a3 := synth.Word(0).
		With(synth.Field{Shift: 8, Width: 6}, uint32(c.LSB)).
		With(synth.Field{Shift: 0, Width: 8}, uint32(c.INT))
	return synth.Bank{
		word(AddrInteger, uint32(a3)),
		word(AddrFractional, uint32(c.MSB)),
	}
}

// MAX2831Sweep computes the counters of every channel in b
func MAX2831Sweep(b Band, fref float64, r int) ([]MAX2831Counters, error) {
	chans := b.Channels()
	out := make([]MAX2831Counters, 0, len(chans))
	for _, f := range chans {
		c, err := MAX2831Calc(f, fref, r)
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}
	return out, nil
}
