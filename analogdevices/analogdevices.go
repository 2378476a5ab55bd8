// Package analogdevices computes divider counters and register words for
// Analog Devices PLL synthesizers:
// - the ADF4106 and ADF4360-7 integer-N parts
// - the ADF4350 fractional-N part
// - the ADF4159 FMCW ramp generator
// - the ADRF6850 demodulator synthesizer
//
// Each part has a Calc function that turns frequencies (always in Hz) into a
// counters struct, and a Registers function that packs counters and options
// into a synth.Bank.  Neither prints or exits.  Out of range inputs are
// reported as *synth.RangeError, *synth.RatioError or *synth.OptionError.
package analogdevices

import (
	"math"

	"github.com/synteira/rflab/synth"
)

// ratioTol is the relative slack allowed when testing that two frequencies
// have an integer ratio
const ratioTol = 1e-9

// intRatio returns num/den rounded to an integer, and whether the ratio was
// an integer to within ratioTol
func intRatio(num, den float64) (int, bool) {
	r := num / den
	n := math.Round(r)
	return int(n), math.Abs(r-n) <= ratioTol*math.Max(1, math.Abs(r))
}

// fracTol is the slack, in FRAC counts, under which a fractional word is
// taken as landing exactly on a channel
const fracTol = 1e-6

// fracWord returns ⌊frac·mod⌋, except that a product within fracTol of an
// integer is rounded to it so a request on a channel is not programmed one
// channel low
func fracWord(frac float64, mod int) int {
	f := frac * float64(mod)
	if r := math.Round(f); math.Abs(f-r) <= fracTol {
		return int(r)
	}
	return int(math.Floor(f))
}

// pfdPolarity is shared by every part in the package
var pfdPolarity = synth.Choice{"negative": 0, "positive": 1}

// codes looks up a run of options, keeping the first error so a register
// can be described in one block and checked once
type codes struct {
	err error
}

func (e *codes) str(option string, c synth.Choice, v string) uint32 {
	code, err := c.Code(option, v)
	if err != nil && e.err == nil {
		e.err = err
	}
	return code
}

func (e *codes) num(option string, c synth.IntChoice, v int) uint32 {
	code, err := c.Code(option, v)
	if err != nil && e.err == nil {
		e.err = err
	}
	return code
}

func (e *codes) rng(quantity string, v, min, max int) {
	if e.err != nil {
		return
	}
	e.err = synth.CheckRange(quantity, float64(v), float64(min), float64(max), "")
}
