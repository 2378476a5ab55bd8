package analogdevices

import (
	"math"

	"github.com/synteira/rflab/synth"
)

// ADF4106 limits
const (
	ADF4106PFDMax = 104e6
	ADF4106VCOMin = 0.5e9
	ADF4106VCOMax = 6e9
)

// ADF4106Counters are the divider values of an ADF4106
type ADF4106Counters struct {
	Prescaler int // 8, 16, 32 or 64
	R         int
	N         int
	A         int
	B         int
	PFD       float64
}

// Output returns the VCO frequency the counters produce
func (c ADF4106Counters) Output() float64 {
	return float64(c.Prescaler*c.B+c.A) * c.PFD
}

// ADF4106Calc computes the counters locking fvco to fref with the phase
// detector at fpfd
func ADF4106Calc(fvco, fref, fpfd float64) (ADF4106Counters, error) {
	var c ADF4106Counters
	if err := synth.CheckRange("VCO frequency", fvco, ADF4106VCOMin, ADF4106VCOMax, "Hz"); err != nil {
		return c, err
	}
	switch {
	case fvco < 2.6e9:
		c.Prescaler = 8
	case fvco < 5.2e9:
		c.Prescaler = 16
	default:
		c.Prescaler = 32
	}
	if fpfd <= 0 || fpfd > ADF4106PFDMax {
		return c, &synth.RangeError{Quantity: "PFD frequency", Value: fpfd, Min: 0, Max: ADF4106PFDMax, Unit: "Hz"}
	}
	r, ok := intRatio(fref, fpfd)
	if !ok {
		return c, &synth.RatioError{Num: "reference", NumValue: fref, Den: "PFD", DenValue: fpfd}
	}
	// a VCO frequency between channels locks to the channel below
	n := int(math.Floor(fvco/fpfd + ratioTol))
	if err := synth.CheckRange("R counter", float64(r), 1, 16383, ""); err != nil {
		return c, err
	}
	c.R, c.N, c.PFD = r, n, fpfd
	c.B = n / c.Prescaler
	c.A = n % c.Prescaler
	if err := synth.CheckRange("B counter", float64(c.B), 3, 8191, ""); err != nil {
		return c, err
	}
	if c.B < c.A {
		return c, &synth.RangeError{Quantity: "A counter", Value: float64(c.A), Min: 0, Max: float64(c.B)}
	}
	return c, nil
}

// ADF4106Options are the function latch settings of an ADF4106
type ADF4106Options struct {
	CPCurrent1   int // 0..7, static mode
	CPCurrent2   int // 0..7, fastlock mode
	PFDPolarity  string
	Muxout       string
	PowerDown    string // disabled, asynchronous, synchronous
	CPThreeState bool
	CounterReset bool
	FastlockMode string // disabled, mode1, mode2
	TimerCounter int    // 0..15, fastlock timeout in PFD cycles / 4 - 3
}

// DefaultADF4106Options returns the settings of the evaluation firmware
func DefaultADF4106Options() ADF4106Options {
	return ADF4106Options{
		CPCurrent1:   7,
		CPCurrent2:   7,
		PFDPolarity:  "positive",
		Muxout:       "dvdd",
		PowerDown:    "disabled",
		FastlockMode: "disabled",
	}
}

var (
	adf4106Prescaler = synth.IntChoice{8: 0, 16: 1, 32: 2, 64: 3}
	adf4106Fastlock  = synth.Choice{"disabled": 0, "mode1": 2, "mode2": 3}
	adf4106PowerDown = synth.Choice{"disabled": 0, "asynchronous": 1, "synchronous": 3}
	adf4106Muxout    = synth.Choice{
		"three_state":            0,
		"digital_lock_detect":    1,
		"n_divider":              2,
		"dvdd":                   3,
		"r_divider":              4,
		"open_drain_lock_detect": 5,
		"serial_data":            6,
		"dgnd":                   7,
	}
)

// ADF4106Registers packs the reference (R0), N (R1), function (R2) and
// initialization (R3) latches.  R3 carries the function latch data.
func ADF4106Registers(c ADF4106Counters, o ADF4106Options) (synth.Bank, error) {
	var e codes
	psc := e.num("prescaler", adf4106Prescaler, c.Prescaler)
	pol := e.str("PFD polarity", pfdPolarity, o.PFDPolarity)
	mux := e.str("muxout", adf4106Muxout, o.Muxout)
	pd := e.str("power down", adf4106PowerDown, o.PowerDown)
	fl := e.str("fastlock mode", adf4106Fastlock, o.FastlockMode)
	e.rng("CP current 1", o.CPCurrent1, 0, 7)
	e.rng("CP current 2", o.CPCurrent2, 0, 7)
	e.rng("timer counter", o.TimerCounter, 0, 15)
	e.rng("A counter", c.A, 0, 63)
	if e.err != nil {
		return nil, e.err
	}

	r0 := synth.Word(0).
		With(synth.Field{Shift: 21, Width: 3}, 0x04). // reserved
		With(synth.Field{Shift: 2, Width: 14}, uint32(c.R))

	r1 := synth.Word(1).
		With(synth.Field{Shift: 22, Width: 2}, 0x03). // reserved
		With(synth.Field{Shift: 8, Width: 13}, uint32(c.B)).
		With(synth.Field{Shift: 2, Width: 6}, uint32(c.A))

	fn := synth.Word(0).
		With(synth.Field{Shift: 22, Width: 2}, psc).
		With(synth.Field{Shift: 21, Width: 1}, pd>>1).
		With(synth.Field{Shift: 18, Width: 3}, uint32(o.CPCurrent2)).
		With(synth.Field{Shift: 15, Width: 3}, uint32(o.CPCurrent1)).
		With(synth.Field{Shift: 11, Width: 4}, uint32(o.TimerCounter)).
		With(synth.Field{Shift: 9, Width: 2}, fl).
		Bit(8, o.CPThreeState).
		With(synth.Field{Shift: 7, Width: 1}, pol).
		With(synth.Field{Shift: 4, Width: 3}, mux).
		With(synth.Field{Shift: 3, Width: 1}, pd&1).
		Bit(2, o.CounterReset)

	return synth.Bank{r0, r1, fn | 2, fn | 3}, nil
}
