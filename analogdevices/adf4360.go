package analogdevices

import (
	"math"

	"github.com/synteira/rflab/synth"
)

// ADF4360-7 limits
const (
	ADF4360PFDMax       = 8e6
	ADF4360VCOMin       = 350e6
	ADF4360VCOMax       = 1800e6
	adf4360PrescalerMax = 300e6 // highest frequency the prescaler output may run at
	adf4360BandClockMax = 1e6
)

var adf4360Prescalers = []int{8, 16, 32}

// ADF4360Counters are the divider values of an ADF4360-7
type ADF4360Counters struct {
	Prescaler     int // P of the P/P+1 prescaler
	R             int
	N             int // total feedback division, N = P*B + A
	A             int
	B             int
	BandSelectDiv int
	PFD           float64
}

// Output returns the output frequency the counters produce
func (c ADF4360Counters) Output() float64 {
	return float64(c.Prescaler*c.B+c.A) * c.PFD
}

// ADF4360Calc computes the counters producing fout from fref with a
// channel spacing of fstep.  The phase detector runs at fstep.
func ADF4360Calc(fout, fref, fstep float64) (ADF4360Counters, error) {
	var c ADF4360Counters
	if err := synth.CheckRange("VCO frequency", fout, ADF4360VCOMin, ADF4360VCOMax, "Hz"); err != nil {
		return c, err
	}
	if fstep <= 0 || fstep > ADF4360PFDMax {
		return c, &synth.RangeError{Quantity: "frequency step", Value: fstep, Min: 0, Max: ADF4360PFDMax, Unit: "Hz"}
	}
	r, ok := intRatio(fref, fstep)
	if !ok {
		rmin := math.Floor(fref/ADF4360PFDMax) + 1
		return c, &synth.RatioError{Num: "reference", NumValue: fref, Den: "step", DenValue: fstep, Suggest: fref / rmin}
	}
	// an output between channels lands on the channel below
	n := int(math.Floor(fout/fstep + ratioTol))
	if err := synth.CheckRange("R counter", float64(r), 1, 16383, ""); err != nil {
		return c, err
	}
	for _, p := range adf4360Prescalers {
		if fout/float64(p) <= adf4360PrescalerMax {
			c.Prescaler = p
			break
		}
	}
	if c.Prescaler == 0 {
		return c, &synth.RangeError{Quantity: "prescaler output", Value: fout / 32, Min: 0, Max: adf4360PrescalerMax, Unit: "Hz"}
	}
	c.R = r
	c.N = n
	c.PFD = fstep
	c.B = n / c.Prescaler
	c.A = n - c.Prescaler*c.B
	if err := synth.CheckRange("B counter", float64(c.B), 3, 8191, ""); err != nil {
		return c, err
	}
	c.BandSelectDiv = 8
	for _, d := range []int{1, 2, 4, 8} {
		if fstep/float64(d) <= adf4360BandClockMax {
			c.BandSelectDiv = d
			break
		}
	}
	return c, nil
}

// ADF4360Options are the control latch settings of an ADF4360-7
type ADF4360Options struct {
	CPCurrent1   int // 0..7
	CPCurrent2   int // 0..7
	CPGain       int // 1 or 2
	CPThreeState bool
	OutputPower  int    // dBm: -14, -11, -8, -5
	PFDPolarity  string // negative, positive
	PowerDown    string // disabled, asynchronous, synchronous
	MuteTillLock bool
	Muxout       string
	CounterReset bool
	CorePower    int  // mA: 5, 10, 15, 20
	Div2         bool // divide-by-2 output select

	LockDetectPrecision int    // cycles: 3 or 5
	AntiBacklash        string // 1.3ns, 3.0ns, 6.0ns
}

// DefaultADF4360Options returns the settings of the evaluation firmware
func DefaultADF4360Options() ADF4360Options {
	return ADF4360Options{
		CPCurrent1:          7,
		CPCurrent2:          7,
		CPGain:              1,
		OutputPower:         -14,
		PFDPolarity:         "positive",
		PowerDown:           "disabled",
		Muxout:              "digital_lock_detect",
		CorePower:           5,
		LockDetectPrecision: 3,
		AntiBacklash:        "3.0ns",
	}
}

var (
	adf4360Prescaler = synth.IntChoice{8: 0, 16: 1, 32: 2}
	adf4360PowerDown = synth.Choice{"disabled": 0, "asynchronous": 1, "synchronous": 2}
	adf4360Pout      = synth.IntChoice{-14: 0, -11: 1, -8: 2, -5: 3}
	adf4360Core      = synth.IntChoice{5: 0, 10: 1, 15: 2, 20: 3}
	adf4360BandDiv   = synth.IntChoice{1: 0, 2: 1, 4: 2, 8: 3}
	adf4360LDP       = synth.IntChoice{3: 0, 5: 1}
	adf4360ABPW      = synth.Choice{"3.0ns": 0, "1.3ns": 1, "6.0ns": 2}
	adf4360Muxout    = synth.Choice{
		"three_state":         0,
		"digital_lock_detect": 1,
		"n_divider":           2,
		"dvdd":                3,
		"r_divider":           4,
		"analog_lock_detect":  5,
		"serial_data_out":     6,
		"dgnd":                7,
	}
)

// ADF4360Registers packs the control (R0), R counter (R1) and N counter (R2) latches
func ADF4360Registers(c ADF4360Counters, o ADF4360Options) (synth.Bank, error) {
	var e codes
	psc := e.num("prescaler", adf4360Prescaler, c.Prescaler)
	pd := e.str("power down", adf4360PowerDown, o.PowerDown)
	pout := e.num("output power", adf4360Pout, o.OutputPower)
	core := e.num("core power", adf4360Core, o.CorePower)
	bsc := e.num("band select divider", adf4360BandDiv, c.BandSelectDiv)
	ldp := e.num("lock detect precision", adf4360LDP, o.LockDetectPrecision)
	abpw := e.str("anti-backlash pulse width", adf4360ABPW, o.AntiBacklash)
	mux := e.str("muxout", adf4360Muxout, o.Muxout)
	pol := e.str("PFD polarity", pfdPolarity, o.PFDPolarity)
	e.rng("CP current 1", o.CPCurrent1, 0, 7)
	e.rng("CP current 2", o.CPCurrent2, 0, 7)
	e.rng("CP gain", o.CPGain, 1, 2)
	if e.err != nil {
		return nil, e.err
	}

	cpGain := uint32(o.CPGain - 1)
	r0 := synth.Word(0).
		With(synth.Field{Shift: 22, Width: 2}, psc).
		With(synth.Field{Shift: 20, Width: 2}, pd).
		With(synth.Field{Shift: 17, Width: 3}, uint32(o.CPCurrent2)).
		With(synth.Field{Shift: 14, Width: 3}, uint32(o.CPCurrent1)).
		With(synth.Field{Shift: 12, Width: 2}, pout).
		Bit(11, o.MuteTillLock).
		With(synth.Field{Shift: 10, Width: 1}, cpGain).
		Bit(9, o.CPThreeState).
		With(synth.Field{Shift: 8, Width: 1}, pol).
		With(synth.Field{Shift: 5, Width: 3}, mux).
		Bit(4, o.CounterReset).
		With(synth.Field{Shift: 2, Width: 2}, core)

	r1 := synth.Word(1).
		With(synth.Field{Shift: 20, Width: 2}, bsc).
		With(synth.Field{Shift: 18, Width: 1}, ldp).
		With(synth.Field{Shift: 16, Width: 2}, abpw).
		With(synth.Field{Shift: 2, Width: 14}, uint32(c.R))

	div2 := uint32(0)
	if o.Div2 {
		div2 = 3
	}
	r2 := synth.Word(2).
		With(synth.Field{Shift: 22, Width: 2}, div2).
		With(synth.Field{Shift: 21, Width: 1}, cpGain).
		With(synth.Field{Shift: 8, Width: 13}, uint32(c.B)).
		With(synth.Field{Shift: 2, Width: 5}, uint32(c.A))

	return synth.Bank{r0, r1, r2}, nil
}
