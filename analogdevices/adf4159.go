package analogdevices

import (
	"math"

	"github.com/synteira/rflab/synth"
)

// ADF4159 limits
const (
	ADF4159PFDMax = 110e6
	ADF4159VCOMin = 0.5e9
	ADF4159VCOMax = 13e9

	adf4159Modulus   = 1 << 25
	adf4159DevMax    = 1 << 15 // largest magnitude of the signed deviation word
	adf4159CPCurrent = 5000.   // µA, full scale charge pump current
)

// thresholds of the negative bleed current codes, µA
var adf4159Bleed = []float64{7.38, 18.14, 39.18, 81.4, 167.2, 339.7, 685.5}

// ADF4159Ramp describes the sweep an ADF4159 should generate
type ADF4159Ramp struct {
	Ref        float64 // Hz
	VCO        float64 // Hz, start of the ramp
	Deviation  float64 // Hz, total deviation of one slope
	RampTime   float64 // seconds, duration of one slope
	Steps      int     // frequency steps per slope
	CLK2       int
	Doubler    bool
	R          int // 1..32
	RDiv2      bool
	Triangular bool
}

// DefaultADF4159Ramp returns a 2.2 ms sawtooth of 10.3 MHz at 1.5 GHz, the
// fundamental of a 24 GHz radar with a x16 multiplier
func DefaultADF4159Ramp() ADF4159Ramp {
	return ADF4159Ramp{
		Ref:       25e6,
		VCO:       1.5e9,
		Deviation: 164.886e6 / 16,
		RampTime:  2.2e-3,
		Steps:     20000,
		CLK2:      1,
		R:         1,
	}
}

// ADF4159Counters are the divider and ramp words of an ADF4159, with the
// ramp the words actually produce
type ADF4159Counters struct {
	Prescaler  int // 4 or 8
	Doubler    bool
	R          int
	RDiv2      bool
	INT        int
	FRAC       int
	PFD        float64
	Resolution float64

	DevOffset int
	Dev       int
	CLK1      int
	CLK2      int
	Steps     int
	Bleed     int // negative bleed current code

	StepDeviation float64 // Hz
	RampDeviation float64 // Hz
	StepTime      float64 // seconds
	RampTime      float64 // seconds
}

// Output returns the ramp start frequency the counters produce
func (c ADF4159Counters) Output() float64 {
	return (float64(c.INT) + float64(c.FRAC)/adf4159Modulus) * c.PFD
}

// ADF4159Calc computes the dividers and ramp words for r
func ADF4159Calc(r ADF4159Ramp) (ADF4159Counters, error) {
	var c ADF4159Counters
	if err := synth.CheckRange("VCO frequency", r.VCO, ADF4159VCOMin, ADF4159VCOMax, "Hz"); err != nil {
		return c, err
	}
	if err := synth.CheckRange("R divider", float64(r.R), 1, 32, ""); err != nil {
		return c, err
	}
	if err := synth.CheckRange("steps", float64(r.Steps), 1, 1<<20-1, ""); err != nil {
		return c, err
	}
	if err := synth.CheckRange("CLK2 divider", float64(r.CLK2), 1, 4095, ""); err != nil {
		return c, err
	}
	c.Doubler, c.R, c.RDiv2, c.CLK2, c.Steps = r.Doubler, r.R, r.RDiv2, r.CLK2, r.Steps
	c.PFD = r.Ref * float64(1+synth.Bool(r.Doubler)) / (float64(r.R) * float64(1+synth.Bool(r.RDiv2)))
	if err := synth.CheckRange("PFD frequency", c.PFD, 1, ADF4159PFDMax, "Hz"); err != nil {
		return c, err
	}
	c.Resolution = c.PFD / adf4159Modulus

	c.Prescaler = 4
	minInt := 23.
	if r.VCO > 8e9 {
		c.Prescaler = 8
		minInt = 75
	}
	n := r.VCO / c.PFD
	c.INT = int(math.Floor(n))
	if err := synth.CheckRange("INT counter", float64(c.INT), minInt, 4095, ""); err != nil {
		return c, err
	}
	c.FRAC = int(math.Round((n - float64(c.INT)) * adf4159Modulus))
	if c.FRAC == adf4159Modulus {
		c.INT++
		c.FRAC = 0
	}

	step := r.Deviation / float64(r.Steps)
	off := math.Ceil(math.Log2(step / (c.Resolution * adf4159DevMax)))
	if off < 0 || math.IsInf(off, -1) {
		off = 0
	}
	c.DevOffset = int(off)
	if err := synth.CheckRange("deviation offset", off, 0, 15, ""); err != nil {
		return c, err
	}
	devRes := c.Resolution * math.Exp2(off)
	c.Dev = int(math.Ceil(step / devRes))
	if err := synth.CheckRange("deviation word", float64(c.Dev), 0, 65535, ""); err != nil {
		return c, err
	}

	c.CLK1 = int(math.Ceil(r.RampTime / float64(r.Steps) * c.PFD / float64(r.CLK2)))
	if err := synth.CheckRange("CLK1 divider", float64(c.CLK1), 1, 4095, ""); err != nil {
		return c, err
	}

	slopes := 1.
	if r.Triangular {
		slopes = 2
	}
	c.StepDeviation = devRes * float64(c.Dev)
	c.RampDeviation = c.StepDeviation * float64(r.Steps)
	c.StepTime = float64(c.CLK1*c.CLK2) / c.PFD
	c.RampTime = slopes * c.StepTime * float64(r.Steps)

	bleed := 4 * adf4159CPCurrent / n
	c.Bleed = len(adf4159Bleed)
	for i, th := range adf4159Bleed {
		if bleed < th {
			c.Bleed = i
			break
		}
	}
	return c, nil
}

// ADF4159Options are the register settings of an ADF4159 other than the
// counters and ramp words
type ADF4159Options struct {
	Muxout             string
	RampEnable         bool
	RampMode           string
	CPCurrent          int // 0..15
	CycleSlipReduction bool
	PFDPolarity        string
	LDPrecision        string // 14ns, 6ns
	LossOfLock         bool
	NegativeBleed      bool
	Phase              int // 0..4095
	PhaseAdjust        bool
	PowerDown          bool
	CPThreeState       bool
	CounterReset       bool
}

// DefaultADF4159Options returns the settings of the radar firmware
func DefaultADF4159Options() ADF4159Options {
	return ADF4159Options{
		Muxout:      "ramp_status",
		RampEnable:  true,
		RampMode:    "continuous_sawtooth",
		CPCurrent:   15,
		PFDPolarity: "positive",
		LDPrecision: "6ns",
		LossOfLock:  true,
	}
}

var (
	adf4159Prescaler = synth.IntChoice{4: 0, 8: 1}
	adf4159LDP       = synth.Choice{"14ns": 0, "6ns": 1}
	adf4159RampMode  = synth.Choice{
		"continuous_sawtooth":   0,
		"continuous_triangular": 1,
		"single_sawtooth":       2,
		"single_triangular":     3,
	}
	adf4159Muxout = synth.Choice{
		"three_state":         0x0,
		"dvdd":                0x1,
		"dgnd":                0x2,
		"r_divider":           0x3,
		"n_divider":           0x4,
		"digital_lock_detect": 0x6,
		"serial_data_out":     0x7,
		"clk_divider":         0xA,
		"r_divider_2":         0xD,
		"n_divider_2":         0xE,
		"ramp_status":         0xF,
	}
)

// ADF4159Registers packs R0..R7
func ADF4159Registers(c ADF4159Counters, o ADF4159Options) (synth.Bank, error) {
	var e codes
	psc := e.num("prescaler", adf4159Prescaler, c.Prescaler)
	mux := e.str("muxout", adf4159Muxout, o.Muxout)
	mode := e.str("ramp mode", adf4159RampMode, o.RampMode)
	pol := e.str("PFD polarity", pfdPolarity, o.PFDPolarity)
	ldp := e.str("lock detect precision", adf4159LDP, o.LDPrecision)
	e.rng("CP current", o.CPCurrent, 0, 15)
	e.rng("phase", o.Phase, 0, 4095)
	e.rng("bleed current", c.Bleed, 0, 7)
	if e.err != nil {
		return nil, e.err
	}

	frac := uint32(c.FRAC)
	r0 := synth.Word(0).
		Bit(31, o.RampEnable).
		With(synth.Field{Shift: 27, Width: 4}, mux).
		With(synth.Field{Shift: 15, Width: 12}, uint32(c.INT)).
		With(synth.Field{Shift: 3, Width: 12}, frac>>13)

	r1 := synth.Word(1).
		Bit(28, o.PhaseAdjust).
		With(synth.Field{Shift: 15, Width: 13}, frac).
		With(synth.Field{Shift: 3, Width: 12}, uint32(o.Phase))

	r2 := synth.Word(2).
		Bit(28, o.CycleSlipReduction).
		With(synth.Field{Shift: 24, Width: 4}, uint32(o.CPCurrent)).
		With(synth.Field{Shift: 22, Width: 1}, psc).
		Bit(21, c.RDiv2).
		Bit(20, c.Doubler).
		With(synth.Field{Shift: 15, Width: 5}, uint32(c.R)).
		With(synth.Field{Shift: 3, Width: 12}, uint32(c.CLK1))

	r3 := synth.Word(3).
		With(synth.Field{Shift: 22, Width: 3}, uint32(c.Bleed)).
		Bit(21, o.NegativeBleed).
		Bit(17, true). // reserved
		Bit(16, o.LossOfLock).
		With(synth.Field{Shift: 10, Width: 2}, mode).
		With(synth.Field{Shift: 7, Width: 1}, ldp).
		With(synth.Field{Shift: 6, Width: 1}, pol).
		Bit(5, o.PowerDown).
		Bit(4, o.CPThreeState).
		Bit(3, o.CounterReset)

	r4 := synth.Word(4).
		With(synth.Field{Shift: 21, Width: 2}, 3). // ramp status to muxout
		With(synth.Field{Shift: 19, Width: 2}, 3). // ramp divider
		With(synth.Field{Shift: 7, Width: 12}, uint32(c.CLK2))

	r5 := synth.Word(5).
		With(synth.Field{Shift: 19, Width: 4}, uint32(c.DevOffset)).
		With(synth.Field{Shift: 3, Width: 16}, uint32(c.Dev))

	r6 := synth.Word(6).
		With(synth.Field{Shift: 3, Width: 20}, uint32(c.Steps))

	return synth.Bank{r0, r1, r2, r3, r4, r5, r6, synth.Word(7)}, nil
}
