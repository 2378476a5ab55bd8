package analogdevices

import (
	"math"

	"github.com/synteira/rflab/synth"
)

// ADF4350 limits
const (
	ADF4350PFDMax = 32e6
	ADF4350VCOMin = 2200e6
	ADF4350VCOMax = 4400e6

	adf4350DoublerMax    = 30e6 // highest reference the doubler accepts
	adf4350BandSelectMax = 125e3
)

var adf4350OutDivs = []int{1, 2, 4, 8, 16}

// Mode selects the N divider operation of a fractional-N part
type Mode int

const (
	// Auto uses integer mode when the VCO is an exact multiple of the PFD
	Auto Mode = iota
	// Integer requires the VCO to be an exact multiple of the PFD
	Integer
	// Fractional always programs FRAC/MOD
	Fractional
)

// ParseMode converts auto, integer or fractional to a Mode
func ParseMode(s string) (Mode, error) {
	code, err := synth.Choice{"auto": 0, "integer": 1, "fractional": 2}.Code("PLL mode", s)
	return Mode(code), err
}

// ADF4350Counters are the divider values of an ADF4350
type ADF4350Counters struct {
	Prescaler  int // 4 or 8
	Doubler    bool
	R          int
	RDiv2      bool
	INT        int
	FRAC       int
	MOD        int
	OutDiv     int
	VCO        float64
	PFD        float64
	Resolution float64
}

// Output returns the output frequency the counters produce
func (c ADF4350Counters) Output() float64 {
	return (float64(c.INT) + float64(c.FRAC)/float64(c.MOD)) * c.PFD / float64(c.OutDiv)
}

// ADF4350Calc computes the counters producing fout from fref with a
// channel spacing of fstep
func ADF4350Calc(fout, fref, fstep float64, mode Mode) (ADF4350Counters, error) {
	var c ADF4350Counters
	for _, d := range adf4350OutDivs {
		if fout*float64(d) >= ADF4350VCOMin && fout*float64(d) <= ADF4350VCOMax {
			c.OutDiv = d
		}
	}
	if c.OutDiv == 0 {
		return c, &synth.RangeError{Quantity: "output frequency", Value: fout,
			Min: ADF4350VCOMin / 16, Max: ADF4350VCOMax, Unit: "Hz"}
	}
	if fref <= 0 || fstep <= 0 {
		return c, &synth.RangeError{Quantity: "reference and step", Value: math.Min(fref, fstep), Min: 1, Max: math.Inf(1), Unit: "Hz"}
	}
	c.VCO = fout * float64(c.OutDiv)
	c.Prescaler = 8
	if c.VCO < 3e9 {
		c.Prescaler = 4
	}

	if fref <= adf4350DoublerMax && 2*fref <= ADF4350PFDMax {
		c.Doubler = true
		c.R = 1
	} else {
		c.R = int(math.Ceil(fref / ADF4350PFDMax))
	}
	if err := synth.CheckRange("R counter", float64(c.R), 1, 1023, ""); err != nil {
		return c, err
	}
	c.PFD = fref * float64(1+synth.Bool(c.Doubler)) / float64(c.R)

	n := c.VCO / c.PFD
	nint, exact := intRatio(c.VCO, c.PFD)
	if mode == Integer && !exact {
		return c, &synth.RatioError{Num: "VCO", NumValue: c.VCO, Den: "PFD", DenValue: c.PFD}
	}
	c.INT = int(math.Floor(n))
	if exact {
		c.INT = nint
	}
	minInt := 23.
	if c.Prescaler == 8 {
		minInt = 75
	}
	if err := synth.CheckRange("INT counter", float64(c.INT), minInt, 65535, ""); err != nil {
		return c, err
	}

	c.MOD = int(c.PFD / (float64(c.OutDiv) * fstep))
	for i := 0; i < 3; i++ {
		m := c.MOD + i
		if m%2 != 0 && m%3 != 0 {
			c.MOD = m
			break
		}
	}
	if exact {
		// MOD is unused in integer operation, keep it programmable
		c.MOD = int(math.Max(2, math.Min(4095, float64(c.MOD))))
	} else {
		if err := synth.CheckRange("MOD", float64(c.MOD), 2, 4095, ""); err != nil {
			return c, err
		}
		c.FRAC = fracWord(n-float64(c.INT), c.MOD)
		if c.FRAC == c.MOD {
			c.INT++
			c.FRAC = 0
		}
	}
	if c.FRAC > c.MOD-1 {
		return c, &synth.RangeError{Quantity: "FRAC", Value: float64(c.FRAC), Min: 0, Max: float64(c.MOD - 1)}
	}
	c.Resolution = c.PFD / (float64(c.OutDiv) * float64(c.MOD))
	return c, nil
}

// ADF4350Options are the register settings of an ADF4350 other than the counters
type ADF4350Options struct {
	Phase        int    // 0..4095
	NoiseMode    string // low_noise, low_spur
	Muxout       string
	DoubleBuffer bool
	CPCurrent    int    // 0..15
	LDPrecision  string // 10ns, 6ns
	PFDPolarity  string
	PowerDown    bool
	CPThreeState bool
	CounterReset bool

	CycleSlipReduction bool
	ClockDivMode       string // disabled, fast_lock, resync
	ClockDivValue      int    // 0..4095

	FeedbackFundamental bool
	VCOPowerDown        bool
	MuteTillLock        bool
	AuxFundamental      bool
	AuxEnable           bool
	AuxPower            int // dBm: -4, -1, 2, 5
	RFEnable            bool
	RFPower             int    // dBm: -4, -1, 2, 5
	LDPinMode           string // low, digital_lock_detect, high
}

// DefaultADF4350Options returns the settings of the evaluation firmware
func DefaultADF4350Options() ADF4350Options {
	return ADF4350Options{
		NoiseMode:           "low_noise",
		Muxout:              "digital_lock_detect",
		DoubleBuffer:        true,
		CPCurrent:           5,
		LDPrecision:         "10ns",
		PFDPolarity:         "positive",
		ClockDivMode:        "disabled",
		FeedbackFundamental: true,
		AuxPower:            2,
		RFEnable:            true,
		RFPower:             2,
		LDPinMode:           "digital_lock_detect",
	}
}

var (
	adf4350Prescaler = synth.IntChoice{4: 0, 8: 1}
	adf4350Noise     = synth.Choice{"low_noise": 0, "low_spur": 3}
	adf4350LDP       = synth.Choice{"10ns": 0, "6ns": 1}
	adf4350ClkDiv    = synth.Choice{"disabled": 0, "fast_lock": 1, "resync": 2}
	adf4350OutDiv    = synth.IntChoice{1: 0, 2: 1, 4: 2, 8: 3, 16: 4}
	adf4350Power     = synth.IntChoice{-4: 0, -1: 1, 2: 2, 5: 3}
	adf4350LDPin     = synth.Choice{"low": 0, "digital_lock_detect": 1, "high": 3}
	adf4350Muxout    = synth.Choice{
		"three_state":         0,
		"dvdd":                1,
		"dgnd":                2,
		"r_divider":           3,
		"n_divider":           4,
		"analog_lock_detect":  5,
		"digital_lock_detect": 6,
	}
)

// ADF4350Registers packs R0..R5
func ADF4350Registers(c ADF4350Counters, o ADF4350Options) (synth.Bank, error) {
	var e codes
	psc := e.num("prescaler", adf4350Prescaler, c.Prescaler)
	noise := e.str("noise mode", adf4350Noise, o.NoiseMode)
	mux := e.str("muxout", adf4350Muxout, o.Muxout)
	ldp := e.str("lock detect precision", adf4350LDP, o.LDPrecision)
	pol := e.str("PFD polarity", pfdPolarity, o.PFDPolarity)
	clk := e.str("clock divider mode", adf4350ClkDiv, o.ClockDivMode)
	div := e.num("output divider", adf4350OutDiv, c.OutDiv)
	aux := e.num("aux output power", adf4350Power, o.AuxPower)
	rf := e.num("RF output power", adf4350Power, o.RFPower)
	ldpin := e.str("lock detect pin mode", adf4350LDPin, o.LDPinMode)
	e.rng("phase", o.Phase, 0, 4095)
	e.rng("CP current", o.CPCurrent, 0, 15)
	e.rng("clock divider value", o.ClockDivValue, 0, 4095)
	if e.err != nil {
		return nil, e.err
	}

	bsel := int(math.Ceil(c.PFD / adf4350BandSelectMax))
	if bsel < 1 {
		bsel = 1
	}
	if bsel > 255 {
		bsel = 255
	}

	r0 := synth.Word(0).
		With(synth.Field{Shift: 15, Width: 16}, uint32(c.INT)).
		With(synth.Field{Shift: 3, Width: 12}, uint32(c.FRAC))

	r1 := synth.Word(1).
		With(synth.Field{Shift: 27, Width: 1}, psc).
		With(synth.Field{Shift: 15, Width: 12}, uint32(o.Phase)).
		With(synth.Field{Shift: 3, Width: 12}, uint32(c.MOD))

	r2 := synth.Word(2).
		With(synth.Field{Shift: 29, Width: 2}, noise).
		With(synth.Field{Shift: 26, Width: 3}, mux).
		Bit(25, c.Doubler).
		Bit(24, c.RDiv2).
		With(synth.Field{Shift: 14, Width: 10}, uint32(c.R)).
		Bit(13, o.DoubleBuffer).
		With(synth.Field{Shift: 9, Width: 4}, uint32(o.CPCurrent)).
		Bit(8, c.FRAC == 0). // lock detect function follows integer mode
		With(synth.Field{Shift: 7, Width: 1}, ldp).
		With(synth.Field{Shift: 6, Width: 1}, pol).
		Bit(5, o.PowerDown).
		Bit(4, o.CPThreeState).
		Bit(3, o.CounterReset)

	r3 := synth.Word(3).
		Bit(18, o.CycleSlipReduction).
		With(synth.Field{Shift: 15, Width: 2}, clk).
		With(synth.Field{Shift: 3, Width: 12}, uint32(o.ClockDivValue))

	r4 := synth.Word(4).
		Bit(23, o.FeedbackFundamental).
		With(synth.Field{Shift: 20, Width: 3}, div).
		With(synth.Field{Shift: 12, Width: 8}, uint32(bsel)).
		Bit(11, o.VCOPowerDown).
		Bit(10, o.MuteTillLock).
		Bit(9, o.AuxFundamental).
		Bit(8, o.AuxEnable).
		With(synth.Field{Shift: 6, Width: 2}, aux).
		Bit(5, o.RFEnable).
		With(synth.Field{Shift: 3, Width: 2}, rf)

	r5 := synth.Word(5).
		With(synth.Field{Shift: 22, Width: 2}, ldpin).
		With(synth.Field{Shift: 19, Width: 2}, 3) // reserved, must be 11

	return synth.Bank{r0, r1, r2, r3, r4, r5}, nil
}
