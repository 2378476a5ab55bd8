package analogdevices

import (
	"math"

	"github.com/synteira/rflab/synth"
)

// ADRF6850 limits
const (
	ADRF6850LOMax = 1000e6

	adrf6850Registers = 31
	adrf6850Write     = 0xD4 // write command prefix of every SPI transaction
	adrf6850Modulus   = 1 << 25
)

// ADRF6850Counters are the divider values of an ADRF6850
type ADRF6850Counters struct {
	Doubler bool
	R       int // 1..31
	RDiv2   bool
	RFDiv   int // LO divider exponent, the VCO runs at 2^RFDiv*2*LO
	INT     int
	FRAC    int
	PFD     float64

	// BandClock is the VCO autocalibration timer, 100*PFD[MHz]/24
	BandClock int
}

// Output returns the LO frequency the counters produce
func (c ADRF6850Counters) Output() float64 {
	n := float64(c.INT) + float64(c.FRAC)/adrf6850Modulus
	return n * c.PFD / (2 * math.Exp2(float64(c.RFDiv)))
}

// ADRF6850Calc computes the counters producing the LO frequency flo from fref
// through the doubler, the 5 bit R divider, and the divide by 2
func ADRF6850Calc(flo, fref float64, doubler bool, r int, rdiv2 bool) (ADRF6850Counters, error) {
	c := ADRF6850Counters{Doubler: doubler, R: r, RDiv2: rdiv2}
	if err := synth.CheckRange("R divider", float64(r), 1, 31, ""); err != nil {
		return c, err
	}
	c.PFD = fref * float64(1+synth.Bool(doubler)) / (float64(r) * float64(1+synth.Bool(rdiv2)))
	if c.PFD <= 0 {
		return c, &synth.RangeError{Quantity: "PFD frequency", Value: c.PFD, Min: 0, Max: math.Inf(1), Unit: "Hz"}
	}
	switch {
	case flo <= 0 || flo >= ADRF6850LOMax:
		return c, &synth.RangeError{Quantity: "LO frequency", Value: flo, Min: 0, Max: ADRF6850LOMax, Unit: "Hz"}
	case flo < 125e6:
		c.RFDiv = 3
	case flo < 250e6:
		c.RFDiv = 2
	case flo < 500e6:
		c.RFDiv = 1
	default:
		c.RFDiv = 0
	}
	n := math.Exp2(float64(c.RFDiv)) * 2 * flo / c.PFD
	c.INT = int(math.Floor(n))
	c.FRAC = int(math.Round((n - float64(c.INT)) * adrf6850Modulus))
	if c.FRAC == adrf6850Modulus {
		c.INT++
		c.FRAC = 0
	}
	if err := synth.CheckRange("INT counter", float64(c.INT), 1, 4095, ""); err != nil {
		return c, err
	}
	c.BandClock = int(100 * (c.PFD / 1e6) / 24)
	return c, nil
}

// ADRF6850Options are the PLL, demodulator and VGA settings of an ADRF6850
type ADRF6850Options struct {
	Muxout     string
	CPCurrent  int // 0..15
	PowerDown  bool
	LockDetect bool

	LOMonitor      bool
	LOMonitorPower int // 0 (-24 dBm) .. 3 (-6 dBm)

	DemodPowerUp bool
	Wideband     bool
	FilterCutoff int // MHz: 50, 43, 37, 30
	InternalVocm bool
	VGAPowerUp   bool
	VGANegative  bool
}

// DefaultADRF6850Options returns the settings of the evaluation firmware
func DefaultADRF6850Options() ADRF6850Options {
	return ADRF6850Options{
		Muxout:         "nclk_2",
		CPCurrent:      15,
		LockDetect:     true,
		LOMonitor:      true,
		LOMonitorPower: 3,
		DemodPowerUp:   true,
		FilterCutoff:   30,
		InternalVocm:   true,
		VGAPowerUp:     true,
	}
}

var (
	adrf6850Cutoff = synth.IntChoice{50: 0, 43: 1, 37: 2, 30: 3}
	adrf6850Muxout = synth.Choice{
		"three_state": 0x0,
		"high":        0x1,
		"low":         0x2,
		"rclk_2":      0xD,
		"nclk_2":      0xE,
	}
)

// ADRF6850Registers packs the 31 byte wide control registers.  Each word is
// the write command, the address and the data byte.
func ADRF6850Registers(c ADRF6850Counters, o ADRF6850Options) (synth.Bank, error) {
	var e codes
	mux := e.str("muxout", adrf6850Muxout, o.Muxout)
	cut := e.num("filter cutoff", adrf6850Cutoff, o.FilterCutoff)
	e.rng("CP current", o.CPCurrent, 0, 15)
	e.rng("LO monitor power", o.LOMonitorPower, 0, 3)
	e.rng("R divider", c.R, 1, 31)
	e.rng("RF divider", c.RFDiv, 0, 3)
	if e.err != nil {
		return nil, e.err
	}

	var d [adrf6850Registers]uint32
	d[4] = 0x01 // reserved defaults
	d[13] = 0x08

	frac := uint32(c.FRAC)
	d[0] = frac & 0xFF
	d[1] = frac >> 8 & 0xFF
	d[2] = frac >> 16 & 0xFF
	d[3] = frac >> 24 & 0x01
	if c.R != 1 {
		d[5] |= 0x10
	}

	nint := uint32(c.INT)
	d[6] = nint & 0xFF
	d[7] = nint>>8&0x0F | mux<<4
	d[9] = uint32(o.CPCurrent) << 4
	d[10] = uint32(c.R)&0x1F | synth.Bool(c.Doubler)<<5 | synth.Bool(c.RDiv2)<<6
	d[12] = synth.Bool(o.PowerDown) << 2

	// lock detect precision high, count 2048, enable
	d[23] = 0x04 | 0x08 | synth.Bool(o.LockDetect)<<4
	d[25] = uint32(c.BandClock) & 0xFF
	d[27] = uint32(o.LOMonitorPower) | synth.Bool(o.LOMonitor)<<2
	d[28] = uint32(c.RFDiv)&0x07 | 0x08
	d[29] = synth.Bool(o.DemodPowerUp) | synth.Bool(o.Wideband)<<3 | cut<<4 | synth.Bool(o.InternalVocm)<<6
	d[30] = synth.Bool(o.VGAPowerUp) | synth.Bool(o.VGANegative)<<2

	b := make(synth.Bank, adrf6850Registers)
	for addr, data := range d {
		b[addr] = synth.Word(adrf6850Write<<16 | uint32(addr)<<8 | data&0xFF)
	}
	return b, nil
}
