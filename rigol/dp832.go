package rigol

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/synteira/rflab/scpi"
	"github.com/synteira/rflab/synth"
)

// DP832Channels is the number of outputs of the supply
const DP832Channels = 3

// DefaultMonitorInterval is the period between monitor readings
const DefaultMonitorInterval = 2 * time.Second

var measurands = map[string]string{
	"voltage": "VOLT",
	"current": "CURR",
	"power":   "POWE",
}

// Reading is a measurement of one output
type Reading struct {
	Channel int
	Voltage float64 // V
	Current float64 // A
}

// FormatReadings renders readings on one line, e.g.
// "CH1:  3.3000V 0.0210A   CH2: ..."
func FormatReadings(rs []Reading) string {
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = fmt.Sprintf("CH%d: %7.4fV %6.4fA", r.Channel, r.Voltage, r.Current)
	}
	return strings.Join(parts, "   ")
}

// DP832 is a three channel power supply
type DP832 struct {
	scpi.SCPI
}

// NewDP832 connects to the supply at addr
func NewDP832(addr string) (*DP832, error) {
	s, err := NewSCPI(addr)
	return &DP832{s}, err
}

// Apply sets the voltage and current limit of channel ch
func (p *DP832) Apply(ch int, volts, amps float64) error {
	if err := checkChannel(ch, DP832Channels); err != nil {
		return err
	}
	return p.Write(fmt.Sprintf(":APPL CH%d,%s,%s", ch, num(volts), num(amps)))
}

// SetOutput switches channel ch
func (p *DP832) SetOutput(ch int, on bool) error {
	if err := checkChannel(ch, DP832Channels); err != nil {
		return err
	}
	return p.Write(fmt.Sprintf(":OUTP CH%d,%s", ch, onOff(on)))
}

// Set applies volts and amps to channel ch, then switches it
func (p *DP832) Set(ch int, volts, amps float64, on bool) error {
	if err := p.Apply(ch, volts, amps); err != nil {
		return err
	}
	return p.SetOutput(ch, on)
}

// Measure reads the voltage, current or power of channel ch
func (p *DP832) Measure(ch int, quantity string) (float64, error) {
	if err := checkChannel(ch, DP832Channels); err != nil {
		return 0, err
	}
	m, ok := measurands[strings.ToLower(quantity)]
	if !ok {
		return 0, &synth.OptionError{Option: "measurement", Value: quantity,
			Allowed: []string{"voltage", "current", "power"}}
	}
	return p.ReadFloat(fmt.Sprintf(":MEAS:%s:DC? CH%d", m, ch))
}

// Current reads the output current of channel ch in A
func (p *DP832) Current(ch int) (float64, error) {
	return p.Measure(ch, "current")
}

// ReadAll measures the voltage and current of every channel
func (p *DP832) ReadAll() ([]Reading, error) {
	out := make([]Reading, DP832Channels)
	for i := range out {
		ch := i + 1
		v, err := p.Measure(ch, "voltage")
		if err != nil {
			return nil, err
		}
		c, err := p.Measure(ch, "current")
		if err != nil {
			return nil, err
		}
		out[i] = Reading{Channel: ch, Voltage: v, Current: c}
	}
	return out, nil
}

// Unlock returns the front panel to the operator
func (p *DP832) Unlock() error {
	return p.Write(":SYST:LOCK OFF")
}

// Monitor reads every channel once per interval and hands the readings to
// fn, until ctx is done or a reading fails.  The context error is not
// reported.
func (p *DP832) Monitor(ctx context.Context, interval time.Duration, fn func([]Reading)) error {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	lim := rate.NewLimiter(rate.Every(interval), 1)
	for {
		if err := lim.Wait(ctx); err != nil {
			return nil
		}
		rs, err := p.ReadAll()
		if err != nil {
			return err
		}
		fn(rs)
	}
}
