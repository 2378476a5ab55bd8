// Package testbench characterizes voltage controlled oscillators.
//
// The tuning voltage comes from the DC offset of a function generator, the DUT
// is powered from a bench supply, and an analyzer finds the carrier.  For every
// DUT supply voltage the tuning voltage is stepped across its range, and at
// every step the peak frequency, the peak power, and the supply current are
// recorded into a VCO sweep log.
package testbench

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/synteira/rflab/advantest"
	"github.com/synteira/rflab/rigol"
	"github.com/synteira/rflab/touchstone"
)

// Generator drives the tuning voltage
type Generator interface {
	Apply(ch int, w rigol.Waveform) error
	SetOutput(ch int, on bool) error
}

// Supply powers the DUT and measures its current
type Supply interface {
	Set(ch int, volts, amps float64, on bool) error
	Current(ch int) (float64, error)
	Unlock() error
}

// Analyzer takes one sweep of the DUT output
type Analyzer interface {
	Spectrum() (advantest.Spectrum, error)
}

// Config describes a characterization run
type Config struct {
	// SupplyVoltages are the DUT supply voltages, one log is written per entry
	SupplyVoltages []float64 `koanf:"supplyvoltages"`

	// DUTCurrent is the current limit of the DUT supply channel
	DUTCurrent float64 `koanf:"dutcurrent"`

	// AuxVoltage and AuxCurrent set the two auxiliary supply channels
	AuxVoltage float64 `koanf:"auxvoltage"`
	AuxCurrent float64 `koanf:"auxcurrent"`

	// TuneStart, TuneStop, and TuneStep span the tuning voltage, inclusive
	TuneStart float64 `koanf:"tunestart"`
	TuneStop  float64 `koanf:"tunestop"`
	TuneStep  float64 `koanf:"tunestep"`

	// GeneratorChannel carries the tuning voltage
	GeneratorChannel int `koanf:"generatorchannel"`

	// DUTChannel is the supply channel of the DUT, the others are auxiliary
	DUTChannel int `koanf:"dutchannel"`

	// Settle is the wait between setting a tuning voltage and measuring
	Settle time.Duration `koanf:"settle"`

	// Dir and Prefix place the logs, named <Prefix>_<supply>V.csv
	Dir    string `koanf:"dir"`
	Prefix string `koanf:"prefix"`
}

// DefaultConfig powers the DUT at 3.3 and 5 V and tunes it from 0 to 4.5 V
// in 100 mV steps
func DefaultConfig() Config {
	return Config{
		SupplyVoltages:   []float64{3.3, 5.0},
		DUTCurrent:       0.05,
		AuxVoltage:       3.3,
		AuxCurrent:       0.1,
		TuneStart:        0,
		TuneStop:         4.5,
		TuneStep:         0.1,
		GeneratorChannel: 1,
		DUTChannel:       3,
		Dir:              ".",
		Prefix:           "DUT_1",
	}
}

// TuningVoltages lists the tuning voltages of one sweep
func (c Config) TuningVoltages() ([]float64, error) {
	if c.TuneStep <= 0 || c.TuneStop < c.TuneStart {
		return nil, fmt.Errorf("tuning range %g to %g in steps of %g is empty", c.TuneStart, c.TuneStop, c.TuneStep)
	}
	n := int(math.Round((c.TuneStop-c.TuneStart)/c.TuneStep)) + 1
	out := make([]float64, n)
	for i := range out {
		// whole nanovolts, so 0.1 steps print as 0.3 and not 0.30000000000000004
		out[i] = math.Round((c.TuneStart+float64(i)*c.TuneStep)*1e9) / 1e9
	}
	return out, nil
}

// LogName is the file name of the sweep at one DUT supply voltage
func (c Config) LogName(supply float64) string {
	return fmt.Sprintf("%s_%.1fV.csv", c.Prefix, supply)
}

// Bench holds the instruments of a run
type Bench struct {
	Gen      Generator
	Supply   Supply
	Analyzer Analyzer
	Config   Config

	// Log receives a line per point when not nil
	Log *log.Logger
}

func (b *Bench) logf(format string, args ...interface{}) {
	if b.Log != nil {
		b.Log.Printf(format, args...)
	}
}

func (b *Bench) auxChannels() []int {
	var out []int
	for ch := 1; ch <= rigol.DP832Channels; ch++ {
		if ch != b.Config.DUTChannel {
			out = append(out, ch)
		}
	}
	return out
}

// Sweep steps the tuning voltage with the DUT already powered and returns
// the samples.  The sweep stops early when ctx is done.
func (b *Bench) Sweep(ctx context.Context) (touchstone.VCOSweep, error) {
	volts, err := b.Config.TuningVoltages()
	if err != nil {
		return nil, err
	}
	out := make(touchstone.VCOSweep, 0, len(volts))
	for _, v := range volts {
		if err = ctx.Err(); err != nil {
			return out, err
		}
		if err = b.Gen.Apply(b.Config.GeneratorChannel, rigol.DCBias(v)); err != nil {
			return out, fmt.Errorf("tuning voltage %g V: %w", v, err)
		}
		if err = settle(ctx, b.Config.Settle); err != nil {
			return out, err
		}
		spec, err := b.Analyzer.Spectrum()
		if err != nil {
			return out, fmt.Errorf("spectrum at %g V: %w", v, err)
		}
		i, pwr := touchstone.Peak(spec.A)
		if i < 0 {
			return out, fmt.Errorf("spectrum at %g V: %w", v, touchstone.ErrNoData)
		}
		cur, err := b.Supply.Current(b.Config.DUTChannel)
		if err != nil {
			return out, fmt.Errorf("current at %g V: %w", v, err)
		}
		p := touchstone.VCOSample{Vctl: v, Freq: spec.Freq[i], Power: pwr, Current: cur}
		b.logf("Vctl %5.2f V  %12.0f Hz  %7.2f dBm  %6.2f mA", p.Vctl, p.Freq, p.Power, p.Current*1e3)
		out = append(out, p)
	}
	return out, nil
}

// settle waits d for the VCO to follow a new tuning voltage
func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (b *Bench) powerUp(supply float64) error {
	for _, ch := range b.auxChannels() {
		if err := b.Supply.Set(ch, b.Config.AuxVoltage, b.Config.AuxCurrent, true); err != nil {
			return err
		}
	}
	return b.Supply.Set(b.Config.DUTChannel, supply, b.Config.DUTCurrent, true)
}

// Run sweeps the DUT at every supply voltage and writes one log each.  It
// returns the paths written.  The instruments are left off, unlocked, and
// with the tuning voltage at zero, whether or not the run succeeds.
func (b *Bench) Run(ctx context.Context) (paths []string, err error) {
	if len(b.Config.SupplyVoltages) == 0 {
		return nil, errors.New("no DUT supply voltages to test")
	}
	defer func() {
		if cerr := b.shutdown(); err == nil {
			err = cerr
		}
	}()
	if err = b.Gen.SetOutput(b.Config.GeneratorChannel, true); err != nil {
		return nil, err
	}
	for _, supply := range b.Config.SupplyVoltages {
		b.logf("DUT supply %.1f V", supply)
		if err = b.powerUp(supply); err != nil {
			return paths, err
		}
		var sweep touchstone.VCOSweep
		sweep, err = b.Sweep(ctx)
		// a partial sweep is still worth keeping
		if len(sweep) > 0 {
			path := filepath.Join(b.Config.Dir, b.Config.LogName(supply))
			if werr := writeLog(path, sweep); werr != nil && err == nil {
				err = werr
			} else if werr == nil {
				paths = append(paths, path)
			}
		}
		if err != nil {
			return paths, err
		}
		if err = b.Supply.Set(b.Config.DUTChannel, supply, b.Config.DUTCurrent, false); err != nil {
			return paths, err
		}
	}
	return paths, nil
}

func (b *Bench) shutdown() error {
	var first error
	keep := func(err error) {
		if first == nil {
			first = err
		}
	}
	keep(b.Gen.SetOutput(b.Config.GeneratorChannel, false))
	keep(b.Gen.Apply(b.Config.GeneratorChannel, rigol.DCBias(0)))
	for ch := 1; ch <= rigol.DP832Channels; ch++ {
		keep(b.Supply.Set(ch, b.Config.AuxVoltage, b.Config.AuxCurrent, false))
	}
	keep(b.Supply.Unlock())
	return first
}

func writeLog(path string, s touchstone.VCOSweep) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err = touchstone.WriteVCO(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
