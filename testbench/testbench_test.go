package testbench_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/synteira/rflab/advantest"
	"github.com/synteira/rflab/rigol"
	"github.com/synteira/rflab/testbench"
	"github.com/synteira/rflab/touchstone"
)

// fakeLab is a VCO tuning at 100 MHz/V from 1 GHz, with the instruments
// that measure it
type fakeLab struct {
	offset float64
	supply float64
	calls  []string
	fail   int // Spectrum fails on this call, 1-based; 0 never
	sweeps int

	applied time.Time
	waits   []time.Duration // from each Apply to the next Spectrum
}

func (l *fakeLab) Apply(ch int, w rigol.Waveform) error {
	l.offset = w.Offset
	l.applied = time.Now()
	return nil
}

func (l *fakeLab) SetOutput(ch int, on bool) error {
	l.calls = append(l.calls, fmt.Sprintf("gen %d %v", ch, on))
	return nil
}

func (l *fakeLab) Set(ch int, volts, amps float64, on bool) error {
	if ch == 3 && on {
		l.supply = volts
	}
	l.calls = append(l.calls, fmt.Sprintf("supply %d %g %v", ch, volts, on))
	return nil
}

func (l *fakeLab) Current(ch int) (float64, error) {
	return 0.01 * l.supply, nil
}

func (l *fakeLab) Unlock() error {
	l.calls = append(l.calls, "unlock")
	return nil
}

func (l *fakeLab) Spectrum() (advantest.Spectrum, error) {
	l.sweeps++
	l.waits = append(l.waits, time.Since(l.applied))
	if l.sweeps == l.fail {
		return advantest.Spectrum{}, errors.New("GPIB timeout")
	}
	carrier := 1e9 + l.offset*1e8
	s := advantest.Spectrum{Freq: advantest.Frequencies(carrier-35e6, carrier+35e6)}
	s.A = make([]float64, len(s.Freq))
	for i := range s.A {
		s.A[i] = -90
	}
	s.A[350] = -3 - l.supply
	return s, nil
}

func config(t *testing.T) testbench.Config {
	c := testbench.DefaultConfig()
	c.Dir = t.TempDir()
	c.TuneStop = 0.5
	return c
}

func TestTuningVoltages(t *testing.T) {
	v, err := testbench.DefaultConfig().TuningVoltages()
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 46 {
		t.Fatalf("expected 46 points got %d", len(v))
	}
	if v[3] != 0.3 || v[45] != 4.5 {
		t.Errorf("expected 0.3 and 4.5 got %v and %v", v[3], v[45])
	}
	c := testbench.DefaultConfig()
	c.TuneStep = 0
	if _, err := c.TuningVoltages(); err == nil {
		t.Error("expected a zero step to fail")
	}
}

func TestLogName(t *testing.T) {
	c := testbench.DefaultConfig()
	if n := c.LogName(5); n != "DUT_1_5.0V.csv" {
		t.Errorf("expected DUT_1_5.0V.csv got %s", n)
	}
}

func TestRunWritesLogs(t *testing.T) {
	lab := &fakeLab{}
	c := config(t)
	b := &testbench.Bench{Gen: lab, Supply: lab, Analyzer: lab, Config: c}
	paths, err := b.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	expected := []string{filepath.Join(c.Dir, "DUT_1_3.3V.csv"), filepath.Join(c.Dir, "DUT_1_5.0V.csv")}
	if diff := cmp.Diff(expected, paths); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
	sweep, err := touchstone.ReadVCOFile(paths[1])
	if err != nil {
		t.Fatal(err)
	}
	if len(sweep) != 6 {
		t.Fatalf("expected 6 points got %d", len(sweep))
	}
	want := touchstone.VCOSample{Vctl: 0.2, Freq: 1.02e9, Power: -8, Current: 0.05}
	if diff := cmp.Diff(want, sweep[2], cmpopts.EquateApprox(0, 1e-3)); diff != "" {
		t.Errorf("sample mismatch (-want +got):\n%s", diff)
	}
	lo, hi := sweep.TuningRange()
	if hi-lo < 49.9e6 || hi-lo > 50.1e6 {
		t.Errorf("expected a 50 MHz tuning range got %g", hi-lo)
	}
	tail := lab.calls[len(lab.calls)-5:]
	expectedTail := []string{"gen 1 false", "supply 1 3.3 false", "supply 2 3.3 false", "supply 3 3.3 false", "unlock"}
	if diff := cmp.Diff(expectedTail, tail); diff != "" {
		t.Errorf("shutdown mismatch (-want +got):\n%s", diff)
	}
}

func TestRunKeepsPartialSweep(t *testing.T) {
	lab := &fakeLab{fail: 4}
	c := config(t)
	b := &testbench.Bench{Gen: lab, Supply: lab, Analyzer: lab, Config: c}
	paths, err := b.Run(context.Background())
	if err == nil {
		t.Fatal("expected the analyzer failure to be returned")
	}
	if len(paths) != 1 {
		t.Fatalf("expected the partial log to be written, got %v", paths)
	}
	sweep, err := touchstone.ReadVCOFile(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(sweep) != 3 {
		t.Errorf("expected 3 points before the failure got %d", len(sweep))
	}
	if lab.calls[len(lab.calls)-1] != "unlock" {
		t.Error("expected the supply to be unlocked after a failure")
	}
}

func TestSweepCancel(t *testing.T) {
	lab := &fakeLab{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := &testbench.Bench{Gen: lab, Supply: lab, Analyzer: lab, Config: config(t)}
	if _, err := b.Sweep(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled got %v", err)
	}
}

func TestSweepSettlesBeforeMeasuring(t *testing.T) {
	lab := &fakeLab{supply: 3.3}
	c := config(t)
	c.TuneStop = 0.2
	c.Settle = 20 * time.Millisecond
	b := &testbench.Bench{Gen: lab, Supply: lab, Analyzer: lab, Config: c}
	sweep, err := b.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(sweep) != 3 || len(lab.waits) != 3 {
		t.Fatalf("expected 3 points got %d samples and %d spectra", len(sweep), len(lab.waits))
	}
	for i, d := range lab.waits {
		if d < c.Settle {
			t.Errorf("point %d measured %v after tuning, expected at least %v", i, d, c.Settle)
		}
	}
}

func TestSweepCancelWhileSettling(t *testing.T) {
	lab := &fakeLab{}
	c := config(t)
	c.Settle = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	b := &testbench.Bench{Gen: lab, Supply: lab, Analyzer: lab, Config: c}
	if _, err := b.Sweep(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded got %v", err)
	}
	if lab.sweeps != 0 {
		t.Errorf("expected no measurement before the VCO settled, got %d", lab.sweeps)
	}
}
