// Package advantest controls Advantest R3271 spectrum analyzers over GPIB,
// through a Prologix adapter.
package advantest

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/synteira/rflab/prologix"
)

const (
	// TracePoints is the number of horizontal points in a trace
	TracePoints = 701

	// TraceLevels is the number of vertical steps across the display
	TraceLevels = 400

	// DisplayRange is the vertical span of the display in dB, below the reference level
	DisplayRange = 100.

	// DefaultGPIBAddr is the factory GPIB address
	DefaultGPIBAddr = 1
)

// R3271 is a spectrum analyzer on a Prologix controlled GPIB bus
type R3271 struct {
	*prologix.Controller
}

// NewR3271 wraps a controller addressing the analyzer
func NewR3271(c *prologix.Controller) *R3271 {
	return &R3271{c}
}

// Identity is the model and firmware revision reported by the analyzer
type Identity struct {
	Type     string
	Revision string
}

// Setup configures the adapter, reads the identity, selects the native
// R3271 command set, and turns service requests off
func (r *R3271) Setup() (Identity, error) {
	var id Identity
	if err := r.Controller.Setup(); err != nil {
		return id, err
	}
	var err error
	if id.Type, err = r.Query("TYP?"); err != nil {
		return id, err
	}
	if id.Revision, err = r.Query("REV?"); err != nil {
		return id, err
	}
	return id, r.Write("R3271", "SRQ OFF")
}

// parseValue reads the number out of a header prefixed answer such as
// "FA 1.000000E+09" or "RL  -10.0"
func parseValue(s string) (float64, error) {
	v := strings.TrimLeft(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ ")
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("malformed answer %q: %w", s, err)
	}
	return f, nil
}

func (r *R3271) readFloat(cmd string) (float64, error) {
	resp, err := r.Query(cmd)
	if err != nil {
		return 0, err
	}
	return parseValue(resp)
}

// StartFrequency returns the start of the sweep in Hz
func (r *R3271) StartFrequency() (float64, error) {
	return r.readFloat("FA?")
}

// StopFrequency returns the end of the sweep in Hz
func (r *R3271) StopFrequency() (float64, error) {
	return r.readFloat("FB?")
}

// ReferenceLevel returns the reference level in dBm
func (r *R3271) ReferenceLevel() (float64, error) {
	return r.readFloat("RL?")
}

// SingleSweep takes one sweep
func (r *R3271) SingleSweep() error {
	return r.Write("TS")
}

// Trace reads trace A or B as raw display levels
func (r *R3271) Trace(name string) ([]uint16, error) {
	name = strings.ToUpper(name)
	if name != "A" && name != "B" {
		return nil, fmt.Errorf("trace %q does not exist, expected A or B", name)
	}
	b, err := r.ReadBinary("TB"+name+"?", 2*TracePoints)
	if err != nil {
		return nil, err
	}
	out := make([]uint16, TracePoints)
	for i := range out {
		out[i] = binary.BigEndian.Uint16(b[2*i:])
	}
	return out, nil
}

// Spectrum is one sweep of both traces
type Spectrum struct {
	Freq []float64 // Hz
	A    []float64 // dBm
	B    []float64 // dBm
}

// Frequencies returns the TracePoints frequencies of a sweep from start to stop
func Frequencies(start, stop float64) []float64 {
	step := (stop - start) / (TracePoints - 1)
	out := make([]float64, TracePoints)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

// Levels converts display levels to dBm.  Level 0 is the bottom of the
// display, DisplayRange below the reference level.
func Levels(bins []uint16, ref float64) []float64 {
	step := DisplayRange / TraceLevels
	out := make([]float64, len(bins))
	for i, b := range bins {
		out[i] = float64(b)*step + ref - DisplayRange
	}
	return out
}

// Spectrum takes a sweep and reads both traces, scaled to Hz and dBm
func (r *R3271) Spectrum() (Spectrum, error) {
	var s Spectrum
	start, err := r.StartFrequency()
	if err != nil {
		return s, err
	}
	stop, err := r.StopFrequency()
	if err != nil {
		return s, err
	}
	ref, err := r.ReferenceLevel()
	if err != nil {
		return s, err
	}
	if err = r.SingleSweep(); err != nil {
		return s, err
	}
	a, err := r.Trace("A")
	if err != nil {
		return s, err
	}
	b, err := r.Trace("B")
	if err != nil {
		return s, err
	}
	s.Freq = Frequencies(start, stop)
	s.A = Levels(a, ref)
	s.B = Levels(b, ref)
	return s, nil
}

// Release restores continuous sweep and returns the analyzer to local control
func (r *R3271) Release() error {
	if err := r.Write("CONTS"); err != nil {
		return err
	}
	return r.Controller.Release()
}
