package rigol

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/synteira/rflab/scpi"
	"github.com/synteira/rflab/synth"
)

// Auto selects automatic coupling when given as a bandwidth or attenuation
const Auto = -1.

// Trace modes of the DSA815
const (
	TraceNormal  = "normal"
	TraceMaxHold = "maxhold"
)

// TracePoints is the number of points in a DSA815 trace
const TracePoints = 601

// DSA815 is a spectrum analyzer
type DSA815 struct {
	scpi.SCPI
}

// NewDSA815 connects to the analyzer at addr
func NewDSA815(addr string) (*DSA815, error) {
	s, err := NewSCPI(addr)
	return &DSA815{s}, err
}

// AnalyzerSettings are the controls applied before a trace is taken.  After
// Apply every field holds the value the analyzer reports.
type AnalyzerSettings struct {
	Center      float64 `json:"center" koanf:"center"`           // Hz
	Span        float64 `json:"span" koanf:"span"`               // Hz
	RBW         float64 `json:"rbw" koanf:"rbw"`                 // Hz, or Auto
	VBW         float64 `json:"vbw" koanf:"vbw"`                 // Hz, or Auto
	Attenuation float64 `json:"attenuation" koanf:"attenuation"` // dB, or Auto
	RefLevel    float64 `json:"refLevel" koanf:"reflevel"`       // dBm
	Preamp      bool    `json:"preamp" koanf:"preamp"`
	TraceMode   string  `json:"traceMode" koanf:"tracemode"`

	// SweepTime is read back from the analyzer and ignored by Apply
	SweepTime float64 `json:"sweepTime" koanf:"-"` // s
}

// DefaultAnalyzerSettings looks at a 21.4 MHz IF with a 10 MHz span
func DefaultAnalyzerSettings() AnalyzerSettings {
	return AnalyzerSettings{
		Center:      21.4e6,
		Span:        10e6,
		RBW:         10e3,
		VBW:         10e3,
		Attenuation: 0,
		RefLevel:    -20,
		TraceMode:   TraceNormal,
	}
}

// SetCenter sets the center frequency and returns the one in use
func (d *DSA815) SetCenter(hz float64) (float64, error) {
	if err := d.Write(":SENSe:FREQuency:CENTer", strconv.Itoa(int(hz))); err != nil {
		return 0, err
	}
	return d.ReadFloat(":SENSe:FREQuency:CENTer?")
}

// SetSpan sets the frequency span and returns the one in use
func (d *DSA815) SetSpan(hz float64) (float64, error) {
	if err := d.Write(":SENSe:FREQuency:SPAN", strconv.Itoa(int(hz))); err != nil {
		return 0, err
	}
	return d.ReadFloat(":SENSe:FREQuency:SPAN?")
}

// setCoupled sets a control that has an automatic mode, root is the
// command without the :AUTO suffix
func (d *DSA815) setCoupled(root, quantity string, v, min, max float64, unit string) (float64, error) {
	if v == Auto {
		if err := d.Write(root + ":AUTO ON"); err != nil {
			return 0, err
		}
		return d.ReadFloat(root + "?")
	}
	if err := synth.CheckRange(quantity, v, min, max, unit); err != nil {
		return 0, err
	}
	if err := d.Write(root + ":AUTO OFF"); err != nil {
		return 0, err
	}
	if err := d.Write(root, strconv.FormatFloat(v, 'f', -1, 64)); err != nil {
		return 0, err
	}
	return d.ReadFloat(root + "?")
}

// SetRBW sets the resolution bandwidth, 100 Hz to 1 MHz or Auto
func (d *DSA815) SetRBW(hz float64) (float64, error) {
	return d.setCoupled(":SENSe:BANDwidth:RESolution", "resolution bandwidth", hz, 100, 1e6, "Hz")
}

// SetVBW sets the video bandwidth, 100 Hz to 3 MHz or Auto
func (d *DSA815) SetVBW(hz float64) (float64, error) {
	return d.setCoupled(":SENSe:BANDwidth:VIDeo", "video bandwidth", hz, 100, 3e6, "Hz")
}

// SetAttenuation sets the input attenuator, 0 to 30 dB or Auto
func (d *DSA815) SetAttenuation(db float64) (float64, error) {
	return d.setCoupled(":SENSe:POWer:RF:ATTenuation", "attenuation", db, 0, 30, "dB")
}

// SetRefLevel sets the reference level, -100 to 20 dBm
func (d *DSA815) SetRefLevel(dbm float64) (float64, error) {
	if err := synth.CheckRange("reference level", dbm, -100, 20, "dBm"); err != nil {
		return 0, err
	}
	cmd := ":DISPlay:WINdow:TRACe:Y:SCALe:RLEVel"
	if err := d.Write(cmd, strconv.FormatFloat(dbm, 'f', -1, 64)); err != nil {
		return 0, err
	}
	return d.ReadFloat(cmd + "?")
}

// SetPreamp switches the low noise preamplifier
func (d *DSA815) SetPreamp(on bool) error {
	return d.Write(":SENSe:POWer:RF:GAIN:STATe", onOff(on))
}

// SetTraceMode selects normal (clear/write) or max hold for trace 1
func (d *DSA815) SetTraceMode(mode string) error {
	var mnemonic string
	switch strings.ToLower(mode) {
	case TraceNormal:
		mnemonic = "WRITe"
	case TraceMaxHold:
		mnemonic = "MAXHold"
	default:
		return &synth.OptionError{Option: "trace mode", Value: mode, Allowed: []string{TraceNormal, TraceMaxHold}}
	}
	return d.Write(":TRACe1:MODE", mnemonic)
}

// SweepTime returns the sweep time in seconds
func (d *DSA815) SweepTime() (float64, error) {
	return d.ReadFloat(":SENSe:SWEep:TIME?")
}

// Apply sends every setting in order and returns what the analyzer took
func (d *DSA815) Apply(s AnalyzerSettings) (AnalyzerSettings, error) {
	var err error
	out := s
	if out.Center, err = d.SetCenter(s.Center); err != nil {
		return out, fmt.Errorf("center: %w", err)
	}
	if out.Span, err = d.SetSpan(s.Span); err != nil {
		return out, fmt.Errorf("span: %w", err)
	}
	if out.RBW, err = d.SetRBW(s.RBW); err != nil {
		return out, fmt.Errorf("rbw: %w", err)
	}
	if out.VBW, err = d.SetVBW(s.VBW); err != nil {
		return out, fmt.Errorf("vbw: %w", err)
	}
	if out.Attenuation, err = d.SetAttenuation(s.Attenuation); err != nil {
		return out, fmt.Errorf("attenuation: %w", err)
	}
	if out.RefLevel, err = d.SetRefLevel(s.RefLevel); err != nil {
		return out, fmt.Errorf("reference level: %w", err)
	}
	if err = d.SetPreamp(s.Preamp); err != nil {
		return out, fmt.Errorf("preamp: %w", err)
	}
	if err = d.SetTraceMode(s.TraceMode); err != nil {
		return out, err
	}
	out.TraceMode = strings.ToLower(s.TraceMode)
	out.SweepTime, err = d.SweepTime()
	return out, err
}

// Trace reads trace 1 in dBm
func (d *DSA815) Trace() ([]float64, error) {
	b, err := d.ReadBlock(":TRACe:DATA?", "TRACE1")
	if err != nil {
		return nil, err
	}
	return ParseTrace(string(b))
}

// ParseTrace splits the comma separated payload of a trace block
func ParseTrace(s string) ([]float64, error) {
	fields := strings.Split(strings.TrimSpace(s), ",")
	out := make([]float64, 0, len(fields))
	for i, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("trace point %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// TraceFrequencies returns n frequencies evenly spread across the span
func TraceFrequencies(center, span float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = center
		return out
	}
	start := center - span/2
	step := span / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

// WriteTraceCSV writes a header and one frequency, level row per point
func WriteTraceCSV(w io.Writer, freq, levels []float64) error {
	if len(freq) != len(levels) {
		return fmt.Errorf("%d frequencies for %d levels", len(freq), len(levels))
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Frequency [Hz]", "Power [dBm]"}); err != nil {
		return err
	}
	for i := range freq {
		row := []string{
			strconv.FormatFloat(freq[i], 'f', -1, 64),
			strconv.FormatFloat(levels[i], 'f', -1, 64)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
