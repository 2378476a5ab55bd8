package touchstone

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// VCOHeader is the first line of a sweep log
const VCOHeader = "Vctl[V]\tFreq[Hz]\tPwr[dBm]\tI[A]"

// VCOSample is one point of a VCO characterization sweep
type VCOSample struct {
	Vctl    float64 // tuning voltage, V
	Freq    float64 // Hz
	Power   float64 // dBm
	Current float64 // supply current, A; zero when not measured
}

// VCOSweep is a sweep in order of tuning voltage
type VCOSweep []VCOSample

func (s VCOSweep) column(f func(VCOSample) float64) []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = f(p)
	}
	return out
}

// Voltages returns the tuning voltages
func (s VCOSweep) Voltages() []float64 { return s.column(func(p VCOSample) float64 { return p.Vctl }) }

// Frequencies returns the measured frequencies
func (s VCOSweep) Frequencies() []float64 { return s.column(func(p VCOSample) float64 { return p.Freq }) }

// Powers returns the measured output powers
func (s VCOSweep) Powers() []float64 { return s.column(func(p VCOSample) float64 { return p.Power }) }

// TuningRange returns the lowest and highest frequency of the sweep
func (s VCOSweep) TuningRange() (lo, hi float64) {
	if len(s) == 0 {
		return 0, 0
	}
	f := s.Frequencies()
	return floats.Min(f), floats.Max(f)
}

// Sensitivity returns the tuning gain between neighboring points, Hz/V
func (s VCOSweep) Sensitivity() []float64 {
	if len(s) < 2 {
		return nil
	}
	out := make([]float64, len(s)-1)
	for i := range out {
		dv := s[i+1].Vctl - s[i].Vctl
		if dv == 0 {
			continue
		}
		out[i] = (s[i+1].Freq - s[i].Freq) / dv
	}
	return out
}

// ReadVCO parses a tab delimited sweep log with one header line and rows of
// vctl, frequency, power and optionally current
func ReadVCO(r io.Reader) (VCOSweep, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	var out VCOSweep
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return out, err
		}
		if line == 1 {
			continue
		}
		if len(record) < 3 {
			return out, fmt.Errorf("line %d: expected at least 3 columns got %d", line, len(record))
		}
		vals := make([]float64, len(record))
		for i, f := range record {
			vals[i], err = strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return out, fmt.Errorf("line %d: %w", line, err)
			}
		}
		p := VCOSample{Vctl: vals[0], Freq: vals[1], Power: vals[2]}
		if len(vals) > 3 {
			p.Current = vals[3]
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

// ReadVCOFile parses the sweep log at path
func ReadVCOFile(path string) (VCOSweep, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadVCO(f)
}

// WriteVCO writes s as a sweep log
func WriteVCO(w io.Writer, s VCOSweep) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, VCOHeader)
	for _, p := range s {
		fmt.Fprintf(bw, "%s\t%s\t%s\t%s\n",
			strconv.FormatFloat(p.Vctl, 'G', -1, 64),
			strconv.FormatFloat(p.Freq, 'G', -1, 64),
			strconv.FormatFloat(p.Power, 'G', -1, 64),
			strconv.FormatFloat(p.Current, 'G', -1, 64))
	}
	return bw.Flush()
}
