// Package touchstone reads network parameter files: Touchstone .sNp files
// from a VNA or simulator, the CSV export of Arinst handheld VNAs, and the
// sweep logs written by the VCO testbench.
//
// Parameters are held as complex values in one Trace per parameter, so the
// magnitude (dB) and phase (degrees) of any file format are computed the same
// way.
package touchstone

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"math/cmplx"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Format is the representation of the parameter pairs in a file
type Format string

const (
	// MA is linear magnitude and angle in degrees
	MA Format = "MA"
	// DB is magnitude in dB and angle in degrees
	DB Format = "DB"
	// RI is real and imaginary parts
	RI Format = "RI"
)

var (
	// ErrNoData is generated when a file holds no data rows
	ErrNoData = errors.New("no data rows")

	// ErrUnknownPorts is generated when the port count cannot be taken from a file name
	ErrUnknownPorts = errors.New("port count unknown, expected a .sNp extension")

	unitScale = map[string]float64{"HZ": 1, "KHZ": 1e3, "MHZ": 1e6, "GHZ": 1e9}
)

// Options is the content of the "#" option line
type Options struct {
	Unit      float64 // Hz per frequency unit
	Parameter string  // S, Y, Z, H, G
	Format    Format
	R         float64 // reference impedance, ohms
}

// DefaultOptions are in force when a file has no option line
func DefaultOptions() Options {
	return Options{Unit: 1e9, Parameter: "S", Format: MA, R: 50}
}

func parseOptions(line string) (Options, error) {
	o := DefaultOptions()
	fields := strings.Fields(strings.TrimPrefix(line, "#"))
	for i := 0; i < len(fields); i++ {
		f := strings.ToUpper(fields[i])
		if s, ok := unitScale[f]; ok {
			o.Unit = s
			continue
		}
		switch f {
		case "S", "Y", "Z", "H", "G":
			o.Parameter = f
		case "MA", "DB", "RI":
			o.Format = Format(f)
		case "R":
			if i+1 >= len(fields) {
				return o, fmt.Errorf("option line %q: R without a value", line)
			}
			r, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				return o, fmt.Errorf("option line %q: %w", line, err)
			}
			o.R = r
			i++
		default:
			return o, fmt.Errorf("option line %q: unknown option %s", line, fields[i])
		}
	}
	return o, nil
}

// Network is the content of an N port file.  Data[k] holds the N*N
// parameters at Freq[k] in file order, which is row major except for two
// port files, ordered 11, 21, 12, 22.
type Network struct {
	Ports   int
	Options Options
	Freq    []float64 // Hz
	Data    [][]complex128
}

// FrequencyMHz returns the frequencies in MHz
func (n *Network) FrequencyMHz() []float64 {
	out := make([]float64, len(n.Freq))
	for i, f := range n.Freq {
		out[i] = f / 1e6
	}
	return out
}

func (n *Network) index(i, j int) int {
	if n.Ports == 2 {
		return (j-1)*2 + (i - 1)
	}
	return (i-1)*n.Ports + (j - 1)
}

// Trace returns the parameter Sij as a trace, with 1-based port indices
func (n *Network) Trace(i, j int) (Trace, error) {
	if i < 1 || j < 1 || i > n.Ports || j > n.Ports {
		return Trace{}, fmt.Errorf("parameter %d%d does not exist in a %d port network", i, j, n.Ports)
	}
	k := n.index(i, j)
	t := Trace{Freq: n.Freq, Values: make([]complex128, len(n.Data))}
	for p, row := range n.Data {
		t.Values[p] = row[k]
	}
	return t, nil
}

func toComplex(f Format, a, b float64) complex128 {
	switch f {
	case DB:
		return cmplx.Rect(math.Pow(10, a/20), b*math.Pi/180)
	case RI:
		return complex(a, b)
	default:
		return cmplx.Rect(a, b*math.Pi/180)
	}
}

// Read parses a Touchstone file with the given number of ports.  Comments
// ("!") are skipped, the option line is honored, and a data point may span
// lines.
func Read(r io.Reader, ports int) (*Network, error) {
	if ports < 1 {
		return nil, ErrUnknownPorts
	}
	n := &Network{Ports: ports, Options: DefaultOptions()}
	per := 1 + 2*ports*ports
	var pending []float64
	scan := bufio.NewScanner(r)
	line := 0
	for scan.Scan() {
		line++
		txt := scan.Text()
		if i := strings.Index(txt, "!"); i >= 0 {
			txt = txt[:i]
		}
		txt = strings.TrimSpace(txt)
		if txt == "" {
			continue
		}
		if strings.HasPrefix(txt, "#") {
			o, err := parseOptions(txt)
			if err != nil {
				return nil, err
			}
			n.Options = o
			continue
		}
		for _, field := range strings.Fields(txt) {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			pending = append(pending, v)
		}
		for len(pending) >= per {
			n.append(pending[:per])
			pending = pending[per:]
		}
	}
	if err := scan.Err(); err != nil {
		return nil, err
	}
	if len(pending) != 0 {
		return nil, fmt.Errorf("%d values left over after the last point", len(pending))
	}
	if len(n.Freq) == 0 {
		return nil, ErrNoData
	}
	return n, nil
}

func (n *Network) append(vals []float64) {
	n.Freq = append(n.Freq, vals[0]*n.Options.Unit)
	row := make([]complex128, (len(vals)-1)/2)
	for k := range row {
		row[k] = toComplex(n.Options.Format, vals[1+2*k], vals[2+2*k])
	}
	n.Data = append(n.Data, row)
}

// PortsFromName returns N from a .sNp file name
func PortsFromName(path string) (int, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if len(ext) < 4 || ext[1] != 's' || ext[len(ext)-1] != 'p' {
		return 0, ErrUnknownPorts
	}
	n, err := strconv.Atoi(ext[2 : len(ext)-1])
	if err != nil || n < 1 {
		return 0, ErrUnknownPorts
	}
	return n, nil
}

// ReadFile parses the Touchstone file at path, taking the port count from its extension
func ReadFile(path string) (*Network, error) {
	ports, err := PortsFromName(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f, ports)
}

// LegacySkipLines is the header length of the two port exports the lab VNA writes
const LegacySkipLines = 5

// ReadLegacy parses a two port file by skipping a fixed number of header
// lines and reading rows of frequency in Hz followed by dB/angle pairs in
// the order S11, S21, S12, S22
func ReadLegacy(r io.Reader, skip int) (*Network, error) {
	n := &Network{Ports: 2, Options: Options{Unit: 1, Parameter: "S", Format: DB, R: 50}}
	scan := bufio.NewScanner(r)
	line := 0
	for scan.Scan() {
		line++
		if line <= skip {
			continue
		}
		fields := strings.Fields(scan.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 9 {
			return nil, fmt.Errorf("line %d: expected 9 columns got %d", line, len(fields))
		}
		vals := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			vals[i] = v
		}
		n.append(vals)
	}
	if err := scan.Err(); err != nil {
		return nil, err
	}
	if len(n.Freq) == 0 {
		return nil, ErrNoData
	}
	return n, nil
}
