package rigol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/synteira/rflab/scpi"
	"github.com/synteira/rflab/synth"
)

var waveforms = map[string]string{
	"sine":   "SINusoid",
	"square": "SQUare",
	"ramp":   "RAMP",
	"pulse":  "PULSe",
}

// Waveform is one APPLy setting of a generator channel
type Waveform struct {
	Shape     string  `json:"shape" koanf:"shape"`         // sine, square, ramp or pulse
	Frequency float64 `json:"frequency" koanf:"frequency"` // Hz
	Amplitude float64 `json:"amplitude" koanf:"amplitude"` // Vpp
	Offset    float64 `json:"offset" koanf:"offset"`       // V
	Phase     float64 `json:"phase" koanf:"phase"`         // degrees
}

// DCBias is the near-DC waveform used to drive a tuning voltage from the
// generator: a 1 kHz sine of 1 mVpp riding on offset
func DCBias(offset float64) Waveform {
	return Waveform{Shape: "sine", Frequency: 1000, Amplitude: 0.001, Offset: offset}
}

// DG4102 is a two channel function generator
type DG4102 struct {
	scpi.SCPI
}

// NewDG4102 connects to the generator at addr
func NewDG4102(addr string) (*DG4102, error) {
	s, err := NewSCPI(addr)
	return &DG4102{s}, err
}

func checkChannel(ch, n int) error {
	if ch < 1 || ch > n {
		return fmt.Errorf("channel %d does not exist, expected 1 to %d", ch, n)
	}
	return nil
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ApplyCommand returns the APPLy command for w on channel ch
func ApplyCommand(ch int, w Waveform) (string, error) {
	mnemonic, ok := waveforms[strings.ToLower(w.Shape)]
	if !ok {
		return "", &synth.OptionError{Option: "waveform", Value: w.Shape,
			Allowed: []string{"sine", "square", "ramp", "pulse"}}
	}
	return fmt.Sprintf(":SOURce%d:APPLy:%s %s,%s,%s,%s", ch, mnemonic,
		num(w.Frequency), num(w.Amplitude), num(w.Offset), num(w.Phase)), nil
}

// Apply configures channel ch to produce w
func (g *DG4102) Apply(ch int, w Waveform) error {
	if err := checkChannel(ch, 2); err != nil {
		return err
	}
	cmd, err := ApplyCommand(ch, w)
	if err != nil {
		return err
	}
	return g.Write(cmd)
}

// SetOffset applies a DC bias of v volts on channel ch
func (g *DG4102) SetOffset(ch int, v float64) error {
	return g.Apply(ch, DCBias(v))
}

// SetOutput switches the output of channel ch
func (g *DG4102) SetOutput(ch int, on bool) error {
	if err := checkChannel(ch, 2); err != nil {
		return err
	}
	return g.Write(fmt.Sprintf(":OUTPut%d", ch), onOff(on))
}

// GetOutput returns true if channel ch is on
func (g *DG4102) GetOutput(ch int) (bool, error) {
	if err := checkChannel(ch, 2); err != nil {
		return false, err
	}
	return g.ReadBool(fmt.Sprintf(":OUTPut%d?", ch))
}
