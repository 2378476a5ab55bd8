package rigol_test

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/synteira/rflab/imgcrop"
	"github.com/synteira/rflab/rigol"
	"github.com/synteira/rflab/synth"
)

type instrument struct {
	addr string

	mu   sync.Mutex
	seen []string
}

func (in *instrument) lines() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]string(nil), in.seen...)
}

// fakeInstrument answers each newline terminated line found in table
func fakeInstrument(t *testing.T, table map[string]string) *instrument {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	in := &instrument{addr: ln.Addr().String()}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				rd := bufio.NewReader(c)
				for {
					line, err := rd.ReadString('\n')
					if err != nil {
						return
					}
					line = strings.TrimSpace(line)
					in.mu.Lock()
					in.seen = append(in.seen, line)
					in.mu.Unlock()
					if resp, ok := table[line]; ok {
						c.Write([]byte(resp))
					}
				}
			}(conn)
		}
	}()
	return in
}

func block(payload []byte) string {
	return fmt.Sprintf("#9%09d%s\n", len(payload), payload)
}

func TestDSA815Apply(t *testing.T) {
	in := fakeInstrument(t, map[string]string{
		":SENSe:FREQuency:CENTer?":              "21400000\n",
		":SENSe:FREQuency:SPAN?":                "10000000\n",
		":SENSe:BANDwidth:RESolution?":          "10000\n",
		":SENSe:BANDwidth:VIDeo?":               "30000\n",
		":SENSe:POWer:RF:ATTenuation?":          "0\n",
		":DISPlay:WINdow:TRACe:Y:SCALe:RLEVel?": "-2.000000e+01\n",
		":SENSe:SWEep:TIME?":                    "3.750000e-02\n",
	})
	d, err := rigol.NewDSA815(in.addr)
	if err != nil {
		t.Fatal(err)
	}
	s := rigol.DefaultAnalyzerSettings()
	s.VBW = rigol.Auto
	got, err := d.Apply(s)
	if err != nil {
		t.Fatal(err)
	}
	if got.VBW != 30000 || got.SweepTime != 0.0375 || got.RefLevel != -20 {
		t.Errorf("unexpected settings read back %+v", got)
	}
	sent := in.lines()
	expected := []string{
		":SENSe:FREQuency:CENTer 21400000",
		":SENSe:FREQuency:CENTer?",
		":SENSe:FREQuency:SPAN 10000000",
		":SENSe:FREQuency:SPAN?",
		":SENSe:BANDwidth:RESolution:AUTO OFF",
		":SENSe:BANDwidth:RESolution 10000",
		":SENSe:BANDwidth:RESolution?",
		":SENSe:BANDwidth:VIDeo:AUTO ON",
		":SENSe:BANDwidth:VIDeo?",
		":SENSe:POWer:RF:ATTenuation:AUTO OFF",
		":SENSe:POWer:RF:ATTenuation 0",
		":SENSe:POWer:RF:ATTenuation?",
		":DISPlay:WINdow:TRACe:Y:SCALe:RLEVel -20",
		":DISPlay:WINdow:TRACe:Y:SCALe:RLEVel?",
		":SENSe:POWer:RF:GAIN:STATe OFF",
		":TRACe1:MODE WRITe",
		":SENSe:SWEep:TIME?",
	}
	if diff := cmp.Diff(expected, sent); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestDSA815RangeChecks(t *testing.T) {
	in := fakeInstrument(t, nil)
	d, _ := rigol.NewDSA815(in.addr)
	if _, err := d.SetRBW(50); !synth.IsRangeError(err) {
		t.Errorf("expected a RangeError for a 50 Hz RBW got %v", err)
	}
	if _, err := d.SetAttenuation(31); !synth.IsRangeError(err) {
		t.Errorf("expected a RangeError for 31 dB got %v", err)
	}
	var oe *synth.OptionError
	if err := d.SetTraceMode("average"); !errors.As(err, &oe) {
		t.Errorf("expected an OptionError got %v", err)
	}
}

func TestDSA815Trace(t *testing.T) {
	in := fakeInstrument(t, map[string]string{
		":TRACe:DATA? TRACE1": block([]byte(" -7.512e+01, -8.000e+01, -2.150e+01")),
	})
	d, _ := rigol.NewDSA815(in.addr)
	tr, err := d.Trace()
	if err != nil {
		t.Fatal(err)
	}
	expected := []float64{-75.12, -80, -21.5}
	if diff := cmp.Diff(expected, tr); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
}

func TestTraceFrequenciesAndCSV(t *testing.T) {
	f := rigol.TraceFrequencies(21.4e6, 10e6, 3)
	if diff := cmp.Diff([]float64{16.4e6, 21.4e6, 26.4e6}, f); diff != "" {
		t.Errorf("frequency mismatch (-want +got):\n%s", diff)
	}
	buf := &bytes.Buffer{}
	if err := rigol.WriteTraceCSV(buf, f, []float64{-80, -21.5, -79}); err != nil {
		t.Fatal(err)
	}
	expected := "Frequency [Hz],Power [dBm]\n16400000,-80\n21400000,-21.5\n26400000,-79\n"
	if buf.String() != expected {
		t.Errorf("expected\n%s\ngot\n%s", expected, buf.String())
	}
	if err := rigol.WriteTraceCSV(buf, f, nil); err == nil {
		t.Error("expected a length mismatch to fail")
	}
}

func TestApplyCommand(t *testing.T) {
	cmd, err := rigol.ApplyCommand(1, rigol.DCBias(2.5))
	if err != nil {
		t.Fatal(err)
	}
	expected := ":SOURce1:APPLy:SINusoid 1000,0.001,2.5,0"
	if cmd != expected {
		t.Errorf("expected %q got %q", expected, cmd)
	}
	if _, err := rigol.ApplyCommand(1, rigol.Waveform{Shape: "noise"}); err == nil {
		t.Error("expected noise to be rejected")
	}
}

func TestDG4102Output(t *testing.T) {
	in := fakeInstrument(t, map[string]string{":OUTPut2?": "ON\n"})
	g, _ := rigol.NewDG4102(in.addr)
	if err := g.SetOutput(3, true); err == nil {
		t.Error("expected channel 3 to be rejected")
	}
	on, err := g.GetOutput(2)
	if err != nil {
		t.Fatal(err)
	}
	if !on {
		t.Error("expected channel 2 to be on")
	}
}

func TestDP832SetAndMeasure(t *testing.T) {
	in := fakeInstrument(t, map[string]string{":MEAS:CURR:DC? CH3": "0.0213\n"})
	p, _ := rigol.NewDP832(in.addr)
	if err := p.Set(3, 5, 0.05, true); err != nil {
		t.Fatal(err)
	}
	c, err := p.Current(3)
	if err != nil {
		t.Fatal(err)
	}
	if c != 0.0213 {
		t.Errorf("expected 0.0213 A got %g", c)
	}
	expected := []string{":APPL CH3,5,0.05", ":OUTP CH3,ON", ":MEAS:CURR:DC? CH3"}
	if diff := cmp.Diff(expected, in.lines()); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
	if _, err := p.Measure(1, "resistance"); err == nil {
		t.Error("expected resistance to be rejected")
	}
}

func TestDP832Monitor(t *testing.T) {
	table := map[string]string{}
	for ch := 1; ch <= 3; ch++ {
		table[fmt.Sprintf(":MEAS:VOLT:DC? CH%d", ch)] = "3.3\n"
		table[fmt.Sprintf(":MEAS:CURR:DC? CH%d", ch)] = "0.1\n"
	}
	in := fakeInstrument(t, table)
	p, _ := rigol.NewDP832(in.addr)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var got []string
	err := p.Monitor(ctx, 5*time.Millisecond, func(rs []rigol.Reading) {
		got = append(got, rigol.FormatReadings(rs))
		if len(got) == 2 {
			cancel()
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 readings got %d", len(got))
	}
	expected := "CH1:  3.3000V 0.1000A   CH2:  3.3000V 0.1000A   CH3:  3.3000V 0.1000A"
	if got[0] != expected {
		t.Errorf("expected %q got %q", expected, got[0])
	}
}

func TestDHO924SaveScreenshot(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 1024, 600))
	png := &bytes.Buffer{}
	if err := imgcrop.Encode(png, img, "png"); err != nil {
		t.Fatal(err)
	}
	in := fakeInstrument(t, map[string]string{":DISPlay:DATA? PNG": block(png.Bytes())})
	o, _ := rigol.NewDHO924(in.addr)
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "RigolDS0.bmp"), nil, 0o644)
	os.WriteFile(filepath.Join(dir, "RigolDS1.png"), nil, 0o644)
	path, err := o.SaveScreenshot(dir, "png", true)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "RigolDS2.png" {
		t.Errorf("expected RigolDS2.png got %s", filepath.Base(path))
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	saved, _, err := imgcrop.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if b := saved.Bounds(); b.Dx() != 1000 || b.Dy() != 416 {
		t.Errorf("expected a 1000x416 crop got %v", b)
	}
	if _, err := o.Screenshot("gif"); err == nil {
		t.Error("expected gif to be rejected")
	}
}

func TestDetect(t *testing.T) {
	in := fakeInstrument(t, map[string]string{"*IDN?": "RIGOL TECHNOLOGIES,DP832,DP8C192502607,00.01.14\n"})
	inst, id, err := rigol.Detect(in.addr)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := inst.(*rigol.DP832); !ok {
		t.Errorf("expected a *DP832 got %T", inst)
	}
	if id.Serial != "DP8C192502607" {
		t.Errorf("unexpected serial %s", id.Serial)
	}
	other := fakeInstrument(t, map[string]string{"*IDN?": "KEYSIGHT,34465A,MY1,1.0\n"})
	if _, _, err := rigol.Detect(other.addr); !errors.Is(err, rigol.ErrUnknownModel) {
		t.Errorf("expected ErrUnknownModel got %v", err)
	}
}
