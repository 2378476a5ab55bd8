package touchstone_test

import (
	"bytes"
	"errors"
	"math"
	"math/cmplx"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/synteira/rflab/touchstone"
)

const legacy = `! created by the lab VNA
! two port
! DUT 1
# Hz S DB R 50
! freq S11 S21 S12 S22
100000000 -10.5 -45.0 -3.2 120.0 -40.1 10.0 -12.0 -60.0
200000000 -11.0 -50.0 -3.5 100.0 -41.0 12.0 -12.5 -65.0
`

func TestLegacyFrequencyMHz(t *testing.T) {
	n, err := touchstone.ReadLegacy(strings.NewReader(legacy), touchstone.LegacySkipLines)
	if err != nil {
		t.Fatal(err)
	}
	mhz := n.FrequencyMHz()
	if mhz[0] != 100 || mhz[1] != 200 {
		t.Errorf("expected 100 and 200 MHz got %v", mhz)
	}
	s21, err := n.Trace(2, 1)
	if err != nil {
		t.Fatal(err)
	}
	if db := s21.DB()[0]; math.Abs(db+3.2) > 1e-9 {
		t.Errorf("expected S21 -3.2 dB got %g", db)
	}
	if ph := s21.Phase()[0]; math.Abs(ph-120) > 1e-9 {
		t.Errorf("expected S21 120 degrees got %g", ph)
	}
}

func TestReadHonorsOptionLine(t *testing.T) {
	n, err := touchstone.Read(strings.NewReader(legacy), 2)
	if err != nil {
		t.Fatal(err)
	}
	if n.Options.Format != touchstone.DB || n.Options.Unit != 1 {
		t.Errorf("unexpected options %+v", n.Options)
	}
	if len(n.Freq) != 2 {
		t.Fatalf("expected 2 points got %d", len(n.Freq))
	}
	s12, _ := n.Trace(1, 2)
	if db := s12.DB()[1]; math.Abs(db+41) > 1e-9 {
		t.Errorf("expected S12 -41 dB got %g", db)
	}
}

func TestReadDefaultsAndWrappedLines(t *testing.T) {
	src := "! no option line, GHz MA\n1.5 0.5 90\n 2.0\n 0.25 -45 ! trailing comment\n"
	n, err := touchstone.Read(strings.NewReader(src), 1)
	if err != nil {
		t.Fatal(err)
	}
	expected := []float64{1.5e9, 2e9}
	if diff := cmp.Diff(expected, n.Freq); diff != "" {
		t.Errorf("frequency mismatch (-want +got):\n%s", diff)
	}
	if v := n.Data[0][0]; cmplx.Abs(v-complex(0, 0.5)) > 1e-12 {
		t.Errorf("expected 0.5j got %v", v)
	}
}

func TestReadLeftover(t *testing.T) {
	if _, err := touchstone.Read(strings.NewReader("# MHz S RI\n1 0.1\n"), 1); err == nil {
		t.Error("expected an error for an incomplete point")
	}
}

func TestReadBadOption(t *testing.T) {
	if _, err := touchstone.Read(strings.NewReader("# MHz S XX\n"), 1); err == nil {
		t.Error("expected an error for an unknown option")
	}
}

func TestPortsFromName(t *testing.T) {
	cases := map[string]int{"amp.s2p": 2, "coupler.S3P": 3, "filter.s12p": 12}
	for name, expected := range cases {
		got, err := touchstone.PortsFromName(name)
		if err != nil || got != expected {
			t.Errorf("%s: expected %d got %d %v", name, expected, got, err)
		}
	}
	if _, err := touchstone.PortsFromName("notes.txt"); !errors.Is(err, touchstone.ErrUnknownPorts) {
		t.Errorf("expected ErrUnknownPorts got %v", err)
	}
}

func TestTraceBounds(t *testing.T) {
	n, _ := touchstone.ReadLegacy(strings.NewReader(legacy), touchstone.LegacySkipLines)
	if _, err := n.Trace(3, 1); err == nil {
		t.Error("expected S31 of a two port to fail")
	}
}

const arinst = "Arinst VNA-DL\nS21\nStart 50000000\nStop 500000000\nPoints 2\nfreq\tre\tim\n" +
	"50000000\t0.5\t0.5\n" +
	"500000000\t0\t-0.1\n"

func TestReadArinst(t *testing.T) {
	tr, err := touchstone.ReadArinst(strings.NewReader(arinst))
	if err != nil {
		t.Fatal(err)
	}
	if len(tr.Freq) != 2 || tr.Freq[1] != 500e6 {
		t.Fatalf("unexpected frequencies %v", tr.Freq)
	}
	ph := tr.Phase()
	if math.Abs(ph[0]-45) > 1e-9 || math.Abs(ph[1]+90) > 1e-9 {
		t.Errorf("expected 45 and -90 degrees got %v", ph)
	}
	if db := tr.DB()[1]; math.Abs(db+20) > 1e-9 {
		t.Errorf("expected -20 dB got %g", db)
	}
}

func TestPhaseDeltaWraps(t *testing.T) {
	got, err := touchstone.PhaseDelta([]float64{10, -170, 90}, []float64{0, 170, 100})
	if err != nil {
		t.Fatal(err)
	}
	expected := []float64{10, 20, -10}
	if diff := cmp.Diff(expected, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("delta mismatch (-want +got):\n%s", diff)
	}
	if _, err := touchstone.PhaseDelta([]float64{1}, nil); err == nil {
		t.Error("expected a length mismatch to fail")
	}
}

func TestPeak(t *testing.T) {
	i, v := touchstone.Peak([]float64{-50, -3, -20})
	if i != 1 || v != -3 {
		t.Errorf("expected index 1 value -3, got %d %g", i, v)
	}
	if i, _ := touchstone.Peak(nil); i != -1 {
		t.Errorf("expected -1 for an empty trace got %d", i)
	}
}

func TestVCORoundTrip(t *testing.T) {
	sweep := touchstone.VCOSweep{
		{Vctl: 0, Freq: 2.0e9, Power: 3.5, Current: 0.021},
		{Vctl: 1, Freq: 2.1e9, Power: 3.1, Current: 0.022},
		{Vctl: 2, Freq: 2.25e9, Power: 2.8, Current: 0.022},
	}
	buf := &bytes.Buffer{}
	if err := touchstone.WriteVCO(buf, sweep); err != nil {
		t.Fatal(err)
	}
	got, err := touchstone.ReadVCO(buf)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(sweep, got); diff != "" {
		t.Errorf("sweep mismatch (-want +got):\n%s", diff)
	}
	lo, hi := got.TuningRange()
	if lo != 2.0e9 || hi != 2.25e9 {
		t.Errorf("expected 2.0-2.25 GHz got %g-%g", lo, hi)
	}
	expected := []float64{100e6, 150e6}
	if diff := cmp.Diff(expected, got.Sensitivity(), cmpopts.EquateApprox(1e-9, 0)); diff != "" {
		t.Errorf("sensitivity mismatch (-want +got):\n%s", diff)
	}
}

func TestReadVCOThreeColumns(t *testing.T) {
	got, err := touchstone.ReadVCO(strings.NewReader("vctl\tf\tp\n0.5\t1e9\t-2\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Current != 0 || got[0].Freq != 1e9 {
		t.Errorf("unexpected sample %+v", got[0])
	}
}
