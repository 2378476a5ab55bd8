package netlist_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/synteira/rflab/netlist"
)

const wirelist = `<<< Wire List >>>

  NODE  REFERENCE  PIN #   PIN NAME       PIN TYPE    PART VALUE

[00001] GND
        D12        10      VSS            POWER       STM32F407VGT6
        C5         2       2              PASSIVE     100nF 16V
[00002] MCU_LED1
        D12        45      PA5            I/O         STM32F407VGT6
        R7         1       1              PASSIVE     330R
[00003] MCU_SPI_CS
        D12        9       PC15           I/O         STM32F407VGT6
[00004] MCU_NRST
        D12        14      NRST           I/O         STM32F407VGT6
[00005] MCU_IRQ
        D12        100     PB12           OPEN COLLECTOR STM32F407VGT6
[00006] NetD12_12
        D12        12      OSC_IN         INPUT       STM32F407VGT6
`

func parse(t *testing.T) *netlist.WireList {
	t.Helper()
	wl, err := netlist.Parse(strings.NewReader(wirelist))
	if err != nil {
		t.Fatal(err)
	}
	return wl
}

func TestParseNets(t *testing.T) {
	wl := parse(t)
	if len(wl.Nets) != 6 {
		t.Fatalf("expected 6 nets got %d", len(wl.Nets))
	}
	gnd := wl.Nets[0]
	if gnd.Node != "[00001]" || gnd.Name != "GND" || len(gnd.Pins) != 2 {
		t.Errorf("unexpected first net %+v", gnd)
	}
	if diff := cmp.Diff([]string{"100nF", "16V"}, gnd.Pins[1].Value); diff != "" {
		t.Errorf("value mismatch (-want +got):\n%s", diff)
	}
	if got := wl.Nets[4].Pins[0].Type; got != "OPEN COLLECTOR" {
		t.Errorf("expected OPEN COLLECTOR got %q", got)
	}
}

func TestPartOrdersByPinNumber(t *testing.T) {
	pins := parse(t).Part("D12")
	var numbers []string
	for _, p := range pins {
		numbers = append(numbers, p.Number)
	}
	expected := []string{"9", "10", "12", "14", "45", "100"}
	if diff := cmp.Diff(expected, numbers); diff != "" {
		t.Errorf("pin order mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterAndDefines(t *testing.T) {
	pins := netlist.Filter{}.Apply(parse(t).Part("D12"))
	defs, skipped := netlist.Defines(pins, netlist.DefaultNetPrefix)
	expected := []netlist.Define{
		{Name: "SPI_CS", Port: "C", Number: 15},
		{Name: "LED1", Port: "A", Number: 5},
		{Name: "IRQ", Port: "B", Number: 12},
	}
	if diff := cmp.Diff(expected, defs); diff != "" {
		t.Errorf("defines mismatch (-want +got):\n%s", diff)
	}
	if len(skipped) != 1 || skipped[0].Name != "OSC_IN" {
		t.Errorf("expected OSC_IN to be skipped, got %+v", skipped)
	}
}

func TestWriteHeader(t *testing.T) {
	buf := &bytes.Buffer{}
	err := netlist.WriteHeader(buf, []netlist.Define{{Name: "LED1", Port: "A", Number: 5}})
	if err != nil {
		t.Fatal(err)
	}
	expected := "#define LED1_Pin GPIO_PIN_5\n#define LED1_GPIO_Port GPIOA\n\n"
	if buf.String() != expected {
		t.Errorf("expected %q got %q", expected, buf.String())
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := netlist.Parse(strings.NewReader("[00001] A\n   X\n")); err == nil {
		t.Error("expected a pin row with one column to fail")
	}
}
