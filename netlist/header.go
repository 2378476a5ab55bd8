package netlist

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ServicePins are STM32 pins reserved for reset, boot, the oscillators and
// the debug port
var ServicePins = []string{"NRST", "BOOT0", "PB2", "HSEI", "HSEO", "LSEI", "LSEO", "PA13", "PA14", "PB3"}

// DefaultNetPrefix is stripped from net names to form the define names
const DefaultNetPrefix = "MCU_"

var gpio = regexp.MustCompile(`^P([A-K])([0-9]{1,2})$`)

// Part returns the pins of the part with reference designator ref, ordered
// by pin number
func (wl *WireList) Part(ref string) []Connection {
	var out []Connection
	for _, n := range wl.Nets {
		for _, p := range n.Pins {
			if p.Ref != ref {
				continue
			}
			out = append(out, Connection{Net: n.Name, Number: p.Number, Name: p.Name, Type: p.Type})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, erra := strconv.Atoi(out[i].Number)
		b, errb := strconv.Atoi(out[j].Number)
		if erra != nil || errb != nil {
			return out[i].Number < out[j].Number
		}
		return a < b
	})
	return out
}

// Filter drops pins that should not get a definition
type Filter struct {
	// KeepPower retains POWER pins
	KeepPower bool

	// KeepPassive retains PASSIVE pins
	KeepPassive bool

	// Exclude lists pin names to drop, ServicePins when nil
	Exclude []string
}

// Apply returns the connections that pass the filter
func (f Filter) Apply(cs []Connection) []Connection {
	exclude := f.Exclude
	if exclude == nil {
		exclude = ServicePins
	}
	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		skip[e] = true
	}
	var out []Connection
	for _, c := range cs {
		switch {
		case strings.EqualFold(c.Type, "POWER") && !f.KeepPower:
		case strings.EqualFold(c.Type, "PASSIVE") && !f.KeepPassive:
		case skip[c.Name]:
		default:
			out = append(out, c)
		}
	}
	return out
}

// Define is the firmware name of one GPIO pin
type Define struct {
	Name   string
	Port   string // A, B, ...
	Number int
}

// Defines converts GPIO connections to definitions, naming each after its net
// with prefix removed.  Connections whose pin is not a GPIO port pin are
// returned separately.
func Defines(cs []Connection, prefix string) (defs []Define, skipped []Connection) {
	for _, c := range cs {
		m := gpio.FindStringSubmatch(c.Name)
		if m == nil || c.Net == "" {
			skipped = append(skipped, c)
			continue
		}
		n, _ := strconv.Atoi(m[2])
		defs = append(defs, Define{
			Name:   strings.TrimPrefix(c.Net, prefix),
			Port:   m[1],
			Number: n,
		})
	}
	return defs, skipped
}

// WriteHeader writes the pin and port macros of each definition
func WriteHeader(w io.Writer, defs []Define) error {
	bw := bufio.NewWriter(w)
	for _, d := range defs {
		fmt.Fprintf(bw, "#define %s_Pin GPIO_PIN_%d\n", d.Name, d.Number)
		fmt.Fprintf(bw, "#define %s_GPIO_Port GPIO%s\n", d.Name, d.Port)
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}
