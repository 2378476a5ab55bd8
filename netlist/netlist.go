// Package netlist reads Altium WireList netlists and generates the GPIO pin
// definitions an STM32 firmware project expects from them.
//
// A WireList export looks like
//
//	<<< Wire List >>>
//
//	  NODE  REFERENCE  PIN #   PIN NAME       PIN TYPE    PART VALUE
//
//	[00001] MCU_LED1
//	        D12        45      PA5            I/O         STM32F407VGT6
//	        R7         1       1              PASSIVE     330R
//
// Each net header is followed by the pins it connects.  For one part (the MCU)
// the pins on named nets become
//
//	#define LED1_Pin GPIO_PIN_5
//	#define LED1_GPIO_Port GPIOA
package netlist

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// WireListLexer splits a WireList into net headers, words and line ends
var WireListLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Title", Pattern: `<<<[^\n]*>>>`},
	{Name: "Columns", Pattern: `NODE[ \t]+REFERENCE[^\n]*`},
	{Name: "Node", Pattern: `\[[0-9]+\]`},
	{Name: "EOL", Pattern: `\r?\n`},
	{Name: "Space", Pattern: `[ \t]+`},
	{Name: "Word", Pattern: `[^\s]+`},
})

// WireList is a parsed netlist
type WireList struct {
	Nets []*Net `EOL* @@*`
}

// Net is one node of the netlist and the pins on it
type Net struct {
	Node string `@Node`
	Name string `@Word? EOL+`
	Pins []*Pin `@@*`
}

// Pin is a single part pin.  Type is the electrical type (PASSIVE, POWER,
// I/O, ...) and Value the part value column, which may hold spaces.
type Pin struct {
	Ref    string   `@Word`
	Number string   `@Word`
	Name   string   `@Word`
	Type   string   `@Word`
	Value  []string `@Word* EOL+`
}

var parser = participle.MustBuild[WireList](
	participle.Lexer(WireListLexer),
	participle.Elide("Title", "Columns", "Space"),
)

// Parse reads a WireList from r
func Parse(r io.Reader) (*WireList, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	src := string(data)
	if !strings.HasSuffix(src, "\n") {
		src += "\n"
	}
	wl, err := parser.ParseString("", src)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	for _, n := range wl.Nets {
		for _, p := range n.Pins {
			// OPEN COLLECTOR and OPEN EMITTER span two words
			if strings.EqualFold(p.Type, "OPEN") && len(p.Value) > 0 {
				p.Type += " " + p.Value[0]
				p.Value = p.Value[1:]
			}
		}
	}
	return wl, nil
}

// ParseFile reads the WireList at path
func ParseFile(path string) (*WireList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Connection is one pin of a part and the net it sits on
type Connection struct {
	Net    string
	Number string
	Name   string
	Type   string
}
