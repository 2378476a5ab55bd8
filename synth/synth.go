// Package synth holds the pieces shared by the PLL synthesizer calculators in
// this module: register words and banks, bit field packing, option tables, typed
// errors for out of range inputs, and the outputs used to program a part (hex
// dumps, firmware source patching, and a serial loader).
//
// A register is assembled by OR-ing masked, shifted fields into a Word.  Words
// are values, so a register can be built with a chain:
//
//	w := synth.Word(2).
//		With(synth.Field{Shift: 8, Width: 13}, b).
//		With(synth.Field{Shift: 2, Width: 5}, a).
//		Bit(21, gain)
//
// A Bank holds the words of one part in address order.  Parts are
// loaded highest address first, and every output in this package walks a bank
// in that order.
package synth

import (
	"fmt"
	"math"
)

// Word is a single synthesizer register, with its address tag in the low bits
type Word uint32

// Field is a run of Width bits starting at bit Shift
type Field struct {
	Shift uint
	Width uint
}

// Mask returns the unshifted bit mask of the field
func (f Field) Mask() uint32 {
	if f.Width >= 32 {
		return math.MaxUint32
	}
	return 1<<f.Width - 1
}

// Get extracts the field from w
func (f Field) Get(w Word) uint32 {
	return (uint32(w) >> f.Shift) & f.Mask()
}

// With returns w with v masked to the field width and OR'd in at the field shift
func (w Word) With(f Field, v uint32) Word {
	return w | Word((v&f.Mask())<<f.Shift)
}

// Bit returns w with bit n set if on is true
func (w Word) Bit(n uint, on bool) Word {
	if !on {
		return w
	}
	return w | 1<<n
}

// String formats the word as 0x%08X
func (w Word) String() string {
	return fmt.Sprintf("0x%08X", uint32(w))
}

// Bank is the register set of one part in ascending address order.  For the
// parts that use every address from zero, element i has address i.
type Bank []Word

// Descending returns the words highest address first, the load order
func (b Bank) Descending() []Word {
	out := make([]Word, len(b))
	for i, w := range b {
		out[len(b)-1-i] = w
	}
	return out
}

// Strings returns the words formatted as hex, in address order
func (b Bank) Strings() []string {
	out := make([]string, len(b))
	for i, w := range b {
		out[i] = w.String()
	}
	return out
}

// Bool is a helper that converts a flag to a 0/1 field value
func Bool(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
