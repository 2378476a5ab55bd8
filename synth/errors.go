package synth

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTooManyMarkers is generated when a source file holds more register
	// write calls than the bank has registers
	ErrTooManyMarkers = errors.New("source has more register writes than the bank has registers")

	// ErrEmptyBank is generated when an output is asked to write a bank with no registers
	ErrEmptyBank = errors.New("register bank is empty")
)

// RangeError is returned when a frequency, divider, or counter falls outside
// the limits of a part
type RangeError struct {
	// Quantity is the name of the value, e.g. "VCO frequency"
	Quantity string

	// Value is the offending value
	Value float64

	// Min and Max are the inclusive limits
	Min, Max float64

	// Unit is appended to the numbers in the message, may be empty
	Unit string
}

func (e *RangeError) Error() string {
	u := ""
	if e.Unit != "" {
		u = " " + e.Unit
	}
	return fmt.Sprintf("%s %g%s out of range [%g%s, %g%s]", e.Quantity, e.Value, u, e.Min, u, e.Max, u)
}

// CheckRange returns a *RangeError if v is not within [min, max]
func CheckRange(quantity string, v, min, max float64, unit string) error {
	if v < min || v > max {
		return &RangeError{Quantity: quantity, Value: v, Min: min, Max: max, Unit: unit}
	}
	return nil
}

// IsRangeError returns true if err is or wraps a *RangeError
func IsRangeError(err error) bool {
	var re *RangeError
	return errors.As(err, &re)
}

// RatioError is returned when two frequencies are required to have an integer
// ratio and do not
type RatioError struct {
	// Num and Den name the quantities, e.g. "reference" and "step"
	Num, Den string

	// NumValue and DenValue are the values of Num and Den
	NumValue, DenValue float64

	// Suggest is a usable value for Den, zero if there is none
	Suggest float64
}

func (e *RatioError) Error() string {
	s := fmt.Sprintf("%s %g is not an integer multiple of %s %g", e.Num, e.NumValue, e.Den, e.DenValue)
	if e.Suggest != 0 {
		s += fmt.Sprintf(", try %s %g", e.Den, e.Suggest)
	}
	return s
}

// OptionError is returned when a named option holds a value the part does not support
type OptionError struct {
	Option  string
	Value   string
	Allowed []string
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("invalid %s %q, allowed: %s", e.Option, e.Value, strings.Join(e.Allowed, ", "))
}
