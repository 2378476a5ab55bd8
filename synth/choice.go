package synth

import (
	"sort"
	"strconv"
	"strings"
)

// Choice maps the legal values of a string option to their register codes.
// Lookups are case insensitive.
type Choice map[string]uint32

// Code returns the register code for value, or an *OptionError naming option
func (c Choice) Code(option, value string) (uint32, error) {
	v, ok := c[strings.ToLower(value)]
	if !ok {
		return 0, &OptionError{Option: option, Value: value, Allowed: c.Allowed()}
	}
	return v, nil
}

// Allowed lists the legal values ordered by code
func (c Choice) Allowed() []string {
	out := make([]string, 0, len(c))
	for k := range c {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		ci, cj := c[out[i]], c[out[j]]
		if ci == cj {
			return out[i] < out[j]
		}
		return ci < cj
	})
	return out
}

// IntChoice maps the legal values of a numeric option to their register codes
type IntChoice map[int]uint32

// Code returns the register code for value, or an *OptionError naming option
func (c IntChoice) Code(option string, value int) (uint32, error) {
	v, ok := c[value]
	if !ok {
		return 0, &OptionError{Option: option, Value: strconv.Itoa(value), Allowed: c.Allowed()}
	}
	return v, nil
}

// Allowed lists the legal values in ascending order
func (c IntChoice) Allowed() []string {
	keys := make([]int, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = strconv.Itoa(k)
	}
	return out
}
