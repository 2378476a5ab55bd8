package synth

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	sectionColor = color.New(color.FgYellow)
	wordColor    = color.New(color.FgGreen)
)

// Report is a human readable summary of one calculation
type Report struct {
	Title    string
	sections []section
	bank     Bank
}

type section struct {
	name  string
	lines []string
}

// Section starts a new named group of lines
func (r *Report) Section(name string) {
	r.sections = append(r.sections, section{name: name})
}

// Addf appends a formatted line to the current section
func (r *Report) Addf(format string, args ...interface{}) {
	if len(r.sections) == 0 {
		r.Section("")
	}
	s := &r.sections[len(r.sections)-1]
	s.lines = append(s.lines, fmt.Sprintf(format, args...))
}

// Registers attaches the register words to the report
func (r *Report) Registers(b Bank) {
	r.bank = b
}

// Print writes the report to w
func (r *Report) Print(w io.Writer) error {
	if r.Title != "" {
		if _, err := titleColor.Fprintln(w, r.Title); err != nil {
			return err
		}
	}
	for _, s := range r.sections {
		if s.name != "" {
			if _, err := sectionColor.Fprintln(w, s.name); err != nil {
				return err
			}
		}
		for _, l := range s.lines {
			if _, err := fmt.Fprintln(w, "  "+l); err != nil {
				return err
			}
		}
	}
	if len(r.bank) > 0 {
		if _, err := sectionColor.Fprintln(w, "Registers"); err != nil {
			return err
		}
		for i := len(r.bank) - 1; i >= 0; i-- {
			fmt.Fprintf(w, "  R%d: ", i)
			if _, err := wordColor.Fprintln(w, r.bank[i].String()); err != nil {
				return err
			}
		}
	}
	return nil
}
