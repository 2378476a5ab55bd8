package bom

import (
	"io"
	"strconv"
)

// Placement is one row of the list of components: a run of consecutive
// designators carrying the same part
type Placement struct {
	Designators  []string
	PartNumber   string
	Label        string
	Manufacturer string
	Quantity     int
}

// Reference formats the designators as the LOC column expects: a single
// designator, "first, second" for a pair, or "first - last" for longer runs
func (p Placement) Reference() string {
	switch len(p.Designators) {
	case 0:
		return ""
	case 1:
		return p.Designators[0]
	case 2:
		return p.Designators[0] + ", " + p.Designators[1]
	default:
		return p.Designators[0] + " - " + p.Designators[len(p.Designators)-1]
	}
}

// Value formats the part number, label and manufacturer
func (p Placement) Value() string {
	if p.Label == "" {
		return p.PartNumber + " " + p.Manufacturer
	}
	return p.PartNumber + " (" + p.Label + ") " + p.Manufacturer
}

// Placements merges consecutive items with equal part numbers.  The quantity
// of a run is the sum of the quantities of its items.
func Placements(items []Item) []Placement {
	var out []Placement
	for i, it := range items {
		if i > 0 && items[i-1].PartNumber == it.PartNumber {
			p := &out[len(out)-1]
			p.Designators = append(p.Designators, it.Designator)
			p.Quantity += it.Quantity
			continue
		}
		out = append(out, Placement{
			Designators:  []string{it.Designator},
			PartNumber:   it.PartNumber,
			Label:        it.Label,
			Manufacturer: it.Manufacturer,
			Quantity:     it.Quantity,
		})
	}
	return out
}

// WriteLOC writes the list of components, one reference, value and quantity
// per row
func WriteLOC(w io.Writer, ps []Placement) error {
	rows := make([][]string, len(ps))
	for i, p := range ps {
		rows[i] = []string{p.Reference(), p.Value(), strconv.Itoa(p.Quantity)}
	}
	return writeRows(w, rows)
}

// ConvertLOC reads the BOM at path and writes its list of components beside
// it, returning the path of the new file
func ConvertLOC(path string) (string, error) {
	items, err := ReadFile(path)
	if err != nil {
		return "", err
	}
	out := OutputPath(path, SuffixLOC)
	return out, writeFile(out, func(w io.Writer) error {
		return WriteLOC(w, Placements(items))
	})
}
