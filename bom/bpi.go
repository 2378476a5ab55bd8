package bom

import (
	"io"
	"strconv"
)

// Purchase is one row of the bill of purchase items
type Purchase struct {
	PartNumber   string
	Manufacturer string
	Label        string
	Quantity     int
}

// Purchases groups items by part number, in order of first appearance.  The
// quantity is the number of rows carrying the part number, and the
// manufacturer and label come from the first of them.
func Purchases(items []Item) []Purchase {
	var out []Purchase
	index := map[string]int{}
	for _, it := range items {
		if i, ok := index[it.PartNumber]; ok {
			out[i].Quantity++
			continue
		}
		index[it.PartNumber] = len(out)
		out = append(out, Purchase{
			PartNumber:   it.PartNumber,
			Manufacturer: it.Manufacturer,
			Label:        it.Label,
			Quantity:     1,
		})
	}
	return out
}

// WriteBPI writes the purchase list in the layout of the purchasing
// spreadsheet.  A part with a label gets a second row holding "(label)".
func WriteBPI(w io.Writer, ps []Purchase) error {
	rows := make([][]string, 0, len(ps))
	for _, p := range ps {
		q := strconv.Itoa(p.Quantity)
		rows = append(rows, []string{p.PartNumber, "", "", p.Manufacturer, "", q, "", "", q})
		if p.Label != "" {
			rows = append(rows, []string{"(" + p.Label + ")"})
		}
	}
	return writeRows(w, rows)
}

// ConvertBPI reads the BOM at path and writes its purchase list beside it,
// returning the path of the new file
func ConvertBPI(path string) (string, error) {
	items, err := ReadFile(path)
	if err != nil {
		return "", err
	}
	out := OutputPath(path, SuffixBPI)
	return out, writeFile(out, func(w io.Writer) error {
		return WriteBPI(w, Purchases(items))
	})
}
