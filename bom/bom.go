// Package bom converts Altium bill of materials exports into the two lists the
// assembly workflow needs: a bill of purchase items (BPI) with one row per part
// number, and a list of components (LOC) with consecutive designators of the
// same part merged into a range.
//
// The input is the tab delimited report Altium writes with the BOM template,
// two header lines followed by rows of
//
//	designator, type, part number, label, manufacturer, quantity
//
// Outputs are tab delimited and unquoted.
package bom

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// HeaderLines is the number of lines before the first row
	HeaderLines = 2

	// SuffixBPI replaces the extension of the input for the purchase list
	SuffixBPI = "_bpi.txt"

	// SuffixLOC replaces the extension of the input for the component list
	SuffixLOC = "_loc.txt"

	columns = 6
)

var (
	// ErrNoRows is generated when a BOM holds a header and nothing else
	ErrNoRows = errors.New("BOM has no component rows")
)

// Item is a single row of the BOM
type Item struct {
	Designator   string
	Type         string
	PartNumber   string
	Label        string
	Manufacturer string
	Quantity     int
}

// Read parses a BOM from r
func Read(r io.Reader) ([]Item, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	var (
		out  []Item
		line int
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return out, err
		}
		if line <= HeaderLines {
			continue
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		if len(record) < columns {
			return out, fmt.Errorf("line %d: expected %d columns, got %d", line, columns, len(record))
		}
		it := Item{
			Designator:   strings.TrimSpace(record[0]),
			Type:         strings.TrimSpace(record[1]),
			PartNumber:   strings.TrimSpace(record[2]),
			Label:        strings.TrimSpace(record[3]),
			Manufacturer: strings.TrimSpace(record[4]),
			Quantity:     1,
		}
		if q := strings.TrimSpace(record[5]); q != "" {
			it.Quantity, err = strconv.Atoi(q)
			if err != nil {
				return out, fmt.Errorf("line %d: quantity %q: %w", line, q, err)
			}
		}
		out = append(out, it)
	}
	if len(out) == 0 {
		return nil, ErrNoRows
	}
	return out, nil
}

// ReadFile parses the BOM at path
func ReadFile(path string) ([]Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// OutputPath swaps the extension of input for suffix
func OutputPath(input, suffix string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + suffix
}

func writeRows(w io.Writer, rows [][]string) error {
	bw := bufio.NewWriter(w)
	for _, row := range rows {
		if _, err := bw.WriteString(strings.Join(row, "\t") + "\r\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
