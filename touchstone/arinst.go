package touchstone

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ArinstSkipLines is the header length of an Arinst VNA export
const ArinstSkipLines = 6

// ReadArinst parses the tab delimited export of an Arinst VNA, rows of
// frequency in Hz and the real and imaginary parts of the measured parameter
func ReadArinst(r io.Reader) (Trace, error) {
	var t Trace
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return t, err
		}
		if line <= ArinstSkipLines {
			continue
		}
		if len(record) < 3 {
			return t, fmt.Errorf("line %d: expected frequency, real, imaginary", line)
		}
		var vals [3]float64
		for i := range vals {
			vals[i], err = strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
			if err != nil {
				return t, fmt.Errorf("line %d: %w", line, err)
			}
		}
		t.Freq = append(t.Freq, vals[0])
		t.Values = append(t.Values, complex(vals[1], vals[2]))
	}
	if len(t.Freq) == 0 {
		return t, ErrNoData
	}
	return t, nil
}

// ReadArinstFile parses the Arinst export at path
func ReadArinstFile(path string) (Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return Trace{}, err
	}
	defer f.Close()
	return ReadArinst(f)
}
