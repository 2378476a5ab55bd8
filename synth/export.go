package synth

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SourceMarker is the firmware call that PatchSource rewrites
const SourceMarker = "    WriteRegSYNTH("

// WriteHex writes one 0x%08X line per register, highest address first
func WriteHex(w io.Writer, b Bank) error {
	if len(b) == 0 {
		return ErrEmptyBank
	}
	bw := bufio.NewWriter(w)
	for _, word := range b.Descending() {
		if _, err := fmt.Fprintln(bw, word.String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadHex parses a dump made by WriteHex back into a bank
func ReadHex(r io.Reader) (Bank, error) {
	var words []Word
	scan := bufio.NewScanner(r)
	line := 0
	for scan.Scan() {
		line++
		txt := strings.TrimSpace(scan.Text())
		if txt == "" {
			continue
		}
		v, err := strconv.ParseUint(txt, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		words = append(words, Word(v))
	}
	if err := scan.Err(); err != nil {
		return nil, err
	}
	return Bank(words).Descending(), nil
}

// PatchSource copies r to w, replacing each line that contains marker with a
// call holding the next register, counting down from the highest address.
// An empty marker means SourceMarker.  Every line keeps its own ending, and
// the number of lines replaced is returned.
func PatchSource(r io.Reader, w io.Writer, b Bank, marker string) (int, error) {
	if marker == "" {
		marker = SourceMarker
	}
	call := strings.TrimRight(marker, "(")
	words := b.Descending()
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)
	n := 0
	for {
		txt, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return n, err
		}
		if txt == "" {
			break
		}
		if strings.Contains(txt, marker) {
			if n >= len(words) {
				return n, ErrTooManyMarkers
			}
			body := strings.TrimRight(txt, "\r\n")
			txt = fmt.Sprintf("%s(%s);", call, words[n]) + txt[len(body):]
			n++
		}
		if _, werr := bw.WriteString(txt); werr != nil {
			return n, werr
		}
		if err == io.EOF {
			break
		}
	}
	return n, bw.Flush()
}

// PatchFile rewrites the register writes in the source file at path.  The
// result goes to path+".tmp", which is renamed over the original.
func PatchFile(path string, b Bank) (int, error) {
	src, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer src.Close()
	tmp := path + ".tmp"
	dst, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}
	n, err := PatchSource(src, dst, b, SourceMarker)
	cerr := dst.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return n, err
	}
	src.Close()
	return n, os.Rename(tmp, filepath.Clean(path))
}
