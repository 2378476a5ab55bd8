package usbtmc

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBulkOutHeader(t *testing.T) {
	hdr := encBulkOutHeader(7, 6)
	expected := [12]byte{0x01, 7, 0xF8, 0, 6, 0, 0, 0, 0x01, 0, 0, 0}
	if diff := cmp.Diff(expected, hdr); diff != "" {
		t.Errorf("bulk out header mismatch (-want +got):\n%s", diff)
	}
}

func TestBulkInHeaderTerminator(t *testing.T) {
	term := byte('\n')
	hdr := encBulkInHeader(1, 1500, &term)
	if hdr[8] != 0x02 || hdr[9] != '\n' {
		t.Errorf("expected term char enabled with 0x0A, got %#x %#x", hdr[8], hdr[9])
	}
	if got := int(hdr[4]) | int(hdr[5])<<8; got != 1500 {
		t.Errorf("expected transfer size 1500 got %d", got)
	}
}

func TestDecodeBulkIn(t *testing.T) {
	buf := []byte{0x02, 9, 0xF6, 0, 3, 0, 0, 0, 0x01, 0, 0, 0, 'a', 'b', 'c', 0}
	h, err := decBulkInHeader(buf)
	if err != nil {
		t.Fatal(err)
	}
	if h.transferSize != 3 || !h.eom || h.tag != 9 {
		t.Errorf("unexpected header %+v", h)
	}
}

func TestDecodeBulkInCorruptTag(t *testing.T) {
	buf := []byte{0x02, 9, 0x00, 0, 3, 0, 0, 0, 0x01, 0, 0, 0}
	if _, err := decBulkInHeader(buf); err == nil {
		t.Error("expected corrupt bTag pair to error")
	}
}

func TestBTagSkipsZero(t *testing.T) {
	g := newBTagGen()
	for i := 0; i < 600; i++ {
		if g.nextbTag() == 0 {
			t.Fatal("bTag generator returned zero")
		}
	}
}

func TestPadAligns(t *testing.T) {
	for n := 12; n < 20; n++ {
		if got := len(pad(make([]byte, n))); got%4 != 0 || got < n {
			t.Errorf("pad(%d) gave length %d", n, got)
		}
	}
}
