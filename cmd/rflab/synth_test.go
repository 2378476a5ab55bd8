package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/synteira/rflab/synth"
)

func TestReadDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regs.txt")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	b := synth.Bank{0x000FC120, 0x00300021, 0x00001006}
	if err = synth.WriteHex(f, b); err != nil {
		t.Fatal(err)
	}
	f.Close()
	got, err := readDump(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(b, got); diff != "" {
		t.Errorf("dump read back differs (-written +read):\n%s", diff)
	}
}

func TestReadDumpEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(path, []byte("\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := readDump(path); err == nil || !strings.Contains(err.Error(), "no registers") {
		t.Errorf("expected an empty dump error, got %v", err)
	}
}

func TestLoadDumpNeedsPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regs.txt")
	if err := os.WriteFile(path, []byte("0x00001006\n0x00300021\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg = DefaultConfig()
	c := loadDumpCmd()
	c.SetArgs([]string{path})
	err := c.Execute()
	if err == nil || !strings.Contains(err.Error(), "loader port") {
		t.Errorf("expected a missing loader port error, got %v", err)
	}
}
