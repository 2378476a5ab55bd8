package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupConfigDefaults(t *testing.T) {
	if err := setupconfig(filepath.Join(t.TempDir(), "missing.yml")); err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":8000" || cfg.Scan.Last != 254 || cfg.Loader.Baud != 115200 {
		t.Errorf("defaults not applied, got %+v", cfg)
	}
}

func TestSetupConfigLayers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rflab.yml")
	body := "addr: :9000\ninstruments:\n  dp832: 192.168.1.40\nscan:\n  last: 200\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RFLAB_SCAN_LAST", "100")
	if err := setupconfig(path); err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":9000" {
		t.Errorf("addr from file, got %q", cfg.Addr)
	}
	if cfg.Instruments.DP832 != "192.168.1.40" {
		t.Errorf("dp832 from file, got %q", cfg.Instruments.DP832)
	}
	if cfg.Scan.Last != 100 {
		t.Errorf("environment should win over the file, got scan.last=%d", cfg.Scan.Last)
	}
	if cfg.Scan.First != 1 {
		t.Errorf("default lost under a partial file, got scan.first=%d", cfg.Scan.First)
	}
}

func TestEnvKey(t *testing.T) {
	if got := envKey("RFLAB_INSTRUMENTS_DP832"); got != "instruments.dp832" {
		t.Errorf("got %q", got)
	}
}

func TestBuildMuxWithoutInstruments(t *testing.T) {
	mux, err := buildMux(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(mux)
	defer srv.Close()
	resp, err := http.Post(srv.URL+"/synth/adf4360", "application/json", strings.NewReader(`{"out":646e6,"ref":40e6,"step":5e6}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("POST /synth/adf4360 gave %d", resp.StatusCode)
	}
	resp, err = http.Get(srv.URL + "/dp832/readings")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("supply mounted without an address, GET gave %d", resp.StatusCode)
	}
}
