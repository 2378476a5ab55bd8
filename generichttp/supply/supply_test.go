package supply_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/synteira/rflab/generichttp"
	"github.com/synteira/rflab/generichttp/supply"
	"github.com/synteira/rflab/rigol"
	"github.com/synteira/rflab/synth"
)

type fakeSupply struct {
	set []supply.Setpoint
	on  map[int]bool
}

func (f *fakeSupply) Set(ch int, volts, amps float64, on bool) error {
	if err := synth.CheckRange("channel", float64(ch), 1, 3, ""); err != nil {
		return err
	}
	f.set = append(f.set, supply.Setpoint{Voltage: volts, Current: amps, On: on})
	return nil
}

func (f *fakeSupply) SetOutput(ch int, on bool) error {
	f.on[ch] = on
	return nil
}

func (f *fakeSupply) Measure(ch int, quantity string) (float64, error) {
	if quantity != "voltage" {
		return 0, &synth.OptionError{Option: "measurement", Value: quantity, Allowed: []string{"voltage"}}
	}
	return float64(ch) * 1.1, nil
}

func (f *fakeSupply) ReadAll() ([]rigol.Reading, error) {
	return []rigol.Reading{{Channel: 1, Voltage: 3.3, Current: 0.02}}, nil
}

func TestSupplyRoutes(t *testing.T) {
	fake := &fakeSupply{on: map[int]bool{}}
	srv := httptest.NewServer(generichttp.Router(supply.NewHTTPSupply(fake)))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/ch/2", "application/json", strings.NewReader(`{"voltage": 5, "current": 0.1, "on": true}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set: %s", resp.Status)
	}
	if diff := cmp.Diff([]supply.Setpoint{{Voltage: 5, Current: 0.1, On: true}}, fake.set); diff != "" {
		t.Error(diff)
	}

	resp, err = http.Post(srv.URL+"/ch/4", "application/json", strings.NewReader(`{"voltage": 5}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("bad channel: %s", resp.Status)
	}

	resp, err = http.Post(srv.URL+"/ch/3/output", "application/json", strings.NewReader(`{"bool": true}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if !fake.on[3] {
		t.Error("channel 3 was not switched on")
	}

	resp, err = http.Get(srv.URL + "/ch/2/voltage")
	if err != nil {
		t.Fatal(err)
	}
	var f generichttp.FloatT
	err = json.NewDecoder(resp.Body).Decode(&f)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if f.F64 != 2.2 {
		t.Errorf("voltage %g", f.F64)
	}

	resp, err = http.Get(srv.URL + "/ch/x/voltage")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("channel x: %s", resp.Status)
	}

	resp, err = http.Get(srv.URL + "/readings")
	if err != nil {
		t.Fatal(err)
	}
	var rs []rigol.Reading
	err = json.NewDecoder(resp.Body).Decode(&rs)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]rigol.Reading{{Channel: 1, Voltage: 3.3, Current: 0.02}}, rs); diff != "" {
		t.Error(diff)
	}
}
