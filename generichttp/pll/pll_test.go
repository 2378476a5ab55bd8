package pll_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/synteira/rflab/generichttp"
	"github.com/synteira/rflab/generichttp/pll"
)

func post(t *testing.T, srv *httptest.Server, path, body string) (*http.Response, pll.Result) {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var res pll.Result
	if resp.StatusCode == http.StatusOK {
		if err = json.NewDecoder(resp.Body).Decode(&res); err != nil {
			t.Fatal(err)
		}
	}
	return resp, res
}

func TestCalculators(t *testing.T) {
	srv := httptest.NewServer(generichttp.Router(pll.NewHTTPCalculators()))
	defer srv.Close()

	resp, res := post(t, srv, "/adf4360", `{"out": 646e6, "ref": 40e6, "step": 5e6}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %s", resp.Status)
	}
	if diff := cmp.Diff([]string{"0x000FC120", "0x00300021", "0x00001006"}, res.Registers); diff != "" {
		t.Error(diff)
	}
	if res.Output != 645e6 {
		t.Errorf("output %g", res.Output)
	}

	resp, res = post(t, srv, "/adf4106", `{"vco": 630e6, "ref": 40e6, "pfd": 10e6}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %s", resp.Status)
	}
	if diff := cmp.Diff([]string{"0x00800010", "0x00C0071D", "0x001F80B2", "0x001F80B3"}, res.Registers); diff != "" {
		t.Error(diff)
	}

	resp, res = post(t, srv, "/max2828", `{"rf": 5180e6, "ref": 20e6}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %s", resp.Status)
	}
	if diff := cmp.Diff([]string{"0x00030CF3", "0x0000CCC4"}, res.Registers); diff != "" {
		t.Error(diff)
	}
}

func TestCalculatorErrors(t *testing.T) {
	srv := httptest.NewServer(generichttp.Router(pll.NewHTTPCalculators()))
	defer srv.Close()

	cases := []struct {
		path, body string
		status     int
	}{
		{"/adf4360", `{"out": 646e6, "ref": 40e6, "step": 3e6}`, http.StatusUnprocessableEntity},
		{"/adf4360", `{"out": 646e6, "ref": 40e6, "step": 5e6, "options": {"muxout": "lock"}}`, http.StatusUnprocessableEntity},
		{"/adf4350", `{"out": 335e6, "ref": 40e6, "step": 200e3, "mode": "sometimes"}`, http.StatusUnprocessableEntity},
		{"/adf4360", `{"out": `, http.StatusBadRequest},
	}
	for _, tc := range cases {
		resp, _ := post(t, srv, tc.path, tc.body)
		if resp.StatusCode != tc.status {
			t.Errorf("%s %s: status %d, expected %d", tc.path, tc.body, resp.StatusCode, tc.status)
		}
	}
}

func TestListOfRoutes(t *testing.T) {
	srv := httptest.NewServer(generichttp.Router(pll.NewHTTPCalculators()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/list-of-routes")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var routes []generichttp.MethodPath
	if err = json.NewDecoder(resp.Body).Decode(&routes); err != nil {
		t.Fatal(err)
	}
	var paths []string
	for _, r := range routes {
		paths = append(paths, r.Method+" "+r.Path)
	}
	expected := []string{
		"POST /adf4106", "POST /adf4159", "POST /adf4350", "POST /adf4360",
		"POST /adrf6850", "POST /max2828", "POST /max2831",
	}
	if diff := cmp.Diff(expected, paths); diff != "" {
		t.Error(diff)
	}
}
