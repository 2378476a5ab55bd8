// Package pll exposes the synthesizer calculators over HTTP.
//
// Every part has one route, POST /<part>.  The body holds the frequencies in Hz
// and, for the parts that have them, an "options" object whose keys are the
// field names of the options type of the part.  Options left out keep their
// defaults.  The reply holds the counters, the output frequency they produce,
// and the register words in address order:
//
//	POST /adf4360 {"out": 646e6, "ref": 40e6, "step": 5e6}
//
//	{"counters": {...}, "output": 645000000, "registers": ["0x000FC120", ...]}
//
// A part that cannot produce the request replies 422 with the reason.
package pll

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/synteira/rflab/analogdevices"
	"github.com/synteira/rflab/generichttp"
	"github.com/synteira/rflab/maxim"
	"github.com/synteira/rflab/synth"
)

// Result is the reply to a calculation
type Result struct {
	Counters  interface{} `json:"counters"`
	Output    float64     `json:"output"`
	Registers []string    `json:"registers"`
}

// errDecode marks a body that is not valid JSON for the request
type errDecode struct{ error }

// calculator decodes a request from dec and runs it
type calculator func(dec *json.Decoder) (Result, error)

func result(counters interface{}, out float64, b synth.Bank) Result {
	return Result{Counters: counters, Output: out, Registers: b.Strings()}
}

func decode(dec *json.Decoder, v interface{}) error {
	if err := dec.Decode(v); err != nil {
		return errDecode{err}
	}
	return nil
}

func adf4106(dec *json.Decoder) (Result, error) {
	req := struct {
		VCO     float64                      `json:"vco"`
		Ref     float64                      `json:"ref"`
		PFD     float64                      `json:"pfd"`
		Options analogdevices.ADF4106Options `json:"options"`
	}{Options: analogdevices.DefaultADF4106Options()}
	if err := decode(dec, &req); err != nil {
		return Result{}, err
	}
	c, err := analogdevices.ADF4106Calc(req.VCO, req.Ref, req.PFD)
	if err != nil {
		return Result{}, err
	}
	b, err := analogdevices.ADF4106Registers(c, req.Options)
	return result(c, c.Output(), b), err
}

func adf4159(dec *json.Decoder) (Result, error) {
	req := struct {
		Ramp    analogdevices.ADF4159Ramp    `json:"ramp"`
		Options analogdevices.ADF4159Options `json:"options"`
	}{Ramp: analogdevices.DefaultADF4159Ramp(), Options: analogdevices.DefaultADF4159Options()}
	if err := decode(dec, &req); err != nil {
		return Result{}, err
	}
	c, err := analogdevices.ADF4159Calc(req.Ramp)
	if err != nil {
		return Result{}, err
	}
	b, err := analogdevices.ADF4159Registers(c, req.Options)
	return result(c, c.Output(), b), err
}

func adf4350(dec *json.Decoder) (Result, error) {
	req := struct {
		Out     float64                      `json:"out"`
		Ref     float64                      `json:"ref"`
		Step    float64                      `json:"step"`
		Mode    string                       `json:"mode"`
		Options analogdevices.ADF4350Options `json:"options"`
	}{Mode: "auto", Options: analogdevices.DefaultADF4350Options()}
	if err := decode(dec, &req); err != nil {
		return Result{}, err
	}
	mode, err := analogdevices.ParseMode(req.Mode)
	if err != nil {
		return Result{}, err
	}
	c, err := analogdevices.ADF4350Calc(req.Out, req.Ref, req.Step, mode)
	if err != nil {
		return Result{}, err
	}
	b, err := analogdevices.ADF4350Registers(c, req.Options)
	return result(c, c.Output(), b), err
}

func adf4360(dec *json.Decoder) (Result, error) {
	req := struct {
		Out     float64                      `json:"out"`
		Ref     float64                      `json:"ref"`
		Step    float64                      `json:"step"`
		Options analogdevices.ADF4360Options `json:"options"`
	}{Options: analogdevices.DefaultADF4360Options()}
	if err := decode(dec, &req); err != nil {
		return Result{}, err
	}
	c, err := analogdevices.ADF4360Calc(req.Out, req.Ref, req.Step)
	if err != nil {
		return Result{}, err
	}
	b, err := analogdevices.ADF4360Registers(c, req.Options)
	return result(c, c.Output(), b), err
}

func adrf6850(dec *json.Decoder) (Result, error) {
	req := struct {
		LO      float64                       `json:"lo"`
		Ref     float64                       `json:"ref"`
		Doubler bool                          `json:"doubler"`
		R       int                           `json:"r"`
		RDiv2   bool                          `json:"rdiv2"`
		Options analogdevices.ADRF6850Options `json:"options"`
	}{R: 1, Options: analogdevices.DefaultADRF6850Options()}
	if err := decode(dec, &req); err != nil {
		return Result{}, err
	}
	c, err := analogdevices.ADRF6850Calc(req.LO, req.Ref, req.Doubler, req.R, req.RDiv2)
	if err != nil {
		return Result{}, err
	}
	b, err := analogdevices.ADRF6850Registers(c, req.Options)
	return result(c, c.Output(), b), err
}

func max2828(dec *json.Decoder) (Result, error) {
	req := struct {
		RF  float64 `json:"rf"`
		Ref float64 `json:"ref"`
	}{}
	if err := decode(dec, &req); err != nil {
		return Result{}, err
	}
	c, err := maxim.MAX2828Calc(req.RF, req.Ref)
	if err != nil {
		return Result{}, err
	}
	return result(c, c.Output(), maxim.MAX2828Registers(c)), nil
}

func max2831(dec *json.Decoder) (Result, error) {
	req := struct {
		RF  float64 `json:"rf"`
		Ref float64 `json:"ref"`
		R   int     `json:"r"`
	}{R: 1}
	if err := decode(dec, &req); err != nil {
		return Result{}, err
	}
	c, err := maxim.MAX2831Calc(req.RF, req.Ref, req.R)
	if err != nil {
		return Result{}, err
	}
	return result(c, c.Output(), maxim.MAX2831Registers(c)), nil
}

// parts maps the route names to the calculators
var parts = map[string]calculator{
	"adf4106":  adf4106,
	"adf4159":  adf4159,
	"adf4350":  adf4350,
	"adf4360":  adf4360,
	"adrf6850": adrf6850,
	"max2828":  max2828,
	"max2831":  max2831,
}

// handle serves one calculator
func handle(calc calculator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		res, err := calc(json.NewDecoder(r.Body))
		if err != nil {
			var de errDecode
			if errors.As(err, &de) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			generichttp.Fail(w, err)
			return
		}
		generichttp.Reply(w, res)
	}
}

// HTTPCalculators is the route table of every calculator
type HTTPCalculators struct {
	RouteTable generichttp.RouteTable
}

// NewHTTPCalculators builds the routes
func NewHTTPCalculators() HTTPCalculators {
	rt := make(generichttp.RouteTable, len(parts))
	for name, calc := range parts {
		rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/" + name}] = handle(calc)
	}
	return HTTPCalculators{RouteTable: rt}
}

// RT satisfies the generichttp.HTTPer interface
func (h HTTPCalculators) RT() generichttp.RouteTable {
	return h.RouteTable
}
