// Package supply exposes bench power supplies over HTTP
package supply

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/synteira/rflab/generichttp"
	"github.com/synteira/rflab/rigol"
)

// Supply is a multi channel power supply
type Supply interface {
	// Set programs the voltage and current limit of ch and switches it
	Set(ch int, volts, amps float64, on bool) error

	// SetOutput switches ch
	SetOutput(ch int, on bool) error

	// Measure reads voltage, current or power of ch
	Measure(ch int, quantity string) (float64, error)

	// ReadAll measures every channel
	ReadAll() ([]rigol.Reading, error)
}

// Setpoint is the body of POST /ch/{ch}
type Setpoint struct {
	Voltage float64 `json:"voltage"`
	Current float64 `json:"current"`
	On      bool    `json:"on"`
}

// Readings replies with a measurement of every channel
func Readings(s Supply) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs, err := s.ReadAll()
		if err != nil {
			generichttp.Fail(w, err)
			return
		}
		generichttp.Reply(w, rs)
	}
}

// Set programs a channel from a Setpoint
func Set(s Supply) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, ok := generichttp.IntParam(w, r, "ch")
		if !ok {
			return
		}
		var sp Setpoint
		err := json.NewDecoder(r.Body).Decode(&sp)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err = s.Set(ch, sp.Voltage, sp.Current, sp.On); err != nil {
			generichttp.Fail(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// SetOutput switches a channel from {"bool": on}
func SetOutput(s Supply) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, ok := generichttp.IntParam(w, r, "ch")
		if !ok {
			return
		}
		generichttp.SetBool(func(on bool) error {
			return s.SetOutput(ch, on)
		})(w, r)
	}
}

// Measure replies with {"f64": value} for the channel and quantity in the URL
func Measure(s Supply) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, ok := generichttp.IntParam(w, r, "ch")
		if !ok {
			return
		}
		q := chi.URLParam(r, "quantity")
		generichttp.GetFloat(func() (float64, error) {
			return s.Measure(ch, q)
		})(w, r)
	}
}

// HTTPSupply wraps a Supply in a route table
type HTTPSupply struct {
	// Supply is the underlying supply
	Supply Supply

	// RouteTable maps URLs to functions
	RouteTable generichttp.RouteTable
}

// NewHTTPSupply returns the routes of s
func NewHTTPSupply(s Supply) HTTPSupply {
	rt := generichttp.RouteTable{
		generichttp.MethodPath{Method: http.MethodGet, Path: "/readings"}:           Readings(s),
		generichttp.MethodPath{Method: http.MethodPost, Path: "/ch/{ch}"}:           Set(s),
		generichttp.MethodPath{Method: http.MethodPost, Path: "/ch/{ch}/output"}:    SetOutput(s),
		generichttp.MethodPath{Method: http.MethodGet, Path: "/ch/{ch}/{quantity}"}: Measure(s),
	}
	return HTTPSupply{Supply: s, RouteTable: rt}
}

// RT satisfies the generichttp.HTTPer interface
func (h HTTPSupply) RT() generichttp.RouteTable {
	return h.RouteTable
}
