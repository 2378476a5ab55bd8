// Package generichttp wraps lab tools in HTTP route tables.
//
// A route table maps a method and path to a handler.  Tables are bound to a
// chi router, which also receives a list-of-routes endpoint so a client can
// discover what a server offers.  Scalars travel as small JSON objects,
// {"f64": 1.5}, {"int": 3}, {"bool": true} or {"str": "x"}.
package generichttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/synteira/rflab/synth"
)

// MethodPath is an HTTP method and a chi path pattern
type MethodPath struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// RouteTable maps methods and paths to handlers
type RouteTable map[MethodPath]http.HandlerFunc

// Endpoints lists the routes of the table sorted by path, then method
func (rt RouteTable) Endpoints() []MethodPath {
	out := make([]MethodPath, 0, len(rt))
	for mp := range rt {
		out = append(out, mp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// Bind attaches every route to r, plus GET /list-of-routes
func (rt RouteTable) Bind(r chi.Router) {
	for mp, h := range rt {
		r.MethodFunc(mp.Method, mp.Path, h)
	}
	r.Get("/list-of-routes", func(w http.ResponseWriter, req *http.Request) {
		Reply(w, rt.Endpoints())
	})
}

// HTTPer has a route table
type HTTPer interface {
	RT() RouteTable
}

// Router returns a chi router carrying the routes of h, for mounting
func Router(h HTTPer) chi.Router {
	r := chi.NewRouter()
	h.RT().Bind(r)
	return r
}

// Reply encodes v as JSON
func Reply(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fstr := fmt.Sprintf("error encoding data to json %q", err)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusInternalServerError)
	}
}

// Status maps an error to an HTTP status.  Values a part or instrument
// rejects are the client's fault, anything else is the server's.
func Status(err error) int {
	var (
		re *synth.RangeError
		qe *synth.RatioError
		oe *synth.OptionError
	)
	if errors.As(err, &re) || errors.As(err, &qe) || errors.As(err, &oe) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// Fail replies with the text of err and the status it maps to
func Fail(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), Status(err))
}

// FloatT is the payload of a float
type FloatT struct {
	F64 float64 `json:"f64"`
}

// IntT is the payload of an int
type IntT struct {
	Int int `json:"int"`
}

// BoolT is the payload of a bool
type BoolT struct {
	Bool bool `json:"bool"`
}

// StrT is the payload of a string
type StrT struct {
	Str string `json:"str"`
}

// GetFloat calls a float-getting function and returns the response
// as json {'f64': value}
func GetFloat(fcn func() (float64, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := fcn()
		if err != nil {
			Fail(w, err)
			return
		}
		Reply(w, FloatT{F64: f})
	}
}

// GetBool calls a bool-getting function and returns the response
// as json {'bool': value}
func GetBool(fcn func() (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := fcn()
		if err != nil {
			Fail(w, err)
			return
		}
		Reply(w, BoolT{Bool: b})
	}
}

// SetBool parses a JSON input of {'bool': value} and
// calls fcn with it
func SetBool(fcn func(bool) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := BoolT{}
		err := json.NewDecoder(r.Body).Decode(&b)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err = fcn(b.Bool); err != nil {
			Fail(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetString calls a string-getting function and returns the response
// as json {'str': value}
func GetString(fcn func() (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := fcn()
		if err != nil {
			Fail(w, err)
			return
		}
		Reply(w, StrT{Str: s})
	}
}

// IntParam reads the URL parameter key as an int, replying 400 when it is
// not one
func IntParam(w http.ResponseWriter, r *http.Request, key string) (int, bool) {
	s := chi.URLParam(r, key)
	i, err := strconv.Atoi(s)
	if err != nil {
		http.Error(w, fmt.Sprintf("%s %q is not an integer", key, s), http.StatusBadRequest)
		return 0, false
	}
	return i, true
}
