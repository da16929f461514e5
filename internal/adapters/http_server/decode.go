package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"coffeemap/internal/domain"
)

const maxBodyBytes = 64 << 10

// flexFloat accepts a JSON number or a numeric string; null and "" leave it unset.
type flexFloat struct {
	v   float64
	set bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
	} else {
		s = string(b)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%q is not a finite number", s)
	}
	f.v, f.set = v, true
	return nil
}

func (f flexFloat) ptr() *float64 {
	if !f.set {
		return nil
	}
	v := f.v
	return &v
}

// flexInt is flexFloat restricted to whole numbers.
type flexInt struct {
	v   int
	set bool
}

func (n *flexInt) UnmarshalJSON(b []byte) error {
	var f flexFloat
	if err := f.UnmarshalJSON(b); err != nil {
		return err
	}
	if !f.set {
		return nil
	}
	if f.v != math.Trunc(f.v) || math.Abs(f.v) > math.MaxInt32 {
		return fmt.Errorf("%v is not an integer", f.v)
	}
	n.v, n.set = int(f.v), true
	return nil
}

// decodeJSON reads one JSON object from the body into dst. Any malformed or
// oversized payload is an invalid-input error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		var fieldErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: request body must be a JSON object", domain.ErrInvalidInput)
		case errors.As(err, &tooBig):
			return fmt.Errorf("%w: request body too large", domain.ErrInvalidInput)
		case errors.As(err, &fieldErr) && fieldErr.Field != "":
			return fmt.Errorf("%w: %s has the wrong type", domain.ErrInvalidInput, fieldErr.Field)
		default:
			return fmt.Errorf("%w: invalid request body: %v", domain.ErrInvalidInput, err)
		}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: request body must contain a single JSON object", domain.ErrInvalidInput)
	}
	return nil
}

type pointRequest struct {
	Lat flexFloat `json:"lat"`
	Lng flexFloat `json:"lng"`
}

func (p pointRequest) point() (latLng, error) {
	if !p.Lat.set || !p.Lng.set {
		return latLng{}, fmt.Errorf("%w: lat and lng are required", domain.ErrInvalidInput)
	}
	return latLng{Lat: p.Lat.v, Lng: p.Lng.v}, nil
}

type nearestRequest struct {
	pointRequest
	Limit flexInt `json:"limit"`
}

type radiusRequest struct {
	pointRequest
	RadiusKm flexFloat `json:"radius_km"`
}

type submitRequest struct {
	Name             string    `json:"name"`
	Address          string    `json:"address"`
	Area             string    `json:"area"`
	Latitude         flexFloat `json:"latitude"`
	Longitude        flexFloat `json:"longitude"`
	Rating           flexFloat `json:"rating"`
	WiFi             bool      `json:"wifi"`
	OutdoorSeating   bool      `json:"outdoor_seating"`
	Notes            string    `json:"notes"`
	SubmittedByName  string    `json:"submitted_by_name"`
	SubmittedByEmail string    `json:"submitted_by_email"`
}
