package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

type CoffeeShop struct {
	ID             int64
	Name           string
	Address        string
	Area           string
	Location       orb.Point // (lng, lat), EPSG:4326
	Rating         *float64  // nil = not yet rated
	Description    string
	WiFi           bool
	OutdoorSeating bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (s CoffeeShop) Latitude() float64  { return s.Location.Lat() }
func (s CoffeeShop) Longitude() float64 { return s.Location.Lon() }

// Coordinates is GeoJSON axis order: longitude first.
func (s CoffeeShop) Coordinates() [2]float64 { return [2]float64{s.Location.Lon(), s.Location.Lat()} }

// LoadKey is the natural key used by idempotent bulk loads.
func (s CoffeeShop) LoadKey() string {
	return strings.ToLower(strings.TrimSpace(s.Name)) + "\x00" + strings.ToLower(strings.TrimSpace(s.Address))
}

const (
	MinRating = 1.0
	MaxRating = 5.0
)

// ValidatePoint checks a (lng, lat) pair is finite and inside WGS-84 bounds.
func ValidatePoint(p orb.Point) error {
	lng, lat := p.Lon(), p.Lat()
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return fmt.Errorf("%w: coordinates must be finite numbers", ErrInvalidInput)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrInvalidInput, lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrInvalidInput, lng)
	}
	return nil
}

func ValidateRating(r *float64) error {
	if r == nil {
		return nil
	}
	if math.IsNaN(*r) || *r < MinRating || *r > MaxRating {
		return fmt.Errorf("%w: rating must be between %.1f and %.1f", ErrInvalidInput, MinRating, MaxRating)
	}
	return nil
}

// Validate checks the invariants a shop must hold before it is stored.
func (s CoffeeShop) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if err := ValidatePoint(s.Location); err != nil {
		return err
	}
	return ValidateRating(s.Rating)
}
