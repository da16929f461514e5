package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"coffeemap/internal/domain"
)

/********** alias registry (single source of truth) **********/

var shopAliases = map[string][]string{
	"name":            {"name", "title", "shop_name", "properties.name"},
	"address":         {"address", "street_address", "addr:full", "location.address"},
	"area":            {"area", "neighbourhood", "neighborhood", "district", "suburb"},
	"description":     {"description", "summary", "notes"},
	"rating":          {"rating", "stars", "score", "rating.value"},
	"wifi":            {"wifi", "has_wifi", "internet_access"},
	"outdoor_seating": {"outdoor_seating", "outdoor", "terrace", "has_outdoor_seating"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	if v, ok := m[path]; ok {
		return v
	}
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns string at path or "".
func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func firstNonEmptyAlias(m map[string]any, key string) string {
	for _, p := range shopAliases[key] {
		if s := lookupStr(m, p); s != "" {
			return s
		}
	}
	return ""
}

// getFloatFlexible: number from several paths (float64/int/string like "4,5").
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

// getBoolFlexible: bool / "yes" / "true" / 1 from several paths; false when absent.
func getBoolFlexible(m map[string]any, paths ...string) bool {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case bool:
			return v
		case float64:
			return v != 0
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "yes", "true", "1", "y", "free", "wlan":
				return true
			case "":
				continue
			default:
				return false
			}
		}
	}
	return false
}

/********** feature -> shop **********/

// mapFeature converts one GeoJSON feature into a shop. Only Point geometries are accepted.
func mapFeature(f *geojson.Feature) (domain.CoffeeShop, error) {
	if f == nil {
		return domain.CoffeeShop{}, fmt.Errorf("%w: nil feature", domain.ErrInvalidInput)
	}
	pt, ok := f.Geometry.(orb.Point)
	if !ok {
		return domain.CoffeeShop{}, fmt.Errorf("%w: geometry must be a Point", domain.ErrInvalidInput)
	}
	props := map[string]any(f.Properties)
	if props == nil {
		props = map[string]any{}
	}

	s := domain.CoffeeShop{
		Name:           firstNonEmptyAlias(props, "name"),
		Address:        firstNonEmptyAlias(props, "address"),
		Area:           firstNonEmptyAlias(props, "area"),
		Description:    firstNonEmptyAlias(props, "description"),
		Location:       pt,
		Rating:         getFloatFlexible(props, shopAliases["rating"]...),
		WiFi:           getBoolFlexible(props, shopAliases["wifi"]...),
		OutdoorSeating: getBoolFlexible(props, shopAliases["outdoor_seating"]...),
	}
	if err := s.Validate(); err != nil {
		return domain.CoffeeShop{}, fmt.Errorf("feature %q: %w", s.Name, err)
	}
	return s, nil
}

// ParseShops decodes a FeatureCollection document. Invalid features are skipped
// and reported in the returned error slice; a malformed document is a hard error.
func ParseShops(body []byte) ([]domain.CoffeeShop, []error, error) {
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: decode feature collection: %w", domain.ErrInvalidInput, err)
	}
	shops := make([]domain.CoffeeShop, 0, len(fc.Features))
	var skipped []error
	for i, f := range fc.Features {
		s, err := mapFeature(f)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("feature %d: %w", i, err))
			continue
		}
		shops = append(shops, s)
	}
	return shops, skipped, nil
}

/********** shop / submission -> feature **********/

func ratingValue(r *float64) any {
	if r == nil {
		return nil
	}
	return *r
}

func ShopFeature(s domain.CoffeeShop) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{s.Longitude(), s.Latitude()})
	f.Properties = geojson.Properties{
		"id":              s.ID,
		"name":            s.Name,
		"address":         s.Address,
		"area":            s.Area,
		"rating":          ratingValue(s.Rating),
		"description":     s.Description,
		"wifi":            s.WiFi,
		"outdoor_seating": s.OutdoorSeating,
	}
	return f
}

func SubmissionFeature(s domain.Submission) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{s.Location.Lon(), s.Location.Lat()})
	f.Properties = geojson.Properties{
		"id":              s.ID,
		"ref":             s.Ref,
		"name":            s.Name,
		"address":         s.Address,
		"area":            s.Area,
		"rating":          ratingValue(s.Rating),
		"wifi":            s.WiFi,
		"outdoor_seating": s.OutdoorSeating,
		"notes":           s.Notes,
		"submitted_at":    s.SubmittedAt.UTC().Format(time.RFC3339),
	}
	return f
}
