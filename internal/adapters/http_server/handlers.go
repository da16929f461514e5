package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"coffeemap/internal/adapters/observability"
	"coffeemap/internal/app"
	"coffeemap/internal/domain"
)

type Handlers struct {
	Q             *app.QueryService
	Subs          *app.SubmissionService
	SubmitLimiter *rate.Limiter // nil = unlimited
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/coffee", func(r chi.Router) {
		r.Post("/api/nearest/", h.nearest)
		r.Post("/api/radius/", h.radius)
		r.Get("/api/distance/{shop1_id}/{shop2_id}/", h.distance)
		r.Get("/api/all/", h.allShops)
		r.Get("/api/shops/{id}/", h.getShop)
		if h.Subs != nil {
			r.Get("/api/submissions/pending/", h.pendingSubmissions)
			r.With(RateLimit(h.SubmitLimiter)).Post("/submit/", h.submit)
		}
	})
}

/********** wire types **********/

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func toLatLng(p orb.Point) latLng { return latLng{Lat: p.Lat(), Lng: p.Lon()} }

type shopHit struct {
	Rank        int      `json:"rank,omitempty"`
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	Area        string   `json:"area"`
	Coordinates latLng   `json:"coordinates"`
	DistanceKm  float64  `json:"distance_km"`
	DistanceM   float64  `json:"distance_m"`
	Rating      *float64 `json:"rating"`
}

func toHits(in []domain.ShopDistance) []shopHit {
	out := make([]shopHit, 0, len(in))
	for _, d := range in {
		out = append(out, shopHit{
			Rank:        d.Rank,
			ID:          d.Shop.ID,
			Name:        d.Shop.Name,
			Address:     d.Shop.Address,
			Area:        d.Shop.Area,
			Coordinates: toLatLng(d.Shop.Location),
			DistanceKm:  d.DistanceKm,
			DistanceM:   d.DistanceM,
			Rating:      d.Shop.Rating,
		})
	}
	return out
}

type nearestResponse struct {
	SearchPoint  latLng    `json:"search_point"`
	TotalFound   int       `json:"total_found"`
	NearestShops []shopHit `json:"nearest_shops"`
}

type radiusResponse struct {
	Success     bool      `json:"success"`
	SearchPoint latLng    `json:"search_point"`
	RadiusKm    float64   `json:"radius_km"`
	TotalFound  int       `json:"total_found"`
	Shops       []shopHit `json:"shops"`
}

type shopRef struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Coordinates latLng `json:"coordinates"`
}

type distanceResponse struct {
	Success  bool    `json:"success"`
	Shop1    shopRef `json:"shop1"`
	Shop2    shopRef `json:"shop2"`
	Distance struct {
		Km     float64 `json:"km"`
		Meters float64 `json:"meters"`
		Miles  float64 `json:"miles"`
	} `json:"distance"`
}

type shopDetail struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Address        string     `json:"address"`
	Area           string     `json:"area"`
	Latitude       float64    `json:"latitude"`
	Longitude      float64    `json:"longitude"`
	Coordinates    [2]float64 `json:"coordinates"`
	Rating         *float64   `json:"rating"`
	Description    string     `json:"description"`
	WiFi           bool       `json:"wifi"`
	OutdoorSeating bool       `json:"outdoor_seating"`
}

type submitResponse struct {
	Success bool   `json:"success"`
	ID      int64  `json:"id"`
	Ref     string `json:"ref"`
}

type errorBody struct {
	Success bool                `json:"success"`
	Error   string              `json:"error"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

/********** helpers **********/

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// writeError maps domain error kinds onto status codes. Causes of 5xx
// responses are logged, never returned to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var fe domain.FieldErrors
	switch {
	case errors.As(err, &fe):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Please correct the errors below.", Errors: fe})
	case errors.Is(err, domain.ErrInvalidInput):
		msg := strings.TrimPrefix(err.Error(), domain.ErrInvalidInput.Error()+": ")
		writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Coffee shop not found"})
	case errors.Is(err, domain.ErrTimeout):
		log.Warn().Err(err).Str("request_id", chimw.GetReqID(r.Context())).Msg("store read timed out")
		writeJSON(w, http.StatusGatewayTimeout, errorBody{Error: "Request timed out"})
	default:
		log.Error().Err(err).Str("request_id", chimw.GetReqID(r.Context())).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal server error"})
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal server error"})
		return
	}
	// If client already has this version, short-circuit.
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

// pathID accepts any run of digits. Ids that match no shop (0 included)
// are left for the query service to report as not found.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	if raw == "" || strings.TrimLeft(raw, "0123456789") != "" {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrInvalidInput, name)
	}
	id, err := strconv.ParseUint(raw, 10, 63)
	if err != nil {
		return 0, fmt.Errorf("%w: %s is out of range", domain.ErrInvalidInput, name)
	}
	return int64(id), nil
}

/********** handlers **********/

func (h *Handlers) nearest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	res, err := h.doNearest(w, r)
	observability.ObserveQuery("nearest", outcome(err), time.Since(start))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) doNearest(w http.ResponseWriter, r *http.Request) (nearestResponse, error) {
	var req nearestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return nearestResponse{}, err
	}
	sp, err := req.point()
	if err != nil {
		return nearestResponse{}, err
	}
	limit := app.DefaultNearestLimit
	if req.Limit.set {
		limit = req.Limit.v
	}
	out, err := h.Q.Nearest(r.Context(), domain.NearestQuery{Point: orb.Point{sp.Lng, sp.Lat}, Limit: limit})
	if err != nil {
		return nearestResponse{}, err
	}
	return nearestResponse{SearchPoint: sp, TotalFound: out.TotalFound, NearestShops: toHits(out.Shops)}, nil
}

func (h *Handlers) radius(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	res, err := h.doRadius(w, r)
	observability.ObserveQuery("radius", outcome(err), time.Since(start))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) doRadius(w http.ResponseWriter, r *http.Request) (radiusResponse, error) {
	var req radiusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return radiusResponse{}, err
	}
	sp, err := req.point()
	if err != nil {
		return radiusResponse{}, err
	}
	radiusKm := app.DefaultRadiusKm
	if req.RadiusKm.set {
		radiusKm = req.RadiusKm.v
	}
	out, err := h.Q.WithinRadius(r.Context(), domain.RadiusQuery{Point: orb.Point{sp.Lng, sp.Lat}, RadiusKm: radiusKm})
	if err != nil {
		return radiusResponse{}, err
	}
	return radiusResponse{
		Success:     true,
		SearchPoint: sp,
		RadiusKm:    out.RadiusKm,
		TotalFound:  out.TotalFound,
		Shops:       toHits(out.Shops),
	}, nil
}

func (h *Handlers) distance(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	res, err := h.doDistance(r)
	observability.ObserveQuery("distance", outcome(err), time.Since(start))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) doDistance(r *http.Request) (distanceResponse, error) {
	id1, err := pathID(r, "shop1_id")
	if err != nil {
		return distanceResponse{}, err
	}
	id2, err := pathID(r, "shop2_id")
	if err != nil {
		return distanceResponse{}, err
	}
	d, err := h.Q.Distance(r.Context(), id1, id2)
	if err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			log.Debug().Ints64("ids", nf.IDs).Msg("distance lookup missed")
		}
		return distanceResponse{}, err
	}
	res := distanceResponse{
		Success: true,
		Shop1:   shopRef{ID: d.Shop1.ID, Name: d.Shop1.Name, Coordinates: toLatLng(d.Shop1.Location)},
		Shop2:   shopRef{ID: d.Shop2.ID, Name: d.Shop2.Name, Coordinates: toLatLng(d.Shop2.Location)},
	}
	res.Distance.Km, res.Distance.Meters, res.Distance.Miles = d.Km, d.Meters, d.Miles
	return res, nil
}

func (h *Handlers) allShops(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	fc, err := h.Q.ExportFeatures(r.Context())
	observability.ObserveQuery("export", outcome(err), time.Since(start))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, fc)
}

func (h *Handlers) getShop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.Q.GetShop(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, shopDetail{
		ID:             s.ID,
		Name:           s.Name,
		Address:        s.Address,
		Area:           s.Area,
		Latitude:       s.Latitude(),
		Longitude:      s.Longitude(),
		Coordinates:    s.Coordinates(),
		Rating:         s.Rating,
		Description:    s.Description,
		WiFi:           s.WiFi,
		OutdoorSeating: s.OutdoorSeating,
	})
}

func (h *Handlers) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := h.Subs.Submit(r.Context(), app.SubmissionInput{
		Name:             req.Name,
		Address:          req.Address,
		Area:             req.Area,
		Latitude:         req.Latitude.ptr(),
		Longitude:        req.Longitude.ptr(),
		Rating:           req.Rating.ptr(),
		WiFi:             req.WiFi,
		OutdoorSeating:   req.OutdoorSeating,
		Notes:            req.Notes,
		SubmittedByName:  req.SubmittedByName,
		SubmittedByEmail: req.SubmittedByEmail,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.Info().Int64("id", sub.ID).Str("ref", sub.Ref).Str("name", sub.Name).Msg("submission received")
	writeJSON(w, http.StatusCreated, submitResponse{Success: true, ID: sub.ID, Ref: sub.Ref})
}

func (h *Handlers) pendingSubmissions(w http.ResponseWriter, r *http.Request) {
	fc, err := h.Subs.PendingFeatures(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fc)
}
