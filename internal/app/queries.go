package app

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"coffeemap/internal/domain"
	"coffeemap/internal/geo"
)

const (
	DefaultNearestLimit = 5
	DefaultRadiusKm     = 1.0
	MaxRadiusKm         = 20.0

	snapshotKey = "shops:all"

	// extra candidates requested from a store-side nearest search so that
	// near-ties at the cut are re-ranked with our own metric.
	nearestSlack = 4
)

var ErrRadiusOutOfRange = fmt.Errorf("%w: Radius must be between 0 and 20 km", domain.ErrInvalidInput)

func shopKey(id int64) string { return fmt.Sprintf("shop:%d", id) }

type QueryService struct {
	repo         domain.ShopRepository
	cache        domain.Cache
	cacheTTL     time.Duration
	readTimeout  time.Duration
	legacyPlanar bool
}

type QueryOption func(*QueryService)

// WithReadTimeout bounds every store read issued by a query.
func WithReadTimeout(d time.Duration) QueryOption {
	return func(s *QueryService) { s.readTimeout = d }
}

// WithLegacyPlanarDistance makes Distance use the deprecated degrees*111.32 metric.
func WithLegacyPlanarDistance(on bool) QueryOption {
	return func(s *QueryService) { s.legacyPlanar = on }
}

func NewQueryService(r domain.ShopRepository, c domain.Cache, ttl time.Duration, opts ...QueryOption) *QueryService {
	s := &QueryService{repo: r, cache: c, cacheTTL: ttl}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *QueryService) Nearest(ctx context.Context, q domain.NearestQuery) (domain.NearestResult, error) {
	if err := domain.ValidatePoint(q.Point); err != nil {
		return domain.NearestResult{}, err
	}
	if q.Limit < 1 {
		return domain.NearestResult{}, fmt.Errorf("%w: limit must be a positive integer", domain.ErrInvalidInput)
	}

	candidates, err := s.nearestCandidates(ctx, q.Point, q.Limit)
	if err != nil {
		return domain.NearestResult{}, err
	}

	ranked := rankByDistance(q.Point, candidates)
	if len(ranked) > q.Limit {
		ranked = ranked[:q.Limit]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return domain.NearestResult{SearchPoint: q.Point, TotalFound: len(ranked), Shops: ranked}, nil
}

func (s *QueryService) WithinRadius(ctx context.Context, q domain.RadiusQuery) (domain.RadiusResult, error) {
	if err := domain.ValidatePoint(q.Point); err != nil {
		return domain.RadiusResult{}, err
	}
	if math.IsNaN(q.RadiusKm) || q.RadiusKm <= 0 || q.RadiusKm > MaxRadiusKm {
		return domain.RadiusResult{}, ErrRadiusOutOfRange
	}

	candidates, err := s.radiusCandidates(ctx, q.Point, q.RadiusKm)
	if err != nil {
		return domain.RadiusResult{}, err
	}

	inside := make([]domain.CoffeeShop, 0, len(candidates))
	for _, sh := range candidates {
		// inclusive boundary, compared in km on the unrounded distance
		if geo.MetersToKm(geo.Distance(q.Point, sh.Location)) <= q.RadiusKm {
			inside = append(inside, sh)
		}
	}
	out := rankByDistance(q.Point, inside)
	return domain.RadiusResult{
		SearchPoint: q.Point,
		RadiusKm:    q.RadiusKm,
		TotalFound:  len(out),
		Shops:       out,
	}, nil
}

// Distance resolves both shops before computing anything; a missing id is
// reported as *domain.NotFoundError listing every id that did not resolve.
func (s *QueryService) Distance(ctx context.Context, id1, id2 int64) (domain.PairDistance, error) {
	var missing []int64

	a, err := s.GetShop(ctx, id1)
	if errors.Is(err, domain.ErrNotFound) {
		missing = append(missing, id1)
	} else if err != nil {
		return domain.PairDistance{}, err
	}

	b := a
	if id2 != id1 {
		b, err = s.GetShop(ctx, id2)
		if errors.Is(err, domain.ErrNotFound) {
			missing = append(missing, id2)
		} else if err != nil {
			return domain.PairDistance{}, err
		}
	}

	if len(missing) > 0 {
		return domain.PairDistance{}, &domain.NotFoundError{IDs: missing}
	}

	km := geo.MetersToKm(geo.Distance(a.Location, b.Location))
	if s.legacyPlanar {
		km = geo.PlanarDistanceKm(a.Location, b.Location)
	}
	return domain.PairDistance{
		Shop1:  a,
		Shop2:  b,
		Km:     geo.RoundTo(km, 2),
		Meters: geo.RoundTo(km*1000, 0),
		Miles:  geo.RoundTo(km*geo.MilesPerKm, 2),
	}, nil
}

func (s *QueryService) GetShop(ctx context.Context, id int64) (domain.CoffeeShop, error) {
	key := shopKey(id)
	var cs domain.CoffeeShop
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &cs); ok {
			return cs, nil
		}
	}

	rctx, cancel := s.readCtx(ctx)
	defer cancel()
	cs, err := s.repo.GetShop(rctx, id)
	if err != nil {
		return domain.CoffeeShop{}, classify(err)
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, cs, s.ttlSeconds())
	}
	return cs, nil
}

// ListShops returns the full store snapshot in the store's natural order.
func (s *QueryService) ListShops(ctx context.Context) ([]domain.CoffeeShop, error) {
	var out []domain.CoffeeShop
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, snapshotKey, &out); ok {
			return out, nil
		}
	}

	rctx, cancel := s.readCtx(ctx)
	defer cancel()
	shops, err := s.repo.ListShops(rctx)
	if err != nil {
		return nil, classify(err)
	}

	// copy so a cached value never aliases the repo's backing array
	out = slices.Clone(shops)
	if s.cache != nil {
		_ = s.cache.Set(ctx, snapshotKey, out, s.ttlSeconds())
	}
	return out, nil
}

func (s *QueryService) ExportFeatures(ctx context.Context) (*geojson.FeatureCollection, error) {
	shops, err := s.ListShops(ctx)
	if err != nil {
		return nil, err
	}
	fc := geojson.NewFeatureCollection()
	for _, sh := range shops {
		fc.Append(ShopFeature(sh))
	}
	return fc, nil
}

func (s *QueryService) nearestCandidates(ctx context.Context, p orb.Point, limit int) ([]domain.CoffeeShop, error) {
	ss, ok := s.repo.(domain.SpatialSearcher)
	if !ok {
		return s.ListShops(ctx)
	}
	n := limit
	if n < math.MaxInt32-nearestSlack {
		n += nearestSlack
	}
	rctx, cancel := s.readCtx(ctx)
	defer cancel()
	shops, err := ss.NearestShops(rctx, p, n)
	if err != nil {
		return nil, classify(err)
	}
	return shops, nil
}

func (s *QueryService) radiusCandidates(ctx context.Context, p orb.Point, radiusKm float64) ([]domain.CoffeeShop, error) {
	meters := radiusKm * 1000
	if ss, ok := s.repo.(domain.SpatialSearcher); ok {
		rctx, cancel := s.readCtx(ctx)
		defer cancel()
		shops, err := ss.ShopsWithin(rctx, p, meters*1.01+1)
		if err != nil {
			return nil, classify(err)
		}
		return shops, nil
	}

	all, err := s.ListShops(ctx)
	if err != nil {
		return nil, err
	}
	bound, ok := geo.SearchBound(p, meters)
	if !ok {
		return all, nil
	}
	out := make([]domain.CoffeeShop, 0, len(all))
	for _, sh := range all {
		if bound.Contains(sh.Location) {
			out = append(out, sh)
		}
	}
	return out, nil
}

// rankByDistance sorts ascending by geodesic distance, ties broken by id.
func rankByDistance(origin orb.Point, shops []domain.CoffeeShop) []domain.ShopDistance {
	type scored struct {
		shop   domain.CoffeeShop
		meters float64
	}
	items := make([]scored, 0, len(shops))
	for _, sh := range shops {
		items = append(items, scored{shop: sh, meters: geo.Distance(origin, sh.Location)})
	}
	slices.SortStableFunc(items, func(a, b scored) int {
		if c := cmp.Compare(a.meters, b.meters); c != 0 {
			return c
		}
		return cmp.Compare(a.shop.ID, b.shop.ID)
	})

	out := make([]domain.ShopDistance, 0, len(items))
	for _, it := range items {
		out = append(out, domain.ShopDistance{
			Shop:       it.shop,
			DistanceKm: geo.RoundTo(geo.MetersToKm(it.meters), 2),
			DistanceM:  geo.RoundTo(it.meters, 0),
		})
	}
	return out
}

func (s *QueryService) readCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.readTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.readTimeout)
}

func (s *QueryService) ttlSeconds() int { return int(s.cacheTTL.Seconds()) }

// classify maps raw store errors onto the domain error kinds.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrTimeout), errors.Is(err, domain.ErrUpstream):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %w", domain.ErrUpstream, err)
	}
}
