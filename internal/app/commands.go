package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"

	"coffeemap/internal/domain"
)

// SnapshotObjectKey is where the loader publishes the full feature collection.
const SnapshotObjectKey = "snapshots/coffee_shops.geojson"

type LoadService struct {
	repo      domain.ShopRepository
	cache     domain.Cache
	snapshots domain.SnapshotWriter
}

func NewLoadService(r domain.ShopRepository, cache domain.Cache, snapshots domain.SnapshotWriter) *LoadService {
	return &LoadService{repo: r, cache: cache, snapshots: snapshots}
}

// LoadShop inserts s unless a shop with the same (name, address) already exists.
// created reports whether a new row was written.
func (s *LoadService) LoadShop(ctx context.Context, shop domain.CoffeeShop) (domain.CoffeeShop, bool, error) {
	if err := shop.Validate(); err != nil {
		return domain.CoffeeShop{}, false, err
	}
	saved, created, err := s.repo.InsertIfAbsent(ctx, shop)
	if err != nil {
		return domain.CoffeeShop{}, false, fmt.Errorf("insert %q: %w", shop.Name, err)
	}
	if created && s.cache != nil {
		s.invalidateSnapshot(ctx)
	}
	return saved, created, nil
}

// PublishSnapshot writes the current feature collection to object storage.
// It is a no-op when no snapshot writer is configured.
func (s *LoadService) PublishSnapshot(ctx context.Context) (int, error) {
	if s.snapshots == nil {
		return 0, nil
	}
	shops, err := s.repo.ListShops(ctx)
	if err != nil {
		return 0, err
	}
	fc := geojson.NewFeatureCollection()
	for _, sh := range shops {
		fc.Append(ShopFeature(sh))
	}
	body, err := json.Marshal(fc)
	if err != nil {
		return 0, fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.snapshots.PutSnapshot(ctx, SnapshotObjectKey, body); err != nil {
		return 0, err
	}
	return len(shops), nil
}

func (s *LoadService) invalidateSnapshot(ctx context.Context) {
	if err := s.cache.Del(ctx, snapshotKey); err != nil {
		log.Warn().Err(err).Str("key", snapshotKey).Msg("snapshot cache invalidation failed")
	}
}

/********** submissions **********/

type SubmissionInput struct {
	Name             string
	Address          string
	Area             string
	Latitude         *float64
	Longitude        *float64
	Rating           *float64
	WiFi             bool
	OutdoorSeating   bool
	Notes            string
	SubmittedByName  string
	SubmittedByEmail string
}

type SubmissionService struct {
	repo     domain.SubmissionRepository
	notifier domain.SubmissionNotifier
	now      func() time.Time
}

func NewSubmissionService(r domain.SubmissionRepository, n domain.SubmissionNotifier) *SubmissionService {
	return &SubmissionService{repo: r, notifier: n, now: time.Now}
}

func (s *SubmissionService) Submit(ctx context.Context, in SubmissionInput) (domain.Submission, error) {
	fe := domain.FieldErrors{}
	for field, v := range map[string]string{"name": in.Name, "address": in.Address, "area": in.Area} {
		if strings.TrimSpace(v) == "" {
			fe.Add(field, "This field is required.")
		}
	}
	var pt orb.Point
	if in.Latitude == nil || in.Longitude == nil {
		fe.Add("location", "Please click on the map to set the coffee shop location.")
	} else {
		pt = orb.Point{*in.Longitude, *in.Latitude}
		if err := domain.ValidatePoint(pt); err != nil {
			fe.Add("location", strings.TrimPrefix(err.Error(), domain.ErrInvalidInput.Error()+": "))
		}
	}
	if err := domain.ValidateRating(in.Rating); err != nil {
		fe.Add("rating", "Ensure this value is between 1 and 5.")
	}
	if e := strings.TrimSpace(in.SubmittedByEmail); e != "" && !strings.Contains(e, "@") {
		fe.Add("submitted_by_email", "Enter a valid email address.")
	}
	if len(fe) > 0 {
		return domain.Submission{}, fe
	}

	sub := domain.Submission{
		Ref:              uuid.NewString(),
		Name:             strings.TrimSpace(in.Name),
		Address:          strings.TrimSpace(in.Address),
		Area:             strings.TrimSpace(in.Area),
		Location:         pt,
		Rating:           in.Rating,
		WiFi:             in.WiFi,
		OutdoorSeating:   in.OutdoorSeating,
		Notes:            in.Notes,
		SubmittedByName:  strings.TrimSpace(in.SubmittedByName),
		SubmittedByEmail: strings.TrimSpace(in.SubmittedByEmail),
		Status:           domain.SubmissionPending,
		SubmittedAt:      s.now().UTC(),
	}
	saved, err := s.repo.CreateSubmission(ctx, sub)
	if err != nil {
		return domain.Submission{}, classify(err)
	}

	// best-effort: the submission is stored even if the event is lost
	if s.notifier != nil {
		if err := s.notifier.SubmissionCreated(ctx, saved); err != nil {
			log.Warn().Err(err).Str("ref", saved.Ref).Msg("submission event publish failed")
		}
	}
	return saved, nil
}

func (s *SubmissionService) PendingFeatures(ctx context.Context) (*geojson.FeatureCollection, error) {
	subs, err := s.repo.ListPendingSubmissions(ctx)
	if err != nil {
		return nil, classify(err)
	}
	fc := geojson.NewFeatureCollection()
	for _, sub := range subs {
		fc.Append(SubmissionFeature(sub))
	}
	return fc, nil
}
