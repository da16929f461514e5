package domain

import (
	"context"

	"github.com/paulmach/orb"
)

type ShopRepository interface {
	// Write paths
	InsertIfAbsent(ctx context.Context, s CoffeeShop) (CoffeeShop, bool, error)

	// Read paths
	GetShop(ctx context.Context, id int64) (CoffeeShop, error)
	ListShops(ctx context.Context) ([]CoffeeShop, error) // name ascending, then id
}

// SpatialSearcher is implemented by stores that can order or filter by distance
// natively. Results are candidates: the query engine recomputes distances itself.
type SpatialSearcher interface {
	NearestShops(ctx context.Context, p orb.Point, limit int) ([]CoffeeShop, error)
	ShopsWithin(ctx context.Context, p orb.Point, meters float64) ([]CoffeeShop, error)
}

type SubmissionRepository interface {
	CreateSubmission(ctx context.Context, s Submission) (Submission, error)
	ListPendingSubmissions(ctx context.Context) ([]Submission, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

type SubmissionNotifier interface {
	SubmissionCreated(ctx context.Context, s Submission) error
}

type SnapshotWriter interface {
	PutSnapshot(ctx context.Context, key string, body []byte) error
}

type FeedClient interface {
	GetFeatureCollection(ctx context.Context, url string) ([]byte, error)
}

// Read models & queries

type NearestQuery struct {
	Point orb.Point
	Limit int
}

type RadiusQuery struct {
	Point    orb.Point
	RadiusKm float64
}

type ShopDistance struct {
	Rank       int // 1-based; zero for radius results
	Shop       CoffeeShop
	DistanceKm float64 // rounded to 2 decimals
	DistanceM  float64 // rounded to the nearest meter
}

type NearestResult struct {
	SearchPoint orb.Point
	TotalFound  int
	Shops       []ShopDistance
}

type RadiusResult struct {
	SearchPoint orb.Point
	RadiusKm    float64
	TotalFound  int
	Shops       []ShopDistance
}

type PairDistance struct {
	Shop1  CoffeeShop
	Shop2  CoffeeShop
	Km     float64
	Meters float64
	Miles  float64
}
