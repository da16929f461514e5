package postgis

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"

	"coffeemap/internal/domain"
)

// Repo stores shops in PostgreSQL with PostGIS geometry columns.
type Repo struct{ pool *pgxpool.Pool }

func New(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func scanShop(row pgx.Row) (domain.CoffeeShop, error) {
	var s domain.CoffeeShop
	var lng, lat float64
	if err := row.Scan(
		&s.ID,
		&s.Name,
		&s.Address,
		&s.Area,
		&lng, &lat,
		&s.Rating,
		&s.Description,
		&s.WiFi,
		&s.OutdoorSeating,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return domain.CoffeeShop{}, err
	}
	s.Location = orb.Point{lng, lat}
	return s, nil
}

func (r *Repo) InsertIfAbsent(ctx context.Context, s domain.CoffeeShop) (domain.CoffeeShop, bool, error) {
	var id int64
	created := true
	err := r.pool.QueryRow(ctx, insertShopSQL,
		s.Name,
		s.Address,
		s.Area,
		s.Location.Lon(), s.Location.Lat(),
		s.Rating,
		s.Description,
		s.WiFi,
		s.OutdoorSeating,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		// conflict: DO NOTHING returns no row
		created = false
		err = r.pool.QueryRow(ctx, existingShopIDSQL, s.Name, s.Address).Scan(&id)
	}
	if err != nil {
		return domain.CoffeeShop{}, false, err
	}
	saved, err := r.GetShop(ctx, id)
	if err != nil {
		return domain.CoffeeShop{}, false, err
	}
	return saved, created, nil
}

func (r *Repo) GetShop(ctx context.Context, id int64) (domain.CoffeeShop, error) {
	s, err := scanShop(r.pool.QueryRow(ctx, getShopSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CoffeeShop{}, domain.ErrNotFound
	}
	return s, err
}

func (r *Repo) ListShops(ctx context.Context) ([]domain.CoffeeShop, error) {
	return r.queryShops(ctx, listShopsSQL)
}

func (r *Repo) NearestShops(ctx context.Context, p orb.Point, limit int) ([]domain.CoffeeShop, error) {
	return r.queryShops(ctx, nearestShopsSQL, p.Lon(), p.Lat(), limit)
}

func (r *Repo) ShopsWithin(ctx context.Context, p orb.Point, meters float64) ([]domain.CoffeeShop, error) {
	return r.queryShops(ctx, shopsWithinSQL, p.Lon(), p.Lat(), meters)
}

func (r *Repo) queryShops(ctx context.Context, query string, args ...any) ([]domain.CoffeeShop, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CoffeeShop
	for rows.Next() {
		s, err := scanShop(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repo) CreateSubmission(ctx context.Context, s domain.Submission) (domain.Submission, error) {
	err := r.pool.QueryRow(ctx, insertSubmissionSQL,
		s.Ref,
		s.Name,
		s.Address,
		s.Area,
		s.Location.Lon(), s.Location.Lat(),
		s.Rating,
		s.WiFi,
		s.OutdoorSeating,
		s.Notes,
		s.SubmittedByName,
		s.SubmittedByEmail,
		s.Status,
		s.SubmittedAt,
	).Scan(&s.ID)
	if err != nil {
		return domain.Submission{}, err
	}
	return s, nil
}

func (r *Repo) ListPendingSubmissions(ctx context.Context) ([]domain.Submission, error) {
	rows, err := r.pool.Query(ctx, listPendingSubmissionsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Submission
	for rows.Next() {
		var s domain.Submission
		var lng, lat float64
		if err := rows.Scan(
			&s.ID,
			&s.Ref,
			&s.Name,
			&s.Address,
			&s.Area,
			&lng, &lat,
			&s.Rating,
			&s.WiFi,
			&s.OutdoorSeating,
			&s.Notes,
			&s.SubmittedByName,
			&s.SubmittedByEmail,
			&s.Status,
			&s.SubmittedAt,
		); err != nil {
			return nil, err
		}
		s.Location = orb.Point{lng, lat}
		out = append(out, s)
	}
	return out, rows.Err()
}
