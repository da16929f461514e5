package mysql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"coffeemap/internal/domain"
)

func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func ptrF64(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float64
	return &f
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShop(row rowScanner) (domain.CoffeeShop, error) {
	var s domain.CoffeeShop
	var lng, lat float64
	var rating sql.NullFloat64
	if err := row.Scan(
		&s.ID,
		&s.Name,
		&s.Address,
		&s.Area,
		&lng, &lat,
		&rating,
		&s.Description,
		&s.WiFi,
		&s.OutdoorSeating,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return domain.CoffeeShop{}, err
	}
	s.Location = orb.Point{lng, lat}
	s.Rating = ptrF64(rating)
	return s, nil
}

func (r *Repo) InsertIfAbsent(ctx context.Context, s domain.CoffeeShop) (domain.CoffeeShop, bool, error) {
	res, err := r.db.ExecContext(ctx, insertShopSQL,
		s.Name,
		s.Address,
		s.Area,
		wkt.MarshalString(s.Location),
		valF64(s.Rating),
		s.Description,
		s.WiFi,
		s.OutdoorSeating,
	)
	if err != nil {
		return domain.CoffeeShop{}, false, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.CoffeeShop{}, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.CoffeeShop{}, false, err
	}
	saved, err := r.GetShop(ctx, id)
	if err != nil {
		return domain.CoffeeShop{}, false, err
	}
	return saved, n == 1, nil
}

func (r *Repo) GetShop(ctx context.Context, id int64) (domain.CoffeeShop, error) {
	s, err := scanShop(r.db.QueryRowContext(ctx, getShopSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CoffeeShop{}, domain.ErrNotFound
	}
	return s, err
}

func (r *Repo) ListShops(ctx context.Context) ([]domain.CoffeeShop, error) {
	return r.queryShops(ctx, listShopsSQL)
}

func (r *Repo) NearestShops(ctx context.Context, p orb.Point, limit int) ([]domain.CoffeeShop, error) {
	return r.queryShops(ctx, nearestShopsSQL, wkt.MarshalString(p), limit)
}

func (r *Repo) ShopsWithin(ctx context.Context, p orb.Point, meters float64) ([]domain.CoffeeShop, error) {
	pt := wkt.MarshalString(p)
	return r.queryShops(ctx, shopsWithinSQL, pt, meters, pt)
}

func (r *Repo) queryShops(ctx context.Context, query string, args ...any) ([]domain.CoffeeShop, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) CreateSubmission(ctx context.Context, s domain.Submission) (domain.Submission, error) {
	res, err := r.db.ExecContext(ctx, insertSubmissionSQL,
		s.Ref,
		s.Name,
		s.Address,
		s.Area,
		wkt.MarshalString(s.Location),
		valF64(s.Rating),
		s.WiFi,
		s.OutdoorSeating,
		s.Notes,
		s.SubmittedByName,
		s.SubmittedByEmail,
		s.Status,
		s.SubmittedAt,
	)
	if err != nil {
		return domain.Submission{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Submission{}, err
	}
	s.ID = id
	return s, nil
}

func (r *Repo) ListPendingSubmissions(ctx context.Context) ([]domain.Submission, error) {
	rows, err := r.db.QueryContext(ctx, listPendingSubmissionsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Submission
	for rows.Next() {
		var s domain.Submission
		var lng, lat float64
		var rating sql.NullFloat64
		if err := rows.Scan(
			&s.ID,
			&s.Ref,
			&s.Name,
			&s.Address,
			&s.Area,
			&lng, &lat,
			&rating,
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
		s.Rating = ptrF64(rating)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
