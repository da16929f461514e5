// Package memory is an in-process entity store, used for development and tests.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"coffeemap/internal/domain"
)

type Store struct {
	mu        sync.RWMutex
	shops     map[int64]domain.CoffeeShop
	byKey     map[string]int64
	subs      []domain.Submission
	nextID    int64
	nextSubID int64
	now       func() time.Time
}

func New() *Store {
	return &Store{
		shops: make(map[int64]domain.CoffeeShop),
		byKey: make(map[string]int64),
		now:   time.Now,
	}
}

func (s *Store) InsertIfAbsent(ctx context.Context, shop domain.CoffeeShop) (domain.CoffeeShop, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.CoffeeShop{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := shop.LoadKey()
	if id, ok := s.byKey[key]; ok {
		return clone(s.shops[id]), false, nil
	}
	s.nextID++
	now := s.now().UTC()
	shop.ID = s.nextID
	shop.CreatedAt, shop.UpdatedAt = now, now
	shop = clone(shop)
	s.shops[shop.ID] = shop
	s.byKey[key] = shop.ID
	return clone(shop), true, nil
}

func (s *Store) GetShop(ctx context.Context, id int64) (domain.CoffeeShop, error) {
	if err := ctx.Err(); err != nil {
		return domain.CoffeeShop{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.shops[id]
	if !ok {
		return domain.CoffeeShop{}, domain.ErrNotFound
	}
	return clone(sh), nil
}

func (s *Store) ListShops(ctx context.Context) ([]domain.CoffeeShop, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]domain.CoffeeShop, 0, len(s.shops))
	for _, sh := range s.shops {
		out = append(out, clone(sh))
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.CoffeeShop) int {
		if c := cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) CreateSubmission(ctx context.Context, sub domain.Submission) (domain.Submission, error) {
	if err := ctx.Err(); err != nil {
		return domain.Submission{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	sub.ID = s.nextSubID
	if sub.Status == "" {
		sub.Status = domain.SubmissionPending
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = s.now().UTC()
	}
	s.subs = append(s.subs, sub)
	return sub, nil
}

// ListPendingSubmissions returns pending submissions, newest first.
func (s *Store) ListPendingSubmissions(ctx context.Context) ([]domain.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Submission, 0, len(s.subs))
	for i := len(s.subs) - 1; i >= 0; i-- {
		if s.subs[i].Status == domain.SubmissionPending {
			out = append(out, s.subs[i])
		}
	}
	return out, nil
}

func clone(sh domain.CoffeeShop) domain.CoffeeShop {
	if sh.Rating != nil {
		r := *sh.Rating
		sh.Rating = &r
	}
	return sh
}
