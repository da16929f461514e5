package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/paulmach/orb"

	"coffeemap/internal/domain"
	"coffeemap/internal/storage/memory"
)

func shop(name, addr string, lng, lat float64) domain.CoffeeShop {
	return domain.CoffeeShop{Name: name, Address: addr, Area: "City Centre", Location: orb.Point{lng, lat}}
}

func TestInsertIfAbsent_IdempotentOnNameAndAddress(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	first, created, err := st.InsertIfAbsent(ctx, shop("Kaph", "31 Drury Street", -6.2637, 53.3417))
	if err != nil || !created {
		t.Fatalf("first insert: created=%v err=%v", created, err)
	}
	again, created, err := st.InsertIfAbsent(ctx, shop("Kaph", "31 Drury Street", -6.0, 53.0))
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if created || again.ID != first.ID {
		t.Fatalf("expected existing row %d, got created=%v id=%d", first.ID, created, again.ID)
	}
	if again.Location != first.Location {
		t.Fatalf("existing row must not be overwritten: %v", again.Location)
	}

	// same name, different address is a distinct shop
	other, created, err := st.InsertIfAbsent(ctx, shop("Kaph", "2 Other Street", -6.26, 53.34))
	if err != nil || !created || other.ID == first.ID {
		t.Fatalf("expected distinct shop, got created=%v id=%d err=%v", created, other.ID, err)
	}
}

func TestListShops_OrderedByName(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	for _, n := range []string{"Vice Coffee Inc.", "3fe Coffee", "kaph", "Brother Hubbard"} {
		if _, _, err := st.InsertIfAbsent(ctx, shop(n, n+" street", -6.26, 53.34)); err != nil {
			t.Fatalf("insert %s: %v", n, err)
		}
	}
	got, err := st.ListShops(ctx)
	if err != nil {
		t.Fatalf("ListShops: %v", err)
	}
	want := []string{"3fe Coffee", "Brother Hubbard", "kaph", "Vice Coffee Inc."}
	if len(got) != len(want) {
		t.Fatalf("len = %d; want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Name != w {
			t.Fatalf("position %d = %q; want %q", i, got[i].Name, w)
		}
	}
}

func TestGetShop_NotFound(t *testing.T) {
	_, err := memory.New().GetShop(context.Background(), 42)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetShop_ReturnsCopy(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	r := 4.5
	s := shop("Network", "39 Aungier Street", -6.2643, 53.3397)
	s.Rating = &r
	saved, _, _ := st.InsertIfAbsent(ctx, s)

	got, _ := st.GetShop(ctx, saved.ID)
	*got.Rating = 1.0

	again, _ := st.GetShop(ctx, saved.ID)
	if *again.Rating != 4.5 {
		t.Fatalf("store state mutated through returned value: %v", *again.Rating)
	}
}

func TestConcurrentInsertSameKey(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := st.InsertIfAbsent(ctx, shop("Two Pups Coffee", "Francis Street", -6.2734, 53.3416))
			if err != nil {
				t.Errorf("insert: %v", err)
				return
			}
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if createdCount != 1 {
		t.Fatalf("expected exactly one create, got %d", createdCount)
	}
}

func TestSubmissions_PendingNewestFirst(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	for _, n := range []string{"first", "second"} {
		if _, err := st.CreateSubmission(ctx, domain.Submission{Name: n, Location: orb.Point{-6.2, 53.3}}); err != nil {
			t.Fatalf("CreateSubmission: %v", err)
		}
	}
	got, err := st.ListPendingSubmissions(ctx)
	if err != nil {
		t.Fatalf("ListPendingSubmissions: %v", err)
	}
	if len(got) != 2 || got[0].Name != "second" || got[0].Status != domain.SubmissionPending {
		t.Fatalf("unexpected pending list: %+v", got)
	}
}
