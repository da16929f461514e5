//go:build integration

package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/paulmach/orb/geojson"

	server "coffeemap/internal/adapters/http_server"
	redisad "coffeemap/internal/adapters/redis"
	"coffeemap/internal/app"
	"coffeemap/internal/seed"
	mysqlrepo "coffeemap/internal/storage/mysql"
)

// ---------- helpers ----------
func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := os.Getenv("MIGRATIONS_DIR")
	if dir == "" {
		dir = filepath.Join("..", "..", "migrations", "mysql")
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)
	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env:        []string{"MYSQL_ROOT_PASSWORD=root", "MYSQL_DATABASE=coffeemap"},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/coffeemap?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		resource.GetPort("3306/tcp"))
	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	applyMigrations(t, db)
	return db
}

func postJSON(t *testing.T, url, body string, out any) int {
	t.Helper()
	res, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer res.Body.Close()
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return res.StatusCode
}

type hit struct {
	Rank       int     `json:"rank"`
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	DistanceKm float64 `json:"distance_km"`
}

// ---------- the test ----------
func TestHTTP_EndToEnd_DublinSeed(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	cache := redisad.New(miniredis.RunT(t).Addr(), "", 0)
	ctx := context.Background()

	// load the embedded seed twice: the second pass must create nothing
	shops, _, err := app.ParseShops(seed.Dublin())
	if err != nil {
		t.Fatalf("parse seed: %v", err)
	}
	loader := app.NewLoadService(repo, cache, nil)
	for pass := 0; pass < 2; pass++ {
		for _, s := range shops {
			_, created, err := loader.LoadShop(ctx, s)
			if err != nil {
				t.Fatalf("load %s: %v", s.Name, err)
			}
			if pass == 1 && created {
				t.Fatalf("second pass created %s", s.Name)
			}
		}
	}

	srv := server.New(server.Options{})
	srv.MountHandlers(&server.Handlers{
		Q:    app.NewQueryService(repo, cache, time.Minute, app.WithReadTimeout(2*time.Second)),
		Subs: app.NewSubmissionService(repo, nil),
	})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	// nearest from 3fe's own coordinates
	var near struct {
		TotalFound   int   `json:"total_found"`
		NearestShops []hit `json:"nearest_shops"`
	}
	if code := postJSON(t, ts.URL+"/coffee/api/nearest/", `{"lat":53.3361,"lng":-6.2405,"limit":3}`, &near); code != http.StatusOK {
		t.Fatalf("nearest status %d", code)
	}
	if near.TotalFound != 3 || near.NearestShops[0].Name != "3fe Coffee" || near.NearestShops[0].DistanceKm != 0 {
		t.Fatalf("nearest: %+v", near)
	}

	// radius around Kaph
	var rad struct {
		Success bool  `json:"success"`
		Shops   []hit `json:"shops"`
	}
	if code := postJSON(t, ts.URL+"/coffee/api/radius/", `{"lat":"53.3417","lng":"-6.2637","radius_km":0.3}`, &rad); code != http.StatusOK {
		t.Fatalf("radius status %d", code)
	}
	if !rad.Success || len(rad.Shops) == 0 || rad.Shops[0].Name != "Kaph" {
		t.Fatalf("radius: %+v", rad)
	}
	for _, s := range rad.Shops {
		if s.DistanceKm > 0.3 {
			t.Fatalf("%s outside radius: %v", s.Name, s.DistanceKm)
		}
	}

	// the Dalkey cluster is far from the city centre
	var dist struct {
		Distance struct {
			Km float64 `json:"km"`
		} `json:"distance"`
	}
	res, err := http.Get(fmt.Sprintf("%s/coffee/api/distance/%d/%d/", ts.URL, near.NearestShops[0].ID, rad.Shops[0].ID))
	if err != nil {
		t.Fatalf("GET distance: %v", err)
	}
	_ = json.NewDecoder(res.Body).Decode(&dist)
	res.Body.Close()
	if res.StatusCode != http.StatusOK || dist.Distance.Km < 1 || dist.Distance.Km > 3 {
		t.Fatalf("3fe to Kaph: status %d, %+v", res.StatusCode, dist)
	}

	// full export
	res, err = http.Get(ts.URL + "/coffee/api/all/")
	if err != nil {
		t.Fatalf("GET all: %v", err)
	}
	var fc geojson.FeatureCollection
	if err := json.NewDecoder(res.Body).Decode(&fc); err != nil {
		t.Fatalf("decode all: %v", err)
	}
	res.Body.Close()
	if len(fc.Features) != len(shops) {
		t.Fatalf("expected %d features, got %d", len(shops), len(fc.Features))
	}

	// submissions land as pending
	var sub struct {
		Success bool   `json:"success"`
		Ref     string `json:"ref"`
	}
	code := postJSON(t, ts.URL+"/coffee/submit/", `{"name":"New Place","address":"1 Main St","area":"Howth","latitude":53.3876,"longitude":-6.0653}`, &sub)
	if code != http.StatusCreated || !sub.Success || sub.Ref == "" {
		t.Fatalf("submit: %d %+v", code, sub)
	}
}
