package shared

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"STORE_DRIVER", "QUERY_TIMEOUT_MS", "CORS_ORIGINS", "LOAD_WORKERS", "REDIS_ADDR"} {
		t.Setenv(k, "")
	}
	c := Load()
	if c.StoreDriver != StoreMemory || c.QueryTimeout != 2*time.Second || c.CORSOrigins != nil || c.Workers != 4 || c.RedisAddr != "" {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "PostGIS")
	t.Setenv("QUERY_TIMEOUT_MS", "250")
	t.Setenv("LEGACY_PLANAR_DISTANCE", "true")
	t.Setenv("CORS_ORIGINS", "https://map.example.ie, ,http://localhost:3000")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("SUBMIT_RPS", "0.5")
	t.Setenv("LOAD_WORKERS", "0")

	c := Load()
	if c.StoreDriver != StorePostGIS {
		t.Fatalf("driver: %q", c.StoreDriver)
	}
	if c.QueryTimeout != 250*time.Millisecond || !c.LegacyPlanarDistance || c.SubmitRPS != 0.5 {
		t.Fatalf("unexpected values: %+v", c)
	}
	if len(c.CORSOrigins) != 2 || c.CORSOrigins[1] != "http://localhost:3000" {
		t.Fatalf("cors: %v", c.CORSOrigins)
	}
	if len(c.KafkaBrokers) != 2 {
		t.Fatalf("brokers: %v", c.KafkaBrokers)
	}
	if c.Workers != 1 {
		t.Fatalf("workers should be clamped to 1, got %d", c.Workers)
	}
}

func TestLoad_UnknownDriverFallsBack(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("LEGACY_PLANAR_DISTANCE", "maybe")
	c := Load()
	if c.StoreDriver != StoreMemory || c.LegacyPlanarDistance {
		t.Fatalf("unexpected: %+v", c)
	}
}
