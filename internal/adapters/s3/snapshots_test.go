package s3ad_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"

	s3ad "coffeemap/internal/adapters/s3"
)

type fakeStore struct {
	buckets map[string]bool
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{buckets: map[string]bool{}, objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeStore) BucketExists(_ context.Context, b string) (bool, error) { return f.buckets[b], nil }

func (f *fakeStore) MakeBucket(_ context.Context, b string, _ minio.MakeBucketOptions) error {
	f.buckets[b] = true
	return nil
}

func (f *fakeStore) PutObject(_ context.Context, b, k string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.objects[b+"/"+k] = body
	f.types[b+"/"+k] = opts.ContentType
	return minio.UploadInfo{Bucket: b, Key: k, Size: size}, nil
}

func TestExporter_CreatesBucketAndStores(t *testing.T) {
	fs := newFakeStore()
	e := s3ad.NewWithClient(fs, "coffeemap")

	body := []byte(`{"type":"FeatureCollection","features":[]}`)
	if err := e.PutSnapshot(context.Background(), "snapshots/coffee_shops.geojson", body); err != nil {
		t.Fatalf("put: %v", err)
	}
	if !fs.buckets["coffeemap"] {
		t.Fatalf("bucket not created")
	}
	key := "coffeemap/snapshots/coffee_shops.geojson"
	if string(fs.objects[key]) != string(body) {
		t.Fatalf("stored body mismatch: %s", fs.objects[key])
	}
	if fs.types[key] != "application/geo+json" {
		t.Fatalf("content type: %q", fs.types[key])
	}
}

func TestExporter_PutError(t *testing.T) {
	fs := newFakeStore()
	fs.putErr = errors.New("denied")
	e := s3ad.NewWithClient(fs, "coffeemap")
	if err := e.PutSnapshot(context.Background(), "k", []byte("{}")); !errors.Is(err, fs.putErr) {
		t.Fatalf("expected wrapped put error, got %v", err)
	}
}

func TestNew_RequiresCredentials(t *testing.T) {
	if _, err := s3ad.New("", "", "", false, "b"); err == nil {
		t.Fatalf("expected error without endpoint")
	}
}
