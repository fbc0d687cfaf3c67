package s3

import (
	"context"
	"io"
	"strings"
	"testing"

	"familycore/internal/blob/core"
)

func TestMockBackedRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()

	info, err := store.Put(ctx, "child-images/C1/C1-1.jpg", strings.NewReader("image-bytes"), core.PutOptions{ContentType: "image/jpeg"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len("image-bytes")) {
		t.Fatalf("unexpected size: %+v", info)
	}

	// Create-only: the Head probe rejects an existing key.
	if _, err := store.Put(ctx, "child-images/C1/C1-1.jpg", strings.NewReader("other"), core.PutOptions{}); err == nil {
		t.Fatalf("expected create-only conflict")
	}

	got, rc, err := store.Get(ctx, "child-images/C1/C1-1.jpg")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "image-bytes" || got.ContentType != "image/jpeg" {
		t.Fatalf("round trip mismatch: %q %+v", body, got)
	}

	if _, err := store.Delete(ctx, "child-images/C1/C1-1.jpg"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Head(ctx, "child-images/C1/C1-1.jpg"); err == nil {
		t.Fatalf("expected head failure after delete")
	}
}

func TestMockBackedList(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()
	for _, key := range []string{"child-images/C1/a.jpg", "child-images/C2/b.jpg", "parent-images/F1/c.jpg"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	infos, err := store.List(ctx, "child-images/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "child-images/C1/a.jpg" || infos[1].Key != "child-images/C2/b.jpg" {
		t.Fatalf("unexpected listing: %+v", infos)
	}
}

func TestPresignURLGeneratesGetURL(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()

	url, err := store.PresignURL(ctx, "child-images/C1/a.jpg", core.SignedURLOptions{})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.Contains(url, "child-images/C1/a.jpg") {
		t.Fatalf("url missing key: %q", url)
	}

	if _, err := store.PresignURL(ctx, "k", core.SignedURLOptions{Method: "PUT"}); err == nil {
		t.Fatalf("expected unsupported method error")
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket requirement error")
	}
}

func TestOpenFromEnv(t *testing.T) {
	t.Setenv("FAMILYCORE_BLOB_S3_BUCKET", "")
	if _, err := OpenFromEnv(context.Background()); err == nil {
		t.Fatalf("expected error when bucket env is missing")
	}

	t.Setenv("FAMILYCORE_BLOB_S3_BUCKET", "families")
	t.Setenv("FAMILYCORE_BLOB_S3_ENDPOINT", "http://127.0.0.1:9000")
	t.Setenv("FAMILYCORE_BLOB_S3_PATH_STYLE", "true")
	store, err := OpenFromEnv(context.Background())
	if err != nil {
		t.Fatalf("OpenFromEnv: %v", err)
	}
	if store.Driver() != core.DriverS3 {
		t.Fatalf("unexpected driver %s", store.Driver())
	}
}
