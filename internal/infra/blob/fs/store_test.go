package fs

import (
	"context"
	"io"
	"strings"
	"testing"

	"familycore/internal/blob/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestPutGetHeadDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	info, err := store.Put(ctx, "parent-images/F1/F1-1.jpg", strings.NewReader("payload"), core.PutOptions{ContentType: "image/jpeg"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.ETag == "" || info.Size != int64(len("payload")) {
		t.Fatalf("unexpected info: %+v", info)
	}

	head, err := store.Head(ctx, "parent-images/F1/F1-1.jpg")
	if err != nil || head.ContentType != "image/jpeg" {
		t.Fatalf("head: %+v %v", head, err)
	}

	_, rc, err := store.Get(ctx, "parent-images/F1/F1-1.jpg")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "payload" {
		t.Fatalf("content mismatch: %q", body)
	}

	if _, err := store.Put(ctx, "parent-images/F1/F1-1.jpg", strings.NewReader("other"), core.PutOptions{}); err == nil {
		t.Fatalf("expected create-only conflict")
	}

	existed, err := store.Delete(ctx, "parent-images/F1/F1-1.jpg")
	if err != nil || !existed {
		t.Fatalf("delete: existed=%v err=%v", existed, err)
	}
	existed, _ = store.Delete(ctx, "parent-images/F1/F1-1.jpg")
	if existed {
		t.Fatalf("second delete should report absence")
	}
}

func TestKeySanitization(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, key := range []string{"", "../escape", "/absolute", "a/../../b"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err == nil {
			t.Fatalf("expected rejection of key %q", key)
		}
	}
}

func TestListByPrefix(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	for _, key := range []string{"child-images/C1/a.jpg", "parent-images/F1/b.jpg"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	infos, err := store.List(ctx, "child-images/")
	if err != nil || len(infos) != 1 || infos[0].Key != "child-images/C1/a.jpg" {
		t.Fatalf("unexpected listing: %+v %v", infos, err)
	}
}

func TestPresignURLIsLocal(t *testing.T) {
	store := newTestStore(t)
	url, err := store.PresignURL(context.Background(), "parent-images/F1/x.jpg", core.SignedURLOptions{})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.HasPrefix(url, "http://local.blob/") {
		t.Fatalf("unexpected url %q", url)
	}
	if _, err := store.PresignURL(context.Background(), "k", core.SignedURLOptions{Method: "PUT"}); err == nil {
		t.Fatalf("expected unsupported method error")
	}
}
