package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"familycore/internal/blob"
)

func TestAssetStoreKeyLayout(t *testing.T) {
	ctx := context.Background()
	store := NewAssetStore(blob.NewMemory())
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	ref, err := store.Upload(ctx, AreaChildImages, "C1", ImageUpload{Data: strings.NewReader("img"), Ext: ".PNG"}, at)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if ref.Area != AreaChildImages {
		t.Fatalf("unexpected area %q", ref.Area)
	}
	want := "C1/C1-" + "1709287200000" + ".png"
	if ref.Key != want {
		t.Fatalf("key = %q, want %q", ref.Key, want)
	}

	// Missing extension defaults to jpg.
	ref2, err := store.Upload(ctx, AreaChildImages, "C1", ImageUpload{Data: strings.NewReader("img")}, at.Add(time.Millisecond))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasSuffix(ref2.Key, ".jpg") {
		t.Fatalf("expected jpg default, got %q", ref2.Key)
	}
}

func TestAssetStoreRemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewAssetStore(blob.NewMemory())
	ref := AssetRef{Area: AreaParentImages, Key: "F1/F1-1.jpg"}

	if err := store.Remove(ctx, ref); err != nil {
		t.Fatalf("remove of missing object should succeed: %v", err)
	}
}

func TestAssetStoreResolveURLFallsBackToReference(t *testing.T) {
	ctx := context.Background()
	store := NewAssetStore(blob.NewMemory())
	ref := AssetRef{Area: AreaParentImages, Key: "F1/F1-1.jpg"}

	// The memory driver cannot presign, so the deterministic reference is used.
	url, err := store.ResolveURL(ctx, ref)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if url != "parent-images/F1/F1-1.jpg" {
		t.Fatalf("unexpected fallback %q", url)
	}
}
