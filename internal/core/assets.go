package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"familycore/internal/blob"
	"familycore/pkg/domain"
)

// Storage areas for member images. Areas are key prefixes within the
// configured blob store, so one bucket serves both.
const (
	AreaParentImages = "parent-images"
	AreaChildImages  = "child-images"
)

// ImageUpload carries the payload of a member image to be stored.
type ImageUpload struct {
	Data        io.Reader
	Ext         string // file extension without dot; defaults to jpg
	ContentType string
}

// AssetStore adapts the blob store to area-addressed image assets. It owns
// key derivation and reference resolution, nothing else.
type AssetStore struct {
	blobs blob.Store
}

// NewAssetStore wraps a blob store.
func NewAssetStore(store blob.Store) *AssetStore {
	return &AssetStore{blobs: store}
}

// Blobs exposes the underlying blob store for integration points.
func (a *AssetStore) Blobs() blob.Store { return a.blobs }

// Upload stores an image under a key derived from the owning person's ID and
// the supplied timestamp: {personID}/{personID}-{timestamp}.{ext}. Timestamps
// make repeated uploads for the same person collision-free.
func (a *AssetStore) Upload(ctx context.Context, area, personID string, img ImageUpload, at time.Time) (domain.AssetRef, error) {
	ext := strings.TrimPrefix(strings.ToLower(img.Ext), ".")
	if ext == "" {
		ext = "jpg"
	}
	ref := domain.AssetRef{
		Area: area,
		Key:  fmt.Sprintf("%s/%s-%d.%s", personID, personID, at.UnixMilli(), ext),
	}
	opts := blob.PutOptions{ContentType: img.ContentType, Metadata: map[string]string{"person_id": personID}}
	if _, err := a.blobs.Put(ctx, objectKey(ref), img.Data, opts); err != nil {
		return domain.AssetRef{}, domain.AssetError{Op: "upload", Ref: ref, Err: err}
	}
	return ref, nil
}

// Remove deletes the object behind ref. A missing object is not an error;
// deletes are idempotent.
func (a *AssetStore) Remove(ctx context.Context, ref domain.AssetRef) error {
	if _, err := a.blobs.Delete(ctx, objectKey(ref)); err != nil {
		return domain.AssetError{Op: "remove", Ref: ref, Err: err}
	}
	return nil
}

// ResolveURL produces a fetchable reference for ref: a presigned URL when the
// driver supports it, otherwise the deterministic area-qualified key.
func (a *AssetStore) ResolveURL(ctx context.Context, ref domain.AssetRef) (string, error) {
	url, err := a.blobs.PresignURL(ctx, objectKey(ref), blob.SignedURLOptions{})
	if errors.Is(err, blob.ErrUnsupported) {
		return ref.String(), nil
	}
	if err != nil {
		return "", err
	}
	return url, nil
}

func objectKey(ref domain.AssetRef) string {
	return ref.Area + "/" + ref.Key
}
