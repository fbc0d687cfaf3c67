package core

import (
	"context"
	"errors"
	"testing"

	"familycore/pkg/domain"
)

func TestCollectMissingFamily(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Resolver().Collect(context.Background(), "nope")
	var ve domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCollectGathersAllReferences(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	mustCreateFamily(t, svc, "KK1", jpeg("f"), jpeg("m"))
	if err := svc.AddChild(ctx, "KK1", childInput("C1"), jpeg("c")); err != nil {
		t.Fatalf("add child: %v", err)
	}

	refs, err := svc.Resolver().Collect(ctx, "KK1")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if refs.Family.ID != "KK1" || len(refs.Parents) != 2 || len(refs.Children) != 1 {
		t.Fatalf("unexpected rows: %+v", refs)
	}
	if refs.Address == nil {
		t.Fatalf("address missing")
	}
	if len(refs.Assets) != 3 {
		t.Fatalf("expected 3 asset refs, got %+v", refs.Assets)
	}
}

func TestDetailResolvesImageURLs(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	mustCreateFamily(t, svc, "KK1", jpeg("f"), nil)

	detail, err := svc.GetFamilyDetail(ctx, "KK1")
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	// The memory driver has no presigning; the area-qualified key stands in.
	url, ok := detail.ImageURLs["F1"]
	if !ok || url == "" {
		t.Fatalf("expected resolvable URL for F1, got %+v", detail.ImageURLs)
	}
	if _, ok := detail.ImageURLs["M1"]; ok {
		t.Fatalf("mother has no image, URL map should omit her")
	}
}
