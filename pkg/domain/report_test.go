package domain

import (
	"errors"
	"testing"
)

func TestReportClassifiesOutcomes(t *testing.T) {
	var r Report
	r.RecordOK("insert_family")
	r.RecordSkipped("update_address")
	r.RecordFailure("insert_child", errors.New("boom"))
	ref := AssetRef{Area: "parent-images", Key: "F1/F1-1.jpg"}
	r.RecordAssetOK("remove_asset", ref)
	r.RecordAssetFailure("remove_asset", AssetRef{Area: "child-images", Key: "C1/C1-1.jpg"}, errors.New("denied"))

	if r.FullyConsistent() {
		t.Fatalf("report with failures claims consistency")
	}
	if got := len(r.Failed()); got != 2 {
		t.Fatalf("expected 2 failed steps, got %d", got)
	}
	orphans := r.OrphanedAssets()
	if len(orphans) != 1 || orphans[0].Area != "child-images" {
		t.Fatalf("unexpected orphans: %+v", orphans)
	}
}

func TestReportFullyConsistentWhenAllStepsSucceed(t *testing.T) {
	var r Report
	r.RecordOK("a")
	r.RecordSkipped("b")
	if !r.FullyConsistent() {
		t.Fatalf("skipped steps should not break consistency")
	}
	if r.OrphanedAssets() != nil {
		t.Fatalf("no orphans expected")
	}
}

func TestAssetErrorUnwraps(t *testing.T) {
	inner := errors.New("connection reset")
	err := AssetError{Op: "upload", Ref: AssetRef{Area: "parent-images", Key: "k"}, Err: inner}
	if !errors.Is(err, inner) {
		t.Fatalf("expected unwrap to inner error")
	}
	var ae AssetError
	if !errors.As(error(err), &ae) || ae.Op != "upload" {
		t.Fatalf("errors.As failed: %+v", ae)
	}
}
