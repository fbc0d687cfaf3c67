package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"familycore/pkg/domain"
)

func TestStorePersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "familycore.db")

	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ref := domain.AssetRef{Area: "parent-images", Key: "F1/F1-1.jpg"}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.CreateFamily(domain.Family{Base: domain.Base{ID: "KK1"}}); err != nil {
			return err
		}
		if _, err := tx.CreateParent(domain.Parent{Base: domain.Base{ID: "F1"}, FamilyID: "KK1", Role: domain.RoleFather, ImageRef: &ref}); err != nil {
			return err
		}
		_, err := tx.CreateAddress(domain.Address{FamilyID: "KK1", City: "Bandung"})
		return err
	}); err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
	if err := store.DB().Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, ok := reopened.GetFamily("KK1"); !ok {
		t.Fatalf("family lost across reopen")
	}
	parent, ok := reopened.GetParent("F1")
	if !ok || parent.ImageRef == nil || parent.ImageRef.Key != ref.Key {
		t.Fatalf("parent image ref lost: %+v", parent)
	}
	if addr, ok := reopened.GetAddress("KK1"); !ok || addr.City != "Bandung" {
		t.Fatalf("address lost: %+v", addr)
	}
}

func TestStoreDoesNotPersistFailedTransactions(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "familycore.db")

	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateFamily(domain.Family{})
		return err
	}); err == nil {
		t.Fatalf("expected validation failure")
	}
	if err := store.DB().Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if families := reopened.ListFamilies(); len(families) != 0 {
		t.Fatalf("failed transaction was persisted: %+v", families)
	}
}

func TestStoreDefaultsPath(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "nested", "db", "fam.db"), domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore with nested dirs: %v", err)
	}
	if store.Path() == "" {
		t.Fatalf("expected configured path")
	}
	_ = store.DB().Close()
}
