package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"familycore/pkg/domain"
)

func seedFamily(t *testing.T, store *Store, familyID string) {
	t.Helper()
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateFamily(Family{Base: domain.Base{ID: familyID}})
		return err
	}); err != nil {
		t.Fatalf("seed family %s: %v", familyID, err)
	}
}

func TestStoreFamilyLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return fixed })

	seedFamily(t, store, "KK1")
	family, ok := store.GetFamily("KK1")
	if !ok {
		t.Fatalf("family not stored")
	}
	if !family.CreatedAt.Equal(fixed) || !family.UpdatedAt.Equal(fixed) {
		t.Fatalf("timestamps not set: %+v", family)
	}

	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateFamily(Family{Base: domain.Base{ID: "KK1"}})
		return err
	})
	var ce domain.ConflictError
	if !errors.As(err, &ce) || ce.Entity != domain.EntityFamily {
		t.Fatalf("expected family conflict, got %v", err)
	}

	_, err = store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateFamily(Family{})
		return err
	})
	var ve domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for empty ID, got %v", err)
	}
}

func TestStoreForeignKeysAndUniqueness(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	seedFamily(t, store, "KK1")

	// Parent pointing at an unknown family is rejected with the family named.
	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateParent(Parent{Base: domain.Base{ID: "F1"}, FamilyID: "nope", Role: domain.RoleFather})
		return err
	})
	var ce domain.ConflictError
	if !errors.As(err, &ce) || ce.Entity != domain.EntityFamily || ce.ID != "nope" {
		t.Fatalf("expected family conflict, got %v", err)
	}

	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, err := tx.CreateParent(Parent{Base: domain.Base{ID: "F1"}, FamilyID: "KK1", Role: domain.RoleFather}); err != nil {
			return err
		}
		_, err := tx.CreateChild(Child{Base: domain.Base{ID: "C1"}, FamilyID: "KK1", Active: true})
		return err
	}); err != nil {
		t.Fatalf("create members: %v", err)
	}

	// Duplicate identity numbers are store-authoritative conflicts.
	_, err = store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateChild(Child{Base: domain.Base{ID: "C1"}, FamilyID: "KK1"})
		return err
	})
	if !errors.As(err, &ce) || ce.Entity != domain.EntityChild {
		t.Fatalf("expected child conflict, got %v", err)
	}

	// One address per family.
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateAddress(Address{FamilyID: "KK1", City: "Bandung"})
		return err
	}); err != nil {
		t.Fatalf("create address: %v", err)
	}
	_, err = store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateAddress(Address{FamilyID: "KK1", City: "Jakarta"})
		return err
	})
	if !errors.As(err, &ce) || ce.Entity != domain.EntityAddress {
		t.Fatalf("expected address conflict, got %v", err)
	}
}

func TestDeleteFamilyCascadesAllRows(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	seedFamily(t, store, "KK1")
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, err := tx.CreateParent(Parent{Base: domain.Base{ID: "F1"}, FamilyID: "KK1", Role: domain.RoleFather}); err != nil {
			return err
		}
		if _, err := tx.CreateParent(Parent{Base: domain.Base{ID: "M1"}, FamilyID: "KK1", Role: domain.RoleMother}); err != nil {
			return err
		}
		if _, err := tx.CreateChild(Child{Base: domain.Base{ID: "C1"}, FamilyID: "KK1", Active: true}); err != nil {
			return err
		}
		_, err := tx.CreateAddress(Address{FamilyID: "KK1"})
		return err
	}); err != nil {
		t.Fatalf("seed members: %v", err)
	}

	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteFamily("KK1")
	}); err != nil {
		t.Fatalf("delete family: %v", err)
	}
	if len(store.ListParents("")) != 0 || len(store.ListChildren("")) != 0 {
		t.Fatalf("cascade left rows behind")
	}
	if _, ok := store.GetAddress("KK1"); ok {
		t.Fatalf("address survived cascade")
	}

	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteFamily("KK1")
	})
	var ve domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for repeat delete, got %v", err)
	}
}

func TestFailedTransactionLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	seedFamily(t, store, "KK1")

	boom := errors.New("boom")
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, err := tx.CreateChild(Child{Base: domain.Base{ID: "C1"}, FamilyID: "KK1"}); err != nil {
			return err
		}
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if _, ok := store.GetChild("C1"); ok {
		t.Fatalf("aborted transaction leaked state")
	}
}

type rejectRule struct{ entity domain.EntityType }

func (r rejectRule) Name() string { return "reject_" + string(r.entity) }

func (r rejectRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	for _, ch := range changes {
		if ch.Entity == r.entity && ch.Action == domain.ActionCreate {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  "creation rejected",
			})
		}
	}
	return res, nil
}

func TestBlockingRuleAbortsCommit(t *testing.T) {
	ctx := context.Background()
	engine := domain.NewRulesEngine()
	engine.Register(rejectRule{entity: domain.EntityChild})
	store := NewStore(engine)
	seedFamily(t, store, "KK1")

	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateChild(Child{Base: domain.Base{ID: "C1"}, FamilyID: "KK1"})
		return err
	})
	var rve domain.RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("expected rule violation error, got %v", err)
	}
	if _, ok := store.GetChild("C1"); ok {
		t.Fatalf("blocked change was committed")
	}
}

func TestUpdateMutatorsPreserveIdentity(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	seedFamily(t, store, "KK1")
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateParent(Parent{Base: domain.Base{ID: "F1"}, FamilyID: "KK1", Role: domain.RoleFather, Name: "Budi"})
		return err
	}); err != nil {
		t.Fatalf("create parent: %v", err)
	}

	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateParent("F1", func(p *Parent) error {
			p.ID = "tampered"
			p.Name = "Renamed"
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("update parent: %v", err)
	}
	parent, ok := store.GetParent("F1")
	if !ok || parent.Name != "Renamed" {
		t.Fatalf("update lost: %+v", parent)
	}
}

func TestSnapshotRoundTripPreservesImageRefs(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	seedFamily(t, store, "KK1")
	ref := domain.AssetRef{Area: "parent-images", Key: "F1/F1-1.jpg"}
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateParent(Parent{Base: domain.Base{ID: "F1"}, FamilyID: "KK1", Role: domain.RoleFather, ImageRef: &ref})
		return err
	}); err != nil {
		t.Fatalf("create parent: %v", err)
	}

	restored := NewStore(nil)
	restored.ImportState(store.ExportState())
	parent, ok := restored.GetParent("F1")
	if !ok || parent.ImageRef == nil || parent.ImageRef.Key != ref.Key {
		t.Fatalf("image ref lost in round trip: %+v", parent)
	}

	// The restored ref must be an independent copy.
	parent.ImageRef.Key = "mutated"
	again, _ := restored.GetParent("F1")
	if again.ImageRef.Key != ref.Key {
		t.Fatalf("stored state shares pointers with reads")
	}
}
