package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"familycore/internal/blob"
	"familycore/internal/infra/persistence/memory"
	"familycore/pkg/domain"

	"github.com/google/uuid"
)

// Service sequences validation, asset upload/removal, and row mutation into
// the family lifecycle workflows. There is no cross-store transaction between
// the relational rows and the object store; each workflow is an ordered list
// of steps with best-effort compensation where an asset would otherwise be
// orphaned silently.
type Service struct {
	store    PersistentStore
	assets   *AssetStore
	resolver *ReferenceResolver
	locks    *keyedLocks
	logger   Logger
	clock    Clock
	metrics  MetricsRecorder
	workers  int
}

// NewService constructs a service over the supplied stores.
func NewService(store PersistentStore, assets *AssetStore, opts ...ServiceOption) *Service {
	options := defaultServiceOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Service{
		store:    store,
		assets:   assets,
		resolver: NewReferenceResolver(store, options.external),
		locks:    newKeyedLocks(),
		logger:   options.logger,
		clock:    options.clock,
		metrics:  options.metrics,
		workers:  options.workers,
	}
}

// NewInMemoryService creates a service backed by in-memory stores with the
// given rules engine. Intended for tests and ephemeral environments.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(engine), NewAssetStore(blob.NewMemory()), opts...)
}

// Store returns the underlying persistence implementation.
func (s *Service) Store() PersistentStore { return s.store }

// Assets returns the underlying asset store adapter.
func (s *Service) Assets() *AssetStore { return s.assets }

// Resolver returns the read-only reference resolver.
func (s *Service) Resolver() *ReferenceResolver { return s.resolver }

// ParentInput carries the caller-supplied attributes of a parent row.
type ParentInput struct {
	ID         string
	Name       string
	Phone      string
	Birthplace string
	Birthdate  string
}

// ChildInput carries the caller-supplied attributes of a child row.
type ChildInput struct {
	ID                string
	Name              string
	Gender            string
	Birthdate         string
	Birthplace        string
	AgeYears          int
	AgeMonths         int
	BirthWeight       float64
	BirthHeight       float64
	HeadCircumference float64
}

// AddressInput carries the caller-supplied attributes of the address row.
type AddressInput struct {
	Province   string
	City       string
	District   string
	Village    string
	Street     string
	PostalCode string
}

// ParentPatch holds optional replacement values for a parent row. Nil fields
// are left untouched.
type ParentPatch struct {
	Name       *string
	Phone      *string
	Birthplace *string
	Birthdate  *string
}

// AddressPatch holds optional replacement values for the address row.
type AddressPatch struct {
	Province   *string
	City       *string
	District   *string
	Village    *string
	Street     *string
	PostalCode *string
}

// CreateFamily registers a new household: the family row, both parent rows,
// and the address row, in that order. Image uploads are best-effort; a failed
// upload leaves the parent without an image reference. If a row step fails
// after the family row was committed, assets uploaded by this call are
// removed again but the family row is intentionally retained; retries must
// re-check existence rather than assume rollback.
func (s *Service) CreateFamily(ctx context.Context, familyID string, father, mother ParentInput, address AddressInput, fatherImage, motherImage *ImageUpload) (err error) {
	defer s.observe(ctx, "create_family")(&err)
	release := s.locks.acquire(familyID)
	defer release()

	if _, exists := s.store.GetFamily(familyID); exists {
		return domain.ValidationError{Entity: EntityFamily, ID: familyID, Reason: "already exists"}
	}
	if _, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateFamily(Family{Base: domain.Base{ID: familyID}})
		return err
	}); err != nil {
		return fmt.Errorf("insert family %s: %w", familyID, err)
	}

	fatherRef := s.uploadBestEffort(ctx, AreaParentImages, father.ID, fatherImage)
	motherRef := s.uploadBestEffort(ctx, AreaParentImages, mother.ID, motherImage)

	if _, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, err := tx.CreateParent(newParent(father, familyID, RoleFather, fatherRef)); err != nil {
			return err
		}
		_, err := tx.CreateParent(newParent(mother, familyID, RoleMother, motherRef))
		return err
	}); err != nil {
		s.compensateUploads(ctx, fatherRef, motherRef)
		return fmt.Errorf("insert parents for family %s: %w", familyID, err)
	}

	if _, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateAddress(newAddress(address, familyID))
		return err
	}); err != nil {
		return fmt.Errorf("insert address for family %s: %w", familyID, err)
	}
	return nil
}

// AddChild registers a child under an existing family. Both preconditions,
// the family exists and the child ID is unused, are checked before any
// write, so a validation failure has no side effects.
func (s *Service) AddChild(ctx context.Context, familyID string, child ChildInput, image *ImageUpload) (err error) {
	defer s.observe(ctx, "add_child")(&err)
	release := s.locks.acquire(familyID)
	defer release()

	if _, exists := s.store.GetFamily(familyID); !exists {
		return domain.ValidationError{Entity: EntityFamily, ID: familyID, Reason: "not found"}
	}
	if _, exists := s.store.GetChild(child.ID); exists {
		return domain.ValidationError{Entity: EntityChild, ID: child.ID, Reason: "already exists"}
	}

	ref := s.uploadBestEffort(ctx, AreaChildImages, child.ID, image)
	if _, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateChild(newChild(child, familyID, ref))
		return err
	}); err != nil {
		s.compensateUploads(ctx, ref)
		return fmt.Errorf("insert child %s: %w", child.ID, err)
	}
	return nil
}

// UpdateFamily applies independent patches to the father, mother, and address
// rows. Image replacement is strictly upload-then-repoint-then-delete-old so
// a row never points at a removed asset. The parent sub-operations run
// concurrently; the address is updated last. The report lists the outcome of
// every sub-operation; a failure in one does not block the others.
func (s *Service) UpdateFamily(ctx context.Context, familyID string, fatherPatch, motherPatch *ParentPatch, addressPatch *AddressPatch, newFatherImage, newMotherImage *ImageUpload) (report Report, err error) {
	defer s.observe(ctx, "update_family")(&err)
	release := s.locks.acquire(familyID)
	defer release()

	report = Report{ID: uuid.NewString()}
	if _, exists := s.store.GetFamily(familyID); !exists {
		return report, domain.ValidationError{Entity: EntityFamily, ID: familyID, Reason: "not found"}
	}

	jobs := []func() []domain.StepOutcome{
		func() []domain.StepOutcome {
			return s.updateParent(ctx, familyID, RoleFather, fatherPatch, newFatherImage)
		},
		func() []domain.StepOutcome {
			return s.updateParent(ctx, familyID, RoleMother, motherPatch, newMotherImage)
		},
	}
	results := make([][]domain.StepOutcome, len(jobs))
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job func() []domain.StepOutcome) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = job()
		}(i, job)
	}
	wg.Wait()
	for _, outcomes := range results {
		report.Outcomes = append(report.Outcomes, outcomes...)
	}

	report.Outcomes = append(report.Outcomes, s.updateAddress(ctx, familyID, addressPatch)...)
	return report, nil
}

// updateParent performs one parent sub-operation of UpdateFamily.
func (s *Service) updateParent(ctx context.Context, familyID string, role ParentRole, patch *ParentPatch, newImage *ImageUpload) []domain.StepOutcome {
	step := "update_" + string(role)
	var rep Report
	if patch == nil && newImage == nil {
		rep.RecordSkipped(step)
		return rep.Outcomes
	}
	parent, ok := s.findParentByRole(familyID, role)
	if !ok {
		rep.RecordFailure(step, domain.ValidationError{Entity: EntityParent, ID: string(role), Reason: "no such parent in family " + familyID})
		return rep.Outcomes
	}

	var newRef *AssetRef
	if newImage != nil {
		ref, err := s.assets.Upload(ctx, AreaParentImages, parent.ID, *newImage, s.clock.Now())
		if err != nil {
			// Repointing a row at an asset that was never stored must not
			// happen, so a failed replacement upload fails the sub-operation.
			s.logger.Error("image upload failed", "person_id", parent.ID, "err", err)
			rep.RecordFailure(step, err)
			return rep.Outcomes
		}
		newRef = &ref
	}

	var oldRef *AssetRef
	if _, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateParent(parent.ID, func(p *Parent) error {
			applyParentPatch(p, patch)
			if newRef != nil {
				oldRef = p.ImageRef
				p.ImageRef = newRef
			}
			return nil
		})
		return err
	}); err != nil {
		if newRef != nil {
			s.compensateUploads(ctx, newRef)
		}
		rep.RecordFailure(step, err)
		return rep.Outcomes
	}
	rep.RecordOK(step)

	if newRef != nil && oldRef != nil {
		if err := s.assets.Remove(ctx, *oldRef); err != nil {
			// The row already points at the new asset; the superseded object
			// merely survives and is reported for manual remediation.
			s.logger.Warn("superseded image removal failed", "ref", oldRef.String(), "err", err)
			rep.RecordAssetFailure("remove_old_"+string(role)+"_image", *oldRef, err)
		} else {
			rep.RecordAssetOK("remove_old_"+string(role)+"_image", *oldRef)
		}
	}
	return rep.Outcomes
}

// updateAddress performs the address sub-operation of UpdateFamily.
func (s *Service) updateAddress(ctx context.Context, familyID string, patch *AddressPatch) []domain.StepOutcome {
	var rep Report
	if patch == nil {
		rep.RecordSkipped("update_address")
		return rep.Outcomes
	}
	if _, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateAddress(familyID, func(a *Address) error {
			applyAddressPatch(a, patch)
			return nil
		})
		return err
	}); err != nil {
		rep.RecordFailure("update_address", err)
		return rep.Outcomes
	}
	rep.RecordOK("update_address")
	return rep.Outcomes
}

// DeleteFamily removes a family and everything it owns. Discovery first: the
// resolver gathers all rows and asset references, including externally held
// ones. Asset removals then run in parallel and are individually best-effort.
// The row delete happens last, cascading parents, children, and the address
// in one transaction, so a successful return guarantees no row references the
// family. Orphaned assets can still remain; those are in the report.
func (s *Service) DeleteFamily(ctx context.Context, familyID string) (report Report, err error) {
	defer s.observe(ctx, "delete_family")(&err)
	release := s.locks.acquire(familyID)
	defer release()

	report = Report{ID: uuid.NewString()}
	refs, err := s.resolver.Collect(ctx, familyID)
	if err != nil {
		return report, err
	}
	for _, f := range refs.ExternalFailures {
		report.RecordFailure("resolve_external_refs_"+f.PersonID, f.Err)
	}

	outcomes := make([]domain.StepOutcome, len(refs.Assets))
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for i, ref := range refs.Assets {
		wg.Add(1)
		go func(i int, ref AssetRef) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			var rep Report
			if err := s.assets.Remove(ctx, ref); err != nil {
				s.logger.Warn("asset removal failed", "ref", ref.String(), "err", err)
				rep.RecordAssetFailure("remove_asset", ref, err)
			} else {
				rep.RecordAssetOK("remove_asset", ref)
			}
			outcomes[i] = rep.Outcomes[0]
		}(i, ref)
	}
	wg.Wait()
	report.Outcomes = append(report.Outcomes, outcomes...)

	if _, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteFamily(familyID)
	}); err != nil {
		return report, fmt.Errorf("delete family %s: %w", familyID, err)
	}
	return report, nil
}

// GetFamilyDetail assembles the full read model for one family.
func (s *Service) GetFamilyDetail(ctx context.Context, familyID string) (detail FamilyDetail, err error) {
	defer s.observe(ctx, "get_family_detail")(&err)
	return s.resolver.Detail(ctx, familyID, s.assets)
}

// RetireChild soft-retires a child record (active=false) without touching its
// rows or assets. Not part of the delete workflow.
func (s *Service) RetireChild(ctx context.Context, childID string) (err error) {
	defer s.observe(ctx, "retire_child")(&err)
	child, ok := s.store.GetChild(childID)
	if !ok {
		return domain.ValidationError{Entity: EntityChild, ID: childID, Reason: "not found"}
	}
	release := s.locks.acquire(child.FamilyID)
	defer release()

	if _, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateChild(childID, func(c *Child) error {
			c.Active = false
			return nil
		})
		return err
	}); err != nil {
		return fmt.Errorf("retire child %s: %w", childID, err)
	}
	return nil
}

// uploadBestEffort stores an image and returns its reference, or nil when no
// image was supplied or the upload failed. Failures are logged, not retried.
func (s *Service) uploadBestEffort(ctx context.Context, area, personID string, img *ImageUpload) *AssetRef {
	if img == nil {
		return nil
	}
	ref, err := s.assets.Upload(ctx, area, personID, *img, s.clock.Now())
	if err != nil {
		s.logger.Warn("image upload failed, continuing without reference", "person_id", personID, "area", area, "err", err)
		return nil
	}
	return &ref
}

// compensateUploads removes assets uploaded earlier in a workflow whose row
// step failed, so they don't linger unreferenced. Best-effort.
func (s *Service) compensateUploads(ctx context.Context, refs ...*AssetRef) {
	for _, ref := range refs {
		if ref == nil {
			continue
		}
		if err := s.assets.Remove(ctx, *ref); err != nil {
			s.logger.Warn("compensating asset removal failed", "ref", ref.String(), "err", err)
		}
	}
}

func (s *Service) findParentByRole(familyID string, role ParentRole) (Parent, bool) {
	for _, p := range s.store.ListParents(familyID) {
		if p.Role == role {
			return p, true
		}
	}
	return Parent{}, false
}

// observe returns a closure recording the operation outcome on completion.
func (s *Service) observe(ctx context.Context, operation string) func(*error) {
	start := time.Now()
	return func(err *error) {
		success := err == nil || *err == nil
		s.metrics.Observe(ctx, operation, success, time.Since(start))
		if !success {
			s.logger.Error("operation failed", "operation", operation, "err", *err)
		} else {
			s.logger.Debug("operation completed", "operation", operation)
		}
	}
}

func newParent(in ParentInput, familyID string, role ParentRole, ref *AssetRef) Parent {
	return Parent{
		Base:       domain.Base{ID: in.ID},
		FamilyID:   familyID,
		Role:       role,
		Name:       in.Name,
		Phone:      in.Phone,
		Birthplace: in.Birthplace,
		Birthdate:  in.Birthdate,
		ImageRef:   ref,
	}
}

func newChild(in ChildInput, familyID string, ref *AssetRef) Child {
	return Child{
		Base:              domain.Base{ID: in.ID},
		FamilyID:          familyID,
		Name:              in.Name,
		Gender:            in.Gender,
		Birthdate:         in.Birthdate,
		Birthplace:        in.Birthplace,
		AgeYears:          in.AgeYears,
		AgeMonths:         in.AgeMonths,
		BirthWeight:       in.BirthWeight,
		BirthHeight:       in.BirthHeight,
		HeadCircumference: in.HeadCircumference,
		Active:            true,
		ImageRef:          ref,
	}
}

func newAddress(in AddressInput, familyID string) Address {
	return Address{
		FamilyID:   familyID,
		Province:   in.Province,
		City:       in.City,
		District:   in.District,
		Village:    in.Village,
		Street:     in.Street,
		PostalCode: in.PostalCode,
	}
}

func applyParentPatch(p *Parent, patch *ParentPatch) {
	if patch == nil {
		return
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Phone != nil {
		p.Phone = *patch.Phone
	}
	if patch.Birthplace != nil {
		p.Birthplace = *patch.Birthplace
	}
	if patch.Birthdate != nil {
		p.Birthdate = *patch.Birthdate
	}
}

func applyAddressPatch(a *Address, patch *AddressPatch) {
	if patch == nil {
		return
	}
	if patch.Province != nil {
		a.Province = *patch.Province
	}
	if patch.City != nil {
		a.City = *patch.City
	}
	if patch.District != nil {
		a.District = *patch.District
	}
	if patch.Village != nil {
		a.Village = *patch.Village
	}
	if patch.Street != nil {
		a.Street = *patch.Street
	}
	if patch.PostalCode != nil {
		a.PostalCode = *patch.PostalCode
	}
}
