package core

import (
	"context"
	"fmt"

	"familycore/pkg/domain"
)

// ExternalAssetSource reports additional asset references tied to a person
// identity but held by collaborators outside this subsystem (growth analysis
// records and the like). Only the references are needed here.
type ExternalAssetSource interface {
	AssetRefsForPerson(ctx context.Context, personID string) ([]domain.AssetRef, error)
}

// ExternalFailure records a person whose external references could not be
// enumerated during discovery.
type ExternalFailure struct {
	PersonID string
	Err      error
}

// FamilyRefs is the complete set of rows and asset references transitively
// owned by one family, as gathered by the resolver.
type FamilyRefs struct {
	Family           Family
	Parents          []Parent
	Children         []Child
	Address          *Address
	Assets           []AssetRef
	ExternalFailures []ExternalFailure
}

// ReferenceResolver gathers every row and asset reference belonging to a
// family. It is read-only; delete and the detail view build on it.
type ReferenceResolver struct {
	store    PersistentStore
	external ExternalAssetSource
}

// NewReferenceResolver constructs a resolver over the given store. external
// may be nil.
func NewReferenceResolver(store PersistentStore, external ExternalAssetSource) *ReferenceResolver {
	return &ReferenceResolver{store: store, external: external}
}

// Collect walks everything owned by familyID. External source failures are
// non-fatal and reported per person so the caller can surface them.
func (r *ReferenceResolver) Collect(ctx context.Context, familyID string) (FamilyRefs, error) {
	var refs FamilyRefs
	err := r.store.View(ctx, func(view TransactionView) error {
		family, ok := view.FindFamily(familyID)
		if !ok {
			return domain.ValidationError{Entity: domain.EntityFamily, ID: familyID, Reason: "not found"}
		}
		refs.Family = family
		refs.Parents = view.ListParents(familyID)
		refs.Children = view.ListChildren(familyID)
		if addr, ok := view.FindAddress(familyID); ok {
			addrCopy := addr
			refs.Address = &addrCopy
		}
		return nil
	})
	if err != nil {
		return FamilyRefs{}, err
	}
	for _, p := range refs.Parents {
		if p.ImageRef != nil {
			refs.Assets = append(refs.Assets, *p.ImageRef)
		}
	}
	for _, c := range refs.Children {
		if c.ImageRef != nil {
			refs.Assets = append(refs.Assets, *c.ImageRef)
		}
	}
	// Image assets are tied to person identity, not family identity, so
	// external collaborators are consulted per child.
	if r.external != nil {
		for _, c := range refs.Children {
			extRefs, err := r.external.AssetRefsForPerson(ctx, c.ID)
			if err != nil {
				refs.ExternalFailures = append(refs.ExternalFailures, ExternalFailure{PersonID: c.ID, Err: err})
				continue
			}
			refs.Assets = append(refs.Assets, extRefs...)
		}
	}
	return refs, nil
}

// Detail assembles the read model for one family. Image URL resolution is
// best-effort; a person without a resolvable URL is simply absent from the map.
func (r *ReferenceResolver) Detail(ctx context.Context, familyID string, assets *AssetStore) (FamilyDetail, error) {
	refs, err := r.Collect(ctx, familyID)
	if err != nil {
		return FamilyDetail{}, err
	}
	detail := FamilyDetail{
		Family:   refs.Family,
		Children: refs.Children,
		Address:  refs.Address,
	}
	for i := range refs.Parents {
		p := refs.Parents[i]
		switch p.Role {
		case RoleFather:
			detail.Father = &p
		case RoleMother:
			detail.Mother = &p
		}
	}
	if assets == nil {
		return detail, nil
	}
	urls := make(map[string]string)
	addURL := func(personID string, ref *AssetRef) {
		if ref == nil {
			return
		}
		url, err := assets.ResolveURL(ctx, *ref)
		if err != nil || url == "" {
			return
		}
		urls[personID] = url
	}
	for _, p := range refs.Parents {
		addURL(p.ID, p.ImageRef)
	}
	for _, c := range refs.Children {
		addURL(c.ID, c.ImageRef)
	}
	if len(urls) > 0 {
		detail.ImageURLs = urls
	}
	return detail, nil
}

func (f ExternalFailure) String() string {
	return fmt.Sprintf("external refs for %s: %v", f.PersonID, f.Err)
}
