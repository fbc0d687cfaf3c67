package domain

import "context"

// Transaction exposes the registry operations that a persistence
// implementation must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateFamily(Family) (Family, error)
	DeleteFamily(id string) error
	CreateParent(Parent) (Parent, error)
	UpdateParent(id string, mutator func(*Parent) error) (Parent, error)
	DeleteParent(id string) error
	CreateChild(Child) (Child, error)
	UpdateChild(id string, mutator func(*Child) error) (Child, error)
	DeleteChild(id string) error
	CreateAddress(Address) (Address, error)
	UpdateAddress(familyID string, mutator func(*Address) error) (Address, error)
	DeleteAddress(familyID string) error
	FindFamily(id string) (Family, bool)
	FindParent(id string) (Parent, bool)
	FindChild(id string) (Child, bool)
}

// TransactionView provides read-only access to snapshot data for rules and
// the read path.
type TransactionView interface {
	ListFamilies() []Family
	ListParents(familyID string) []Parent
	ListChildren(familyID string) []Child
	FindFamily(id string) (Family, bool)
	FindParent(id string) (Parent, bool)
	FindChild(id string) (Child, bool)
	FindAddress(familyID string) (Address, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetFamily(id string) (Family, bool)
	ListFamilies() []Family
	GetParent(id string) (Parent, bool)
	ListParents(familyID string) []Parent
	GetChild(id string) (Child, bool)
	ListChildren(familyID string) []Child
	GetAddress(familyID string) (Address, bool)
}
