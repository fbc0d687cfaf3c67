// Package domain defines the persistent family-registry entities, value types,
// and rule evaluation primitives used by familycore.
package domain

import "time"

// EntityType identifies the type of record stored in the registry.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityFamily identifies a household record.
	EntityFamily EntityType = "family"
	// EntityParent identifies a parent member record.
	EntityParent EntityType = "parent"
	// EntityChild identifies a child member record.
	EntityChild EntityType = "child"
	// EntityAddress identifies a household address record.
	EntityAddress EntityType = "address"
)

// ParentRole distinguishes the two parent members of a family.
type ParentRole string

// Canonical parent roles. A family holds at most one of each.
const (
	RoleFather ParentRole = "father"
	RoleMother ParentRole = "mother"
)

// AssetRef is an opaque handle to a binary object held in a named storage
// area. The owning entity's ImageRef field is the only record of the tie;
// the object store itself has no knowledge of it.
type AssetRef struct {
	Area string `json:"area"`
	Key  string `json:"key"`
}

// String renders the reference as an area-qualified key, usable as a stable
// identifier in logs and reports.
func (r AssetRef) String() string { return r.Area + "/" + r.Key }

// Base carries identity and audit timestamps shared by person-keyed entities.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Family is the root entity representing a household, identified by its
// registration number. Parents, children, and the address reference it by ID
// and are removed with it.
type Family struct {
	Base
}

// Parent is an adult member of a family, identified by a national identity
// number.
type Parent struct {
	Base
	FamilyID   string     `json:"family_id"`
	Role       ParentRole `json:"role"`
	Name       string     `json:"name"`
	Phone      string     `json:"phone,omitempty"`
	Birthplace string     `json:"birthplace,omitempty"`
	Birthdate  string     `json:"birthdate,omitempty"`
	ImageRef   *AssetRef  `json:"image_ref,omitempty"`
}

// Child is a minor member of a family. The ID is globally unique across all
// children. Active=false retires the record without deleting it.
type Child struct {
	Base
	FamilyID          string    `json:"family_id"`
	Name              string    `json:"name"`
	Gender            string    `json:"gender,omitempty"`
	Birthdate         string    `json:"birthdate,omitempty"`
	Birthplace        string    `json:"birthplace,omitempty"`
	AgeYears          int       `json:"age_years,omitempty"`
	AgeMonths         int       `json:"age_months,omitempty"`
	BirthWeight       float64   `json:"birth_weight,omitempty"`
	BirthHeight       float64   `json:"birth_height,omitempty"`
	HeadCircumference float64   `json:"head_circumference,omitempty"`
	Active            bool      `json:"active"`
	ImageRef          *AssetRef `json:"image_ref,omitempty"`
}

// Address is the single household address, keyed by the owning family ID.
type Address struct {
	FamilyID   string    `json:"family_id"`
	Province   string    `json:"province,omitempty"`
	City       string    `json:"city,omitempty"`
	District   string    `json:"district,omitempty"`
	Village    string    `json:"village,omitempty"`
	Street     string    `json:"street,omitempty"`
	PostalCode string    `json:"postal_code,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FamilyDetail aggregates everything that belongs to one family for the read
// path. Image URLs are resolved best-effort and may be absent when the blob
// driver cannot produce one.
type FamilyDetail struct {
	Family    Family            `json:"family"`
	Father    *Parent           `json:"father,omitempty"`
	Mother    *Parent           `json:"mother,omitempty"`
	Children  []Child           `json:"children"`
	Address   *Address          `json:"address,omitempty"`
	ImageURLs map[string]string `json:"image_urls,omitempty"` // person ID -> resolvable URL
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported mutations captured for rule evaluation.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
