package core

import "familycore/pkg/domain"

type (
	EntityType         = domain.EntityType
	ParentRole         = domain.ParentRole
	Severity           = domain.Severity
	AssetRef           = domain.AssetRef
	Family             = domain.Family
	Parent             = domain.Parent
	Child              = domain.Child
	Address            = domain.Address
	FamilyDetail       = domain.FamilyDetail
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	Report             = domain.Report
	Rule               = domain.Rule
	RulesEngine        = domain.RulesEngine
	RuleViolationError = domain.RuleViolationError
	ValidationError    = domain.ValidationError
	ConflictError      = domain.ConflictError
	AssetError         = domain.AssetError
)

const (
	EntityFamily  = domain.EntityFamily
	EntityParent  = domain.EntityParent
	EntityChild   = domain.EntityChild
	EntityAddress = domain.EntityAddress
)

const (
	RoleFather = domain.RoleFather
	RoleMother = domain.RoleMother
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

// NewRulesEngine constructs an empty rules engine.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewParentRoleCapacityRule())
	return engine
}
