package core

import (
	"context"
	"fmt"

	"familycore/pkg/domain"
)

// NewParentRoleCapacityRule returns the in-transaction rule enforcing that a
// family holds at most one father and one mother.
func NewParentRoleCapacityRule() domain.Rule {
	return parentRoleCapacityRule{}
}

type parentRoleCapacityRule struct{}

func (parentRoleCapacityRule) Name() string { return "parent_role_capacity" }

func (parentRoleCapacityRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, family := range view.ListFamilies() {
		counts := make(map[domain.ParentRole]int, 2)
		for _, parent := range view.ListParents(family.ID) {
			counts[parent.Role]++
		}
		for role, count := range counts {
			if count > 1 {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     "parent_role_capacity",
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("family %s has %d parents with role %s", family.ID, count, role),
					Entity:   domain.EntityFamily,
					EntityID: family.ID,
				})
			}
		}
	}
	return res, nil
}
