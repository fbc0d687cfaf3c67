package domain

import "fmt"

// StepStatus classifies the outcome of one sub-operation inside a composite
// workflow.
type StepStatus string

// Canonical step statuses recorded in workflow reports.
const (
	StepOK      StepStatus = "ok"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// StepOutcome records the result of a single sub-operation. Asset is set for
// object-store steps so callers can identify the exact orphaned object.
type StepOutcome struct {
	Name   string     `json:"name"`
	Status StepStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
	Asset  *AssetRef  `json:"asset,omitempty"`
}

// Report is the composite result of a workflow whose sub-operations fail
// independently (UpdateFamily, DeleteFamily). It lets callers distinguish
// "fully consistent" from "mostly done" and enumerate what needs manual
// remediation.
type Report struct {
	ID       string        `json:"id"`
	Outcomes []StepOutcome `json:"outcomes"`
}

// RecordOK appends a successful step.
func (r *Report) RecordOK(name string) {
	r.Outcomes = append(r.Outcomes, StepOutcome{Name: name, Status: StepOK})
}

// RecordSkipped appends a step that was not attempted.
func (r *Report) RecordSkipped(name string) {
	r.Outcomes = append(r.Outcomes, StepOutcome{Name: name, Status: StepSkipped})
}

// RecordFailure appends a failed step.
func (r *Report) RecordFailure(name string, err error) {
	r.Outcomes = append(r.Outcomes, StepOutcome{Name: name, Status: StepFailed, Error: fmt.Sprint(err)})
}

// RecordAssetOK appends a successful object-store step with its reference.
func (r *Report) RecordAssetOK(name string, ref AssetRef) {
	refCopy := ref
	r.Outcomes = append(r.Outcomes, StepOutcome{Name: name, Status: StepOK, Asset: &refCopy})
}

// RecordAssetFailure appends a failed object-store step with the orphaned reference.
func (r *Report) RecordAssetFailure(name string, ref AssetRef, err error) {
	refCopy := ref
	r.Outcomes = append(r.Outcomes, StepOutcome{Name: name, Status: StepFailed, Error: fmt.Sprint(err), Asset: &refCopy})
}

// Failed returns the outcomes that did not succeed.
func (r Report) Failed() []StepOutcome {
	var out []StepOutcome
	for _, o := range r.Outcomes {
		if o.Status == StepFailed {
			out = append(out, o)
		}
	}
	return out
}

// OrphanedAssets lists object references whose removal failed.
func (r Report) OrphanedAssets() []AssetRef {
	var out []AssetRef
	for _, o := range r.Outcomes {
		if o.Status == StepFailed && o.Asset != nil {
			out = append(out, *o.Asset)
		}
	}
	return out
}

// FullyConsistent reports whether every attempted step succeeded.
func (r Report) FullyConsistent() bool {
	return len(r.Failed()) == 0
}
