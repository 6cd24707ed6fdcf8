package reasoning

import (
	"github.com/medichain/reasoner/internal/domain/safety"
	"github.com/medichain/reasoner/internal/kb"
)

// Step kinds, in the order they appear in a chain.
const (
	StepSymptomOverlap = "symptom-overlap"
	StepRedFlags       = "red-flags"
	StepUrgency        = "urgency"
	StepDifferentials  = "differentials"
	StepTreatments     = "treatments"
	StepSafety         = "safety"
)

// Step is one link of a reasoning chain. Every claim the summary makes is
// backed by the cited facts, each of which exists verbatim in the snapshot
// the chain was built from.
type Step struct {
	Kind      string    `json:"kind"`
	Summary   string    `json:"summary"`
	Citations []kb.Fact `json:"citations,omitempty"`
}

// Chain explains why a condition fits a symptom report. KBVersion pins the
// snapshot every citation resolves against.
type Chain struct {
	KBVersion   string   `json:"kb_version"`
	ConditionID string   `json:"condition_id"`
	Condition   string   `json:"condition"`
	Symptoms    []string `json:"symptoms"`
	Steps       []Step   `json:"steps"`

	// Safety carries per-treatment verdicts when the chain was built with
	// a patient profile.
	Safety *safety.PlanResponse `json:"safety,omitempty"`
}

// ExplainRequest is the body of the explain endpoints.
type ExplainRequest struct {
	ConditionID string                 `json:"condition_id"`
	Symptoms    []string               `json:"symptoms"`
	Profile     *safety.PatientProfile `json:"profile,omitempty"`
}
