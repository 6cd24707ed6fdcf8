package safety

import (
	"sort"
	"strings"

	"github.com/medichain/reasoner/internal/kb"
)

// PatientProfile is the caller-supplied patient context a treatment is
// checked against.
type PatientProfile struct {
	Age               int      `json:"age,omitempty"`
	Pregnant          bool     `json:"pregnant,omitempty"`
	Conditions        []string `json:"conditions,omitempty"`
	Allergies         []string `json:"allergies,omitempty"`
	Medications       []string `json:"medications,omitempty"`
	RenalImpairment   bool     `json:"renal_impairment,omitempty"`
	HepaticImpairment bool     `json:"hepatic_impairment,omitempty"`
}

// Attributes derives the trigger set the safety rules match against.
// Conditions pass through verbatim, allergies gain an "-allergy" suffix,
// and the structured fields map to their canonical trigger tokens.
func (p *PatientProfile) Attributes() map[string]bool {
	attrs := make(map[string]bool)
	for _, c := range p.Conditions {
		if id := normalizeToken(c); id != "" {
			attrs[id] = true
		}
	}
	for _, a := range p.Allergies {
		id := normalizeToken(a)
		if id == "" {
			continue
		}
		if !strings.HasSuffix(id, "-allergy") {
			id += "-allergy"
		}
		attrs[id] = true
	}
	if p.Age > 0 && p.Age < 18 {
		attrs["age-under-18"] = true
	}
	if p.Age > 65 {
		attrs["age-over-65"] = true
	}
	if p.Pregnant {
		attrs["pregnancy"] = true
	}
	if p.RenalImpairment {
		attrs["kidney-disease"] = true
	}
	if p.HepaticImpairment {
		attrs["liver-disease"] = true
	}
	return attrs
}

// MedicationSet returns the normalized current medications.
func (p *PatientProfile) MedicationSet() map[string]bool {
	meds := make(map[string]bool)
	for _, m := range p.Medications {
		if id := normalizeToken(m); id != "" {
			meds[id] = true
		}
	}
	return meds
}

func normalizeToken(raw string) string {
	id := strings.ToLower(strings.TrimSpace(raw))
	id = strings.ReplaceAll(id, "_", "-")
	id = strings.Join(strings.Fields(id), "-")
	if !kb.ValidIdentifier(id) {
		return ""
	}
	return id
}

// Finding kinds.
const (
	KindContraindication = "contraindication"
	KindDrugInteraction  = "drug-interaction"
	KindDoseAdjustment   = "dose-adjustment"
)

// Finding is one triggered safety rule.
type Finding struct {
	RuleID      string `json:"rule_id"`
	TreatmentID string `json:"treatment_id"`
	Kind        string `json:"kind"`
	Severity    string `json:"severity,omitempty"`
	Trigger     string `json:"trigger"`
	Guidance    string `json:"guidance,omitempty"`

	// Blocking is true only for absolute contraindications.
	Blocking bool `json:"blocking"`
}

// rank orders findings for deterministic output: absolute contraindications
// first, then cautions, interactions by severity, dose adjustments last.
func (f Finding) rank() int {
	switch f.Kind {
	case KindContraindication:
		if f.Severity == "absolute" {
			return 0
		}
		return 1
	case KindDrugInteraction:
		switch f.Severity {
		case "major":
			return 2
		case "moderate":
			return 3
		default:
			return 4
		}
	}
	return 5
}

func sortFindings(findings []Finding) {
	sort.Slice(findings, func(i, j int) bool {
		if ri, rj := findings[i].rank(), findings[j].rank(); ri != rj {
			return ri < rj
		}
		return findings[i].RuleID < findings[j].RuleID
	})
}

// Result is the verdict for one treatment. Safe means no findings at all;
// Blocked means at least one absolute contraindication fired. A treatment
// can be neither: cautions and interactions warn without blocking.
type Result struct {
	TreatmentID   string    `json:"treatment_id"`
	TreatmentName string    `json:"treatment_name"`
	Safe          bool      `json:"safe"`
	Blocked       bool      `json:"blocked"`
	Findings      []Finding `json:"findings"`
}

// ValidateRequest is the body of the validation endpoints.
type ValidateRequest struct {
	Profile PatientProfile `json:"profile"`
}

// PlanResponse is the verdict for every treatment of one condition.
type PlanResponse struct {
	ConditionID string   `json:"condition_id"`
	KBVersion   string   `json:"kb_version"`
	Results     []Result `json:"results"`
}
