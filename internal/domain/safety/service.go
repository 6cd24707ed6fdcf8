package safety

import (
	"github.com/medichain/reasoner/internal/kb"
)

type Service struct {
	store *kb.Store
}

func NewService(store *kb.Store) *Service {
	return &Service{store: store}
}

// Validate checks one treatment against a patient profile. A treatment the
// knowledge base does not know is a *kb.UnknownTreatmentError, never an
// empty (and falsely reassuring) result. A nil profile validates a patient
// with no known attributes.
func (s *Service) Validate(treatmentID string, profile *PatientProfile) (*Result, error) {
	sn := s.store.Snapshot()
	return validateAgainst(sn, treatmentID, profile)
}

// ValidatePlan checks every treatment of one condition, in the condition's
// treatment order.
func (s *Service) ValidatePlan(conditionID string, profile *PatientProfile) (*PlanResponse, error) {
	return PlanAgainst(s.store.Snapshot(), conditionID, profile)
}

// PlanAgainst is ValidatePlan pinned to an explicit snapshot, for callers
// that compose several reads and must see one knowledge-base version
// throughout.
func PlanAgainst(sn *kb.Snapshot, conditionID string, profile *PatientProfile) (*PlanResponse, error) {
	cond := sn.Condition(conditionID)
	if cond == nil {
		return nil, &kb.InvalidQueryError{Parameter: "condition-id", Value: conditionID, Reason: "unknown condition"}
	}
	resp := &PlanResponse{ConditionID: cond.ID, KBVersion: sn.Version(), Results: []Result{}}
	for _, tr := range sn.TreatmentsFor(cond.ID) {
		res, err := validateAgainst(sn, tr.ID, profile)
		if err != nil {
			return nil, err
		}
		resp.Results = append(resp.Results, *res)
	}
	return resp, nil
}

// validateAgainst runs every safety rule of one treatment against the
// profile's derived attributes. Findings come back in deterministic order:
// rule class rank first, rule id second.
func validateAgainst(sn *kb.Snapshot, treatmentID string, profile *PatientProfile) (*Result, error) {
	tr := sn.Treatment(treatmentID)
	if tr == nil {
		return nil, &kb.UnknownTreatmentError{TreatmentID: treatmentID}
	}

	if profile == nil {
		profile = &PatientProfile{}
	}
	attrs := profile.Attributes()
	meds := profile.MedicationSet()

	var findings []Finding
	for _, rule := range tr.Contraindications {
		if !attrs[rule.Trigger] {
			continue
		}
		findings = append(findings, Finding{
			RuleID:      rule.ID,
			TreatmentID: tr.ID,
			Kind:        KindContraindication,
			Severity:    rule.Severity,
			Trigger:     rule.Trigger,
			Blocking:    rule.Severity == "absolute",
		})
	}
	for _, rule := range tr.Interactions {
		if !meds[rule.Medication] {
			continue
		}
		findings = append(findings, Finding{
			RuleID:      rule.ID,
			TreatmentID: tr.ID,
			Kind:        KindDrugInteraction,
			Severity:    rule.Severity,
			Trigger:     rule.Medication,
			Guidance:    rule.Guidance,
		})
	}
	for _, rule := range tr.DoseAdjustments {
		if !attrs[rule.Trigger] {
			continue
		}
		findings = append(findings, Finding{
			RuleID:      rule.ID,
			TreatmentID: tr.ID,
			Kind:        KindDoseAdjustment,
			Trigger:     rule.Trigger,
			Guidance:    rule.Note,
		})
	}
	sortFindings(findings)

	res := &Result{
		TreatmentID:   tr.ID,
		TreatmentName: tr.Name,
		Safe:          len(findings) == 0,
		Findings:      findings,
	}
	for _, f := range findings {
		if f.Blocking {
			res.Blocked = true
			break
		}
	}
	if res.Findings == nil {
		res.Findings = []Finding{}
	}
	return res, nil
}
