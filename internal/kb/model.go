package kb

// Condition is the typed projection of every condition-subject fact in the
// graph. Built once at load, immutable afterwards.
type Condition struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Severity SeverityTier `json:"severity"`

	// Symptoms and RedFlags are membership sets; SymptomList and
	// RedFlagList are the same identifiers in sorted order for
	// deterministic iteration.
	Symptoms    map[string]bool `json:"-"`
	RedFlags    map[string]bool `json:"-"`
	SymptomList []string        `json:"symptoms"`
	RedFlagList []string        `json:"red_flags"`

	DifferentialFrom []string `json:"differential_from,omitempty"`

	TimeSensitive      bool `json:"time_sensitive"`
	TimeSensitiveHours int  `json:"time_sensitive_hours,omitempty"`

	Evidence []string `json:"evidence,omitempty"`

	TreatmentIDs []string `json:"treatments,omitempty"`
}

// ContraindicationRule blocks or cautions against a treatment when the
// trigger attribute is present in a patient profile.
type ContraindicationRule struct {
	ID          string `json:"id"` // "<treatment>:contraindication:<trigger>"
	TreatmentID string `json:"treatment_id"`
	Trigger     string `json:"trigger"`
	Severity    string `json:"severity"` // "absolute" or "caution"
}

// DrugInteractionRule flags an interaction between a treatment and a
// medication the patient already takes.
type DrugInteractionRule struct {
	ID          string `json:"id"` // "<treatment>:drug-interaction:<medication>"
	TreatmentID string `json:"treatment_id"`
	Medication  string `json:"medication"`
	Severity    string `json:"severity"` // "major", "moderate" or "minor"
	Guidance    string `json:"guidance,omitempty"`
}

// DoseAdjustmentRule marks a patient attribute that requires adjusting the
// treatment dose without contraindicating it.
type DoseAdjustmentRule struct {
	ID          string `json:"id"` // "<treatment>:requires-dose-adjustment:<trigger>"
	TreatmentID string `json:"treatment_id"`
	Trigger     string `json:"trigger"`
	Note        string `json:"note,omitempty"`
}

// Treatment is the typed projection of a treatment and its safety rules.
type Treatment struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	ConditionID string   `json:"condition_id"`
	Evidence    []string `json:"evidence,omitempty"`

	Contraindications []ContraindicationRule `json:"contraindications,omitempty"`
	Interactions      []DrugInteractionRule  `json:"interactions,omitempty"`
	DoseAdjustments   []DoseAdjustmentRule   `json:"dose_adjustments,omitempty"`
}

// LabTest links a condition to a laboratory test it requires.
type LabTest struct {
	ConditionID string `json:"condition_id"`
	TestID      string `json:"test_id"`
	Rationale   string `json:"rationale,omitempty"`
}

// ImagingRequirement links a condition to an imaging study it requires.
type ImagingRequirement struct {
	ConditionID string `json:"condition_id"`
	ImagingID   string `json:"imaging_id"`
	Rationale   string `json:"rationale,omitempty"`
}
