package kb

import (
	"fmt"
	"regexp"
	"strings"
)

// Relation is the closed vocabulary of edge types in the knowledge graph.
// The loader rejects any record whose relation is not listed here.
type Relation string

const (
	RelHasSymptom     Relation = "has-symptom"
	RelRedFlagSymptom Relation = "red-flag-symptom"
	RelHasTreatment   Relation = "has-treatment"
	RelHasUrgency     Relation = "has-urgency"
	RelDifferential   Relation = "differential-from"
	RelTimeSensitive  Relation = "time-sensitive"
	RelContraindication Relation = "contraindication"
	RelDrugInteraction  Relation = "drug-interaction"
	RelDoseAdjustment   Relation = "requires-dose-adjustment"
	RelLabTest          Relation = "requires-lab-test"
	RelImaging          Relation = "requires-imaging"
	RelEvidenceSource   Relation = "evidence-source"
)

var relations = map[Relation]bool{
	RelHasSymptom:       true,
	RelRedFlagSymptom:   true,
	RelHasTreatment:     true,
	RelHasUrgency:       true,
	RelDifferential:     true,
	RelTimeSensitive:    true,
	RelContraindication: true,
	RelDrugInteraction:  true,
	RelDoseAdjustment:   true,
	RelLabTest:          true,
	RelImaging:          true,
	RelEvidenceSource:   true,
}

// KnownRelation reports whether r belongs to the closed relation vocabulary.
func KnownRelation(r Relation) bool {
	return relations[r]
}

// Fact is the atomic unit of the knowledge graph: a typed
// (subject, relation, object) triple. Severity and Note carry the optional
// literal qualifiers some relations use (contraindication severity,
// interaction guidance, lab-test rationale).
type Fact struct {
	Subject  string   `json:"subject" yaml:"subject"`
	Relation Relation `json:"relation" yaml:"relation"`
	Object   string   `json:"object" yaml:"object"`
	Severity string   `json:"severity,omitempty" yaml:"severity,omitempty"`
	Note     string   `json:"note,omitempty" yaml:"note,omitempty"`
}

// Key returns the canonical triple identity of the fact. Two facts with the
// same key are the same edge regardless of qualifiers.
func (f Fact) Key() string {
	return f.Subject + "|" + string(f.Relation) + "|" + f.Object
}

func (f Fact) String() string {
	return fmt.Sprintf("(%s %s %s)", f.Subject, f.Relation, f.Object)
}

// identifierRe matches canonical lowercase hyphenated tokens such as
// "stiff-neck" or "covid-19".
var identifierRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// ValidIdentifier reports whether id is a canonical entity token.
func ValidIdentifier(id string) bool {
	return identifierRe.MatchString(id) && !strings.HasSuffix(id, "-")
}

// SeverityTier is the coarse urgency classification of a condition.
type SeverityTier string

const (
	SeverityCommon   SeverityTier = "common"
	SeverityUrgent   SeverityTier = "urgent"
	SeverityCritical SeverityTier = "critical"
)

// Rank orders tiers for tie-breaking: critical > urgent > common.
func (s SeverityTier) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityUrgent:
		return 2
	case SeverityCommon:
		return 1
	}
	return 0
}

// ValidSeverityTier reports whether s is a recognized tier token.
func ValidSeverityTier(s string) bool {
	switch SeverityTier(s) {
	case SeverityCommon, SeverityUrgent, SeverityCritical:
		return true
	}
	return false
}

// DisplayName derives a human-readable name from a canonical identifier,
// e.g. "diabetic-ketoacidosis" -> "Diabetic Ketoacidosis".
func DisplayName(id string) string {
	words := strings.Split(id, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
