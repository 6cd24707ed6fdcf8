package kb

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// minimalFacts returns the smallest consistent fact set: one condition with
// one symptom, one red flag, and a severity tier.
func minimalFacts() []Fact {
	return []Fact{
		{Subject: "testitis", Relation: RelHasSymptom, Object: "fever"},
		{Subject: "testitis", Relation: RelHasSymptom, Object: "rash"},
		{Subject: "testitis", Relation: RelRedFlagSymptom, Object: "rash"},
		{Subject: "testitis", Relation: RelHasUrgency, Object: "common"},
	}
}

func TestLoadEmbedded(t *testing.T) {
	store, err := Load(context.Background(), "embedded:")
	if err != nil {
		t.Fatalf("load embedded: %v", err)
	}
	sn := store.Snapshot()

	if sn.Version() == "" {
		t.Error("expected a snapshot version")
	}
	if sn.SourceDescriptor() != "embedded:" {
		t.Errorf("unexpected source descriptor %q", sn.SourceDescriptor())
	}

	conds := sn.Conditions()
	if len(conds) != 14 {
		t.Fatalf("expected 14 conditions, got %d", len(conds))
	}
	for i := 1; i < len(conds); i++ {
		if conds[i-1].ID >= conds[i].ID {
			t.Fatalf("conditions not in lexical order: %s >= %s", conds[i-1].ID, conds[i].ID)
		}
	}

	men := sn.Condition("meningitis")
	if men == nil {
		t.Fatal("meningitis missing")
	}
	if men.Severity != SeverityCritical {
		t.Errorf("meningitis severity = %s, want critical", men.Severity)
	}
	if !men.TimeSensitive || men.TimeSensitiveHours != 1 {
		t.Errorf("meningitis time window = %v/%d, want true/1", men.TimeSensitive, men.TimeSensitiveHours)
	}
	for _, rf := range []string{"stiff-neck", "non-blanching-rash", "severe-headache"} {
		if !men.RedFlags[rf] {
			t.Errorf("meningitis red flags missing %s", rf)
		}
	}
	for _, rf := range men.RedFlagList {
		if !men.Symptoms[rf] {
			t.Errorf("red flag %s is not a symptom", rf)
		}
	}

	asp := sn.Treatment("aspirin")
	if asp == nil {
		t.Fatal("aspirin missing")
	}
	if asp.ConditionID != "heart-attack" {
		t.Errorf("aspirin condition = %s, want heart-attack", asp.ConditionID)
	}
	var blocked bool
	for _, c := range asp.Contraindications {
		if c.Trigger == "bleeding-disorder" && c.Severity == "absolute" {
			blocked = true
		}
	}
	if !blocked {
		t.Error("aspirin lacks absolute bleeding-disorder contraindication")
	}
	var warfarin bool
	for _, ix := range asp.Interactions {
		if ix.Medication == "warfarin" && ix.Severity == "major" {
			warfarin = true
		}
	}
	if !warfarin {
		t.Error("aspirin lacks major warfarin interaction")
	}

	emergencies := sn.EmergencyConditions()
	want := []string{"appendicitis", "diabetic-ketoacidosis", "heart-attack", "meningitis", "pulmonary-embolism", "sepsis", "stroke"}
	if len(emergencies) != len(want) {
		t.Fatalf("emergency conditions = %v, want %v", emergencies, want)
	}
	for i := range want {
		if emergencies[i] != want[i] {
			t.Fatalf("emergency conditions = %v, want %v", emergencies, want)
		}
	}

	labs := sn.LabTests("diabetic-ketoacidosis")
	got := map[string]bool{}
	for _, l := range labs {
		got[l.TestID] = true
	}
	if !got["blood-glucose"] || !got["blood-ketones"] {
		t.Errorf("dka labs = %v, want blood-glucose and blood-ketones present", labs)
	}
}

func TestSnapshotFactLookups(t *testing.T) {
	sn, err := buildSnapshot("test", minimalFacts())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if sn.FactCount() != 4 {
		t.Errorf("fact count = %d, want 4", sn.FactCount())
	}
	if !sn.HasFact("testitis", RelHasSymptom, "fever") {
		t.Error("expected exact triple lookup to succeed")
	}
	if sn.HasFact("testitis", RelHasSymptom, "cough") {
		t.Error("expected absent triple lookup to fail")
	}
	if n := len(sn.Facts("testitis", RelHasSymptom)); n != 2 {
		t.Errorf("pair index returned %d facts, want 2", n)
	}
	if n := len(sn.BySubject("testitis")); n != 4 {
		t.Errorf("subject index returned %d facts, want 4", n)
	}
	if n := len(sn.ByRelation(RelRedFlagSymptom)); n != 1 {
		t.Errorf("relation index returned %d facts, want 1", n)
	}
}

func TestBuildSnapshot_DeduplicatesTriples(t *testing.T) {
	facts := append(minimalFacts(), Fact{Subject: "testitis", Relation: RelHasSymptom, Object: "fever"})
	sn, err := buildSnapshot("test", facts)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if sn.FactCount() != 4 {
		t.Errorf("fact count = %d, want duplicate collapsed to 4", sn.FactCount())
	}
}

func TestBuildSnapshot_Rejections(t *testing.T) {
	cases := []struct {
		name  string
		facts []Fact
	}{
		{"unknown relation", append(minimalFacts(),
			Fact{Subject: "testitis", Relation: "has-severity", Object: "high"})},
		{"malformed subject", append(minimalFacts(),
			Fact{Subject: "Bad Subject", Relation: RelHasSymptom, Object: "fever"})},
		{"malformed object", append(minimalFacts(),
			Fact{Subject: "testitis", Relation: RelHasSymptom, Object: "Fever!"})},
		{"missing urgency", []Fact{
			{Subject: "testitis", Relation: RelHasSymptom, Object: "fever"},
			{Subject: "testitis", Relation: RelRedFlagSymptom, Object: "fever"},
		}},
		{"duplicate urgency", append(minimalFacts(),
			Fact{Subject: "testitis", Relation: RelHasUrgency, Object: "urgent"})},
		{"unknown severity tier", []Fact{
			{Subject: "testitis", Relation: RelHasSymptom, Object: "fever"},
			{Subject: "testitis", Relation: RelRedFlagSymptom, Object: "fever"},
			{Subject: "testitis", Relation: RelHasUrgency, Object: "routine"},
		}},
		{"red flag outside symptom set", append(minimalFacts(),
			Fact{Subject: "testitis", Relation: RelRedFlagSymptom, Object: "seizures"})},
		{"no red flags", []Fact{
			{Subject: "testitis", Relation: RelHasSymptom, Object: "fever"},
			{Subject: "testitis", Relation: RelHasUrgency, Object: "common"},
		}},
		{"non-numeric time window", append(minimalFacts(),
			Fact{Subject: "testitis", Relation: RelTimeSensitive, Object: "soon"})},
		{"zero time window", append(minimalFacts(),
			Fact{Subject: "testitis", Relation: RelTimeSensitive, Object: "0"})},
		{"differential to unknown condition", append(minimalFacts(),
			Fact{Subject: "testitis", Relation: RelDifferential, Object: "ghostitis"})},
		{"urgency on unknown condition", append(minimalFacts(),
			Fact{Subject: "ghostitis", Relation: RelHasUrgency, Object: "common"})},
		{"contraindication on unknown treatment", append(minimalFacts(),
			Fact{Subject: "ghost-pill", Relation: RelContraindication, Object: "pregnancy"})},
		{"bad contraindication severity", append(minimalFacts(),
			Fact{Subject: "testitis", Relation: RelHasTreatment, Object: "test-pill"},
			Fact{Subject: "test-pill", Relation: RelContraindication, Object: "pregnancy", Severity: "severe"})},
		{"bad interaction severity", append(minimalFacts(),
			Fact{Subject: "testitis", Relation: RelHasTreatment, Object: "test-pill"},
			Fact{Subject: "test-pill", Relation: RelDrugInteraction, Object: "warfarin", Severity: "huge"})},
		{"evidence on unknown entity", append(minimalFacts(),
			Fact{Subject: "ghost", Relation: RelEvidenceSource, Object: "some-guideline"})},
		{"empty source", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := buildSnapshot("test", tc.facts)
			if err == nil {
				t.Fatal("expected load error")
			}
			var le *LoadError
			if !errors.As(err, &le) {
				t.Fatalf("expected *LoadError, got %T: %v", err, err)
			}
		})
	}
}

func TestBuildSnapshot_TreatmentUniqueness(t *testing.T) {
	facts := append(minimalFacts(),
		Fact{Subject: "otheritis", Relation: RelHasSymptom, Object: "cough"},
		Fact{Subject: "otheritis", Relation: RelRedFlagSymptom, Object: "cough"},
		Fact{Subject: "otheritis", Relation: RelHasUrgency, Object: "urgent"},
		Fact{Subject: "testitis", Relation: RelHasTreatment, Object: "shared-pill"},
		Fact{Subject: "otheritis", Relation: RelHasTreatment, Object: "shared-pill"},
	)
	_, err := buildSnapshot("test", facts)
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected *LoadError for shared treatment, got %v", err)
	}
}

func TestBuildSnapshot_DefaultRuleSeverities(t *testing.T) {
	facts := append(minimalFacts(),
		Fact{Subject: "testitis", Relation: RelHasTreatment, Object: "test-pill"},
		Fact{Subject: "test-pill", Relation: RelContraindication, Object: "pregnancy"},
		Fact{Subject: "test-pill", Relation: RelDrugInteraction, Object: "warfarin"},
	)
	sn, err := buildSnapshot("test", facts)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	tr := sn.Treatment("test-pill")
	if tr.Contraindications[0].Severity != "absolute" {
		t.Errorf("contraindication severity = %q, want default absolute", tr.Contraindications[0].Severity)
	}
	if tr.Interactions[0].Severity != "moderate" {
		t.Errorf("interaction severity = %q, want default moderate", tr.Interactions[0].Severity)
	}
}

func TestStore_Reload(t *testing.T) {
	store, err := Load(context.Background(), "embedded:")
	if err != nil {
		t.Fatalf("load embedded: %v", err)
	}
	before := store.Snapshot()

	dir := t.TempDir()
	path := filepath.Join(dir, "kb.yaml")
	doc := `version: "1"
facts:
  - {subject: testitis, relation: has-symptom, object: fever}
  - {subject: testitis, relation: red-flag-symptom, object: fever}
  - {subject: testitis, relation: has-urgency, object: urgent}
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := store.Reload(context.Background(), "file:"+path); err != nil {
		t.Fatalf("reload: %v", err)
	}
	after := store.Snapshot()
	if after.Version() == before.Version() {
		t.Error("expected a new snapshot version after reload")
	}
	if after.Condition("testitis") == nil {
		t.Error("expected reloaded snapshot content")
	}
	if before.Condition("meningitis") == nil {
		t.Error("expected the old snapshot to stay intact")
	}

	// A failing reload must leave the current snapshot untouched.
	if err := store.Reload(context.Background(), "file:"+filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected reload failure")
	}
	if store.Snapshot().Version() != after.Version() {
		t.Error("failed reload must not swap the snapshot")
	}
}

func TestOpenSource_UnsupportedScheme(t *testing.T) {
	_, err := OpenSource("redis://localhost")
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected *LoadError, got %v", err)
	}
}

func TestFileSource_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("facts: {not: a list"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := Load(context.Background(), "file:"+path)
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected *LoadError, got %v", err)
	}
}
