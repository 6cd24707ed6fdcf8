package kb

import "testing"

func TestValidIdentifier(t *testing.T) {
	valid := []string{"fever", "stiff-neck", "covid-19", "age-under-18", "x"}
	for _, id := range valid {
		if !ValidIdentifier(id) {
			t.Errorf("expected %q to be valid", id)
		}
	}

	invalid := []string{"", "Fever", "stiff neck", "-fever", "fever-", "fièvre", "a_b"}
	for _, id := range invalid {
		if ValidIdentifier(id) {
			t.Errorf("expected %q to be invalid", id)
		}
	}
}

func TestKnownRelation(t *testing.T) {
	if !KnownRelation(RelHasSymptom) || !KnownRelation(RelEvidenceSource) {
		t.Error("expected vocabulary relations to be known")
	}
	if KnownRelation("has-severity") || KnownRelation("requires-action") {
		t.Error("expected relations outside the vocabulary to be rejected")
	}
}

func TestSeverityTierRank(t *testing.T) {
	if SeverityCritical.Rank() <= SeverityUrgent.Rank() {
		t.Error("critical must outrank urgent")
	}
	if SeverityUrgent.Rank() <= SeverityCommon.Rank() {
		t.Error("urgent must outrank common")
	}
	if SeverityTier("bogus").Rank() != 0 {
		t.Error("unknown tier must rank zero")
	}
}

func TestDisplayName(t *testing.T) {
	cases := map[string]string{
		"meningitis":             "Meningitis",
		"diabetic-ketoacidosis":  "Diabetic Ketoacidosis",
		"covid-19":               "Covid 19",
		"iv-fluid-resuscitation": "Iv Fluid Resuscitation",
	}
	for id, want := range cases {
		if got := DisplayName(id); got != want {
			t.Errorf("DisplayName(%q) = %q, want %q", id, got, want)
		}
	}
}

func TestFactKeyAndString(t *testing.T) {
	f := Fact{Subject: "meningitis", Relation: RelHasSymptom, Object: "fever"}
	if f.Key() != "meningitis|has-symptom|fever" {
		t.Errorf("unexpected key %q", f.Key())
	}
	if f.String() != "(meningitis has-symptom fever)" {
		t.Errorf("unexpected string %q", f.String())
	}
}
