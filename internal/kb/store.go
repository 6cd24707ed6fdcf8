package kb

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Snapshot is one immutable, fully-indexed view of the knowledge graph.
// Snapshots are safe for unlimited concurrent readers: nothing mutates them
// after buildSnapshot returns.
type Snapshot struct {
	version  string
	loadedAt time.Time
	source   string

	facts      []Fact
	factKeys   map[string]Fact
	bySubject  map[string][]Fact
	byRelation map[Relation][]Fact
	byPair     map[string][]Fact

	conditions     map[string]*Condition
	conditionOrder []string
	treatments     map[string]*Treatment
	treatmentOrder []string

	labTests map[string][]LabTest
	imaging  map[string][]ImagingRequirement
	allLabs  []LabTest
	allImg   []ImagingRequirement
}

// Store is the process-wide handle to the knowledge graph. The only
// mutation it supports is Reload, which swaps in a fresh snapshot
// atomically: an in-flight query sees either the old or the new snapshot in
// full, never a mix.
type Store struct {
	snap atomic.Pointer[Snapshot]
}

// Load opens the source named by descriptor, validates it, and returns a
// store holding the first snapshot. Any inconsistency is a *LoadError and
// nothing is loaded.
func Load(ctx context.Context, descriptor string) (*Store, error) {
	snap, err := loadSnapshot(ctx, descriptor)
	if err != nil {
		return nil, err
	}
	s := &Store{}
	s.snap.Store(snap)
	return s, nil
}

// Snapshot returns the current immutable view.
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Reload builds a snapshot from descriptor and swaps it in. On failure the
// current snapshot stays untouched.
func (s *Store) Reload(ctx context.Context, descriptor string) error {
	snap, err := loadSnapshot(ctx, descriptor)
	if err != nil {
		return err
	}
	s.snap.Store(snap)
	return nil
}

func loadSnapshot(ctx context.Context, descriptor string) (*Snapshot, error) {
	src, err := OpenSource(descriptor)
	if err != nil {
		return nil, err
	}
	facts, err := src.Facts(ctx)
	if err != nil {
		return nil, err
	}
	return buildSnapshot(src.Descriptor(), facts)
}

// -- Snapshot accessors --

// Version is the uuid assigned to this snapshot at load time.
func (sn *Snapshot) Version() string { return sn.version }

// LoadedAt is the time the snapshot was built.
func (sn *Snapshot) LoadedAt() time.Time { return sn.loadedAt }

// SourceDescriptor names the source this snapshot was loaded from.
func (sn *Snapshot) SourceDescriptor() string { return sn.source }

// FactCount returns the number of distinct facts.
func (sn *Snapshot) FactCount() int { return len(sn.facts) }

// Facts returns every fact with the given subject and relation.
func (sn *Snapshot) Facts(subject string, relation Relation) []Fact {
	return sn.byPair[subject+"|"+string(relation)]
}

// Fact returns the exact (subject, relation, object) fact and whether it
// exists. Reasoning-chain citations round-trip through this lookup.
func (sn *Snapshot) Fact(subject string, relation Relation, object string) (Fact, bool) {
	f, ok := sn.factKeys[subject+"|"+string(relation)+"|"+object]
	return f, ok
}

// HasFact reports whether the exact triple exists in the snapshot.
func (sn *Snapshot) HasFact(subject string, relation Relation, object string) bool {
	_, ok := sn.Fact(subject, relation, object)
	return ok
}

// BySubject returns every fact with the given subject.
func (sn *Snapshot) BySubject(subject string) []Fact {
	return sn.bySubject[subject]
}

// ByRelation returns every fact with the given relation.
func (sn *Snapshot) ByRelation(relation Relation) []Fact {
	return sn.byRelation[relation]
}

// Condition returns the condition with the given id, or nil.
func (sn *Snapshot) Condition(id string) *Condition {
	return sn.conditions[id]
}

// Conditions returns all conditions in lexical id order.
func (sn *Snapshot) Conditions() []*Condition {
	out := make([]*Condition, 0, len(sn.conditionOrder))
	for _, id := range sn.conditionOrder {
		out = append(out, sn.conditions[id])
	}
	return out
}

// Treatment returns the treatment with the given id, or nil.
func (sn *Snapshot) Treatment(id string) *Treatment {
	return sn.treatments[id]
}

// Treatments returns all treatments in lexical id order.
func (sn *Snapshot) Treatments() []*Treatment {
	out := make([]*Treatment, 0, len(sn.treatmentOrder))
	for _, id := range sn.treatmentOrder {
		out = append(out, sn.treatments[id])
	}
	return out
}

// TreatmentsFor returns the treatments of one condition in lexical id order.
func (sn *Snapshot) TreatmentsFor(conditionID string) []*Treatment {
	cond := sn.conditions[conditionID]
	if cond == nil {
		return nil
	}
	out := make([]*Treatment, 0, len(cond.TreatmentIDs))
	for _, id := range cond.TreatmentIDs {
		out = append(out, sn.treatments[id])
	}
	return out
}

// LabTests returns the lab tests required for one condition.
func (sn *Snapshot) LabTests(conditionID string) []LabTest {
	return sn.labTests[conditionID]
}

// AllLabTests returns every lab-test requirement, ordered by condition then
// test id.
func (sn *Snapshot) AllLabTests() []LabTest {
	return sn.allLabs
}

// Imaging returns the imaging requirements for one condition.
func (sn *Snapshot) Imaging(conditionID string) []ImagingRequirement {
	return sn.imaging[conditionID]
}

// AllImaging returns every imaging requirement, ordered by condition then
// imaging id.
func (sn *Snapshot) AllImaging() []ImagingRequirement {
	return sn.allImg
}

// EmergencyConditions returns the ids of all critical-tier conditions in
// lexical order.
func (sn *Snapshot) EmergencyConditions() []string {
	var out []string
	for _, id := range sn.conditionOrder {
		if sn.conditions[id].Severity == SeverityCritical {
			out = append(out, id)
		}
	}
	return out
}

// -- Snapshot construction --

func buildSnapshot(descriptor string, raw []Fact) (*Snapshot, error) {
	sn := &Snapshot{
		version:    uuid.New().String(),
		loadedAt:   time.Now().UTC(),
		source:     descriptor,
		factKeys:   make(map[string]Fact),
		bySubject:  make(map[string][]Fact),
		byRelation: make(map[Relation][]Fact),
		byPair:     make(map[string][]Fact),
		conditions: make(map[string]*Condition),
		treatments: make(map[string]*Treatment),
		labTests:   make(map[string][]LabTest),
		imaging:    make(map[string][]ImagingRequirement),
	}

	fail := func(f Fact, reason string) error {
		return &LoadError{Source: descriptor, Subject: f.Subject, Relation: f.Relation, Reason: reason}
	}

	// Pass 1: vocabulary and identifier validation, dedup, indexing.
	for _, f := range raw {
		if !KnownRelation(f.Relation) {
			return nil, fail(f, "unknown relation")
		}
		if !ValidIdentifier(f.Subject) {
			return nil, fail(f, fmt.Sprintf("malformed subject identifier %q", f.Subject))
		}
		if f.Relation == RelTimeSensitive {
			if hours, err := strconv.Atoi(f.Object); err != nil || hours <= 0 {
				return nil, fail(f, fmt.Sprintf("time-sensitive object %q is not a positive hour count", f.Object))
			}
		} else if !ValidIdentifier(f.Object) {
			return nil, fail(f, fmt.Sprintf("malformed object identifier %q", f.Object))
		}
		if _, dup := sn.factKeys[f.Key()]; dup {
			continue
		}
		sn.factKeys[f.Key()] = f
		sn.facts = append(sn.facts, f)
		sn.bySubject[f.Subject] = append(sn.bySubject[f.Subject], f)
		sn.byRelation[f.Relation] = append(sn.byRelation[f.Relation], f)
		pair := f.Subject + "|" + string(f.Relation)
		sn.byPair[pair] = append(sn.byPair[pair], f)
	}

	// Pass 2: project conditions. A condition is any subject of has-symptom.
	for _, f := range sn.byRelation[RelHasSymptom] {
		cond := sn.conditions[f.Subject]
		if cond == nil {
			cond = &Condition{
				ID:       f.Subject,
				Name:     DisplayName(f.Subject),
				Symptoms: make(map[string]bool),
				RedFlags: make(map[string]bool),
			}
			sn.conditions[f.Subject] = cond
		}
		cond.Symptoms[f.Object] = true
	}

	for id, cond := range sn.conditions {
		urgency := sn.Facts(id, RelHasUrgency)
		if len(urgency) == 0 {
			return nil, &LoadError{Source: descriptor, Subject: id, Relation: RelHasUrgency, Reason: "condition has no severity tier"}
		}
		if len(urgency) > 1 {
			return nil, &LoadError{Source: descriptor, Subject: id, Relation: RelHasUrgency, Reason: "condition has more than one severity tier"}
		}
		if !ValidSeverityTier(urgency[0].Object) {
			return nil, fail(urgency[0], fmt.Sprintf("unknown severity tier %q", urgency[0].Object))
		}
		cond.Severity = SeverityTier(urgency[0].Object)

		for _, f := range sn.Facts(id, RelRedFlagSymptom) {
			if !cond.Symptoms[f.Object] {
				return nil, fail(f, fmt.Sprintf("red flag %q is not in the condition's symptom set", f.Object))
			}
			cond.RedFlags[f.Object] = true
		}
		if len(cond.RedFlags) == 0 {
			return nil, &LoadError{Source: descriptor, Subject: id, Relation: RelRedFlagSymptom, Reason: "condition has no red-flag symptoms"}
		}

		for _, f := range sn.Facts(id, RelTimeSensitive) {
			hours, _ := strconv.Atoi(f.Object)
			cond.TimeSensitive = true
			cond.TimeSensitiveHours = hours
		}

		for _, f := range sn.Facts(id, RelEvidenceSource) {
			cond.Evidence = append(cond.Evidence, f.Object)
		}

		cond.SymptomList = sortedKeys(cond.Symptoms)
		cond.RedFlagList = sortedKeys(cond.RedFlags)
		sort.Strings(cond.Evidence)
	}

	// Orphan subject checks for condition-scoped relations.
	for _, rel := range []Relation{RelHasUrgency, RelRedFlagSymptom, RelTimeSensitive, RelDifferential, RelLabTest, RelImaging, RelHasTreatment} {
		for _, f := range sn.byRelation[rel] {
			if sn.conditions[f.Subject] == nil {
				return nil, fail(f, "subject is not a known condition")
			}
		}
	}

	// differential-from targets must themselves be conditions.
	for _, f := range sn.byRelation[RelDifferential] {
		if sn.conditions[f.Object] == nil {
			return nil, fail(f, fmt.Sprintf("differential target %q is not a known condition", f.Object))
		}
		cond := sn.conditions[f.Subject]
		cond.DifferentialFrom = append(cond.DifferentialFrom, f.Object)
	}
	for _, cond := range sn.conditions {
		sort.Strings(cond.DifferentialFrom)
	}

	// Pass 3: project treatments.
	for _, f := range sn.byRelation[RelHasTreatment] {
		if existing := sn.treatments[f.Object]; existing != nil {
			return nil, fail(f, fmt.Sprintf("treatment %q already treats condition %q", f.Object, existing.ConditionID))
		}
		sn.treatments[f.Object] = &Treatment{
			ID:          f.Object,
			Name:        DisplayName(f.Object),
			ConditionID: f.Subject,
		}
		cond := sn.conditions[f.Subject]
		cond.TreatmentIDs = append(cond.TreatmentIDs, f.Object)
	}
	for _, cond := range sn.conditions {
		sort.Strings(cond.TreatmentIDs)
	}

	for _, f := range sn.byRelation[RelContraindication] {
		tr := sn.treatments[f.Subject]
		if tr == nil {
			return nil, fail(f, "contraindication subject is not a known treatment")
		}
		sev := f.Severity
		if sev == "" {
			sev = "absolute"
		}
		if sev != "absolute" && sev != "caution" {
			return nil, fail(f, fmt.Sprintf("unknown contraindication severity %q", sev))
		}
		tr.Contraindications = append(tr.Contraindications, ContraindicationRule{
			ID:          ruleID(f),
			TreatmentID: f.Subject,
			Trigger:     f.Object,
			Severity:    sev,
		})
	}

	for _, f := range sn.byRelation[RelDrugInteraction] {
		tr := sn.treatments[f.Subject]
		if tr == nil {
			return nil, fail(f, "drug-interaction subject is not a known treatment")
		}
		sev := f.Severity
		if sev == "" {
			sev = "moderate"
		}
		if sev != "major" && sev != "moderate" && sev != "minor" {
			return nil, fail(f, fmt.Sprintf("unknown interaction severity %q", sev))
		}
		tr.Interactions = append(tr.Interactions, DrugInteractionRule{
			ID:          ruleID(f),
			TreatmentID: f.Subject,
			Medication:  f.Object,
			Severity:    sev,
			Guidance:    f.Note,
		})
	}

	for _, f := range sn.byRelation[RelDoseAdjustment] {
		tr := sn.treatments[f.Subject]
		if tr == nil {
			return nil, fail(f, "dose-adjustment subject is not a known treatment")
		}
		tr.DoseAdjustments = append(tr.DoseAdjustments, DoseAdjustmentRule{
			ID:          ruleID(f),
			TreatmentID: f.Subject,
			Trigger:     f.Object,
			Note:        f.Note,
		})
	}

	for _, f := range sn.byRelation[RelEvidenceSource] {
		if tr := sn.treatments[f.Subject]; tr != nil {
			tr.Evidence = append(tr.Evidence, f.Object)
			continue
		}
		if sn.conditions[f.Subject] == nil {
			return nil, fail(f, "evidence subject is neither a condition nor a treatment")
		}
	}

	for _, tr := range sn.treatments {
		sort.Slice(tr.Contraindications, func(i, j int) bool { return tr.Contraindications[i].ID < tr.Contraindications[j].ID })
		sort.Slice(tr.Interactions, func(i, j int) bool { return tr.Interactions[i].ID < tr.Interactions[j].ID })
		sort.Slice(tr.DoseAdjustments, func(i, j int) bool { return tr.DoseAdjustments[i].ID < tr.DoseAdjustments[j].ID })
		sort.Strings(tr.Evidence)
	}

	// Pass 4: lab tests and imaging.
	for _, f := range sn.byRelation[RelLabTest] {
		sn.labTests[f.Subject] = append(sn.labTests[f.Subject], LabTest{
			ConditionID: f.Subject,
			TestID:      f.Object,
			Rationale:   f.Note,
		})
	}
	for _, f := range sn.byRelation[RelImaging] {
		sn.imaging[f.Subject] = append(sn.imaging[f.Subject], ImagingRequirement{
			ConditionID: f.Subject,
			ImagingID:   f.Object,
			Rationale:   f.Note,
		})
	}
	for id := range sn.labTests {
		tests := sn.labTests[id]
		sort.Slice(tests, func(i, j int) bool { return tests[i].TestID < tests[j].TestID })
		sn.allLabs = append(sn.allLabs, tests...)
	}
	for id := range sn.imaging {
		img := sn.imaging[id]
		sort.Slice(img, func(i, j int) bool { return img[i].ImagingID < img[j].ImagingID })
		sn.allImg = append(sn.allImg, img...)
	}
	sort.Slice(sn.allLabs, func(i, j int) bool {
		if sn.allLabs[i].ConditionID != sn.allLabs[j].ConditionID {
			return sn.allLabs[i].ConditionID < sn.allLabs[j].ConditionID
		}
		return sn.allLabs[i].TestID < sn.allLabs[j].TestID
	})
	sort.Slice(sn.allImg, func(i, j int) bool {
		if sn.allImg[i].ConditionID != sn.allImg[j].ConditionID {
			return sn.allImg[i].ConditionID < sn.allImg[j].ConditionID
		}
		return sn.allImg[i].ImagingID < sn.allImg[j].ImagingID
	})

	sn.conditionOrder = make([]string, 0, len(sn.conditions))
	for id := range sn.conditions {
		sn.conditionOrder = append(sn.conditionOrder, id)
	}
	sort.Strings(sn.conditionOrder)

	sn.treatmentOrder = make([]string, 0, len(sn.treatments))
	for id := range sn.treatments {
		sn.treatmentOrder = append(sn.treatmentOrder, id)
	}
	sort.Strings(sn.treatmentOrder)

	if len(sn.conditions) == 0 {
		return nil, &LoadError{Source: descriptor, Reason: "source defines no conditions"}
	}

	return sn, nil
}

func ruleID(f Fact) string {
	return f.Subject + ":" + string(f.Relation) + ":" + f.Object
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
