package reasoning

import (
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/medichain/reasoner/internal/domain/diagnosis"
	"github.com/medichain/reasoner/internal/domain/safety"
	"github.com/medichain/reasoner/internal/kb"
)

type Service struct {
	store *kb.Store

	// chains holds built chains keyed by snapshot version, condition and
	// normalized symptoms. Snapshots are immutable, so a cached chain
	// never goes stale; entries for replaced snapshots simply age out.
	chains *gocache.Cache
}

func NewService(store *kb.Store, cacheTTL time.Duration) *Service {
	return &Service{
		store:  store,
		chains: gocache.New(cacheTTL, 2*cacheTTL),
	}
}

// Explain builds the fact-cited reasoning chain linking a symptom report to
// one candidate condition.
func (s *Service) Explain(conditionID string, symptoms []string) (*Chain, error) {
	normalized, err := diagnosis.NormalizeSymptoms(symptoms)
	if err != nil {
		return nil, err
	}
	return s.chainFor(s.store.Snapshot(), conditionID, normalized)
}

// ExplainWithProfile builds the same chain and appends a safety step with
// per-treatment verdicts for the given patient. The snapshot is resolved
// once up front so the chain and its safety verdicts always describe the
// same knowledge-base version, even when a reload lands mid-request. The
// safety step is never cached: it depends on the profile, not just the
// snapshot.
func (s *Service) ExplainWithProfile(conditionID string, symptoms []string, profile *safety.PatientProfile) (*Chain, error) {
	normalized, err := diagnosis.NormalizeSymptoms(symptoms)
	if err != nil {
		return nil, err
	}
	sn := s.store.Snapshot()
	base, err := s.chainFor(sn, conditionID, normalized)
	if err != nil {
		return nil, err
	}
	plan, err := safety.PlanAgainst(sn, conditionID, profile)
	if err != nil {
		return nil, err
	}

	out := *base
	out.Steps = append(append([]Step(nil), base.Steps...), safetyStep(sn, plan))
	out.Safety = plan
	return &out, nil
}

// chainFor returns the cached chain for this snapshot, condition and
// normalized report, building and caching it on a miss.
func (s *Service) chainFor(sn *kb.Snapshot, conditionID string, normalized []string) (*Chain, error) {
	key := sn.Version() + "|" + conditionID + "|" + strings.Join(normalized, ",")
	if cached, ok := s.chains.Get(key); ok {
		return cached.(*Chain), nil
	}
	chain, err := s.build(sn, conditionID, normalized)
	if err != nil {
		return nil, err
	}
	s.chains.SetDefault(key, chain)
	return chain, nil
}

func (s *Service) build(sn *kb.Snapshot, conditionID string, symptoms []string) (*Chain, error) {
	cond := sn.Condition(conditionID)
	if cond == nil {
		return nil, &kb.InvalidQueryError{Parameter: "condition-id", Value: conditionID, Reason: "unknown condition"}
	}

	chain := &Chain{
		KBVersion:   sn.Version(),
		ConditionID: cond.ID,
		Condition:   cond.Name,
		Symptoms:    symptoms,
	}

	// Step 1: symptom overlap.
	var matched []string
	var overlapCites []kb.Fact
	for _, sym := range symptoms {
		if f, ok := sn.Fact(cond.ID, kb.RelHasSymptom, sym); ok {
			matched = append(matched, sym)
			overlapCites = append(overlapCites, f)
		}
	}
	chain.Steps = append(chain.Steps, Step{
		Kind: StepSymptomOverlap,
		Summary: fmt.Sprintf("%d of %d documented symptoms of %s reported: %s",
			len(matched), len(cond.SymptomList), cond.Name, joinOrNone(matched)),
		Citations: overlapCites,
	})

	// Step 2: red flags among the matched symptoms.
	var redFlags []string
	var redFlagCites []kb.Fact
	for _, sym := range matched {
		if f, ok := sn.Fact(cond.ID, kb.RelRedFlagSymptom, sym); ok {
			redFlags = append(redFlags, sym)
			redFlagCites = append(redFlagCites, f)
		}
	}
	redFlagSummary := fmt.Sprintf("%d red-flag symptoms present: %s", len(redFlags), joinOrNone(redFlags))
	if len(redFlags) == 0 {
		redFlagSummary = "no red-flag symptoms present"
	}
	chain.Steps = append(chain.Steps, Step{
		Kind:      StepRedFlags,
		Summary:   redFlagSummary,
		Citations: redFlagCites,
	})

	// Step 3: urgency tier and time window.
	urgencyCites := append([]kb.Fact(nil), sn.Facts(cond.ID, kb.RelHasUrgency)...)
	urgencySummary := fmt.Sprintf("%s is classified %s", cond.Name, cond.Severity)
	if cond.TimeSensitive {
		urgencyCites = append(urgencyCites, sn.Facts(cond.ID, kb.RelTimeSensitive)...)
		urgencySummary += fmt.Sprintf("; treatment window is %d hours", cond.TimeSensitiveHours)
	}
	chain.Steps = append(chain.Steps, Step{
		Kind:      StepUrgency,
		Summary:   urgencySummary,
		Citations: urgencyCites,
	})

	// Step 4: documented differentials, each retained or excluded based on
	// whether the report overlaps its symptom set. Omitted when there are
	// none.
	if len(cond.DifferentialFrom) > 0 {
		var cites []kb.Fact
		var verdicts []string
		for _, altID := range cond.DifferentialFrom {
			if f, ok := sn.Fact(cond.ID, kb.RelDifferential, altID); ok {
				cites = append(cites, f)
			}
			alt := sn.Condition(altID)
			if alt == nil {
				continue
			}
			var shared []string
			for _, sym := range symptoms {
				if !alt.Symptoms[sym] {
					continue
				}
				shared = append(shared, sym)
				if f, ok := sn.Fact(alt.ID, kb.RelHasSymptom, sym); ok {
					cites = append(cites, f)
				}
			}
			if len(shared) > 0 {
				verdicts = append(verdicts, fmt.Sprintf("%s retained (also explains %s)",
					alt.ID, strings.Join(shared, ", ")))
			} else {
				verdicts = append(verdicts, fmt.Sprintf("%s excluded (explains none of the reported symptoms)", alt.ID))
			}
		}
		chain.Steps = append(chain.Steps, Step{
			Kind:      StepDifferentials,
			Summary:   fmt.Sprintf("differentials considered: %s", strings.Join(verdicts, "; ")),
			Citations: cites,
		})
	}

	// Step 5: treatments with their evidence.
	var treatCites []kb.Fact
	for _, trID := range cond.TreatmentIDs {
		if f, ok := sn.Fact(cond.ID, kb.RelHasTreatment, trID); ok {
			treatCites = append(treatCites, f)
		}
		for _, ev := range sn.Treatment(trID).Evidence {
			if f, ok := sn.Fact(trID, kb.RelEvidenceSource, ev); ok {
				treatCites = append(treatCites, f)
			}
		}
	}
	chain.Steps = append(chain.Steps, Step{
		Kind:      StepTreatments,
		Summary:   fmt.Sprintf("recommended treatments: %s", joinOrNone(cond.TreatmentIDs)),
		Citations: treatCites,
	})

	return chain, nil
}

// safetyStep condenses a validation plan into one chain step, citing the
// rule facts that fired.
func safetyStep(sn *kb.Snapshot, plan *safety.PlanResponse) Step {
	var cites []kb.Fact
	var blocked, flagged int
	for _, res := range plan.Results {
		if res.Blocked {
			blocked++
		} else if !res.Safe {
			flagged++
		}
		for _, finding := range res.Findings {
			var rel kb.Relation
			switch finding.Kind {
			case safety.KindContraindication:
				rel = kb.RelContraindication
			case safety.KindDrugInteraction:
				rel = kb.RelDrugInteraction
			case safety.KindDoseAdjustment:
				rel = kb.RelDoseAdjustment
			}
			if f, ok := sn.Fact(finding.TreatmentID, rel, finding.Trigger); ok {
				cites = append(cites, f)
			}
		}
	}
	summary := "all recommended treatments are safe for this patient"
	if blocked > 0 || flagged > 0 {
		summary = fmt.Sprintf("%d treatment(s) contraindicated, %d with warnings for this patient", blocked, flagged)
	}
	return Step{Kind: StepSafety, Summary: summary, Citations: cites}
}

func joinOrNone(ids []string) string {
	if len(ids) == 0 {
		return "none"
	}
	return strings.Join(ids, ", ")
}
