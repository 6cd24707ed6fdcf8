package diagnosis

import (
	"sort"
	"strings"

	"github.com/medichain/reasoner/internal/kb"
)

// Scoring holds the tunable constants of the matcher. RedFlagWeight scales
// the triangular red-flag bonus; ConfidenceRedFlagStep and
// ConfidenceRedFlagCap bound the red-flag contribution to confidence.
type Scoring struct {
	RedFlagWeight        float64
	MaxCandidates        int
	ConfidenceRedFlagStep float64
	ConfidenceRedFlagCap  float64
}

// DefaultScoring is the production configuration.
func DefaultScoring() Scoring {
	return Scoring{
		RedFlagWeight:         2,
		MaxCandidates:         5,
		ConfidenceRedFlagStep: 0.1,
		ConfidenceRedFlagCap:  0.3,
	}
}

type Service struct {
	store   *kb.Store
	scoring Scoring
}

func NewService(store *kb.Store, scoring Scoring) *Service {
	return &Service{store: store, scoring: scoring}
}

// NormalizeSymptoms canonicalizes, deduplicates, and sorts reported
// symptoms. Free-text separators collapse to hyphens so "Stiff Neck" and
// "stiff_neck" both resolve to "stiff-neck". An empty result is an
// *kb.InvalidQueryError: matching nothing is a caller mistake, not an empty
// differential.
func NormalizeSymptoms(symptoms []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, raw := range symptoms {
		id := strings.ToLower(strings.TrimSpace(raw))
		id = strings.ReplaceAll(id, "_", "-")
		id = strings.Join(strings.Fields(id), "-")
		if id == "" {
			continue
		}
		if !kb.ValidIdentifier(id) {
			return nil, &kb.InvalidQueryError{Parameter: "symptoms", Value: raw, Reason: "not a valid symptom identifier"}
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return nil, &kb.InvalidQueryError{Parameter: "symptoms", Value: "", Reason: "at least one symptom is required"}
	}
	sort.Strings(out)
	return out, nil
}

// redFlagBonus is triangular in the red-flag count: the first red flag adds
// weight*1, the second weight*2 more, and so on. Three red flags are worth
// triple what three ordinary symptoms are, which is what pushes meningitis
// above migraine for a headache presentation with neck stiffness and rash.
func (s *Service) redFlagBonus(redFlags int) float64 {
	return s.scoring.RedFlagWeight * float64(redFlags*(redFlags+1)) / 2
}

// Match scores every condition sharing at least one symptom with the
// report. Symptoms must already be normalized. Scores come back ordered:
// total descending, then severity tier, then red-flag count, then condition
// id ascending so equal scores are stable across runs.
func (s *Service) Match(symptoms []string) ([]Score, error) {
	normalized, err := NormalizeSymptoms(symptoms)
	if err != nil {
		return nil, err
	}
	sn := s.store.Snapshot()
	return s.match(sn, normalized), nil
}

func (s *Service) match(sn *kb.Snapshot, symptoms []string) []Score {
	var scores []Score
	for _, cond := range sn.Conditions() {
		sc := Score{ConditionID: cond.ID}
		for _, sym := range symptoms {
			if !cond.Symptoms[sym] {
				continue
			}
			sc.Overlap++
			sc.Matched = append(sc.Matched, sym)
			if cond.RedFlags[sym] {
				sc.RedFlags++
				sc.MatchedRedFlag = append(sc.MatchedRedFlag, sym)
			}
		}
		if sc.Overlap == 0 {
			continue
		}
		sc.Total = float64(sc.Overlap) + s.redFlagBonus(sc.RedFlags)
		scores = append(scores, sc)
	}
	s.order(sn, scores)
	return scores
}

// order sorts scores in place by the matcher's tie-break chain. Severity
// tier breaks ties before the red-flag count so a critical condition never
// ranks below a common one with the same total.
func (s *Service) order(sn *kb.Snapshot, scores []Score) {
	sort.Slice(scores, func(i, j int) bool {
		a, b := scores[i], scores[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		ra := sn.Condition(a.ConditionID).Severity.Rank()
		rb := sn.Condition(b.ConditionID).Severity.Rank()
		if ra != rb {
			return ra > rb
		}
		if a.RedFlags != b.RedFlags {
			return a.RedFlags > b.RedFlags
		}
		return a.ConditionID < b.ConditionID
	})
}

// Rank turns match scores into a bounded differential diagnosis. Confidence
// for a condition is the matched fraction of its symptom set plus a capped
// red-flag increment, clamped to 1.0. Candidates come back in
// non-increasing confidence order, truncated to limit entries; a limit of
// zero or less falls back to the configured maximum. A candidate that the
// knowledge base documents as a differential of any higher-ranked candidate
// carries a DifferentialOf annotation naming the highest such one.
func (s *Service) Rank(symptoms []string, limit int) ([]Candidate, error) {
	normalized, err := NormalizeSymptoms(symptoms)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.scoring.MaxCandidates
	}
	sn := s.store.Snapshot()
	scores := s.match(sn, normalized)

	candidates := make([]Candidate, 0, len(scores))
	for _, sc := range scores {
		cond := sn.Condition(sc.ConditionID)
		candidates = append(candidates, Candidate{
			ConditionID:        cond.ID,
			Name:               cond.Name,
			Severity:           string(cond.Severity),
			Confidence:         s.confidence(cond, sc),
			Score:              sc,
			Missing:            missingSymptoms(cond, sc),
			TimeSensitive:      cond.TimeSensitive,
			TimeSensitiveHours: cond.TimeSensitiveHours,
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		ra := kb.SeverityTier(a.Severity).Rank()
		rb := kb.SeverityTier(b.Severity).Rank()
		if ra != rb {
			return ra > rb
		}
		if a.Score.RedFlags != b.Score.RedFlags {
			return a.Score.RedFlags > b.Score.RedFlags
		}
		return a.ConditionID < b.ConditionID
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	for i := 1; i < len(candidates); i++ {
		cond := sn.Condition(candidates[i].ConditionID)
		for j := 0; j < i; j++ {
			if isDifferential(sn.Condition(candidates[j].ConditionID), cond) {
				candidates[i].DifferentialOf = candidates[j].ConditionID
				break
			}
		}
	}
	return candidates, nil
}

// missingSymptoms lists the documented symptoms of cond that the report did
// not include, sorted for stable output.
func missingSymptoms(cond *kb.Condition, sc Score) []string {
	matched := make(map[string]bool, len(sc.Matched))
	for _, sym := range sc.Matched {
		matched[sym] = true
	}
	var out []string
	for _, sym := range cond.SymptomList {
		if !matched[sym] {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Service) confidence(cond *kb.Condition, sc Score) float64 {
	base := float64(sc.Overlap) / float64(len(cond.SymptomList))
	if base > 1 {
		base = 1
	}
	bump := s.scoring.ConfidenceRedFlagStep * float64(sc.RedFlags)
	if bump > s.scoring.ConfidenceRedFlagCap {
		bump = s.scoring.ConfidenceRedFlagCap
	}
	conf := base + bump
	if conf > 1 {
		conf = 1
	}
	return conf
}

// isDifferential reports whether either condition documents the other as a
// differential.
func isDifferential(top, other *kb.Condition) bool {
	for _, id := range top.DifferentialFrom {
		if id == other.ID {
			return true
		}
	}
	for _, id := range other.DifferentialFrom {
		if id == top.ID {
			return true
		}
	}
	return false
}
