package catalog

import (
	"context"
	"sort"

	"github.com/medichain/reasoner/internal/kb"
)

// Service is the read-mostly query surface over the knowledge graph. Every
// method reads one snapshot for its whole duration, so a concurrent reload
// can never produce a torn answer.
type Service struct {
	store *kb.Store
}

func NewService(store *kb.Store) *Service {
	return &Service{store: store}
}

func (s *Service) Info() KBInfo {
	return newKBInfo(s.store.Snapshot())
}

// Reload swaps in a fresh snapshot from descriptor and returns its info.
func (s *Service) Reload(ctx context.Context, descriptor string) (KBInfo, error) {
	if err := s.store.Reload(ctx, descriptor); err != nil {
		return KBInfo{}, err
	}
	return s.Info(), nil
}

func (s *Service) Conditions(limit, offset int) ([]*kb.Condition, int) {
	all := s.store.Snapshot().Conditions()
	return page(all, limit, offset), len(all)
}

func (s *Service) Condition(id string) (*kb.Condition, error) {
	if id == "" {
		return nil, &kb.InvalidQueryError{Parameter: "condition-id", Value: id, Reason: "must not be empty"}
	}
	cond := s.store.Snapshot().Condition(id)
	if cond == nil {
		return nil, &kb.InvalidQueryError{Parameter: "condition-id", Value: id, Reason: "unknown condition"}
	}
	return cond, nil
}

func (s *Service) Treatments(limit, offset int) ([]*kb.Treatment, int) {
	all := s.store.Snapshot().Treatments()
	return page(all, limit, offset), len(all)
}

func (s *Service) Treatment(id string) (*kb.Treatment, error) {
	tr := s.store.Snapshot().Treatment(id)
	if tr == nil {
		return nil, &kb.UnknownTreatmentError{TreatmentID: id}
	}
	return tr, nil
}

// Emergencies returns every critical-tier condition with its treatment
// window, most time-pressed first.
func (s *Service) Emergencies() []EmergencyEntry {
	sn := s.store.Snapshot()
	out := []EmergencyEntry{}
	for _, id := range sn.EmergencyConditions() {
		cond := sn.Condition(id)
		out = append(out, EmergencyEntry{
			ConditionID:        cond.ID,
			Name:               cond.Name,
			TimeSensitive:      cond.TimeSensitive,
			TimeSensitiveHours: cond.TimeSensitiveHours,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TimeSensitive != b.TimeSensitive {
			return a.TimeSensitive
		}
		if a.TimeSensitive && a.TimeSensitiveHours != b.TimeSensitiveHours {
			return a.TimeSensitiveHours < b.TimeSensitiveHours
		}
		return a.ConditionID < b.ConditionID
	})
	return out
}

// RedFlags returns the red-flag symptoms of one condition.
func (s *Service) RedFlags(conditionID string) ([]string, error) {
	cond, err := s.Condition(conditionID)
	if err != nil {
		return nil, err
	}
	return cond.RedFlagList, nil
}

// AllRedFlags inverts the red-flag index: each entry maps a symptom to
// every condition it is a red flag for, in symptom order.
func (s *Service) AllRedFlags() []RedFlagEntry {
	sn := s.store.Snapshot()
	bySymptom := make(map[string][]string)
	for _, f := range sn.ByRelation(kb.RelRedFlagSymptom) {
		bySymptom[f.Object] = append(bySymptom[f.Object], f.Subject)
	}
	ids := make([]string, 0, len(bySymptom))
	for id := range bySymptom {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]RedFlagEntry, 0, len(ids))
	for _, id := range ids {
		conds := bySymptom[id]
		sort.Strings(conds)
		out = append(out, RedFlagEntry{SymptomID: id, Conditions: conds})
	}
	return out
}

// LabTests returns the labs required for one condition. A known condition
// with no documented labs yields an empty list, not an error.
func (s *Service) LabTests(conditionID string) ([]kb.LabTest, error) {
	if _, err := s.Condition(conditionID); err != nil {
		return nil, err
	}
	tests := s.store.Snapshot().LabTests(conditionID)
	if tests == nil {
		tests = []kb.LabTest{}
	}
	return tests, nil
}

func (s *Service) AllLabTests() []kb.LabTest {
	return s.store.Snapshot().AllLabTests()
}

// Imaging returns the imaging studies required for one condition.
func (s *Service) Imaging(conditionID string) ([]kb.ImagingRequirement, error) {
	if _, err := s.Condition(conditionID); err != nil {
		return nil, err
	}
	img := s.store.Snapshot().Imaging(conditionID)
	if img == nil {
		img = []kb.ImagingRequirement{}
	}
	return img, nil
}

func (s *Service) AllImaging() []kb.ImagingRequirement {
	return s.store.Snapshot().AllImaging()
}

func page[T any](all []T, limit, offset int) []T {
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}
