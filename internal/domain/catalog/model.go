package catalog

import "github.com/medichain/reasoner/internal/kb"

// RedFlagEntry maps one red-flag symptom to every condition that lists it.
type RedFlagEntry struct {
	SymptomID  string   `json:"symptom_id"`
	Conditions []string `json:"conditions"`
}

// EmergencyEntry is one critical-tier condition with its time window.
type EmergencyEntry struct {
	ConditionID        string `json:"condition_id"`
	Name               string `json:"name"`
	TimeSensitive      bool   `json:"time_sensitive"`
	TimeSensitiveHours int    `json:"time_sensitive_hours,omitempty"`
}

// KBInfo describes the currently loaded snapshot.
type KBInfo struct {
	Version    string `json:"version"`
	Source     string `json:"source"`
	LoadedAt   string `json:"loaded_at"`
	Facts      int    `json:"facts"`
	Conditions int    `json:"conditions"`
	Treatments int    `json:"treatments"`
}

func newKBInfo(sn *kb.Snapshot) KBInfo {
	return KBInfo{
		Version:    sn.Version(),
		Source:     sn.SourceDescriptor(),
		LoadedAt:   sn.LoadedAt().Format("2006-01-02T15:04:05Z07:00"),
		Facts:      sn.FactCount(),
		Conditions: len(sn.Conditions()),
		Treatments: len(sn.Treatments()),
	}
}
