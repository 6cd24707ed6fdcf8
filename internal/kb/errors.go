package kb

import "fmt"

// LoadError reports a malformed or inconsistent fact source. A LoadError is
// fatal: the store refuses partial loads, so the previous snapshot (if any)
// stays in place.
type LoadError struct {
	Source   string   // descriptor of the offending source
	Subject  string   // offending identifier, when known
	Relation Relation // offending relation, when known
	Reason   string
}

func (e *LoadError) Error() string {
	msg := "kb: load failed"
	if e.Source != "" {
		msg += " from " + e.Source
	}
	if e.Subject != "" {
		msg += fmt.Sprintf(": subject %q", e.Subject)
	}
	if e.Relation != "" {
		msg += fmt.Sprintf(" relation %q", e.Relation)
	}
	return msg + ": " + e.Reason
}

// InvalidQueryError reports an empty or unknown identifier passed by a
// caller. It is recoverable: the caller should fix its input.
type InvalidQueryError struct {
	Parameter string // the parameter name, e.g. "condition-id"
	Value     string
	Reason    string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("kb: invalid query: %s %q: %s", e.Parameter, e.Value, e.Reason)
}

// UnknownTreatmentError reports a safety validation request for a treatment
// absent from the store. It exists so callers can never mistake "treatment
// not found" for "treatment has no contraindications".
type UnknownTreatmentError struct {
	TreatmentID string
}

func (e *UnknownTreatmentError) Error() string {
	return fmt.Sprintf("kb: unknown treatment %q", e.TreatmentID)
}
