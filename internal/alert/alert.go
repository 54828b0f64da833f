// Package alert defines the rule-engine facing domain model: per-rule
// evaluations, severities, categories, and the per-refresh snapshot the
// reconciliation core consumes. Fingerprints are opaque values supplied
// by the rule engine; nothing in this repository computes one.
package alert

import (
	"sort"
	"strings"
	"time"
)

// Severity is the outcome level of a rule evaluation.
type Severity string

const (
	SeverityOK       Severity = "OK"
	SeverityWarn     Severity = "WARN"
	SeverityCritical Severity = "CRITICAL"
)

// rank orders severities for aggregation. Unknown values rank below OK
// so malformed input can never escalate a case.
func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarn:
		return 2
	case SeverityOK:
		return 1
	}
	return 0
}

// Valid reports whether s is one of the known severity levels.
func (s Severity) Valid() bool {
	return s == SeverityOK || s == SeverityWarn || s == SeverityCritical
}

// Max returns the higher of two severities.
func (s Severity) Max(other Severity) Severity {
	if other.rank() > s.rank() {
		return other
	}
	return s
}

// Category groups rules into the two checked dimensions.
type Category string

const (
	CategoryCompleteness Category = "completeness"
	CategoryMedical      Category = "medical"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c == CategoryCompleteness || c == CategoryMedical
}

// Evaluation is one rule's result for one case in one refresh cycle.
// The rule engine emits exactly one per (case, rule) per pass.
type Evaluation struct {
	CaseID      string   `json:"case_id"`
	RuleID      string   `json:"rule_id"`
	Severity    Severity `json:"severity"`
	Category    Category `json:"category"`
	Message     string   `json:"message"`
	Explanation string   `json:"explanation,omitempty"`
	Fingerprint string   `json:"fingerprint"`
}

// Snapshot is the rule engine's full output for one case on one
// business date. Version strictly increases each time the engine
// re-computes the station/date; consumers must discard lower versions.
type Snapshot struct {
	StationID    string       `json:"station_id"`
	BusinessDate string       `json:"business_date"` // YYYY-MM-DD
	Version      int64        `json:"version"`
	CaseID       string       `json:"case_id"`
	Evaluations  []Evaluation `json:"evaluations"`
	ReceivedAt   time.Time    `json:"received_at,omitempty"`
}

// Evaluation returns the evaluation for ruleID, if present this pass.
func (s *Snapshot) Evaluation(ruleID string) (*Evaluation, bool) {
	for i := range s.Evaluations {
		if s.Evaluations[i].RuleID == ruleID {
			return &s.Evaluations[i], true
		}
	}
	return nil, false
}

// Set-fingerprint separators. Unit separator between rule id and
// fingerprint, record separator between pairs.
const (
	fieldSep = "\x1f"
	pairSep  = "\x1e"
)

// SetFingerprint is the whole-case matching value for case-scoped
// acknowledgments: the sorted (rule_id, fingerprint) pairs joined into
// one opaque string. Any rule changing, appearing, or disappearing
// yields a different value. This is a canonical join of values the rule
// engine already produced, compared only for equality; it is not a new
// digest.
func (s *Snapshot) SetFingerprint() string {
	pairs := make([]string, 0, len(s.Evaluations))
	for i := range s.Evaluations {
		e := &s.Evaluations[i]
		pairs = append(pairs, e.RuleID+fieldSep+e.Fingerprint)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, pairSep)
}

// MaxSeverity returns the highest severity among evals, or OK when the
// set is empty.
func MaxSeverity(evals []Evaluation) Severity {
	max := SeverityOK
	for i := range evals {
		max = max.Max(evals[i].Severity)
	}
	return max
}
