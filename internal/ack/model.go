package ack

import (
	"time"

	"github.com/linnemanlabs/wardwatch/internal/alert"
)

// State distinguishes the two human actions on an alert.
type State string

const (
	// StateAck is a permanent acknowledgment ("seen/resolved").
	StateAck State = "ACK"

	// StateShift is a temporary deferral ("remind later") and always
	// carries a reason code from the reason catalog.
	StateShift State = "SHIFT"
)

// ScopeCase is the scope value for a whole-case acknowledgment. Any
// other scope value names a single rule_id.
const ScopeCase = "*"

// Record is one acknowledgment or deferral event. A newer record on the
// same (case, scope) supersedes the older one; superseded and undone
// records stay in the audit trail but never match again.
type Record struct {
	ID               string    `json:"id"`
	CaseID           string    `json:"case_id"`
	Scope            string    `json:"scope"`
	State            State     `json:"state"`
	FingerprintAtAck string    `json:"fingerprint_at_ack"`
	Actor            string    `json:"actor"`
	ReasonCode       string    `json:"reason_code,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// EffectiveStatus is the derived, never-persisted status of one alert
// instance after matching the live evaluation against the ack history.
type EffectiveStatus struct {
	RuleID   string         `json:"rule_id"`
	Severity alert.Severity `json:"severity"`
	Category alert.Category `json:"category"`
	Message  string         `json:"message"`
	Open     bool           `json:"open"`
	Ack      *Record        `json:"ack,omitempty"`
}

// CategoryAggregate is the rollup restricted to one category.
type CategoryAggregate struct {
	Severity      alert.Severity `json:"severity"`
	CriticalCount int            `json:"critical_count"`
	WarnCount     int            `json:"warn_count"`
	OpenCount     int            `json:"open_count"`
	AckedCount    int            `json:"acked_count"`
	TotalCount    int            `json:"total_count"`
}

// CaseAggregate is the per-case rollup of effective statuses. Severity
// reflects open alerts only: a fully acknowledged case reads OK.
type CaseAggregate struct {
	Severity      alert.Severity    `json:"severity"`
	CriticalCount int               `json:"critical_count"`
	WarnCount     int               `json:"warn_count"`
	OpenCount     int               `json:"open_count"`
	AckedCount    int               `json:"acked_count"`
	TotalCount    int               `json:"total_count"`
	Completeness  CategoryAggregate `json:"completeness"`
	Medical       CategoryAggregate `json:"medical"`
}

// Reconciliation is the full read model for one case: per-alert
// statuses, the rollup, and the snapshot identity they were computed
// against. Degraded marks a fail-closed pass where the store could not
// be read and every alert was reported open; callers must surface it so
// an all-open result is distinguishable from an empty store.
type Reconciliation struct {
	CaseID       string            `json:"case_id"`
	StationID    string            `json:"station_id"`
	BusinessDate string            `json:"business_date"`
	Version      int64             `json:"version"`
	Statuses     []EffectiveStatus `json:"statuses"`
	Aggregate    CaseAggregate     `json:"aggregate"`
	Degraded     bool              `json:"degraded"`
}
