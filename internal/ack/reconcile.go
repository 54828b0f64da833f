package ack

import (
	"github.com/linnemanlabs/wardwatch/internal/alert"
)

// Reconcile computes the effective status of every alert in snap
// against the active ack records for the case. It is pure and safe to
// call concurrently and repeatedly; it never mutates snap or records.
//
// Matching per rule: the rule-scoped record wins over the case-scoped
// one; a record suppresses "open" only while its captured fingerprint
// equals the live one (the rule's own fingerprint for rule scope, the
// snapshot set-fingerprint for case scope). A mismatched record is
// stale and ignored, which silently reactivates the alert. Severity is
// never consulted: an escalation with an unchanged fingerprint keeps
// the ack valid.
//
// Records whose scope no longer fires this pass produce no status at
// all; orphaned acks are not surfaced and count toward nothing.
func Reconcile(snap *alert.Snapshot, records []Record) []EffectiveStatus {
	byScope := make(map[string]*Record, len(records))
	for i := range records {
		byScope[records[i].Scope] = &records[i]
	}

	// The case-scoped record matches against the whole evaluation set.
	// One stale rule invalidates it for every alert it covered.
	var caseRec *Record
	if rec, ok := byScope[ScopeCase]; ok && rec.FingerprintAtAck == snap.SetFingerprint() {
		caseRec = rec
	}

	statuses := make([]EffectiveStatus, 0, len(snap.Evaluations))
	for i := range snap.Evaluations {
		ev := &snap.Evaluations[i]
		st := EffectiveStatus{
			RuleID:   ev.RuleID,
			Severity: ev.Severity,
			Category: ev.Category,
			Message:  ev.Message,
			Open:     true,
		}

		if rec, ok := byScope[ev.RuleID]; ok {
			if rec.FingerprintAtAck == ev.Fingerprint {
				st.Open = false
				st.Ack = cloneRecord(rec)
			}
			// stale rule-scoped record: leave open, do not fall back to
			// the case scope; the actor's latest intent for this rule
			// was rule-scoped and it no longer holds.
		} else if caseRec != nil {
			st.Open = false
			st.Ack = cloneRecord(caseRec)
		}

		statuses = append(statuses, st)
	}
	return statuses
}

func cloneRecord(rec *Record) *Record {
	cp := *rec
	return &cp
}
