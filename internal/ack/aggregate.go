package ack

import (
	"github.com/linnemanlabs/wardwatch/internal/alert"
)

// Aggregate rolls per-alert effective statuses up into the case-level
// read model. Pure projection; recomputed on every reconciliation pass.
//
// Case severity considers open alerts only, so a case whose CRITICAL
// alerts are all acknowledged reads OK. Open and acked are disjoint and
// sum to total, per alert and per category.
func Aggregate(statuses []EffectiveStatus) CaseAggregate {
	agg := CaseAggregate{
		Severity:     alert.SeverityOK,
		Completeness: CategoryAggregate{Severity: alert.SeverityOK},
		Medical:      CategoryAggregate{Severity: alert.SeverityOK},
	}

	for i := range statuses {
		st := &statuses[i]

		apply(&agg.Severity, &agg.CriticalCount, &agg.WarnCount, &agg.OpenCount, &agg.AckedCount, &agg.TotalCount, st)

		switch st.Category {
		case alert.CategoryCompleteness:
			c := &agg.Completeness
			apply(&c.Severity, &c.CriticalCount, &c.WarnCount, &c.OpenCount, &c.AckedCount, &c.TotalCount, st)
		case alert.CategoryMedical:
			m := &agg.Medical
			apply(&m.Severity, &m.CriticalCount, &m.WarnCount, &m.OpenCount, &m.AckedCount, &m.TotalCount, st)
		}
	}

	return agg
}

func apply(sev *alert.Severity, critical, warn, open, acked, total *int, st *EffectiveStatus) {
	*total++
	switch st.Severity {
	case alert.SeverityCritical:
		*critical++
	case alert.SeverityWarn:
		*warn++
	}
	if st.Open {
		*open++
		*sev = sev.Max(st.Severity)
	} else {
		*acked++
	}
}
