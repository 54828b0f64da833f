// Package snapshot keeps the latest rule-engine snapshot per case.
// Sources (HTTP ingest, Kafka, poller) all funnel through Registry.Put,
// which enforces version ordering so a stale in-flight snapshot can
// never replace a newer one.
package snapshot

import (
	"sort"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/wardwatch/internal/alert"
)

// ErrStale rejects a snapshot at or below the version already held.
var ErrStale = xerrors.New("stale snapshot")

// Observer is consulted on every Put with the snapshot's station, date,
// and version. It rejects stale versions and closed dates; the day
// registry is the production implementation.
type Observer func(stationID, businessDate string, version int64) error

// Registry is the in-memory latest-snapshot store.
type Registry struct {
	mu       sync.RWMutex
	byCase   map[string]*alert.Snapshot
	byDay    map[dayKey]map[string]struct{} // (station, date) -> case IDs
	observer Observer
}

type dayKey struct {
	station string
	date    string
}

// NewRegistry initializes a Registry. observer may be nil, in which
// case only per-case version ordering is enforced.
func NewRegistry(observer Observer) *Registry {
	return &Registry{
		byCase:   make(map[string]*alert.Snapshot),
		byDay:    make(map[dayKey]map[string]struct{}),
		observer: observer,
	}
}

// Put stores snap as the latest snapshot for its case. The observer
// decides whether the version is acceptable for the station/date; the
// per-case check additionally discards a snapshot at or below the
// version already held for that case (late responses from a slow
// fetch, duplicate deliveries).
func (r *Registry) Put(snap *alert.Snapshot) error {
	if r.observer != nil {
		if err := r.observer(snap.StationID, snap.BusinessDate, snap.Version); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.byCase[snap.CaseID]; ok {
		if sameDay(cur, snap) && snap.Version <= cur.Version {
			return ErrStale
		}
	}

	cp := *snap
	cp.Evaluations = append([]alert.Evaluation(nil), snap.Evaluations...)
	if cp.ReceivedAt.IsZero() {
		cp.ReceivedAt = time.Now().UTC()
	}
	r.byCase[cp.CaseID] = &cp

	k := dayKey{cp.StationID, cp.BusinessDate}
	cases, ok := r.byDay[k]
	if !ok {
		cases = make(map[string]struct{})
		r.byDay[k] = cases
	}
	cases[cp.CaseID] = struct{}{}
	return nil
}

// Case returns the latest snapshot for caseID, as a copy.
func (r *Registry) Case(caseID string) (*alert.Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.byCase[caseID]
	if !ok {
		return nil, false
	}
	cp := *snap
	cp.Evaluations = append([]alert.Evaluation(nil), snap.Evaluations...)
	return &cp, true
}

// CasesFor returns the sorted case IDs seen for a station/date.
func (r *Registry) CasesFor(stationID, businessDate string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cases := r.byDay[dayKey{stationID, businessDate}]
	if len(cases) == 0 {
		return nil
	}
	out := make([]string, 0, len(cases))
	for id := range cases {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func sameDay(a, b *alert.Snapshot) bool {
	return a.StationID == b.StationID && a.BusinessDate == b.BusinessDate
}
