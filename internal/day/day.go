// Package day governs business-date lifecycle: each (station, date) is
// ACTIVE while the rule engine may still re-compute it and CLOSED once
// the end-of-day rollover freezes it for reporting. Acknowledgment
// writes only apply to ACTIVE dates.
package day

import (
	"sync"

	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/wardwatch/internal/ack"
	"github.com/linnemanlabs/wardwatch/internal/reasons"
)

// Phase is the lifecycle state of a (station, business_date).
type Phase string

const (
	PhaseActive Phase = "ACTIVE"
	PhaseClosed Phase = "CLOSED"
)

var (
	// ErrAlreadyClosed rejects a second close of the same date.
	ErrAlreadyClosed = xerrors.New("business date already closed")

	// ErrStaleVersion rejects a snapshot version below the last
	// observed one for the date.
	ErrStaleVersion = xerrors.New("stale snapshot version")

	// ErrClosed rejects new snapshot versions for a closed date.
	ErrClosed = xerrors.New("business date is closed")
)

// Day is the tracked state of one (station, business_date).
type Day struct {
	StationID    string `json:"station_id"`
	BusinessDate string `json:"business_date"`
	Version      int64  `json:"version"`
	Phase        Phase  `json:"phase"`
}

type key struct {
	station string
	date    string
}

// Registry tracks day phases and enforces version monotonicity.
type Registry struct {
	mu   sync.RWMutex
	days map[key]*Day
}

// NewRegistry initializes an empty Registry.
func NewRegistry() *Registry {
	return &Registry{days: make(map[key]*Day)}
}

// Observe records a snapshot version for a (station, date), creating
// the day as ACTIVE on first sight. One rule-engine pass emits many
// case snapshots sharing the pass version, so equal versions are
// accepted; a lower version is stale and rejected, and a closed date
// accepts no versions at all.
func (r *Registry) Observe(stationID, businessDate string, version int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{stationID, businessDate}
	d, ok := r.days[k]
	if !ok {
		r.days[k] = &Day{
			StationID:    stationID,
			BusinessDate: businessDate,
			Version:      version,
			Phase:        PhaseActive,
		}
		return nil
	}
	if d.Phase == PhaseClosed {
		return ErrClosed
	}
	if version < d.Version {
		return ErrStaleVersion
	}
	d.Version = version
	return nil
}

// Close transitions a date from ACTIVE to CLOSED, exactly once. Closing
// a date never seen creates it directly in CLOSED so late snapshots for
// it are rejected too.
func (r *Registry) Close(stationID, businessDate string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{stationID, businessDate}
	d, ok := r.days[k]
	if !ok {
		r.days[k] = &Day{
			StationID:    stationID,
			BusinessDate: businessDate,
			Phase:        PhaseClosed,
		}
		return nil
	}
	if d.Phase == PhaseClosed {
		return ErrAlreadyClosed
	}
	d.Phase = PhaseClosed
	return nil
}

// Closed reports whether a date has been closed. Unknown dates are not
// closed; they become ACTIVE when first observed.
func (r *Registry) Closed(stationID, businessDate string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.days[key{stationID, businessDate}]
	return ok && d.Phase == PhaseClosed
}

// Get returns a copy of the tracked day, if known.
func (r *Registry) Get(stationID, businessDate string) (Day, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.days[key{stationID, businessDate}]
	if !ok {
		return Day{}, false
	}
	return *d, true
}

// Intent is a forward-looking deferral produced at day close: a SHIFT
// whose reason carries over re-enters the next ACTIVE day as a fresh
// action, leaving the closed day untouched.
type Intent struct {
	CaseID     string `json:"case_id"`
	Scope      string `json:"scope"`
	Actor      string `json:"actor"`
	ReasonCode string `json:"reason_code"`
	FromDate   string `json:"from_date"`
}

// CarryForward extracts the deferral intents from a closed day's active
// records. Only SHIFT records whose reason is flagged carry-forward in
// the catalog produce intents; everything else expires with the day.
func CarryForward(records []ack.Record, catalog *reasons.Memory, closedDate string) []Intent {
	var intents []Intent
	for i := range records {
		rec := &records[i]
		if rec.State != ack.StateShift {
			continue
		}
		code, ok := catalog.Get(rec.ReasonCode)
		if !ok || !code.CarryForward {
			continue
		}
		intents = append(intents, Intent{
			CaseID:     rec.CaseID,
			Scope:      rec.Scope,
			Actor:      rec.Actor,
			ReasonCode: rec.ReasonCode,
			FromDate:   closedDate,
		})
	}
	return intents
}
