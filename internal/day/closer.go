package day

import (
	"context"
	"fmt"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/wardwatch/internal/ack"
	"github.com/linnemanlabs/wardwatch/internal/reasons"
)

// CaseLister yields the cases seen for a station/date.
type CaseLister interface {
	CasesFor(stationID, businessDate string) []string
}

// CloseSummary reports what a day-close rollover did.
type CloseSummary struct {
	StationID    string   `json:"station_id"`
	BusinessDate string   `json:"business_date"`
	Cases        int      `json:"cases"`
	Intents      []Intent `json:"intents,omitempty"`
}

// Closer coordinates the end-of-day rollover: freeze the date, then
// extract carry-forward deferral intents from every case's active
// records. The closed day itself is never mutated.
type Closer struct {
	days    *Registry
	store   ack.Store
	cases   CaseLister
	catalog *reasons.Memory
	logger  log.Logger
}

// NewCloser wires a Closer. Logger may be nil.
func NewCloser(days *Registry, store ack.Store, cases CaseLister, catalog *reasons.Memory, logger log.Logger) *Closer {
	if logger == nil {
		logger = log.Nop()
	}
	return &Closer{
		days:    days,
		store:   store,
		cases:   cases,
		catalog: catalog,
		logger:  logger,
	}
}

// Close performs the rollover for (stationID, businessDate). A store
// read failure for one case skips its carry-forward rather than
// aborting the close; the day is already frozen at that point.
func (c *Closer) Close(ctx context.Context, stationID, businessDate string) (*CloseSummary, error) {
	if err := c.days.Close(stationID, businessDate); err != nil {
		return nil, fmt.Errorf("close %s/%s: %w", stationID, businessDate, err)
	}

	summary := &CloseSummary{
		StationID:    stationID,
		BusinessDate: businessDate,
	}

	for _, caseID := range c.cases.CasesFor(stationID, businessDate) {
		summary.Cases++
		records, err := c.store.ListActive(ctx, caseID)
		if err != nil {
			c.logger.Error(ctx, err, "carry-forward skipped, store read failed", "case_id", caseID)
			continue
		}
		summary.Intents = append(summary.Intents, CarryForward(records, c.catalog, businessDate)...)
	}

	c.logger.Info(ctx, "business date closed",
		"station", stationID,
		"business_date", businessDate,
		"cases", summary.Cases,
		"carried_forward", len(summary.Intents),
	)
	return summary, nil
}
