// Package poller periodically fetches rule-engine snapshots over HTTP
// for deployments where the engine exposes a pull endpoint instead of
// pushing. The loop is an explicit scheduled task: it stops on context
// cancellation, and responses that arrive after a newer version has
// already been stored are discarded by the registry's version check.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/wardwatch/internal/ack"
	"github.com/linnemanlabs/wardwatch/internal/alert"
	"github.com/linnemanlabs/wardwatch/internal/day"
	"github.com/linnemanlabs/wardwatch/internal/snapshot"
)

// Registry is the subset of the snapshot registry the poller needs.
type Registry interface {
	Put(snap *alert.Snapshot) error
}

// Poller fetches the rule engine's snapshot feed on an interval.
type Poller struct {
	endpoint string
	interval time.Duration
	client   *http.Client
	registry Registry
	logger   log.Logger
	hooks    ack.Hooks
}

// New builds a Poller. The HTTP timeout is capped below the interval so
// a hung fetch can never overlap the next tick's work indefinitely.
func New(endpoint string, interval time.Duration, registry Registry, logger log.Logger, hooks ack.Hooks) *Poller {
	if logger == nil {
		logger = log.Nop()
	}
	timeout := interval
	if timeout > 10*time.Second {
		timeout = 10 * time.Second
	}
	return &Poller{
		endpoint: endpoint,
		interval: interval,
		client:   &http.Client{Timeout: timeout},
		registry: registry,
		logger:   logger,
		hooks:    hooks,
	}
}

// Run polls until ctx is cancelled. Fetch errors are logged and the
// loop continues; the prior snapshots stay current until replaced.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.poll(ctx); err != nil && !errors.Is(err, context.Canceled) {
				p.logger.Error(ctx, err, "snapshot poll failed", "endpoint", p.endpoint)
			}
		}
	}
}

func (p *Poller) poll(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch snapshots: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch snapshots: unexpected status %d", resp.StatusCode)
	}

	var snaps []alert.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snaps); err != nil {
		return fmt.Errorf("decode snapshots: %w", err)
	}

	for i := range snaps {
		if err := p.registry.Put(&snaps[i]); err != nil {
			if errors.Is(err, snapshot.ErrStale) || errors.Is(err, day.ErrStaleVersion) {
				p.hooks.OnSnapshotResult("stale")
				continue
			}
			p.hooks.OnSnapshotResult("rejected")
			p.logger.Error(ctx, err, "snapshot rejected",
				"case_id", snaps[i].CaseID, "version", snaps[i].Version)
			continue
		}
		p.hooks.OnSnapshotResult("ok")
	}
	return nil
}
