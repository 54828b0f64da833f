// Package kafkasource consumes rule-engine snapshots from a Kafka
// topic and feeds them into the snapshot registry. It is an optional
// alternative to HTTP push ingest, enabled when brokers are configured.
package kafkasource

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/linnemanlabs/go-core/log"
	"github.com/segmentio/kafka-go"

	"github.com/linnemanlabs/wardwatch/internal/ack"
	"github.com/linnemanlabs/wardwatch/internal/alert"
	"github.com/linnemanlabs/wardwatch/internal/day"
	"github.com/linnemanlabs/wardwatch/internal/snapshot"
)

// Registry is the subset of the snapshot registry the source needs.
type Registry interface {
	Put(snap *alert.Snapshot) error
}

// Source reads snapshot messages from Kafka.
type Source struct {
	reader   *kafka.Reader
	registry Registry
	logger   log.Logger
	hooks    ack.Hooks
}

// Config holds the Kafka consumer settings.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// New builds a Source with a group consumer, mirroring a standard
// Reader setup.
func New(cfg Config, registry Registry, logger log.Logger, hooks ack.Hooks) *Source {
	if logger == nil {
		logger = log.Nop()
	}
	return &Source{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    cfg.Topic,
			GroupID:  cfg.GroupID,
			MinBytes: 1,
			MaxBytes: 10e6, // 10MB
		}),
		registry: registry,
		logger:   logger,
		hooks:    hooks,
	}
}

// Run consumes until ctx is cancelled. Malformed messages and stale
// versions are logged and skipped; the loop only stops on context
// cancellation or reader closure.
func (s *Source) Run(ctx context.Context) error {
	for {
		msg, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		var snap alert.Snapshot
		if err := json.Unmarshal(msg.Value, &snap); err != nil {
			s.hooks.OnSnapshotResult("invalid")
			s.logger.Error(ctx, err, "invalid snapshot message", "offset", msg.Offset, "partition", msg.Partition)
			continue
		}

		if err := s.registry.Put(&snap); err != nil {
			if errors.Is(err, snapshot.ErrStale) || errors.Is(err, day.ErrStaleVersion) {
				s.hooks.OnSnapshotResult("stale")
				s.logger.Info(ctx, "discarded stale snapshot",
					"case_id", snap.CaseID, "version", snap.Version)
				continue
			}
			s.hooks.OnSnapshotResult("rejected")
			s.logger.Error(ctx, err, "snapshot rejected",
				"case_id", snap.CaseID, "station", snap.StationID, "business_date", snap.BusinessDate)
			continue
		}

		s.hooks.OnSnapshotResult("ok")
	}
}

// Close shuts down the underlying reader.
func (s *Source) Close() error {
	return s.reader.Close()
}
