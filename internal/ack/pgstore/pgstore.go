// Package pgstore provides a PostgreSQL implementation of ack.Store.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/wardwatch/internal/ack"
)

var tracer = otel.Tracer("github.com/linnemanlabs/wardwatch/internal/ack/pgstore")

//go:embed schema.sql
var schema string

// Store persists ack records in PostgreSQL. The audit trail is
// append-only; supersession is seq order and undo is a tombstone marker
// on the head record, so writes to the same (case, scope) get a total
// order from the database sequence with no client-side locking.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Record appends rec to the audit trail. By seq order it immediately
// supersedes any prior record for the same (case, scope).
func (s *Store) Record(ctx context.Context, rec *ack.Record) error {
	ctx, span := tracer.Start(ctx, "pgstore.Record", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	var reason *string
	if rec.ReasonCode != "" {
		reason = &rec.ReasonCode
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO ack_records (id, case_id, scope, state, fingerprint_at_ack, actor, reason_code, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.CaseID, rec.Scope, string(rec.State), rec.FingerprintAtAck, rec.Actor, reason, rec.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert ack record: %w", err)
	}
	return nil
}

// Undo tombstones the head record for (caseID, scope). The single
// UPDATE targets the highest-seq row only if it is not already undone,
// so concurrent undos resolve to one winner and superseded history can
// never resurface.
func (s *Store) Undo(ctx context.Context, caseID, scope string) error {
	ctx, span := tracer.Start(ctx, "pgstore.Undo", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	tag, err := s.pool.Exec(ctx,
		`UPDATE ack_records SET undone_at = now()
		 WHERE seq = (
		     SELECT seq FROM ack_records
		     WHERE case_id = $1 AND scope = $2
		     ORDER BY seq DESC LIMIT 1
		 ) AND undone_at IS NULL`,
		caseID, scope,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("undo ack record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ack.ErrNotFound
	}
	return nil
}

// ListActive returns the head record per scope for a case, excluding
// undone heads.
func (s *Store) ListActive(ctx context.Context, caseID string) ([]ack.Record, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListActive", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT id, case_id, scope, state, fingerprint_at_ack, actor, reason_code, created_at
		 FROM (
		     SELECT DISTINCT ON (scope) *
		     FROM ack_records
		     WHERE case_id = $1
		     ORDER BY scope, seq DESC
		 ) head
		 WHERE undone_at IS NULL`,
		caseID,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query active records: %w", err)
	}
	defer rows.Close()

	var out []ack.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// Audit returns every record ever written for a case in write order,
// including superseded and undone ones.
func (s *Store) Audit(ctx context.Context, caseID string) ([]ack.Record, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Audit", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT id, case_id, scope, state, fingerprint_at_ack, actor, reason_code, created_at
		 FROM ack_records WHERE case_id = $1 ORDER BY seq`,
		caseID,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var out []ack.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (*ack.Record, error) {
	var (
		rec    ack.Record
		state  string
		reason *string
	)
	err := row.Scan(&rec.ID, &rec.CaseID, &rec.Scope, &state, &rec.FingerprintAtAck, &rec.Actor, &reason, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ack.ErrNotFound
		}
		return nil, fmt.Errorf("scan record: %w", err)
	}
	rec.State = ack.State(state)
	if reason != nil {
		rec.ReasonCode = *reason
	}
	return &rec, nil
}
