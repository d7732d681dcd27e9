/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

package audit_export

import (
	"context"
	"encoding/json"
	"time"

	"github.com/choiwab/patient-x/pxchain/data_model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// Schema creates the event table. Events are keyed by ledger and sequence number, so
// exporting the same event twice stores it once.
const Schema = `
CREATE TABLE IF NOT EXISTS px_audit_events (
	ledger        TEXT        NOT NULL,
	seq           BIGINT      NOT NULL,
	type          TEXT        NOT NULL,
	tx_id         TEXT        NOT NULL,
	occurred_at   TIMESTAMPTZ NOT NULL,
	actor_id      TEXT,
	policy_id     TEXT,
	request_id    TEXT,
	record_ref    TEXT,
	submission_id TEXT,
	amount        BIGINT,
	reason        TEXT,
	data          JSONB,
	exported_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (ledger, seq)
);
CREATE INDEX IF NOT EXISTS px_audit_events_type ON px_audit_events (type, occurred_at);
`

// Connect opens a connection pool to dsn.
func Connect(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse audit dsn")
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect audit db")
	}
	return pool, nil
}

// Store is the Postgres Sink.
type Store struct {
	DB *pgxpool.Pool
}

// EnsureSchema creates the event table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.DB.Exec(ctx, Schema)
	return errors.Wrap(err, "create audit schema")
}

// LastSeq returns the highest exported sequence number of ledger, 0 if none.
func (s *Store) LastSeq(ctx context.Context, ledger string) (uint64, error) {
	var seq int64
	err := s.DB.QueryRow(ctx, `SELECT COALESCE(MAX(seq),0) FROM px_audit_events WHERE ledger=$1`, ledger).Scan(&seq)
	if err != nil {
		return 0, errors.Wrapf(err, "read last seq of %v", ledger)
	}
	return uint64(seq), nil
}

// WriteEvents stores events of ledger in one transaction.
func (s *Store) WriteEvents(ctx context.Context, ledger string, events []data_model.Event) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin export")
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, event := range events {
		var data []byte
		if len(event.Data) > 0 {
			if data, err = json.Marshal(event.Data); err != nil {
				return errors.Wrap(err, "marshal event data")
			}
		}
		batch.Queue(`
			INSERT INTO px_audit_events
				(ledger, seq, type, tx_id, occurred_at, actor_id, policy_id, request_id, record_ref, submission_id, amount, reason, data)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
			ON CONFLICT (ledger, seq) DO NOTHING`,
			ledger, int64(event.Seq), string(event.Type), event.TxID, time.Unix(event.Timestamp, 0).UTC(),
			nullable(event.ActorID), nullable(event.PolicyID), nullable(event.RequestID), nullable(event.RecordRef),
			nullable(event.SubmissionID), int64(event.Amount), nullable(event.Reason), data)
	}
	results := tx.SendBatch(ctx, batch)
	for range events {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return errors.Wrap(err, "insert event")
		}
	}
	if err := results.Close(); err != nil {
		return errors.Wrap(err, "close batch")
	}
	return errors.Wrap(tx.Commit(ctx), "commit export")
}

func nullable(s string) *string {
	if len(s) == 0 {
		return nil
	}
	return &s
}
