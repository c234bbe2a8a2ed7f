package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/errors"
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetSetting returns the raw JSON stored under key.
// The boolean is false when the key has never been written.
func GetSetting(ctx context.Context, q Querier, key string) (json.RawMessage, bool, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value_json FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewInternal(err)
	}
	return json.RawMessage(value), true, nil
}

// PutSetting inserts or replaces the JSON stored under key.
func PutSetting(ctx context.Context, q Querier, key string, value json.RawMessage) error {
	query := `
		INSERT INTO settings (key, value_json, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value_json = excluded.value_json, updated_at = excluded.updated_at
	`
	if _, err := q.ExecContext(ctx, query, key, string(value), time.Now().Unix()); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// DeleteSetting removes key. Deleting a missing key is not an error.
func DeleteSetting(ctx context.Context, q Querier, key string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// SettingKeys lists every stored key in order.
func SettingKeys(ctx context.Context, q Querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT key FROM settings ORDER BY key`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errors.NewInternal(err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return keys, nil
}

// WithTx runs fn inside a transaction, committing on success and rolling back
// on error or panic.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// AuditRun is one row of audit history.
type AuditRun struct {
	ID            string          `json:"id"`
	RanAt         int64           `json:"ran_at"`
	Baseline      bool            `json:"baseline"`
	DetectedCount int             `json:"detected_count"`
	Added         json.RawMessage `json:"added,omitempty"`
	Removed       json.RawMessage `json:"removed,omitempty"`
	AlertActive   bool            `json:"alert_active"`
	EmailSent     bool            `json:"email_sent"`
}

// InsertAuditRun records one audit run.
func InsertAuditRun(ctx context.Context, q Querier, r *AuditRun) error {
	query := `
		INSERT INTO audit_runs (
			id, ran_at, baseline, detected_count, added_json, removed_json, alert_active, email_sent
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		r.ID, r.RanAt, boolToInt(r.Baseline), r.DetectedCount,
		toNullJSON(r.Added), toNullJSON(r.Removed),
		boolToInt(r.AlertActive), boolToInt(r.EmailSent),
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ListAuditRuns returns the most recent runs, newest first.
func ListAuditRuns(ctx context.Context, q Querier, limit int) ([]AuditRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, ran_at, baseline, detected_count, added_json, removed_json, alert_active, email_sent
		FROM audit_runs
		ORDER BY ran_at DESC, id DESC
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	runs := []AuditRun{}
	for rows.Next() {
		var (
			r                              AuditRun
			baseline, alertActive, emailed int
			added, removed                 sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.RanAt, &baseline, &r.DetectedCount, &added, &removed, &alertActive, &emailed); err != nil {
			return nil, errors.NewInternal(err)
		}
		r.Baseline = baseline != 0
		r.AlertActive = alertActive != 0
		r.EmailSent = emailed != 0
		if added.Valid {
			r.Added = json.RawMessage(added.String)
		}
		if removed.Valid {
			r.Removed = json.RawMessage(removed.String)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return runs, nil
}

// PruneAuditRuns keeps the newest keep runs and deletes the rest.
func PruneAuditRuns(ctx context.Context, q Querier, keep int) (int64, error) {
	query := `
		DELETE FROM audit_runs WHERE id NOT IN (
			SELECT id FROM audit_runs ORDER BY ran_at DESC, id DESC LIMIT ?
		)
	`
	result, err := q.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// toNullJSON stores empty payloads as NULL.
func toNullJSON(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}
