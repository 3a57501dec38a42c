package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bdobrica/Cinematic/common/trace"
)

// AuditEntry is one recorded mutation attempt.
type AuditEntry struct {
	ID        int64
	Timestamp time.Time
	TraceID   string
	Actor     string
	Action    string
	Target    sql.NullString
	Result    string
}

// Record writes one audit row. The trace ID is taken from ctx so a log line
// and its audit row can be correlated.
func (s *Store) Record(ctx context.Context, actor, action, target, result string) error {
	var targetNull sql.NullString
	if target != "" {
		targetNull = sql.NullString{String: target, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (ts, trace_id, actor, action, target, result)
		VALUES (?, ?, ?, ?, ?, ?)
	`, time.Now(), trace.FromContext(ctx), actor, action, targetNull, result)
	if err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// RecentAudit returns the newest entries, most recent first.
func (s *Store) RecentAudit(ctx context.Context, limit int) ([]*AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, trace_id, actor, action, target, result
		FROM audit_log
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		entry := &AuditEntry{}
		if err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.TraceID, &entry.Actor,
			&entry.Action, &entry.Target, &entry.Result); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit log: %w", err)
	}
	return entries, nil
}

// AuditByActor returns one user's recent mutations, oldest first.
func (s *Store) AuditByActor(ctx context.Context, actor string, limit int) ([]*AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, trace_id, actor, action, target, result
		FROM audit_log
		WHERE actor = ?
		ORDER BY ts ASC, id ASC
		LIMIT ?
	`, actor, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit log by actor: %w", err)
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		entry := &AuditEntry{}
		if err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.TraceID, &entry.Actor,
			&entry.Action, &entry.Target, &entry.Result); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit log: %w", err)
	}
	return entries, nil
}
