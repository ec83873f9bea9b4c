package alert

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// AlertStore provides database access for the alert plugin.
type AlertStore struct {
	db *sql.DB
}

// NewAlertStore creates an AlertStore backed by the given database.
func NewAlertStore(db *sql.DB) *AlertStore {
	return &AlertStore{db: db}
}

// InsertAlert records a newly triggered alert.
func (s *AlertStore) InsertAlert(ctx context.Context, a *Alert) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_alerts (
			id, hive_id, condition, severity, message, value, threshold,
			triggered_at, resolved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.HiveID, a.Condition, a.Severity, a.Message, a.Value,
		a.Threshold, a.TriggeredAt, a.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// GetActiveAlert returns the unresolved alert for a condition, or nil.
func (s *AlertStore) GetActiveAlert(ctx context.Context, condition string) (*Alert, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, hive_id, condition, severity, message, value, threshold,
		       triggered_at, resolved_at
		FROM alert_alerts
		WHERE condition = ? AND resolved_at IS NULL
		ORDER BY triggered_at DESC LIMIT 1`,
		condition,
	)
	var a Alert
	err := row.Scan(&a.ID, &a.HiveID, &a.Condition, &a.Severity, &a.Message,
		&a.Value, &a.Threshold, &a.TriggeredAt, &a.ResolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active alert: %w", err)
	}
	return &a, nil
}

// ResolveAlert marks an alert resolved at the given time.
func (s *AlertStore) ResolveAlert(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE alert_alerts SET resolved_at = ? WHERE id = ? AND resolved_at IS NULL`,
		at, id,
	)
	if err != nil {
		return fmt.Errorf("resolve alert: %w", err)
	}
	return nil
}

// ListAlerts returns alerts newest first. activeOnly restricts to
// unresolved alerts.
func (s *AlertStore) ListAlerts(ctx context.Context, activeOnly bool, limit int) ([]Alert, error) {
	query := `
		SELECT id, hive_id, condition, severity, message, value, threshold,
		       triggered_at, resolved_at
		FROM alert_alerts`
	if activeOnly {
		query += ` WHERE resolved_at IS NULL`
	}
	query += ` ORDER BY triggered_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var out []Alert
	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.ID, &a.HiveID, &a.Condition, &a.Severity,
			&a.Message, &a.Value, &a.Threshold, &a.TriggeredAt, &a.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountActive returns the number of unresolved alerts.
func (s *AlertStore) CountActive(ctx context.Context) (int, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alert_alerts WHERE resolved_at IS NULL`)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count active alerts: %w", err)
	}
	return n, nil
}

// DeleteOldResolved prunes resolved alerts older than the cutoff.
func (s *AlertStore) DeleteOldResolved(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM alert_alerts WHERE resolved_at IS NOT NULL AND resolved_at < ?`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("delete old alerts: %w", err)
	}
	return res.RowsAffected()
}
