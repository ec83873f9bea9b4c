package learning

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/GaiaForge/beehive-monitoring/pkg/hive"
)

// LearningStore provides database access for the learning plugin:
// anomaly history and a queryable baseline mirror.
type LearningStore struct {
	db *sql.DB
}

// NewLearningStore creates a LearningStore backed by the given database.
func NewLearningStore(db *sql.DB) *LearningStore {
	return &LearningStore{db: db}
}

// InsertAnomaly records a detected anomaly.
func (s *LearningStore) InsertAnomaly(ctx context.Context, a *hive.Anomaly) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO learning_anomalies (
			id, hive_id, channel, value, expected, deviation, band,
			description, detected_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.HiveID, a.Channel, a.Value, a.Expected, a.Deviation,
		a.Band, a.Description, a.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("insert anomaly: %w", err)
	}
	return nil
}

// ListAnomalies returns the most recent anomalies, optionally filtered
// by channel, newest first.
func (s *LearningStore) ListAnomalies(ctx context.Context, channel string, limit int) ([]hive.Anomaly, error) {
	query := `
		SELECT id, hive_id, channel, value, expected, deviation, band,
		       description, detected_at
		FROM learning_anomalies`
	args := []any{}
	if channel != "" {
		query += ` WHERE channel = ?`
		args = append(args, channel)
	}
	query += ` ORDER BY detected_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list anomalies: %w", err)
	}
	defer rows.Close()

	var out []hive.Anomaly
	for rows.Next() {
		var a hive.Anomaly
		if err := rows.Scan(
			&a.ID, &a.HiveID, &a.Channel, &a.Value, &a.Expected,
			&a.Deviation, &a.Band, &a.Description, &a.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("scan anomaly row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteOldAnomalies removes anomalies detected before the cutoff and
// returns the number deleted.
func (s *LearningStore) DeleteOldAnomalies(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM learning_anomalies WHERE detected_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old anomalies: %w", err)
	}
	return res.RowsAffected()
}

// UpsertBaseline mirrors the learned baseline into the database so it
// can be queried alongside anomaly history. One row per channel, with
// audio bands keyed by band index.
func (s *LearningStore) UpsertBaseline(ctx context.Context, hiveID string, b hive.BaselineSnapshot, samples uint64, established bool) error {
	type row struct {
		channel string
		band    int
		mean    float64
		stdDev  float64
	}
	rs := []row{
		{hive.ChannelTemperature, -1, b.TempMean, b.TempStdDev},
		{hive.ChannelHumidity, -1, b.HumidityMean, b.HumidityStdDev},
		{hive.ChannelPressure, -1, b.PressureMean, b.PressureStdDev},
		{hive.ChannelWeight, -1, b.WeightMean, b.WeightStdDev},
	}
	for i := 0; i < hive.NumAudioBands; i++ {
		rs = append(rs, row{hive.ChannelAudio, i, b.AudioEnergy[i], b.AudioStdDev[i]})
	}

	est := 0
	if established {
		est = 1
	}
	now := time.Now()
	for _, r := range rs {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO learning_baselines (
				hive_id, channel, band, mean, std_dev, samples, established, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			hiveID, r.channel, r.band, r.mean, r.stdDev, samples, est, now,
		)
		if err != nil {
			return fmt.Errorf("upsert baseline %s: %w", r.channel, err)
		}
	}
	return nil
}
