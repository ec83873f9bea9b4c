package sampler

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/GaiaForge/beehive-monitoring/pkg/hive"
)

// SamplerStore persists the raw readings history.
type SamplerStore struct {
	db *sql.DB
}

// NewSamplerStore creates a SamplerStore backed by the given database.
func NewSamplerStore(db *sql.DB) *SamplerStore {
	return &SamplerStore{db: db}
}

// InsertReading appends one reading to the history.
func (s *SamplerStore) InsertReading(ctx context.Context, r *hive.Reading) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sampler_readings (
			hive_id, temperature, humidity, pressure, weight,
			audio_0, audio_1, audio_2, audio_3,
			motion_mag, light_level, battery_v, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.HiveID, r.Temperature, r.Humidity, r.Pressure, r.Weight,
		r.Audio[0], r.Audio[1], r.Audio[2], r.Audio[3],
		r.Motion.Magnitude(), r.LightLevel, r.BatteryVolt, r.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

// ReadingRow is a stored reading. Motion is reduced to its magnitude.
type ReadingRow struct {
	HiveID      string                 `json:"hive_id"`
	Temperature float64                `json:"temperature"`
	Humidity    float64                `json:"humidity"`
	Pressure    float64                `json:"pressure"`
	Weight      float64                `json:"weight"`
	Audio       [hive.NumAudioBands]float64 `json:"audio"`
	MotionMag   float64                `json:"motion_mag"`
	LightLevel  float64                `json:"light_level"`
	BatteryVolt float64                `json:"battery_volt"`
	Timestamp   time.Time              `json:"timestamp"`
}

// ListReadings returns readings since the given time, newest first,
// capped at limit.
func (s *SamplerStore) ListReadings(ctx context.Context, since time.Time, limit int) ([]ReadingRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hive_id, temperature, humidity, pressure, weight,
		       audio_0, audio_1, audio_2, audio_3,
		       motion_mag, light_level, battery_v, timestamp
		FROM sampler_readings
		WHERE timestamp >= ?
		ORDER BY timestamp DESC LIMIT ?`,
		since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	defer rows.Close()

	var out []ReadingRow
	for rows.Next() {
		var r ReadingRow
		if err := rows.Scan(
			&r.HiveID, &r.Temperature, &r.Humidity, &r.Pressure, &r.Weight,
			&r.Audio[0], &r.Audio[1], &r.Audio[2], &r.Audio[3],
			&r.MotionMag, &r.LightLevel, &r.BatteryVolt, &r.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan reading row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteOldReadings prunes readings older than the cutoff and returns
// the number deleted.
func (s *SamplerStore) DeleteOldReadings(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sampler_readings WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old readings: %w", err)
	}
	return res.RowsAffected()
}
