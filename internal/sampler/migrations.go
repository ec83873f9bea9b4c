package sampler

import (
	"database/sql"

	"github.com/GaiaForge/beehive-monitoring/pkg/plugin"
)

// migrations returns the sampler module's database migrations.
func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create readings table",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS sampler_readings (
						id          INTEGER PRIMARY KEY AUTOINCREMENT,
						hive_id     TEXT NOT NULL,
						temperature REAL NOT NULL,
						humidity    REAL NOT NULL,
						pressure    REAL NOT NULL,
						weight      REAL NOT NULL,
						audio_0     REAL NOT NULL,
						audio_1     REAL NOT NULL,
						audio_2     REAL NOT NULL,
						audio_3     REAL NOT NULL,
						motion_mag  REAL NOT NULL,
						light_level REAL NOT NULL,
						battery_v   REAL NOT NULL,
						timestamp   DATETIME NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_sampler_readings_hive_time ON sampler_readings(hive_id, timestamp)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
