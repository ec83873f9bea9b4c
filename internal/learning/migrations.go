package learning

import (
	"database/sql"

	"github.com/GaiaForge/beehive-monitoring/pkg/plugin"
)

// migrations returns the learning module's database migrations.
func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create learning tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS learning_anomalies (
						id           TEXT PRIMARY KEY,
						hive_id      TEXT NOT NULL,
						channel      TEXT NOT NULL,
						value        REAL NOT NULL,
						expected     REAL NOT NULL,
						deviation    REAL NOT NULL,
						band         INTEGER NOT NULL DEFAULT -1,
						description  TEXT NOT NULL DEFAULT '',
						detected_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX IF NOT EXISTS idx_learning_anomalies_hive ON learning_anomalies(hive_id)`,
					`CREATE INDEX IF NOT EXISTS idx_learning_anomalies_detected ON learning_anomalies(detected_at)`,

					`CREATE TABLE IF NOT EXISTS learning_baselines (
						hive_id    TEXT NOT NULL,
						channel    TEXT NOT NULL,
						band       INTEGER NOT NULL DEFAULT -1,
						mean       REAL NOT NULL DEFAULT 0,
						std_dev    REAL NOT NULL DEFAULT 0,
						samples    INTEGER NOT NULL DEFAULT 0,
						established INTEGER NOT NULL DEFAULT 0,
						updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						PRIMARY KEY (hive_id, channel, band)
					)`,
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
