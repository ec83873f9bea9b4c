package alert

import (
	"database/sql"

	"github.com/GaiaForge/beehive-monitoring/pkg/plugin"
)

// migrations returns the alert module's database migrations.
func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create alerts table",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS alert_alerts (
						id           TEXT PRIMARY KEY,
						hive_id      TEXT NOT NULL,
						condition    TEXT NOT NULL,
						severity     TEXT NOT NULL DEFAULT 'warning',
						message      TEXT NOT NULL DEFAULT '',
						value        REAL NOT NULL DEFAULT 0,
						threshold    REAL NOT NULL DEFAULT 0,
						triggered_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						resolved_at  DATETIME
					)`,
					`CREATE INDEX IF NOT EXISTS idx_alert_alerts_condition ON alert_alerts(condition, resolved_at)`,
					`CREATE INDEX IF NOT EXISTS idx_alert_alerts_triggered ON alert_alerts(triggered_at)`,
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
