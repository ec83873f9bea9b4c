package learning

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// startMaintenance launches a background goroutine that periodically
// mirrors the learned baseline to the database and prunes anomaly
// history past the retention window.
func (m *Module) startMaintenance() {
	if m.store == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.MaintenanceInterval)
		defer ticker.Stop()

		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.runMaintenance()
			}
		}
	}()
}

// runMaintenance executes a single maintenance cycle.
func (m *Module) runMaintenance() {
	ctx, cancel := context.WithTimeout(m.ctx, 30*time.Second)
	defer cancel()

	m.mu.Lock()
	baseline := m.engine.BaselineView()
	samples := m.engine.SampleCount()
	established := m.engine.Established()
	m.mu.Unlock()

	if err := m.store.UpsertBaseline(ctx, m.hiveID(), baseline, samples, established); err != nil {
		m.logger.Warn("failed to mirror baseline", zap.Error(err))
	}

	cutoff := time.Now().Add(-m.cfg.AnomalyRetention)
	deleted, err := m.store.DeleteOldAnomalies(ctx, cutoff)
	if err != nil {
		m.logger.Warn("failed to delete old anomalies", zap.Error(err))
	} else if deleted > 0 {
		m.logger.Info("purged old anomalies", zap.Int64("count", deleted))
	}
}
