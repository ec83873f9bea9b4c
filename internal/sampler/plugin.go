package sampler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GaiaForge/beehive-monitoring/pkg/hive"
	"github.com/GaiaForge/beehive-monitoring/pkg/plugin"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
	_ plugin.Validator     = (*Module)(nil)
)

// Module implements the sampler plugin: it drives the sensor source on
// a fixed interval and publishes each reading on the bus.
type Module struct {
	logger *zap.Logger
	cfg    Config
	store  *SamplerStore
	bus    plugin.EventBus
	source SensorSource

	mu       sync.RWMutex
	latest   hive.Reading
	lastRead time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates the sampler plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "sampler",
		Version:     "0.1.0",
		Description: "Sensor acquisition and reading distribution",
		Required:    true,
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal sampler config: %w", err)
		}
	}

	if deps.Store != nil {
		if err := deps.Store.Migrate(context.Background(), "sampler", migrations()); err != nil {
			return fmt.Errorf("sampler migrations: %w", err)
		}
		m.store = NewSamplerStore(deps.Store.DB())
	}

	src, err := NewSource(m.cfg)
	if err != nil {
		return err
	}
	m.source = src
	m.bus = deps.Bus

	m.logger.Info("sampler module initialized",
		zap.String("hive_id", m.cfg.HiveID),
		zap.String("source", m.cfg.Source),
		zap.Duration("interval", m.cfg.Interval),
	)
	return nil
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	if m.cfg.HiveID == "" {
		return fmt.Errorf("hive_id must be set")
	}
	if m.cfg.Interval < time.Second {
		return fmt.Errorf("interval must be at least 1s, got %v", m.cfg.Interval)
	}
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.startSampling()
	m.startMaintenance()
	m.logger.Info("sampler module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	if m.source != nil {
		if err := m.source.Close(); err != nil {
			m.logger.Warn("sensor source close failed", zap.Error(err))
		}
	}
	m.logger.Info("sampler module stopped")
	return nil
}

// startSampling launches the measurement loop: one cycle immediately,
// then one per interval.
func (m *Module) startSampling() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		m.sample()
		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.sample()
			}
		}
	}()
}

// sample runs one measurement cycle and distributes the reading.
func (m *Module) sample() {
	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.Interval)
	defer cancel()

	r, err := m.source.Read(ctx)
	if err != nil {
		metricReadErrors.Inc()
		m.logger.Warn("measurement cycle failed", zap.Error(err))
		return
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	if r.HiveID == "" {
		r.HiveID = m.cfg.HiveID
	}

	m.mu.Lock()
	m.latest = r
	m.lastRead = time.Now()
	m.mu.Unlock()

	metricReadingsTotal.Inc()
	metricTemperature.Set(r.Temperature)
	metricHumidity.Set(r.Humidity)
	metricWeight.Set(r.Weight)
	metricBatteryVolt.Set(r.BatteryVolt)

	if m.store != nil {
		if err := m.store.InsertReading(ctx, &r); err != nil {
			m.logger.Warn("failed to store reading", zap.Error(err))
		}
	}

	if m.bus != nil {
		m.bus.PublishAsync(m.ctx, plugin.Event{
			Topic:   TopicReadingCollected,
			Source:  "sampler",
			Payload: r,
		})
	}
}

// startMaintenance prunes the readings history past retention.
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
				ctx, cancel := context.WithTimeout(m.ctx, 30*time.Second)
				cutoff := time.Now().Add(-m.cfg.ReadingRetention)
				deleted, err := m.store.DeleteOldReadings(ctx, cutoff)
				cancel()
				if err != nil {
					m.logger.Warn("failed to prune readings", zap.Error(err))
				} else if deleted > 0 {
					m.logger.Info("pruned old readings", zap.Int64("count", deleted))
				}
			}
		}
	}()
}

// -- plugin.HealthChecker --

func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	m.mu.RLock()
	last := m.lastRead
	battery := m.latest.BatteryVolt
	m.mu.RUnlock()

	status := "healthy"
	msg := ""
	if last.IsZero() {
		status = "degraded"
		msg = "no readings yet"
	} else if time.Since(last) > 3*m.cfg.Interval {
		status = "unhealthy"
		msg = "readings stalled"
	}

	return plugin.HealthStatus{
		Status:  status,
		Message: msg,
		Details: map[string]string{
			"last_reading": last.Format(time.RFC3339),
			"battery_v":    strconv.FormatFloat(battery, 'f', 2, 64),
		},
	}
}

// -- plugin.HTTPProvider --

func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: http.MethodGet, Path: "/latest", Handler: m.handleLatest},
		{Method: http.MethodGet, Path: "/readings", Handler: m.handleReadings},
	}
}

func (m *Module) handleLatest(w http.ResponseWriter, _ *http.Request) {
	m.mu.RLock()
	r := m.latest
	have := !m.lastRead.IsZero()
	m.mu.RUnlock()

	if !have {
		writeError(w, http.StatusNotFound, "no readings yet")
		return
	}
	writeJSON(w, http.StatusOK, r)
}

func (m *Module) handleReadings(w http.ResponseWriter, r *http.Request) {
	if m.store == nil {
		writeError(w, http.StatusServiceUnavailable, "readings history not available")
		return
	}

	since := time.Now().Add(-24 * time.Hour)
	if ss := r.URL.Query().Get("since"); ss != "" {
		t, err := time.Parse(time.RFC3339, ss)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC 3339")
			return
		}
		since = t
	}
	limit := 500
	if ls := r.URL.Query().Get("limit"); ls != "" {
		v, err := strconv.Atoi(ls)
		if err != nil || v <= 0 || v > 5000 {
			writeError(w, http.StatusBadRequest, "limit must be in 1..5000")
			return
		}
		limit = v
	}

	readings, err := m.store.ListReadings(r.Context(), since, limit)
	if err != nil {
		m.logger.Warn("failed to list readings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if readings == nil {
		readings = []ReadingRow{}
	}
	writeJSON(w, http.StatusOK, readings)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
