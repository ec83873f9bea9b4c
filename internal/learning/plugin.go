package learning

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GaiaForge/beehive-monitoring/pkg/hive"
	"github.com/GaiaForge/beehive-monitoring/pkg/plugin"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin          = (*Module)(nil)
	_ plugin.HTTPProvider    = (*Module)(nil)
	_ plugin.HealthChecker   = (*Module)(nil)
	_ plugin.EventSubscriber = (*Module)(nil)
	_ plugin.Validator       = (*Module)(nil)
	_ hive.ThresholdProvider = (*Module)(nil)
)

// Module implements the adaptive learning plugin. It consumes sensor
// readings from the bus, maintains the learning engine, and exposes the
// learned state over HTTP.
type Module struct {
	logger *zap.Logger
	cfg    Config
	store  *LearningStore
	bus    plugin.EventBus

	// mu serializes engine access; readings, maintenance, and HTTP
	// handlers all touch it.
	mu     sync.Mutex
	engine *Engine

	prevWeight     float64
	havePrevWeight bool
	lastHiveID     string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates the learning plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "learning",
		Version:     "0.1.0",
		Description: "Adaptive colony baseline and anomaly detection",
		Roles:       []string{"analytics"},
		Required:    true,
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal learning config: %w", err)
		}
	}

	if deps.Store != nil {
		if err := deps.Store.Migrate(context.Background(), "learning", migrations()); err != nil {
			return fmt.Errorf("learning migrations: %w", err)
		}
		m.store = NewLearningStore(deps.Store.DB())
	}

	m.bus = deps.Bus
	m.engine = NewEngine(m.cfg, m.logger.Named("engine"))

	// Created here rather than in Start: bus subscriptions are live as
	// soon as Init returns, and a reading may arrive before Start runs.
	m.ctx, m.cancel = context.WithCancel(context.Background())

	metricLearningProgress.Set(float64(m.engine.Progress()))
	if m.engine.Established() {
		metricBaselineEstablished.Set(1)
	}

	m.logger.Info("learning module initialized",
		zap.Int("learn_samples_min", m.cfg.LearnSamplesMin),
		zap.Float64("adaptation_rate", m.cfg.AdaptationRate),
		zap.Bool("established", m.engine.Established()),
		zap.Uint64("samples", m.engine.SampleCount()),
	)
	return nil
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	if m.cfg.LearnSamplesMin <= 0 {
		return fmt.Errorf("learn_samples_min must be positive, got %d", m.cfg.LearnSamplesMin)
	}
	if m.cfg.UpdateInterval <= 0 || m.cfg.SaveInterval <= 0 {
		return fmt.Errorf("update_interval and save_interval must be positive")
	}
	if m.cfg.AdaptationRate <= 0 || m.cfg.AdaptationRate > 0.5 {
		return fmt.Errorf("adaptation_rate must be in (0, 0.5], got %g", m.cfg.AdaptationRate)
	}
	if m.cfg.MinSafeTemp >= m.cfg.MaxSafeTemp {
		return fmt.Errorf("min_safe_temp must be below max_safe_temp")
	}
	if m.cfg.MinSafeHumidity >= m.cfg.MaxSafeHumidity {
		return fmt.Errorf("min_safe_humidity must be below max_safe_humidity")
	}
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.startMaintenance()
	m.logger.Info("learning module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()

	// Final checkpoint so a clean shutdown never loses learning progress.
	m.mu.Lock()
	err := m.engine.Save()
	m.mu.Unlock()
	if err != nil {
		m.logger.Warn("final learning checkpoint failed", zap.Error(err))
	}

	m.logger.Info("learning module stopped")
	return nil
}

// -- plugin.HealthChecker --

func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	m.mu.Lock()
	st := m.engine.Status()
	m.mu.Unlock()

	return plugin.HealthStatus{
		Status: "healthy",
		Details: map[string]string{
			"established": strconv.FormatBool(st.BaselineEstablished),
			"progress":    strconv.Itoa(st.Progress),
			"samples":     strconv.FormatUint(st.SampleCount, 10),
			"season":      Season(st.Season).String(),
		},
	}
}

// -- plugin.EventSubscriber --

func (m *Module) Subscriptions() []plugin.Subscription {
	return []plugin.Subscription{
		{Topic: TopicReadingCollected, Handler: m.handleReading},
	}
}

// handleReading is the learning pipeline entry point: fold the reading
// into the model, then classify it against the baseline.
func (m *Module) handleReading(_ context.Context, event plugin.Event) {
	r, ok := event.Payload.(hive.Reading)
	if !ok {
		m.logger.Debug("ignored reading event: unexpected payload type",
			zap.String("source", event.Source))
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	wasEstablished := m.engine.Established()
	m.engine.Update(r)

	metricSamplesTotal.Inc()
	metricLearningProgress.Set(float64(m.engine.Progress()))

	if !wasEstablished && m.engine.Established() {
		m.onBaselineEstablished(r.HiveID)
	}

	if m.engine.Established() {
		m.classify(r)
	}

	m.prevWeight = r.Weight
	m.havePrevWeight = true
	m.lastHiveID = r.HiveID
}

// hiveID returns the hive the engine is learning, from the most recent
// reading. Empty until the first reading arrives.
func (m *Module) hiveID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHiveID
}

// onBaselineEstablished publishes the one-time transition event and
// mirrors the freshly established baseline to the database.
func (m *Module) onBaselineEstablished(hiveID string) {
	metricBaselineEstablished.Set(1)

	if m.bus != nil {
		m.bus.PublishAsync(m.ctx, plugin.Event{
			Topic:   TopicBaselineEstablished,
			Source:  "learning",
			Payload: m.engine.Status(),
		})
	}
	if m.store != nil {
		ctx, cancel := context.WithTimeout(m.ctx, 5*time.Second)
		defer cancel()
		if err := m.store.UpsertBaseline(ctx, hiveID, m.engine.BaselineView(),
			m.engine.SampleCount(), true); err != nil {
			m.logger.Warn("failed to mirror baseline", zap.Error(err))
		}
	}
}

// classify runs the reading through every detector. Caller holds mu.
func (m *Module) classify(r hive.Reading) {
	hour := HourOf(r.Timestamp)

	if ev := m.engine.EvaluateTemperature(r.Temperature, hour); ev.Anomalous {
		m.recordAnomaly(r, hive.ChannelTemperature, r.Temperature, ev.Expected, ev.Z, -1)
	}
	if ev := m.engine.EvaluateHumidity(r.Humidity, hour); ev.Anomalous {
		m.recordAnomaly(r, hive.ChannelHumidity, r.Humidity, ev.Expected, ev.Z, -1)
	}
	if ev := m.engine.EvaluateAudio(r.Audio); ev.Anomalous {
		m.recordAnomaly(r, hive.ChannelAudio, r.Audio[ev.Band], ev.Expected, ev.Z, ev.Band)
	}

	prev := r.Weight
	if m.havePrevWeight {
		prev = m.prevWeight
	}
	if ev := m.engine.EvaluateWeight(r.Weight, prev); ev.Anomalous {
		m.recordAnomaly(r, hive.ChannelWeight, r.Weight, ev.Expected, ev.Z, -1)
	}
}

// recordAnomaly stores an anomaly and publishes it on the bus.
func (m *Module) recordAnomaly(r hive.Reading, channel string, value, expected, z float64, band int) {
	a := &hive.Anomaly{
		ID:         uuid.NewString(),
		HiveID:     r.HiveID,
		Channel:    channel,
		Value:      value,
		Expected:   expected,
		Deviation:  z,
		Band:       band,
		DetectedAt: r.Timestamp,
		Description: fmt.Sprintf("%s anomaly: value=%.3f expected=%.3f z=%.2f",
			channel, value, expected, z),
	}

	m.logger.Info("anomaly detected",
		zap.String("hive_id", r.HiveID),
		zap.String("channel", channel),
		zap.Float64("value", value),
		zap.Float64("expected", expected),
		zap.Float64("z", z),
		zap.Int("band", band),
	)

	metricAnomaliesTotal.WithLabelValues(channel).Inc()

	if m.store != nil {
		ctx, cancel := context.WithTimeout(m.ctx, 5*time.Second)
		defer cancel()
		if err := m.store.InsertAnomaly(ctx, a); err != nil {
			m.logger.Warn("failed to store anomaly", zap.Error(err))
		}
	}

	if m.bus != nil {
		m.bus.PublishAsync(m.ctx, plugin.Event{
			Topic:   TopicAnomalyDetected,
			Source:  "learning",
			Payload: a,
		})
	}
}

// CurrentThresholds implements hive.ThresholdProvider. An out-of-range
// hour falls back to the current wall-clock hour.
func (m *Module) CurrentThresholds(hour int) (hive.Thresholds, bool) {
	h, err := NewHour(hour)
	if err != nil {
		h = HourOf(time.Now())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engine.Thresholds(h), m.engine.Established()
}

// -- plugin.HTTPProvider --

func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: http.MethodGet, Path: "/status", Handler: m.handleStatus},
		{Method: http.MethodGet, Path: "/baseline", Handler: m.handleBaseline},
		{Method: http.MethodGet, Path: "/pattern", Handler: m.handlePattern},
		{Method: http.MethodGet, Path: "/thresholds", Handler: m.handleThresholds},
		{Method: http.MethodGet, Path: "/anomalies", Handler: m.handleAnomalies},
		{Method: http.MethodPost, Path: "/reset", Handler: m.handleReset},
	}
}

func (m *Module) handleStatus(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	st := m.engine.Status()
	m.mu.Unlock()
	writeJSON(w, http.StatusOK, st)
}

func (m *Module) handleBaseline(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	b := m.engine.BaselineView()
	m.mu.Unlock()
	writeJSON(w, http.StatusOK, b)
}

func (m *Module) handlePattern(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	cells := m.engine.PatternCells()
	season := m.engine.Season()
	m.mu.Unlock()

	// Optional hour/season filters narrow the response to one cell.
	q := r.URL.Query()
	if hs := q.Get("hour"); hs != "" {
		hv, err := strconv.Atoi(hs)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid hour")
			return
		}
		hour, err := NewHour(hv)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if ss := q.Get("season"); ss != "" {
			sv, err := strconv.Atoi(ss)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid season")
				return
			}
			s, err := NewSeason(sv)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			season = s
		}
		writeJSON(w, http.StatusOK, cells[hour][season])
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"season": season.String(),
		"cells":  cells,
	})
}

func (m *Module) handleThresholds(w http.ResponseWriter, r *http.Request) {
	hour := HourOf(time.Now())
	if hs := r.URL.Query().Get("hour"); hs != "" {
		hv, err := strconv.Atoi(hs)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid hour")
			return
		}
		h, err := NewHour(hv)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		hour = h
	}

	m.mu.Lock()
	established := m.engine.Established()
	th := m.engine.Thresholds(hour)
	m.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"established": established,
		"hour":        int(hour),
		"thresholds":  th,
	})
}

func (m *Module) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	if m.store == nil {
		writeError(w, http.StatusServiceUnavailable, "anomaly history not available")
		return
	}

	limit := 100
	if ls := r.URL.Query().Get("limit"); ls != "" {
		v, err := strconv.Atoi(ls)
		if err != nil || v <= 0 || v > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be in 1..1000")
			return
		}
		limit = v
	}
	channel := r.URL.Query().Get("channel")

	anomalies, err := m.store.ListAnomalies(r.Context(), channel, limit)
	if err != nil {
		m.logger.Warn("failed to list anomalies", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if anomalies == nil {
		anomalies = []hive.Anomaly{}
	}
	writeJSON(w, http.StatusOK, anomalies)
}

func (m *Module) handleReset(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	err := m.engine.Reset()
	m.havePrevWeight = false
	st := m.engine.Status()
	m.mu.Unlock()

	metricLearningProgress.Set(0)
	metricBaselineEstablished.Set(0)

	if err != nil {
		m.logger.Warn("reset checkpoint failed", zap.Error(err))
	}
	m.logger.Info("learning state reset")
	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
