package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

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
)

// Module implements the alert plugin: thresholds against readings,
// alert lifecycle, and outbound notifications.
type Module struct {
	logger  *zap.Logger
	cfg     Config
	store   *AlertStore
	bus     plugin.EventBus
	plugins plugin.PluginResolver

	alerter   *Alerter
	notifiers []Notifier
	limiter   *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates the alert plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "alert",
		Version:      "0.1.0",
		Description:  "Threshold alerting and notification delivery",
		Dependencies: []string{"sampler", "learning"},
		Roles:        []string{"notification"},
		APIVersion:   plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal alert config: %w", err)
		}
	}

	if deps.Store != nil {
		if err := deps.Store.Migrate(context.Background(), "alert", migrations()); err != nil {
			return fmt.Errorf("alert migrations: %w", err)
		}
		m.store = NewAlertStore(deps.Store.DB())
	}
	if m.store == nil {
		return fmt.Errorf("alert plugin requires a database store")
	}

	m.bus = deps.Bus
	m.plugins = deps.Plugins

	if m.cfg.Webhook.URL != "" {
		m.notifiers = append(m.notifiers, NewWebhookNotifier(m.cfg.Webhook))
	}
	m.limiter = rate.NewLimiter(rate.Limit(m.cfg.NotifyRatePerMinute/60), m.cfg.NotifyBurst)
	m.alerter = NewAlerter(m.store, m.bus, m.cfg, m.dispatch, m.logger.Named("alerter"))

	// Created here rather than in Start: bus subscriptions are live as
	// soon as Init returns, and a reading may arrive before Start runs.
	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.logger.Info("alert module initialized",
		zap.Int("consecutive_breaches", m.cfg.ConsecutiveBreaches),
		zap.Int("notifiers", len(m.notifiers)),
	)
	return nil
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	if m.cfg.ConsecutiveBreaches < 1 {
		return fmt.Errorf("consecutive_breaches must be at least 1")
	}
	if m.cfg.TempAlertLow >= m.cfg.TempAlertHigh {
		return fmt.Errorf("temp_alert_low must be below temp_alert_high")
	}
	if m.cfg.HumAlertLow >= m.cfg.HumAlertHigh {
		return fmt.Errorf("hum_alert_low must be below hum_alert_high")
	}
	if m.cfg.BatteryCriticalVolt >= m.cfg.BatteryLowVolt {
		return fmt.Errorf("battery_critical_volt must be below battery_low_volt")
	}
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.startMaintenance()
	m.logger.Info("alert module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.logger.Info("alert module stopped")
	return nil
}

// -- plugin.HealthChecker --

func (m *Module) Health(ctx context.Context) plugin.HealthStatus {
	active, err := m.store.CountActive(ctx)
	if err != nil {
		return plugin.HealthStatus{Status: "degraded", Message: err.Error()}
	}
	return plugin.HealthStatus{
		Status: "healthy",
		Details: map[string]string{
			"active_alerts": strconv.Itoa(active),
			"notifiers":     strconv.Itoa(len(m.notifiers)),
		},
	}
}

// -- plugin.EventSubscriber --

func (m *Module) Subscriptions() []plugin.Subscription {
	return []plugin.Subscription{
		{Topic: TopicReadingCollected, Handler: m.handleReading},
		{Topic: TopicAnomalyDetected, Handler: m.handleAnomaly},
	}
}

func (m *Module) handleReading(ctx context.Context, event plugin.Event) {
	r, ok := event.Payload.(hive.Reading)
	if !ok {
		m.logger.Debug("ignored reading event: unexpected payload type",
			zap.String("source", event.Source))
		return
	}
	m.alerter.ProcessReading(ctx, r, m.thresholds(r.Timestamp))
}

func (m *Module) handleAnomaly(ctx context.Context, event plugin.Event) {
	a, ok := event.Payload.(*hive.Anomaly)
	if !ok {
		m.logger.Debug("ignored anomaly event: unexpected payload type",
			zap.String("source", event.Source))
		return
	}
	m.alerter.ProcessAnomaly(ctx, a)
}

// thresholds returns learned thresholds when an analytics plugin has an
// established baseline, otherwise the static configured defaults.
func (m *Module) thresholds(at time.Time) hive.Thresholds {
	static := hive.Thresholds{
		Temperature: hive.Range{Low: m.cfg.TempAlertLow, High: m.cfg.TempAlertHigh},
		Humidity:    hive.Range{Low: m.cfg.HumAlertLow, High: m.cfg.HumAlertHigh},
	}
	if m.plugins == nil {
		return static
	}
	for _, p := range m.plugins.ResolveByRole("analytics") {
		provider, ok := p.(hive.ThresholdProvider)
		if !ok {
			continue
		}
		if th, established := provider.CurrentThresholds(at.Hour()); established {
			return th
		}
	}
	return static
}

// dispatch fans an alert out to all notifiers, subject to rate limiting.
func (m *Module) dispatch(alert *Alert, eventType string) {
	if len(m.notifiers) == 0 {
		return
	}
	if !m.limiter.Allow() {
		metricNotifyDropped.Inc()
		m.logger.Warn("notification dropped by rate limiter",
			zap.String("condition", alert.Condition),
			zap.String("event_type", eventType))
		return
	}

	for _, n := range m.notifiers {
		n := n
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			ctx, cancel := context.WithTimeout(m.ctx, 15*time.Second)
			defer cancel()
			if err := n.Notify(ctx, alert, eventType); err != nil {
				metricNotifyErrors.Inc()
				m.logger.Warn("notification delivery failed",
					zap.String("type", n.Type()), zap.Error(err))
			}
		}()
	}
}

// startMaintenance prunes resolved alert history past retention.
func (m *Module) startMaintenance() {
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
				cutoff := time.Now().Add(-m.cfg.AlertRetention)
				deleted, err := m.store.DeleteOldResolved(ctx, cutoff)
				cancel()
				if err != nil {
					m.logger.Warn("failed to prune alerts", zap.Error(err))
				} else if deleted > 0 {
					m.logger.Info("pruned resolved alerts", zap.Int64("count", deleted))
				}
			}
		}
	}()
}

// -- plugin.HTTPProvider --

func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: http.MethodGet, Path: "/alerts", Handler: m.handleAlerts},
	}
}

func (m *Module) handleAlerts(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	limit := 100
	if ls := r.URL.Query().Get("limit"); ls != "" {
		v, err := strconv.Atoi(ls)
		if err != nil || v <= 0 || v > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be in 1..1000")
			return
		}
		limit = v
	}

	alerts, err := m.store.ListAlerts(r.Context(), activeOnly, limit)
	if err != nil {
		m.logger.Warn("failed to list alerts", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if alerts == nil {
		alerts = []Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
