package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GaiaForge/beehive-monitoring/pkg/hive"
	"github.com/GaiaForge/beehive-monitoring/pkg/plugin"
)

// anomalyQuietPeriod is how long an anomaly-driven alert stays active
// after the last matching anomaly before it auto-resolves.
var anomalyQuietPeriod = 30 * time.Minute

// Alerter tracks consecutive threshold breaches and manages the alert
// lifecycle: trigger after repeated breaches, resolve on recovery.
type Alerter struct {
	store           *AlertStore
	bus             plugin.EventBus
	notify          func(alert *Alert, eventType string)
	required        int
	batteryLow      float64
	batteryCritical float64
	logger          *zap.Logger

	mu          sync.Mutex
	breaches    map[string]int       // condition -> consecutive breach count
	lastAnomaly map[string]time.Time // condition -> last anomaly seen
}

// NewAlerter creates an alerter. notify may be nil.
func NewAlerter(store *AlertStore, bus plugin.EventBus, cfg Config, notify func(*Alert, string), logger *zap.Logger) *Alerter {
	return &Alerter{
		store:           store,
		bus:             bus,
		notify:          notify,
		required:        cfg.ConsecutiveBreaches,
		batteryLow:      cfg.BatteryLowVolt,
		batteryCritical: cfg.BatteryCriticalVolt,
		logger:          logger,
		breaches:        make(map[string]int),
		lastAnomaly:     make(map[string]time.Time),
	}
}

// condition couples one threshold comparison with its alert metadata.
type condition struct {
	name      string
	severity  string
	breached  bool
	immediate bool // trigger on first breach, skip the consecutive filter
	value     float64
	threshold float64
	message   string
}

// ProcessReading evaluates one reading against the given thresholds.
func (a *Alerter) ProcessReading(ctx context.Context, r hive.Reading, th hive.Thresholds) {
	conds := []condition{
		{
			name: CondTempLow, severity: SeverityWarning,
			breached: r.Temperature < th.Temperature.Low,
			value:    r.Temperature, threshold: th.Temperature.Low,
			message: fmt.Sprintf("brood nest cold: %.1f°C below %.1f°C", r.Temperature, th.Temperature.Low),
		},
		{
			name: CondTempHigh, severity: SeverityWarning,
			breached: r.Temperature > th.Temperature.High,
			value:    r.Temperature, threshold: th.Temperature.High,
			message: fmt.Sprintf("brood nest hot: %.1f°C above %.1f°C", r.Temperature, th.Temperature.High),
		},
		{
			name: CondHumidityLow, severity: SeverityWarning,
			breached: r.Humidity < th.Humidity.Low,
			value:    r.Humidity, threshold: th.Humidity.Low,
			message: fmt.Sprintf("hive dry: %.0f%% below %.0f%%", r.Humidity, th.Humidity.Low),
		},
		{
			name: CondHumidityHigh, severity: SeverityWarning,
			breached: r.Humidity > th.Humidity.High,
			value:    r.Humidity, threshold: th.Humidity.High,
			message: fmt.Sprintf("hive damp: %.0f%% above %.0f%%", r.Humidity, th.Humidity.High),
		},
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, c := range conds {
		a.processCondition(ctx, r.HiveID, c)
	}
	a.processBattery(ctx, r)
	a.resolveQuietAnomalies(ctx)
}

// processBattery applies the two-stage battery policy: critical voltage
// triggers immediately, low voltage goes through the consecutive filter.
func (a *Alerter) processBattery(ctx context.Context, r hive.Reading) {
	critical := condition{
		name: CondBatteryCritical, severity: SeverityCritical,
		breached: r.BatteryVolt < a.batteryCritical, immediate: true,
		value: r.BatteryVolt, threshold: a.batteryCritical,
		message: fmt.Sprintf("battery critical: %.2fV, unit shutting down soon", r.BatteryVolt),
	}
	low := condition{
		name: CondBatteryLow, severity: SeverityWarning,
		breached: r.BatteryVolt < a.batteryLow && !critical.breached,
		value:    r.BatteryVolt, threshold: a.batteryLow,
		message: fmt.Sprintf("battery low: %.2fV", r.BatteryVolt),
	}
	a.processCondition(ctx, r.HiveID, critical)
	a.processCondition(ctx, r.HiveID, low)
}

// processCondition advances one condition's breach counter. Caller
// holds mu.
func (a *Alerter) processCondition(ctx context.Context, hiveID string, c condition) {
	if !c.breached {
		if a.breaches[c.name] > 0 {
			a.breaches[c.name] = 0
		}
		a.resolveActive(ctx, c.name)
		return
	}

	a.breaches[c.name]++
	required := a.required
	if c.immediate {
		required = 1
	}
	if a.breaches[c.name] < required {
		return
	}
	a.trigger(ctx, hiveID, c.name, c.severity, c.message, c.value, c.threshold)
}

// ProcessAnomaly raises an alert for a learned-pattern anomaly. These
// trigger immediately and auto-resolve after a quiet period.
func (a *Alerter) ProcessAnomaly(ctx context.Context, an *hive.Anomaly) {
	var cond, severity string
	switch an.Channel {
	case hive.ChannelAudio:
		cond, severity = CondAudioAnomaly, SeverityWarning
	case hive.ChannelWeight:
		// Sudden weight loss is the swarm/theft signature.
		cond, severity = CondWeightAnomaly, SeverityCritical
	default:
		cond, severity = CondAnomaly, SeverityWarning
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.lastAnomaly[cond] = time.Now()
	a.trigger(ctx, an.HiveID, cond, severity,
		fmt.Sprintf("%s deviates from learned baseline: %s", an.Channel, an.Description),
		an.Value, an.Expected)
}

// resolveQuietAnomalies resolves anomaly-driven alerts whose channel
// has been quiet past the grace period. Caller holds mu.
func (a *Alerter) resolveQuietAnomalies(ctx context.Context) {
	now := time.Now()
	for cond, last := range a.lastAnomaly {
		if now.Sub(last) < anomalyQuietPeriod {
			continue
		}
		delete(a.lastAnomaly, cond)
		a.resolveActive(ctx, cond)
	}
}

// trigger opens an alert unless one is already active for the
// condition. Caller holds mu.
func (a *Alerter) trigger(ctx context.Context, hiveID, cond, severity, message string, value, threshold float64) {
	existing, err := a.store.GetActiveAlert(ctx, cond)
	if err != nil {
		a.logger.Warn("failed to check existing alert", zap.String("condition", cond), zap.Error(err))
		return
	}
	if existing != nil {
		return
	}

	alert := &Alert{
		ID:          uuid.NewString(),
		HiveID:      hiveID,
		Condition:   cond,
		Severity:    severity,
		Message:     message,
		Value:       value,
		Threshold:   threshold,
		TriggeredAt: time.Now().UTC(),
	}
	if err := a.store.InsertAlert(ctx, alert); err != nil {
		a.logger.Warn("failed to store alert", zap.String("condition", cond), zap.Error(err))
		return
	}

	a.logger.Warn("alert triggered",
		zap.String("condition", cond),
		zap.String("severity", severity),
		zap.Float64("value", value),
		zap.Float64("threshold", threshold),
	)
	metricAlertsTotal.WithLabelValues(cond, severity).Inc()

	if a.bus != nil {
		a.bus.PublishAsync(ctx, plugin.Event{
			Topic:   TopicAlertTriggered,
			Source:  "alert",
			Payload: alert,
		})
	}
	if a.notify != nil {
		a.notify(alert, "triggered")
	}
}

// resolveActive closes the active alert for the condition, if any.
// Caller holds mu.
func (a *Alerter) resolveActive(ctx context.Context, cond string) {
	alert, err := a.store.GetActiveAlert(ctx, cond)
	if err != nil {
		a.logger.Warn("failed to get active alert", zap.String("condition", cond), zap.Error(err))
		return
	}
	if alert == nil {
		return
	}

	now := time.Now().UTC()
	if err := a.store.ResolveAlert(ctx, alert.ID, now); err != nil {
		a.logger.Warn("failed to resolve alert", zap.String("alert_id", alert.ID), zap.Error(err))
		return
	}
	alert.ResolvedAt = &now

	a.logger.Info("alert resolved",
		zap.String("condition", cond),
		zap.String("alert_id", alert.ID),
	)

	if a.bus != nil {
		a.bus.PublishAsync(ctx, plugin.Event{
			Topic:   TopicAlertResolved,
			Source:  "alert",
			Payload: alert,
		})
	}
	if a.notify != nil {
		a.notify(alert, "resolved")
	}
}
