package mqtt

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/GaiaForge/beehive-monitoring/internal/alert"
	"github.com/GaiaForge/beehive-monitoring/internal/learning"
	"github.com/GaiaForge/beehive-monitoring/internal/sampler"
	"github.com/GaiaForge/beehive-monitoring/pkg/hive"
	"github.com/GaiaForge/beehive-monitoring/pkg/plugin"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin          = (*Module)(nil)
	_ plugin.EventSubscriber = (*Module)(nil)
	_ plugin.HealthChecker   = (*Module)(nil)
)

// Module implements the MQTT publisher plugin. It subscribes to reading,
// anomaly, and alert events via the event bus and publishes them to an
// MQTT broker, enabling Home Assistant auto-discovery and other
// apiary integrations.
type Module struct {
	logger    *zap.Logger
	cfg       Config
	client    pahomqtt.Client
	mu        sync.RWMutex
	haEnabled bool
	haPrefix  string
	announced map[string]bool // hive IDs with published discovery configs
}

// New creates a new MQTT publisher plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "mqtt",
		Version:     "0.1.0",
		Description: "Publishes readings, anomalies, and alerts to an MQTT broker",
		Roles:       []string{"notification", "integration"},
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.cfg = DefaultConfig()

	if deps.Config != nil {
		if u := deps.Config.GetString("broker_url"); u != "" {
			m.cfg.BrokerURL = u
		}
		if u := deps.Config.GetString("username"); u != "" {
			m.cfg.Username = u
		}
		if p := deps.Config.GetString("password"); p != "" {
			m.cfg.Password = p
		}
		if c := deps.Config.GetString("client_id"); c != "" {
			m.cfg.ClientID = c
		}
		if t := deps.Config.GetString("topic_prefix"); t != "" {
			m.cfg.TopicPrefix = t
		}
		if deps.Config.IsSet("qos") {
			m.cfg.QoS = byte(deps.Config.GetInt("qos"))
		}
		if deps.Config.IsSet("retain") {
			m.cfg.Retain = deps.Config.GetBool("retain")
		}
		if deps.Config.IsSet("use_tls") {
			m.cfg.UseTLS = deps.Config.GetBool("use_tls")
		}
		if d := deps.Config.GetDuration("timeout"); d > 0 {
			m.cfg.Timeout = d
		}
		if deps.Config.IsSet("ha_discovery") {
			m.cfg.HADiscovery = deps.Config.GetBool("ha_discovery")
		}
		if p := deps.Config.GetString("ha_discovery_prefix"); p != "" {
			m.cfg.HADiscoveryPrefix = p
		}
	}

	m.haEnabled = m.cfg.HADiscovery
	m.haPrefix = m.cfg.HADiscoveryPrefix
	m.announced = make(map[string]bool)

	if m.cfg.BrokerURL == "" {
		m.logger.Warn("MQTT broker URL not configured; events will be dropped",
			zap.String("component", "mqtt"),
		)
	}

	m.logger.Info("mqtt module initialized",
		zap.String("broker_url", m.cfg.BrokerURL),
		zap.String("client_id", m.cfg.ClientID),
		zap.String("topic_prefix", m.cfg.TopicPrefix),
		zap.Uint8("qos", m.cfg.QoS),
		zap.Bool("ha_discovery", m.haEnabled),
	)
	return nil
}

func (m *Module) Start(_ context.Context) error {
	if m.cfg.BrokerURL == "" {
		m.logger.Info("mqtt module started (no-op: no broker configured)")
		return nil
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(m.cfg.BrokerURL).
		SetClientID(m.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(m.cfg.Timeout)

	if m.cfg.Username != "" {
		opts.SetUsername(m.cfg.Username)
		opts.SetPassword(m.cfg.Password) //nolint:gosec // G101: config field
	}

	m.client = pahomqtt.NewClient(opts)
	token := m.client.Connect()

	switch {
	case !token.WaitTimeout(m.cfg.Timeout):
		m.logger.Warn("mqtt connection timed out; will reconnect in background")
	case token.Error() != nil:
		m.logger.Warn("mqtt connection failed; will reconnect in background",
			zap.Error(token.Error()),
		)
	default:
		m.logger.Info("mqtt connected to broker",
			zap.String("broker_url", m.cfg.BrokerURL),
		)
	}
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil && m.client.IsConnected() {
		m.client.Disconnect(250)
		m.logger.Info("mqtt disconnected")
	}
	return nil
}

// Subscriptions implements plugin.EventSubscriber.
func (m *Module) Subscriptions() []plugin.Subscription {
	return []plugin.Subscription{
		{Topic: sampler.TopicReadingCollected, Handler: m.publishEvent},
		{Topic: learning.TopicAnomalyDetected, Handler: m.publishEvent},
		{Topic: learning.TopicBaselineEstablished, Handler: m.publishEvent},
		{Topic: alert.TopicAlertTriggered, Handler: m.publishEvent},
		{Topic: alert.TopicAlertResolved, Handler: m.publishEvent},
	}
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	if m.cfg.BrokerURL == "" {
		return plugin.HealthStatus{
			Status:  "healthy",
			Message: "no broker configured (no-op mode)",
		}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.client == nil || !m.client.IsConnected() {
		return plugin.HealthStatus{
			Status:  "degraded",
			Message: "not connected to MQTT broker",
		}
	}
	return plugin.HealthStatus{
		Status:  "healthy",
		Message: "connected to " + m.cfg.BrokerURL,
	}
}

// mqttTopicFromEvent maps an event bus topic to an MQTT topic path.
func (m *Module) mqttTopicFromEvent(eventTopic string) string {
	switch eventTopic {
	case sampler.TopicReadingCollected:
		return m.cfg.TopicPrefix + "/reading"
	case learning.TopicAnomalyDetected:
		return m.cfg.TopicPrefix + "/anomaly"
	case learning.TopicBaselineEstablished:
		return m.cfg.TopicPrefix + "/baseline/established"
	case alert.TopicAlertTriggered:
		return m.cfg.TopicPrefix + "/alert/triggered"
	case alert.TopicAlertResolved:
		return m.cfg.TopicPrefix + "/alert/resolved"
	default:
		return m.cfg.TopicPrefix + "/unknown"
	}
}

func (m *Module) publishEvent(_ context.Context, event plugin.Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.client == nil || !m.client.IsConnected() {
		return
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		m.logger.Warn("failed to marshal MQTT payload",
			zap.String("topic", event.Topic),
			zap.Error(err),
		)
		return
	}

	mqttTopic := m.mqttTopicFromEvent(event.Topic)
	token := m.client.Publish(mqttTopic, m.cfg.QoS, m.cfg.Retain, payload)
	if !token.WaitTimeout(m.cfg.Timeout) {
		m.logger.Warn("mqtt publish timed out",
			zap.String("mqtt_topic", mqttTopic),
		)
		return
	}
	if token.Error() != nil {
		m.logger.Warn("mqtt publish failed",
			zap.String("mqtt_topic", mqttTopic),
			zap.Error(token.Error()),
		)
		return
	}

	m.logger.Debug("mqtt event published",
		zap.String("mqtt_topic", mqttTopic),
		zap.String("event_topic", event.Topic),
	)

	if m.haEnabled {
		m.publishHAForEvent(event)
	}
}

// publishHAForEvent handles HA MQTT auto-discovery for hive readings,
// anomalies, and alerts.
func (m *Module) publishHAForEvent(event plugin.Event) {
	switch event.Topic {
	case sampler.TopicReadingCollected:
		r := extractReading(event.Payload)
		if r == nil || r.HiveID == "" {
			return
		}
		if !m.announced[r.HiveID] {
			m.announced[r.HiveID] = true
			configs := BuildHiveDiscoveryConfigs(r.HiveID, m.cfg.TopicPrefix, m.haPrefix)
			m.publishHADiscovery(configs)
		}
		m.publishReadingState(r)

	case learning.TopicAnomalyDetected:
		a := extractAnomaly(event.Payload)
		if a == nil || a.HiveID == "" {
			return
		}
		m.publishState(m.cfg.TopicPrefix+"/hive/"+a.HiveID+"/anomaly", "ON")

	case alert.TopicAlertResolved:
		al := extractAlert(event.Payload)
		if al == nil || al.HiveID == "" {
			return
		}
		m.publishState(m.cfg.TopicPrefix+"/hive/"+al.HiveID+"/anomaly", "OFF")
	}
}

// publishHADiscovery publishes a batch of HA discovery config payloads.
func (m *Module) publishHADiscovery(configs []DiscoveryConfig) {
	for i := range configs {
		// Discovery configs are always retained so HA picks them up on restart.
		token := m.client.Publish(configs[i].Topic, m.cfg.QoS, true, configs[i].Payload)
		if !token.WaitTimeout(m.cfg.Timeout) {
			m.logger.Warn("ha discovery publish timed out",
				zap.String("topic", configs[i].Topic),
			)
			continue
		}
		if token.Error() != nil {
			m.logger.Warn("ha discovery publish failed",
				zap.String("topic", configs[i].Topic),
				zap.Error(token.Error()),
			)
			continue
		}
		m.logger.Debug("ha discovery published",
			zap.String("topic", configs[i].Topic),
		)
	}
}

// publishState publishes a retained state value to an MQTT topic.
func (m *Module) publishState(topic, value string) {
	token := m.client.Publish(topic, m.cfg.QoS, true, []byte(value))
	if !token.WaitTimeout(m.cfg.Timeout) {
		m.logger.Warn("state publish timed out", zap.String("topic", topic))
		return
	}
	if token.Error() != nil {
		m.logger.Warn("state publish failed",
			zap.String("topic", topic),
			zap.Error(token.Error()),
		)
		return
	}
	m.logger.Debug("state published", zap.String("topic", topic), zap.String("value", value))
}

// publishReadingState publishes per-channel state values for a hive's
// HA sensor entities.
func (m *Module) publishReadingState(r *hive.Reading) {
	prefix := m.cfg.TopicPrefix + "/hive/" + r.HiveID
	m.publishState(prefix+"/temperature", formatValue(r.Temperature))
	m.publishState(prefix+"/humidity", formatValue(r.Humidity))
	m.publishState(prefix+"/pressure", formatValue(r.Pressure))
	m.publishState(prefix+"/weight", formatValue(r.Weight))
	m.publishState(prefix+"/battery", formatValue(r.BatteryVolt))
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// extractReading attempts to extract a *hive.Reading from an event payload.
func extractReading(payload interface{}) *hive.Reading {
	switch v := payload.(type) {
	case *hive.Reading:
		return v
	case hive.Reading:
		return &v
	default:
		// Try JSON round-trip for payloads that were serialized.
		data, err := json.Marshal(payload)
		if err != nil {
			return nil
		}
		var r hive.Reading
		if err := json.Unmarshal(data, &r); err != nil {
			return nil
		}
		if r.HiveID == "" {
			return nil
		}
		return &r
	}
}

// extractAnomaly attempts to extract a *hive.Anomaly from an event payload.
func extractAnomaly(payload interface{}) *hive.Anomaly {
	switch v := payload.(type) {
	case *hive.Anomaly:
		return v
	case hive.Anomaly:
		return &v
	default:
		data, err := json.Marshal(payload)
		if err != nil {
			return nil
		}
		var a hive.Anomaly
		if err := json.Unmarshal(data, &a); err != nil {
			return nil
		}
		if a.ID == "" {
			return nil
		}
		return &a
	}
}

// extractAlert attempts to extract an *alert.Alert from an event payload.
func extractAlert(payload interface{}) *alert.Alert {
	switch v := payload.(type) {
	case *alert.Alert:
		return v
	case alert.Alert:
		return &v
	default:
		data, err := json.Marshal(payload)
		if err != nil {
			return nil
		}
		var a alert.Alert
		if err := json.Unmarshal(data, &a); err != nil {
			return nil
		}
		if a.ID == "" {
			return nil
		}
		return &a
	}
}
