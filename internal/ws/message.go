package ws

import (
	"time"

	"github.com/GaiaForge/beehive-monitoring/pkg/hive"
)

// MessageType discriminates WebSocket messages.
type MessageType string

const (
	MessageReading             MessageType = "reading"
	MessageAnomalyDetected     MessageType = "anomaly.detected"
	MessageBaselineEstablished MessageType = "baseline.established"
	MessageAlertTriggered      MessageType = "alert.triggered"
	MessageAlertResolved       MessageType = "alert.resolved"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type      MessageType `json:"type"`
	HiveID    string      `json:"hive_id"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}

// ReadingData is the payload for reading messages.
type ReadingData struct {
	Reading hive.Reading `json:"reading"`
}

// AnomalyData is the payload for anomaly.detected messages.
type AnomalyData struct {
	Anomaly *hive.Anomaly `json:"anomaly"`
}

// BaselineEstablishedData is the payload for baseline.established messages.
type BaselineEstablishedData struct {
	Status hive.LearningStatus `json:"status"`
}
