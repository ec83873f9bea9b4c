package alert

// Event topics consumed and published by the alert plugin.
const (
	// Consumed.
	TopicReadingCollected = "sampler.reading.collected"
	TopicAnomalyDetected  = "learning.anomaly.detected"

	// Published. Both carry a *Alert.
	TopicAlertTriggered = "alert.triggered"
	TopicAlertResolved  = "alert.resolved"
)
