package learning

// Event topics consumed and published by the learning plugin.
const (
	// TopicReadingCollected carries a hive.Reading from the sampler.
	TopicReadingCollected = "sampler.reading.collected"

	// TopicAnomalyDetected carries a *hive.Anomaly.
	TopicAnomalyDetected = "learning.anomaly.detected"

	// TopicBaselineEstablished carries a hive.LearningStatus, published
	// once when the learning phase completes.
	TopicBaselineEstablished = "learning.baseline.established"
)
