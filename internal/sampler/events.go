package sampler

// Event topics published by the sampler plugin.
const (
	// TopicReadingCollected carries a hive.Reading for each completed
	// measurement cycle.
	TopicReadingCollected = "sampler.reading.collected"
)
