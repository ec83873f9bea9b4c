package learning

import "github.com/prometheus/client_golang/prometheus"

var (
	metricLearningProgress = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hive_learning_progress",
		Help: "Learning progress percentage (100 once the baseline is established).",
	})
	metricBaselineEstablished = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hive_baseline_established",
		Help: "1 when the colony baseline is established, 0 while learning.",
	})
	metricSamplesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hive_learning_samples_total",
		Help: "Total sensor readings folded into the learning model.",
	})
	metricAnomaliesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hive_anomalies_total",
		Help: "Total anomalies detected, by sensor channel.",
	}, []string{"channel"})
)

func init() {
	prometheus.MustRegister(metricLearningProgress)
	prometheus.MustRegister(metricBaselineEstablished)
	prometheus.MustRegister(metricSamplesTotal)
	prometheus.MustRegister(metricAnomaliesTotal)
}
