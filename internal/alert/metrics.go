package alert

import "github.com/prometheus/client_golang/prometheus"

var (
	metricAlertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hive_alerts_total",
		Help: "Total alerts triggered, by condition and severity.",
	}, []string{"condition", "severity"})
	metricNotifyDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hive_alert_notifications_dropped_total",
		Help: "Notifications dropped by the rate limiter.",
	})
	metricNotifyErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hive_alert_notification_errors_total",
		Help: "Notification deliveries that failed.",
	})
)

func init() {
	prometheus.MustRegister(metricAlertsTotal)
	prometheus.MustRegister(metricNotifyDropped)
	prometheus.MustRegister(metricNotifyErrors)
}
