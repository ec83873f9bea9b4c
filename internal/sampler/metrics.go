package sampler

import "github.com/prometheus/client_golang/prometheus"

var (
	metricReadingsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hive_readings_total",
		Help: "Total completed measurement cycles.",
	})
	metricReadErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hive_reading_errors_total",
		Help: "Total failed measurement cycles.",
	})
	metricTemperature = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hive_temperature_celsius",
		Help: "Latest brood nest temperature.",
	})
	metricHumidity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hive_humidity_percent",
		Help: "Latest hive humidity.",
	})
	metricWeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hive_weight_kg",
		Help: "Latest full-hive weight.",
	})
	metricBatteryVolt = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hive_battery_volts",
		Help: "Latest battery voltage.",
	})
)

func init() {
	prometheus.MustRegister(metricReadingsTotal)
	prometheus.MustRegister(metricReadErrors)
	prometheus.MustRegister(metricTemperature)
	prometheus.MustRegister(metricHumidity)
	prometheus.MustRegister(metricWeight)
	prometheus.MustRegister(metricBatteryVolt)
}
