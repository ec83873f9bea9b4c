package server

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the server configuration.
type Config struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	DataDir  string `mapstructure:"data_dir"`
	ReadOnly bool   `mapstructure:"read_only"`
}

// Addr returns the listen address as host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.data_dir", "./data")
	v.SetDefault("server.read_only", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/hivemon.db")

	// Plugin defaults
	v.SetDefault("plugins.sampler.enabled", true)
	v.SetDefault("plugins.sampler.hive_id", "hive-1")
	v.SetDefault("plugins.sampler.interval", "1m")
	v.SetDefault("plugins.sampler.source", "simulated")
	v.SetDefault("plugins.sampler.reading_retention", "2160h")
	v.SetDefault("plugins.sampler.maintenance_interval", "1h")
	v.SetDefault("plugins.learning.enabled", true)
	v.SetDefault("plugins.learning.state_file", "./data/learning.state")
	v.SetDefault("plugins.learning.mirror_file", "./data/learning.json")
	v.SetDefault("plugins.learning.learn_samples_min", 100)
	v.SetDefault("plugins.learning.update_interval", 50)
	v.SetDefault("plugins.learning.save_interval", 20)
	v.SetDefault("plugins.learning.adaptation_rate", 0.05)
	v.SetDefault("plugins.learning.anomaly_retention", "720h")
	v.SetDefault("plugins.learning.maintenance_interval", "1h")
	v.SetDefault("plugins.alert.enabled", true)
	v.SetDefault("plugins.alert.consecutive_breaches", 3)
	v.SetDefault("plugins.alert.notify_rate_per_minute", 6)
	v.SetDefault("plugins.alert.notify_burst", 3)
	v.SetDefault("plugins.alert.alert_retention", "2160h")
	v.SetDefault("plugins.alert.maintenance_interval", "1h")
	v.SetDefault("plugins.mqtt.enabled", true)
	v.SetDefault("plugins.mqtt.broker_url", "")
	v.SetDefault("plugins.mqtt.topic_prefix", "hivemon")
	v.SetDefault("plugins.mqtt.qos", 1)
	v.SetDefault("plugins.mqtt.timeout", "10s")
	v.SetDefault("plugins.mqtt.ha_discovery", false)
	v.SetDefault("plugins.mqtt.ha_discovery_prefix", "homeassistant")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("hivemon")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/hivemon")
	}

	// Environment variable support: HIVE_SERVER_PORT=9090
	v.SetEnvPrefix("HIVE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}
