package config

import "time"

// DefaultConfig returns a Config with every field set to its default
// value, used as the base Load unmarshals a config file or env overrides
// onto.
func DefaultConfig() *Config {
	return &Config{
		Device:         "serial:///dev/ttyUSB0:115200:8:n:1",
		RequestTimeout: 5 * time.Second,
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9090",
		},
	}
}
