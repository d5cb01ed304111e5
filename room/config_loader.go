package room

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultTopicPrefix = "roomscan"
	DefaultClientID    = "roomscan"
	DefaultHTTPPort    = 8080
	DefaultSQLitePath  = "data/projects.db"
)

// DefaultConfig returns a configuration that runs with a local SQLite store
// and MQTT disabled.
func DefaultConfig() *Config {
	return &Config{
		Reconstruction: DefaultReconstructionConfig(),
		Store: StoreConfig{
			Driver:     "sqlite",
			Path:       DefaultSQLitePath,
			MaxRetries: DefaultMaxRetries,
		},
		MQTT: MQTTConfig{
			TopicPrefix: DefaultTopicPrefix,
			ClientID:    DefaultClientID,
		},
		HTTP: HTTPConfig{Port: DefaultHTTPPort},
		Log:  LogConfig{Level: "info"},
	}
}

// LoadConfig loads the configuration from a YAML file. Keys missing from the
// file keep their DefaultConfig values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	ApplyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Validate checks field values and store requirements.
func (c *Config) Validate() error {
	rc := c.Reconstruction
	if rc.Precision < 0 || rc.Precision > 9 {
		return fmt.Errorf("reconstruction.precision must be between 0 and 9, got %d", rc.Precision)
	}
	switch rc.HeightReference {
	case "", HeightFromLog, HeightFromTrailing:
	default:
		return fmt.Errorf("reconstruction.heightReference must be %q or %q, got %q",
			HeightFromLog, HeightFromTrailing, rc.HeightReference)
	}
	if rc.Tolerance < 0 {
		return fmt.Errorf("reconstruction.tolerance must not be negative")
	}

	switch c.Store.Driver {
	case "http":
		if c.Store.URL == "" {
			return fmt.Errorf("store.url is required for the http driver")
		}
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("store.driver must be \"http\" or \"sqlite\", got %q", c.Store.Driver)
	}
	if c.Store.Timeout != "" {
		if _, err := time.ParseDuration(c.Store.Timeout); err != nil {
			return fmt.Errorf("store.timeout: %w", err)
		}
	}
	if c.Store.MaxRetries < 0 {
		return fmt.Errorf("store.maxRetries must not be negative")
	}

	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port out of range: %d", c.HTTP.Port)
	}
	return nil
}

// StoreTimeout returns the parsed store timeout or DefaultStoreTimeout.
func (c *Config) StoreTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Store.Timeout); err == nil && d > 0 {
		return d
	}
	return DefaultStoreTimeout
}

// MQTTEnabled reports whether a broker is configured.
func (c *Config) MQTTEnabled() bool {
	return c.MQTT.Broker != ""
}

// ApplyEnvOverrides lets deployments keep credentials out of the YAML file.
// LoadConfig calls it; callers starting from DefaultConfig must call it themselves.
func ApplyEnvOverrides(c *Config) {
	if v := os.Getenv("ROOMSCAN_MQTT_BROKER"); v != "" {
		c.MQTT.Broker = v
	}
	if v := os.Getenv("ROOMSCAN_MQTT_USERNAME"); v != "" {
		c.MQTT.Username = v
	}
	if v := os.Getenv("ROOMSCAN_MQTT_PASSWORD"); v != "" {
		c.MQTT.Password = v
	}
	if v := os.Getenv("ROOMSCAN_STORE_TOKEN"); v != "" {
		c.Store.Token = v
	}
}
