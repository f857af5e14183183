// Package config handles loading and validating wxlog configuration.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} placeholders in config values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ErrConfigFileNotFound is returned by Load when the specified config file does not exist.
var ErrConfigFileNotFound = errors.New("config file not found")

// Config is the top-level wxlog configuration.
type Config struct {
	UDPListen     string               `yaml:"udp_listen"`
	HTTPListen    string               `yaml:"http_listen"`
	Passkey       string               `yaml:"passkey"`
	DataDir       string               `yaml:"data_dir"`
	Metric        bool                 `yaml:"metric"`
	LogLevel      string               `yaml:"log_level"`
	LogFormat     string               `yaml:"log_format"`
	MQTT          MQTTConfig           `yaml:"mqtt"`
	Notifications []NotificationConfig `yaml:"notifications"`
	Alerts        AlertsConfig         `yaml:"alerts"`
}

// MQTTConfig describes the optional broker readings are republished to.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	Port        int    `yaml:"port"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// NotificationConfig describes a notification target.
type NotificationConfig struct {
	Type    string            `yaml:"type"` // "ntfy" or "webhook"
	URL     string            `yaml:"url"`
	Topic   string            `yaml:"topic,omitempty"`   // ntfy only
	Method  string            `yaml:"method,omitempty"`  // webhook only
	Headers map[string]string `yaml:"headers,omitempty"` // webhook only
}

// AlertsConfig holds thresholds for each alert type. Omitted rules keep
// their defaults.
type AlertsConfig struct {
	StationSilent  *AlertStationSilent  `yaml:"station_silent,omitempty"`
	StorageFailing *AlertStorageFailing `yaml:"storage_failing,omitempty"`
}

type AlertStationSilent struct {
	After    Duration `yaml:"after"`
	Severity string   `yaml:"severity"`
	Cooldown Duration `yaml:"cooldown"`
}

type AlertStorageFailing struct {
	Threshold int      `yaml:"threshold"`
	Severity  string   `yaml:"severity"`
	Cooldown  Duration `yaml:"cooldown"`
}

// Duration wraps time.Duration with YAML string parsing support.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// Overrides carries command-line values. Nil fields leave the loaded value
// alone.
type Overrides struct {
	Passkey *string
	DataDir *string
	Metric  *bool
	UDPPort *int
}

// ApplyOverrides sets every non-nil override on c.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Passkey != nil {
		c.Passkey = *o.Passkey
	}
	if o.DataDir != nil {
		c.DataDir = *o.DataDir
	}
	if o.Metric != nil {
		c.Metric = *o.Metric
	}
	if o.UDPPort != nil {
		c.UDPPort(*o.UDPPort)
	}
}

// Load reads configuration from a YAML file. With no path, defaults and
// WXLOG_* environment variables are used. If a path is given and the file
// does not exist, ErrConfigFileNotFound is returned.
func Load(path string) (*Config, error) {
	return LoadWithOverrides(path, Overrides{})
}

// LoadWithOverrides is Load with o applied after the file and the
// environment, so command-line values win. Validation sees the result.
func LoadWithOverrides(path string, o Overrides) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(expandEnvVars(data), cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)
	cfg.ApplyOverrides(o)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.UDPListen == "" {
		return fmt.Errorf("udp_listen is required")
	}
	_, port, err := net.SplitHostPort(c.UDPListen)
	if err != nil {
		return fmt.Errorf("udp_listen: %w", err)
	}
	if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("udp_listen: invalid port %q", port)
	}
	if c.HTTPListen != "" {
		if _, _, err := net.SplitHostPort(c.HTTPListen); err != nil {
			return fmt.Errorf("http_listen: %w", err)
		}
	}
	// An empty passkey is a substring of every token and would accept all uploads.
	if c.Passkey == "" {
		return fmt.Errorf("passkey is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt: broker is required when enabled")
		}
		if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
			return fmt.Errorf("mqtt: port must be between 1 and 65535")
		}
		if c.MQTT.TopicPrefix == "" {
			return fmt.Errorf("mqtt: topic_prefix is required when enabled")
		}
	}

	for i, n := range c.Notifications {
		switch n.Type {
		case "ntfy":
			if n.URL == "" {
				return fmt.Errorf("notifications[%d]: url is required for ntfy", i)
			}
			if n.Topic == "" {
				return fmt.Errorf("notifications[%d]: topic is required for ntfy", i)
			}
		case "webhook":
			if n.URL == "" {
				return fmt.Errorf("notifications[%d]: url is required for webhook", i)
			}
		default:
			return fmt.Errorf("notifications[%d]: unknown type %q (expected ntfy or webhook)", i, n.Type)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("log_level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("log_format must be one of: text, json")
	}

	if a := c.Alerts.StationSilent; a != nil {
		if a.After.Duration <= 0 {
			return fmt.Errorf("alerts.station_silent: after must be > 0")
		}
	}
	if a := c.Alerts.StorageFailing; a != nil {
		if a.Threshold < 1 {
			return fmt.Errorf("alerts.storage_failing: threshold must be >= 1")
		}
	}

	return nil
}

// Defaults returns the configuration used when no file is given.
func Defaults() *Config {
	hostname, _ := os.Hostname()
	return &Config{
		UDPListen:  ":12000",
		HTTPListen: ":8080",
		Passkey:    "mypasskey",
		DataDir:    "wxdb",
		Metric:     true,
		LogLevel:   "info",
		LogFormat:  "text",
		MQTT: MQTTConfig{
			Port:        1883,
			ClientID:    "wxlog-" + hostname,
			TopicPrefix: "wxlog/readings",
		},
	}
}

// UDPPort sets the UDP listen address to every interface on port.
func (c *Config) UDPPort(port int) {
	c.UDPListen = net.JoinHostPort("", strconv.Itoa(port))
}

// expandEnvVars replaces ${VAR_NAME} placeholders in raw YAML with the
// corresponding environment variable values. Unset variables are replaced
// with an empty string, which will then fail validation with a clear error.
func expandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		key := string(match[2 : len(match)-1]) // strip ${ and }
		return []byte(os.Getenv(key))
	})
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WXLOG_UDP_LISTEN"); v != "" {
		cfg.UDPListen = v
	}
	if v := os.Getenv("WXLOG_HTTP_LISTEN"); v != "" {
		cfg.HTTPListen = v
	}
	if v := os.Getenv("WXLOG_PASSKEY"); v != "" {
		cfg.Passkey = v
	}
	if v := os.Getenv("WXLOG_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("WXLOG_METRIC"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metric = b
		}
	}
	if v := os.Getenv("WXLOG_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("WXLOG_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	// Setting a broker from the environment enables republishing.
	if v := os.Getenv("WXLOG_MQTT_BROKER"); v != "" {
		cfg.MQTT.Enabled = true
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv("WXLOG_MQTT_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Port = n
		}
	}

	// Single ntfy target from env vars (only if no YAML notifications configured).
	if len(cfg.Notifications) == 0 {
		if ntfyURL := os.Getenv("WXLOG_NTFY_URL"); ntfyURL != "" {
			topic := os.Getenv("WXLOG_NTFY_TOPIC")
			if topic == "" {
				topic = "wxlog-alerts"
			}
			cfg.Notifications = append(cfg.Notifications, NotificationConfig{
				Type:  "ntfy",
				URL:   ntfyURL,
				Topic: topic,
			})
		}
	}
}
