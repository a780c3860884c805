package config

import (
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the daemon configuration
type Config struct {
	Device          DeviceConfig    `yaml:"device"`
	Log             LogConfig       `yaml:"log"`
	Database        DatabaseConfig  `yaml:"database"`
	Strip           StripConfig     `yaml:"strip"`
	Animation       AnimationConfig `yaml:"animation"`
	Control         ControlConfig   `yaml:"control"`
	Portal          PortalConfig    `yaml:"portal"`
	Mesh            MeshConfig      `yaml:"mesh"`
	Lifecycle       LifecycleConfig `yaml:"lifecycle"`
	Indicator       IndicatorConfig `yaml:"indicator"`
	Button          ButtonConfig    `yaml:"button"`
	Ledger          LedgerConfig    `yaml:"ledger"`
	EventBus        EventBusConfig  `yaml:"eventbus"`
	ShutdownTimeout Duration        `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// DeviceConfig identifies the device on the control channel
type DeviceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Colors bool   `yaml:"colors"`
	JSON   bool   `yaml:"json"` // Plain JSON lines instead of the console writer
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// StripConfig selects the pixel driver
type StripConfig struct {
	Driver string `yaml:"driver"` // none | log | serial
	Device string `yaml:"device"` // Serial port, e.g. /dev/ttyUSB0
	Baud   int    `yaml:"baud"`
}

// AnimationConfig contains animation engine settings
type AnimationConfig struct {
	Seed uint64 `yaml:"seed"` // PCG seed for randomised patterns, 0 = time based
}

// ControlConfig contains control server settings
type ControlConfig struct {
	Host         string  `yaml:"host"`
	Port         int     `yaml:"port"`
	RateLimitRPS float64 `yaml:"rate_limit_rps"`
	Burst        int     `yaml:"burst"`
}

// PortalConfig contains configuration portal settings
type PortalConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// MeshConfig contains mesh transport settings
type MeshConfig struct {
	Port           int     `yaml:"port"`
	Broadcast      string  `yaml:"broadcast"`
	RelayRateLimit float64 `yaml:"relay_rate_limit"` // Master rebroadcasts per second
	RelayBurst     int     `yaml:"relay_burst"`
}

// LifecycleConfig contains the lifecycle timings
type LifecycleConfig struct {
	ConfigTimeout     Duration `yaml:"config_timeout"`
	ConfigPoll        Duration `yaml:"config_poll"`
	ScanTimeout       Duration `yaml:"scan_timeout"`
	Backoff           Duration `yaml:"backoff"`
	ConnectivityCheck Duration `yaml:"connectivity_check"`
	LoopInterval      Duration `yaml:"loop_interval"`
	MaxRetries        int      `yaml:"max_retries"`
}

// IndicatorConfig contains status LED settings
type IndicatorConfig struct {
	Refresh Duration `yaml:"refresh"`
}

// ButtonConfig contains button settings
type ButtonConfig struct {
	Debounce Duration `yaml:"debounce"`
}

// LedgerConfig contains event ledger settings
type LedgerConfig struct {
	CleanupInterval Duration `yaml:"cleanup_interval"`
	RetentionDays   int      `yaml:"retention_days"`
}

// Retention returns the retention window as a duration
func (c *LedgerConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 2)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 64)
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 2
	}
	return c.Workers
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 64
	}
	return c.QueueSize
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse expands environment variables in data, decodes it and applies defaults
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Device.Name == "" {
		cfg.Device.Name = "softbox"
	}
	if cfg.Device.Version == "" {
		cfg.Device.Version = "1.0.0"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./softboxd.sqlite"
	}

	// Strip defaults - without hardware, frames go to the debug log
	if cfg.Strip.Driver == "" {
		cfg.Strip.Driver = "log"
	}
	if cfg.Strip.Baud == 0 {
		cfg.Strip.Baud = 115200
	}

	// Control defaults
	if cfg.Control.Host == "" {
		cfg.Control.Host = "0.0.0.0"
	}
	if cfg.Control.Port == 0 {
		cfg.Control.Port = 8081
	}
	if cfg.Control.RateLimitRPS == 0 {
		cfg.Control.RateLimitRPS = 20
	}
	if cfg.Control.Burst == 0 {
		cfg.Control.Burst = 5
	}

	// Portal defaults
	if cfg.Portal.Host == "" {
		cfg.Portal.Host = "0.0.0.0"
	}
	if cfg.Portal.Port == 0 {
		cfg.Portal.Port = 80
	}

	// Mesh defaults
	if cfg.Mesh.Port == 0 {
		cfg.Mesh.Port = 8080
	}
	if cfg.Mesh.Broadcast == "" {
		cfg.Mesh.Broadcast = "255.255.255.255"
	}
	if cfg.Mesh.RelayRateLimit == 0 {
		cfg.Mesh.RelayRateLimit = 10
	}
	if cfg.Mesh.RelayBurst == 0 {
		cfg.Mesh.RelayBurst = 3
	}

	// Lifecycle defaults
	lc := &cfg.Lifecycle
	setDuration(&lc.ConfigTimeout, 5*time.Minute)
	setDuration(&lc.ConfigPoll, time.Second)
	setDuration(&lc.ScanTimeout, 30*time.Second)
	setDuration(&lc.Backoff, 5*time.Second)
	setDuration(&lc.ConnectivityCheck, 100*time.Millisecond)
	setDuration(&lc.LoopInterval, 100*time.Millisecond)
	if lc.MaxRetries == 0 {
		lc.MaxRetries = 3
	}

	setDuration(&cfg.Indicator.Refresh, 50*time.Millisecond)
	setDuration(&cfg.Button.Debounce, 50*time.Millisecond)

	// Ledger defaults
	setDuration(&cfg.Ledger.CleanupInterval, 24*time.Hour)
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}

	setDuration(&cfg.ShutdownTimeout, 5*time.Second)
}

func setDuration(d *Duration, def time.Duration) {
	if *d == 0 {
		*d = Duration(def)
	}
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}

// ExpandEnvString expands a single string with environment variables
func ExpandEnvString(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return expandEnvVars(s)
	}
	return s
}
