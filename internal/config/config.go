package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Version is the only config file version this build understands.
const Version = 1

// Backends accepted in store.backend.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Config is the questgraph.yaml file read by the CLI.
type Config struct {
	Version int           `yaml:"version"`
	Quest   string        `yaml:"quest"`
	Symbols []string      `yaml:"symbols,omitempty"`
	Log     LogConfig     `yaml:"log"`
	Runtime RuntimeConfig `yaml:"runtime"`
	Store   StoreConfig   `yaml:"store"`
	Server  ServerConfig  `yaml:"server"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type RuntimeConfig struct {
	MaxCascade int    `yaml:"max_cascade"`
	Cycles     string `yaml:"cycles"`
}

// StoreConfig selects where instances and compiled definitions live.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	Format  string `yaml:"format"`
	// Path is the directory of the file backend or the database file of sqlite.
	Path          string        `yaml:"path"`
	DSN           string        `yaml:"dsn"`
	Redis         RedisConfig   `yaml:"redis"`
	EncryptionKey string        `yaml:"encryption_key"`
	PII           []string      `yaml:"pii"`
	LockTTL       time.Duration `yaml:"lock_ttl"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

type ServerConfig struct {
	Listen  string `yaml:"listen"`
	Metrics bool   `yaml:"metrics"`
}

// MQTTConfig enables the gameplay event bridge when Broker is set.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() *Config {
	return &Config{
		Version: Version,
		Log:     LogConfig{Level: "info", Format: "text"},
		Runtime: RuntimeConfig{Cycles: "repeatable"},
		Store: StoreConfig{
			Backend: BackendMemory,
			Format:  "binary",
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "questgraph:"},
		},
		Server: ServerConfig{Listen: ":8080", Metrics: true},
		MQTT:   MQTTConfig{ClientID: "questgraph", Topic: "questgraph/events/#", QoS: 1},
	}
}

// Load reads a config file, expands ${VAR} references from the
// environment and fills unset fields from Defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(b))), &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Version != Version {
		return nil, fmt.Errorf("unsupported questgraph.yaml version: %d", cfg.Version)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	d := Defaults()
	if cfg.Log.Level == "" {
		cfg.Log.Level = d.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = d.Log.Format
	}
	if cfg.Runtime.Cycles == "" {
		cfg.Runtime.Cycles = d.Runtime.Cycles
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = d.Store.Backend
	}
	if cfg.Store.Format == "" {
		cfg.Store.Format = d.Store.Format
	}
	if cfg.Store.Redis.Addr == "" {
		cfg.Store.Redis.Addr = d.Store.Redis.Addr
	}
	if cfg.Store.Redis.Prefix == "" {
		cfg.Store.Redis.Prefix = d.Store.Redis.Prefix
	}
	if cfg.Server.Listen == "" {
		cfg.Server = d.Server
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = d.MQTT.ClientID
	}
	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = d.MQTT.Topic
	}
}

// Validate checks enumerations and backend requirements.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendRedis, BackendPostgres:
	case BackendFile, BackendSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the %s backend", c.Store.Backend)
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	switch c.Runtime.Cycles {
	case "repeatable", "forbid", "allow":
	default:
		return fmt.Errorf("unknown runtime.cycles %q", c.Runtime.Cycles)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}
	return nil
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return match
	})
}
