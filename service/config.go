package service

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Listener transports. The service speaks the same one-request-per-
// connection JSON protocol over either.
const (
	TransportTCP   = "tcp"
	TransportVsock = "vsock"
)

// Config is the root configuration for the auction ledger service.
type Config struct {
	Listen      ListenConfig  `yaml:"listen"`
	MaxWorkers  int           `yaml:"max_workers"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	Journal     JournalConfig `yaml:"journal"`
}

// ListenConfig selects the transport. Addr applies to tcp, Port to
// vsock.
type ListenConfig struct {
	Transport string `yaml:"transport"`
	Addr      string `yaml:"addr"`
	Port      uint32 `yaml:"port"`
}

// JournalConfig holds the Postgres event journal settings. An empty DSN
// disables the journal.
type JournalConfig struct {
	DSN           string        `yaml:"dsn"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// Enabled reports whether a journal should be started.
func (c JournalConfig) Enabled() bool { return c.DSN != "" }

// DefaultConfig returns sensible defaults: tcp on localhost, small
// worker pool, no journal.
func DefaultConfig() Config {
	return Config{
		Listen: ListenConfig{
			Transport: TransportTCP,
			Addr:      "127.0.0.1:7070",
			Port:      7070,
		},
		MaxWorkers:  8,
		ReadTimeout: 30 * time.Second,
		Journal: JournalConfig{
			BatchSize:     100,
			FlushInterval: time.Second,
		},
	}
}

// Load reads a YAML config file and expands ${VAR} environment
// variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	return &cfg, nil
}

// LoadAndValidate loads config over the defaults and validates it.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Listen.Transport {
	case TransportTCP:
		if c.Listen.Addr == "" {
			return fmt.Errorf("listen.addr is required for tcp transport")
		}
	case TransportVsock:
		if c.Listen.Port == 0 {
			return fmt.Errorf("listen.port is required for vsock transport")
		}
	default:
		return fmt.Errorf("unknown listen.transport %q", c.Listen.Transport)
	}

	if c.MaxWorkers <= 0 {
		return fmt.Errorf("max_workers must be positive, got %d", c.MaxWorkers)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be positive, got %s", c.ReadTimeout)
	}

	if c.Journal.Enabled() {
		if c.Journal.BatchSize <= 0 {
			return fmt.Errorf("journal.batch_size must be positive, got %d", c.Journal.BatchSize)
		}
		if c.Journal.FlushInterval <= 0 {
			return fmt.Errorf("journal.flush_interval must be positive, got %s", c.Journal.FlushInterval)
		}
	}
	return nil
}
