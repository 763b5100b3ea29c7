// Package config loads daemon configuration from env vars, an optional
// YAML file, and built-in defaults, in that order of precedence, via
// viper. Command-line flags are not read.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dwnode/dwnd/internal/logging"
)

const (
	DefaultEnvPrefix  = "DWN"
	DefaultConfigName = "dwnd.config"
	DefaultConfigType = "yml"
	DefaultConfigPath = "/etc/dwnd"

	DefaultListenAddress = "0.0.0.0:8787"
	DefaultDBDriver      = "sqlite"
	DefaultSQLitePath    = "dwnd.db"

	DefaultSyncQueueCapacity = 100
	DefaultSyncWorkers       = 4
	DefaultSyncTimeout       = 30 * time.Second
	DefaultSyncInterval      = 5 * time.Minute

	DefaultDataChunkSize = 256 * 1024
	DefaultDagLinkFanout = 174
)

var logger = logging.Named("config")

type Config struct {
	// ListenAddress is the address the HTTP transport shell binds to.
	ListenAddress string `json:"listen_address,omitempty" mapstructure:"listen_address"`

	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
	Storage StorageConfig `json:"storage" mapstructure:"storage"`
	Sync    SyncConfig    `json:"sync"    mapstructure:"sync"`
	Authz   AuthzConfig   `json:"authz"   mapstructure:"authz"`
}

type LoggingConfig struct {
	Verbose bool   `json:"verbose,omitempty" mapstructure:"verbose"`
	File    string `json:"file,omitempty"    mapstructure:"file"`
}

// StorageConfig selects and configures the gorm backend shared by the
// record store and the data store.
type StorageConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `json:"driver,omitempty" mapstructure:"driver"`

	SQLitePath string         `json:"sqlite_path,omitempty" mapstructure:"sqlite_path"`
	Postgres   PostgresConfig `json:"postgres"               mapstructure:"postgres"`

	// DataChunkSize is the fixed leaf chunk size used by the UnixFS-style data CID adder.
	DataChunkSize int `json:"data_chunk_size,omitempty" mapstructure:"data_chunk_size"`

	// DagLinkFanout is the maximum number of child links per intermediate DAG-PB node.
	DagLinkFanout int `json:"dag_link_fanout,omitempty" mapstructure:"dag_link_fanout"`
}

type PostgresConfig struct {
	Host     string `json:"host,omitempty"     mapstructure:"host"`
	Port     int    `json:"port,omitempty"     mapstructure:"port"`
	Database string `json:"database,omitempty" mapstructure:"database"`
	Username string `json:"username,omitempty" mapstructure:"username"`
	Password string `json:"password,omitempty" mapstructure:"password"`
	SSLMode  string `json:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
}

type SyncConfig struct {
	QueueCapacity int           `json:"queue_capacity,omitempty" mapstructure:"queue_capacity"`
	Workers       int           `json:"workers,omitempty"        mapstructure:"workers"`
	Timeout       time.Duration `json:"timeout,omitempty"        mapstructure:"timeout"`
	Interval      time.Duration `json:"interval,omitempty"       mapstructure:"interval"`

	// Peers lists the remote DWN endpoints (e.g. "https://peer.example/dwn/did:web:peer.example")
	// the scheduler reconciles this node's owned identities against.
	Peers []string `json:"peers,omitempty" mapstructure:"peers"`
}

// AuthzConfig holds the authz.enabled setting. cmd/dwnd does not read
// it: the coarse casbin-backed authorization gate is always built and
// enforced.
type AuthzConfig struct {
	Enabled bool `json:"enabled,omitempty" mapstructure:"enabled"`
}

// Load reads configuration from env, an optional config file, and
// defaults, in that precedence order.
func Load() (*Config, error) {
	v := viper.NewWithOptions(
		viper.KeyDelimiter("."),
		viper.EnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_")),
	)

	v.SetConfigName(DefaultConfigName)
	v.SetConfigType(DefaultConfigType)
	v.AddConfigPath(DefaultConfigPath)
	v.AddConfigPath(".")

	v.SetEnvPrefix(DefaultEnvPrefix)
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			logger.Info("config file not found, using defaults")
		} else {
			return nil, fmt.Errorf("failed to read configuration file: %w", err)
		}
	}

	_ = v.BindEnv("listen_address")
	v.SetDefault("listen_address", DefaultListenAddress)

	_ = v.BindEnv("logging.verbose")
	v.SetDefault("logging.verbose", false)

	_ = v.BindEnv("storage.driver")
	v.SetDefault("storage.driver", DefaultDBDriver)

	_ = v.BindEnv("storage.sqlite_path")
	v.SetDefault("storage.sqlite_path", DefaultSQLitePath)

	_ = v.BindEnv("storage.postgres.ssl_mode")
	v.SetDefault("storage.postgres.ssl_mode", "disable")

	_ = v.BindEnv("storage.data_chunk_size")
	v.SetDefault("storage.data_chunk_size", DefaultDataChunkSize)

	_ = v.BindEnv("storage.dag_link_fanout")
	v.SetDefault("storage.dag_link_fanout", DefaultDagLinkFanout)

	_ = v.BindEnv("sync.queue_capacity")
	v.SetDefault("sync.queue_capacity", DefaultSyncQueueCapacity)

	_ = v.BindEnv("sync.workers")
	v.SetDefault("sync.workers", DefaultSyncWorkers)

	_ = v.BindEnv("sync.timeout")
	v.SetDefault("sync.timeout", DefaultSyncTimeout)

	_ = v.BindEnv("sync.interval")
	v.SetDefault("sync.interval", DefaultSyncInterval)

	_ = v.BindEnv("sync.peers")
	v.SetDefault("sync.peers", []string{})

	_ = v.BindEnv("authz.enabled")
	v.SetDefault("authz.enabled", false)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}
