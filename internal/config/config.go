// Package config loads filerelay's runtime configuration with viper,
// the way go-server-3/internal/config does: defaults registered in
// code, overridden by an optional YAML file and FILERELAY_-prefixed
// environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every configuration input spec §6 lists for the core
// engine, plus the server/transport/metrics/audit sections the host
// needs to wire it up.
type Config struct {
	Session  SessionConfig  `mapstructure:"session"`
	Client   ClientConfig   `mapstructure:"client"`
	Identity IdentityConfig `mapstructure:"identity"`
	Server   ServerConfig   `mapstructure:"server"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Guard    GuardConfig    `mapstructure:"guard"`
}

// SessionConfig is the TransferSession/Buffer/ExpectedConsumers side of
// spec §6's configuration inputs.
type SessionConfig struct {
	MaxChunkSize     int           `mapstructure:"max_chunk_size"`
	QueueMax         int           `mapstructure:"queue_max"`
	MaxConsumers     int           `mapstructure:"max_consumers"`
	SessionLimit     int           `mapstructure:"session_limit"`
	MaxLifetime      time.Duration `mapstructure:"max_lifetime"`
	MaxInitialFreeze time.Duration `mapstructure:"max_initial_freeze"`
}

// ClientConfig bounds ClientRegistry (spec §4.5).
type ClientConfig struct {
	MaxClients    int           `mapstructure:"max_clients"`
	ClientTimeout time.Duration `mapstructure:"client_timeout"`
}

// IdentityConfig holds the keyed-hash signature key used to derive a
// publicId from a privateId (spec §3), plus bootstrap token settings
// for the out-of-scope HTTP onboarding collaborator.
type IdentityConfig struct {
	SignatureKey    string        `mapstructure:"signature_key"`
	TokenTTL        time.Duration `mapstructure:"token_ttl"`
}

// ServerConfig contains network-level settings for the HTTP/WebSocket
// listener (go-server-3/internal/config.ServerConfig).
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
	Endpoint   string `mapstructure:"endpoint"`
}

// AuditConfig controls the best-effort NATS lifecycle publisher
// (internal/audit). Empty URL disables it.
type AuditConfig struct {
	NATSURL string `mapstructure:"nats_url"`
	Subject string `mapstructure:"subject"`
}

// LoggingConfig controls zerolog's level/format.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// GuardConfig feeds internal/admission.Guard.
type GuardConfig struct {
	MaxConnections       int           `mapstructure:"max_connections"`
	CPURejectThreshold   float64       `mapstructure:"cpu_reject_threshold"`
	MemoryLimitBytes     int64         `mapstructure:"memory_limit_bytes"`
	MaxSessionsPerSecond float64       `mapstructure:"max_sessions_per_second"`
	PollInterval         time.Duration `mapstructure:"poll_interval"`
}

// Load reads configuration from environment variables (FILERELAY_*) and
// an optional YAML file named filerelay.yaml on the current path or
// ./config.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("session.max_chunk_size", 256<<10)
	v.SetDefault("session.queue_max", 64)
	v.SetDefault("session.max_consumers", 32)
	v.SetDefault("session.session_limit", 1000)
	v.SetDefault("session.max_lifetime", 30*time.Minute)
	v.SetDefault("session.max_initial_freeze", 5*time.Second)

	v.SetDefault("client.max_clients", 10000)
	v.SetDefault("client.client_timeout", 60*time.Second)

	v.SetDefault("identity.signature_key", "change-me-in-production")
	v.SetDefault("identity.token_ttl", time.Hour)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8082)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.read_buffer_size", 16<<10)
	v.SetDefault("server.write_buffer_size", 16<<10)
	v.SetDefault("server.max_message_size", 1<<20)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen_addr", ":9095")
	v.SetDefault("metrics.endpoint", "/metrics")

	v.SetDefault("audit.nats_url", "")
	v.SetDefault("audit.subject", "filerelay.sessions")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)

	v.SetDefault("guard.max_connections", 20000)
	v.SetDefault("guard.cpu_reject_threshold", 90.0)
	v.SetDefault("guard.memory_limit_bytes", int64(2)<<30)
	v.SetDefault("guard.max_sessions_per_second", 50.0)
	v.SetDefault("guard.poll_interval", 15*time.Second)

	v.SetConfigName("filerelay")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("FILERELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Config{}, fmt.Errorf("config: read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}
