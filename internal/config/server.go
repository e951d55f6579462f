package config

import (
	"fmt"
	"time"

	"github.com/rezkam/dayplan/internal/env"
)

// ServerConfig holds all configuration for the server binary.
type ServerConfig struct {
	Storage         StorageConfig
	HTTP            HTTPConfig
	Auth            AuthConfig
	Planner         PlannerConfig
	Notify          NotifyConfig
	Sweep           SweepConfig
	Stream          StreamConfig
	Observability   ObservabilityConfig
	ShutdownTimeout time.Duration `env:"DAYPLAN_SHUTDOWN_TIMEOUT"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Host              string        `env:"DAYPLAN_HTTP_HOST"`
	Port              string        `env:"DAYPLAN_HTTP_PORT"`
	ReadTimeout       time.Duration `env:"DAYPLAN_HTTP_READ_TIMEOUT"`
	WriteTimeout      time.Duration `env:"DAYPLAN_HTTP_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `env:"DAYPLAN_HTTP_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `env:"DAYPLAN_HTTP_READ_HEADER_TIMEOUT"`
	MaxHeaderBytes    int           `env:"DAYPLAN_HTTP_MAX_HEADER_BYTES"`
	MaxBodyBytes      int64         `env:"DAYPLAN_HTTP_MAX_BODY_BYTES"`
}

// AuthConfig holds authenticator configuration.
type AuthConfig struct {
	OperationTimeout time.Duration `env:"DAYPLAN_AUTH_OPERATION_TIMEOUT"`
	TouchQueueSize   int           `env:"DAYPLAN_AUTH_TOUCH_QUEUE_SIZE"`
}

// PlannerConfig holds planner service configuration.
type PlannerConfig struct {
	// Timezone is an IANA name used to interpret task dates and times.
	// Empty means the host's local zone.
	Timezone     string `env:"DAYPLAN_TIMEZONE"`
	MaxRangeDays int    `env:"DAYPLAN_MAX_RANGE_DAYS"`
}

// Location resolves Timezone.
func (c *PlannerConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid DAYPLAN_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Validate rejects unknown time zones at startup.
func (c *PlannerConfig) Validate() error {
	_, err := c.Location()
	return err
}

// NotifyConfig holds push notification settings. Notifications are disabled
// when AppID is empty.
type NotifyConfig struct {
	Endpoint  string        `env:"DAYPLAN_PUSH_ENDPOINT"`
	AppID     string        `env:"DAYPLAN_PUSH_APP_ID"`
	APIKey    string        `env:"DAYPLAN_PUSH_API_KEY"`
	Segments  []string      `env:"DAYPLAN_PUSH_SEGMENTS"`
	Timeout   time.Duration `env:"DAYPLAN_PUSH_TIMEOUT"`
	QueueSize int           `env:"DAYPLAN_PUSH_QUEUE_SIZE"`
}

// Enabled reports whether push delivery is configured.
func (c *NotifyConfig) Enabled() bool {
	return c.AppID != ""
}

// Validate requires an API key whenever an app is configured.
func (c *NotifyConfig) Validate() error {
	if c.AppID != "" && c.APIKey == "" {
		return ErrPushKeyRequired
	}
	return nil
}

// SweepConfig controls the missed-task sweeper.
type SweepConfig struct {
	Disabled bool   `env:"DAYPLAN_SWEEP_DISABLED"`
	Schedule string `env:"DAYPLAN_SWEEP_SCHEDULE"`
}

// StreamConfig holds websocket stream settings.
type StreamConfig struct {
	PingInterval time.Duration `env:"DAYPLAN_STREAM_PING_INTERVAL"`
	WriteTimeout time.Duration `env:"DAYPLAN_STREAM_WRITE_TIMEOUT"`
}

// ObservabilityConfig holds observability configuration.
type ObservabilityConfig struct {
	OTelEnabled bool   `env:"DAYPLAN_OTEL_ENABLED"`
	ServiceName string `env:"OTEL_SERVICE_NAME"`
}

// LoadServerConfig loads and validates server configuration from environment.
func LoadServerConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}

	return cfg, nil
}
