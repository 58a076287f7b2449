package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"

	"github.com/angeloszaimis/proxy-sentinel/internal/httpserver"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type ServerConfig struct {
	Address      string `mapstructure:"address"`
	Environment  string `mapstructure:"environment"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

type HealthCheckConfig struct {
	Interval        string `mapstructure:"interval"`
	Timeout         string `mapstructure:"timeout"`
	LivenessTimeout string `mapstructure:"liveness_timeout"`
	IPEndpoint      string `mapstructure:"ip_endpoint"`
}

type DiscoveryConfig struct {
	ComposeFile   string `mapstructure:"compose_file"`
	ContainerPort int    `mapstructure:"container_port"`
	ProxyHost     string `mapstructure:"proxy_host"`
}

type MetricsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	HealthCheck HealthCheckConfig `mapstructure:"health_check"`
	Discovery   DiscoveryConfig   `mapstructure:"discovery"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// Load reads defaults, then ./config/config.yaml or ./config.yaml if present,
// then environment variables such as HEALTH_CHECK_INTERVAL.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.address", "0.0.0.0:3006")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("health_check.interval", "60s")
	v.SetDefault("health_check.timeout", "30s")
	v.SetDefault("health_check.liveness_timeout", "10s")
	v.SetDefault("health_check.ip_endpoint", "https://api4.ipify.org")
	v.SetDefault("discovery.compose_file", "../docker/docker-compose.yml")
	v.SetDefault("discovery.container_port", 1080)
	v.SetDefault("discovery.proxy_host", "127.0.0.1")
	v.SetDefault("metrics.buffer_size", 1000)
	v.SetDefault("logging.level", LogLevelInfo)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Info("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(httpserver.ValidateAddress),
					),
					validation.Field(&sc.WriteTimeout,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.HealthCheck,
			validation.Required,
			validation.By(func(value interface{}) error {
				hc, ok := value.(HealthCheckConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a HealthCheckConfig")
				}
				return validation.ValidateStruct(&hc,
					validation.Field(&hc.Interval,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&hc.Timeout,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&hc.LivenessTimeout,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&hc.IPEndpoint,
						validation.Required,
						validation.By(validateServerURL),
					),
				)
			}),
		),
		validation.Field(&c.Discovery,
			validation.Required,
			validation.By(func(value interface{}) error {
				dc, ok := value.(DiscoveryConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a DiscoveryConfig")
				}
				return validation.ValidateStruct(&dc,
					validation.Field(&dc.ComposeFile, validation.Required),
					validation.Field(&dc.ContainerPort,
						validation.Required,
						validation.Min(1),
						validation.Max(65535),
					),
					validation.Field(&dc.ProxyHost,
						validation.Required,
						is.Host,
					),
				)
			}),
		),
		validation.Field(&c.Metrics,
			validation.Required,
			validation.By(func(value interface{}) error {
				mc, ok := value.(MetricsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a MetricsConfig")
				}
				return validation.ValidateStruct(&mc,
					validation.Field(&mc.BufferSize,
						validation.Required,
						validation.Min(1),
					),
				)
			}),
		),
	)
	if err != nil {
		return err
	}

	return c.validateWriteTimeout()
}

// validateWriteTimeout requires an on-demand check to fit in one response.
// A check verifies targets concurrently, so its worst case is one docker
// lookup plus three sequential egress lookups: the cycle's host IP, the
// verifier's host IP and the proxied IP.
func (c *Config) validateWriteTimeout() error {
	worst := c.HealthCheck.WorstCaseCheck()
	if c.Server.WriteTimeoutDuration() <= worst {
		return validation.Errors{
			"server": validation.Errors{
				"write_timeout": validation.NewError("validation_write_timeout_too_short",
					fmt.Sprintf("must be longer than the worst-case check of %s", worst)),
			},
		}
	}

	return nil
}

// Durations are validated by Validate, so these only fall back on zero
// values of hand-built configs.

func (s ServerConfig) WriteTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(s.WriteTimeout)
	return d
}

func (h HealthCheckConfig) IntervalDuration() time.Duration {
	d, _ := time.ParseDuration(h.Interval)
	return d
}

func (h HealthCheckConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(h.Timeout)
	return d
}

func (h HealthCheckConfig) LivenessTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(h.LivenessTimeout)
	return d
}

// WorstCaseCheck is the longest an on-demand check can take before
// discovery time.
func (h HealthCheckConfig) WorstCaseCheck() time.Duration {
	return 3*h.TimeoutDuration() + h.LivenessTimeoutDuration()
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}
	if d <= 0 {
		return validation.NewError("validation_non_positive_duration", "must be greater than zero")
	}

	return nil
}

func validateServerURL(value interface{}) error {
	serverURL, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if serverURL == "" {
		return validation.NewError("validation_empty_url", "server URL cannot be empty")
	}

	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}
