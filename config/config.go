package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/angeloszaimis/jsonlog/pkg/logger"
)

const (
	ModeAsync = "async"
	ModeSync  = "sync"
)

const (
	OverflowDropNewest = "drop_newest"
	OverflowDropOldest = "drop_oldest"
	OverflowBlock      = "block"
)

const (
	FallbackStderr = "stderr"
	FallbackStdout = "stdout"
	FallbackNone   = "none"
)

// EnvFileVar names an alternative dotenv file.
const EnvFileVar = "JSONLOG_ENV_FILE"

type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

type BreakerConfig struct {
	Threshold    int    `mapstructure:"threshold"`
	ResetTimeout string `mapstructure:"reset_timeout"`
}

type LoggingConfig struct {
	Level        string        `mapstructure:"level"`
	Mode         string        `mapstructure:"mode"`
	QueueSize    int           `mapstructure:"queue_size"`
	Overflow     string        `mapstructure:"overflow"`
	BlockTimeout string        `mapstructure:"block_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff string        `mapstructure:"retry_backoff"`
	Fallback     string        `mapstructure:"fallback"`
	DrainTimeout string        `mapstructure:"drain_timeout"`
	Breaker      BreakerConfig `mapstructure:"breaker"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type Config struct {
	Service ServiceConfig `mapstructure:"service"`
	Logging LoggingConfig `mapstructure:"logging"`
	Server  ServerConfig  `mapstructure:"server"`
}

// Load reads configuration from defaults, an optional YAML file, a dotenv
// file, the environment and flags, in increasing precedence. An empty
// configFile searches ./config.yaml and ./config/config.yaml.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		slog.Error("failed to read env file", slog.String("error", err.Error()))
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, fmt.Errorf("read config: %w", err)
		}
		slog.Debug("config file not found, using defaults and environment variables")
	} else {
		slog.Debug("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", logger.DefaultServiceName())
	v.SetDefault("service.environment", "production")
	v.SetDefault("logging.level", "")
	v.SetDefault("logging.mode", ModeAsync)
	v.SetDefault("logging.queue_size", 10000)
	v.SetDefault("logging.overflow", OverflowDropNewest)
	v.SetDefault("logging.block_timeout", "100ms")
	v.SetDefault("logging.max_retries", 2)
	v.SetDefault("logging.retry_backoff", "10ms")
	v.SetDefault("logging.fallback", FallbackStderr)
	v.SetDefault("logging.drain_timeout", "5s")
	v.SetDefault("logging.breaker.threshold", 5)
	v.SetDefault("logging.breaker.reset_timeout", "30s")
	v.SetDefault("server.address", "")
}

// bindEnv maps the conventional variable names that AutomaticEnv would not
// derive from the key path.
func bindEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"logging.level":       {"LOG_LEVEL"},
		"service.name":        {"SERVICE_NAME"},
		"service.environment": {"ENVIRONMENT", "APP_ENV"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	bindings := map[string]string{
		"service":     "service.name",
		"environment": "service.environment",
		"log-level":   "logging.level",
		"mode":        "logging.mode",
		"addr":        "server.address",
	}
	for flag, key := range bindings {
		f := flags.Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	return nil
}

// loadDotEnv never overrides variables already set in the environment. A
// missing default .env is not an error; a missing explicit one is.
func loadDotEnv() error {
	if path := os.Getenv(EnvFileVar); path != "" {
		return godotenv.Load(path)
	}
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	return godotenv.Load()
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Service,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServiceConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServiceConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Name, validation.Required),
					validation.Field(&sc.Environment, validation.Required),
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
					validation.Field(&lc.Mode,
						validation.Required,
						validation.In(ModeAsync, ModeSync),
					),
					validation.Field(&lc.QueueSize,
						validation.Required,
						validation.Min(1),
					),
					validation.Field(&lc.Overflow,
						validation.Required,
						validation.In(OverflowDropNewest, OverflowDropOldest, OverflowBlock),
					),
					validation.Field(&lc.BlockTimeout, validation.Required, validation.By(validateDuration)),
					validation.Field(&lc.MaxRetries, validation.Min(0)),
					validation.Field(&lc.RetryBackoff, validation.Required, validation.By(validateDuration)),
					validation.Field(&lc.Fallback,
						validation.Required,
						validation.In(FallbackStderr, FallbackStdout, FallbackNone),
					),
					validation.Field(&lc.DrainTimeout, validation.Required, validation.By(validateDuration)),
					validation.Field(&lc.Breaker, validation.By(validateBreaker)),
				)
			}),
		),
		validation.Field(&c.Server,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Address, validation.By(validateHostPort)),
				)
			}),
		),
	)
}

// BlockTimeout, RetryBackoff, DrainTimeout and BreakerReset return the
// parsed durations. They are only meaningful after Validate succeeded.
func (c *Config) BlockTimeout() time.Duration { return mustDuration(c.Logging.BlockTimeout) }
func (c *Config) RetryBackoff() time.Duration { return mustDuration(c.Logging.RetryBackoff) }
func (c *Config) DrainTimeout() time.Duration { return mustDuration(c.Logging.DrainTimeout) }
func (c *Config) BreakerReset() time.Duration { return mustDuration(c.Logging.Breaker.ResetTimeout) }

func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

func validateBreaker(value interface{}) error {
	bc, ok := value.(BreakerConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a BreakerConfig")
	}
	return validation.ValidateStruct(&bc,
		validation.Field(&bc.ResetTimeout, validation.Required, validation.By(validateDuration)),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if addr == "" {
		return nil
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 100ms, 2s, 5m)")
	}

	if d <= 0 {
		return validation.NewError("validation_invalid_duration", "must be positive")
	}

	return nil
}
