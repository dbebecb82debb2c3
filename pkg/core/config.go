package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	// ProductionURL is the only host the Graviex API is served from.
	ProductionURL = "https://graviex.net"
	// APIPrefix is prepended to every endpoint path.
	APIPrefix = "/webapi/v3"
	// DefaultTimeout bounds every request issued by a session.
	DefaultTimeout = 2 * time.Second
)

// Credentials holds the Graviex API key pair.
// The secret key is only ever used as an HMAC key and never leaves the process.
type Credentials struct {
	// AccessKey is the public key sent as the access_key parameter.
	AccessKey string `json:"access_key" validate:"required"`
	// SecretKey is the private key used to sign requests. It is loaded by
	// LoadConfig and never serialized.
	SecretKey string `json:"-" validate:"required"`
}

// String returns a masked representation safe for logs.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{AccessKey:%s, SecretKey:%s}", maskKey(c.AccessKey), maskKey(c.SecretKey))
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler with masked values.
func (c Credentials) MarshalZerologObject(e *zerolog.Event) {
	e.Str("access_key", maskKey(c.AccessKey))
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

// Config contains all configuration options for a Graviex session.
type Config struct {
	// BaseURL is the scheme and host requests are sent to. Paths are appended verbatim.
	BaseURL     string       `json:"base_url" validate:"required,url"`
	Credentials *Credentials `json:"credentials,omitempty" validate:"-"`

	// Timeout is the maximum duration for a single HTTP request.
	Timeout   time.Duration `json:"timeout" validate:"min=1ms"`
	UserAgent string        `json:"user_agent"`

	CircuitBreakerEnabled          bool          `json:"circuit_breaker_enabled"`
	CircuitBreakerFailThreshold    int           `json:"circuit_breaker_fail_threshold"`
	CircuitBreakerSuccessThreshold int           `json:"circuit_breaker_success_threshold"`
	CircuitBreakerTimeout          time.Duration `json:"circuit_breaker_timeout"`

	LogLevel string `json:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// DefaultConfig returns a Config pointed at the production host with a 2s
// timeout and the circuit breaker disabled.
func DefaultConfig() *Config {
	return &Config{
		BaseURL: ProductionURL,
		Timeout: DefaultTimeout,

		CircuitBreakerEnabled:          false,
		CircuitBreakerFailThreshold:    5,
		CircuitBreakerSuccessThreshold: 2,
		CircuitBreakerTimeout:          30 * time.Second,

		LogLevel: "info",
	}
}

var validate = validator.New()

// Validate checks the struct tags and the cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Credentials != nil {
		if err := validate.Struct(c.Credentials); err != nil {
			return fmt.Errorf("%w: credentials: %w", ErrInvalidConfig, err)
		}
	}
	if c.CircuitBreakerEnabled {
		if c.CircuitBreakerFailThreshold <= 0 {
			return fmt.Errorf("%w: CircuitBreakerFailThreshold must be positive when enabled", ErrInvalidConfig)
		}
		if c.CircuitBreakerSuccessThreshold <= 0 {
			return fmt.Errorf("%w: CircuitBreakerSuccessThreshold must be positive when enabled", ErrInvalidConfig)
		}
		if c.CircuitBreakerTimeout <= 0 {
			return fmt.Errorf("%w: CircuitBreakerTimeout must be positive when enabled", ErrInvalidConfig)
		}
	}
	return nil
}

// HasCredentials reports whether a complete key pair is configured.
func (c *Config) HasCredentials() bool {
	return c.Credentials != nil && c.Credentials.AccessKey != "" && c.Credentials.SecretKey != ""
}

// WithCredentials sets the API credentials and returns the config for chaining.
func (c *Config) WithCredentials(creds *Credentials) *Config {
	c.Credentials = creds
	return c
}

// WithBaseURL overrides the API host and returns the config for chaining.
func (c *Config) WithBaseURL(baseURL string) *Config {
	c.BaseURL = baseURL
	return c
}

// WithTimeout sets the request timeout and returns the config for chaining.
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithCircuitBreaker enables the circuit breaker with the given thresholds.
func (c *Config) WithCircuitBreaker(failThreshold, successThreshold int, timeout time.Duration) *Config {
	c.CircuitBreakerEnabled = true
	c.CircuitBreakerFailThreshold = failThreshold
	c.CircuitBreakerSuccessThreshold = successThreshold
	c.CircuitBreakerTimeout = timeout
	return c
}

// LoadConfig builds a Config from an optional file and GRAVIEX_* environment
// variables layered over DefaultConfig. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	def := DefaultConfig()

	v := viper.New()
	v.SetDefault("base_url", def.BaseURL)
	v.SetDefault("timeout", def.Timeout)
	v.SetDefault("user_agent", def.UserAgent)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("circuit_breaker.enabled", def.CircuitBreakerEnabled)
	v.SetDefault("circuit_breaker.fail_threshold", def.CircuitBreakerFailThreshold)
	v.SetDefault("circuit_breaker.success_threshold", def.CircuitBreakerSuccessThreshold)
	v.SetDefault("circuit_breaker.timeout", def.CircuitBreakerTimeout)

	v.SetEnvPrefix("GRAVIEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("credentials.access_key", "GRAVIEX_ACCESS_KEY")
	_ = v.BindEnv("credentials.secret_key", "GRAVIEX_SECRET_KEY")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		BaseURL:                        v.GetString("base_url"),
		Timeout:                        v.GetDuration("timeout"),
		UserAgent:                      v.GetString("user_agent"),
		CircuitBreakerEnabled:          v.GetBool("circuit_breaker.enabled"),
		CircuitBreakerFailThreshold:    v.GetInt("circuit_breaker.fail_threshold"),
		CircuitBreakerSuccessThreshold: v.GetInt("circuit_breaker.success_threshold"),
		CircuitBreakerTimeout:          v.GetDuration("circuit_breaker.timeout"),
		LogLevel:                       v.GetString("log_level"),
	}

	accessKey := v.GetString("credentials.access_key")
	secretKey := v.GetString("credentials.secret_key")
	if accessKey != "" || secretKey != "" {
		cfg.Credentials = &Credentials{AccessKey: accessKey, SecretKey: secretKey}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
