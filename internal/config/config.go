package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/domain/record"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/errors"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/infrastructure/network"
)

// Environment is the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the complete daemon configuration.
type Config struct {
	Environment Environment        `yaml:"environment" json:"environment" validate:"required,oneof=development staging production"`
	Session     Session            `yaml:"session" json:"session"`
	Network     network.Thresholds `yaml:"network" json:"network"`
	Fetch       Fetch              `yaml:"fetch" json:"fetch"`
	Dispatch    Dispatch           `yaml:"dispatch" json:"dispatch"`
	Logging     Logging            `yaml:"logging" json:"logging"`
	Metrics     Metrics            `yaml:"metrics" json:"metrics"`
	Tracing     Tracing            `yaml:"tracing" json:"tracing"`
	Server      Server             `yaml:"server" json:"server"`
	Supabase    Supabase           `yaml:"supabase" json:"supabase"`

	// LoadedFrom lists the sources applied, lowest priority first.
	LoadedFrom []string `yaml:"-" json:"-"`
}

// Session tunes every record session.
type Session struct {
	QuietPeriod     time.Duration `yaml:"quiet_period" json:"quiet_period" validate:"gt=0"`
	SweepInterval   time.Duration `yaml:"sweep_interval" json:"sweep_interval" validate:"gt=0"`
	DefaultStrategy string        `yaml:"default_strategy" json:"default_strategy" validate:"required"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" json:"idle_timeout" validate:"min=0"`

	// Qualifiers overrides the key qualifier per category name, for example
	// "soap-records: limit=20".
	Qualifiers map[string]string `yaml:"qualifiers" json:"qualifiers"`
}

// Fetch configures the decorators wrapped around every fetcher.
type Fetch struct {
	Timeout        time.Duration  `yaml:"timeout" json:"timeout" validate:"gt=0"`
	Retry          Retry          `yaml:"retry" json:"retry"`
	CircuitBreaker CircuitBreaker `yaml:"circuit_breaker" json:"circuit_breaker"`
	Simulated      Simulated      `yaml:"simulated" json:"simulated"`
}

// Retry configures retries of retryable fetch failures.
type Retry struct {
	MaxAttempts   int           `yaml:"max_attempts" json:"max_attempts" validate:"min=1,max=10"`
	BaseDelay     time.Duration `yaml:"base_delay" json:"base_delay" validate:"min=0"`
	MaxDelay      time.Duration `yaml:"max_delay" json:"max_delay" validate:"min=0"`
	BackoffFactor float64       `yaml:"backoff_factor" json:"backoff_factor" validate:"gte=1"`
	JitterFactor  float64       `yaml:"jitter_factor" json:"jitter_factor" validate:"min=0,max=1"`
}

// CircuitBreaker configures the per-category breakers.
type CircuitBreaker struct {
	Enabled          bool          `yaml:"enabled" json:"enabled"`
	MaxRequests      uint32        `yaml:"max_requests" json:"max_requests" validate:"min=1"`
	Interval         time.Duration `yaml:"interval" json:"interval" validate:"min=0"`
	Timeout          time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`
	FailureThreshold float64       `yaml:"failure_threshold" json:"failure_threshold" validate:"gt=0,max=1"`
	MinRequests      uint32        `yaml:"min_requests" json:"min_requests" validate:"min=1"`
}

// Simulated configures the stand-in fetchers used without a backend.
type Simulated struct {
	Latency     time.Duration `yaml:"latency" json:"latency" validate:"min=0"`
	FailureRate float64       `yaml:"failure_rate" json:"failure_rate" validate:"min=0,max=1"`
}

// Dispatch sizes the background prefetch pool of each session.
type Dispatch struct {
	Workers   int `yaml:"workers" json:"workers" validate:"min=1,max=64"`
	QueueSize int `yaml:"queue_size" json:"queue_size" validate:"min=1"`
}

type Logging struct {
	Level string `yaml:"level" json:"level" validate:"omitempty,oneof=debug info warn error"`
}

type Metrics struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace" validate:"required_if=Enabled true"`
	Path      string `yaml:"path" json:"path" validate:"required_if=Enabled true"`
}

type Tracing struct {
	Enabled     bool    `yaml:"enabled" json:"enabled"`
	ServiceName string  `yaml:"service_name" json:"service_name" validate:"required_if=Enabled true"`
	Endpoint    string  `yaml:"endpoint" json:"endpoint" validate:"required_if=Enabled true"`
	SampleRate  float64 `yaml:"sample_rate" json:"sample_rate" validate:"min=0,max=1"`
	Insecure    bool    `yaml:"insecure" json:"insecure"`
}

type Server struct {
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" validate:"gt=0"`

	// AllowedOrigins lists the browser origins of the record screen. Empty
	// disables CORS headers.
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
}

// Supabase points the fetchers at the hosted backend. An empty URL selects
// the simulated fetchers.
type Supabase struct {
	URL string `yaml:"url" json:"url" validate:"omitempty,url"`
	Key string `yaml:"key" json:"-" validate:"required_with=URL"`
}

// Addr returns the listen address.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IsDevelopment reports whether hot reload and verbose defaults apply.
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// ============================================================================
// VALIDATION
// ============================================================================

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks struct tags first, then the rules spanning fields.
func (c *Config) Validate() error {
	var problems []string

	if err := validate.Struct(c); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrs {
				problems = append(problems, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			problems = append(problems, err.Error())
		}
	}

	if _, err := record.ParseLoadStrategy(c.Session.DefaultStrategy); c.Session.DefaultStrategy != "" && err != nil {
		problems = append(problems, fmt.Sprintf("session.default_strategy %q is unknown", c.Session.DefaultStrategy))
	}
	for name := range c.Session.Qualifiers {
		if _, err := record.ParseCategory(name); err != nil {
			problems = append(problems, fmt.Sprintf("session.qualifiers: unknown category %q", name))
		}
	}
	if c.Fetch.Retry.MaxDelay > 0 && c.Fetch.Retry.MaxDelay < c.Fetch.Retry.BaseDelay {
		problems = append(problems, "fetch.retry.max_delay is below base_delay")
	}
	if c.Environment == Production && c.Supabase.URL == "" {
		problems = append(problems, "supabase.url is required in production")
	}

	if len(problems) > 0 {
		return errors.Validation(errors.CodeInvalidConfig, "Invalid configuration").
			WithOperation("Validate").
			WithDetails(strings.Join(problems, "; ")).
			Build()
	}
	return nil
}

// Qualifiers returns the key qualifier table: the record defaults with
// the configured overrides applied. Unknown names are skipped; Validate
// reports them.
func (c *Config) Qualifiers() map[record.Category]string {
	out := make(map[record.Category]string, len(record.DefaultQualifiers)+len(c.Session.Qualifiers))
	for category, qualifier := range record.DefaultQualifiers {
		out[category] = qualifier
	}
	for name, qualifier := range c.Session.Qualifiers {
		if category, err := record.ParseCategory(name); err == nil {
			out[category] = qualifier
		}
	}
	return out
}
