package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/application/prefetch"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/infrastructure/network"
)

// ============================================================================
// CONFIGURATION LOADER
// ============================================================================

// Loader merges configuration from files and environment variables.
type Loader struct {
	// basePath is the directory holding the configuration files
	basePath string

	environment Environment

	// fileLoaders are tried in order for each file name
	fileLoaders []FileLoader
}

// FileLoader decodes one configuration file format.
type FileLoader interface {
	Load(reader io.Reader, target interface{}) error
	Extension() string
}

// NewLoader creates a loader reading from basePath.
func NewLoader(basePath string, env Environment) *Loader {
	if basePath == "" {
		basePath = "config"
	}
	if env == "" {
		env = Development
	}

	return &Loader{
		basePath:    basePath,
		environment: env,
		fileLoaders: []FileLoader{&YAMLLoader{}, &JSONLoader{}},
	}
}

// BasePath returns the configuration directory.
func (l *Loader) BasePath() string {
	return l.basePath
}

// Load applies every source and validates the result. It is safe to call
// repeatedly, which is how the Watcher reloads.
func (l *Loader) Load() (*Config, error) {
	cfg := Defaults(l.environment)
	sources := []string{"defaults"}

	names := []string{"base", strings.ToLower(string(l.environment))}
	if l.environment == Development {
		names = append(names, "local")
	}
	for _, name := range names {
		path, err := l.loadFile(name, cfg)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to load %s config: %w", name, err)
		}
		sources = append(sources, path)
	}

	l.loadEnvironmentVariables(cfg)
	sources = append(sources, "environment")

	// Files may not switch the environment the loader was created for.
	cfg.Environment = l.environment
	cfg.LoadedFrom = sources

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes the first of name.yaml / name.json that exists and
// returns its path.
func (l *Loader) loadFile(name string, cfg *Config) (string, error) {
	for _, loader := range l.fileLoaders {
		path := filepath.Join(l.basePath, name+"."+loader.Extension())

		file, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", err
		}

		err = loader.Load(file, cfg)
		file.Close()
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return path, nil
	}
	return "", os.ErrNotExist
}

// loadEnvironmentVariables overlays the supported variables. Values that
// fail to parse are ignored.
func (l *Loader) loadEnvironmentVariables(cfg *Config) {
	if val := os.Getenv("SERVER_HOST"); val != "" {
		cfg.Server.Host = val
	}
	if port := parseInt(os.Getenv("SERVER_PORT")); port > 0 {
		cfg.Server.Port = port
	}
	if val := os.Getenv("CORS_ALLOWED_ORIGINS"); val != "" {
		cfg.Server.AllowedOrigins = strings.Split(val, ",")
	}

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.Logging.Level = strings.ToLower(val)
	}
	if val := os.Getenv("METRICS_ENABLED"); val != "" {
		cfg.Metrics.Enabled = parseBool(val)
	}

	if val := os.Getenv("TRACING_ENABLED"); val != "" {
		cfg.Tracing.Enabled = parseBool(val)
	}
	if val := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); val != "" {
		cfg.Tracing.Endpoint = val
	}

	if val := os.Getenv("SUPABASE_URL"); val != "" {
		cfg.Supabase.URL = val
	}
	if val := os.Getenv("SUPABASE_KEY"); val != "" {
		cfg.Supabase.Key = val
	}

	if d := parseDuration(os.Getenv("PREFETCH_QUIET_PERIOD")); d > 0 {
		cfg.Session.QuietPeriod = d
	}
	if d := parseDuration(os.Getenv("FETCH_TIMEOUT")); d > 0 {
		cfg.Fetch.Timeout = d
	}
	if workers := parseInt(os.Getenv("DISPATCH_WORKERS")); workers > 0 {
		cfg.Dispatch.Workers = workers
	}
}

// Defaults returns the configuration used when no file sets a value.
func Defaults(env Environment) *Config {
	cfg := &Config{
		Environment: env,
		Session: Session{
			QuietPeriod:     prefetch.DefaultQuietPeriod,
			SweepInterval:   time.Minute,
			DefaultStrategy: "view",
			IdleTimeout:     30 * time.Minute,
		},
		Network: network.DefaultThresholds(),
		Fetch: Fetch{
			Timeout: 10 * time.Second,
			Retry: Retry{
				MaxAttempts:   3,
				BaseDelay:     100 * time.Millisecond,
				MaxDelay:      2 * time.Second,
				BackoffFactor: 2.0,
				JitterFactor:  0.1,
			},
			CircuitBreaker: CircuitBreaker{
				Enabled:          true,
				MaxRequests:      3,
				Interval:         30 * time.Second,
				Timeout:          30 * time.Second,
				FailureThreshold: 0.6,
				MinRequests:      5,
			},
			Simulated: Simulated{
				Latency: 150 * time.Millisecond,
			},
		},
		Dispatch: Dispatch{
			Workers:   2,
			QueueSize: 32,
		},
		Logging: Logging{
			Level: "debug",
		},
		Metrics: Metrics{
			Enabled:   true,
			Namespace: "sessiond",
			Path:      "/metrics",
		},
		Tracing: Tracing{
			ServiceName: "sessiond",
			Endpoint:    "localhost:4317",
			SampleRate:  1.0,
			Insecure:    true,
		},
		Server: Server{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
	}

	if env == Production {
		cfg.Logging.Level = "info"
		cfg.Tracing.SampleRate = 0.1
		cfg.Tracing.Insecure = false
	}
	return cfg
}

// ============================================================================
// FILE LOADERS
// ============================================================================

// YAMLLoader loads configuration from YAML files.
type YAMLLoader struct{}

func (y *YAMLLoader) Load(reader io.Reader, target interface{}) error {
	return yaml.NewDecoder(reader).Decode(target)
}

func (y *YAMLLoader) Extension() string {
	return "yaml"
}

// JSONLoader loads configuration from JSON files.
type JSONLoader struct{}

func (j *JSONLoader) Load(reader io.Reader, target interface{}) error {
	return json.NewDecoder(reader).Decode(target)
}

func (j *JSONLoader) Extension() string {
	return "json"
}

// ============================================================================
// HELPER FUNCTIONS
// ============================================================================

func parseInt(s string) int {
	val, _ := strconv.Atoi(s)
	return val
}

func parseBool(s string) bool {
	val, _ := strconv.ParseBool(s)
	return val
}

func parseDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// EnvironmentFromEnv reads SESSIOND_ENV, defaulting to development.
func EnvironmentFromEnv() Environment {
	switch env := Environment(strings.ToLower(os.Getenv("SESSIOND_ENV"))); env {
	case Development, Staging, Production:
		return env
	default:
		return Development
	}
}

// Load reads the configuration from CONFIG_DIR (default "config") for the
// environment named by SESSIOND_ENV.
func Load() (*Config, *Loader, error) {
	loader := NewLoader(os.Getenv("CONFIG_DIR"), EnvironmentFromEnv())
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, loader, nil
}
