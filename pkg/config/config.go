// Package config provides configuration file support for the
// clustering engine. It handles loading, validation, and environment
// variable interpolation for cabinets.yaml configuration files.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the full cabinets configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Run        RunConfig        `mapstructure:"run"`
	Collective CollectiveConfig `mapstructure:"collective"`
	Export     ExportConfig     `mapstructure:"export"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// ServerConfig holds the metrics/health HTTP server settings.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// RunConfig holds the parameters of one clustering run that are not
// discovered from the input file or the collective layer itself.
type RunConfig struct {
	Cabinets      int `mapstructure:"cabinets"`
	Workers       int `mapstructure:"workers"`
	MaxIterations int `mapstructure:"max_iterations"`
}

// CollectiveConfig selects and configures the collective backend.
type CollectiveConfig struct {
	// Backend is "localmem" (default, in-process) or "grpcc" (real
	// multi-process transport).
	Backend     string `mapstructure:"backend"`
	Coordinator string `mapstructure:"coordinator"`
	Rank        int    `mapstructure:"rank"`
}

// ExportConfig holds centroid-export sink settings.
type ExportConfig struct {
	Backend   string `mapstructure:"backend"`
	Index     string `mapstructure:"index"`
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Tracing TracingConfig `mapstructure:"tracing"`
}

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Exporter   string  `mapstructure:"exporter"`
	Endpoint   string  `mapstructure:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate"`
	Insecure   bool    `mapstructure:"insecure"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Run: RunConfig{
			Cabinets:      0,
			Workers:       1,
			MaxIterations: 0,
		},
		Collective: CollectiveConfig{
			Backend: "localmem",
			Rank:    0,
		},
		Export: ExportConfig{
			Backend: "",
		},
		Telemetry: TelemetryConfig{
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "otlp",
				Endpoint:   "localhost:4317",
				SampleRate: 1.0,
				Insecure:   true,
			},
		},
	}
}

// Load reads configuration from the given viper instance and returns
// a validated Config. Environment variables in string values are
// interpolated using ${VAR} syntax.
func Load(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	interpolateConfig(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile reads a specific config file and returns a validated Config.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return Load(v)
}

// Validate checks the configuration for errors and returns a
// descriptive error if any field is invalid. This mirrors but does
// not replace the engine's own ConfigInvalid check on C/W/S derived
// from the input file — this validation only covers the parts of the
// configuration that are not input-dependent.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port: must be between 0 and 65535, got %d", cfg.Server.Port))
	}
	if cfg.Server.ReadTimeout < 0 {
		errs = append(errs, "server.read_timeout: must be non-negative")
	}
	if cfg.Server.WriteTimeout < 0 {
		errs = append(errs, "server.write_timeout: must be non-negative")
	}

	if cfg.Run.Cabinets < 0 {
		errs = append(errs, "run.cabinets: must be non-negative")
	}
	if cfg.Run.Workers < 1 {
		errs = append(errs, "run.workers: must be at least 1")
	}
	if cfg.Run.MaxIterations < 0 {
		errs = append(errs, "run.max_iterations: must be non-negative")
	}

	validCollectiveBackends := map[string]bool{"localmem": true, "grpcc": true}
	if !validCollectiveBackends[cfg.Collective.Backend] {
		errs = append(errs, fmt.Sprintf("collective.backend: unsupported backend %q (supported: localmem, grpcc)", cfg.Collective.Backend))
	}
	if cfg.Collective.Backend == "grpcc" && cfg.Collective.Rank != 0 && cfg.Collective.Coordinator == "" {
		errs = append(errs, "collective.coordinator: required for grpcc backend at rank > 0")
	}

	validExportBackends := map[string]bool{"": true, "pinecone": true, "qdrant": true}
	if !validExportBackends[cfg.Export.Backend] {
		errs = append(errs, fmt.Sprintf("export.backend: unsupported backend %q (supported: pinecone, qdrant)", cfg.Export.Backend))
	}

	validExporters := map[string]bool{"otlp": true, "stdout": true, "none": true, "": true}
	if !validExporters[cfg.Telemetry.Tracing.Exporter] {
		errs = append(errs, fmt.Sprintf("telemetry.tracing.exporter: unsupported exporter %q (supported: otlp, stdout, none)", cfg.Telemetry.Tracing.Exporter))
	}
	if cfg.Telemetry.Tracing.SampleRate < 0 || cfg.Telemetry.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Sprintf("telemetry.tracing.sample_rate: must be between 0 and 1, got %f", cfg.Telemetry.Tracing.SampleRate))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// envVarPattern matches ${VAR} or ${VAR:-default} syntax.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// InterpolateEnv replaces ${VAR} and ${VAR:-default} patterns in a string
// with the corresponding environment variable values.
func InterpolateEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		if defaultVal != "" {
			return defaultVal
		}
		return match
	})
}

// interpolateConfig applies environment variable interpolation to all
// string fields in the config.
func interpolateConfig(cfg *Config) {
	cfg.Server.Host = InterpolateEnv(cfg.Server.Host)
	cfg.Collective.Backend = InterpolateEnv(cfg.Collective.Backend)
	cfg.Collective.Coordinator = InterpolateEnv(cfg.Collective.Coordinator)
	cfg.Export.Backend = InterpolateEnv(cfg.Export.Backend)
	cfg.Export.Index = InterpolateEnv(cfg.Export.Index)
	cfg.Export.Host = InterpolateEnv(cfg.Export.Host)
	cfg.Export.Namespace = InterpolateEnv(cfg.Export.Namespace)
	cfg.Telemetry.Tracing.Exporter = InterpolateEnv(cfg.Telemetry.Tracing.Exporter)
	cfg.Telemetry.Tracing.Endpoint = InterpolateEnv(cfg.Telemetry.Tracing.Endpoint)
}

// GenerateTemplate returns a YAML template string with all available
// configuration options and their defaults, suitable for writing to
// a cabinets.yaml file.
func GenerateTemplate() string {
	return `# Cabinets Configuration
# See: https://github.com/Siddhant-K-code/cabinets

server:
  port: 8080
  host: 0.0.0.0
  read_timeout: 30s
  write_timeout: 60s

run:
  cabinets: 0          # 0 lets the input file's header default apply
  workers: 1
  max_iterations: 0    # 0 means no cap beyond natural convergence

collective:
  backend: localmem    # localmem or grpcc
  coordinator: ""      # host:port, required for grpcc at rank > 0
  rank: 0

export:
  backend: ""          # "", pinecone, or qdrant
  index: ""
  host: ""             # required for qdrant
  namespace: ""

telemetry:
  tracing:
    enabled: false
    exporter: otlp       # otlp, stdout, or none
    endpoint: localhost:4317
    sample_rate: 1.0     # 0.0 to 1.0
    insecure: true
`
}
