package config

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/vango-dev/ctrlbind/internal/errors"
	"gopkg.in/yaml.v3"
)

const (
	// JSONFileName is the JSON configuration file name.
	JSONFileName = "ctrlbind.json"

	// YAMLFileName is the YAML configuration file name.
	YAMLFileName = "ctrlbind.yaml"

	// DefaultAddr is the default remote host listen address.
	DefaultAddr = "localhost:7070"

	// DefaultWSPath is the default WebSocket endpoint path.
	DefaultWSPath = "/ws"

	// DefaultReadTimeout is the default WebSocket read timeout.
	DefaultReadTimeout = "60s"

	// DefaultNamespace is the default Prometheus namespace.
	DefaultNamespace = "ctrlbind"

	// DefaultMetricsPath is the default metrics endpoint path.
	DefaultMetricsPath = "/metrics"

	// DefaultTracerName is the default OpenTelemetry tracer name.
	DefaultTracerName = "ctrlbind"
)

// Config represents the complete ctrlbind configuration.
type Config struct {
	// Server configures the remote view host.
	Server ServerConfig `json:"server,omitempty" yaml:"server,omitempty"`

	// Metrics configures Prometheus dispatch metrics.
	Metrics MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`

	// Tracing configures OpenTelemetry dispatch spans.
	Tracing TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`

	// Log configures the slog handler.
	Log LogConfig `json:"log,omitempty" yaml:"log,omitempty"`

	// Controllers filters registered controllers.
	Controllers ControllersConfig `json:"controllers,omitempty" yaml:"controllers,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains remote view host settings.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`

	// WSPath is the WebSocket endpoint path.
	WSPath string `json:"wsPath,omitempty" yaml:"wsPath,omitempty"`

	// ReadTimeout is how long a connection may stay silent (e.g., "60s").
	ReadTimeout string `json:"readTimeout,omitempty" yaml:"readTimeout,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Path      string `json:"path,omitempty" yaml:"path,omitempty"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	Enabled    bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	TracerName string `json:"tracerName,omitempty" yaml:"tracerName,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// ControllersConfig filters which registered controllers a host uses.
type ControllersConfig struct {
	// Disabled lists controller type names that are never attached.
	Disabled []string `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads configuration from the specified directory.
// It looks for ctrlbind.json first, then ctrlbind.yaml.
func Load(dir string) (*Config, error) {
	for _, name := range []string{JSONFileName, YAMLFileName} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("C100").
		WithDetail("No " + JSONFileName + " or " + YAMLFileName + " found in " + dir).
		WithSuggestion("Create one, or run without --config to use defaults")
}

// LoadFile reads configuration from the specified file path. The format is
// chosen by extension.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("C100").WithDetail("No config file at " + path)
		}
		return nil, errors.New("C101").Wrap(err)
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.New("C101").
				WithLocationFromError(path, err).
				WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
				WithSuggestion("Check that the file is valid YAML")
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.New("C101").
				WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
				WithSuggestion("Check that the file is valid JSON")
		}
	}

	cfg.configPath = path
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveTo writes the configuration to the specified path, choosing the
// format by extension.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("C101").Wrap(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New("C101").Wrap(err)
	}
	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.WSPath == "" {
		c.Server.WSPath = DefaultWSPath
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = DefaultReadTimeout
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = DefaultTracerName
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// promName matches a valid Prometheus metric name component.
var promName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Server.WSPath, "/") {
		return errors.New("C102").
			WithDetail("server.wsPath must start with '/', got " + c.Server.WSPath)
	}
	if _, err := time.ParseDuration(c.Server.ReadTimeout); err != nil {
		return errors.New("C102").
			WithDetail("server.readTimeout is not a duration: " + c.Server.ReadTimeout).
			WithSuggestion("Use a Go duration such as 30s or 2m")
	}
	if !promName.MatchString(c.Metrics.Namespace) {
		return errors.New("C102").
			WithDetail("metrics.namespace is not a valid Prometheus name: " + c.Metrics.Namespace)
	}
	if _, ok := parseLevel(c.Log.Level); !ok {
		return errors.New("C102").
			WithDetail("log.level must be one of debug, info, warn, error; got " + c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.New("C102").
			WithDetail("log.format must be text or json; got " + c.Log.Format)
	}
	return nil
}

// ReadTimeout returns the parsed server read timeout.
func (c *Config) ReadTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ReadTimeout)
	if err != nil {
		d, _ = time.ParseDuration(DefaultReadTimeout)
	}
	return d
}

// ControllerDisabled reports whether the named controller is filtered out.
func (c *Config) ControllerDisabled(name string) bool {
	for _, d := range c.Controllers.Disabled {
		if d == name {
			return true
		}
	}
	return false
}

// Logger builds a slog.Logger writing to w according to the log section.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
