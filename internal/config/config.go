package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/elmtasks/internal/foundation/errors"
)

// DefaultPath is the configuration file looked up when -c is not given.
const DefaultPath = "elmtasks.yaml"

// Config represents the application configuration.
type Config struct {
	Frontend   FrontendConfig   `yaml:"frontend"`
	Production bool             `yaml:"production"` // Minify the bundle before writing
	Compiler   CompilerConfig   `yaml:"compiler"`
	Watch      WatchConfig      `yaml:"watch"`
	LiveReload LiveReloadConfig `yaml:"livereload"`
	Notify     NotifyConfig     `yaml:"notify"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
	Retry      RetryConfig      `yaml:"retry"`
}

// FrontendConfig holds the source and destination paths of the bundle.
type FrontendConfig struct {
	JSSource string `yaml:"js_source"` // Glob of Elm entry modules, supports **
	JSDest   string `yaml:"js_dest"`   // Output directory, removed by elm:clean
	Bundle   string `yaml:"bundle"`    // Bundle file name inside JSDest
}

// CompilerConfig describes how the Elm compiler is invoked.
type CompilerConfig struct {
	Binary   string   `yaml:"binary"`
	Args     []string `yaml:"args,omitempty"`
	WorkDir  string   `yaml:"work_dir,omitempty"` // Directory containing elm.json
	Optimize bool     `yaml:"optimize"`           // Pass --optimize in production
}

// WatchConfig tunes which filesystem events trigger a rebuild.
type WatchConfig struct {
	IncludeHidden bool `yaml:"include_hidden"`
}

// LiveReloadConfig configures the development server.
type LiveReloadConfig struct {
	Enabled     bool `yaml:"enabled"`
	Port        int  `yaml:"port"`
	ServeStatic bool `yaml:"serve_static"`
}

// NotifyConfig lists additional reload notification transports.
type NotifyConfig struct {
	NATS NATSConfig `yaml:"nats"`
}

// NATSConfig configures publishing of reload events to NATS.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// MetricsConfig toggles the Prometheus endpoint on the development server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoggingConfig sets the default log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// RetryConfig sets the backoff for removing and writing output.
// An empty mode selects the defaults for every field.
type RetryConfig struct {
	Mode       string        `yaml:"mode"` // fixed|linear|exponential
	Initial    time.Duration `yaml:"initial"`
	Max        time.Duration `yaml:"max"`
	MaxRetries int           `yaml:"max_retries"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, ferrors.ConfigError(fmt.Sprintf("configuration file not found: %s", configPath)).
			WithContext("path", configPath).
			Build()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read config file").
			WithContext("path", configPath).
			Build()
	}

	return Parse([]byte(os.ExpandEnv(string(data))))
}

// Parse decodes YAML content, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to unmarshal config").Build()
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return ferrors.ValidationError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath)).Build()
	}

	example := Default()
	example.LiveReload.Enabled = true
	example.LiveReload.ServeStatic = true

	data, err := yaml.Marshal(example)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "failed to marshal example config").Build()
	}
	header := "# elmtasks configuration\n# Values support ${ENV} expansion; .env and .env.local are loaded first.\n"
	if err := os.WriteFile(configPath, append([]byte(header), data...), 0o600); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).
			Build()
	}
	return nil
}
