package config

import "time"

const (
	DefaultJSSource       = "src/**/*.elm"
	DefaultJSDest         = "public/js"
	DefaultBundle         = "app.js"
	DefaultCompiler       = "elm"
	DefaultLiveReloadPort = 35729
	DefaultNATSSubject    = "elmtasks.reload"
	DefaultLogLevel       = "info"
	DefaultRetryMode      = "linear"
	DefaultRetryInitial   = 50 * time.Millisecond
	DefaultRetryMax       = 500 * time.Millisecond
	DefaultRetries        = 2
)

func applyDefaults(cfg *Config) {
	if cfg.Frontend.JSSource == "" {
		cfg.Frontend.JSSource = DefaultJSSource
	}
	if cfg.Frontend.JSDest == "" {
		cfg.Frontend.JSDest = DefaultJSDest
	}
	if cfg.Frontend.Bundle == "" {
		cfg.Frontend.Bundle = DefaultBundle
	}
	if cfg.Compiler.Binary == "" {
		cfg.Compiler.Binary = DefaultCompiler
	}
	if cfg.LiveReload.Port == 0 {
		cfg.LiveReload.Port = DefaultLiveReloadPort
	}
	if cfg.Notify.NATS.Subject == "" {
		cfg.Notify.NATS.Subject = DefaultNATSSubject
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Retry.Mode == "" {
		cfg.Retry = RetryConfig{
			Mode:       DefaultRetryMode,
			Initial:    DefaultRetryInitial,
			Max:        DefaultRetryMax,
			MaxRetries: DefaultRetries,
		}
	}
}
