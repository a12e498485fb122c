package config

import (
	"flag"
	"os"
	"strconv"
)

// Config holds the local-channel switch configuration.
type Config struct {
	// AdminAddr is the bind address for the control surface HTTP server.
	AdminAddr string
	LogLevel  string
	LogFormat string // "text" or "json"

	// DialplanPath is the path to the dialplan route file consulted by
	// devicestate and call.
	DialplanPath string

	// DefaultContext is used when a destination string omits @CONTEXT.
	DefaultContext string

	// JitterBufferEnabled is the default jb_conf applied to newly
	// allocated pairs that did not request jitter buffering explicitly.
	JitterBufferEnabled bool
	JitterBufferMaxMs   int

	// NATSURL, when non-empty, enables publishing pair lifecycle events to
	// a NATS server in addition to the local log/admin-feed publishers.
	NATSURL string
}

// Load loads configuration from command line flags and environment
// variables. Flags take precedence when explicitly passed; otherwise env
// vars fill in the flag defaults before parsing.
func Load(args []string) (*Config, error) {
	cfg := &Config{
		JitterBufferMaxMs: 200,
	}

	fs := flag.NewFlagSet("localswitchd", flag.ContinueOnError)
	fs.StringVar(&cfg.AdminAddr, "admin-addr", envOr("ADMIN_ADDR", "127.0.0.1:8088"), "control surface listen address")
	fs.StringVar(&cfg.LogLevel, "loglevel", envOr("LOGLEVEL", "info"), "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "logformat", envOr("LOGFORMAT", "text"), "log format (text, json)")
	fs.StringVar(&cfg.DialplanPath, "dialplan", envOr("DIALPLAN_PATH", "dialplan.json"), "path to dialplan route file")
	fs.StringVar(&cfg.DefaultContext, "default-context", envOr("DEFAULT_CONTEXT", "default"), "context used when a destination omits @context")
	fs.BoolVar(&cfg.JitterBufferEnabled, "jb-enabled", envBoolOr("JB_ENABLED", false), "default jitter buffer enablement for new pairs")

	jbMax := envIntOr("JB_MAX_MS", cfg.JitterBufferMaxMs)
	fs.IntVar(&cfg.JitterBufferMaxMs, "jb-max-ms", jbMax, "default jitter buffer max size in milliseconds")
	fs.StringVar(&cfg.NATSURL, "nats-url", envOr("NATS_URL", ""), "NATS server URL for publishing pair events (disabled if empty)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
