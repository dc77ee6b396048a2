package cli

import (
	"crypto/tls"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/renderfleet/renderfleet/pkg/config"
	"github.com/renderfleet/renderfleet/pkg/session"
)

type Config struct {
	// Application flags
	Debug bool

	// Configuration flags
	ConfigPath string

	// Override flags; empty means use the value from the config file
	ListenAddr string
	StaticDir  string

	// Background cleanup flags
	EnableCleanup   bool
	CleanupInterval string
}

func Parse() *Config {
	cfg := &Config{}
	// Define command-line flags with environment variable fallbacks.
	// The pattern: flag.XxxVar(&variable, "flag-name", defaultValueOrEnvValue, "help text")
	flag.BoolVar(&cfg.Debug, "debug", getEnvBool("RENDERFLEET_DEBUG", false),
		"Enable debug level logging and gin debug mode")

	flag.StringVar(&cfg.ConfigPath, "config-path", getEnvString(config.EnvConfigPath, "./config.yaml"),
		"Path to the renderfleet configuration file")

	flag.StringVar(&cfg.ListenAddr, "listen-address", getEnvString("RENDERFLEET_LISTEN_ADDRESS", ""),
		"The address the gateway binds to (host:port). Overrides server.listenAddress from the config file")
	flag.StringVar(&cfg.StaticDir, "static-dir", getEnvString("RENDERFLEET_STATIC_DIR", ""),
		"Directory with dashboard assets to serve. Overrides web.staticDir from the config file")

	flag.BoolVar(&cfg.EnableCleanup, "enable-cleanup", getEnvBool("RENDERFLEET_ENABLE_CLEANUP", true),
		"Enable the background cleanup routine for expired sessions. Set to false when another instance sweeps the shared store")
	flag.StringVar(&cfg.CleanupInterval, "cleanup-interval", getEnvString("RENDERFLEET_CLEANUP_INTERVAL", ""),
		"Interval between expired-session sweeps (e.g., '10m', '5m'). Overrides session.cleanupInterval from the config file")

	flag.Parse()

	return cfg
}

func (c *Config) Print(log *zap.SugaredLogger) {
	log.Infow("CLI Configuration",
		"debug", c.Debug,
		"config_path", c.ConfigPath,
		"listen_address", c.ListenAddr,
		"static_dir", c.StaticDir,
		"enable_cleanup", c.EnableCleanup,
		"cleanup_interval", c.CleanupInterval,
	)
}

// DisableHTTP2 is used to configure TLS options to disable HTTP/2.
// This is important because HTTP/2 has known vulnerabilities (CVE-2023-44487, CVE-2024-3156).
func DisableHTTP2(c *tls.Config) {
	c.NextProtos = []string{"http/1.1"}
}

func ParseCleanupInterval(interval string, log *zap.SugaredLogger) time.Duration {
	// Determine session cleanup interval from CLI flag (fallback to 10m)
	cleanupInterval, err := parseDuration("cleanup-interval", interval, session.CleanupInterval)
	if err != nil {
		log.Warn(err)
	}
	return cleanupInterval
}

func parseDuration(name, value string, def time.Duration) (time.Duration, error) {
	duration := def
	if value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			duration = d
		} else {
			return duration, fmt.Errorf("invalid %s %q; using default %s: %w", name, value, def.String(), err)
		}
	}

	return duration, nil
}

// getEnvString returns the value of an environment variable, or the provided default if not set.
func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvBool returns the value of an environment variable as a bool, or the provided default if not set.
// Valid true values are "true", "1", "yes" (case-insensitive).
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(val) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultVal
}
