package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v2"
)

// EnvConfigPath overrides the config file location when Load is called
// without an explicit path.
const EnvConfigPath = "RENDERFLEET_CONFIG_PATH"

type Server struct {
	ListenAddress  string   `yaml:"listenAddress"`
	TLSCertFile    string   `yaml:"tlsCertFile"`
	TLSKeyFile     string   `yaml:"tlsKeyFile"`
	TrustedProxies []string `yaml:"trustedProxies"` // IPs/CIDRs to trust for X-Forwarded-For headers (e.g., ["10.0.0.0/8", "127.0.0.1"])

	// Timeouts tunes the embedded HTTP server; unset values fall back to the
	// package defaults.
	Timeouts        *ServerTimeouts `yaml:"timeouts"`
	ShutdownTimeout string          `yaml:"shutdownTimeout"`
}

// Operator is the single human identity allowed to log in to the gateway.
type Operator struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Account identifies one upstream hosting account and the API key used to act
// on it. Values support ${VAR} references so keys can stay out of the file.
type Account struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	APIKey string `yaml:"apiKey"`
}

type Session struct {
	// TTL is how long a session stays valid after login (e.g. "24h").
	TTL string `yaml:"ttl"`

	// Namespace scopes session rows so several gateway instances can share
	// one store file without seeing each other's sessions.
	Namespace string `yaml:"namespace"`

	// StorePath is the sqlite database file. ":memory:" keeps sessions
	// ephemeral, which also means every restart logs the operator out.
	StorePath string `yaml:"storePath"`

	CleanupInterval string `yaml:"cleanupInterval"`
}

type Render struct {
	APIBaseURL     string `yaml:"apiBaseURL"`
	RequestTimeout string `yaml:"requestTimeout"`
}

// Audit configures the audit trail. When enabled, events go to the process
// log unless log is explicitly false; Kafka and webhook sinks are additive.
type Audit struct {
	Enabled bool          `yaml:"enabled"`
	Log     *bool         `yaml:"log"`
	Kafka   *AuditKafka   `yaml:"kafka"`
	Webhook *AuditWebhook `yaml:"webhook"`

	QueueSize  int     `yaml:"queueSize"`
	Workers    int     `yaml:"workers"`
	SampleRate float64 `yaml:"sampleRate"`
}

type AuditKafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`

	BatchSize    int    `yaml:"batchSize"`
	BatchTimeout string `yaml:"batchTimeout"`
	WriteTimeout string `yaml:"writeTimeout"`

	// RequiredAcks: -1 all replicas, 0 none, 1 leader only.
	RequiredAcks int    `yaml:"requiredAcks"`
	Async        bool   `yaml:"async"`
	Compression  string `yaml:"compression"`

	TLS  *AuditKafkaTLS  `yaml:"tls"`
	SASL *AuditKafkaSASL `yaml:"sasl"`
}

type AuditKafkaTLS struct {
	Enabled        bool   `yaml:"enabled"`
	CACertFile     string `yaml:"caCertFile"`
	ClientCertFile string `yaml:"clientCertFile"`
	ClientKeyFile  string `yaml:"clientKeyFile"`

	// InsecureSkipVerify skips broker certificate verification. Testing only.
	InsecureSkipVerify bool `yaml:"insecureSkipVerify"`
}

type AuditKafkaSASL struct {
	// Mechanism is one of PLAIN, SCRAM-SHA-256, SCRAM-SHA-512.
	Mechanism string `yaml:"mechanism"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

type AuditWebhook struct {
	URL      string            `yaml:"url"`
	BatchURL string            `yaml:"batchURL"`
	Headers  map[string]string `yaml:"headers"`
	Timeout  string            `yaml:"timeout"`
}

type Metrics struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type Web struct {
	// StaticDir optionally serves extra static assets (logo, stylesheet
	// overrides) alongside the built-in pages.
	StaticDir string `yaml:"staticDir"`
}

type Config struct {
	Server   Server
	Operator Operator
	Accounts []Account
	Session  Session
	Render   Render
	Audit    Audit
	Metrics  Metrics
	Web      Web
}

// Defaults used by the duration accessors when the config carries no value or
// a value that does not parse.
const (
	DefaultSessionTTL      = 24 * time.Hour
	DefaultCleanupInterval = 10 * time.Minute
	DefaultRequestTimeout  = 30 * time.Second
)

func (s Session) GetTTL() time.Duration {
	return parseDurationOrDefault(s.TTL, DefaultSessionTTL)
}

func (s Session) GetCleanupInterval() time.Duration {
	return parseDurationOrDefault(s.CleanupInterval, DefaultCleanupInterval)
}

func (r Render) GetRequestTimeout() time.Duration {
	return parseDurationOrDefault(r.RequestTimeout, DefaultRequestTimeout)
}

// LogEnabled reports whether audit events should be written to the process
// log. Defaults to true so `audit: {enabled: true}` alone produces a trail.
func (a Audit) LogEnabled() bool {
	return a.Log == nil || *a.Log
}

func (k *AuditKafka) GetBatchTimeout() time.Duration {
	if k == nil {
		return 0
	}
	return parseDurationOrDefault(k.BatchTimeout, 0)
}

func (k *AuditKafka) GetWriteTimeout() time.Duration {
	if k == nil {
		return 0
	}
	return parseDurationOrDefault(k.WriteTimeout, 0)
}

func (w *AuditWebhook) GetTimeout() time.Duration {
	if w == nil {
		return 0
	}
	return parseDurationOrDefault(w.Timeout, 0)
}

// IsEnabled reports whether the metrics endpoint should be exposed.
// Defaults to true.
func (m Metrics) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// Load loads the renderfleet configuration from a file path.
// If configPath is empty, the RENDERFLEET_CONFIG_PATH environment variable is
// consulted, then "./config.yaml". ${VAR} references in the file are expanded
// from the environment before parsing so secrets can be injected at runtime.
func Load(configPath ...string) (Config, error) {
	var path string

	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	} else if env := os.Getenv(EnvConfigPath); env != "" {
		path = env
	} else {
		path = "./config.yaml"
	}

	var config Config

	content, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("trying to open renderfleet config file %s: %v", path, err)
	}

	content = []byte(expandEnvVars(string(content)))

	err = yaml.Unmarshal(content, &config)
	if err != nil {
		return config, fmt.Errorf("error unmarshaling YAML %s: %v", path, err)
	}

	applyDefaults(&config)
	return config, nil
}

// expandEnvVars expands ${VAR} patterns in the string. Bare $VAR is left
// alone so passwords containing dollar signs survive parsing.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = ":8080"
	}
	if cfg.Session.TTL == "" {
		cfg.Session.TTL = "24h"
	}
	if cfg.Session.Namespace == "" {
		cfg.Session.Namespace = "renderfleet"
	}
	if cfg.Session.StorePath == "" {
		cfg.Session.StorePath = "renderfleet.db"
	}
	if cfg.Session.CleanupInterval == "" {
		cfg.Session.CleanupInterval = "10m"
	}
	if cfg.Render.APIBaseURL == "" {
		cfg.Render.APIBaseURL = "https://api.render.com/v1"
	}
	if cfg.Render.RequestTimeout == "" {
		cfg.Render.RequestTimeout = "30s"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}
