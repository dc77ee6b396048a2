package config

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/exp/slices"
)

// Validate checks the loaded configuration for problems the operator must fix
// before the gateway can start. All findings are reported in one pass rather
// than one restart at a time.
func (c Config) Validate() error {
	var errs []string

	if c.Operator.Username == "" {
		errs = append(errs, "operator.username is required")
	}
	if c.Operator.Password == "" {
		errs = append(errs, "operator.password is required")
	}

	if len(c.Accounts) == 0 {
		errs = append(errs, "at least one account must be configured")
	}
	seenIDs := make(map[string]bool, len(c.Accounts))
	seenNames := make(map[string]bool, len(c.Accounts))
	for i, a := range c.Accounts {
		if a.ID == "" {
			errs = append(errs, fmt.Sprintf("accounts[%d].id is required", i))
		} else if seenIDs[a.ID] {
			errs = append(errs, fmt.Sprintf("duplicate account id %q", a.ID))
		} else {
			seenIDs[a.ID] = true
		}
		if a.Name == "" {
			errs = append(errs, fmt.Sprintf("accounts[%d].name is required", i))
		} else {
			// Names resolve case-insensitively, so "Prod" and "prod" would
			// shadow each other.
			lower := strings.ToLower(a.Name)
			if seenNames[lower] {
				errs = append(errs, fmt.Sprintf("duplicate account name %q (names are matched case-insensitively)", a.Name))
			} else {
				seenNames[lower] = true
			}
		}
		if a.APIKey == "" {
			errs = append(errs, fmt.Sprintf("accounts[%d].apiKey is required", i))
		}
	}

	if (c.Server.TLSCertFile != "") != (c.Server.TLSKeyFile != "") {
		errs = append(errs, "server.tlsCertFile and server.tlsKeyFile must be set together")
	}

	durations := []struct{ field, value string }{
		{"session.ttl", c.Session.TTL},
		{"session.cleanupInterval", c.Session.CleanupInterval},
		{"render.requestTimeout", c.Render.RequestTimeout},
		{"server.shutdownTimeout", c.Server.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		if parsed, err := time.ParseDuration(d.value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: invalid duration %q", d.field, d.value))
		} else if parsed <= 0 {
			errs = append(errs, fmt.Sprintf("%s: duration must be positive, got %q", d.field, d.value))
		}
	}

	errs = append(errs, c.Audit.validate()...)

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

var saslMechanisms = []string{"PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512"}

func (a Audit) validate() []string {
	if !a.Enabled {
		return nil
	}

	var errs []string

	if !a.LogEnabled() && a.Kafka == nil && a.Webhook == nil {
		errs = append(errs, "audit.enabled is true but every sink is disabled")
	}

	if a.Kafka != nil {
		if len(a.Kafka.Brokers) == 0 {
			errs = append(errs, "audit.kafka.brokers is required")
		}
		if a.Kafka.Topic == "" {
			errs = append(errs, "audit.kafka.topic is required")
		}
		if s := a.Kafka.SASL; s != nil {
			if !slices.Contains(saslMechanisms, s.Mechanism) {
				errs = append(errs, fmt.Sprintf("audit.kafka.sasl.mechanism %q is not supported (use %s)", s.Mechanism, strings.Join(saslMechanisms, ", ")))
			}
		}
		kafkaDurations := []struct{ field, value string }{
			{"audit.kafka.batchTimeout", a.Kafka.BatchTimeout},
			{"audit.kafka.writeTimeout", a.Kafka.WriteTimeout},
		}
		for _, d := range kafkaDurations {
			if d.value == "" {
				continue
			}
			if _, err := time.ParseDuration(d.value); err != nil {
				errs = append(errs, fmt.Sprintf("%s: invalid duration %q", d.field, d.value))
			}
		}
	}

	if a.Webhook != nil && a.Webhook.URL == "" {
		errs = append(errs, "audit.webhook.url is required")
	}

	if a.SampleRate < 0 || a.SampleRate > 1 {
		errs = append(errs, fmt.Sprintf("audit.sampleRate must be between 0 and 1, got %v", a.SampleRate))
	}

	return errs
}
