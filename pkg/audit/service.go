/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package audit provides the audit trail system for the gateway.
// It captures and forwards audit events to configured sinks (Kafka, webhook, log).
//
// The Service type manages the audit system lifecycle:
//   - Builds and configures sinks from the gateway configuration at startup
//   - Provides thread-safe Emit/EmitSync methods for sending audit events
//   - Offers Record helpers for the event types the gateway emits
//   - Handles graceful shutdown and sink cleanup
//
// Usage:
//
//	svc := audit.NewService(logger)
//	if err := svc.Configure(cfg); err != nil { ... }
//	// Emit events:
//	svc.RecordLogin(ctx, user, ip, userAgent)
//	// Cleanup:
//	svc.Close()
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config describes the audit sinks and queue behavior. All fields are
// resolved values; secret and certificate material has already been read
// from disk by the caller.
type Config struct {
	// Enabled turns the audit system on. When false Configure is a no-op
	// and every Emit/Record call is silently discarded.
	Enabled bool

	// Log enables the structured-log sink.
	Log bool

	// Kafka, when non-nil, enables the Kafka sink.
	Kafka *KafkaSinkConfig

	// Webhook, when non-nil, enables the webhook sink.
	Webhook *WebhookSinkConfig

	// QueueSize is the per-sink queue size. Default: 10000.
	QueueSize int

	// Workers is the per-sink worker count. Default: 2.
	Workers int

	// DropOnFull drops events silently when a queue fills up.
	DropOnFull bool

	// SampleRate samples high-volume events (1.0 = keep all).
	SampleRate float64
}

// Service manages the audit system lifecycle, including sink creation and
// event emission. Configuration is static: sinks are built once from the
// gateway config at startup.
type Service struct {
	logger            *zap.Logger
	mu                sync.RWMutex
	manager           *Manager
	sinks             []Sink
	isolatedMultiSink *IsolatedMultiSink
	enabled           bool
}

// NewService creates a new audit Service. Call Configure before emitting.
func NewService(logger *zap.Logger) *Service {
	return &Service{
		logger:  logger.Named("audit-service"),
		enabled: false,
	}
}

// Configure builds the audit pipeline from the provided config.
// If cfg.Enabled is false, auditing stays disabled and all Emit calls
// become no-ops.
func (s *Service) Configure(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Tear down any existing pipeline. The manager owns the sinks once
	// started, so closing it closes them too.
	if s.manager != nil {
		if err := s.manager.Close(); err != nil {
			s.logger.Warn("failed to close previous audit manager",
				zap.String("error", err.Error()))
		}
		s.manager = nil
		s.isolatedMultiSink = nil
		s.sinks = nil
	} else {
		s.closeSinksLocked()
	}

	if !cfg.Enabled {
		s.enabled = false
		s.manager = nil
		s.logger.Info("audit system disabled")
		return nil
	}

	sinks, err := s.buildSinks(cfg)
	if err != nil {
		return fmt.Errorf("failed to build audit sinks: %w", err)
	}

	if len(sinks) == 0 {
		s.logger.Warn("no audit sinks configured, auditing disabled")
		s.enabled = false
		return nil
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 10000
	}
	workerCount := cfg.Workers
	if workerCount <= 0 {
		workerCount = 2
	}
	sampleRate := cfg.SampleRate
	if sampleRate <= 0 || sampleRate > 1 {
		sampleRate = 1.0
	}

	// Create isolated multi-sink: each sink gets its own queue for isolation.
	// If one sink is slow/blocked, it won't affect other sinks.
	queuedSinkCfg := QueuedSinkConfig{
		QueueSize:               queueSize,
		WorkerCount:             workerCount,
		WriteTimeout:            5 * time.Second,
		DropOnFull:              cfg.DropOnFull,
		CircuitBreakerThreshold: 5,
		CircuitBreakerResetTime: 30 * time.Second,
	}
	isolatedMultiSink := NewIsolatedMultiSink(sinks, queuedSinkCfg, s.logger)

	// Create manager config (queuing is per-sink, the main queue only
	// buffers before broadcasting)
	managerCfg := ManagerConfig{
		QueueSize:            100000,
		WorkerCount:          5,
		BatchSize:            100,
		BatchTimeout:         100 * time.Millisecond,
		DropOnFull:           cfg.DropOnFull,
		SampleRate:           sampleRate,
		HighVolumeEventTypes: highVolumeEventTypes(),
		WriteTimeout:         5 * time.Second,
	}

	s.manager = NewManager(isolatedMultiSink, managerCfg, s.logger)
	s.sinks = sinks
	s.isolatedMultiSink = isolatedMultiSink
	s.enabled = true

	s.logger.Info("audit system configured",
		zap.Int("sinks", len(sinks)),
		zap.Int("queueSize", queueSize),
		zap.Int("workers", workerCount),
		zap.Bool("dropOnFull", cfg.DropOnFull),
		zap.Float64("sampleRate", sampleRate))

	return nil
}

// highVolumeEventTypes lists the event types sampled at SampleRate.
func highVolumeEventTypes() []EventType {
	return []EventType{EventServicesListed, EventServiceEventsViewed}
}

// buildSinks creates sinks based on the config.
func (s *Service) buildSinks(cfg Config) ([]Sink, error) {
	var sinks []Sink

	if cfg.Log {
		sinks = append(sinks, NewLogSink(s.logger))
	}

	if cfg.Kafka != nil {
		kafkaSink, err := NewKafkaSink(*cfg.Kafka, s.logger)
		if err != nil {
			return nil, fmt.Errorf("kafka sink: %w", err)
		}
		// Wrap network sinks with circuit breaker for resilience
		cbSink := NewCircuitBreakerSink(kafkaSink, s.circuitBreakerConfig(), s.logger)
		s.logger.Info("wrapped sink with circuit breaker",
			zap.String("sink", kafkaSink.Name()),
			zap.String("type", "kafka"))
		sinks = append(sinks, cbSink)
	}

	if cfg.Webhook != nil {
		webhookSink := NewWebhookSink(*cfg.Webhook, s.logger)
		cbSink := NewCircuitBreakerSink(webhookSink, s.circuitBreakerConfig(), s.logger)
		s.logger.Info("wrapped sink with circuit breaker",
			zap.String("sink", webhookSink.Name()),
			zap.String("type", "webhook"))
		sinks = append(sinks, cbSink)
	}

	return sinks, nil
}

// circuitBreakerConfig returns circuit breaker configuration for network sinks.
func (s *Service) circuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:    5,                // Open after 5 consecutive failures
		SuccessThreshold:    2,                // Close after 2 consecutive successes in half-open
		OpenTimeout:         30 * time.Second, // Wait 30s before probing
		HalfOpenMaxRequests: 1,                // Allow 1 probe request in half-open
		OnStateChange: func(from, to CircuitState) {
			s.logger.Info("audit sink circuit breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
}

// Emit sends an audit event asynchronously.
func (s *Service) Emit(ctx context.Context, event *Event) {
	s.mu.RLock()
	manager := s.manager
	enabled := s.enabled
	s.mu.RUnlock()

	if !enabled || manager == nil {
		return
	}

	manager.Emit(ctx, event)
}

// EmitSync sends an audit event synchronously (use sparingly).
func (s *Service) EmitSync(ctx context.Context, event *Event) error {
	s.mu.RLock()
	manager := s.manager
	enabled := s.enabled
	s.mu.RUnlock()

	if !enabled || manager == nil {
		return nil
	}

	return manager.EmitSync(ctx, event)
}

// IsEnabled returns whether auditing is currently enabled.
func (s *Service) IsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// SinkHealth represents the health status of a single audit sink.
type SinkHealth struct {
	Name                string
	Healthy             bool
	CircuitState        string // "closed", "open", "half-open", or "none" for non-network sinks
	ConsecutiveFailures int64
	TotalRequests       int64
	TotalFailures       int64
	TotalRejections     int64
	LastError           string
	LastSuccessTime     time.Time
}

// GetSinkHealth returns health information for all configured sinks.
func (s *Service) GetSinkHealth() []SinkHealth {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var health []SinkHealth

	// If using isolated multi-sink (per-sink queues), get health from there
	if s.isolatedMultiSink != nil {
		for _, qh := range s.isolatedMultiSink.Health() {
			circuitState := "closed"
			if qh.CircuitOpen {
				circuitState = "open"
			}
			h := SinkHealth{
				Name:                qh.Name,
				Healthy:             qh.Healthy,
				CircuitState:        circuitState,
				ConsecutiveFailures: int64(qh.ConsecutiveFails),
				TotalRequests:       qh.ProcessedEvents + qh.FailedEvents,
				TotalFailures:       qh.FailedEvents,
				TotalRejections:     qh.DroppedEvents,
				LastError:           qh.LastError,
				LastSuccessTime:     qh.LastSuccessTime,
			}
			health = append(health, h)
		}
		return health
	}

	// Fallback: check individual sinks
	for _, sink := range s.sinks {
		h := SinkHealth{
			Name:         sink.Name(),
			Healthy:      true,
			CircuitState: "none",
		}

		if cbSink, ok := sink.(*CircuitBreakerSink); ok {
			stats := cbSink.Stats()
			h.Healthy = cbSink.IsHealthy()
			h.CircuitState = stats.State.String()
			h.ConsecutiveFailures = stats.ConsecutiveFails
			h.TotalRequests = stats.TotalRequests
			h.TotalFailures = stats.TotalFailures
			h.TotalRejections = stats.TotalRejections
			if stats.LastError != nil {
				h.LastError = stats.LastError.Error()
			}
		}

		health = append(health, h)
	}

	return health
}

// GetQueuedSinkHealth returns detailed queue health for all isolated sinks.
// This provides more detailed metrics than GetSinkHealth.
func (s *Service) GetQueuedSinkHealth() []QueuedSinkHealth {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.isolatedMultiSink == nil {
		return nil
	}

	return s.isolatedMultiSink.Health()
}

// Close shuts down the audit service.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var closeErr error
	if s.manager != nil {
		closeErr = s.manager.Close()
		// Manager.Close already closed the multi-sink and with it every
		// underlying sink, so skip closeSinksLocked to avoid double-close.
		s.sinks = nil
	} else {
		s.closeSinksLocked()
	}
	s.manager = nil
	s.isolatedMultiSink = nil
	s.enabled = false

	s.logger.Info("audit service closed")
	return closeErr
}

// closeSinksLocked closes all sinks. Caller must hold s.mu.
func (s *Service) closeSinksLocked() {
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			s.logger.Warn("failed to close audit sink",
				zap.String("sink", sink.Name()),
				zap.String("error", err.Error()))
		}
	}
	s.sinks = nil
}

// --- Record helpers for the events the gateway emits ---

// RecordLogin emits an audit event for a successful operator login.
func (s *Service) RecordLogin(ctx context.Context, user, sourceIP, userAgent string) {
	s.Emit(ctx, &Event{
		Type: EventAuthLogin,
		Actor: Actor{
			User:      user,
			SourceIP:  sourceIP,
			UserAgent: userAgent,
		},
	})
}

// RecordLoginFailed emits an audit event for a failed login attempt.
// The username is recorded as submitted; it may not match any operator.
func (s *Service) RecordLoginFailed(ctx context.Context, user, sourceIP, userAgent string) {
	s.Emit(ctx, &Event{
		Type: EventAuthLoginFailed,
		Actor: Actor{
			User:      user,
			SourceIP:  sourceIP,
			UserAgent: userAgent,
		},
	})
}

// RecordLogout emits an audit event for an operator logout.
func (s *Service) RecordLogout(ctx context.Context, user, sourceIP string) {
	s.Emit(ctx, &Event{
		Type: EventAuthLogout,
		Actor: Actor{
			User:     user,
			SourceIP: sourceIP,
		},
	})
}

// RecordSessionExpired emits an audit event when a session token is
// presented after its expiry.
func (s *Service) RecordSessionExpired(ctx context.Context, user string) {
	s.Emit(ctx, &Event{
		Type:  EventSessionExpired,
		Actor: Actor{User: user},
	})
}

// RecordServicesListed emits an audit event for the cross-account service listing.
func (s *Service) RecordServicesListed(ctx context.Context, user string, accountCount, serviceCount int) {
	s.Emit(ctx, &Event{
		Type:  EventServicesListed,
		Actor: Actor{User: user},
		Details: map[string]interface{}{
			"accountCount": accountCount,
			"serviceCount": serviceCount,
		},
	})
}

// RecordDeployTriggered emits an audit event when a deploy is started.
func (s *Service) RecordDeployTriggered(ctx context.Context, user, accountName, serviceID, deployID string) {
	s.Emit(ctx, &Event{
		Type:  EventDeployTriggered,
		Actor: Actor{User: user},
		Target: Target{
			Kind:    "service",
			Name:    serviceID,
			Account: accountName,
		},
		Details: map[string]interface{}{
			"deployId": deployID,
		},
	})
}

// RecordEventsViewed emits an audit event when service events are fetched.
func (s *Service) RecordEventsViewed(ctx context.Context, user, accountName, serviceID string) {
	s.Emit(ctx, &Event{
		Type:  EventServiceEventsViewed,
		Actor: Actor{User: user},
		Target: Target{
			Kind:    "service",
			Name:    serviceID,
			Account: accountName,
		},
	})
}

// RecordEnvVarsViewed emits an audit event when environment variables are read.
func (s *Service) RecordEnvVarsViewed(ctx context.Context, user, accountName, serviceID string, count int) {
	s.Emit(ctx, &Event{
		Type:  EventEnvVarsViewed,
		Actor: Actor{User: user},
		Target: Target{
			Kind:    "service",
			Name:    serviceID,
			Account: accountName,
		},
		Details: map[string]interface{}{
			"count": count,
		},
	})
}

// RecordEnvVarsReplaced emits an audit event for a full env-var replacement.
func (s *Service) RecordEnvVarsReplaced(ctx context.Context, user, accountName, serviceID string, count int) {
	s.Emit(ctx, &Event{
		Type:  EventEnvVarsReplaced,
		Actor: Actor{User: user},
		Target: Target{
			Kind:    "service",
			Name:    serviceID,
			Account: accountName,
		},
		Details: map[string]interface{}{
			"count": count,
		},
	})
}

// RecordEnvVarUpserted emits an audit event for a single env-var write.
// Only the key is recorded, never the value.
func (s *Service) RecordEnvVarUpserted(ctx context.Context, user, accountName, serviceID, key string) {
	s.Emit(ctx, &Event{
		Type:  EventEnvVarUpserted,
		Actor: Actor{User: user},
		Target: Target{
			Kind:    "service",
			Name:    serviceID,
			Account: accountName,
		},
		Details: map[string]interface{}{
			"key": key,
		},
	})
}

// RecordEnvVarDeleted emits an audit event for an env-var deletion.
func (s *Service) RecordEnvVarDeleted(ctx context.Context, user, accountName, serviceID, key string) {
	s.Emit(ctx, &Event{
		Type:  EventEnvVarDeleted,
		Actor: Actor{User: user},
		Target: Target{
			Kind:    "service",
			Name:    serviceID,
			Account: accountName,
		},
		Details: map[string]interface{}{
			"key": key,
		},
	})
}

// RecordStartup emits an audit event when the gateway starts.
func (s *Service) RecordStartup(ctx context.Context, accountCount int) {
	s.Emit(ctx, &Event{
		Type: EventSystemStartup,
		Details: map[string]interface{}{
			"accountCount": accountCount,
		},
	})
}

// RecordShutdown emits an audit event when the gateway shuts down.
// Uses EmitSync so the event isn't lost to a draining queue.
func (s *Service) RecordShutdown(ctx context.Context) {
	_ = s.EmitSync(ctx, &Event{
		Type: EventSystemShutdown,
	})
}
