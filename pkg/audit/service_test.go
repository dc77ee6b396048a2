// SPDX-FileCopyrightText: 2026 renderfleet authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewService(t *testing.T) {
	logger := zap.NewNop()

	svc := NewService(logger)
	assert.NotNil(t, svc)
	assert.False(t, svc.IsEnabled())
}

func TestService_ConfigureDisabled(t *testing.T) {
	logger := zap.NewNop()
	svc := NewService(logger)

	err := svc.Configure(Config{Enabled: false, Log: true})
	assert.NoError(t, err)
	assert.False(t, svc.IsEnabled())
}

func TestService_ConfigureWithLogSink(t *testing.T) {
	logger := zap.NewNop()
	svc := NewService(logger)

	err := svc.Configure(Config{
		Enabled: true,
		Log:     true,
	})
	assert.NoError(t, err)
	assert.True(t, svc.IsEnabled())

	// Cleanup
	err = svc.Close()
	assert.NoError(t, err)
	assert.False(t, svc.IsEnabled())
}

func TestService_ConfigureQueueSettings(t *testing.T) {
	logger := zap.NewNop()
	svc := NewService(logger)

	err := svc.Configure(Config{
		Enabled:    true,
		Log:        true,
		QueueSize:  5000,
		Workers:    3,
		DropOnFull: true,
	})
	assert.NoError(t, err)
	assert.True(t, svc.IsEnabled())

	// Cleanup
	_ = svc.Close()
}

func TestService_ConfigureSampling(t *testing.T) {
	logger := zap.NewNop()
	svc := NewService(logger)

	err := svc.Configure(Config{
		Enabled:    true,
		Log:        true,
		SampleRate: 0.5,
	})
	assert.NoError(t, err)
	assert.True(t, svc.IsEnabled())

	// Cleanup
	_ = svc.Close()
}

func TestService_ConfigureNoSinks(t *testing.T) {
	logger := zap.NewNop()
	svc := NewService(logger)

	err := svc.Configure(Config{Enabled: true})
	assert.NoError(t, err)
	// No sinks means disabled
	assert.False(t, svc.IsEnabled())
}

func TestService_EmitWhenDisabled(t *testing.T) {
	logger := zap.NewNop()
	svc := NewService(logger)

	// Service is disabled by default
	event := &Event{
		ID:        "test-1",
		Type:      EventAuthLogin,
		Timestamp: time.Now(),
		Actor:     Actor{User: "ops"},
	}

	// Should not panic
	svc.Emit(context.Background(), event)

	// Sync emit should return nil
	err := svc.EmitSync(context.Background(), event)
	assert.NoError(t, err)
}

func TestService_EmitWhenEnabled(t *testing.T) {
	logger := zap.NewNop()
	svc := NewService(logger)

	err := svc.Configure(Config{
		Enabled: true,
		Log:     true,
	})
	require.NoError(t, err)
	assert.True(t, svc.IsEnabled())

	event := &Event{
		ID:        "test-1",
		Type:      EventAuthLogin,
		Timestamp: time.Now(),
		Actor:     Actor{User: "ops"},
	}

	// Should not panic
	svc.Emit(context.Background(), event)

	// Sync emit
	err = svc.EmitSync(context.Background(), event)
	assert.NoError(t, err)

	// Cleanup
	_ = svc.Close()
}

func TestService_CloseWhenNotConfigured(t *testing.T) {
	logger := zap.NewNop()
	svc := NewService(logger)

	// Close without Configure
	err := svc.Close()
	assert.NoError(t, err)
}

func TestService_ReconfigureReplacesSinks(t *testing.T) {
	logger := zap.NewNop()
	svc := NewService(logger)

	// First configure
	err := svc.Configure(Config{Enabled: true, Log: true})
	require.NoError(t, err)
	assert.True(t, svc.IsEnabled())

	// Second configure replaces the pipeline
	err = svc.Configure(Config{Enabled: true, Log: true})
	require.NoError(t, err)
	assert.True(t, svc.IsEnabled())

	// Disable again
	err = svc.Configure(Config{Enabled: false})
	require.NoError(t, err)
	assert.False(t, svc.IsEnabled())

	// Cleanup
	_ = svc.Close()
}

func TestService_WebhookSink(t *testing.T) {
	logger := zap.NewNop()
	svc := NewService(logger)

	err := svc.Configure(Config{
		Enabled: true,
		Webhook: &WebhookSinkConfig{
			Name:    "webhook-sink",
			URL:     "https://example.com/audit",
			Timeout: 10 * time.Second,
			Headers: map[string]string{
				"X-Custom-Header": "value",
			},
		},
	})
	assert.NoError(t, err)
	assert.True(t, svc.IsEnabled())

	health := svc.GetSinkHealth()
	require.Len(t, health, 1)
	assert.Equal(t, "webhook-sink", health[0].Name)

	// Cleanup
	_ = svc.Close()
}

func TestService_KafkaInvalidConfig(t *testing.T) {
	logger := zap.NewNop()
	svc := NewService(logger)

	// Missing brokers
	err := svc.Configure(Config{
		Enabled: true,
		Kafka: &KafkaSinkConfig{
			Topic: "audit-events",
		},
	})
	assert.Error(t, err)
	assert.False(t, svc.IsEnabled())

	// Missing topic
	err = svc.Configure(Config{
		Enabled: true,
		Kafka: &KafkaSinkConfig{
			Brokers: []string{"localhost:9092"},
		},
	})
	assert.Error(t, err)
	assert.False(t, svc.IsEnabled())
}

func TestService_GetSinkHealth(t *testing.T) {
	logger := zap.NewNop()
	svc := NewService(logger)

	// No health before configure
	assert.Nil(t, svc.GetQueuedSinkHealth())

	err := svc.Configure(Config{Enabled: true, Log: true})
	require.NoError(t, err)

	health := svc.GetSinkHealth()
	require.Len(t, health, 1)
	assert.Equal(t, "log", health[0].Name)
	assert.Equal(t, "closed", health[0].CircuitState)

	queued := svc.GetQueuedSinkHealth()
	require.Len(t, queued, 1)
	assert.Equal(t, "log", queued[0].Name)

	// Cleanup
	_ = svc.Close()
}

func TestService_RecordHelpers(t *testing.T) {
	logger := zap.NewNop()
	svc := NewService(logger)

	err := svc.Configure(Config{Enabled: true, Log: true})
	require.NoError(t, err)
	ctx := context.Background()

	svc.RecordLogin(ctx, "ops", "10.0.0.1", "Mozilla/5.0")
	svc.RecordLoginFailed(ctx, "intruder", "10.0.0.2", "curl/8.0")
	svc.RecordLogout(ctx, "ops", "10.0.0.1")
	svc.RecordSessionExpired(ctx, "ops")
	svc.RecordServicesListed(ctx, "ops", 3, 12)
	svc.RecordDeployTriggered(ctx, "ops", "acme-prod", "srv-abc", "dep-123")
	svc.RecordEventsViewed(ctx, "ops", "acme-prod", "srv-abc")
	svc.RecordEnvVarsViewed(ctx, "ops", "acme-prod", "srv-abc", 4)
	svc.RecordEnvVarsReplaced(ctx, "ops", "acme-prod", "srv-abc", 2)
	svc.RecordEnvVarUpserted(ctx, "ops", "acme-prod", "srv-abc", "DATABASE_URL")
	svc.RecordEnvVarDeleted(ctx, "ops", "acme-prod", "srv-abc", "OLD_FLAG")
	svc.RecordStartup(ctx, 3)
	svc.RecordShutdown(ctx)

	// Give the async pipeline a moment before closing
	time.Sleep(50 * time.Millisecond)

	_ = svc.Close()
}

func TestService_RecordHelpersWhenDisabled(t *testing.T) {
	logger := zap.NewNop()
	svc := NewService(logger)
	ctx := context.Background()

	// None of these may panic on a disabled service
	svc.RecordLogin(ctx, "ops", "10.0.0.1", "Mozilla/5.0")
	svc.RecordDeployTriggered(ctx, "ops", "acme-prod", "srv-abc", "dep-123")
	svc.RecordEnvVarDeleted(ctx, "ops", "acme-prod", "srv-abc", "KEY")
	svc.RecordShutdown(ctx)
}
