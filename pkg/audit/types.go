// SPDX-FileCopyrightText: 2026 renderfleet authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"time"
)

// EventType represents the type of audit event.
// The audit trail captures every operator action the gateway brokers.
type EventType string

const (
	// === Authentication events ===
	EventAuthLogin       EventType = "auth.login"
	EventAuthLoginFailed EventType = "auth.login_failed"
	EventAuthLogout      EventType = "auth.logout"

	// === Session lifecycle events ===
	EventSessionCreated     EventType = "session.created"
	EventSessionExpired     EventType = "session.expired"
	EventSessionInvalidated EventType = "session.invalidated"

	// === Gateway operation events ===
	EventServicesListed      EventType = "services.listed"
	EventDeployTriggered     EventType = "deploy.triggered"
	EventServiceEventsViewed EventType = "service.events_viewed"

	// === Environment variable events ===
	// Env vars routinely hold secrets, so mutations carry elevated severity.
	EventEnvVarsViewed   EventType = "envvars.viewed"
	EventEnvVarsReplaced EventType = "envvars.replaced"
	EventEnvVarUpserted  EventType = "envvar.upserted"
	EventEnvVarDeleted   EventType = "envvar.deleted"

	// === System events ===
	EventSystemStartup  EventType = "system.startup"
	EventSystemShutdown EventType = "system.shutdown"

	// === Audit meta events ===
	EventAuditStarted      EventType = "audit.started"
	EventAuditStopped      EventType = "audit.stopped"
	EventAuditDropped      EventType = "audit.dropped"
	EventAuditBackpressure EventType = "audit.backpressure"
)

// Severity represents the severity level of an audit event
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event represents a single audit event
type Event struct {
	// ID is a unique identifier for this event
	ID string `json:"id"`

	// Type is the type of event
	Type EventType `json:"type"`

	// Severity indicates the importance of the event
	Severity Severity `json:"severity"`

	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`

	// Actor is who triggered the event
	Actor Actor `json:"actor"`

	// Target is what was affected by the event
	Target Target `json:"target"`

	// Details contains event-specific information
	Details map[string]interface{} `json:"details,omitempty"`

	// RequestContext contains correlation information
	RequestContext *RequestContext `json:"requestContext,omitempty"`
}

// Actor represents who triggered an audit event
type Actor struct {
	// User is the operator username
	User string `json:"user"`

	// SourceIP is the IP address of the request origin
	SourceIP string `json:"sourceIP,omitempty"`

	// UserAgent from the request
	UserAgent string `json:"userAgent,omitempty"`
}

// Target represents what was affected by an audit event
type Target struct {
	// Kind is the resource kind (service, envVar, session, account, system)
	Kind string `json:"kind"`

	// Name is the resource name or identifier
	Name string `json:"name"`

	// Account is the hosting account involved (for upstream operations)
	Account string `json:"account,omitempty"`
}

// RequestContext contains correlation and context information
type RequestContext struct {
	// CorrelationID for tracing requests across components
	CorrelationID string `json:"correlationId,omitempty"`

	// Route is the gateway route that produced the event
	Route string `json:"route,omitempty"`
}

// SeverityForEventType returns the default severity for an event type
func SeverityForEventType(eventType EventType) Severity {
	switch eventType {
	// Critical events - immediate attention required
	case EventAuthLoginFailed, EventEnvVarDeleted, EventAuditDropped:
		return SeverityCritical

	// Warning events - should be reviewed
	case EventEnvVarsViewed, EventEnvVarsReplaced, EventEnvVarUpserted,
		EventAuditBackpressure:
		return SeverityWarning

	// Info events - normal operation
	default:
		return SeverityInfo
	}
}

// IsHighVolumeEvent returns true if this event type is typically high-volume
// and may benefit from sampling in production environments
func IsHighVolumeEvent(eventType EventType) bool {
	switch eventType {
	case EventServicesListed, EventServiceEventsViewed:
		return true
	default:
		return false
	}
}

// IsSensitiveEvent returns true if this event type should always be captured
// (never sampled, never dropped)
func IsSensitiveEvent(eventType EventType) bool {
	switch eventType {
	case EventAuthLogin, EventAuthLoginFailed, EventAuthLogout,
		EventSessionCreated, EventSessionInvalidated,
		EventEnvVarsViewed, EventEnvVarsReplaced, EventEnvVarUpserted,
		EventEnvVarDeleted:
		return true
	default:
		return false
	}
}
