package notifier

import (
	"fmt"
	"time"

	"lyrics-sync-go/events"
)

// EventType represents the type of event
type EventType string

const (
	// Critical events
	EventCircuitBreakerOpen EventType = "circuit_breaker_open"

	// Warning events
	EventCacheBackupFailed EventType = "cache_backup_failed"

	// Info events
	EventCircuitBreakerRecovered EventType = "circuit_breaker_recovered"
	EventServerStarted           EventType = "server_started"
	EventCacheCleared            EventType = "cache_cleared"
)

// Severity represents the severity level of an event
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Event is an operational event worth telling a human about.
type Event struct {
	Type      EventType
	Severity  Severity
	Subject   string
	Message   string
	Timestamp time.Time
}

func newEvent(t EventType, severity Severity, subject, message string) *Event {
	return &Event{Type: t, Severity: severity, Subject: subject, Message: message, Timestamp: time.Now()}
}

var bus events.Signal[*Event]

// Bus returns the process-wide event signal.
func Bus() *events.Signal[*Event] {
	return &bus
}

// Publish sends event to every subscriber of Bus.
func Publish(event *Event) {
	bus.Publish(event)
}

func CircuitBreakerOpen(name string, threshold int, cooldown time.Duration) *Event {
	return newEvent(EventCircuitBreakerOpen, SeverityCritical, "Circuit Breaker OPEN", fmt.Sprintf(
		"The %s circuit breaker tripped after %d consecutive failures.\n\n"+
			"Lyrics lookups will be answered from cache only for %s.\n\n"+
			"Action: Check the lyrics service status and the access token.",
		name, threshold, cooldown))
}

func CircuitBreakerRecovered(name string) *Event {
	return newEvent(EventCircuitBreakerRecovered, SeverityInfo, "Circuit Breaker Recovered",
		fmt.Sprintf("The %s circuit breaker has recovered and is now operational.", name))
}

func CacheBackupFailed(err error) *Event {
	return newEvent(EventCacheBackupFailed, SeverityWarning, "Cache Backup Failed", fmt.Sprintf(
		"Failed to create cache backup.\n\nError: %v\n\nAction: Check disk space and permissions.", err))
}

func CacheCleared(namespace string, removed int) *Event {
	return newEvent(EventCacheCleared, SeverityInfo, "Cache Cleared",
		fmt.Sprintf("Removed %d entries from %s.", removed, namespace))
}

func ServerStarted(addr string, providers []string) *Event {
	return newEvent(EventServerStarted, SeverityInfo, "Server Started",
		fmt.Sprintf("Daemon listening on %s with providers %v.", addr, providers))
}
