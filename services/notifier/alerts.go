package notifier

import (
	"context"
	"sync"
	"time"

	"lyrics-sync-go/events"
	"lyrics-sync-go/logcolors"

	log "github.com/sirupsen/logrus"
)

const (
	// Default cooldown between alerts of the same type
	DefaultAlertCooldown = 15 * time.Minute

	sendTimeout = 30 * time.Second
)

// AlertConfig holds configuration for the alert handler
type AlertConfig struct {
	Notifiers        []Notifier
	CooldownDuration time.Duration
	// MinSeverity drops events below it; info events are sent by default.
	MinSeverity Severity
}

// AlertHandler forwards events to notifiers, at most once per event type per
// cooldown.
type AlertHandler struct {
	notifiers   []Notifier
	cooldown    time.Duration
	minSeverity Severity
	now         func() time.Time

	mu        sync.Mutex
	lastAlert map[EventType]time.Time
	inflight  sync.WaitGroup
}

func NewAlertHandler(config AlertConfig) *AlertHandler {
	cooldown := config.CooldownDuration
	if cooldown == 0 {
		cooldown = DefaultAlertCooldown
	}
	return &AlertHandler{
		notifiers:   config.Notifiers,
		cooldown:    cooldown,
		minSeverity: config.MinSeverity,
		now:         time.Now,
		lastAlert:   make(map[EventType]time.Time),
	}
}

// Attach subscribes the handler to sig. Sending happens off the publisher's
// goroutine, since events are published from inside locks.
func (h *AlertHandler) Attach(sig *events.Signal[*Event]) (detach func()) {
	log.Infof("%s Alert handler started (cooldown: %v, notifiers: %d)",
		logcolors.LogNotifier, h.cooldown, len(h.notifiers))
	return sig.Subscribe(func(e *Event) {
		if !h.shouldAlert(e) {
			log.Debugf("%s Skipping alert for %s", logcolors.LogNotifier, e.Type)
			return
		}
		h.inflight.Add(1)
		go func() {
			defer h.inflight.Done()
			h.send(e)
		}()
	})
}

// Wait blocks until every alert started so far has been sent.
func (h *AlertHandler) Wait() {
	h.inflight.Wait()
}

func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

func (h *AlertHandler) shouldAlert(e *Event) bool {
	if severityRank(e.Severity) < severityRank(h.minSeverity) {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.now()
	if last, ok := h.lastAlert[e.Type]; ok && now.Sub(last) < h.cooldown {
		return false
	}
	h.lastAlert[e.Type] = now
	return true
}

func subjectFor(e *Event) string {
	switch e.Severity {
	case SeverityCritical:
		return "🚨 " + e.Subject
	case SeverityWarning:
		return "⚠️ " + e.Subject
	default:
		return "ℹ️ " + e.Subject
	}
}

func (h *AlertHandler) send(e *Event) {
	if len(h.notifiers) == 0 {
		log.Warnf("%s No notifiers configured, skipping alert: %s", logcolors.LogNotifier, e.Subject)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	subject := subjectFor(e)
	sent := 0
	for _, n := range h.notifiers {
		if err := n.Send(ctx, subject, e.Message); err != nil {
			log.Errorf("%s Failed to send alert: %v", logcolors.LogNotifier, err)
			continue
		}
		sent++
	}
	log.Infof("%s Alert %q sent via %d/%d notifiers", logcolors.LogNotifier, e.Subject, sent, len(h.notifiers))
}

// ResetCooldown lets the next event of eventType through immediately.
func (h *AlertHandler) ResetCooldown(eventType EventType) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.lastAlert, eventType)
}
