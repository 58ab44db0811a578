package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"lyrics-sync-go/events"
)

type recordingNotifier struct {
	mu       sync.Mutex
	subjects []string
	err      error
}

func (r *recordingNotifier) Send(_ context.Context, subject, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects = append(r.subjects, subject)
	return r.err
}

func (r *recordingNotifier) sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.subjects...)
}

func TestNtfyNotifier_Send(t *testing.T) {
	var gotPath, gotTitle, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotTitle = r.Header.Get("Title")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
	}))
	defer srv.Close()

	n := &NtfyNotifier{Topic: "lyrics-alerts", Server: srv.URL + "/", HTTPClient: srv.Client()}
	if err := n.Send(context.Background(), "Subject", "Body"); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if gotPath != "/lyrics-alerts" {
		t.Errorf("path = %q, want /lyrics-alerts", gotPath)
	}
	if gotTitle != "Subject" {
		t.Errorf("Title header = %q, want Subject", gotTitle)
	}
	if gotBody != "Body" {
		t.Errorf("body = %q, want Body", gotBody)
	}
}

func TestNtfyNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	n := &NtfyNotifier{Topic: "t", Server: srv.URL, HTTPClient: srv.Client()}
	err := n.Send(context.Background(), "s", "m")
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected a 403 error, got %v", err)
	}
}

func TestTelegramNotifier_Send(t *testing.T) {
	var payload map[string]interface{}
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
	}))
	defer srv.Close()

	n := &TelegramNotifier{BotToken: "123:abc", ChatID: "42", APIBase: srv.URL, HTTPClient: srv.Client()}
	if err := n.Send(context.Background(), "Breaker", "tripped"); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if gotPath != "/bot123:abc/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if payload["chat_id"] != "42" {
		t.Errorf("chat_id = %v, want 42", payload["chat_id"])
	}
	if payload["text"] != "*Breaker*\n\ntripped" {
		t.Errorf("text = %q", payload["text"])
	}
}

func TestAlertHandler_Cooldown(t *testing.T) {
	rec := &recordingNotifier{}
	h := NewAlertHandler(AlertConfig{Notifiers: []Notifier{rec}, CooldownDuration: time.Minute})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	var sig events.Signal[*Event]
	detach := h.Attach(&sig)
	defer detach()

	sig.Publish(CircuitBreakerOpen("primary", 5, time.Minute))
	sig.Publish(CircuitBreakerOpen("primary", 5, time.Minute))
	h.Wait()
	if got := len(rec.sent()); got != 1 {
		t.Fatalf("sent %d alerts within cooldown, want 1", got)
	}

	// Other event types have their own cooldown.
	sig.Publish(CircuitBreakerRecovered("primary"))
	h.Wait()
	if got := len(rec.sent()); got != 2 {
		t.Fatalf("sent %d alerts, want 2", got)
	}

	now = now.Add(2 * time.Minute)
	sig.Publish(CircuitBreakerOpen("primary", 5, time.Minute))
	h.Wait()
	if got := len(rec.sent()); got != 3 {
		t.Fatalf("sent %d alerts after cooldown, want 3", got)
	}
}

func TestAlertHandler_ResetCooldown(t *testing.T) {
	rec := &recordingNotifier{}
	h := NewAlertHandler(AlertConfig{Notifiers: []Notifier{rec}})
	var sig events.Signal[*Event]
	h.Attach(&sig)

	sig.Publish(CacheBackupFailed(errors.New("disk full")))
	h.ResetCooldown(EventCacheBackupFailed)
	sig.Publish(CacheBackupFailed(errors.New("disk full")))
	h.Wait()

	if got := len(rec.sent()); got != 2 {
		t.Fatalf("sent %d alerts, want 2", got)
	}
}

func TestAlertHandler_MinSeverity(t *testing.T) {
	tests := []struct {
		name    string
		min     Severity
		event   *Event
		wantOut bool
	}{
		{"default sends info", "", ServerStarted(":8080", nil), true},
		{"warning drops info", SeverityWarning, CacheCleared("Player_LrclibLyrics", 3), false},
		{"warning keeps warning", SeverityWarning, CacheBackupFailed(errors.New("x")), true},
		{"critical drops warning", SeverityCritical, CacheBackupFailed(errors.New("x")), false},
		{"critical keeps critical", SeverityCritical, CircuitBreakerOpen("primary", 5, time.Minute), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingNotifier{}
			h := NewAlertHandler(AlertConfig{Notifiers: []Notifier{rec}, MinSeverity: tt.min})
			var sig events.Signal[*Event]
			h.Attach(&sig)

			sig.Publish(tt.event)
			h.Wait()

			if got := len(rec.sent()) == 1; got != tt.wantOut {
				t.Errorf("sent = %v, want %v", got, tt.wantOut)
			}
		})
	}
}

func TestAlertHandler_SubjectPrefix(t *testing.T) {
	rec := &recordingNotifier{}
	failing := &recordingNotifier{err: errors.New("unreachable")}
	h := NewAlertHandler(AlertConfig{Notifiers: []Notifier{failing, rec}})
	var sig events.Signal[*Event]
	h.Attach(&sig)

	sig.Publish(CircuitBreakerOpen("primary", 5, time.Minute))
	h.Wait()

	sent := rec.sent()
	if len(sent) != 1 || sent[0] != "🚨 Circuit Breaker OPEN" {
		t.Fatalf("sent = %v", sent)
	}
	if len(failing.sent()) != 1 {
		t.Error("a failing notifier should still be tried")
	}
}

func TestPublish_UsesBus(t *testing.T) {
	var got []EventType
	detach := Bus().Subscribe(func(e *Event) { got = append(got, e.Type) })
	defer detach()

	Publish(CacheCleared("Player_LrclibLyrics", 1))

	if len(got) != 1 || got[0] != EventCacheCleared {
		t.Fatalf("got %v", got)
	}
}
