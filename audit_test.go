package fleetAuth

import (
	"context"
	"strings"
	"testing"
	"time"
)

type captureSink struct {
	events chan AuditEvent
}

func newCaptureSink(buffer int) *captureSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &captureSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *captureSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *captureSink) collect(n int, timeout time.Duration) []AuditEvent {
	events := make([]AuditEvent, 0, n)
	deadline := time.After(timeout)
	for len(events) < n {
		select {
		case ev := <-s.events:
			events = append(events, ev)
		case <-deadline:
			return events
		}
	}
	return events
}

func auditTestConfig() Config {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64
	cfg.Audit.DropIfFull = false
	return cfg
}

func TestAuditDisabledNoEvents(t *testing.T) {
	sink := newCaptureSink(8)
	env := newTestEnv(t, testConfig(), func(b *Builder) { b.WithAuditSink(sink) })
	env.registerVerified(t, "alice@co.com", "Secret1!")
	env.engine.Close()

	if got := len(sink.events); got != 0 {
		t.Fatalf("expected no audit events when disabled, got %d", got)
	}
}

func TestAuditLoginEventsCarryContext(t *testing.T) {
	sink := newCaptureSink(64)
	env := newTestEnv(t, auditTestConfig(), func(b *Builder) { b.WithAuditSink(sink) })
	env.registerVerified(t, "alice@co.com", "Secret1!")

	ctx := WithRequestID(WithClientIP(context.Background(), "10.0.0.7"), "req-42")
	if _, err := env.engine.Login(ctx, "alice@co.com", "Secret1!"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	env.engine.Close()

	var found bool
	for _, ev := range sink.collect(64, 500*time.Millisecond) {
		if ev.EventType != auditEventLoginSuccess {
			continue
		}
		found = true
		if ev.IP != "10.0.0.7" || ev.RequestID != "req-42" {
			t.Fatalf("expected request context on event, got %+v", ev)
		}
		if ev.Subject != "alice@co.com" || ev.Kind != string(KindCompany) || !ev.Success {
			t.Fatalf("unexpected login event %+v", ev)
		}
		if !ev.Timestamp.Equal(env.clock.Now()) {
			t.Fatalf("expected engine clock timestamp, got %v", ev.Timestamp)
		}
	}
	if !found {
		t.Fatal("expected login_success event")
	}
}

func TestAuditLockEventAndErrorCodes(t *testing.T) {
	sink := newCaptureSink(64)
	env := newTestEnv(t, auditTestConfig(), func(b *Builder) { b.WithAuditSink(sink) })
	env.registerVerified(t, "alice@co.com", "Secret1!")

	for i := 0; i < 3; i++ {
		_, _ = env.engine.Login(context.Background(), "alice@co.com", "wrong-password")
	}
	env.engine.Close()

	var failures, locks int
	for _, ev := range sink.collect(64, 500*time.Millisecond) {
		switch ev.EventType {
		case auditEventLoginFailure:
			failures++
			if ev.Error != string(auditErrIncorrectPassword) {
				t.Fatalf("expected incorrect_password code, got %q", ev.Error)
			}
		case auditEventAccountLocked:
			locks++
			if ev.Metadata["locked_until"] == "" {
				t.Fatal("expected locked_until metadata")
			}
		}
	}
	if failures != 3 || locks != 1 {
		t.Fatalf("expected 3 failures and 1 lock event, got %d and %d", failures, locks)
	}
}

func TestAuditNoSecretsInEvents(t *testing.T) {
	sink := newCaptureSink(64)
	env := newTestEnv(t, auditTestConfig(), func(b *Builder) { b.WithAuditSink(sink) })
	ctx := context.Background()
	env.registerVerified(t, "alice@co.com", "Secret1!")

	token, err := env.engine.Login(ctx, "alice@co.com", "Secret1!")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	_, _ = env.engine.Login(ctx, "alice@co.com", "wrong-password")
	_ = env.engine.CheckVerifyCode(ctx, "alice@co.com", "1234")
	env.engine.Close()

	needles := []string{"Secret1!", "wrong-password", token, env.store.tenant(t, "alice@co.com").PasswordHash, "1234"}
	events := sink.collect(64, 500*time.Millisecond)
	if len(events) == 0 {
		t.Fatal("expected audit events")
	}
	for _, ev := range events {
		for _, needle := range needles {
			if strings.Contains(ev.Error, needle) {
				t.Fatalf("sensitive value leaked in audit error field: %q", needle)
			}
			for k, v := range ev.Metadata {
				if strings.Contains(k, needle) || strings.Contains(v, needle) {
					t.Fatalf("sensitive value leaked in audit metadata: %q", needle)
				}
			}
		}
	}
}

func TestAuditErrorCodeMapping(t *testing.T) {
	tests := []struct {
		err  error
		want AuditErrorCode
	}{
		{nil, ""},
		{ErrDuplicateEmail, auditErrDuplicate},
		{&AttemptError{Err: ErrTemporarilyLocked}, auditErrLocked},
		{&AttemptError{Err: ErrInvalidCode, Blocked: true}, auditErrInvalidCode},
		{ErrStoreUnavailable, auditErrUnavailable},
		{context.DeadlineExceeded, auditErrInternal},
	}
	for _, tc := range tests {
		if got := auditErrorCode(tc.err); got != tc.want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
