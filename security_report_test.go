package fleetAuth

import (
	"testing"
	"time"
)

func TestSecurityReportReflectsConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	env := newTestEnv(t, cfg, func(b *Builder) { b.WithMetricsEnabled(true) })

	r := env.engine.SecurityReport()
	if r.SigningAlgorithm != "hs256" || r.KeyRotationActive {
		t.Fatalf("unexpected signing report %+v", r)
	}
	if r.TokenTTL != 24*time.Hour {
		t.Fatalf("expected 24h TTL, got %v", r.TokenTTL)
	}
	if r.LockoutMaxAttempts != 3 || r.LockoutDuration != 15*time.Minute {
		t.Fatalf("unexpected lockout report %+v", r)
	}
	if r.VerificationMaxAttempts != 3 || r.VerificationCodeDigits != 4 {
		t.Fatalf("unexpected verification report %+v", r)
	}
	if r.Argon2.Memory != 8*1024 || r.Argon2.Time != 1 || r.Argon2.Parallelism != 1 {
		t.Fatalf("unexpected argon2 report %+v", r.Argon2)
	}
	if !r.AuditActive || !r.MetricsActive || r.PasswordRecoveryActive || r.NotificationsAsync {
		t.Fatalf("unexpected feature flags %+v", r)
	}
}

func TestSecurityReportNilEngine(t *testing.T) {
	var e *Engine
	if r := e.SecurityReport(); r != (SecurityReport{}) {
		t.Fatalf("expected zero report, got %+v", r)
	}
}
