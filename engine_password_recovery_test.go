package fleetAuth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newRecoveryEnv(t *testing.T) *testEnv {
	t.Helper()

	_, rdb := newTestRedis(t)
	cfg := testConfig()
	cfg.PasswordRecovery.Enabled = true
	cfg.PasswordRecovery.MaxAttempts = 3
	return newTestEnv(t, cfg, func(b *Builder) { b.WithRedis(rdb) })
}

func TestPasswordRecoveryResetsPasswordAndLock(t *testing.T) {
	env := newRecoveryEnv(t)
	ctx := context.Background()
	env.registerVerified(t, "alice@co.com", "Secret1!")

	for i := 0; i < 3; i++ {
		_, _ = env.engine.Login(ctx, "alice@co.com", "wrong-password")
	}

	if err := env.engine.RequestPasswordRecovery(ctx, "alice@co.com"); err != nil {
		t.Fatalf("RequestPasswordRecovery failed: %v", err)
	}
	token := env.notifier.lastRecoveryToken("alice@co.com")
	if token == "" {
		t.Fatal("expected recovery token to be sent")
	}

	if err := env.engine.ResetPassword(ctx, token, "NewSecret2!"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	a := env.store.tenant(t, "alice@co.com")
	if a.LoginAttempts != 0 || !a.LockedUntil.IsZero() {
		t.Fatalf("expected lock cleared, got %+v", a)
	}
	if _, err := env.engine.Login(ctx, "alice@co.com", "NewSecret2!"); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
	if _, err := env.engine.Login(ctx, "alice@co.com", "Secret1!"); !errors.Is(err, ErrIncorrectPassword) {
		t.Fatalf("old password must fail, got %v", err)
	}

	if err := env.engine.ResetPassword(ctx, token, "Another3!"); !errors.Is(err, ErrRecoveryInvalid) {
		t.Fatalf("expected token to be single use, got %v", err)
	}
}

func TestPasswordRecoveryDoesNotRevealAccounts(t *testing.T) {
	env := newRecoveryEnv(t)
	ctx := context.Background()

	if err := env.engine.RequestPasswordRecovery(ctx, "ghost@co.com"); err != nil {
		t.Fatalf("expected nil for unknown account, got %v", err)
	}
	if token := env.notifier.lastRecoveryToken("ghost@co.com"); token != "" {
		t.Fatal("unknown account must not receive a token")
	}

	env.store.setTenant(&TenantAccount{ID: "t-1", Email: "blocked@co.com", Status: AccountBlocked})
	if err := env.engine.RequestPasswordRecovery(ctx, "blocked@co.com"); err != nil {
		t.Fatalf("expected nil for blocked account, got %v", err)
	}
	if token := env.notifier.lastRecoveryToken("blocked@co.com"); token != "" {
		t.Fatal("blocked account must not receive a token")
	}
}

func TestPasswordRecoveryRejectsBadTokens(t *testing.T) {
	env := newRecoveryEnv(t)
	ctx := context.Background()
	env.registerVerified(t, "alice@co.com", "Secret1!")

	if err := env.engine.ResetPassword(ctx, "garbage", "NewSecret2!"); !errors.Is(err, ErrRecoveryInvalid) {
		t.Fatalf("expected ErrRecoveryInvalid, got %v", err)
	}

	if err := env.engine.RequestPasswordRecovery(ctx, "alice@co.com"); err != nil {
		t.Fatalf("RequestPasswordRecovery failed: %v", err)
	}
	token := env.notifier.lastRecoveryToken("alice@co.com")

	if err := env.engine.ResetPassword(ctx, token, "short"); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}

	env.clock.Advance(31 * time.Minute)
	if err := env.engine.ResetPassword(ctx, token, "NewSecret2!"); !errors.Is(err, ErrRecoveryInvalid) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestPasswordRecoveryDisabled(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	if err := env.engine.RequestPasswordRecovery(ctx, "alice@co.com"); !errors.Is(err, ErrRecoveryDisabled) {
		t.Fatalf("expected ErrRecoveryDisabled, got %v", err)
	}
	if err := env.engine.ResetPassword(ctx, "token", "NewSecret2!"); !errors.Is(err, ErrRecoveryDisabled) {
		t.Fatalf("expected ErrRecoveryDisabled, got %v", err)
	}
}

func TestPasswordRecoveryRequiresRedis(t *testing.T) {
	cfg := testConfig()
	cfg.PasswordRecovery.Enabled = true

	_, err := New().WithConfig(cfg).WithAccountStore(newFakeStore()).Build()
	if err == nil {
		t.Fatal("expected Build to fail without redis")
	}
}
