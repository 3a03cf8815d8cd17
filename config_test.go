package fleetAuth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestConfigValidateEnums(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults with key valid",
			mutate:    func(c *Config) {},
			wantValid: true,
		},
		{
			name: "jwt leeway valid",
			mutate: func(c *Config) {
				c.JWT.Leeway = 45 * time.Second
			},
			wantValid: true,
		},
		{
			name: "jwt leeway invalid",
			mutate: func(c *Config) {
				c.JWT.Leeway = 3 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "jwt signing invalid",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "rs256"
			},
			wantValid: false,
		},
		{
			name: "hs256 without key invalid",
			mutate: func(c *Config) {
				c.JWT.PrivateKey = nil
			},
			wantValid: false,
		},
		{
			name: "ed25519 without public key invalid",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "ed25519"
			},
			wantValid: false,
		},
		{
			name: "token ttl zero invalid",
			mutate: func(c *Config) {
				c.JWT.TokenTTL = 0
			},
			wantValid: false,
		},
		{
			name: "kid with whitespace invalid",
			mutate: func(c *Config) {
				c.JWT.KeyID = " k1"
			},
			wantValid: false,
		},
		{
			name: "code digits too few invalid",
			mutate: func(c *Config) {
				c.Verification.CodeDigits = 3
			},
			wantValid: false,
		},
		{
			name: "code digits six valid",
			mutate: func(c *Config) {
				c.Verification.CodeDigits = 6
			},
			wantValid: true,
		},
		{
			name: "verification attempts zero invalid",
			mutate: func(c *Config) {
				c.Verification.MaxAttempts = 0
			},
			wantValid: false,
		},
		{
			name: "lockout attempts zero invalid",
			mutate: func(c *Config) {
				c.Lockout.MaxAttempts = 0
			},
			wantValid: false,
		},
		{
			name: "lockout duration zero invalid",
			mutate: func(c *Config) {
				c.Lockout.Duration = 0
			},
			wantValid: false,
		},
		{
			name: "recovery without prefix invalid",
			mutate: func(c *Config) {
				c.PasswordRecovery.Enabled = true
				c.PasswordRecovery.RedisPrefix = ""
			},
			wantValid: false,
		},
		{
			name: "async notify without workers invalid",
			mutate: func(c *Config) {
				c.Notify.Async = true
				c.Notify.Workers = 0
			},
			wantValid: false,
		},
		{
			name: "sync notify without workers valid",
			mutate: func(c *Config) {
				c.Notify.Async = false
				c.Notify.Workers = 0
			},
			wantValid: true,
		},
		{
			name: "audit without buffer invalid",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "argon2 memory too low invalid",
			mutate: func(c *Config) {
				c.Password.Memory = 1024
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.JWT.TokenTTL != 24*time.Hour {
		t.Fatalf("expected 24h token TTL, got %v", cfg.JWT.TokenTTL)
	}
	if cfg.Lockout.MaxAttempts != 3 || cfg.Lockout.Duration != 15*time.Minute {
		t.Fatalf("unexpected lockout defaults %+v", cfg.Lockout)
	}
	if cfg.Verification.MaxAttempts != 3 || cfg.Verification.CodeDigits != 4 {
		t.Fatalf("unexpected verification defaults %+v", cfg.Verification)
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "PrivateKey") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestWithConfigCopiesKeys(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.KeyID = "k1"
	cfg.JWT.VerifyKeys = map[string][]byte{"k1": []byte("0123456789abcdef0123456789abcdef")}

	b := New().WithConfig(cfg)
	cfg.JWT.PrivateKey[0] = 'X'
	cfg.JWT.VerifyKeys["k1"][0] = 'X'

	if b.config.JWT.PrivateKey[0] == 'X' {
		t.Fatal("builder config shares PrivateKey with caller")
	}
	if b.config.JWT.VerifyKeys["k1"][0] == 'X' {
		t.Fatal("builder config shares VerifyKeys with caller")
	}
}

func TestBuildRequiresStore(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("expected Build to fail without an account store")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithConfig(testConfig()).WithAccountStore(newFakeStore())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuilderDefaultCodeGeneratorUsesCodeDigits(t *testing.T) {
	for _, digits := range []int{4, 6} {
		cfg := testConfig()
		cfg.Verification.CodeDigits = digits
		store := newFakeStore()
		notifier := newFakeNotifier()

		engine, err := New().
			WithConfig(cfg).
			WithAccountStore(store).
			WithNotifier(notifier).
			Build()
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}

		email := fmt.Sprintf("digits%d@co.com", digits)
		if err := engine.Register(context.Background(), RegisterRequest{Email: email, Username: "user", Password: "Secret1!"}); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		engine.Close()

		code := notifier.lastCode(email)
		if !regexp.MustCompile(fmt.Sprintf(`^\d{%d}$`, digits)).MatchString(code) {
			t.Fatalf("digits=%d: unexpected code %q", digits, code)
		}
		if got := store.tenant(t, email).VerificationCode; got != code {
			t.Fatalf("digits=%d: stored code %q does not match sent code %q", digits, got, code)
		}
	}
}

func TestZeroEngineNotReady(t *testing.T) {
	var e Engine
	if err := e.Register(context.Background(), RegisterRequest{Email: "a@co.com", Password: "Secret1!"}); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}
