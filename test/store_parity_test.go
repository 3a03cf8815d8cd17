//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/fleetAuth"
)

type accountState struct {
	Verified       bool
	VerifyAttempts int
	LoginAttempts  int
	LockedUntil    int64
	Status         fleetAuth.AccountStatus
}

func runScenario(t *testing.T, f storeFactory) []accountState {
	t.Helper()

	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	store := f.new(t)
	engine := newIntegrationEngine(t, store, clock)

	snapshot := func() accountState {
		a, err := store.FindTenantByEmail(ctx, "alice@co.com")
		if err != nil {
			t.Fatalf("FindTenantByEmail failed: %v", err)
		}
		return accountState{
			Verified:       a.Verified,
			VerifyAttempts: a.VerifyAttempts,
			LoginAttempts:  a.LoginAttempts,
			LockedUntil:    lockedUnix(a.LockedUntil),
			Status:         a.Status,
		}
	}

	var states []accountState
	step := func(err error, allowed ...error) {
		t.Helper()
		if err != nil {
			ok := false
			for _, target := range allowed {
				if errors.Is(err, target) {
					ok = true
				}
			}
			if !ok {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		states = append(states, snapshot())
	}

	step(engine.Register(ctx, fleetAuth.RegisterRequest{Email: "alice@co.com", Username: "alice", Password: testPassword}))
	step(engine.CheckVerifyCode(ctx, "alice@co.com", "9999"), fleetAuth.ErrInvalidCode)
	step(engine.CheckVerifyCode(ctx, "alice@co.com", testCode))
	for i := 0; i < 3; i++ {
		_, err := engine.Login(ctx, "alice@co.com", "wrong-password")
		step(err, fleetAuth.ErrIncorrectPassword)
	}
	_, err := engine.Login(ctx, "alice@co.com", testPassword)
	step(err, fleetAuth.ErrTemporarilyLocked)
	clock.Advance(15 * time.Minute)
	_, err = engine.Login(ctx, "alice@co.com", "wrong-password")
	step(err, fleetAuth.ErrIncorrectPassword)
	_, err = engine.Login(ctx, "alice@co.com", testPassword)
	step(err)
	return states
}

func TestStoresProduceIdenticalState(t *testing.T) {
	factories := storeFactories()
	want := runScenario(t, factories[0])
	for _, f := range factories[1:] {
		got := runScenario(t, f)
		if len(got) != len(want) {
			t.Fatalf("%s: expected %d steps, got %d", f.name, len(want), len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("%s diverged at step %d: want %+v, got %+v", f.name, i, want[i], got[i])
			}
		}
	}
}

func lockedUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
