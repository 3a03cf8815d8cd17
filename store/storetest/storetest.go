// Package storetest holds the behavioral checks every fleetAuth.AccountStore must pass.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/fleetAuth"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) fleetAuth.AccountStore

// Run executes the account store checks against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndFindTenant", func(t *testing.T) { testCreateAndFindTenant(t, newStore(t)) })
	t.Run("DuplicateTenant", func(t *testing.T) { testDuplicateTenant(t, newStore(t)) })
	t.Run("TenantNotFound", func(t *testing.T) { testTenantNotFound(t, newStore(t)) })
	t.Run("UpdateTenantPersists", func(t *testing.T) { testUpdateTenantPersists(t, newStore(t)) })
	t.Run("UpdateTenantAbort", func(t *testing.T) { testUpdateTenantAbort(t, newStore(t)) })
	t.Run("UpdateTenantConcurrent", func(t *testing.T) { testUpdateTenantConcurrent(t, newStore(t)) })
	t.Run("FindReturnsCopy", func(t *testing.T) { testFindReturnsCopy(t, newStore(t)) })
	t.Run("Machines", func(t *testing.T) { testMachines(t, newStore(t)) })
}

func sampleTenant(email string) *fleetAuth.TenantAccount {
	return &fleetAuth.TenantAccount{
		Email:            email,
		Username:         "alice",
		FirstName:        "Alice",
		LastName:         "Jansen",
		PasswordHash:     "$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		Status:           fleetAuth.AccountActive,
		VerificationCode: "1234",
	}
}

func testCreateAndFindTenant(t *testing.T, s fleetAuth.AccountStore) {
	ctx := context.Background()
	in := sampleTenant("alice@co.com")
	require.NoError(t, s.CreateTenant(ctx, in))
	require.NotEmpty(t, in.ID)

	got, err := s.FindTenantByEmail(ctx, "alice@co.com")
	require.NoError(t, err)
	require.Equal(t, in.ID, got.ID)
	require.Equal(t, "alice", got.Username)
	require.Equal(t, "Alice", got.FirstName)
	require.Equal(t, in.PasswordHash, got.PasswordHash)
	require.Equal(t, "1234", got.VerificationCode)
	require.Equal(t, fleetAuth.AccountActive, got.Status)
	require.False(t, got.Verified)
	require.True(t, got.LockedUntil.IsZero())
}

func testDuplicateTenant(t *testing.T, s fleetAuth.AccountStore) {
	ctx := context.Background()
	require.NoError(t, s.CreateTenant(ctx, sampleTenant("alice@co.com")))

	err := s.CreateTenant(ctx, sampleTenant("alice@co.com"))
	require.ErrorIs(t, err, fleetAuth.ErrDuplicateEmail)

	// Exact match only: a differently cased email is another account.
	require.NoError(t, s.CreateTenant(ctx, sampleTenant("Alice@co.com")))
}

func testTenantNotFound(t *testing.T, s fleetAuth.AccountStore) {
	ctx := context.Background()
	_, err := s.FindTenantByEmail(ctx, "ghost@co.com")
	require.ErrorIs(t, err, fleetAuth.ErrAccountNotFound)

	_, err = s.UpdateTenant(ctx, "ghost@co.com", func(a *fleetAuth.TenantAccount) error {
		t.Fatal("mutate must not run for a missing record")
		return nil
	})
	require.ErrorIs(t, err, fleetAuth.ErrAccountNotFound)
}

func testUpdateTenantPersists(t *testing.T, s fleetAuth.AccountStore) {
	ctx := context.Background()
	require.NoError(t, s.CreateTenant(ctx, sampleTenant("alice@co.com")))

	until := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	updated, err := s.UpdateTenant(ctx, "alice@co.com", func(a *fleetAuth.TenantAccount) error {
		a.Verified = true
		a.VerificationCode = ""
		a.LoginAttempts = 2
		a.LockedUntil = until
		a.Status = fleetAuth.AccountBlocked
		return nil
	})
	require.NoError(t, err)
	require.True(t, updated.Verified)

	got, err := s.FindTenantByEmail(ctx, "alice@co.com")
	require.NoError(t, err)
	require.True(t, got.Verified)
	require.Empty(t, got.VerificationCode)
	require.Equal(t, 2, got.LoginAttempts)
	require.True(t, got.LockedUntil.Equal(until))
	require.Equal(t, fleetAuth.AccountBlocked, got.Status)
}

func testUpdateTenantAbort(t *testing.T, s fleetAuth.AccountStore) {
	ctx := context.Background()
	require.NoError(t, s.CreateTenant(ctx, sampleTenant("alice@co.com")))

	errStop := errors.New("stop")
	_, err := s.UpdateTenant(ctx, "alice@co.com", func(a *fleetAuth.TenantAccount) error {
		a.LoginAttempts = 99
		return errStop
	})
	require.ErrorIs(t, err, errStop)

	got, err := s.FindTenantByEmail(ctx, "alice@co.com")
	require.NoError(t, err)
	require.Zero(t, got.LoginAttempts)
}

func testUpdateTenantConcurrent(t *testing.T, s fleetAuth.AccountStore) {
	ctx := context.Background()
	require.NoError(t, s.CreateTenant(ctx, sampleTenant("alice@co.com")))

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := s.UpdateTenant(ctx, "alice@co.com", func(a *fleetAuth.TenantAccount) error {
				a.LoginAttempts++
				return nil
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.FindTenantByEmail(ctx, "alice@co.com")
	require.NoError(t, err)
	require.Equal(t, workers, got.LoginAttempts, "lost update")
}

func testFindReturnsCopy(t *testing.T, s fleetAuth.AccountStore) {
	ctx := context.Background()
	require.NoError(t, s.CreateTenant(ctx, sampleTenant("alice@co.com")))

	got, err := s.FindTenantByEmail(ctx, "alice@co.com")
	require.NoError(t, err)
	got.LoginAttempts = 42

	again, err := s.FindTenantByEmail(ctx, "alice@co.com")
	require.NoError(t, err)
	require.Zero(t, again.LoginAttempts)
}

func testMachines(t *testing.T, s fleetAuth.AccountStore) {
	ctx := context.Background()
	m := &fleetAuth.MachineAccount{Username: "route-sync", PasswordHash: "hash", Active: true}
	require.NoError(t, s.CreateMachine(ctx, m))
	require.NotEmpty(t, m.ID)

	err := s.CreateMachine(ctx, &fleetAuth.MachineAccount{Username: "route-sync", PasswordHash: "other", Active: true})
	require.ErrorIs(t, err, fleetAuth.ErrDuplicateUsername)

	got, err := s.FindMachineByUsername(ctx, "route-sync")
	require.NoError(t, err)
	require.Equal(t, m.ID, got.ID)
	require.Equal(t, "hash", got.PasswordHash)
	require.True(t, got.Active)

	_, err = s.FindMachineByUsername(ctx, "ghost")
	require.ErrorIs(t, err, fleetAuth.ErrAccountNotFound)
}
