// Package memstore is an in-process fleetAuth.AccountStore and CompanyProvisioner.
//
// Records live in maps guarded per record, so UpdateTenant calls on different emails never
// wait on each other while calls on the same email are serialized. Nothing is persisted.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/fleetAuth"
	"github.com/MrEthical07/fleetAuth/internal/ids"
)

var (
	_ fleetAuth.AccountStore       = (*Store)(nil)
	_ fleetAuth.CompanyProvisioner = (*Store)(nil)
)

type tenantEntry struct {
	mu      sync.Mutex
	account *fleetAuth.TenantAccount
}

type company struct {
	name      string
	createdAt time.Time
}

// Store keeps tenant, machine and company records in memory.
type Store struct {
	mu        sync.RWMutex
	tenants   map[string]*tenantEntry
	machines  map[string]*fleetAuth.MachineAccount
	companies map[string]company

	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for CreatedAt and record ids.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		tenants:   make(map[string]*tenantEntry),
		machines:  make(map[string]*fleetAuth.MachineAccount),
		companies: make(map[string]company),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) entry(email string) (*tenantEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.tenants[email]
	return e, ok
}

func (s *Store) FindTenantByEmail(ctx context.Context, email string) (*fleetAuth.TenantAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, ok := s.entry(email)
	if !ok {
		return nil, fleetAuth.ErrAccountNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.account.Clone(), nil
}

// CreateTenant stores a copy of account and assigns account.ID. CreatedAt is set when zero.
func (s *Store) CreateTenant(ctx context.Context, account *fleetAuth.TenantAccount) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tenants[account.Email]; exists {
		return fleetAuth.ErrDuplicateEmail
	}
	now := s.now().UTC()
	account.ID = ids.NewAt(now)
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	s.tenants[account.Email] = &tenantEntry{account: account.Clone()}
	return nil
}

// UpdateTenant runs mutate under the record lock. mutate runs exactly once.
func (s *Store) UpdateTenant(
	ctx context.Context,
	email string,
	mutate func(*fleetAuth.TenantAccount) error,
) (*fleetAuth.TenantAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, ok := s.entry(email)
	if !ok {
		return nil, fleetAuth.ErrAccountNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.account.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	// Identity fields are owned by the store.
	next.ID = e.account.ID
	next.Email = e.account.Email
	e.account = next
	return next.Clone(), nil
}

func (s *Store) FindMachineByUsername(ctx context.Context, username string) (*fleetAuth.MachineAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.machines[username]
	if !ok {
		return nil, fleetAuth.ErrAccountNotFound
	}
	return m.Clone(), nil
}

func (s *Store) CreateMachine(ctx context.Context, account *fleetAuth.MachineAccount) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.machines[account.Username]; exists {
		return fleetAuth.ErrDuplicateUsername
	}
	now := s.now().UTC()
	account.ID = ids.NewAt(now)
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	s.machines[account.Username] = account.Clone()
	return nil
}

// SetMachineActive toggles a machine account. Inactive accounts cannot log in or
// authenticate.
func (s *Store) SetMachineActive(ctx context.Context, username string, active bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.machines[username]
	if !ok {
		return fleetAuth.ErrAccountNotFound
	}
	m.Active = active
	return nil
}

func (s *Store) ProvisionCompany(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	id := ids.NewAt(now)
	s.companies[id] = company{name: name, createdAt: now}
	return id, nil
}

// ReleaseCompany deletes a company. Releasing an unknown id is not an error.
func (s *Store) ReleaseCompany(ctx context.Context, companyID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.companies, companyID)
	return nil
}

func (s *Store) CompanyExists(ctx context.Context, companyID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.companies[companyID]
	return ok, nil
}

// CompanyName returns the name a company was provisioned with.
func (s *Store) CompanyName(companyID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.companies[companyID]
	return c.name, ok
}

// Len returns the number of tenant and machine records.
func (s *Store) Len() (tenants, machines int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tenants), len(s.machines)
}
