package fleetAuth

import (
	"context"
	"time"
)

// AccountStatus is the administrative state of a tenant account.
type AccountStatus string

const (
	// AccountActive allows login and verification.
	AccountActive AccountStatus = "ACTIVE"
	// AccountBlocked refuses login and verification until an administrator unblocks the account.
	AccountBlocked AccountStatus = "BLOCKED"
)

// PrincipalKind tags a token with the record family its subject belongs to.
type PrincipalKind string

const (
	// KindCompany marks tokens whose subject is a tenant account email.
	KindCompany PrincipalKind = "COMPANY"
	// KindAPI marks tokens whose subject is a machine account username.
	KindAPI PrincipalKind = "API"
)

// TenantAccount is one human user of a tenant company.
//
// A zero LockedUntil means no lock is set. An empty CompanyID means the account neither
// created nor joined a company. An empty VerificationCode means no code is outstanding.
type TenantAccount struct {
	ID               string
	Email            string
	Username         string
	FirstName        string
	LastName         string
	PasswordHash     string
	CompanyID        string
	Verified         bool
	VerificationCode string
	VerifyAttempts   int
	LoginAttempts    int
	LockedUntil      time.Time
	Status           AccountStatus
	CreatedAt        time.Time
}

// Clone returns a copy that shares no mutable state with a.
func (a *TenantAccount) Clone() *TenantAccount {
	if a == nil {
		return nil
	}
	out := *a
	return &out
}

// Blocked reports whether the account is administratively blocked.
func (a *TenantAccount) Blocked() bool {
	return a != nil && a.Status == AccountBlocked
}

// LockedAt reports whether a temporary lock is in force at now. The lock ends exactly at
// LockedUntil; a login at that instant is allowed.
func (a *TenantAccount) LockedAt(now time.Time) bool {
	return a != nil && !a.LockedUntil.IsZero() && a.LockedUntil.After(now)
}

// MachineAccount is one API integration credential.
type MachineAccount struct {
	ID           string
	Username     string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
}

// Clone returns a copy of m.
func (m *MachineAccount) Clone() *MachineAccount {
	if m == nil {
		return nil
	}
	out := *m
	return &out
}

// RegisterRequest is the input of [Engine.Register].
//
// CompanyName requests creation of a new company. CompanyID requests joining an existing
// one. Setting both is rejected.
type RegisterRequest struct {
	Email       string
	Username    string
	Password    string
	FirstName   string
	LastName    string
	CompanyName string
	CompanyID   string
}

// Principal is the authenticated caller resolved from a bearer token. The concrete type is
// always [TenantPrincipal] or [MachinePrincipal].
type Principal interface {
	Subject() string
	Kind() PrincipalKind
	principal()
}

// TenantPrincipal is a verified, non-blocked tenant account.
type TenantPrincipal struct {
	AccountID string
	Email     string
	Username  string
	CompanyID string
}

func (p TenantPrincipal) Subject() string     { return p.Email }
func (p TenantPrincipal) Kind() PrincipalKind { return KindCompany }
func (TenantPrincipal) principal()            {}

// MachinePrincipal is an active machine account.
type MachinePrincipal struct {
	AccountID string
	Username  string
}

func (p MachinePrincipal) Subject() string     { return p.Username }
func (p MachinePrincipal) Kind() PrincipalKind { return KindAPI }
func (MachinePrincipal) principal()            {}

// AccountStore is the durable record store consumed by the engine.
//
// Find methods return [ErrAccountNotFound] when no record matches. CreateTenant assigns the
// ID and returns [ErrDuplicateEmail] for a taken email; CreateMachine returns
// [ErrDuplicateUsername]. Infrastructure faults should wrap [ErrStoreUnavailable].
//
// UpdateTenant loads the record for email, calls mutate on a private copy and persists the
// copy atomically with respect to every other UpdateTenant on the same record. mutate may
// run more than once when the store retries an optimistic transaction, so it must derive
// its result from the record it receives only. A mutate error aborts without writing and is
// returned unchanged. The persisted record is returned on success.
type AccountStore interface {
	FindTenantByEmail(ctx context.Context, email string) (*TenantAccount, error)
	CreateTenant(ctx context.Context, account *TenantAccount) error
	UpdateTenant(ctx context.Context, email string, mutate func(*TenantAccount) error) (*TenantAccount, error)
	FindMachineByUsername(ctx context.Context, username string) (*MachineAccount, error)
	CreateMachine(ctx context.Context, account *MachineAccount) error
}

// TenantRegistrar is implemented by stores that can create a company and the account that
// owns it in one transaction. When the configured store implements it, registrations that
// request a new company use it instead of [CompanyProvisioner].
type TenantRegistrar interface {
	CreateTenantWithCompany(ctx context.Context, account *TenantAccount, companyName string) error
}

// CompanyProvisioner creates or looks up the tenant organization an account belongs to.
type CompanyProvisioner interface {
	ProvisionCompany(ctx context.Context, name string) (string, error)
	ReleaseCompany(ctx context.Context, companyID string) error
	CompanyExists(ctx context.Context, companyID string) (bool, error)
}

// Notifier delivers verification codes and recovery tokens to an email address. Errors are
// logged by the engine and never reach the caller of the triggering operation.
type Notifier interface {
	SendVerificationCode(ctx context.Context, email, code string) error
	SendPasswordRecovery(ctx context.Context, email, token string) error
}

// CodeGenerator produces verification codes.
type CodeGenerator interface {
	NewCode() (string, error)
}

// CodeGeneratorFunc adapts a function to [CodeGenerator].
type CodeGeneratorFunc func() (string, error)

// NewCode calls f.
func (f CodeGeneratorFunc) NewCode() (string, error) { return f() }

// PasswordHasher is the one-way credential hasher.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// Clock returns the current time. Tests inject a fixed clock to step over lock expiry.
type Clock func() time.Time
