// Package redisstore is a fleetAuth.AccountStore backed by Redis.
//
// Each record is one JSON value under <prefix>:tenant:<email> or <prefix>:machine:<username>.
// Creates use SETNX. UpdateTenant is an optimistic WATCH/MULTI transaction retried on
// conflict, so the mutator may run more than once.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/fleetAuth"
	"github.com/MrEthical07/fleetAuth/internal/ids"
)

var _ fleetAuth.AccountStore = (*Store)(nil)

const (
	defaultPrefix     = "fleetauth"
	defaultMaxRetries = 50
)

// Store keeps account records in Redis.
type Store struct {
	redis      redis.UniversalClient
	prefix     string
	maxRetries int
	now        func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key prefix. Empty keeps the default "fleetauth".
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithMaxRetries bounds the optimistic retries of UpdateTenant.
func WithMaxRetries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithClock sets the clock used for CreatedAt and record ids.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a Store using client.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		redis:      client,
		prefix:     defaultPrefix,
		maxRetries: defaultMaxRetries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) tenantKey(email string) string {
	return s.prefix + ":tenant:" + email
}

func (s *Store) machineKey(username string) string {
	return s.prefix + ":machine:" + username
}

type tenantRecord struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Username         string    `json:"username"`
	FirstName        string    `json:"first_name,omitempty"`
	LastName         string    `json:"last_name,omitempty"`
	PasswordHash     string    `json:"password_hash"`
	CompanyID        string    `json:"company_id,omitempty"`
	Verified         bool      `json:"verified"`
	VerificationCode string    `json:"verification_code,omitempty"`
	VerifyAttempts   int       `json:"verify_attempts"`
	LoginAttempts    int       `json:"login_attempts"`
	LockedUntil      time.Time `json:"locked_until"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

func toTenantRecord(a *fleetAuth.TenantAccount) tenantRecord {
	return tenantRecord{
		ID:               a.ID,
		Email:            a.Email,
		Username:         a.Username,
		FirstName:        a.FirstName,
		LastName:         a.LastName,
		PasswordHash:     a.PasswordHash,
		CompanyID:        a.CompanyID,
		Verified:         a.Verified,
		VerificationCode: a.VerificationCode,
		VerifyAttempts:   a.VerifyAttempts,
		LoginAttempts:    a.LoginAttempts,
		LockedUntil:      a.LockedUntil.UTC(),
		Status:           string(a.Status),
		CreatedAt:        a.CreatedAt.UTC(),
	}
}

func (r tenantRecord) account() *fleetAuth.TenantAccount {
	return &fleetAuth.TenantAccount{
		ID:               r.ID,
		Email:            r.Email,
		Username:         r.Username,
		FirstName:        r.FirstName,
		LastName:         r.LastName,
		PasswordHash:     r.PasswordHash,
		CompanyID:        r.CompanyID,
		Verified:         r.Verified,
		VerificationCode: r.VerificationCode,
		VerifyAttempts:   r.VerifyAttempts,
		LoginAttempts:    r.LoginAttempts,
		LockedUntil:      r.LockedUntil,
		Status:           fleetAuth.AccountStatus(r.Status),
		CreatedAt:        r.CreatedAt,
	}
}

type machineRecord struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", fleetAuth.ErrStoreUnavailable, err)
}

func decodeTenant(data []byte) (*fleetAuth.TenantAccount, error) {
	var r tenantRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, unavailable(fmt.Errorf("decode tenant record: %w", err))
	}
	return r.account(), nil
}

func (s *Store) FindTenantByEmail(ctx context.Context, email string) (*fleetAuth.TenantAccount, error) {
	data, err := s.redis.Get(ctx, s.tenantKey(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fleetAuth.ErrAccountNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return decodeTenant(data)
}

// CreateTenant assigns account.ID and writes the record if no record uses the email.
func (s *Store) CreateTenant(ctx context.Context, account *fleetAuth.TenantAccount) error {
	now := s.now().UTC()
	rec := toTenantRecord(account)
	rec.ID = ids.NewAt(now)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	ok, err := s.redis.SetNX(ctx, s.tenantKey(account.Email), data, 0).Result()
	if err != nil {
		return unavailable(err)
	}
	if !ok {
		return fleetAuth.ErrDuplicateEmail
	}
	account.ID = rec.ID
	account.CreatedAt = rec.CreatedAt
	return nil
}

// mutateError carries a mutator error through the WATCH callback untouched.
type mutateError struct{ err error }

func (e mutateError) Error() string { return e.err.Error() }

// UpdateTenant applies mutate inside a WATCH transaction on the record key.
func (s *Store) UpdateTenant(
	ctx context.Context,
	email string,
	mutate func(*fleetAuth.TenantAccount) error,
) (*fleetAuth.TenantAccount, error) {
	key := s.tenantKey(email)

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		var updated *fleetAuth.TenantAccount

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			current, err := decodeTenant(data)
			if err != nil {
				return err
			}

			next := current.Clone()
			if err := mutate(next); err != nil {
				return mutateError{err: err}
			}
			next.ID = current.ID
			next.Email = current.Email

			encoded, err := json.Marshal(toTenantRecord(next))
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, 0)
				return nil
			})
			if err != nil {
				return err
			}
			updated = next
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			if werr := s.backoff(ctx, attempt); werr != nil {
				return nil, werr
			}
			continue
		}
		var merr mutateError
		switch {
		case err == nil:
			return updated, nil
		case errors.As(err, &merr):
			return nil, merr.err
		case errors.Is(err, redis.Nil):
			return nil, fleetAuth.ErrAccountNotFound
		case errors.Is(err, fleetAuth.ErrStoreUnavailable):
			return nil, err
		default:
			return nil, unavailable(err)
		}
	}

	return nil, unavailable(fmt.Errorf("update %s: too many concurrent writers", email))
}

func (s *Store) backoff(ctx context.Context, attempt int) error {
	step := min(attempt+1, 10)
	d := time.Duration(step)*time.Millisecond + time.Duration(rand.Int64N(int64(time.Millisecond)))
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Store) FindMachineByUsername(ctx context.Context, username string) (*fleetAuth.MachineAccount, error) {
	data, err := s.redis.Get(ctx, s.machineKey(username)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fleetAuth.ErrAccountNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}

	var r machineRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, unavailable(fmt.Errorf("decode machine record: %w", err))
	}
	return &fleetAuth.MachineAccount{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		Active:       r.Active,
		CreatedAt:    r.CreatedAt,
	}, nil
}

func (s *Store) CreateMachine(ctx context.Context, account *fleetAuth.MachineAccount) error {
	now := s.now().UTC()
	rec := machineRecord{
		ID:           ids.NewAt(now),
		Username:     account.Username,
		PasswordHash: account.PasswordHash,
		Active:       account.Active,
		CreatedAt:    account.CreatedAt.UTC(),
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	ok, err := s.redis.SetNX(ctx, s.machineKey(account.Username), data, 0).Result()
	if err != nil {
		return unavailable(err)
	}
	if !ok {
		return fleetAuth.ErrDuplicateUsername
	}
	account.ID = rec.ID
	account.CreatedAt = rec.CreatedAt
	return nil
}
