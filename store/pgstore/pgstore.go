// Package pgstore is a Postgres fleetAuth.AccountStore, TenantRegistrar and
// CompanyProvisioner over database/sql with the pgx driver.
//
// UpdateTenant locks the row with SELECT ... FOR UPDATE, so the mutator runs exactly once
// per call. CreateTenantWithCompany creates the company through sp_register_company and
// inserts the owning account in the same transaction.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/MrEthical07/fleetAuth"
)

var (
	_ fleetAuth.AccountStore       = (*Store)(nil)
	_ fleetAuth.TenantRegistrar    = (*Store)(nil)
	_ fleetAuth.CompanyProvisioner = (*Store)(nil)
)

const (
	pgErrUniqueViolation = "23505"
	defaultCompanyPlan   = "BASIC"
)

const tenantColumns = `id, email, username, first_name, last_name, password_hash, company_id,
	is_verified, verification_code, verify_attempts, login_attempts, locked_until,
	account_status, created_at`

// Store reads and writes account rows.
type Store struct {
	db *sql.DB
}

// Open connects with the pgx driver and applies pool defaults.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error { return s.db.Close() }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (*fleetAuth.TenantAccount, error) {
	var (
		a           fleetAuth.TenantAccount
		first, last sql.NullString
		companyID   sql.NullString
		code        sql.NullString
		lockedUntil sql.NullTime
		status      string
	)
	err := row.Scan(
		&a.ID, &a.Email, &a.Username, &first, &last, &a.PasswordHash, &companyID,
		&a.Verified, &code, &a.VerifyAttempts, &a.LoginAttempts, &lockedUntil,
		&status, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.FirstName = first.String
	a.LastName = last.String
	a.CompanyID = companyID.String
	a.VerificationCode = code.String
	if lockedUntil.Valid {
		a.LockedUntil = lockedUntil.Time.UTC()
	}
	a.Status = fleetAuth.AccountStatus(status)
	return &a, nil
}

func (s *Store) FindTenantByEmail(ctx context.Context, email string) (*fleetAuth.TenantAccount, error) {
	row := s.db.QueryRowContext(ctx, `select `+tenantColumns+` from company_account where email = $1`, email)
	a, err := scanTenant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fleetAuth.ErrAccountNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return a, nil
}

func (s *Store) CreateTenant(ctx context.Context, account *fleetAuth.TenantAccount) error {
	companyID, err := nullCompanyID(account.CompanyID)
	if err != nil {
		return err
	}
	return insertTenant(ctx, s.db, account, companyID)
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertTenant(ctx context.Context, q rowQuerier, account *fleetAuth.TenantAccount, companyID sql.NullInt64) error {
	status := account.Status
	if status == "" {
		status = fleetAuth.AccountActive
	}
	row := q.QueryRowContext(ctx, `
		insert into company_account (
			email, username, first_name, last_name, password_hash, company_id,
			is_verified, verification_code, verify_attempts, login_attempts, locked_until,
			account_status
		) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		returning id, created_at
	`,
		account.Email, account.Username, nullString(account.FirstName), nullString(account.LastName),
		account.PasswordHash, companyID, account.Verified, nullString(account.VerificationCode),
		account.VerifyAttempts, account.LoginAttempts, nullTime(account.LockedUntil), string(status),
	)
	var (
		id      int64
		created time.Time
	)
	if err := row.Scan(&id, &created); err != nil {
		if isUniqueViolation(err) {
			return fleetAuth.ErrDuplicateEmail
		}
		return unavailable(err)
	}
	account.ID = strconv.FormatInt(id, 10)
	account.CreatedAt = created.UTC()
	account.Status = status
	if companyID.Valid {
		account.CompanyID = strconv.FormatInt(companyID.Int64, 10)
	}
	return nil
}

// CreateTenantWithCompany registers a company and its first account atomically. A duplicate
// email rolls back the company as well.
func (s *Store) CreateTenantWithCompany(ctx context.Context, account *fleetAuth.TenantAccount, companyName string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable(err)
	}
	defer func() { _ = tx.Rollback() }()

	var companyID int64
	err = tx.QueryRowContext(ctx,
		`select company_id from sp_register_company($1, $2, true)`, companyName, defaultCompanyPlan,
	).Scan(&companyID)
	if err != nil {
		return fmt.Errorf("%w: %v", fleetAuth.ErrCompanyProvisioningFailed, err)
	}

	if err := insertTenant(ctx, tx, account, sql.NullInt64{Int64: companyID, Valid: true}); err != nil {
		account.CompanyID = ""
		return err
	}
	if err := tx.Commit(); err != nil {
		account.ID = ""
		account.CompanyID = ""
		return unavailable(err)
	}
	return nil
}

// UpdateTenant locks the row, applies mutate and writes every mutable column back.
func (s *Store) UpdateTenant(
	ctx context.Context,
	email string,
	mutate func(*fleetAuth.TenantAccount) error,
) (*fleetAuth.TenantAccount, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable(err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := scanTenant(tx.QueryRowContext(ctx,
		`select `+tenantColumns+` from company_account where email = $1 for update`, email,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fleetAuth.ErrAccountNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.Email = current.Email

	companyID, err := nullCompanyID(next.CompanyID)
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseInt(current.ID, 10, 64)
	if err != nil {
		return nil, unavailable(fmt.Errorf("row id %q: %w", current.ID, err))
	}

	_, err = tx.ExecContext(ctx, `
		update company_account set
			username = $2, first_name = $3, last_name = $4, password_hash = $5, company_id = $6,
			is_verified = $7, verification_code = $8, verify_attempts = $9, login_attempts = $10,
			locked_until = $11, account_status = $12
		where id = $1
	`,
		id, next.Username, nullString(next.FirstName), nullString(next.LastName), next.PasswordHash,
		companyID, next.Verified, nullString(next.VerificationCode), next.VerifyAttempts,
		next.LoginAttempts, nullTime(next.LockedUntil), string(next.Status),
	)
	if err != nil {
		return nil, unavailable(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, unavailable(err)
	}
	return next, nil
}

func (s *Store) FindMachineByUsername(ctx context.Context, username string) (*fleetAuth.MachineAccount, error) {
	var m fleetAuth.MachineAccount
	err := s.db.QueryRowContext(ctx,
		`select id, username, password_hash, is_active, date_created from api_account where username = $1`, username,
	).Scan(&m.ID, &m.Username, &m.PasswordHash, &m.Active, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fleetAuth.ErrAccountNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return &m, nil
}

func (s *Store) CreateMachine(ctx context.Context, account *fleetAuth.MachineAccount) error {
	var (
		id      int64
		created time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`insert into api_account (username, password_hash, is_active) values ($1, $2, $3) returning id, date_created`,
		account.Username, account.PasswordHash, account.Active,
	).Scan(&id, &created)
	if err != nil {
		if isUniqueViolation(err) {
			return fleetAuth.ErrDuplicateUsername
		}
		return unavailable(err)
	}
	account.ID = strconv.FormatInt(id, 10)
	account.CreatedAt = created.UTC()
	return nil
}

// SetMachineActive toggles a machine account.
func (s *Store) SetMachineActive(ctx context.Context, username string, active bool) error {
	res, err := s.db.ExecContext(ctx, `update api_account set is_active = $2 where username = $1`, username, active)
	if err != nil {
		return unavailable(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fleetAuth.ErrAccountNotFound
	}
	return nil
}

func (s *Store) ProvisionCompany(ctx context.Context, name string) (string, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`select company_id from sp_register_company($1, $2, true)`, name, defaultCompanyPlan,
	).Scan(&id)
	if err != nil {
		return "", unavailable(err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *Store) ReleaseCompany(ctx context.Context, companyID string) error {
	id, err := strconv.ParseInt(companyID, 10, 64)
	if err != nil {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `delete from company where id = $1`, id); err != nil {
		return unavailable(err)
	}
	return nil
}

// CompanyExists reports whether an active company has the id. Non-numeric ids never exist.
func (s *Store) CompanyExists(ctx context.Context, companyID string) (bool, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(companyID), 10, 64)
	if err != nil {
		return false, nil
	}
	var exists bool
	err = s.db.QueryRowContext(ctx,
		`select exists(select 1 from company where id = $1 and is_active)`, id,
	).Scan(&exists)
	if err != nil {
		return false, unavailable(err)
	}
	return exists, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", fleetAuth.ErrStoreUnavailable, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}

func nullCompanyID(companyID string) (sql.NullInt64, error) {
	if companyID == "" {
		return sql.NullInt64{}, nil
	}
	id, err := strconv.ParseInt(companyID, 10, 64)
	if err != nil {
		return sql.NullInt64{}, fmt.Errorf("%w: company id %q", fleetAuth.ErrCompanyProvisioningFailed, companyID)
	}
	return sql.NullInt64{Int64: id, Valid: true}, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
