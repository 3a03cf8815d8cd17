package fleetAuth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Login checks a tenant account password and returns a COMPANY token for the email.
//
// Checks run in order and stop at the first failure: account lookup, email verification,
// block status, temporary lock, password. Only the password step writes; it is performed
// through [AccountStore.UpdateTenant] and re-checks status and lock against the record it
// mutates. A mismatch returns an [*AttemptError] wrapping ErrIncorrectPassword; the failure
// that reaches Lockout.MaxAttempts also carries the unlock time. A refusal due to a lock in
// force returns an [*AttemptError] wrapping ErrTemporarilyLocked.
func (e *Engine) Login(ctx context.Context, email, password string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	email = normalizeIdentifier(email)
	if email == "" {
		return "", ErrInvalidRequest
	}

	account, err := e.store.FindTenantByEmail(ctx, email)
	if err != nil {
		e.loginFailed(ctx, email, "", err)
		return "", err
	}
	now := e.now()
	if err := tenantLoginGate(account, now); err != nil {
		e.loginFailed(ctx, email, account.ID, err)
		return "", err
	}

	readHash := account.PasswordHash
	match, err := e.verifyPassword(password, readHash)
	if err != nil {
		return "", fmt.Errorf("verify password: %w", err)
	}
	upgraded := ""
	if match {
		upgraded = e.upgradedHash(password, readHash)
	}

	maxAttempts := e.config.Lockout.MaxAttempts
	lockFor := e.config.Lockout.Duration
	var failure error

	updated, err := e.store.UpdateTenant(ctx, email, func(a *TenantAccount) error {
		failure = nil
		if gate := tenantLoginGate(a, now); gate != nil {
			failure = gate
			return errAbortUpdate
		}

		ok := match
		if a.PasswordHash != readHash {
			// The hash changed since it was read; compare against the one being mutated.
			var verr error
			ok, verr = e.verifyPassword(password, a.PasswordHash)
			if verr != nil {
				return fmt.Errorf("verify password: %w", verr)
			}
		}

		if !ok {
			a.LoginAttempts++
			attempt := &AttemptError{Err: ErrIncorrectPassword, Attempts: a.LoginAttempts}
			if a.LoginAttempts >= maxAttempts {
				a.LockedUntil = now.Add(lockFor)
				a.LoginAttempts = 0
				attempt.LockedUntil = a.LockedUntil
			}
			failure = attempt
			return nil
		}

		a.LoginAttempts = 0
		a.LockedUntil = time.Time{}
		if upgraded != "" && a.PasswordHash == readHash {
			a.PasswordHash = upgraded
		}
		return nil
	})
	if errors.Is(err, errAbortUpdate) {
		err = nil
	}
	if err != nil {
		e.loginFailed(ctx, email, account.ID, err)
		return "", err
	}

	if failure != nil {
		// An aborted update returns no record.
		accountID := account.ID
		if updated != nil {
			accountID = updated.ID
		}
		e.loginFailed(ctx, email, accountID, failure)
		if until, locked := LockedUntil(failure); locked && errors.Is(failure, ErrIncorrectPassword) {
			e.metricInc(MetricLoginLockEntered)
			e.logger.Info("account locked",
				zap.String("account_id", accountID),
				zap.Time("locked_until", until),
			)
			e.emitAudit(ctx, auditEventAccountLocked, true, KindCompany, email, accountID, nil, func() map[string]string {
				return map[string]string{"locked_until": until.UTC().Format(time.RFC3339)}
			})
		}
		return "", failure
	}

	if upgraded != "" && updated.PasswordHash == upgraded {
		e.metricInc(MetricPasswordRehash)
	}

	token, err := e.jwtManager.Issue(updated.Email, string(KindCompany))
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, KindCompany, email, updated.ID, nil, nil)

	return token, nil
}

// tenantLoginGate applies the checks that precede the password comparison.
func tenantLoginGate(a *TenantAccount, now time.Time) error {
	switch {
	case !a.Verified:
		return ErrEmailNotVerified
	case a.Blocked():
		return ErrAccountBlocked
	case a.LockedAt(now):
		return &AttemptError{Err: ErrTemporarilyLocked, LockedUntil: a.LockedUntil}
	}
	return nil
}

// upgradedHash returns a fresh primary-format hash when encoded is stale, or "".
func (e *Engine) upgradedHash(password, encoded string) string {
	if !e.config.Password.UpgradeOnLogin {
		return ""
	}
	up, ok := e.hasher.(hashUpgrader)
	if !ok {
		return ""
	}
	stale, err := up.NeedsUpgrade(encoded)
	if err != nil || !stale {
		return ""
	}
	fresh, err := e.hasher.Hash(password)
	if err != nil {
		e.logger.Warn("password rehash failed", zap.Error(err))
		return ""
	}
	return fresh
}

func (e *Engine) loginFailed(ctx context.Context, email, accountID string, err error) {
	if errors.Is(err, ErrTemporarilyLocked) {
		e.metricInc(MetricLoginRejectedLocked)
	} else {
		e.metricInc(MetricLoginFailure)
	}
	e.emitAudit(ctx, auditEventLoginFailure, false, KindCompany, email, accountID, err, func() map[string]string {
		var ae *AttemptError
		if errors.As(err, &ae) && ae.Attempts > 0 {
			return map[string]string{"attempts": strconv.Itoa(ae.Attempts)}
		}
		return nil
	})
}
