package fleetAuth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/fleetAuth/internal/notify"
	"go.uber.org/zap"
)

// UnblockAccount returns a BLOCKED tenant account to ACTIVE and resets both attempt
// counters and any lock. An unverified account gets a fresh verification code, which is
// sent. Unblocking an active account changes nothing.
//
// This is an administrative operation; callers must authorize it themselves.
func (e *Engine) UnblockAccount(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}
	email = normalizeIdentifier(email)
	if email == "" {
		return ErrInvalidRequest
	}

	code, err := e.codes.NewCode()
	if err != nil {
		return fmt.Errorf("generate verification code: %w", err)
	}

	var changed bool
	updated, err := e.store.UpdateTenant(ctx, email, func(a *TenantAccount) error {
		changed = false
		if !a.Blocked() {
			return errAbortUpdate
		}
		a.Status = AccountActive
		a.VerifyAttempts = 0
		a.LoginAttempts = 0
		a.LockedUntil = time.Time{}
		if !a.Verified {
			a.VerificationCode = code
		}
		changed = true
		return nil
	})
	if err != nil && !errors.Is(err, errAbortUpdate) {
		return err
	}
	if !changed {
		return nil
	}

	e.metricInc(MetricAccountUnblocked)
	e.logger.Info("account unblocked", zap.String("account_id", updated.ID))
	e.emitAudit(ctx, auditEventAccountStatusChange, true, KindCompany, email, updated.ID, nil, func() map[string]string {
		return map[string]string{"status": string(AccountActive)}
	})

	if !updated.Verified {
		e.notify(ctx, notify.KindVerificationCode, updated.Email, code)
		e.metricInc(MetricVerifyCodeSent)
	}
	return nil
}

// UnlockAccount clears a temporary login lock and the login attempt counter before the lock
// would expire on its own. Block status is not affected.
func (e *Engine) UnlockAccount(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}
	email = normalizeIdentifier(email)
	if email == "" {
		return ErrInvalidRequest
	}

	updated, err := e.store.UpdateTenant(ctx, email, func(a *TenantAccount) error {
		a.LoginAttempts = 0
		a.LockedUntil = time.Time{}
		return nil
	})
	if err != nil {
		return err
	}

	e.metricInc(MetricAccountUnlocked)
	e.emitAudit(ctx, auditEventAccountStatusChange, true, KindCompany, email, updated.ID, nil, func() map[string]string {
		return map[string]string{"lock": "cleared"}
	})
	return nil
}
