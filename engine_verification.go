package fleetAuth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strconv"

	"github.com/MrEthical07/fleetAuth/internal/notify"
)

// SendVerifyCode replaces the outstanding verification code with a fresh one, resets the
// verification attempt counter and sends the code. Verified accounts get a fresh code
// too; blocked ones fail with ErrAccountBlocked.
func (e *Engine) SendVerifyCode(ctx context.Context, email string) error {
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

	updated, err := e.store.UpdateTenant(ctx, email, func(a *TenantAccount) error {
		if a.Blocked() {
			return ErrAccountBlocked
		}
		a.VerificationCode = code
		a.VerifyAttempts = 0
		return nil
	})
	if err != nil {
		e.emitAudit(ctx, auditEventVerifyCodeSent, false, KindCompany, email, "", err, nil)
		return err
	}

	e.notify(ctx, notify.KindVerificationCode, updated.Email, code)
	e.metricInc(MetricVerifyCodeSent)
	e.emitAudit(ctx, auditEventVerifyCodeSent, true, KindCompany, email, updated.ID, nil, nil)

	return nil
}

// CheckVerifyCode compares code with the outstanding verification code. A match verifies
// the account. A mismatch counts an attempt; reaching Verification.MaxAttempts blocks the
// account and returns an [*AttemptError] with Blocked set. An already verified account
// rejects every code with a plain ErrInvalidCode and is left unchanged.
func (e *Engine) CheckVerifyCode(ctx context.Context, email, code string) error {
	if err := e.ready(); err != nil {
		return err
	}
	email = normalizeIdentifier(email)
	if email == "" {
		return ErrInvalidRequest
	}

	maxAttempts := e.config.Verification.MaxAttempts
	var failure *AttemptError

	updated, err := e.store.UpdateTenant(ctx, email, func(a *TenantAccount) error {
		failure = nil
		if a.Blocked() {
			return ErrAccountBlocked
		}
		if a.Verified {
			return ErrInvalidCode
		}

		if a.VerificationCode != "" && code != "" &&
			subtle.ConstantTimeCompare([]byte(a.VerificationCode), []byte(code)) == 1 {
			a.Verified = true
			a.VerificationCode = ""
			a.VerifyAttempts = 0
			return nil
		}

		a.VerifyAttempts++
		failure = &AttemptError{Err: ErrInvalidCode, Attempts: a.VerifyAttempts}
		if a.VerifyAttempts >= maxAttempts {
			a.Status = AccountBlocked
			a.VerifyAttempts = 0
			failure.Blocked = true
		}
		return nil
	})
	if err != nil {
		e.metricInc(MetricVerifyFailure)
		e.emitAudit(ctx, auditEventVerifyCodeCheck, false, KindCompany, email, "", err, nil)
		return err
	}

	if failure != nil {
		e.metricInc(MetricVerifyFailure)
		e.emitAudit(ctx, auditEventVerifyCodeCheck, false, KindCompany, email, updated.ID, failure, func() map[string]string {
			return map[string]string{"attempts": strconv.Itoa(failure.Attempts)}
		})
		if failure.Blocked {
			e.metricInc(MetricVerifyBlocked)
			e.emitAudit(ctx, auditEventAccountBlocked, true, KindCompany, email, updated.ID, nil, nil)
		}
		return failure
	}

	e.metricInc(MetricVerifySuccess)
	e.emitAudit(ctx, auditEventVerifyCodeCheck, true, KindCompany, email, updated.ID, nil, nil)

	return nil
}
