package fleetAuth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/fleetAuth/internal"
	"github.com/MrEthical07/fleetAuth/internal/notify"
	"github.com/MrEthical07/fleetAuth/internal/stores"
)

// RequestPasswordRecovery sends a single-use recovery token to email. It returns nil for
// unknown and blocked accounts without sending anything, so the response does not reveal
// whether an account exists.
func (e *Engine) RequestPasswordRecovery(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.recovery == nil {
		return ErrRecoveryDisabled
	}
	email = normalizeIdentifier(email)
	if email == "" {
		return ErrInvalidRequest
	}
	e.metricInc(MetricRecoveryRequest)

	account, err := e.store.FindTenantByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.emitAudit(ctx, auditEventRecoveryRequest, false, KindCompany, email, "", err, nil)
			return nil
		}
		return err
	}
	if account.Blocked() {
		e.emitAudit(ctx, auditEventRecoveryRequest, false, KindCompany, email, account.ID, ErrAccountBlocked, nil)
		return nil
	}

	challengeID, err := internal.NewChallengeID()
	if err != nil {
		return fmt.Errorf("generate recovery challenge: %w", err)
	}
	secret, err := internal.NewRecoverySecret()
	if err != nil {
		return fmt.Errorf("generate recovery secret: %w", err)
	}

	ttl := e.config.PasswordRecovery.TokenTTL
	record := &stores.RecoveryRecord{
		Email:      account.Email,
		SecretHash: internal.HashRecoverySecret(secret),
		ExpiresAt:  e.now().Add(ttl).Unix(),
	}
	if err := e.recovery.Save(ctx, challengeID.String(), record, ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrRecoveryUnavailable, err)
	}

	e.notify(ctx, notify.KindPasswordRecovery, account.Email, internal.EncodeRecoveryToken(challengeID, secret))
	e.emitAudit(ctx, auditEventRecoveryRequest, true, KindCompany, email, account.ID, nil, nil)

	return nil
}

// ResetPassword consumes a recovery token and replaces the account password. The login
// attempt counter and any lock are cleared; block and verification status are kept.
// Unknown, expired, exhausted and mismatched tokens all fail with ErrRecoveryInvalid.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.recovery == nil {
		return ErrRecoveryDisabled
	}
	if err := e.checkPassword(newPassword); err != nil {
		return err
	}

	challengeID, secret, err := internal.DecodeRecoveryToken(token)
	if err != nil {
		e.recoveryFailed(ctx, "", ErrRecoveryInvalid)
		return ErrRecoveryInvalid
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	record, err := e.recovery.Consume(ctx, challengeID.String(), internal.HashRecoverySecret(secret), e.config.PasswordRecovery.MaxAttempts)
	if err != nil {
		if errors.Is(err, stores.ErrRecoveryRedisUnavailable) {
			return fmt.Errorf("%w: %v", ErrRecoveryUnavailable, err)
		}
		e.recoveryFailed(ctx, "", ErrRecoveryInvalid)
		return ErrRecoveryInvalid
	}

	updated, err := e.store.UpdateTenant(ctx, record.Email, func(a *TenantAccount) error {
		a.PasswordHash = hash
		a.LoginAttempts = 0
		a.LockedUntil = time.Time{}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.recoveryFailed(ctx, record.Email, ErrRecoveryInvalid)
			return ErrRecoveryInvalid
		}
		return err
	}

	e.metricInc(MetricRecoverySuccess)
	e.emitAudit(ctx, auditEventRecoveryConfirm, true, KindCompany, record.Email, updated.ID, nil, nil)

	return nil
}

func (e *Engine) recoveryFailed(ctx context.Context, email string, err error) {
	e.metricInc(MetricRecoveryFailure)
	e.emitAudit(ctx, auditEventRecoveryConfirm, false, KindCompany, email, "", err, nil)
}
