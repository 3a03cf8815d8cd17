package fleetAuth

import (
	"context"
	"errors"
	"time"
)

// VerifyToken checks signature, expiry and that the token subject equals expectedSubject,
// and returns the principal kind it carries. Every rejection is ErrInvalidToken.
func (e *Engine) VerifyToken(ctx context.Context, token, expectedSubject string) (PrincipalKind, error) {
	if err := e.ready(); err != nil {
		return "", err
	}

	claims, err := e.jwtManager.Verify(token, expectedSubject)
	if err != nil {
		e.tokenRejected(ctx, "")
		return "", ErrInvalidToken
	}
	kind, ok := parseKind(claims.Kind)
	if !ok {
		e.tokenRejected(ctx, claims.Subject)
		return "", ErrInvalidToken
	}
	return kind, nil
}

// Authenticate resolves a bearer token to the account it was issued for. Tenant tokens
// resolve only for verified, non-blocked accounts; machine tokens only for active accounts.
// Token and account rejections are ErrInvalidToken; store faults are returned as is.
func (e *Engine) Authenticate(ctx context.Context, token string) (Principal, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
		defer func() {
			e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
		}()
	}

	claims, err := e.jwtManager.Parse(token)
	if err != nil {
		e.tokenRejected(ctx, "")
		return nil, ErrInvalidToken
	}
	kind, ok := parseKind(claims.Kind)
	if !ok {
		e.tokenRejected(ctx, claims.Subject)
		return nil, ErrInvalidToken
	}

	switch kind {
	case KindAPI:
		account, err := e.store.FindMachineByUsername(ctx, claims.Subject)
		if err != nil {
			return nil, e.resolveFailure(ctx, claims.Subject, err)
		}
		if !account.Active || account.Username != claims.Subject {
			e.tokenRejected(ctx, claims.Subject)
			return nil, ErrInvalidToken
		}
		return MachinePrincipal{AccountID: account.ID, Username: account.Username}, nil
	default:
		account, err := e.store.FindTenantByEmail(ctx, claims.Subject)
		if err != nil {
			return nil, e.resolveFailure(ctx, claims.Subject, err)
		}
		if !account.Verified || account.Blocked() || account.Email != claims.Subject {
			e.tokenRejected(ctx, claims.Subject)
			return nil, ErrInvalidToken
		}
		return TenantPrincipal{
			AccountID: account.ID,
			Email:     account.Email,
			Username:  account.Username,
			CompanyID: account.CompanyID,
		}, nil
	}
}

func (e *Engine) resolveFailure(ctx context.Context, subject string, err error) error {
	if errors.Is(err, ErrAccountNotFound) {
		e.tokenRejected(ctx, subject)
		return ErrInvalidToken
	}
	return err
}

func (e *Engine) tokenRejected(ctx context.Context, subject string) {
	e.metricInc(MetricTokenInvalid)
	e.emitAudit(ctx, auditEventTokenRejected, false, "", subject, "", ErrInvalidToken, nil)
}

// parseKind maps the kind claim to a PrincipalKind. Tokens without the claim are tenant
// tokens.
func parseKind(claim string) (PrincipalKind, bool) {
	switch PrincipalKind(claim) {
	case "", KindCompany:
		return KindCompany, true
	case KindAPI:
		return KindAPI, true
	default:
		return "", false
	}
}
