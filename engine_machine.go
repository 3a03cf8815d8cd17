package fleetAuth

import (
	"context"
	"fmt"
)

// LoginMachine checks a machine account password and returns an API token for the
// username. Machine accounts are gated by Active only; failures are not counted.
func (e *Engine) LoginMachine(ctx context.Context, username, password string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	username = normalizeIdentifier(username)
	if username == "" {
		return "", ErrInvalidRequest
	}

	account, err := e.store.FindMachineByUsername(ctx, username)
	if err != nil {
		e.machineLoginFailed(ctx, username, "", err)
		return "", err
	}
	if !account.Active {
		e.machineLoginFailed(ctx, username, account.ID, ErrInactiveAccount)
		return "", ErrInactiveAccount
	}

	ok, err := e.verifyPassword(password, account.PasswordHash)
	if err != nil {
		return "", fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		e.machineLoginFailed(ctx, username, account.ID, ErrIncorrectPassword)
		return "", ErrIncorrectPassword
	}

	token, err := e.jwtManager.Issue(account.Username, string(KindAPI))
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}

	e.metricInc(MetricMachineLoginSuccess)
	e.emitAudit(ctx, auditEventMachineLoginSuccess, true, KindAPI, username, account.ID, nil, nil)

	return token, nil
}

func (e *Engine) machineLoginFailed(ctx context.Context, username, accountID string, err error) {
	e.metricInc(MetricMachineLoginFailure)
	e.emitAudit(ctx, auditEventMachineLoginFailure, false, KindAPI, username, accountID, err, nil)
}
