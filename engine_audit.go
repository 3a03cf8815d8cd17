package fleetAuth

import (
	"context"
	"errors"
)

const (
	auditEventRegisterSuccess       = "register_success"
	auditEventRegisterFailure       = "register_failure"
	auditEventVerifyCodeSent        = "verify_code_sent"
	auditEventVerifyCodeCheck       = "verify_code_check"
	auditEventAccountBlocked        = "account_blocked"
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventAccountLocked         = "account_locked"
	auditEventMachineRegister       = "machine_register"
	auditEventMachineLoginSuccess   = "machine_login_success"
	auditEventMachineLoginFailure   = "machine_login_failure"
	auditEventTokenRejected         = "token_rejected"
	auditEventRecoveryRequest       = "password_recovery_request"
	auditEventRecoveryConfirm       = "password_recovery_confirm"
	auditEventAccountStatusChange   = "account_status_change"
	auditEventCompanyReleaseFailure = "company_release_failure"
)

// AuditErrorCode is the stable error label written into audit events.
type AuditErrorCode string

const (
	auditErrDuplicate         AuditErrorCode = "duplicate"
	auditErrProvisioning      AuditErrorCode = "company_provisioning_failed"
	auditErrNotFound          AuditErrorCode = "account_not_found"
	auditErrBlocked           AuditErrorCode = "account_blocked"
	auditErrUnverified        AuditErrorCode = "email_not_verified"
	auditErrLocked            AuditErrorCode = "temporarily_locked"
	auditErrIncorrectPassword AuditErrorCode = "incorrect_password"
	auditErrInvalidCode       AuditErrorCode = "invalid_code"
	auditErrInactive          AuditErrorCode = "account_inactive"
	auditErrInvalidToken      AuditErrorCode = "invalid_token"
	auditErrRecoveryInvalid   AuditErrorCode = "recovery_invalid"
	auditErrPasswordPolicy    AuditErrorCode = "password_policy"
	auditErrInvalidRequest    AuditErrorCode = "invalid_request"
	auditErrUnavailable       AuditErrorCode = "backend_unavailable"
	auditErrInternal          AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	kind PrincipalKind,
	subject string,
	accountID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		AccountID: accountID,
		Subject:   subject,
		Kind:      string(kind),
		IP:        clientIPFromContext(ctx),
		RequestID: requestIDFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrDuplicateEmail), errors.Is(err, ErrDuplicateUsername):
		return auditErrDuplicate
	case errors.Is(err, ErrCompanyProvisioningFailed):
		return auditErrProvisioning
	case errors.Is(err, ErrAccountNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrAccountBlocked):
		return auditErrBlocked
	case errors.Is(err, ErrEmailNotVerified):
		return auditErrUnverified
	case errors.Is(err, ErrTemporarilyLocked):
		return auditErrLocked
	case errors.Is(err, ErrIncorrectPassword):
		return auditErrIncorrectPassword
	case errors.Is(err, ErrInvalidCode):
		return auditErrInvalidCode
	case errors.Is(err, ErrInactiveAccount):
		return auditErrInactive
	case errors.Is(err, ErrInvalidToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrRecoveryInvalid):
		return auditErrRecoveryInvalid
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrInvalidRequest):
		return auditErrInvalidRequest
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrRecoveryUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
