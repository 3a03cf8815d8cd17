package fleetAuth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/fleetAuth/internal/notify"
	"go.uber.org/zap"
)

// Register creates an unverified, active tenant account and sends its first verification
// code. When req.CompanyName is set a company is created and owned by the account; when
// req.CompanyID is set the account joins that company. No account is persisted when the
// company step fails.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) error {
	if err := e.ready(); err != nil {
		return err
	}

	email := normalizeIdentifier(req.Email)
	companyName := normalizeIdentifier(req.CompanyName)
	companyID := normalizeIdentifier(req.CompanyID)
	if email == "" || (companyName != "" && companyID != "") {
		e.registerFailed(ctx, email, ErrInvalidRequest)
		return ErrInvalidRequest
	}
	if err := e.checkPassword(req.Password); err != nil {
		e.registerFailed(ctx, email, err)
		return err
	}

	_, err := e.store.FindTenantByEmail(ctx, email)
	switch {
	case err == nil:
		e.registerFailed(ctx, email, ErrDuplicateEmail)
		return ErrDuplicateEmail
	case !errors.Is(err, ErrAccountNotFound):
		e.registerFailed(ctx, email, err)
		return err
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	code, err := e.codes.NewCode()
	if err != nil {
		return fmt.Errorf("generate verification code: %w", err)
	}

	account := &TenantAccount{
		Email:            email,
		Username:         normalizeIdentifier(req.Username),
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		PasswordHash:     hash,
		Status:           AccountActive,
		VerificationCode: code,
		CreatedAt:        e.now().UTC(),
	}

	switch {
	case companyName != "" && e.registrar != nil:
		err = e.registrar.CreateTenantWithCompany(ctx, account, companyName)
	case companyName != "":
		err = e.createWithNewCompany(ctx, account, companyName)
	case companyID != "":
		err = e.createInExistingCompany(ctx, account, companyID)
	default:
		err = e.store.CreateTenant(ctx, account)
	}
	if err != nil {
		e.registerFailed(ctx, email, err)
		return err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, KindCompany, email, account.ID, nil, func() map[string]string {
		if account.CompanyID == "" {
			return nil
		}
		return map[string]string{"company_id": account.CompanyID}
	})

	e.notify(ctx, notify.KindVerificationCode, email, code)
	e.metricInc(MetricVerifyCodeSent)

	return nil
}

func (e *Engine) createWithNewCompany(ctx context.Context, account *TenantAccount, name string) error {
	if e.companies == nil {
		return fmt.Errorf("%w: no company provisioner configured", ErrCompanyProvisioningFailed)
	}

	companyID, err := e.companies.ProvisionCompany(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCompanyProvisioningFailed, err)
	}
	account.CompanyID = companyID

	if err := e.store.CreateTenant(ctx, account); err != nil {
		if rerr := e.companies.ReleaseCompany(ctx, companyID); rerr != nil {
			e.logger.Error("release orphaned company",
				zap.String("company_id", companyID),
				zap.Error(rerr),
			)
			e.emitAudit(ctx, auditEventCompanyReleaseFailure, false, KindCompany, account.Email, "", rerr, func() map[string]string {
				return map[string]string{"company_id": companyID}
			})
		}
		return err
	}
	return nil
}

func (e *Engine) createInExistingCompany(ctx context.Context, account *TenantAccount, companyID string) error {
	if e.companies == nil {
		return fmt.Errorf("%w: no company provisioner configured", ErrCompanyProvisioningFailed)
	}

	exists, err := e.companies.CompanyExists(ctx, companyID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCompanyProvisioningFailed, err)
	}
	if !exists {
		return fmt.Errorf("%w: company %s not found", ErrCompanyProvisioningFailed, companyID)
	}
	account.CompanyID = companyID

	return e.store.CreateTenant(ctx, account)
}

func (e *Engine) registerFailed(ctx context.Context, email string, err error) {
	if errors.Is(err, ErrDuplicateEmail) {
		e.metricInc(MetricRegisterDuplicate)
	} else {
		e.metricInc(MetricRegisterFailure)
	}
	e.emitAudit(ctx, auditEventRegisterFailure, false, KindCompany, email, "", err, nil)
}

// RegisterMachine creates an active machine account. Machine accounts have no verification
// step and no lockout.
func (e *Engine) RegisterMachine(ctx context.Context, username, password string) error {
	if err := e.ready(); err != nil {
		return err
	}

	username = normalizeIdentifier(username)
	if username == "" {
		return ErrInvalidRequest
	}
	if err := e.checkPassword(password); err != nil {
		return err
	}

	hash, err := e.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	account := &MachineAccount{
		Username:     username,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    e.now().UTC(),
	}
	if err := e.store.CreateMachine(ctx, account); err != nil {
		e.emitAudit(ctx, auditEventMachineRegister, false, KindAPI, username, "", err, nil)
		return err
	}

	e.metricInc(MetricMachineRegister)
	e.emitAudit(ctx, auditEventMachineRegister, true, KindAPI, username, account.ID, nil, nil)

	return nil
}
