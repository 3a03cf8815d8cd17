package fleetAuth

import "time"

// SecurityReport summarizes the effective security posture of an Engine.
type SecurityReport struct {
	SigningAlgorithm        string
	KeyRotationActive       bool
	TokenTTL                time.Duration
	Argon2                  PasswordConfigReport
	LegacyBcryptAccepted    bool
	VerificationCodeDigits  int
	VerificationMaxAttempts int
	LockoutMaxAttempts      int
	LockoutDuration         time.Duration
	PasswordRecoveryActive  bool
	NotificationsAsync      bool
	AuditActive             bool
	MetricsActive           bool
}

// PasswordConfigReport is the argon2id parameter set in effect.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		SigningAlgorithm:  e.config.JWT.SigningMethod,
		KeyRotationActive: len(e.config.JWT.VerifyKeys) > 1,
		TokenTTL:          e.config.JWT.TokenTTL,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
			MinLength:   e.config.Password.MinLength,
		},
		LegacyBcryptAccepted:    e.config.Password.AcceptBcrypt,
		VerificationCodeDigits:  e.config.Verification.CodeDigits,
		VerificationMaxAttempts: e.config.Verification.MaxAttempts,
		LockoutMaxAttempts:      e.config.Lockout.MaxAttempts,
		LockoutDuration:         e.config.Lockout.Duration,
		PasswordRecoveryActive:  e.recovery != nil,
		NotificationsAsync:      e.config.Notify.Async,
		AuditActive:             e.audit != nil,
		MetricsActive:           e.metrics.Enabled(),
	}
}
