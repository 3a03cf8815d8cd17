package fleetAuth

import (
	"errors"
	"strconv"
	"time"
)

var (
	// ErrDuplicateEmail is returned by Register when a tenant account already uses the email.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrDuplicateUsername is returned by RegisterMachine when the username is taken.
	ErrDuplicateUsername = errors.New("username already registered")
	// ErrCompanyProvisioningFailed is returned when the company could not be created or joined.
	// No account is persisted in that case.
	ErrCompanyProvisioningFailed = errors.New("company provisioning failed")
	// ErrAccountNotFound is returned when no record matches the identifier.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountBlocked is returned for tenant accounts in BLOCKED status.
	ErrAccountBlocked = errors.New("account blocked")
	// ErrEmailNotVerified is returned by Login before the email is verified.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrTemporarilyLocked is returned while a lock from repeated login failures is in force.
	// The concrete error is an [*AttemptError] carrying the unlock time.
	ErrTemporarilyLocked = errors.New("account temporarily locked")
	// ErrIncorrectPassword is returned on a password mismatch.
	ErrIncorrectPassword = errors.New("incorrect password")
	// ErrInvalidCode is returned when a submitted verification code does not match.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrInactiveAccount is returned by LoginMachine for deactivated machine accounts.
	ErrInactiveAccount = errors.New("account inactive")

	// ErrInvalidToken is the only error a token rejection produces.
	ErrInvalidToken = errors.New("invalid token")
	// ErrRecoveryInvalid is returned by ResetPassword for unknown, expired, or exhausted tokens.
	ErrRecoveryInvalid = errors.New("password recovery token invalid")
	// ErrRecoveryDisabled is returned when password recovery is not configured.
	ErrRecoveryDisabled = errors.New("password recovery disabled")
	// ErrRecoveryUnavailable is returned when the recovery challenge backend fails.
	ErrRecoveryUnavailable = errors.New("password recovery backend unavailable")
	// ErrPasswordPolicy is returned when a password is rejected before hashing.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrInvalidRequest is returned for structurally unusable input such as an empty email.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrStoreUnavailable wraps infrastructure faults reported by account stores.
	ErrStoreUnavailable = errors.New("account store unavailable")
	// ErrEngineNotReady is returned by an Engine that was not produced by Builder.Build.
	ErrEngineNotReady = errors.New("engine not ready")
)

// AttemptError reports a failure that changed, or was caused by, per-account attempt state.
//
// Err is one of [ErrIncorrectPassword], [ErrTemporarilyLocked] or [ErrInvalidCode].
// Attempts is the number of consecutive failures counted so far, this one included.
// LockedUntil is set when a lock is in force or was just entered. Blocked is set when this
// failure moved the account to BLOCKED.
type AttemptError struct {
	Err         error
	Attempts    int
	LockedUntil time.Time
	Blocked     bool
}

func (e *AttemptError) Error() string {
	if e == nil || e.Err == nil {
		return "attempt failed"
	}
	msg := e.Err.Error()
	if !e.LockedUntil.IsZero() {
		msg += " until " + e.LockedUntil.UTC().Format(time.RFC3339)
	}
	if e.Blocked {
		msg += " (account blocked)"
	} else if e.Attempts > 0 {
		msg += " (attempt " + strconv.Itoa(e.Attempts) + ")"
	}
	return msg
}

func (e *AttemptError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// LockedUntil extracts the unlock time from err. It returns false when err carries none.
func LockedUntil(err error) (time.Time, bool) {
	var ae *AttemptError
	if errors.As(err, &ae) && !ae.LockedUntil.IsZero() {
		return ae.LockedUntil, true
	}
	return time.Time{}, false
}

// IsBlocked reports whether err blocked the account or was refused because it is blocked.
func IsBlocked(err error) bool {
	if errors.Is(err, ErrAccountBlocked) {
		return true
	}
	var ae *AttemptError
	return errors.As(err, &ae) && ae.Blocked
}
