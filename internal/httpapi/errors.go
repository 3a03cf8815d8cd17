package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/fleetAuth"
)

type errorResponse struct {
	Error       string     `json:"error"`
	Message     string     `json:"message"`
	Attempts    int        `json:"attempts,omitempty"`
	LockedUntil *time.Time `json:"lockedUntil,omitempty"`
	Blocked     bool       `json:"blocked,omitempty"`
}

type errorMapping struct {
	target error
	status int
	code   string
}

// Order matters: the first matching sentinel wins.
var errorMappings = []errorMapping{
	{fleetAuth.ErrInvalidRequest, http.StatusBadRequest, "invalid_request"},
	{fleetAuth.ErrPasswordPolicy, http.StatusBadRequest, "password_policy"},
	{fleetAuth.ErrDuplicateEmail, http.StatusConflict, "duplicate_email"},
	{fleetAuth.ErrDuplicateUsername, http.StatusConflict, "duplicate_username"},
	{fleetAuth.ErrCompanyProvisioningFailed, http.StatusUnprocessableEntity, "company_provisioning_failed"},
	{fleetAuth.ErrAccountNotFound, http.StatusNotFound, "account_not_found"},
	{fleetAuth.ErrAccountBlocked, http.StatusForbidden, "account_blocked"},
	{fleetAuth.ErrEmailNotVerified, http.StatusForbidden, "email_not_verified"},
	{fleetAuth.ErrTemporarilyLocked, http.StatusLocked, "temporarily_locked"},
	{fleetAuth.ErrIncorrectPassword, http.StatusUnauthorized, "incorrect_password"},
	{fleetAuth.ErrInvalidCode, http.StatusBadRequest, "invalid_code"},
	{fleetAuth.ErrInactiveAccount, http.StatusForbidden, "account_inactive"},
	{fleetAuth.ErrInvalidToken, http.StatusUnauthorized, "invalid_token"},
	{fleetAuth.ErrRecoveryInvalid, http.StatusBadRequest, "recovery_invalid"},
	{fleetAuth.ErrRecoveryDisabled, http.StatusNotFound, "recovery_disabled"},
	{fleetAuth.ErrRecoveryUnavailable, http.StatusServiceUnavailable, "recovery_unavailable"},
	{fleetAuth.ErrStoreUnavailable, http.StatusServiceUnavailable, "store_unavailable"},
}

// statusFor maps an engine error to a status code and a stable error code.
func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	resp := errorResponse{Error: code, Message: err.Error()}
	if status >= http.StatusInternalServerError {
		resp.Message = http.StatusText(status)
		a.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}

	var ae *fleetAuth.AttemptError
	if errors.As(err, &ae) {
		resp.Attempts = ae.Attempts
		resp.Blocked = ae.Blocked
		if !ae.LockedUntil.IsZero() {
			until := ae.LockedUntil.UTC()
			resp.LockedUntil = &until
			if wait := until.Sub(a.now()); wait > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(wait.Round(time.Second)/time.Second)))
			}
		}
	}
	writeJSON(w, status, resp)
}
