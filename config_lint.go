package fleetAuth

import "time"

// LintSeverity ranks advisory configuration warnings.
type LintSeverity int

const (
	// LintInfo marks settings that are valid but unusual.
	LintInfo LintSeverity = iota
	// LintWarn marks settings that weaken a security property.
	LintWarn
	// LintHigh marks settings that should not reach production.
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// LintWarning is one advisory finding from [Config.Lint].
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the list of findings.
type LintResult []LintWarning

// Codes returns the warning codes in report order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns the warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// Lint reports settings that pass Validate but deserve a second look. It never fails.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) > 0 && len(c.JWT.PrivateKey) < 32 {
		add("hs256_secret_short", LintHigh, "hs256 secret shorter than 32 bytes")
	}
	if c.JWT.TokenTTL > 7*24*time.Hour {
		add("token_ttl_long", LintWarn, "token TTL above 7 days")
	}
	if c.JWT.Leeway > time.Minute {
		add("leeway_large", LintWarn, "JWT leeway above 1 minute")
	}
	if c.JWT.KeyID == "" && len(c.JWT.VerifyKeys) > 0 {
		add("verify_keys_without_kid", LintWarn, "VerifyKeys set but tokens are issued without a kid")
	}
	if c.Lockout.MaxAttempts > 10 {
		add("lockout_threshold_high", LintWarn, "more than 10 failed logins allowed before lock")
	}
	if c.Lockout.Duration < time.Minute {
		add("lockout_duration_short", LintWarn, "lock duration under 1 minute")
	}
	if c.Verification.MaxAttempts > 5 {
		add("verification_attempts_high", LintWarn, "more than 5 verification attempts before block")
	}
	if c.Password.MinLength < 8 {
		add("password_min_length_low", LintHigh, "password minimum length under 8")
	}
	if c.Password.AcceptBcrypt && !c.Password.UpgradeOnLogin {
		add("bcrypt_without_upgrade", LintInfo, "bcrypt hashes accepted but never upgraded")
	}
	if !c.Notify.Async {
		add("notify_sync", LintInfo, "notifications run on the request goroutine")
	}
	if c.Notify.Async && !c.Notify.DropIfFull {
		add("notify_blocking_queue", LintWarn, "a full notification queue blocks callers")
	}
	if c.PasswordRecovery.Enabled && c.PasswordRecovery.TokenTTL > 24*time.Hour {
		add("recovery_ttl_long", LintWarn, "recovery tokens live longer than 24h")
	}
	return ws
}
