package fleetAuth

import (
	"errors"
	"strings"
	"time"
)

// Config is the complete engine configuration. Obtain a populated value from
// [DefaultConfig] and override fields before passing it to [Builder.WithConfig].
type Config struct {
	JWT              JWTConfig
	Password         PasswordConfig
	Verification     VerificationConfig
	Lockout          LockoutConfig
	PasswordRecovery PasswordRecoveryConfig
	Notify           NotifyConfig
	Audit            AuditConfig
	Metrics          MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls token issuance. PrivateKey is the HMAC secret for "hs256" or the
// Ed25519 private key for "ed25519". VerifyKeys maps key ids to verification keys so tokens
// signed under a retired key stay valid until they expire.
type JWTConfig struct {
	TokenTTL      time.Duration
	SigningMethod string // "hs256" (default), "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	KeyID         string
	VerifyKeys    map[string][]byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id parameters and the login upgrade policy. AcceptBcrypt
// allows verifying bcrypt hashes imported from older deployments.
type PasswordConfig struct {
	Memory         uint32
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MinLength      int
	AcceptBcrypt   bool
	UpgradeOnLogin bool
}

/*
====================================
VERIFICATION CONFIG
====================================
*/

// VerificationConfig controls email verification codes.
type VerificationConfig struct {
	CodeDigits  int
	MaxAttempts int
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig controls progressive temporary lockout on failed logins.
type LockoutConfig struct {
	MaxAttempts int
	Duration    time.Duration
}

/*
====================================
PASSWORD RECOVERY CONFIG
====================================
*/

// PasswordRecoveryConfig controls recovery tokens. Recovery requires a Redis client.
type PasswordRecoveryConfig struct {
	Enabled     bool
	TokenTTL    time.Duration
	MaxAttempts int
	RedisPrefix string
}

/*
====================================
NOTIFY CONFIG
====================================
*/

// NotifyConfig controls notification dispatch. With Async disabled the notifier runs on
// the calling goroutine, still bounded by Timeout.
type NotifyConfig struct {
	Async      bool
	QueueSize  int
	Workers    int
	DropIfFull bool
	Timeout    time.Duration
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the defaults. JWT.PrivateKey is left empty and must be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			TokenTTL:      24 * time.Hour,
			SigningMethod: "hs256",
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      8,
			AcceptBcrypt:   true,
			UpgradeOnLogin: true,
		},
		Verification: VerificationConfig{
			CodeDigits:  4,
			MaxAttempts: 3,
		},
		Lockout: LockoutConfig{
			MaxAttempts: 3,
			Duration:    15 * time.Minute,
		},
		PasswordRecovery: PasswordRecoveryConfig{
			Enabled:     false,
			TokenTTL:    30 * time.Minute,
			MaxAttempts: 5,
			RedisPrefix: "fpr",
		},
		Notify: NotifyConfig{
			Async:      true,
			QueueSize:  256,
			Workers:    2,
			DropIfFull: true,
			Timeout:    10 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.TokenTTL <= 0 {
		return errors.New("JWT TokenTTL must be > 0")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("hs256 requires PrivateKey")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.JWT.PublicKey) == 0 && len(c.JWT.VerifyKeys) == 0 {
			return errors.New("ed25519 requires PublicKey or VerifyKeys")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if strings.TrimSpace(c.JWT.KeyID) != c.JWT.KeyID {
		return errors.New("JWT KeyID must not contain surrounding whitespace")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}

	// Verification
	if c.Verification.CodeDigits < 4 || c.Verification.CodeDigits > 10 {
		return errors.New("Verification CodeDigits must be between 4 and 10")
	}
	if c.Verification.MaxAttempts < 1 {
		return errors.New("Verification MaxAttempts must be >= 1")
	}

	// Lockout
	if c.Lockout.MaxAttempts < 1 {
		return errors.New("Lockout MaxAttempts must be >= 1")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}

	// Password recovery
	if c.PasswordRecovery.Enabled {
		if c.PasswordRecovery.TokenTTL <= 0 {
			return errors.New("PasswordRecovery TokenTTL must be > 0")
		}
		if c.PasswordRecovery.MaxAttempts < 1 {
			return errors.New("PasswordRecovery MaxAttempts must be >= 1")
		}
		if c.PasswordRecovery.RedisPrefix == "" {
			return errors.New("PasswordRecovery RedisPrefix must not be empty")
		}
	}

	// Notify
	if c.Notify.Async {
		if c.Notify.QueueSize <= 0 {
			return errors.New("Notify QueueSize must be > 0 when Async is true")
		}
		if c.Notify.Workers <= 0 {
			return errors.New("Notify Workers must be > 0 when Async is true")
		}
	}
	if c.Notify.Timeout < 0 {
		return errors.New("Notify Timeout must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
