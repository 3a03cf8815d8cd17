package fleetAuth

import (
	"errors"

	"github.com/MrEthical07/fleetAuth/internal"
	"github.com/MrEthical07/fleetAuth/internal/audit"
	"github.com/MrEthical07/fleetAuth/internal/notify"
	"github.com/MrEthical07/fleetAuth/internal/stores"
	"github.com/MrEthical07/fleetAuth/jwt"
	"github.com/MrEthical07/fleetAuth/password"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. Each Builder produces at most one Engine.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store     AccountStore
	companies CompanyProvisioner
	notifier  Notifier
	codes     CodeGenerator
	hasher    PasswordHasher
	auditSink AuditSink
	logger    *zap.Logger
	clock     Clock

	built bool
}

// New returns a Builder populated with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithAccountStore sets the record store. Required.
func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.store = store
	return b
}

// WithCompanyProvisioner sets the collaborator used to create or join companies during
// registration. Without one, registrations that name a company fail with
// ErrCompanyProvisioningFailed unless the store implements [TenantRegistrar].
func (b *Builder) WithCompanyProvisioner(p CompanyProvisioner) *Builder {
	b.companies = p
	return b
}

// WithNotifier sets the code and recovery token deliverer.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithCodeGenerator overrides the crypto/rand verification code generator.
func (b *Builder) WithCodeGenerator(g CodeGenerator) *Builder {
	b.codes = g
	return b
}

// WithPasswordHasher overrides the argon2id hasher built from Config.Password.
func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

// WithRedis sets the client backing password recovery challenges.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink sets the audit destination. Audit must also be enabled in Config.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now for lock and expiry decisions.
func (b *Builder) WithClock(clock Clock) *Builder {
	b.clock = clock
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the Authenticate latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.store == nil {
		return nil, errors.New("account store required")
	}
	if cfg.PasswordRecovery.Enabled && b.redis == nil {
		return nil, errors.New("PasswordRecovery requires redis client")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	engine := &Engine{
		config:    cloneConfig(cfg),
		store:     b.store,
		companies: b.companies,
		logger:    logger.Named("fleetauth"),
		clock:     b.clock,
	}
	if registrar, ok := b.store.(TenantRegistrar); ok {
		engine.registrar = registrar
	}

	engine.codes = b.codes
	if engine.codes == nil {
		digits := cfg.Verification.CodeDigits
		engine.codes = CodeGeneratorFunc(func() (string, error) {
			return internal.NewVerificationCode(digits)
		})
	}

	engine.hasher = b.hasher
	if engine.hasher == nil {
		primary, err := password.NewArgon2(password.Config{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		})
		if err != nil {
			return nil, err
		}
		var legacy *password.Bcrypt
		if cfg.Password.AcceptBcrypt {
			legacy, err = password.NewBcrypt(0)
			if err != nil {
				return nil, err
			}
		}
		engine.hasher = password.NewHasher(primary, legacy)
	}

	jm, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.JWT.TokenTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		KeyID:         cfg.JWT.KeyID,
		VerifyKeys:    cloneConfig(cfg).JWT.VerifyKeys,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		Now:           b.clock,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	if cfg.PasswordRecovery.Enabled {
		engine.recovery = stores.NewRecoveryStore(b.redis, cfg.PasswordRecovery.RedisPrefix, b.clock)
	}

	engine.metrics = NewMetrics(cfg.Metrics)
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	if b.notifier != nil {
		engine.notifier = notify.NewDispatcher(notify.Config{
			Async:      cfg.Notify.Async,
			QueueSize:  cfg.Notify.QueueSize,
			Workers:    cfg.Notify.Workers,
			DropIfFull: cfg.Notify.DropIfFull,
			Timeout:    cfg.Notify.Timeout,
		}, b.notifier, engine.logger.Named("notify"), engine.onNotifyResult)
	}

	b.built = true

	return engine, nil
}
