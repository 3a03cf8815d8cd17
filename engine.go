package fleetAuth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/fleetAuth/internal/audit"
	"github.com/MrEthical07/fleetAuth/internal/notify"
	"github.com/MrEthical07/fleetAuth/internal/stores"
	"github.com/MrEthical07/fleetAuth/jwt"
	"github.com/MrEthical07/fleetAuth/password"
	"go.uber.org/zap"
)

// Engine is the account lifecycle state machine. Build one with [Builder]; the zero value
// is not usable.
type Engine struct {
	config     Config
	store      AccountStore
	registrar  TenantRegistrar
	companies  CompanyProvisioner
	codes      CodeGenerator
	hasher     PasswordHasher
	jwtManager *jwt.Manager
	notifier   *notify.Dispatcher
	recovery   *stores.RecoveryStore
	audit      *audit.Dispatcher
	metrics    *Metrics
	logger     *zap.Logger
	clock      Clock
}

// errAbortUpdate aborts an UpdateTenant mutator without writing; the outcome is carried
// separately by the caller.
var errAbortUpdate = errors.New("update aborted")

// hashUpgrader is implemented by hashers that can flag stale encodings.
type hashUpgrader interface {
	NeedsUpgrade(encodedHash string) (bool, error)
}

// Close flushes and stops the notification and audit dispatchers. Queued notifications
// are delivered before Close returns.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.notifier != nil {
		e.notifier.Close()
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped by a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// NotificationsDropped returns the number of notifications dropped by a full queue.
func (e *Engine) NotificationsDropped() uint64 {
	if e == nil || e.notifier == nil {
		return 0
	}
	return e.notifier.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// TokenTTL returns the lifetime of tokens issued by Login and LoginMachine.
func (e *Engine) TokenTTL() time.Duration {
	if e == nil || e.jwtManager == nil {
		return 0
	}
	return e.jwtManager.TTL()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) now() time.Time {
	if e.clock != nil {
		return e.clock()
	}
	return time.Now()
}

func (e *Engine) ready() error {
	if e == nil || e.store == nil || e.hasher == nil || e.jwtManager == nil || e.codes == nil {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) notify(ctx context.Context, kind notify.Kind, email, secret string) {
	if e.notifier == nil {
		e.logger.Debug("no notifier configured", zap.String("kind", string(kind)), zap.String("email", email))
		return
	}
	e.notifier.Dispatch(ctx, notify.Job{Kind: kind, Email: email, Secret: secret})
}

func (e *Engine) onNotifyResult(_ notify.Kind, err error) {
	switch {
	case err == nil:
	case errors.Is(err, notify.ErrDropped):
		e.metricInc(MetricNotifyDropped)
	default:
		e.metricInc(MetricNotifyFailure)
	}
}

func (e *Engine) checkPassword(plain string) error {
	if plain == "" || len(plain) < e.config.Password.MinLength {
		return ErrPasswordPolicy
	}
	return nil
}

// verifyPassword treats input the hasher refuses for length as a mismatch, so it still
// counts toward lockout.
func (e *Engine) verifyPassword(plain, encoded string) (bool, error) {
	ok, err := e.hasher.Verify(plain, encoded)
	if errors.Is(err, password.ErrPasswordTooLong) {
		return false, nil
	}
	return ok, err
}

func normalizeIdentifier(value string) string {
	return strings.TrimSpace(value)
}
