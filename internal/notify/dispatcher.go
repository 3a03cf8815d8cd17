package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Kind names the message a Job delivers.
type Kind string

const (
	KindVerificationCode Kind = "verification_code"
	KindPasswordRecovery Kind = "password_recovery"
)

// Sender delivers messages. Implementations may block on network I/O.
type Sender interface {
	SendVerificationCode(ctx context.Context, email, code string) error
	SendPasswordRecovery(ctx context.Context, email, token string) error
}

// Job is one message to deliver. Secret is the code or recovery token and is never logged.
type Job struct {
	Kind   Kind
	Email  string
	Secret string
}

// Config controls dispatch. With Async false, Dispatch delivers on the calling goroutine.
type Config struct {
	Async      bool
	QueueSize  int
	Workers    int
	DropIfFull bool
	Timeout    time.Duration
}

// Dispatcher delivers jobs best-effort. Failures are logged and reported to onResult, never
// returned to the caller of Dispatch.
type Dispatcher struct {
	cfg       Config
	sender    Sender
	logger    *zap.Logger
	onResult  func(Kind, error)
	ch        chan Job
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	failed    atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts cfg.Workers goroutines when cfg.Async is set. A nil sender yields a
// nil Dispatcher, on which Dispatch is a no-op.
func NewDispatcher(cfg Config, sender Sender, logger *zap.Logger, onResult func(Kind, error)) *Dispatcher {
	if sender == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	d := &Dispatcher{
		cfg:      cfg,
		sender:   sender,
		logger:   logger,
		onResult: onResult,
		done:     make(chan struct{}),
	}
	if !cfg.Async {
		return d
	}

	d.ch = make(chan Job, cfg.QueueSize)
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case job := <-d.ch:
			d.deliver(context.Background(), job)
		case <-d.done:
			for {
				select {
				case job := <-d.ch:
					d.deliver(context.Background(), job)
				default:
					return
				}
			}
		}
	}
}

// Dispatch queues or delivers job. It never returns an error.
func (d *Dispatcher) Dispatch(ctx context.Context, job Job) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if !d.cfg.Async {
		// the caller's cancellation must not abort a send that was already decided
		d.deliver(context.WithoutCancel(ctx), job)
		return
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- job:
		case <-d.done:
		default:
			d.dropped.Add(1)
			d.logger.Warn("notification dropped", zap.String("kind", string(job.Kind)), zap.String("email", job.Email))
			d.report(job.Kind, ErrDropped)
		}
		return
	}

	select {
	case d.ch <- job:
	case <-ctx.Done():
		d.dropped.Add(1)
		d.report(job.Kind, ErrDropped)
	case <-d.done:
	}
}

func (d *Dispatcher) deliver(ctx context.Context, job Job) {
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	var err error
	switch job.Kind {
	case KindVerificationCode:
		err = d.sender.SendVerificationCode(ctx, job.Email, job.Secret)
	case KindPasswordRecovery:
		err = d.sender.SendPasswordRecovery(ctx, job.Email, job.Secret)
	default:
		err = ErrUnknownKind
	}
	if err != nil {
		d.failed.Add(1)
		d.logger.Error("notification failed",
			zap.String("kind", string(job.Kind)),
			zap.String("email", job.Email),
			zap.Error(err),
		)
	}
	d.report(job.Kind, err)
}

func (d *Dispatcher) report(kind Kind, err error) {
	if d.onResult != nil {
		d.onResult(kind, err)
	}
}

// Close stops accepting jobs, drains the queue and waits for workers.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *Dispatcher) Failed() uint64 {
	if d == nil {
		return 0
	}
	return d.failed.Load()
}
