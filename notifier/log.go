// Package notifier contains fleetAuth.Notifier implementations.
package notifier

import (
	"context"

	"go.uber.org/zap"

	"github.com/MrEthical07/fleetAuth"
)

var _ fleetAuth.Notifier = (*LogNotifier)(nil)

// LogNotifier writes verification codes and recovery tokens to a zap logger instead of
// sending mail. It exists for development deployments; the logged values are secrets.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier returns a notifier logging at info level under "notifier".
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger.Named("notifier")}
}

func (n *LogNotifier) SendVerificationCode(_ context.Context, email, code string) error {
	n.logger.Info("verification code",
		zap.String("email", email),
		zap.String("code", code),
	)
	return nil
}

func (n *LogNotifier) SendPasswordRecovery(_ context.Context, email, token string) error {
	n.logger.Info("password recovery",
		zap.String("email", email),
		zap.String("token", token),
	)
	return nil
}
