package fleetAuth

import (
	"io"

	"github.com/MrEthical07/fleetAuth/internal/audit"
	"go.uber.org/zap"
)

// AuditEvent is the audit record of one lifecycle operation. It never carries passwords,
// hashes, codes or tokens.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink discards events.
type NoOpSink = audit.NoOpSink

// ChannelSink forwards events into a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// ZapSink logs events through a zap logger.
type ZapSink = audit.ZapSink

// NewZapSink returns a sink logging each event at info level under its event type.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return audit.NewZapSink(logger)
}

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}
