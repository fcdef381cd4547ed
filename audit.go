package conduitauth

import (
	"io"
	"log/slog"

	"github.com/conduit-realworld/conduitauth/internal/audit"
)

// AuditEvent is one audit record emitted by the Engine.
type AuditEvent = audit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink discards events.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers events in a channel; useful in tests.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes newline-delimited JSON events.
type JSONWriterSink = audit.JSONWriterSink

// SlogSink logs events through log/slog.
type SlogSink = audit.SlogSink

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return audit.NewSlogSink(logger)
}
