package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSink writes messages to the application log. It backs the "log" channel
// in development and for owners without a real contact yet.
type LogSink struct {
	log *zap.SugaredLogger
}

// NewLogSink creates a LogSink writing to log.
func NewLogSink(log *zap.SugaredLogger) *LogSink {
	return &LogSink{log: log}
}

var _ Sink = (*LogSink)(nil)

func (s *LogSink) Send(ctx context.Context, address, subject, body string) error {
	s.log.Infow("Notification", "to", address, "subject", subject, "body", body)
	return nil
}
