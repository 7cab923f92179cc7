package auth

import (
	"context"
	"log/slog"
)

// SMSSender delivers verification messages. The real gateway lives behind
// this boundary; the server ships with the log-backed sender below.
type SMSSender interface {
	Send(ctx context.Context, phone, message string) error
}

// LogSender writes messages to the log instead of sending them.
// Development and test use only: the code ends up in the log output.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, phone, message string) error {
	slog.Info("SMS (not sent)", "phone", phone, "message", message)
	return nil
}
