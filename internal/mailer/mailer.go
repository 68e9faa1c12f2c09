// Package mailer defines the email-delivery collaborator the spec scopes out
// ("out of scope: email delivery" per SPEC_FULL.md §1) but still references
// from the invitation flow. Sender is the boundary; LogSender is the default,
// dependency-free adapter used until a real SMTP client is wired in.
package mailer

import (
	"context"

	"github.com/rs/zerolog"
)

// Sender delivers a single email. Implementations are swapped in behind this
// interface; nothing outside this package depends on a concrete mail
// transport.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender logs the email instead of sending it. It satisfies Sender so the
// invitation flow in internal/usermgmt works end to end without an SMTP
// server configured.
type LogSender struct {
	log zerolog.Logger
}

// NewLogSender creates a Sender that logs instead of delivering.
func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{log: logger.With().Str("component", "mailer").Logger()}
}

func (s *LogSender) Send(_ context.Context, to, subject, body string) error {
	s.log.Info().Str("to", to).Str("subject", subject).Str("body", body).Msg("email")
	return nil
}
