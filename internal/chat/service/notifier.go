package service

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/whisper/pkg/slogx"
)

// Notifier delivers login codes to users out of band. Production wires an
// email sender; development and tests log the code instead.
type Notifier interface {
	SendLoginCode(ctx context.Context, email, code string) error
}

// LogNotifier writes the code to the log. Useful for local development
// where no mail relay is available.
type LogNotifier struct{}

func (LogNotifier) SendLoginCode(ctx context.Context, email, code string) error {
	slogx.FromContext(ctx).Info("login code issued",
		slog.String("email", email),
		slog.String("code", code),
	)
	return nil
}
