package delivery

import (
	"context"
	"log/slog"

	goSession "github.com/MrEthical07/goSession"
)

// Log writes reset notices to a logger. The raw token is only logged when
// RevealToken is set.
type Log struct {
	Logger      *slog.Logger
	RevealToken bool
}

func (l Log) DeliverResetToken(ctx context.Context, n goSession.ResetNotice) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []slog.Attr{
		slog.String("user_id", n.UserID),
		slog.String("email", n.Email),
		slog.Time("expires_at", n.ExpiresAt),
	}
	if l.RevealToken {
		attrs = append(attrs, slog.String("token", n.Token))
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "password reset issued", attrs...)
	return nil
}
