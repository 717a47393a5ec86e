package email

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const sendTimeout = 5 * time.Second

// SendAsync delivers msg in the background. The send outlives ctx's
// cancellation but keeps its values, so request-scoped loggers still apply.
func SendAsync(ctx context.Context, sender Sender, recipient string, msg Message, logger *zerolog.Logger) {
	if sender == nil {
		return
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" || msg.Subject == "" || msg.Body == "" {
		return
	}

	go func() {
		sendCtx, cancel := detachedContext(ctx, sendTimeout)
		defer cancel()
		if err := sender.Send(sendCtx, recipient, msg.Subject, msg.Body); err != nil {
			if logger != nil {
				logger.Error().Err(err).Str("subject", msg.Subject).Msg("Failed to send email")
			}
			return
		}
		if logger != nil {
			logger.Debug().Str("subject", msg.Subject).Msg("Email sent")
		}
	}()
}

func detachedContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(context.WithoutCancel(parent), timeout)
}
