package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/billforge/billforge-backend/pkg/logger"
)

// Message is one outbound notification. Delivery is best-effort everywhere
// it is used; callers must never let a send failure abort a transaction.
type Message struct {
	TenantID uuid.UUID
	Subject  string
	Body     string
}

// Sender dispatches tenant-facing notifications.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes notifications to the service log instead of a mail
// provider. It stands in until an SMTP or API-backed sender is wired up.
type LogSender struct {
	log *logger.Logger
}

// NewLogSender returns a log-backed sender.
func NewLogSender(log *logger.Logger) (*LogSender, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &LogSender{log: log}, nil
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	ctx = s.log.WithFields(ctx, map[string]any{
		"tenant_id": msg.TenantID.String(),
		"subject":   msg.Subject,
	})
	s.log.Info(ctx, "notification dispatched")
	return nil
}
