package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mrz1836/postmark"

	"github.com/billforge/billforge-backend/pkg/config"
	"github.com/billforge/billforge-backend/pkg/db/models"
	pkgerrors "github.com/billforge/billforge-backend/pkg/errors"
	"github.com/billforge/billforge-backend/pkg/logger"
)

// OwnerLookup resolves the recipient for a tenant notification. A nil
// admin means the tenant has no owner login and the message is dropped.
type OwnerLookup interface {
	FindOwnerByTenant(ctx context.Context, tenantID uuid.UUID) (*models.Admin, error)
}

// PostmarkSender delivers notifications through Postmark's transactional
// API, addressed to the tenant's owner login.
type PostmarkSender struct {
	client *postmark.Client
	from   string
	owners OwnerLookup
	logg   *logger.Logger
}

// PostmarkSenderParams carries the dependencies for NewPostmarkSender.
type PostmarkSenderParams struct {
	Mail   config.MailConfig
	Owners OwnerLookup
	Logger *logger.Logger
}

// NewPostmarkSender returns a Postmark-backed sender.
func NewPostmarkSender(params PostmarkSenderParams) (*PostmarkSender, error) {
	if params.Mail.PostmarkServerToken == "" {
		return nil, fmt.Errorf("postmark server token required")
	}
	if params.Mail.FromEmail == "" {
		return nil, fmt.Errorf("from address required")
	}
	if params.Owners == nil {
		return nil, fmt.Errorf("owner lookup required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &PostmarkSender{
		client: postmark.NewClient(params.Mail.PostmarkServerToken, params.Mail.PostmarkAccountToken),
		from:   params.Mail.FromEmail,
		owners: params.Owners,
		logg:   params.Logger,
	}, nil
}

func (s *PostmarkSender) Send(ctx context.Context, msg Message) error {
	owner, err := s.owners.FindOwnerByTenant(ctx, msg.TenantID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve notification recipient")
	}
	if owner == nil {
		s.logg.Warn(s.logg.WithField(ctx, "tenant_id", msg.TenantID.String()),
			"tenant has no owner login, dropping notification")
		return nil
	}

	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:     s.from,
		To:       owner.Email,
		Subject:  msg.Subject,
		TextBody: msg.Body,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send notification email")
	}
	if resp.ErrorCode > 0 {
		return pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("postmark rejected message: %d %s", resp.ErrorCode, resp.Message))
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"tenant_id": msg.TenantID.String(),
		"subject":   msg.Subject,
	}), "notification email sent")
	return nil
}
