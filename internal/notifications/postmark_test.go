package notifications

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"

	"github.com/billforge/billforge-backend/pkg/config"
	"github.com/billforge/billforge-backend/pkg/db/models"
	"github.com/billforge/billforge-backend/pkg/logger"
)

type stubOwnerLookup struct {
	owners map[uuid.UUID]*models.Admin
	calls  int
}

func (s *stubOwnerLookup) FindOwnerByTenant(ctx context.Context, tenantID uuid.UUID) (*models.Admin, error) {
	s.calls++
	return s.owners[tenantID], nil
}

func testMailConfig() config.MailConfig {
	return config.MailConfig{
		PostmarkServerToken:  "server-token",
		PostmarkAccountToken: "account-token",
		FromEmail:            "billing@billforge.app",
	}
}

func TestNewPostmarkSenderValidatesParams(t *testing.T) {
	owners := &stubOwnerLookup{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	cases := []struct {
		name   string
		params PostmarkSenderParams
	}{
		{
			name: "missing server token",
			params: PostmarkSenderParams{
				Mail:   config.MailConfig{FromEmail: "billing@billforge.app"},
				Owners: owners,
				Logger: logg,
			},
		},
		{
			name: "missing from address",
			params: PostmarkSenderParams{
				Mail:   config.MailConfig{PostmarkServerToken: "server-token"},
				Owners: owners,
				Logger: logg,
			},
		},
		{
			name:   "missing owner lookup",
			params: PostmarkSenderParams{Mail: testMailConfig(), Logger: logg},
		},
		{
			name:   "missing logger",
			params: PostmarkSenderParams{Mail: testMailConfig(), Owners: owners},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewPostmarkSender(tc.params); err == nil {
				t.Fatal("expected constructor error")
			}
		})
	}

	if _, err := NewPostmarkSender(PostmarkSenderParams{
		Mail:   testMailConfig(),
		Owners: owners,
		Logger: logg,
	}); err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}
}

func TestPostmarkSenderDropsMessageWithoutOwner(t *testing.T) {
	owners := &stubOwnerLookup{owners: map[uuid.UUID]*models.Admin{}}
	sender, err := NewPostmarkSender(PostmarkSenderParams{
		Mail:   testMailConfig(),
		Owners: owners,
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("constructor: %v", err)
	}

	err = sender.Send(context.Background(), Message{
		TenantID: uuid.New(),
		Subject:  "Plan upgraded",
		Body:     "Your plan is now active.",
	})
	if err != nil {
		t.Fatalf("expected ownerless send to be a no-op, got %v", err)
	}
	if owners.calls != 1 {
		t.Fatalf("owner lookup calls = %d, want 1", owners.calls)
	}
}
