package products

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/billforge/billforge-backend/internal/subscriptions"
	"github.com/billforge/billforge-backend/pkg/db/models"
	"github.com/billforge/billforge-backend/pkg/enums"
	pkgerrors "github.com/billforge/billforge-backend/pkg/errors"
	"github.com/billforge/billforge-backend/pkg/pagination"
)

type stubProductRepo struct {
	byID    map[uuid.UUID]*models.Product
	created []*models.Product
	deleted []uuid.UUID
}

func (s *stubProductRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubProductRepo) Create(ctx context.Context, product *models.Product) error {
	product.ID = uuid.New()
	if s.byID == nil {
		s.byID = map[uuid.UUID]*models.Product{}
	}
	s.byID[product.ID] = product
	s.created = append(s.created, product)
	return nil
}

func (s *stubProductRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Product, error) {
	product := s.byID[id]
	if product == nil || product.TenantID != tenantID {
		return nil, nil
	}
	return product, nil
}

func (s *stubProductRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Product, error) {
	var out []models.Product
	for _, product := range s.byID {
		if product.TenantID != tenantID {
			continue
		}
		if cursor != nil && !product.CreatedAt.Before(cursor.CreatedAt) {
			continue
		}
		out = append(out, *product)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *stubProductRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	delete(s.byID, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubProductRepo) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	rows, _ := s.ListByTenant(ctx, tenantID, nil, 0)
	return int64(len(rows)), nil
}

func (s *stubProductRepo) ListNewestBeyond(ctx context.Context, tenantID uuid.UUID, keep int64) ([]models.Product, error) {
	return nil, nil
}

func (s *stubProductRepo) DeleteByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) (int64, error) {
	for _, id := range ids {
		delete(s.byID, id)
	}
	return int64(len(ids)), nil
}

type stubQuota struct {
	incErr   error
	incCalls int
}

func (s *stubQuota) Check(ctx context.Context, tenant *models.Tenant, plan *models.Plan, metric enums.Metric) error {
	return nil
}

func (s *stubQuota) Increment(ctx context.Context, tenant *models.Tenant, plan *models.Plan, metric enums.Metric, delta int64) error {
	return nil
}

func (s *stubQuota) CheckAndIncrement(ctx context.Context, tenant *models.Tenant, plan *models.Plan, metric enums.Metric, delta int64) error {
	s.incCalls++
	return s.incErr
}

func (s *stubQuota) Usage(ctx context.Context, tenant *models.Tenant, plan *models.Plan) ([]models.UsageRecord, error) {
	return nil, nil
}

type stubSubService struct {
	sub *subscriptions.Subscription
}

func (s *stubSubService) GetOrProvision(ctx context.Context, tenantID uuid.UUID) (*subscriptions.Subscription, error) {
	return s.sub, nil
}

func (s *stubSubService) Cancel(ctx context.Context, tenantID uuid.UUID) (*subscriptions.Subscription, error) {
	return s.sub, nil
}

func newProductServiceForTests(t *testing.T, repo *stubProductRepo, q *stubQuota) Service {
	t.Helper()
	if repo == nil {
		repo = &stubProductRepo{}
	}
	if q == nil {
		q = &stubQuota{}
	}
	subs := &stubSubService{sub: &subscriptions.Subscription{
		Row:   &models.Subscription{PlanID: "free"},
		Plan:  &models.Plan{ID: "free", DisplayName: "Free", IsFree: true},
		State: subscriptions.StateFreeActive,
	}}
	svc, err := NewService(ServiceParams{Repo: repo, Quota: q, Subscriptions: subs})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestCreateProductConsumesQuota(t *testing.T) {
	repo := &stubProductRepo{}
	q := &stubQuota{}
	svc := newProductServiceForTests(t, repo, q)
	tenant := &models.Tenant{ID: uuid.New()}

	product, err := svc.Create(context.Background(), tenant, CreateProductInput{
		Name:  "Masala Chai 250g",
		Price: decimal.NewFromInt(120),
		Stock: 40,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if q.incCalls != 1 {
		t.Fatalf("quota increments = %d", q.incCalls)
	}
	if product.ID == uuid.Nil {
		t.Fatal("product not persisted")
	}
}

func TestCreateProductBlockedByQuota(t *testing.T) {
	repo := &stubProductRepo{}
	q := &stubQuota{incErr: pkgerrors.New(pkgerrors.CodeQuotaExceeded, "products limit reached on the Free plan (10 per month)")}
	svc := newProductServiceForTests(t, repo, q)
	tenant := &models.Tenant{ID: uuid.New()}

	_, err := svc.Create(context.Background(), tenant, CreateProductInput{
		Name:  "Masala Chai 250g",
		Price: decimal.NewFromInt(120),
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeQuotaExceeded {
		t.Fatalf("expected quota exceeded, got %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatal("blocked create must not persist a row")
	}
}

func TestCreateProductValidation(t *testing.T) {
	svc := newProductServiceForTests(t, nil, nil)
	tenant := &models.Tenant{ID: uuid.New()}

	_, err := svc.Create(context.Background(), tenant, CreateProductInput{Name: "   "})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListPagesNewestFirst(t *testing.T) {
	repo := &stubProductRepo{byID: map[uuid.UUID]*models.Product{}}
	tenantID := uuid.New()
	base := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		product := &models.Product{
			TenantID: tenantID,
			Name:     "Chai",
		}
		product.ID = uuid.New()
		product.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		repo.byID[product.ID] = product
	}
	svc := newProductServiceForTests(t, repo, nil)

	first, err := svc.List(context.Background(), tenantID, "", 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(first.Products) != 2 {
		t.Fatalf("first page = %d rows", len(first.Products))
	}
	if first.NextCursor == "" {
		t.Fatal("expected a next cursor with rows remaining")
	}
	if !first.Products[0].CreatedAt.After(first.Products[1].CreatedAt) {
		t.Fatal("page not ordered newest first")
	}

	second, err := svc.List(context.Background(), tenantID, first.NextCursor, 2)
	if err != nil {
		t.Fatalf("List second page: %v", err)
	}
	if len(second.Products) != 1 {
		t.Fatalf("second page = %d rows", len(second.Products))
	}
	if second.NextCursor != "" {
		t.Fatalf("last page should have no cursor, got %q", second.NextCursor)
	}
}

func TestListRejectsGarbageCursor(t *testing.T) {
	svc := newProductServiceForTests(t, nil, nil)

	_, err := svc.List(context.Background(), uuid.New(), "not-a-cursor!", 10)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteProductScopedToTenant(t *testing.T) {
	repo := &stubProductRepo{byID: map[uuid.UUID]*models.Product{}}
	owner := uuid.New()
	product := &models.Product{ID: uuid.New(), TenantID: owner, Name: "Chai"}
	repo.byID[product.ID] = product
	svc := newProductServiceForTests(t, repo, nil)

	err := svc.Delete(context.Background(), uuid.New(), product.ID)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("foreign tenant delete should be not found, got %v", err)
	}

	if err := svc.Delete(context.Background(), owner, product.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if repo.byID[product.ID] != nil {
		t.Fatal("product still present")
	}
}
