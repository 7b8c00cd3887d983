package quota

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/billforge/billforge-backend/pkg/db/models"
	dbtypes "github.com/billforge/billforge-backend/pkg/db/types"
	"github.com/billforge/billforge-backend/pkg/enums"
	pkgerrors "github.com/billforge/billforge-backend/pkg/errors"
)

type stubUsageRepo struct {
	records    map[string]*models.UsageRecord
	findErr    error
	createErr  error
	incErr     error
	limitCalls int
}

func recordKey(tenantID uuid.UUID, metric enums.Metric, periodStart time.Time) string {
	return tenantID.String() + "|" + string(metric) + "|" + periodStart.UTC().Format(time.RFC3339)
}

func (s *stubUsageRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubUsageRepo) FindForPeriod(ctx context.Context, tenantID uuid.UUID, metric enums.Metric, periodStart time.Time) (*models.UsageRecord, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.records[recordKey(tenantID, metric, periodStart)], nil
}

func (s *stubUsageRepo) ListForPeriod(ctx context.Context, tenantID uuid.UUID, periodStart time.Time) ([]models.UsageRecord, error) {
	var out []models.UsageRecord
	for _, record := range s.records {
		if record.TenantID == tenantID && record.PeriodStart.Equal(periodStart) {
			out = append(out, *record)
		}
	}
	return out, nil
}

func (s *stubUsageRepo) Create(ctx context.Context, record *models.UsageRecord) error {
	if s.createErr != nil {
		return s.createErr
	}
	record.ID = uuid.New()
	if s.records == nil {
		s.records = map[string]*models.UsageRecord{}
	}
	s.records[recordKey(record.TenantID, record.Metric, record.PeriodStart)] = record
	return nil
}

func (s *stubUsageRepo) UpdateLimit(ctx context.Context, recordID uuid.UUID, limit int64) error {
	s.limitCalls++
	for _, record := range s.records {
		if record.ID == recordID {
			record.LimitValue = limit
		}
	}
	return nil
}

func (s *stubUsageRepo) IncrementWithCeiling(ctx context.Context, recordID uuid.UUID, delta int64) (bool, error) {
	if s.incErr != nil {
		return false, s.incErr
	}
	for _, record := range s.records {
		if record.ID != recordID {
			continue
		}
		if record.LimitValue != dbtypes.UnlimitedLimit && record.CurrentValue+delta > record.LimitValue {
			return false, nil
		}
		record.CurrentValue += delta
		return true, nil
	}
	return false, nil
}

func (s *stubUsageRepo) IncrementUnconditional(ctx context.Context, recordID uuid.UUID, delta int64) error {
	if s.incErr != nil {
		return s.incErr
	}
	for _, record := range s.records {
		if record.ID == recordID {
			record.CurrentValue += delta
		}
	}
	return nil
}

type passthroughTxRunner struct{}

func (passthroughTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newQuotaServiceForTests(t *testing.T, repo *stubUsageRepo, at time.Time) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:              repo,
		TransactionRunner: passthroughTxRunner{},
		Now:               func() time.Time { return at },
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func testTenant() *models.Tenant {
	return &models.Tenant{ID: uuid.New(), Name: "Corner Shop", Timezone: "Asia/Kolkata"}
}

func planWithLimit(metric enums.Metric, limit int64) *models.Plan {
	return &models.Plan{
		ID:          "starter",
		DisplayName: "Starter",
		Limits:      dbtypes.LimitMap{string(metric): limit},
	}
}

func TestPeriodBoundsUsesTenantTimezone(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	// 2026-02-28 20:30 UTC is already 2026-03-01 02:00 in Kolkata.
	at := time.Date(2026, time.February, 28, 20, 30, 0, 0, time.UTC)
	start, end := PeriodBounds(at, kolkata)

	wantStart := time.Date(2026, time.March, 1, 0, 0, 0, 0, kolkata).UTC()
	if !start.Equal(wantStart) {
		t.Fatalf("period start = %s, want %s", start, wantStart)
	}
	if !end.Equal(wantStart.AddDate(0, 1, 0)) {
		t.Fatalf("period end = %s", end)
	}
}

func TestCheckAndIncrementUnlimited(t *testing.T) {
	tenant := testTenant()
	repo := &stubUsageRepo{}
	svc := newQuotaServiceForTests(t, repo, time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC))
	plan := planWithLimit(enums.MetricProducts, dbtypes.UnlimitedLimit)

	for i := 0; i < 50; i++ {
		if err := svc.CheckAndIncrement(context.Background(), tenant, plan, enums.MetricProducts, 1); err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
	}
}

func TestCheckAndIncrementStopsAtLimit(t *testing.T) {
	tenant := testTenant()
	repo := &stubUsageRepo{}
	svc := newQuotaServiceForTests(t, repo, time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC))
	plan := planWithLimit(enums.MetricProducts, 10)

	for i := 0; i < 10; i++ {
		if err := svc.CheckAndIncrement(context.Background(), tenant, plan, enums.MetricProducts, 1); err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
	}

	err := svc.CheckAndIncrement(context.Background(), tenant, plan, enums.MetricProducts, 1)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeQuotaExceeded {
		t.Fatalf("expected quota exceeded on 11th create, got %v", err)
	}
	if !strings.Contains(appErr.Message(), "Starter") || !strings.Contains(appErr.Message(), "10") {
		t.Fatalf("message should name plan and limit, got %q", appErr.Message())
	}
}

func TestQuotaExceededCarriesUsageAndLimit(t *testing.T) {
	tenant := testTenant()
	at := time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)
	plan := planWithLimit(enums.MetricBills, 100)
	periodStart, periodEnd := PeriodBounds(at, tenant.Location())

	repo := &stubUsageRepo{records: map[string]*models.UsageRecord{}}
	repo.records[recordKey(tenant.ID, enums.MetricBills, periodStart)] = &models.UsageRecord{
		ID:           uuid.New(),
		TenantID:     tenant.ID,
		Metric:       enums.MetricBills,
		PeriodStart:  periodStart,
		PeriodEnd:    periodEnd,
		CurrentValue: 100,
		LimitValue:   100,
	}
	svc := newQuotaServiceForTests(t, repo, at)

	// Both rejection paths must tell the client where the counter stands.
	for _, err := range []error{
		svc.Check(context.Background(), tenant, plan, enums.MetricBills),
		svc.CheckAndIncrement(context.Background(), tenant, plan, enums.MetricBills, 1),
	} {
		appErr := pkgerrors.As(err)
		if appErr == nil || appErr.Code() != pkgerrors.CodeQuotaExceeded {
			t.Fatalf("expected quota exceeded, got %v", err)
		}
		details, ok := appErr.Details().(map[string]any)
		if !ok {
			t.Fatalf("details = %#v", appErr.Details())
		}
		if details["usage"] != int64(100) {
			t.Fatalf("usage detail = %v, want 100", details["usage"])
		}
		if details["limit"] != int64(100) {
			t.Fatalf("limit detail = %v, want 100", details["limit"])
		}
	}
}

func TestCheckAndIncrementRefreshesLimitAfterPlanChange(t *testing.T) {
	tenant := testTenant()
	repo := &stubUsageRepo{}
	at := time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)
	svc := newQuotaServiceForTests(t, repo, at)

	free := planWithLimit(enums.MetricProducts, 10)
	if err := svc.CheckAndIncrement(context.Background(), tenant, free, enums.MetricProducts, 1); err != nil {
		t.Fatalf("seed increment: %v", err)
	}

	pro := planWithLimit(enums.MetricProducts, 200)
	pro.ID = "pro"
	pro.DisplayName = "Pro"
	if err := svc.CheckAndIncrement(context.Background(), tenant, pro, enums.MetricProducts, 1); err != nil {
		t.Fatalf("post-upgrade increment: %v", err)
	}
	if repo.limitCalls != 1 {
		t.Fatalf("expected one limit refresh, got %d", repo.limitCalls)
	}
}

func TestCheckAtCapRejects(t *testing.T) {
	tenant := testTenant()
	at := time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)
	plan := planWithLimit(enums.MetricBills, 100)
	periodStart, periodEnd := PeriodBounds(at, tenant.Location())

	repo := &stubUsageRepo{records: map[string]*models.UsageRecord{}}
	repo.records[recordKey(tenant.ID, enums.MetricBills, periodStart)] = &models.UsageRecord{
		ID:           uuid.New(),
		TenantID:     tenant.ID,
		Metric:       enums.MetricBills,
		PeriodStart:  periodStart,
		PeriodEnd:    periodEnd,
		CurrentValue: 100,
		LimitValue:   100,
	}
	svc := newQuotaServiceForTests(t, repo, at)

	err := svc.Check(context.Background(), tenant, plan, enums.MetricBills)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeQuotaExceeded {
		t.Fatalf("expected quota exceeded, got %v", err)
	}
}

func TestCheckAndIncrementRejectsNonPositiveDelta(t *testing.T) {
	svc := newQuotaServiceForTests(t, &stubUsageRepo{}, time.Now())

	err := svc.CheckAndIncrement(context.Background(), testTenant(), planWithLimit(enums.MetricProducts, 5), enums.MetricProducts, 0)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUsageFillsMissingMetrics(t *testing.T) {
	tenant := testTenant()
	at := time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)
	repo := &stubUsageRepo{}
	svc := newQuotaServiceForTests(t, repo, at)
	plan := planWithLimit(enums.MetricProducts, 10)

	if err := svc.CheckAndIncrement(context.Background(), tenant, plan, enums.MetricProducts, 3); err != nil {
		t.Fatalf("seed increment: %v", err)
	}

	records, err := svc.Usage(context.Background(), tenant, plan)
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}
	if len(records) != len(enums.Metrics()) {
		t.Fatalf("expected %d records, got %d", len(enums.Metrics()), len(records))
	}
	byMetric := map[enums.Metric]models.UsageRecord{}
	for _, record := range records {
		byMetric[record.Metric] = record
	}
	if byMetric[enums.MetricProducts].CurrentValue != 3 {
		t.Fatalf("products counter = %d", byMetric[enums.MetricProducts].CurrentValue)
	}
	if byMetric[enums.MetricBills].CurrentValue != 0 {
		t.Fatalf("bills counter should be zero")
	}
	if byMetric[enums.MetricBills].LimitValue != dbtypes.UnlimitedLimit {
		t.Fatalf("absent metric should report unlimited, got %d", byMetric[enums.MetricBills].LimitValue)
	}
}

func TestIncrementSkipsCeiling(t *testing.T) {
	tenant := testTenant()
	at := time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)
	repo := &stubUsageRepo{}
	svc := newQuotaServiceForTests(t, repo, at)
	plan := planWithLimit(enums.MetricProducts, 2)

	// Check-then-Increment callers can land past the cap when they race;
	// the write itself must not re-check.
	for i := 0; i < 3; i++ {
		if err := svc.Increment(context.Background(), tenant, plan, enums.MetricProducts, 1); err != nil {
			t.Fatalf("Increment %d: %v", i, err)
		}
	}

	periodStart, _ := PeriodBounds(at, tenant.Location())
	record, err := repo.FindForPeriod(context.Background(), tenant.ID, enums.MetricProducts, periodStart)
	if err != nil {
		t.Fatalf("FindForPeriod: %v", err)
	}
	if record == nil || record.CurrentValue != 3 {
		t.Fatalf("expected counter 3 past the cap, got %+v", record)
	}

	if err := svc.Check(context.Background(), tenant, plan, enums.MetricProducts); err == nil {
		t.Fatal("Check should reject once over the limit")
	}
}
