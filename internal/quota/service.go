package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/billforge/billforge-backend/pkg/db/models"
	dbtypes "github.com/billforge/billforge-backend/pkg/db/types"
	"github.com/billforge/billforge-backend/pkg/enums"
	pkgerrors "github.com/billforge/billforge-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service enforces per-tenant, per-metric monthly quotas.
type Service interface {
	Check(ctx context.Context, tenant *models.Tenant, plan *models.Plan, metric enums.Metric) error
	Increment(ctx context.Context, tenant *models.Tenant, plan *models.Plan, metric enums.Metric, delta int64) error
	CheckAndIncrement(ctx context.Context, tenant *models.Tenant, plan *models.Plan, metric enums.Metric, delta int64) error
	Usage(ctx context.Context, tenant *models.Tenant, plan *models.Plan) ([]models.UsageRecord, error)
}

// ServiceParams groups dependencies for the quota service.
type ServiceParams struct {
	Repo              Repository
	TransactionRunner txRunner
	Now               func() time.Time
}

type service struct {
	repo     Repository
	txRunner txRunner
	now      func() time.Time
}

// NewService builds a quota service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("usage repo required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: params.Repo, txRunner: params.TransactionRunner, now: now}, nil
}

// PeriodBounds returns the calendar-month window containing the given
// instant, evaluated in the provided timezone. Both bounds are stored in UTC
// so a (tenant, metric, period_start) lookup is exact.
func PeriodBounds(at time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := at.In(loc)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0)
	return start.UTC(), end.UTC()
}

func (s *service) Check(ctx context.Context, tenant *models.Tenant, plan *models.Plan, metric enums.Metric) error {
	if err := validateQuotaInput(tenant, plan, metric); err != nil {
		return err
	}
	limit := plan.LimitFor(metric)
	if limit == dbtypes.UnlimitedLimit {
		return nil
	}
	periodStart, _ := PeriodBounds(s.now(), tenant.Location())
	record, err := s.repo.FindForPeriod(ctx, tenant.ID, metric, periodStart)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load usage record")
	}
	current := int64(0)
	if record != nil {
		current = record.CurrentValue
	}
	if current >= limit {
		return quotaExceeded(plan, metric, limit, current)
	}
	return nil
}

// Increment records delta units unconditionally, without re-checking the
// ceiling. It exists for callers that already gated the write with Check;
// that pair leaves a window where two concurrent writers both pass the check,
// so new call sites should prefer CheckAndIncrement.
func (s *service) Increment(ctx context.Context, tenant *models.Tenant, plan *models.Plan, metric enums.Metric, delta int64) error {
	if err := validateQuotaInput(tenant, plan, metric); err != nil {
		return err
	}
	if delta <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "delta must be positive")
	}

	limit := plan.LimitFor(metric)
	periodStart, periodEnd := PeriodBounds(s.now(), tenant.Location())

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		record, err := s.ensureRecord(ctx, repo, tenant.ID, metric, periodStart, periodEnd, limit)
		if err != nil {
			return err
		}
		if err := repo.IncrementUnconditional(ctx, record.ID, delta); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "increment usage")
		}
		return nil
	})
}

// CheckAndIncrement reserves delta units of a metric for the current period.
// The reservation is a single conditional UPDATE, so concurrent callers
// racing toward the cap serialize at the database and at most limit units
// are ever granted per period.
func (s *service) CheckAndIncrement(ctx context.Context, tenant *models.Tenant, plan *models.Plan, metric enums.Metric, delta int64) error {
	if err := validateQuotaInput(tenant, plan, metric); err != nil {
		return err
	}
	if delta <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "delta must be positive")
	}

	limit := plan.LimitFor(metric)
	periodStart, periodEnd := PeriodBounds(s.now(), tenant.Location())

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		record, err := s.ensureRecord(ctx, repo, tenant.ID, metric, periodStart, periodEnd, limit)
		if err != nil {
			return err
		}
		applied, err := repo.IncrementWithCeiling(ctx, record.ID, delta)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "increment usage")
		}
		if !applied {
			// Re-read so the rejection reports where the counter actually
			// stands, not where it stood before the losing race.
			usage := record.CurrentValue
			if fresh, err := repo.FindForPeriod(ctx, tenant.ID, metric, periodStart); err == nil && fresh != nil {
				usage = fresh.CurrentValue
			}
			return quotaExceeded(plan, metric, limit, usage)
		}
		return nil
	})
}

func (s *service) Usage(ctx context.Context, tenant *models.Tenant, plan *models.Plan) ([]models.UsageRecord, error) {
	if tenant == nil || plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant and plan are required")
	}
	periodStart, periodEnd := PeriodBounds(s.now(), tenant.Location())
	records, err := s.repo.ListForPeriod(ctx, tenant.ID, periodStart)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list usage records")
	}

	// Metrics with no activity yet still show up with a zero counter.
	seen := make(map[enums.Metric]bool, len(records))
	for i := range records {
		seen[records[i].Metric] = true
		records[i].LimitValue = plan.LimitFor(records[i].Metric)
	}
	for _, metric := range enums.Metrics() {
		if seen[metric] {
			continue
		}
		records = append(records, models.UsageRecord{
			TenantID:    tenant.ID,
			Metric:      metric,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
			LimitValue:  plan.LimitFor(metric),
		})
	}
	return records, nil
}

// ensureRecord finds or creates the month's counter and refreshes its cached
// limit when the tenant's plan changed mid-period.
func (s *service) ensureRecord(ctx context.Context, repo Repository, tenantID uuid.UUID, metric enums.Metric, periodStart, periodEnd time.Time, limit int64) (*models.UsageRecord, error) {
	record, err := repo.FindForPeriod(ctx, tenantID, metric, periodStart)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load usage record")
	}
	if record == nil {
		record = &models.UsageRecord{
			TenantID:    tenantID,
			Metric:      metric,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
			LimitValue:  limit,
		}
		if err := repo.Create(ctx, record); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create usage record")
		}
		return record, nil
	}
	if record.LimitValue != limit {
		if err := repo.UpdateLimit(ctx, record.ID, limit); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "refresh usage limit")
		}
		record.LimitValue = limit
	}
	return record, nil
}

func validateQuotaInput(tenant *models.Tenant, plan *models.Plan, metric enums.Metric) error {
	if tenant == nil || tenant.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "tenant is required")
	}
	if plan == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "plan is required")
	}
	if !metric.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown metric")
	}
	return nil
}

func quotaExceeded(plan *models.Plan, metric enums.Metric, limit, usage int64) error {
	message := fmt.Sprintf("%s limit reached on the %s plan (%d per month)", metric, plan.DisplayName, limit)
	return pkgerrors.New(pkgerrors.CodeQuotaExceeded, message).WithDetails(map[string]any{
		"metric": metric,
		"plan":   plan.ID,
		"limit":  limit,
		"usage":  usage,
	})
}
