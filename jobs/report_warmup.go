package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ledgerline/internal/debts"
	jobmetrics "github.com/odyssey-erp/ledgerline/internal/jobs"
	"github.com/odyssey-erp/ledgerline/internal/payroll"
	"github.com/odyssey-erp/ledgerline/internal/pnl"
	"github.com/odyssey-erp/ledgerline/internal/reports"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const (
	warmupWindowMonths = 6
	// activityLookback bounds which companies count as active.
	activityLookback = 90 * 24 * time.Hour
)

// ReportBuilder is the report surface warmed by the job.
type ReportBuilder interface {
	ProfitAndLoss(ctx context.Context, filter reports.PLFilter) (pnl.Report, error)
	Salaries(ctx context.Context, filter reports.SalaryFilter) ([]payroll.Summary, error)
	Debts(ctx context.Context, filter reports.DebtFilter) (debts.Report, error)
}

// CompanyLister discovers companies with recent ledger activity.
type CompanyLister interface {
	ActiveCompanies(ctx context.Context, since time.Time) ([]int64, error)
}

// ReportWarmupJob pre-populates report caches for active companies.
type ReportWarmupJob struct {
	Reports   ReportBuilder
	Companies CompanyLister
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewReportWarmupJob wires dependencies for the warmup handler.
func NewReportWarmupJob(builder ReportBuilder, companies CompanyLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportWarmupJob {
	return &ReportWarmupJob{
		Reports:   builder,
		Companies: companies,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes report warmup tasks.
func (j *ReportWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("reports warmup: handler not configured")
	}
	tracker := j.metrics().Track(TaskReportsWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	var payload ReportsWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		resultErr = fmt.Errorf("reports warmup: decode payload: %v: %w", err, asynq.SkipRetry)
		return resultErr
	}
	day := j.now()
	if payload.Day != "" {
		parsed, err := time.Parse(dayLayout, payload.Day)
		if err != nil {
			resultErr = fmt.Errorf("reports warmup: day %q: %w", payload.Day, asynq.SkipRetry)
			return resultErr
		}
		day = parsed
	}
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	logger := j.logger().With(slog.String("day", day.Format(dayLayout)))
	logger.Info("starting reports warmup")

	companies := payload.CompanyIDs
	if len(companies) == 0 {
		if j.Companies == nil {
			resultErr = errors.New("reports warmup: company lister not configured")
			return resultErr
		}
		found, err := j.Companies.ActiveCompanies(ctx, day.Add(-activityLookback))
		if err != nil {
			resultErr = err
			logger.Error("load warmup companies", slog.Any("error", err))
			return resultErr
		}
		companies = found
	}
	if len(companies) == 0 {
		logger.Info("no companies discovered for warmup")
		return resultErr
	}

	started := time.Now()
	warmed := 0
	for _, companyID := range companies {
		if err := j.warmCompany(ctx, companyID, day); err != nil {
			resultErr = err
			logger.Error("warm company", slog.Int64("company_id", companyID), slog.Any("error", err))
			return resultErr
		}
		warmed++
	}

	logger.Info("completed reports warmup", slog.Int("companies", warmed), slog.Duration("duration", time.Since(started)))
	return resultErr
}

func (j *ReportWarmupJob) warmCompany(ctx context.Context, companyID int64, day time.Time) error {
	if j.Reports == nil {
		return nil
	}
	companyCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	month := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	if _, err := j.Reports.ProfitAndLoss(companyCtx, reports.PLFilter{
		CompanyID: companyID,
		From:      month.AddDate(0, -warmupWindowMonths+1, 0),
		To:        month,
	}); err != nil {
		return err
	}
	j.metrics().AddWarmed("pnl")

	if _, err := j.Reports.Salaries(companyCtx, reports.SalaryFilter{CompanyID: companyID, AsOf: day}); err != nil {
		return err
	}
	j.metrics().AddWarmed("salaries")

	report, err := j.Reports.Debts(companyCtx, reports.DebtFilter{CompanyID: companyID, AsOf: day})
	if err != nil {
		return err
	}
	j.metrics().AddWarmed("debts")
	j.metrics().AddDebtAnomalies(companyID, report.Payable.Anomalies+report.Receivable.Anomalies)
	return nil
}

func (j *ReportWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportsWarmup))
}

func (j *ReportWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ReportWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
