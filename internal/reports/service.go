// Package reports fetches record snapshots from the store and runs the
// profit-and-loss, salary and debt computations over them.
package reports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/ledgerline/internal/debts"
	"github.com/odyssey-erp/ledgerline/internal/ledger"
	"github.com/odyssey-erp/ledgerline/internal/payroll"
	"github.com/odyssey-erp/ledgerline/internal/pnl"
)

// ErrInvalidFilter indicates a filter that cannot be evaluated.
var ErrInvalidFilter = errors.New("reports: invalid filter")

// PLFilter scopes the profit-and-loss report to a company and month range.
type PLFilter struct {
	CompanyID int64
	From      time.Time
	To        time.Time
}

// SalaryFilter scopes salary reconciliation.
type SalaryFilter struct {
	CompanyID int64
	AsOf      time.Time
}

// DebtFilter scopes the debts and receivables report.
type DebtFilter struct {
	CompanyID int64
	AsOf      time.Time
	Side      debts.Side
}

// Service coordinates store fetches, computation and the cache layer.
type Service struct {
	store  RecordStore
	cache  *Cache
	logger *slog.Logger
	skips  SkipRecorder
	builds singleflight.Group
	now    func() time.Time
}

// NewService wires a RecordStore with a Cache helper. cache may be nil.
func NewService(store RecordStore, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		cache:  cache,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithSkipRecorder attaches a diagnostics sink for skipped records.
func (s *Service) WithSkipRecorder(rec SkipRecorder) *Service {
	s.skips = rec
	return s
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) *Service {
	if fn != nil {
		s.now = fn
	}
	return s
}

// Cache exposes the cache helper.
func (s *Service) Cache() *Cache {
	return s.cache
}

// ProfitAndLoss classifies the ledger for the month range and aggregates it.
func (s *Service) ProfitAndLoss(ctx context.Context, filter PLFilter) (pnl.Report, error) {
	if filter.CompanyID <= 0 {
		return pnl.Report{}, fmt.Errorf("%w: company id required", ErrInvalidFilter)
	}
	from := monthStart(filter.From)
	to := monthStart(filter.To)
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return pnl.Report{}, fmt.Errorf("%w: month range", ErrInvalidFilter)
	}

	build := func(ctx context.Context, store RecordStore) (interface{}, error) {
		entries, rejected, err := store.FetchLedgerEntries(ctx, LedgerQuery{
			CompanyID: filter.CompanyID,
			From:      from,
			To:        monthEnd(to),
			Kinds:     []ledger.Kind{ledger.KindIncome, ledger.KindExpense},
		})
		if err != nil {
			return nil, err
		}
		realized, err := store.FetchProjectAggregates(ctx, filter.CompanyID, ProjectCompleted)
		if err != nil {
			return nil, err
		}
		potential, err := store.FetchProjectAggregates(ctx, filter.CompanyID, ProjectActive)
		if err != nil {
			return nil, err
		}
		report := pnl.FromEntries(entries, pnl.ProjectTotals{
			Realized:  realized.RemainingAmountSum,
			Potential: potential.RemainingAmountSum,
		})
		report.Skipped = append(rejected, report.Skipped...)
		s.recordSkipped(ctx, "pnl", filter.CompanyID, report.Skipped)
		return report, nil
	}

	var report pnl.Report
	if err := s.fetch(ctx, filter.CompanyID, keyPL(filter.CompanyID, from, to), &report, build); err != nil {
		return pnl.Report{}, err
	}
	return report, nil
}

// Salaries reconciles every employee of the company as of the given date.
func (s *Service) Salaries(ctx context.Context, filter SalaryFilter) ([]payroll.Summary, error) {
	if filter.CompanyID <= 0 {
		return nil, fmt.Errorf("%w: company id required", ErrInvalidFilter)
	}
	asOf := filter.AsOf
	if asOf.IsZero() {
		asOf = s.now()
	}
	asOf = dateOnly(asOf)

	build := func(ctx context.Context, store RecordStore) (interface{}, error) {
		employees, err := store.FetchEmployees(ctx, EmployeeQuery{CompanyID: filter.CompanyID})
		if err != nil {
			return nil, err
		}
		entries, rejected, err := store.FetchLedgerEntries(ctx, LedgerQuery{
			CompanyID: filter.CompanyID,
			From:      monthStart(asOf),
			To:        endOfDay(asOf),
			Kinds:     []ledger.Kind{ledger.KindExpense},
			Category:  ledger.CategorySalary,
		})
		if err != nil {
			return nil, err
		}
		s.recordSkipped(ctx, "salaries", filter.CompanyID, rejected)

		summaries := make([]payroll.Summary, 0, len(employees))
		for _, emp := range employees {
			payments := payroll.SalaryPayments(entries, emp.ID, asOf)
			if emp.Category == payroll.CategoryProject {
				labor, err := store.FetchLaborRecords(ctx, filter.CompanyID, emp.ID)
				if err != nil {
					return nil, err
				}
				summaries = append(summaries, payroll.ReconcileProject(emp, labor, payments, asOf))
				continue
			}
			summaries = append(summaries, payroll.Reconcile(emp, payments, asOf))
		}
		return summaries, nil
	}

	var summaries []payroll.Summary
	if err := s.fetch(ctx, filter.CompanyID, keySalaries(filter.CompanyID, asOf), &summaries, build); err != nil {
		return nil, err
	}
	return summaries, nil
}

// Debts nets debt movements per counterparty as of the given date.
func (s *Service) Debts(ctx context.Context, filter DebtFilter) (debts.Report, error) {
	if filter.CompanyID <= 0 {
		return debts.Report{}, fmt.Errorf("%w: company id required", ErrInvalidFilter)
	}
	switch filter.Side {
	case "", debts.SidePayable, debts.SideReceivable:
	default:
		return debts.Report{}, fmt.Errorf("%w: side %q", ErrInvalidFilter, filter.Side)
	}
	asOf := filter.AsOf
	if asOf.IsZero() {
		asOf = s.now()
	}
	asOf = dateOnly(asOf)

	build := func(ctx context.Context, store RecordStore) (interface{}, error) {
		entries, rejected, err := store.FetchLedgerEntries(ctx, LedgerQuery{
			CompanyID: filter.CompanyID,
			To:        endOfDay(asOf),
			Kinds:     []ledger.Kind{ledger.KindDebtTaken, ledger.KindDebtRepaid},
		})
		if err != nil {
			return nil, err
		}
		directory, err := store.FetchCounterpartyDirectory(ctx, filter.CompanyID)
		if err != nil {
			return nil, err
		}
		states := debts.Filter(debts.Net(entries, directory, asOf), filter.Side)
		report := debts.Summarize(states, asOf)
		report.Skipped = rejected
		s.recordSkipped(ctx, "debts", filter.CompanyID, rejected)
		for _, st := range states {
			if st.Anomaly {
				s.logger.WarnContext(ctx, "counterparty repaid more than taken",
					slog.Int64("company_id", filter.CompanyID),
					slog.String("counterparty_type", string(st.Type)),
					slog.Int64("counterparty_id", st.CounterpartyID),
					slog.String("remaining", st.Remaining.String()))
			}
		}
		return report, nil
	}

	var report debts.Report
	if err := s.fetch(ctx, filter.CompanyID, keyDebts(filter.CompanyID, string(filter.Side), asOf), &report, build); err != nil {
		return debts.Report{}, err
	}
	return report, nil
}

// builder computes a report from one view of the store.
type builder func(ctx context.Context, store RecordStore) (interface{}, error)

// built carries a report and whether it may be cached under the requested revision.
type built struct {
	value     interface{}
	cacheable bool
}

// read runs fn against a consistent view of the store when the store supports one.
func (s *Service) read(ctx context.Context, fn func(RecordStore) error) error {
	if snap, ok := s.store.(Snapshotter); ok {
		return snap.Snapshot(ctx, fn)
	}
	return fn(s.store)
}

// fetch resolves a report through the cache. The key carries the company's
// store revision, so any write to the company's records misses it. Stores
// without a revision are never cached. Concurrent builds of one key are collapsed.
func (s *Service) fetch(ctx context.Context, companyID int64, keyBase string, dest interface{}, build builder) error {
	revs, tracked := s.store.(Revisioner)
	cache := s.cache
	if !tracked {
		cache = nil
	}
	var rev int64
	if cache != nil {
		var err error
		if rev, err = revs.Revision(ctx, companyID); err != nil {
			return fmt.Errorf("reports: store revision: %w", err)
		}
	}
	key, err := cache.BuildKey(ctx, keyBase, "rev"+formatInt(rev))
	if err != nil {
		return err
	}
	shared := func(ctx context.Context) (interface{}, bool, error) {
		result := s.builds.DoChan(key, func() (interface{}, error) {
			return s.load(ctx, companyID, rev, build)
		})
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case res := <-result:
			if res.Err != nil {
				return nil, false, res.Err
			}
			out := res.Val.(built)
			return out.value, out.cacheable, nil
		}
	}
	return cache.FetchJSON(ctx, key, dest, shared)
}

// load builds the report inside one read view and re-reads the revision there.
// A report whose view has moved past want is returned but not cached under want.
func (s *Service) load(ctx context.Context, companyID, want int64, build builder) (built, error) {
	var out built
	err := s.read(ctx, func(store RecordStore) error {
		if revs, ok := store.(Revisioner); ok {
			current, err := revs.Revision(ctx, companyID)
			if err != nil {
				return fmt.Errorf("reports: store revision: %w", err)
			}
			out.cacheable = current == want
		}
		value, err := build(ctx, store)
		out.value = value
		return err
	})
	if err != nil {
		return built{}, err
	}
	return out, nil
}

func (s *Service) recordSkipped(ctx context.Context, report string, companyID int64, skipped []ledger.Skipped) {
	if len(skipped) == 0 {
		return
	}
	s.logger.WarnContext(ctx, "skipped ledger entries",
		slog.String("report", report),
		slog.Int64("company_id", companyID),
		slog.Int("count", len(skipped)))
	if s.skips != nil {
		s.skips.RecordSkipped(report, skipped)
	}
}

func monthStart(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func monthEnd(t time.Time) time.Time {
	return monthStart(t).AddDate(0, 1, 0).Add(-time.Nanosecond)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return dateOnly(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
