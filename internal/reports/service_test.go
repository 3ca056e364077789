package reports

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgerline/internal/debts"
	"github.com/odyssey-erp/ledgerline/internal/ledger"
	"github.com/odyssey-erp/ledgerline/internal/payroll"
	_ "github.com/odyssey-erp/ledgerline/testing"
)

type stubStore struct {
	mu          sync.Mutex
	entries     []ledger.Entry
	rejected    []ledger.Skipped
	employees   []payroll.Employee
	labor       map[int64][]payroll.LaborRecord
	projects    map[ProjectStatus]decimal.Decimal
	directory   []debts.Counterparty
	ledgerErr   error
	ledgerCalls int
	queries     []LedgerQuery
	revision    int64
}

// addEntry records a write the way the store trigger does: data and revision move together.
func (s *stubStore) addEntry(e ledger.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	s.revision++
}

func (s *stubStore) Revision(ctx context.Context, companyID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision, nil
}

func (s *stubStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledgerCalls
}

func (s *stubStore) FetchLedgerEntries(ctx context.Context, q LedgerQuery) ([]ledger.Entry, []ledger.Skipped, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledgerCalls++
	s.queries = append(s.queries, q)
	if s.ledgerErr != nil {
		return nil, nil, s.ledgerErr
	}
	var out []ledger.Entry
	for _, e := range s.entries {
		if !q.From.IsZero() && e.Date.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && e.Date.After(q.To) {
			continue
		}
		if len(q.Kinds) > 0 && !containsKind(q.Kinds, e.Kind) {
			continue
		}
		out = append(out, e)
	}
	return out, s.rejected, nil
}

func containsKind(kinds []ledger.Kind, k ledger.Kind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}

func (s *stubStore) FetchEmployees(ctx context.Context, q EmployeeQuery) ([]payroll.Employee, error) {
	return s.employees, nil
}

func (s *stubStore) FetchLaborRecords(ctx context.Context, companyID, employeeID int64) ([]payroll.LaborRecord, error) {
	return s.labor[employeeID], nil
}

func (s *stubStore) FetchProjectAggregates(ctx context.Context, companyID int64, status ProjectStatus) (ProjectAggregate, error) {
	return ProjectAggregate{RemainingAmountSum: s.projects[status]}, nil
}

func (s *stubStore) FetchCounterpartyDirectory(ctx context.Context, companyID int64) ([]debts.Counterparty, error) {
	return s.directory, nil
}

type recordingSkips struct {
	reports map[string]int
}

func (r *recordingSkips) RecordSkipped(report string, skipped []ledger.Skipped) {
	if r.reports == nil {
		r.reports = make(map[string]int)
	}
	r.reports[report] += len(skipped)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestService(t *testing.T, store RecordStore) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(store, NewCache(client, time.Minute), nil)
}

func sampleStore() *stubStore {
	jan := func(d int) time.Time { return time.Date(2025, time.January, d, 0, 0, 0, 0, time.UTC) }
	return &stubStore{
		entries: []ledger.Entry{
			{ID: 1, Kind: ledger.KindIncome, Amount: dec("1000"), Date: jan(3), Category: "Project Payment"},
			{ID: 2, Kind: ledger.KindExpense, Amount: dec("200"), Date: jan(4), Category: "Material"},
			{ID: 3, Kind: ledger.KindExpense, Amount: dec("100"), Date: jan(5), Category: "OfficeRent"},
			{ID: 4, Kind: ledger.KindExpense, Amount: dec("1000"), Date: jan(10), Category: "Salary",
				Counterparty: &ledger.CounterpartyRef{Type: ledger.CounterpartyEmployee, ID: 11}},
			{ID: 5, Kind: ledger.KindDebtTaken, Amount: dec("500"), Date: jan(2), Category: "Loan",
				Counterparty: &ledger.CounterpartyRef{Type: ledger.CounterpartyVendor, ID: 21}},
			{ID: 6, Kind: ledger.KindDebtRepaid, Amount: dec("200"), Date: jan(9), Category: "Loan",
				Counterparty: &ledger.CounterpartyRef{Type: ledger.CounterpartyVendor, ID: 21}},
			{ID: 7, Kind: ledger.KindDebtTaken, Amount: dec("300"), Date: jan(2), Category: "Loan",
				Counterparty: &ledger.CounterpartyRef{Type: ledger.CounterpartyCustomer, ID: 31}},
		},
		employees: []payroll.Employee{
			{ID: 11, Name: "Ayu", MonthlySalary: decimal.NewNullDecimal(dec("3100")), StartDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), Category: payroll.CategoryCompany},
			{ID: 12, Name: "Bayu", Category: payroll.CategoryProject},
		},
		labor: map[int64][]payroll.LaborRecord{
			12: {{ID: 1, EmployeeID: 12, AgreedWage: dec("400")}},
		},
		projects: map[ProjectStatus]decimal.Decimal{
			ProjectCompleted: dec("2500"),
			ProjectActive:    dec("900"),
		},
		directory: []debts.Counterparty{
			{ID: 21, Type: ledger.CounterpartyVendor, Name: "Sinar Baja"},
			{ID: 31, Type: ledger.CounterpartyCustomer, Name: "Griya Asri"},
		},
	}
}

func TestProfitAndLossCachesUntilStoreChanges(t *testing.T) {
	store := sampleStore()
	svc := newTestService(t, store)
	ctx := context.Background()
	jan := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	filter := PLFilter{CompanyID: 1, From: jan, To: jan}

	report, err := svc.ProfitAndLoss(ctx, filter)
	require.NoError(t, err)
	require.True(t, report.ProjectIncome.Equal(dec("1000")))
	require.True(t, report.DirectProjectCosts.Equal(dec("200")))
	require.True(t, report.OperatingExpenses.Equal(dec("1100")), "salary is an operating expense")
	require.True(t, report.GrossProfit.Equal(dec("800")))
	require.True(t, report.NetProfit.Equal(dec("-300")))
	require.True(t, report.RealizedProjectProfit.Equal(dec("2500")))
	require.True(t, report.PotentialProjectProfit.Equal(dec("900")))
	require.Equal(t, 1, store.calls())

	q := store.queries[0]
	require.Equal(t, jan, q.From)
	require.Equal(t, time.Date(2025, 1, 31, 23, 59, 59, 999999999, time.UTC), q.To)

	_, err = svc.ProfitAndLoss(ctx, filter)
	require.NoError(t, err)
	require.Equal(t, 1, store.calls(), "unchanged store is served from the cache")

	store.addEntry(ledger.Entry{ID: 8, Kind: ledger.KindIncome, Amount: dec("5000"),
		Date: time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC), Category: "Project Payment"})
	report, err = svc.ProfitAndLoss(ctx, filter)
	require.NoError(t, err)
	require.True(t, report.ProjectIncome.Equal(dec("6000")), "income %s", report.ProjectIncome)
	require.Equal(t, 2, store.calls())

	_, err = svc.Cache().Bump(ctx)
	require.NoError(t, err)
	_, err = svc.ProfitAndLoss(ctx, filter)
	require.NoError(t, err)
	require.Equal(t, 3, store.calls(), "bump should force a rebuild")
}

func TestSalariesAndDebtsSeeStoreChanges(t *testing.T) {
	store := sampleStore()
	svc := newTestService(t, store)
	ctx := context.Background()
	asOf := time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC)

	summaries, err := svc.Salaries(ctx, SalaryFilter{CompanyID: 1, AsOf: asOf})
	require.NoError(t, err)
	require.True(t, summaries[0].PaidThisMonth.Equal(dec("1000")))
	report, err := svc.Debts(ctx, DebtFilter{CompanyID: 1, AsOf: asOf})
	require.NoError(t, err)
	require.True(t, report.Payables[0].Remaining.Equal(dec("300")))

	store.addEntry(ledger.Entry{ID: 9, Kind: ledger.KindExpense, Amount: dec("500"), Date: asOf, Category: "Salary",
		Counterparty: &ledger.CounterpartyRef{Type: ledger.CounterpartyEmployee, ID: 11}})
	store.addEntry(ledger.Entry{ID: 10, Kind: ledger.KindDebtRepaid, Amount: dec("300"), Date: asOf,
		Counterparty: &ledger.CounterpartyRef{Type: ledger.CounterpartyVendor, ID: 21}})

	summaries, err = svc.Salaries(ctx, SalaryFilter{CompanyID: 1, AsOf: asOf})
	require.NoError(t, err)
	require.True(t, summaries[0].PaidThisMonth.Equal(dec("1500")), "paid %s", summaries[0].PaidThisMonth)
	report, err = svc.Debts(ctx, DebtFilter{CompanyID: 1, AsOf: asOf})
	require.NoError(t, err)
	require.True(t, report.Payables[0].Remaining.IsZero())
	require.Equal(t, debts.StatusPaid, report.Payables[0].Status)
}

// untrackedStore hides the revision counter of the wrapped store.
type untrackedStore struct {
	RecordStore
}

func TestStoreWithoutRevisionIsNeverCached(t *testing.T) {
	store := sampleStore()
	svc := newTestService(t, untrackedStore{RecordStore: store})
	jan := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := svc.ProfitAndLoss(context.Background(), PLFilter{CompanyID: 1, From: jan, To: jan})
		require.NoError(t, err)
	}
	require.Equal(t, 3, store.calls())
}

// churningStore reports a new revision on every read, as a store under constant writes would.
type churningStore struct {
	*stubStore
	reads int64
}

func (c *churningStore) Revision(ctx context.Context, companyID int64) (int64, error) {
	c.reads++
	return c.reads, nil
}

func (c *churningStore) Snapshot(ctx context.Context, fn func(RecordStore) error) error {
	return fn(c)
}

func TestReportBuiltPastRequestedRevisionIsNotCached(t *testing.T) {
	store := &churningStore{stubStore: sampleStore()}
	svc := newTestService(t, store)
	jan := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		_, err := svc.ProfitAndLoss(context.Background(), PLFilter{CompanyID: 1, From: jan, To: jan})
		require.NoError(t, err)
	}
	require.Equal(t, 2, store.calls())
}

func TestProfitAndLossValidation(t *testing.T) {
	svc := NewService(sampleStore(), nil, nil)
	ctx := context.Background()

	_, err := svc.ProfitAndLoss(ctx, PLFilter{From: time.Now(), To: time.Now()})
	require.True(t, errors.Is(err, ErrInvalidFilter))

	_, err = svc.ProfitAndLoss(ctx, PLFilter{CompanyID: 1, From: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), To: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)})
	require.True(t, errors.Is(err, ErrInvalidFilter))
}

func TestProfitAndLossReportsSkipped(t *testing.T) {
	store := sampleStore()
	store.rejected = []ledger.Skipped{{EntryID: 99, Reason: "ledger: amount sign conflicts with kind"}}
	skips := &recordingSkips{}
	svc := NewService(store, nil, nil).WithSkipRecorder(skips)

	report, err := svc.ProfitAndLoss(context.Background(), PLFilter{
		CompanyID: 1,
		From:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		To:        time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, report.Skipped, 1)
	require.Equal(t, 1, skips.reports["pnl"])
}

func TestProfitAndLossStoreError(t *testing.T) {
	store := sampleStore()
	store.ledgerErr = errors.New("connection refused")
	svc := newTestService(t, store)

	_, err := svc.ProfitAndLoss(context.Background(), PLFilter{
		CompanyID: 1,
		From:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		To:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
}

func TestSalaries(t *testing.T) {
	svc := newTestService(t, sampleStore())
	asOf := time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)

	summaries, err := svc.Salaries(context.Background(), SalaryFilter{CompanyID: 1, AsOf: asOf})
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	company := summaries[0]
	require.Equal(t, int64(11), company.EmployeeID)
	require.Equal(t, 15, company.DaysWorked)
	require.True(t, company.EarnedThisMonth.Equal(dec("1500")), "earned %s", company.EarnedThisMonth)
	require.True(t, company.PaidThisMonth.Equal(dec("1000")))
	require.True(t, company.Remaining.Equal(dec("2100")))
	require.True(t, company.Overpaid.IsZero())

	project := summaries[1]
	require.Equal(t, payroll.CategoryProject, project.Category)
	require.True(t, project.EarnedThisMonth.Equal(dec("400")))
}

func TestDebts(t *testing.T) {
	svc := NewService(sampleStore(), nil, nil)
	asOf := time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC)

	report, err := svc.Debts(context.Background(), DebtFilter{CompanyID: 1, AsOf: asOf})
	require.NoError(t, err)
	require.Len(t, report.Payables, 1)
	require.Len(t, report.Receivables, 1)
	require.Equal(t, "Sinar Baja", report.Payables[0].Name)
	require.True(t, report.Payables[0].Remaining.Equal(dec("300")))
	require.Equal(t, debts.StatusActive, report.Payables[0].Status)
	require.Equal(t, debts.StatusUpcoming, report.Receivables[0].Status)

	payables, err := svc.Debts(context.Background(), DebtFilter{CompanyID: 1, AsOf: asOf, Side: debts.SidePayable})
	require.NoError(t, err)
	require.Len(t, payables.Payables, 1)
	require.Empty(t, payables.Receivables)

	_, err = svc.Debts(context.Background(), DebtFilter{CompanyID: 1, Side: "sideways"})
	require.True(t, errors.Is(err, ErrInvalidFilter))
}

type snapshotStore struct {
	*stubStore
	snapshots int
}

func (s *snapshotStore) Snapshot(ctx context.Context, fn func(RecordStore) error) error {
	s.snapshots++
	return fn(s.stubStore)
}

func TestReportsReadThroughSnapshot(t *testing.T) {
	store := &snapshotStore{stubStore: sampleStore()}
	svc := NewService(store, nil, nil)
	asOf := time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC)

	_, err := svc.ProfitAndLoss(context.Background(), PLFilter{CompanyID: 1, From: asOf, To: asOf})
	require.NoError(t, err)
	_, err = svc.Salaries(context.Background(), SalaryFilter{CompanyID: 1, AsOf: asOf})
	require.NoError(t, err)
	_, err = svc.Debts(context.Background(), DebtFilter{CompanyID: 1, AsOf: asOf})
	require.NoError(t, err)

	require.Equal(t, 3, store.snapshots)
}
