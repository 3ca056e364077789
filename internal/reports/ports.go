package reports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgerline/internal/debts"
	"github.com/odyssey-erp/ledgerline/internal/ledger"
	"github.com/odyssey-erp/ledgerline/internal/payroll"
)

// ProjectStatus filters the project aggregate.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "Active"
	ProjectCompleted ProjectStatus = "Completed"
)

// LedgerQuery scopes a ledger fetch. From and To are inclusive; zero values
// leave the bound open.
type LedgerQuery struct {
	CompanyID  int64
	From       time.Time
	To         time.Time
	Kinds      []ledger.Kind
	Category   string
	EmployeeID int64
}

// EmployeeQuery scopes an employee fetch.
type EmployeeQuery struct {
	CompanyID int64
	Category  payroll.Category
}

// ProjectAggregate carries summed project figures.
type ProjectAggregate struct {
	RemainingAmountSum decimal.Decimal
}

// RecordStore is the read side of the relational store consumed by the reports.
// FetchLedgerEntries returns normalized entries plus the rows rejected at the
// store boundary.
type RecordStore interface {
	FetchLedgerEntries(ctx context.Context, q LedgerQuery) ([]ledger.Entry, []ledger.Skipped, error)
	FetchEmployees(ctx context.Context, q EmployeeQuery) ([]payroll.Employee, error)
	FetchLaborRecords(ctx context.Context, companyID, employeeID int64) ([]payroll.LaborRecord, error)
	FetchProjectAggregates(ctx context.Context, companyID int64, status ProjectStatus) (ProjectAggregate, error)
	FetchCounterpartyDirectory(ctx context.Context, companyID int64) ([]debts.Counterparty, error)
}

// Snapshotter is implemented by stores that can serve several fetches from
// one consistent read view.
type Snapshotter interface {
	Snapshot(ctx context.Context, fn func(RecordStore) error) error
}

// Revisioner is implemented by stores that keep a per-company change counter.
// Any write to a company's records must raise its revision.
type Revisioner interface {
	Revision(ctx context.Context, companyID int64) (int64, error)
}

// SkipRecorder receives skipped-record diagnostics per report.
type SkipRecorder interface {
	RecordSkipped(report string, skipped []ledger.Skipped)
}
