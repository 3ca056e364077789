// Package store implements the report record store on PostgreSQL.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgerline/internal/debts"
	"github.com/odyssey-erp/ledgerline/internal/ledger"
	"github.com/odyssey-erp/ledgerline/internal/payroll"
	"github.com/odyssey-erp/ledgerline/internal/platform/db"
	"github.com/odyssey-erp/ledgerline/internal/reports"
)

type querier interface {
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Store reads ledger snapshots from PostgreSQL.
type Store struct {
	db   querier
	pool *pgxpool.Pool
}

var (
	_ reports.RecordStore = (*Store)(nil)
	_ reports.Snapshotter = (*Store)(nil)
	_ reports.Revisioner  = (*Store)(nil)
)

// New wraps a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{db: pool, pool: pool}
}

// Snapshot runs fn against a store bound to a single read-only transaction.
func (s *Store) Snapshot(ctx context.Context, fn func(reports.RecordStore) error) error {
	if s.pool == nil {
		return fn(s)
	}
	return db.WithSnapshot(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&Store{db: tx})
	})
}

const ledgerColumns = `id, company_id, amount, kind, entry_date, category, sub_category,
       counterparty_type, counterparty_id, project_id, due_date`

// FetchLedgerEntries reads entries and normalises them. Rows that fail
// normalisation come back as skipped instead of failing the fetch.
func (s *Store) FetchLedgerEntries(ctx context.Context, q reports.LedgerQuery) ([]ledger.Entry, []ledger.Skipped, error) {
	query, args := buildLedgerQuery(q)
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("store: query ledger entries: %w", err)
	}
	defer rows.Close()

	var (
		raw      []ledger.Entry
		rejected []ledger.Skipped
	)
	for rows.Next() {
		var (
			id, companyID   int64
			amount          pgtype.Numeric
			kind            string
			entryDate       pgtype.Date
			category, sub   string
			cpType          pgtype.Text
			cpID, projectID pgtype.Int8
			dueDate         pgtype.Date
		)
		if err := rows.Scan(&id, &companyID, &amount, &kind, &entryDate, &category, &sub, &cpType, &cpID, &projectID, &dueDate); err != nil {
			return nil, nil, fmt.Errorf("store: scan ledger entry: %w", err)
		}
		value, err := numericToDecimal(amount)
		if err != nil {
			rejected = append(rejected, ledger.Skipped{EntryID: id, Reason: err.Error()})
			continue
		}
		entry := ledger.Entry{
			ID:          id,
			CompanyID:   companyID,
			Amount:      value,
			Kind:        ledger.Kind(strings.ToUpper(strings.TrimSpace(kind))),
			Date:        dateValue(entryDate),
			Category:    category,
			SubCategory: sub,
		}
		if cpType.Valid && cpID.Valid {
			entry.Counterparty = &ledger.CounterpartyRef{Type: ledger.CounterpartyType(cpType.String), ID: cpID.Int64}
		}
		if projectID.Valid {
			pid := projectID.Int64
			entry.ProjectID = &pid
		}
		if dueDate.Valid {
			due := dateValue(dueDate)
			entry.DueDate = &due
		}
		raw = append(raw, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("store: iterate ledger entries: %w", err)
	}

	entries, skipped := ledger.NormalizeAll(raw)
	return entries, append(rejected, skipped...), nil
}

// FetchEmployees lists the company's employees, optionally by category.
func (s *Store) FetchEmployees(ctx context.Context, q reports.EmployeeQuery) ([]payroll.Employee, error) {
	query := `SELECT id, company_id, name, monthly_salary, start_date, category
FROM employees
WHERE company_id = $1`
	args := []interface{}{q.CompanyID}
	if q.Category != "" {
		query += " AND category = $2"
		args = append(args, string(q.Category))
	}
	query += " ORDER BY name, id"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query employees: %w", err)
	}
	defer rows.Close()

	var out []payroll.Employee
	for rows.Next() {
		var (
			emp      payroll.Employee
			salary   pgtype.Numeric
			start    pgtype.Date
			category string
		)
		if err := rows.Scan(&emp.ID, &emp.CompanyID, &emp.Name, &salary, &start, &category); err != nil {
			return nil, fmt.Errorf("store: scan employee: %w", err)
		}
		if salary.Valid {
			value, err := numericToDecimal(salary)
			if err != nil {
				return nil, fmt.Errorf("store: employee %d salary: %w", emp.ID, err)
			}
			emp.MonthlySalary = decimal.NewNullDecimal(value)
		}
		emp.StartDate = dateValue(start)
		emp.Category = payroll.Category(category)
		out = append(out, emp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate employees: %w", err)
	}
	return out, nil
}

// FetchLaborRecords lists the labor days booked for an employee.
func (s *Store) FetchLaborRecords(ctx context.Context, companyID, employeeID int64) ([]payroll.LaborRecord, error) {
	rows, err := s.db.Query(ctx, `SELECT lr.id, lr.employee_id, lr.project_id, lr.work_date, lr.agreed_wage
FROM labor_records lr
JOIN employees e ON e.id = lr.employee_id
WHERE e.company_id = $1 AND lr.employee_id = $2
ORDER BY lr.work_date, lr.id`, companyID, employeeID)
	if err != nil {
		return nil, fmt.Errorf("store: query labor records: %w", err)
	}
	defer rows.Close()

	var out []payroll.LaborRecord
	for rows.Next() {
		var (
			rec  payroll.LaborRecord
			day  pgtype.Date
			wage pgtype.Numeric
		)
		if err := rows.Scan(&rec.ID, &rec.EmployeeID, &rec.ProjectID, &day, &wage); err != nil {
			return nil, fmt.Errorf("store: scan labor record: %w", err)
		}
		value, err := numericToDecimal(wage)
		if err != nil {
			return nil, fmt.Errorf("store: labor record %d wage: %w", rec.ID, err)
		}
		rec.Date = dateValue(day)
		rec.AgreedWage = value
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate labor records: %w", err)
	}
	return out, nil
}

// FetchProjectAggregates sums remaining amounts for projects in the given status.
func (s *Store) FetchProjectAggregates(ctx context.Context, companyID int64, status reports.ProjectStatus) (reports.ProjectAggregate, error) {
	var sum pgtype.Numeric
	err := s.db.QueryRow(ctx, `SELECT COALESCE(SUM(remaining_amount), 0)
FROM projects
WHERE company_id = $1 AND status = $2`, companyID, string(status)).Scan(&sum)
	if err != nil {
		return reports.ProjectAggregate{}, fmt.Errorf("store: sum projects: %w", err)
	}
	value, err := numericToDecimal(sum)
	if err != nil {
		return reports.ProjectAggregate{}, fmt.Errorf("store: sum projects: %w", err)
	}
	return reports.ProjectAggregate{RemainingAmountSum: value}, nil
}

// FetchCounterpartyDirectory resolves names for vendors, customers and employees.
func (s *Store) FetchCounterpartyDirectory(ctx context.Context, companyID int64) ([]debts.Counterparty, error) {
	rows, err := s.db.Query(ctx, `SELECT 'vendor', id, name FROM vendors WHERE company_id = $1
UNION ALL
SELECT 'customer', id, name FROM customers WHERE company_id = $1
UNION ALL
SELECT 'employee', id, name FROM employees WHERE company_id = $1`, companyID)
	if err != nil {
		return nil, fmt.Errorf("store: query counterparties: %w", err)
	}
	defer rows.Close()

	var out []debts.Counterparty
	for rows.Next() {
		var (
			cp     debts.Counterparty
			cpType string
		)
		if err := rows.Scan(&cpType, &cp.ID, &cp.Name); err != nil {
			return nil, fmt.Errorf("store: scan counterparty: %w", err)
		}
		cp.Type = ledger.CounterpartyType(cpType)
		out = append(out, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate counterparties: %w", err)
	}
	return out, nil
}

// revisionQuery reads the counter maintained by the bump_ledger_revision trigger.
// A company that was never written to has revision 0.
const revisionQuery = `SELECT COALESCE((SELECT revision FROM ledger_revisions WHERE company_id = $1), 0)`

// Revision returns the company's record revision.
func (s *Store) Revision(ctx context.Context, companyID int64) (int64, error) {
	var rev int64
	if err := s.db.QueryRow(ctx, revisionQuery, companyID).Scan(&rev); err != nil {
		return 0, fmt.Errorf("store: read revision: %w", err)
	}
	return rev, nil
}

// ActiveCompanies lists companies with ledger activity on or after since.
func (s *Store) ActiveCompanies(ctx context.Context, since time.Time) ([]int64, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT company_id
FROM ledger_entries
WHERE entry_date >= $1
ORDER BY company_id`, since)
	if err != nil {
		return nil, fmt.Errorf("store: query active companies: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan company id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate company ids: %w", err)
	}
	return ids, nil
}

func buildLedgerQuery(q reports.LedgerQuery) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	argPos := 1

	conditions = append(conditions, fmt.Sprintf("company_id = $%d", argPos))
	args = append(args, q.CompanyID)
	argPos++

	// Rows without a date stay visible so they can be reported as skipped.
	if !q.From.IsZero() {
		conditions = append(conditions, fmt.Sprintf("(entry_date IS NULL OR entry_date >= $%d)", argPos))
		args = append(args, q.From.Format("2006-01-02"))
		argPos++
	}
	if !q.To.IsZero() {
		conditions = append(conditions, fmt.Sprintf("(entry_date IS NULL OR entry_date <= $%d)", argPos))
		args = append(args, q.To.Format("2006-01-02"))
		argPos++
	}
	if len(q.Kinds) > 0 {
		kinds := make([]string, 0, len(q.Kinds))
		for _, k := range q.Kinds {
			kinds = append(kinds, string(k))
		}
		conditions = append(conditions, fmt.Sprintf("UPPER(kind) = ANY($%d)", argPos))
		args = append(args, kinds)
		argPos++
	}
	if q.Category != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(LOWER(TRIM(category)) = LOWER($%d) OR (LOWER(TRIM(category)) = LOWER($%d) AND LOWER(TRIM(sub_category)) = LOWER($%d)))",
			argPos, argPos+1, argPos))
		args = append(args, q.Category, ledger.CategoryCompanyExpense)
		argPos += 2
	}
	if q.EmployeeID > 0 {
		conditions = append(conditions, fmt.Sprintf("counterparty_type = 'employee' AND counterparty_id = $%d", argPos))
		args = append(args, q.EmployeeID)
	}

	query := fmt.Sprintf("SELECT %s\nFROM ledger_entries\nWHERE %s\nORDER BY entry_date NULLS FIRST, id",
		ledgerColumns, strings.Join(conditions, " AND "))
	return query, args
}

func numericToDecimal(n pgtype.Numeric) (decimal.Decimal, error) {
	if !n.Valid {
		return decimal.Zero, nil
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return decimal.Zero, fmt.Errorf("store: non-finite numeric")
	}
	if n.Int == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromBigInt(n.Int, n.Exp), nil
}

func dateValue(d pgtype.Date) time.Time {
	if !d.Valid || d.InfinityModifier != pgtype.Finite {
		return time.Time{}
	}
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}
