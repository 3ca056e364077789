// Package payroll reconciles salary entitlement against salary payments.
//
// Day counting is deliberately naive: weekends, holidays and unpaid leave are
// not excluded, and an employee who started before the current month is
// assumed to have worked every day up to the as-of date.
package payroll

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgerline/internal/ledger"
)

// Category separates salaried company staff from project labourers.
type Category string

const (
	CategoryCompany Category = "COMPANY"
	CategoryProject Category = "PROJECT"
)

// Employee is the salary state read from the store.
type Employee struct {
	ID            int64               `json:"id"`
	CompanyID     int64               `json:"company_id"`
	Name          string              `json:"name"`
	MonthlySalary decimal.NullDecimal `json:"monthly_salary"`
	StartDate     time.Time           `json:"start_date"`
	Category      Category            `json:"category"`
}

// LaborRecord is a wage agreement for project work.
type LaborRecord struct {
	ID         int64           `json:"id"`
	EmployeeID int64           `json:"employee_id"`
	ProjectID  int64           `json:"project_id"`
	Date       time.Time       `json:"date"`
	AgreedWage decimal.Decimal `json:"agreed_wage"`
}

// Summary is the derived salary position of one employee for the as-of month.
type Summary struct {
	EmployeeID      int64           `json:"employee_id"`
	Name            string          `json:"name"`
	Category        Category        `json:"category"`
	DaysInMonth     int             `json:"days_in_month"`
	DaysWorked      int             `json:"days_worked"`
	DailyRate       decimal.Decimal `json:"daily_rate"`
	EarnedThisMonth decimal.Decimal `json:"earned_this_month"`
	PaidThisMonth   decimal.Decimal `json:"paid_this_month"`
	Remaining       decimal.Decimal `json:"remaining"`
	Overpaid        decimal.Decimal `json:"overpaid"`
}

// DaysIn returns the number of days in t's month.
func DaysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// DaysWorked counts days worked in asOf's month.
func DaysWorked(start, asOf time.Time) int {
	if start.IsZero() {
		return asOf.Day()
	}
	startMonth := start.Year()*12 + int(start.Month())
	asOfMonth := asOf.Year()*12 + int(asOf.Month())
	switch {
	case startMonth == asOfMonth:
		days := asOf.Day() - start.Day() + 1
		if days < 0 {
			return 0
		}
		return days
	case startMonth > asOfMonth:
		return 0
	default:
		return asOf.Day()
	}
}

// PaidTotal sums the absolute amounts of salary payments.
func PaidTotal(payments []ledger.Entry) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount.Abs())
	}
	return total
}

// Reconcile computes the prorated salary position of a COMPANY employee.
func Reconcile(emp Employee, payments []ledger.Entry, asOf time.Time) Summary {
	daysInMonth := DaysIn(asOf)
	daysWorked := DaysWorked(emp.StartDate, asOf)

	salary := decimal.Zero
	dailyRate := decimal.Zero
	if emp.MonthlySalary.Valid {
		salary = emp.MonthlySalary.Decimal
		dailyRate = salary.Div(decimal.NewFromInt(int64(daysInMonth)))
	}
	earned := dailyRate.Mul(decimal.NewFromInt(int64(daysWorked))).Round(2)
	paid := PaidTotal(payments)

	overpaid := paid.Sub(earned)
	if !overpaid.IsPositive() {
		overpaid = decimal.Zero
	}

	return Summary{
		EmployeeID:      emp.ID,
		Name:            emp.Name,
		Category:        CategoryCompany,
		DaysInMonth:     daysInMonth,
		DaysWorked:      daysWorked,
		DailyRate:       dailyRate,
		EarnedThisMonth: earned,
		PaidThisMonth:   paid,
		Remaining:       salary.Sub(paid),
		Overpaid:        overpaid,
	}
}

// ReconcileProject computes the position of a PROJECT employee from agreed
// wages. There is no proration and no overpaid signal.
func ReconcileProject(emp Employee, labor []LaborRecord, payments []ledger.Entry, asOf time.Time) Summary {
	earned := decimal.Zero
	for _, rec := range labor {
		earned = earned.Add(rec.AgreedWage)
	}
	paid := PaidTotal(payments)
	return Summary{
		EmployeeID:      emp.ID,
		Name:            emp.Name,
		Category:        CategoryProject,
		DaysInMonth:     DaysIn(asOf),
		DailyRate:       decimal.Zero,
		EarnedThisMonth: earned.Round(2),
		PaidThisMonth:   paid,
		Remaining:       earned.Sub(paid),
		Overpaid:        decimal.Zero,
	}
}

// IsSalaryPayment reports whether e is a salary payment to employeeID.
func IsSalaryPayment(e ledger.Entry, employeeID int64) bool {
	if e.Kind != ledger.KindExpense {
		return false
	}
	if !ledger.SameCategory(ledger.EffectiveCategory(e), ledger.CategorySalary) {
		return false
	}
	return e.Counterparty != nil &&
		e.Counterparty.Type == ledger.CounterpartyEmployee &&
		e.Counterparty.ID == employeeID
}

// SalaryPayments filters entries down to salary payments for employeeID within asOf's month.
func SalaryPayments(entries []ledger.Entry, employeeID int64, asOf time.Time) []ledger.Entry {
	var out []ledger.Entry
	for _, e := range entries {
		if e.Date.Year() != asOf.Year() || e.Date.Month() != asOf.Month() {
			continue
		}
		if IsSalaryPayment(e, employeeID) {
			out = append(out, e)
		}
	}
	return out
}
