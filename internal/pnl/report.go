package pnl

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgerline/internal/ledger"
)

// ProjectTotals carries the remaining-amount sums read from the project aggregate.
type ProjectTotals struct {
	Realized  decimal.Decimal
	Potential decimal.Decimal
}

// Report is the profit-and-loss summary returned to callers.
type Report struct {
	ProjectIncome          decimal.Decimal  `json:"project_income"`
	DirectProjectCosts     decimal.Decimal  `json:"direct_project_costs"`
	OperatingExpenses      decimal.Decimal  `json:"operating_expenses"`
	GrossProfit            decimal.Decimal  `json:"gross_profit"`
	NetProfit              decimal.Decimal  `json:"net_profit"`
	RealizedProjectProfit  decimal.Decimal  `json:"realized_project_profit"`
	PotentialProjectProfit decimal.Decimal  `json:"potential_project_profit"`
	Months                 []MonthlyBucket  `json:"months"`
	Breakdown              []CategoryAmount `json:"breakdown"`
	Skipped                []ledger.Skipped `json:"skipped,omitempty"`
}

// BuildReport aggregates classified entries and adds the project totals.
func BuildReport(classified []ledger.ClassifiedEntry, projects ProjectTotals, skipped []ledger.Skipped) Report {
	months := Aggregate(classified)
	report := Report{
		ProjectIncome:          decimal.Zero,
		DirectProjectCosts:     decimal.Zero,
		OperatingExpenses:      decimal.Zero,
		RealizedProjectProfit:  projects.Realized,
		PotentialProjectProfit: projects.Potential,
		Months:                 months,
		Breakdown:              Breakdown(classified),
		Skipped:                skipped,
	}
	for _, m := range months {
		report.ProjectIncome = report.ProjectIncome.Add(m.ProjectIncome)
		report.DirectProjectCosts = report.DirectProjectCosts.Add(m.DirectProjectCosts)
		report.OperatingExpenses = report.OperatingExpenses.Add(m.OperatingExpenses)
	}
	report.GrossProfit = report.ProjectIncome.Sub(report.DirectProjectCosts)
	report.NetProfit = report.GrossProfit.Sub(report.OperatingExpenses)
	return report
}

// FromEntries classifies raw normalized entries and builds the report in one step.
func FromEntries(entries []ledger.Entry, projects ProjectTotals) Report {
	classified, skipped := ledger.Classify(entries)
	return BuildReport(classified, projects, skipped)
}
