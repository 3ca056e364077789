// Package export serialises report results to CSV.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgerline/internal/debts"
	"github.com/odyssey-erp/ledgerline/internal/payroll"
	"github.com/odyssey-erp/ledgerline/internal/pnl"
)

// WritePLCSV emits the P&L summary, the monthly series and the cost breakdown.
func WritePLCSV(w io.Writer, report pnl.Report) error {
	writer := csv.NewWriter(w)

	records := [][]string{
		{"Metric", "Value"},
		{"Project Income", money(report.ProjectIncome)},
		{"Direct Project Costs", money(report.DirectProjectCosts)},
		{"Operating Expenses", money(report.OperatingExpenses)},
		{"Gross Profit", money(report.GrossProfit)},
		{"Net Profit", money(report.NetProfit)},
		{"Realized Project Profit", money(report.RealizedProjectProfit)},
		{"Potential Project Profit", money(report.PotentialProjectProfit)},
		{"Skipped Entries", strconv.Itoa(len(report.Skipped))},
		{},
		{"Month", "Project Income", "Direct Project Costs", "Operating Expenses", "Net Project Profit"},
	}
	for _, m := range report.Months {
		records = append(records, []string{
			m.MonthKey,
			money(m.ProjectIncome),
			money(m.DirectProjectCosts),
			money(m.OperatingExpenses),
			money(m.NetProjectProfit),
		})
	}
	records = append(records, []string{}, []string{"Category", "Amount"})
	for _, row := range report.Breakdown {
		records = append(records, []string{row.Category, money(row.Amount)})
	}
	if err := writer.WriteAll(records); err != nil {
		return err
	}
	return writer.Error()
}

// WriteSalaryCSV emits one row per employee summary.
func WriteSalaryCSV(w io.Writer, summaries []payroll.Summary) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Employee ID", "Name", "Category", "Days In Month", "Days Worked", "Daily Rate", "Earned", "Paid", "Remaining", "Overpaid"}); err != nil {
		return err
	}
	for _, s := range summaries {
		if err := writer.Write([]string{
			strconv.FormatInt(s.EmployeeID, 10),
			s.Name,
			string(s.Category),
			strconv.Itoa(s.DaysInMonth),
			strconv.Itoa(s.DaysWorked),
			money(s.DailyRate),
			money(s.EarnedThisMonth),
			money(s.PaidThisMonth),
			money(s.Remaining),
			money(s.Overpaid),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteDebtsCSV emits payables then receivables. Outstanding is the
// display-clamped balance; Remaining keeps the raw value.
func WriteDebtsCSV(w io.Writer, report debts.Report) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Side", "Type", "Counterparty ID", "Name", "Taken", "Repaid", "Remaining", "Outstanding", "Due Date", "Status"}); err != nil {
		return err
	}
	rows := make([]debts.State, 0, len(report.Payables)+len(report.Receivables))
	rows = append(rows, report.Payables...)
	rows = append(rows, report.Receivables...)
	for _, st := range rows {
		due := ""
		if st.DueDate != nil {
			due = st.DueDate.Format("2006-01-02")
		}
		if err := writer.Write([]string{
			string(st.Side),
			string(st.Type),
			strconv.FormatInt(st.CounterpartyID, 10),
			st.Name,
			money(st.Taken),
			money(st.Repaid),
			money(st.Remaining),
			money(st.Outstanding()),
			due,
			string(st.Status),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func money(v decimal.Decimal) string {
	return v.StringFixed(2)
}
