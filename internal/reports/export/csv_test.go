package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgerline/internal/debts"
	"github.com/odyssey-erp/ledgerline/internal/ledger"
	"github.com/odyssey-erp/ledgerline/internal/payroll"
	"github.com/odyssey-erp/ledgerline/internal/pnl"
)

func TestWritePLCSV(t *testing.T) {
	entries := []ledger.Entry{
		{ID: 1, Kind: ledger.KindIncome, Amount: decimal.NewFromInt(1000), Date: time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC), Category: "Project"},
		{ID: 2, Kind: ledger.KindExpense, Amount: decimal.NewFromInt(200), Date: time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC), Category: "Material"},
	}
	report := pnl.FromEntries(entries, pnl.ProjectTotals{})

	buf := new(bytes.Buffer)
	require.NoError(t, WritePLCSV(buf, report))
	out := buf.String()
	require.Contains(t, out, "Net Profit,800.00")
	require.Contains(t, out, "Jan 2025,1000.00,200.00,0.00,800.00")
	require.Contains(t, out, "Material,200.00")
}

func TestWriteSalaryCSV(t *testing.T) {
	buf := new(bytes.Buffer)
	err := WriteSalaryCSV(buf, []payroll.Summary{{
		EmployeeID:      4,
		Name:            "Sari",
		Category:        payroll.CategoryCompany,
		DaysInMonth:     30,
		DaysWorked:      15,
		DailyRate:       decimal.NewFromInt(100),
		EarnedThisMonth: decimal.NewFromInt(1500),
		PaidThisMonth:   decimal.NewFromInt(2000),
		Remaining:       decimal.NewFromInt(1000),
		Overpaid:        decimal.NewFromInt(500),
	}})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "4,Sari,COMPANY,30,15,100.00,1500.00,2000.00,1000.00,500.00", lines[1])
}

func TestWriteDebtsCSVClampsOutstanding(t *testing.T) {
	report := debts.Report{
		Payables: []debts.State{{
			CounterpartyID: 5,
			Type:           ledger.CounterpartyVendor,
			Name:           "Toko Makmur",
			Side:           debts.SidePayable,
			Taken:          decimal.NewFromInt(100),
			Repaid:         decimal.NewFromInt(150),
			Remaining:      decimal.NewFromInt(-50),
			Status:         debts.StatusPaid,
			Anomaly:        true,
		}},
	}
	buf := new(bytes.Buffer)
	require.NoError(t, WriteDebtsCSV(buf, report))
	require.Contains(t, buf.String(), "payable,vendor,5,Toko Makmur,100.00,150.00,-50.00,0.00,,PAID")
}
