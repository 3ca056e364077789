package pnl

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgerline/internal/ledger"
	_ "github.com/odyssey-erp/ledgerline/testing"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func requireDecimal(t *testing.T, want string, got decimal.Decimal, msg string) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "%s: expected %s got %s", msg, want, got.String())
}

func mk(id int64, kind ledger.Kind, amount string, category, sub string, year int, month time.Month, day int) ledger.Entry {
	return ledger.Entry{
		ID:          id,
		CompanyID:   1,
		Amount:      dec(amount),
		Kind:        kind,
		Date:        time.Date(year, month, day, 9, 30, 0, 0, time.UTC),
		Category:    category,
		SubCategory: sub,
	}
}

func TestEndToEndScenario(t *testing.T) {
	entries := []ledger.Entry{
		mk(1, ledger.KindIncome, "1000", "Project Payment", "", 2025, time.January, 5),
		mk(2, ledger.KindExpense, "200", "Material", "", 2025, time.January, 6),
		mk(3, ledger.KindExpense, "100", "OfficeRent", "", 2025, time.January, 7),
	}
	report := FromEntries(entries, ProjectTotals{})

	requireDecimal(t, "1000", report.ProjectIncome, "project income")
	requireDecimal(t, "200", report.DirectProjectCosts, "direct costs")
	requireDecimal(t, "100", report.OperatingExpenses, "operating expenses")
	requireDecimal(t, "800", report.GrossProfit, "gross profit")
	requireDecimal(t, "700", report.NetProfit, "net profit")
	require.Len(t, report.Months, 1)
	require.Equal(t, "Jan 2025", report.Months[0].MonthKey)
	requireDecimal(t, "700", report.Months[0].NetProjectProfit, "monthly net")
	require.Empty(t, report.Skipped)
}

func TestAggregateChronologicalOrder(t *testing.T) {
	// Labels in lexicographic order would be Dec, Feb, Jan, Nov.
	entries := []ledger.Entry{
		mk(1, ledger.KindIncome, "10", "P", "", 2025, time.February, 1),
		mk(2, ledger.KindIncome, "10", "P", "", 2024, time.December, 1),
		mk(3, ledger.KindIncome, "10", "P", "", 2025, time.January, 1),
		mk(4, ledger.KindIncome, "10", "P", "", 2024, time.November, 1),
	}
	classified, _ := ledger.Classify(entries)
	buckets := Aggregate(classified)
	require.Len(t, buckets, 4)

	var keys []string
	for i, b := range buckets {
		keys = append(keys, b.MonthKey)
		if i == 0 {
			continue
		}
		prev, err := ParseMonthKey(buckets[i-1].MonthKey)
		require.NoError(t, err)
		cur, err := ParseMonthKey(b.MonthKey)
		require.NoError(t, err)
		assert.False(t, cur.Before(prev), "%s should not precede %s", b.MonthKey, buckets[i-1].MonthKey)
	}
	require.Equal(t, []string{"Nov 2024", "Dec 2024", "Jan 2025", "Feb 2025"}, keys)
}

func TestAggregateConservesIncome(t *testing.T) {
	entries := []ledger.Entry{
		mk(1, ledger.KindIncome, "100.25", "P", "", 2025, time.March, 3),
		mk(2, ledger.KindIncome, "50.50", "P", "", 2025, time.March, 28),
		mk(3, ledger.KindIncome, "19.25", "P", "", 2025, time.April, 1),
		mk(4, ledger.KindExpense, "40", "Labor", "", 2025, time.April, 2),
		mk(5, ledger.KindTransferIn, "999", "Bank", "", 2025, time.April, 3),
	}
	classified, _ := ledger.Classify(entries)

	want := decimal.Zero
	for _, c := range classified {
		if c.Bucket == ledger.BucketProjectIncome {
			want = want.Add(c.Amount)
		}
	}
	got := decimal.Zero
	for _, b := range Aggregate(classified) {
		got = got.Add(b.ProjectIncome)
	}
	require.True(t, want.Equal(got), "expected %s got %s", want, got)
	requireDecimal(t, "170", got, "income total")
}

func TestAggregateIgnoresTransfersInTotals(t *testing.T) {
	entries := []ledger.Entry{
		mk(1, ledger.KindTransferOut, "300", "Bank", "", 2025, time.May, 1),
		mk(2, ledger.KindDebtTaken, "300", "Loan", "", 2025, time.May, 2),
	}
	classified, _ := ledger.Classify(entries)
	buckets := Aggregate(classified)
	require.Len(t, buckets, 1)
	requireDecimal(t, "0", buckets[0].NetProjectProfit, "net")
}

func TestBreakdownKeysBySubCategory(t *testing.T) {
	entries := []ledger.Entry{
		mk(1, ledger.KindExpense, "120", "Company Expense", "Material", 2025, time.June, 1),
		mk(2, ledger.KindExpense, "30", "Material", "", 2025, time.June, 2),
		mk(3, ledger.KindExpense, "80", "Company Expense", "Utilities", 2025, time.June, 3),
		mk(4, ledger.KindExpense, "80", "Marketing", "", 2025, time.June, 4),
		mk(5, ledger.KindExpense, "5", "", "", 2025, time.June, 5),
		mk(6, ledger.KindIncome, "1000", "Project", "", 2025, time.June, 6),
	}
	classified, _ := ledger.Classify(entries)
	rows := Breakdown(classified)
	require.Len(t, rows, 4)
	require.Equal(t, "Material", rows[0].Category)
	requireDecimal(t, "150", rows[0].Amount, "material")
	require.Equal(t, "Marketing", rows[1].Category)
	require.Equal(t, "Utilities", rows[2].Category)
	require.Equal(t, "Uncategorized", rows[3].Category)
}

func TestBreakdownFoldsCategorySpelling(t *testing.T) {
	entries := []ledger.Entry{
		mk(1, ledger.KindExpense, "100", "Material", "", 2025, time.June, 1),
		mk(2, ledger.KindExpense, "40", " material", "", 2025, time.June, 2),
		mk(3, ledger.KindExpense, "10", "Company Expense", "MATERIAL ", 2025, time.June, 3),
		mk(4, ledger.KindExpense, "70", "office rent", "", 2025, time.June, 4),
		mk(5, ledger.KindExpense, "20", "Office Rent", "", 2025, time.June, 5),
	}
	classified, _ := ledger.Classify(entries)
	rows := Breakdown(classified)
	require.Len(t, rows, 2)
	require.Equal(t, "Material", rows[0].Category)
	requireDecimal(t, "150", rows[0].Amount, "material")
	require.Equal(t, "office rent", rows[1].Category)
	requireDecimal(t, "90", rows[1].Amount, "office rent")
}

func TestBuildReportProjectTotalsPassThrough(t *testing.T) {
	report := BuildReport(nil, ProjectTotals{Realized: dec("4200"), Potential: dec("1300.50")}, nil)
	requireDecimal(t, "4200", report.RealizedProjectProfit, "realized")
	requireDecimal(t, "1300.50", report.PotentialProjectProfit, "potential")
	requireDecimal(t, "0", report.NetProfit, "net")
	require.Empty(t, report.Months)
}

func TestFromEntriesReportsSkipped(t *testing.T) {
	bad := mk(9, ledger.KindExpense, "10", "Material", "", 2025, time.June, 1)
	bad.Date = time.Time{}
	report := FromEntries([]ledger.Entry{bad, mk(1, ledger.KindIncome, "10", "P", "", 2025, time.June, 1)}, ProjectTotals{})
	require.Len(t, report.Skipped, 1)
	require.Equal(t, int64(9), report.Skipped[0].EntryID)
	requireDecimal(t, "10", report.ProjectIncome, "income")
}
