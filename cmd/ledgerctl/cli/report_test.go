package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgerline/internal/ledger"
)

const sampleLedger = `id,company_id,amount,kind,date,category,sub_category,counterparty_type,counterparty_id,project_id,due_date
1,1,1000,INCOME,2025-01-03,Project Payment,,,,7,
2,1,-200,EXPENSE,2025-01-04,Company Expense,material,,,7,
3,1,100,EXPENSE,2025-01-05,Office,,,,,
4,1,-50,INCOME,2025-01-06,Refund,,,,,
5,1,500,DEBT_TAKEN,2025-01-02,Loan,,vendor,5,,2025-01-20
6,1,200,DEBT_REPAID,2025-01-09,Loan,,vendor,5,,
7,1,abc,EXPENSE,2025-01-09,Office,,,,,
8,1,300,DEBT_TAKEN,2025-02-02,Loan,,customer,9,,2025-03-01
`

func TestReadEntries(t *testing.T) {
	entries, skipped, err := readEntries(strings.NewReader(sampleLedger))
	require.NoError(t, err)
	require.Len(t, entries, 6)
	require.Len(t, skipped, 2)

	assert.Equal(t, int64(7), skipped[0].EntryID)
	assert.Contains(t, skipped[0].Reason, "amount")
	assert.Equal(t, int64(4), skipped[1].EntryID)
	assert.Contains(t, skipped[1].Reason, ledger.ErrSignConflict.Error())

	material := entries[1]
	assert.Equal(t, "200", material.Amount.String())
	assert.Equal(t, "material", material.SubCategory)
	require.NotNil(t, material.ProjectID)
	assert.Equal(t, int64(7), *material.ProjectID)

	loan := entries[3]
	require.NotNil(t, loan.Counterparty)
	assert.Equal(t, ledger.CounterpartyVendor, loan.Counterparty.Type)
	require.NotNil(t, loan.DueDate)
}

func TestReadEntriesRequiresColumns(t *testing.T) {
	_, _, err := readEntries(strings.NewReader("id,amount,kind\n1,2,INCOME\n"))
	require.ErrorContains(t, err, `missing column "date"`)
}

func writeLedger(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "entries.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleLedger), 0o600))
	return path
}

func TestReportPLCommand(t *testing.T) {
	cmd := NewRootCommand()
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{"report", "pnl", "--file", writeLedger(t)})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Gross Profit,800.00")
	assert.Contains(t, out.String(), "Net Profit,700.00")
	assert.Contains(t, errOut.String(), "skipped entry 4")
}

func TestReportDebtsCommand(t *testing.T) {
	cmd := NewRootCommand()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"report", "debts", "--file", writeLedger(t), "--as-of", "2025-01-31"})

	require.NoError(t, cmd.Execute())
	body := out.String()
	assert.Contains(t, body, "payable,vendor,5,vendor #5,500.00,200.00,300.00,300.00,2025-01-20,OVERDUE")
	assert.NotContains(t, body, "customer,9")
}

func TestReportRequiresFile(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"report", "pnl"})
	require.Error(t, cmd.Execute())
}
