package debts

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgerline/internal/ledger"
)

// Totals summarises one side of the debt report.
type Totals struct {
	Outstanding decimal.Decimal `json:"outstanding"`
	Overdue     decimal.Decimal `json:"overdue"`
	OverdueN    int             `json:"overdue_count"`
	Anomalies   int             `json:"anomalies"`
}

// Report is the debts and receivables view returned to callers.
type Report struct {
	AsOf        time.Time        `json:"as_of"`
	Payables    []State          `json:"payables"`
	Receivables []State          `json:"receivables"`
	Payable     Totals           `json:"payable_totals"`
	Receivable  Totals           `json:"receivable_totals"`
	Skipped     []ledger.Skipped `json:"skipped,omitempty"`
}

// Summarize splits netted states by side and totals each side using the
// display-clamped outstanding amounts.
func Summarize(states []State, asOf time.Time) Report {
	report := Report{
		AsOf:        asOf,
		Payables:    []State{},
		Receivables: []State{},
		Payable:     Totals{Outstanding: decimal.Zero, Overdue: decimal.Zero},
		Receivable:  Totals{Outstanding: decimal.Zero, Overdue: decimal.Zero},
	}
	for _, st := range states {
		totals := &report.Receivable
		if st.Side == SidePayable {
			report.Payables = append(report.Payables, st)
			totals = &report.Payable
		} else {
			report.Receivables = append(report.Receivables, st)
		}
		totals.Outstanding = totals.Outstanding.Add(st.Outstanding())
		if st.Status == StatusOverdue {
			totals.Overdue = totals.Overdue.Add(st.Outstanding())
			totals.OverdueN++
		}
		if st.Anomaly {
			totals.Anomalies++
		}
	}
	return report
}

// Filter keeps the states on the given side. An empty side keeps everything.
func Filter(states []State, side Side) []State {
	if side == "" {
		return states
	}
	out := make([]State, 0, len(states))
	for _, st := range states {
		if st.Side == side {
			out = append(out, st)
		}
	}
	return out
}
