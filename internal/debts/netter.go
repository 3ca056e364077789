// Package debts nets debt-taken and debt-repaid movements per counterparty.
package debts

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgerline/internal/ledger"
)

// Side tells whether the company owes the counterparty or the reverse.
type Side string

const (
	SidePayable    Side = "payable"
	SideReceivable Side = "receivable"
)

// Status is the derived state of a counterparty balance.
type Status string

const (
	StatusPaid     Status = "PAID"
	StatusOverdue  Status = "OVERDUE"
	StatusActive   Status = "ACTIVE"
	StatusUpcoming Status = "UPCOMING"
)

// Counterparty is a directory entry for a vendor, customer or employee.
type Counterparty struct {
	ID   int64                   `json:"id"`
	Type ledger.CounterpartyType `json:"type"`
	Name string                  `json:"name"`
}

// State is the netted balance of a single counterparty.
type State struct {
	CounterpartyID int64                   `json:"counterparty_id"`
	Type           ledger.CounterpartyType `json:"type"`
	Name           string                  `json:"name"`
	Side           Side                    `json:"side"`
	Taken          decimal.Decimal         `json:"taken"`
	Repaid         decimal.Decimal         `json:"repaid"`
	Remaining      decimal.Decimal         `json:"remaining"`
	DueDate        *time.Time              `json:"due_date,omitempty"`
	Status         Status                  `json:"status"`
	Anomaly        bool                    `json:"anomaly"`
}

// Outstanding returns the remaining balance clamped at zero for display.
// Remaining keeps the raw value.
func (s State) Outstanding() decimal.Decimal {
	if s.Remaining.IsNegative() {
		return decimal.Zero
	}
	return s.Remaining
}

// MarshalJSON adds the clamped outstanding balance next to the raw remaining.
func (s State) MarshalJSON() ([]byte, error) {
	type plain State
	return json.Marshal(struct {
		plain
		Outstanding decimal.Decimal `json:"outstanding"`
	}{plain: plain(s), Outstanding: s.Outstanding()})
}

// SideOf maps a counterparty type onto the ledger side.
func SideOf(t ledger.CounterpartyType) Side {
	if t == ledger.CounterpartyVendor {
		return SidePayable
	}
	return SideReceivable
}

type counterpartyKey struct {
	typ ledger.CounterpartyType
	id  int64
}

// Net folds debt entries into one State per counterparty. Entries of other
// kinds, or without a counterparty, are ignored. The input is not modified.
func Net(entries []ledger.Entry, directory []Counterparty, today time.Time) []State {
	names := make(map[counterpartyKey]string, len(directory))
	for _, c := range directory {
		names[counterpartyKey{typ: c.Type, id: c.ID}] = c.Name
	}

	states := make(map[counterpartyKey]*State)
	for _, e := range entries {
		if e.Counterparty == nil {
			continue
		}
		if e.Kind != ledger.KindDebtTaken && e.Kind != ledger.KindDebtRepaid {
			continue
		}
		key := counterpartyKey{typ: e.Counterparty.Type, id: e.Counterparty.ID}
		st, ok := states[key]
		if !ok {
			name, found := names[key]
			if !found {
				name = string(key.typ) + " #" + strconv.FormatInt(key.id, 10)
			}
			st = &State{
				CounterpartyID: key.id,
				Type:           key.typ,
				Name:           name,
				Side:           SideOf(key.typ),
				Taken:          decimal.Zero,
				Repaid:         decimal.Zero,
			}
			states[key] = st
		}
		switch e.Kind {
		case ledger.KindDebtTaken:
			st.Taken = st.Taken.Add(e.Amount)
			if e.DueDate != nil && (st.DueDate == nil || e.DueDate.Before(*st.DueDate)) {
				due := *e.DueDate
				st.DueDate = &due
			}
		case ledger.KindDebtRepaid:
			st.Repaid = st.Repaid.Add(e.Amount)
		}
	}

	out := make([]State, 0, len(states))
	for _, st := range states {
		st.Remaining = st.Taken.Sub(st.Repaid)
		st.Anomaly = st.Remaining.IsNegative()
		st.Status = statusOf(*st, today)
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Side != out[j].Side {
			return out[i].Side < out[j].Side
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].CounterpartyID < out[j].CounterpartyID
	})
	return out
}

func statusOf(st State, today time.Time) Status {
	if !st.Remaining.IsPositive() {
		return StatusPaid
	}
	if st.DueDate != nil && dateOnly(*st.DueDate).Before(dateOnly(today)) {
		return StatusOverdue
	}
	if st.Side == SidePayable {
		return StatusActive
	}
	return StatusUpcoming
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
