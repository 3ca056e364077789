// Package ledger holds the ledger entry model shared by every report and the
// classifier that assigns each entry to a profit-and-loss bucket.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind enumerates ledger movement kinds.
type Kind string

const (
	KindIncome      Kind = "INCOME"
	KindExpense     Kind = "EXPENSE"
	KindTransferIn  Kind = "TRANSFER_IN"
	KindTransferOut Kind = "TRANSFER_OUT"
	KindDebtTaken   Kind = "DEBT_TAKEN"
	KindDebtRepaid  Kind = "DEBT_REPAID"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindIncome, KindExpense, KindTransferIn, KindTransferOut, KindDebtTaken, KindDebtRepaid:
		return true
	}
	return false
}

// Inflow reports whether the kind credits the company.
func (k Kind) Inflow() bool {
	return k == KindIncome || k == KindTransferIn || k == KindDebtTaken
}

// CounterpartyType identifies which directory a counterparty reference points to.
type CounterpartyType string

const (
	CounterpartyVendor   CounterpartyType = "vendor"
	CounterpartyCustomer CounterpartyType = "customer"
	CounterpartyEmployee CounterpartyType = "employee"
)

// CounterpartyRef points at a vendor, customer or employee record.
type CounterpartyRef struct {
	Type CounterpartyType `json:"type"`
	ID   int64            `json:"id"`
}

// Entry is a single ledger movement as read from the record store.
type Entry struct {
	ID           int64            `json:"id"`
	CompanyID    int64            `json:"company_id"`
	Amount       decimal.Decimal  `json:"amount"`
	Kind         Kind             `json:"kind"`
	Date         time.Time        `json:"date"`
	Category     string           `json:"category"`
	SubCategory  string           `json:"sub_category,omitempty"`
	Counterparty *CounterpartyRef `json:"counterparty,omitempty"`
	ProjectID    *int64           `json:"project_id,omitempty"`
	DueDate      *time.Time       `json:"due_date,omitempty"`
}

// Bucket is the profit-and-loss classification of an entry.
type Bucket string

const (
	BucketProjectIncome     Bucket = "PROJECT_INCOME"
	BucketDirectProjectCost Bucket = "DIRECT_PROJECT_COST"
	BucketOperatingExpense  Bucket = "OPERATING_EXPENSE"
	BucketIgnored           Bucket = "IGNORED"
)

// ClassifiedEntry pairs an entry with its bucket. It is never mutated after Classify.
type ClassifiedEntry struct {
	Entry
	Bucket Bucket `json:"bucket"`
}

// Skipped records an entry that could not be used and why.
type Skipped struct {
	EntryID int64  `json:"entry_id"`
	Reason  string `json:"reason"`
}

// Well-known category names.
const (
	CategoryCompanyExpense = "Company Expense"
	CategoryMaterial       = "Material"
	CategoryLabor          = "Labor"
	CategoryTransport      = "Transport"
	CategorySalary         = "Salary"
)
