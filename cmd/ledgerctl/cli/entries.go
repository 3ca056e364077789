package cli

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgerline/internal/ledger"
)

// entryColumns lists the recognised CSV header names. Only id, amount, kind
// and date are required.
var entryColumns = []string{
	"id", "company_id", "amount", "kind", "date", "category", "sub_category",
	"counterparty_type", "counterparty_id", "project_id", "due_date",
}

var requiredColumns = []string{"id", "amount", "kind", "date"}

// readEntries parses a ledger CSV export. Rows that cannot be parsed or fail
// normalisation are returned as skipped.
func readEntries(r io.Reader) ([]ledger.Entry, []ledger.Skipped, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, nil, fmt.Errorf("missing column %q", col)
		}
	}

	var (
		raw      []ledger.Entry
		rejected []ledger.Skipped
		line     int
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read row: %w", err)
		}
		line++
		field := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		entry, err := parseEntry(field)
		if err != nil {
			rejected = append(rejected, ledger.Skipped{EntryID: entry.ID, Reason: fmt.Sprintf("row %d: %v", line, err)})
			continue
		}
		raw = append(raw, entry)
	}

	entries, skipped := ledger.NormalizeAll(raw)
	return entries, append(rejected, skipped...), nil
}

func parseEntry(field func(string) string) (ledger.Entry, error) {
	var entry ledger.Entry
	id, err := strconv.ParseInt(field("id"), 10, 64)
	if err != nil {
		return entry, fmt.Errorf("id: %w", err)
	}
	entry.ID = id
	if v := field("company_id"); v != "" {
		if entry.CompanyID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return entry, fmt.Errorf("company_id: %w", err)
		}
	}
	if entry.Amount, err = decimal.NewFromString(field("amount")); err != nil {
		return entry, fmt.Errorf("amount: %w", err)
	}
	entry.Kind = ledger.Kind(strings.ToUpper(field("kind")))
	if v := field("date"); v != "" {
		if entry.Date, err = time.Parse("2006-01-02", v); err != nil {
			return entry, fmt.Errorf("date: %w", err)
		}
	}
	entry.Category = field("category")
	entry.SubCategory = field("sub_category")

	if cpType := field("counterparty_type"); cpType != "" {
		cpID, err := strconv.ParseInt(field("counterparty_id"), 10, 64)
		if err != nil {
			return entry, fmt.Errorf("counterparty_id: %w", err)
		}
		entry.Counterparty = &ledger.CounterpartyRef{Type: ledger.CounterpartyType(strings.ToLower(cpType)), ID: cpID}
	}
	if v := field("project_id"); v != "" {
		pid, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return entry, fmt.Errorf("project_id: %w", err)
		}
		entry.ProjectID = &pid
	}
	if v := field("due_date"); v != "" {
		due, err := time.Parse("2006-01-02", v)
		if err != nil {
			return entry, fmt.Errorf("due_date: %w", err)
		}
		entry.DueDate = &due
	}
	return entry, nil
}
