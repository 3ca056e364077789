package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownKind indicates an entry kind outside the supported set.
	ErrUnknownKind = errors.New("ledger: unknown kind")
	// ErrMissingDate indicates an entry without a booking date.
	ErrMissingDate = errors.New("ledger: missing date")
	// ErrSignConflict indicates an inflow entry stored with a negative amount.
	ErrSignConflict = errors.New("ledger: amount sign conflicts with kind")
	// ErrNotNormalized indicates an entry that skipped Normalize at the store boundary.
	ErrNotNormalized = errors.New("ledger: amount not normalized")
)

// Normalize validates a raw store row and rewrites its amount as a magnitude.
// Inflow kinds must not be negative. Outflow kinds may be stored either signed
// or as magnitudes.
func Normalize(e Entry) (Entry, error) {
	if !e.Kind.Valid() {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
	if e.Date.IsZero() {
		return Entry{}, ErrMissingDate
	}
	if e.Kind.Inflow() && e.Amount.IsNegative() {
		return Entry{}, fmt.Errorf("%w: %s %s", ErrSignConflict, e.Kind, e.Amount.String())
	}
	e.Amount = e.Amount.Abs()
	return e, nil
}

// Validate checks the structural fields of an already normalized entry.
func Validate(e Entry) error {
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
	if e.Date.IsZero() {
		return ErrMissingDate
	}
	if e.Amount.IsNegative() {
		return ErrNotNormalized
	}
	return nil
}

// NormalizeAll normalizes a batch, returning the usable entries and the rejected ones.
func NormalizeAll(raw []Entry) ([]Entry, []Skipped) {
	out := make([]Entry, 0, len(raw))
	var skipped []Skipped
	for _, e := range raw {
		n, err := Normalize(e)
		if err != nil {
			skipped = append(skipped, Skipped{EntryID: e.ID, Reason: err.Error()})
			continue
		}
		out = append(out, n)
	}
	return out, skipped
}
