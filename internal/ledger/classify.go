package ledger

import (
	"strings"

	"golang.org/x/text/cases"
)

// directCostCategories holds the folded names of categories billed to projects.
var directCostCategories = map[string]struct{}{
	fold(CategoryMaterial):  {},
	fold(CategoryLabor):     {},
	fold(CategoryTransport): {},
}

// fold returns the case-folded, trimmed form used for category comparison.
// A Caser is stateful so a fresh one is built per call.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// CategoryKey returns the form under which category names group together.
func CategoryKey(s string) string {
	return fold(s)
}

// SameCategory compares two category names ignoring case and surrounding space.
func SameCategory(a, b string) bool {
	return fold(a) == fold(b)
}

// EffectiveCategory resolves the category used for classification. Entries
// filed under the "Company Expense" umbrella are classified by sub-category.
func EffectiveCategory(e Entry) string {
	if SameCategory(e.Category, CategoryCompanyExpense) && strings.TrimSpace(e.SubCategory) != "" {
		return strings.TrimSpace(e.SubCategory)
	}
	return strings.TrimSpace(e.Category)
}

// BucketFor assigns a bucket to a single entry. Unrecognized expense
// categories fall into OPERATING_EXPENSE.
func BucketFor(e Entry) Bucket {
	switch e.Kind {
	case KindIncome:
		return BucketProjectIncome
	case KindExpense:
		if _, ok := directCostCategories[fold(EffectiveCategory(e))]; ok {
			return BucketDirectProjectCost
		}
		return BucketOperatingExpense
	default:
		return BucketIgnored
	}
}

// Classify buckets every well-formed entry. Malformed entries are returned in
// the skipped list and never abort the run.
func Classify(entries []Entry) ([]ClassifiedEntry, []Skipped) {
	out := make([]ClassifiedEntry, 0, len(entries))
	var skipped []Skipped
	for _, e := range entries {
		if err := Validate(e); err != nil {
			skipped = append(skipped, Skipped{EntryID: e.ID, Reason: err.Error()})
			continue
		}
		out = append(out, ClassifiedEntry{Entry: e, Bucket: BucketFor(e)})
	}
	return out, skipped
}
