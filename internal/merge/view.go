package merge

import (
	"fmt"
	"slices"
	"strings"

	"spesesync/internal/core"
)

// AllCategories disables the category filter.
const AllCategories = "All"

// SortKey orders a record list.
type SortKey string

const (
	SortDateDesc   SortKey = "date_desc"
	SortDateAsc    SortKey = "date_asc"
	SortAmountDesc SortKey = "amount_desc"
	SortAmountAsc  SortKey = "amount_asc"
)

// ParseSortKey accepts the four sort names; empty means date_desc.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.TrimSpace(strings.ToLower(s))); k {
	case "":
		return SortDateDesc, nil
	case SortDateDesc, SortDateAsc, SortAmountDesc, SortAmountAsc:
		return k, nil
	default:
		return "", fmt.Errorf("unknown sort key %q", s)
	}
}

// FilterByCategory keeps records whose category matches. An empty category
// or "All" returns records unchanged.
func FilterByCategory(records []core.Record, category string) []core.Record {
	if category == "" || category == AllCategories {
		return records
	}
	out := make([]core.Record, 0, len(records))
	for _, r := range records {
		if r.Category == category {
			out = append(out, r)
		}
	}
	return out
}

// Sort returns a sorted copy. Ties keep their input order.
func Sort(records []core.Record, key SortKey) []core.Record {
	out := slices.Clone(records)
	var cmp func(a, b core.Record) int
	switch key {
	case SortDateAsc:
		cmp = func(a, b core.Record) int { return strings.Compare(a.Date, b.Date) }
	case SortAmountDesc:
		cmp = func(a, b core.Record) int { return compareFloat(b.Amount, a.Amount) }
	case SortAmountAsc:
		cmp = func(a, b core.Record) int { return compareFloat(a.Amount, b.Amount) }
	default:
		cmp = func(a, b core.Record) int { return strings.Compare(b.Date, a.Date) }
	}
	slices.SortStableFunc(out, cmp)
	return out
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Window is the visible slice of a list that grows one page at a time.
type Window struct {
	Records []core.Record
	HasMore bool
}

// Slice returns the first page*size records. Pages start at 1; values
// below 1 are treated as 1.
func Slice(records []core.Record, page, size int) Window {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 1
	}
	limit := page * size
	if limit >= len(records) {
		return Window{Records: records, HasMore: false}
	}
	return Window{Records: records[:limit], HasMore: true}
}
