package merge

import (
	"reflect"
	"testing"

	"spesesync/internal/core"
)

var sample = []core.Record{
	{ID: "1", Date: "2025-01-02", Amount: 10, Category: "Food"},
	{ID: "2", Date: "2025-01-05", Amount: 3, Category: "Travel"},
	{ID: "3", Date: "2025-01-01", Amount: 25, Category: "Food"},
}

func TestFilterByCategory(t *testing.T) {
	tests := []struct {
		category string
		want     []string
	}{
		{"", []string{"1", "2", "3"}},
		{"All", []string{"1", "2", "3"}},
		{"Food", []string{"1", "3"}},
		{"Other", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			got := ids(FilterByCategory(sample, tt.category))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSort(t *testing.T) {
	tests := []struct {
		key  SortKey
		want []string
	}{
		{SortDateDesc, []string{"2", "1", "3"}},
		{SortDateAsc, []string{"3", "1", "2"}},
		{SortAmountDesc, []string{"3", "1", "2"}},
		{SortAmountAsc, []string{"2", "1", "3"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			got := ids(Sort(sample, tt.key))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
	if !reflect.DeepEqual(ids(sample), []string{"1", "2", "3"}) {
		t.Error("Sort mutated its input")
	}
}

func TestParseSortKey(t *testing.T) {
	if k, err := ParseSortKey(""); err != nil || k != SortDateDesc {
		t.Errorf("empty: %v, %v", k, err)
	}
	if k, err := ParseSortKey("AMOUNT_ASC"); err != nil || k != SortAmountAsc {
		t.Errorf("upper: %v, %v", k, err)
	}
	if _, err := ParseSortKey("title"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestSlice(t *testing.T) {
	tests := []struct {
		name       string
		page, size int
		want       []string
		more       bool
	}{
		{"first page", 1, 2, []string{"1", "2"}, true},
		{"exact end", 1, 3, []string{"1", "2", "3"}, false},
		{"past end", 4, 2, []string{"1", "2", "3"}, false},
		{"page zero treated as one", 0, 1, []string{"1"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Slice(sample, tt.page, tt.size)
			if !reflect.DeepEqual(ids(w.Records), tt.want) || w.HasMore != tt.more {
				t.Errorf("got %v more=%v, want %v more=%v", ids(w.Records), w.HasMore, tt.want, tt.more)
			}
		})
	}
}
