package core

// CategoryTotal is an amount aggregated by category name.
type CategoryTotal struct {
	Category   string
	TotalCents int64
	Count      int
}

// Summary aggregates a record list for the dashboard stat cards.
type Summary struct {
	Count      int
	TotalCents int64
	ByCategory []CategoryTotal // first-seen order
}

// Summarize totals records in cents, grouping by category.
func Summarize(records []Record) Summary {
	var s Summary
	idx := make(map[string]int)
	for _, r := range records {
		cents := r.AmountCents()
		s.Count++
		s.TotalCents += cents
		i, ok := idx[r.Category]
		if !ok {
			i = len(s.ByCategory)
			idx[r.Category] = i
			s.ByCategory = append(s.ByCategory, CategoryTotal{Category: r.Category})
		}
		s.ByCategory[i].TotalCents += cents
		s.ByCategory[i].Count++
	}
	return s
}
