package recommend

// Categories returns AllCategories followed by the distinct categories of
// items in first-seen order.
func Categories(items []Item) []string {
	cats := []string{AllCategories}
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, ok := seen[it.Category]; ok {
			continue
		}
		seen[it.Category] = struct{}{}
		cats = append(cats, it.Category)
	}
	return cats
}

// Filter returns the items whose category equals category, preserving order.
// AllCategories returns a copy of the full list.
func Filter(items []Item, category string) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if category == AllCategories || it.Category == category {
			out = append(out, it)
		}
	}
	return out
}
