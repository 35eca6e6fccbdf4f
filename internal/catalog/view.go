package catalog

import (
	"strings"

	"github.com/electrohogar/catalogo/app/models"
	"github.com/electrohogar/catalogo/pkg/collection"
)

// SortKey selects the view ordering.
type SortKey string

const (
	SortNone      SortKey = ""
	SortPriceAsc  SortKey = "priceAsc"
	SortPriceDesc SortKey = "priceDesc"
	SortDateAsc   SortKey = "dateAsc"
	SortDateDesc  SortKey = "dateDesc"
)

// ParseSortKey maps a query-string value onto a SortKey. Anything
// unknown means "store order".
func ParseSortKey(s string) SortKey {
	switch SortKey(s) {
	case SortPriceAsc, SortPriceDesc, SortDateAsc, SortDateDesc:
		return SortKey(s)
	default:
		return SortNone
	}
}

// Criteria is the active filter set of the dashboard.
type Criteria struct {
	Category   string `json:"category"`
	Search     string `json:"search"`
	DefectOnly bool   `json:"defectOnly"`
}

// DeriveView projects records through the criteria and sort key.
// It is a pure function: records is never mutated and identical inputs
// always yield identical output. Filters apply in order — defect flag,
// category, case-insensitive name search — then a stable sort, so ties
// keep their prior relative order.
func DeriveView(records []models.Record, c Criteria, key SortKey) []models.Record {
	view := make([]models.Record, len(records))
	copy(view, records)

	if c.DefectOnly {
		view = collection.Filter(view, func(r models.Record) bool { return r.HasDefect })
	}
	if c.Category != "" && c.Category != models.CategoryAll {
		view = collection.Filter(view, func(r models.Record) bool { return r.Category == c.Category })
	}
	if q := strings.TrimSpace(c.Search); q != "" {
		needle := strings.ToLower(q)
		view = collection.Filter(view, func(r models.Record) bool {
			return strings.Contains(strings.ToLower(r.Name), needle)
		})
	}

	switch key {
	case SortPriceAsc:
		collection.SortBy(view, func(a, b models.Record) bool { return a.Price < b.Price })
	case SortPriceDesc:
		collection.SortBy(view, func(a, b models.Record) bool { return a.Price > b.Price })
	case SortDateAsc:
		// Zero CreatedAt sorts as epoch, so legacy records come first.
		collection.SortBy(view, func(a, b models.Record) bool { return a.CreatedAt.Before(b.CreatedAt) })
	case SortDateDesc:
		collection.SortBy(view, func(a, b models.Record) bool { return b.CreatedAt.Before(a.CreatedAt) })
	}

	return view
}

// Categories lists every distinct category with the "all" sentinel
// first, in first-seen order.
func Categories(records []models.Record) []string {
	cats := collection.Map(records, func(r models.Record) string { return r.Category })
	return append([]string{models.CategoryAll}, collection.Unique(cats)...)
}
