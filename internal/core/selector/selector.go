// Package selector derives read-only views from the products state.
//
// All functions are pure: they never modify their arguments and may be
// called concurrently.
package selector

import (
	"cmp"
	"slices"
	"strings"

	"github.com/niksmo/inventory/internal/core/domain"
	"github.com/shopspring/decimal"
)

// Categories returns the distinct categories of ps in first-seen order.
func Categories(ps []domain.Product) []string {
	seen := make(map[string]struct{})
	cs := []string{}
	for _, p := range ps {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		cs = append(cs, p.Category)
	}
	return cs
}

// VisibleProducts returns the products of s matching its search term and
// category filter, ordered by its sort key and order. Products with equal
// keys keep their relative order.
func VisibleProducts(s domain.ProductsState) []domain.Product {
	term := strings.ToLower(s.SearchTerm)

	visible := make([]domain.Product, 0, len(s.Products))
	for _, p := range s.Products {
		if matchesSearch(p, term) && matchesCategory(p, s.SelectedCategory) {
			visible = append(visible, p)
		}
	}

	compare := comparator(s.SortBy)
	if compare == nil {
		return visible
	}
	if s.SortOrder == domain.Desc {
		asc := compare
		compare = func(a, b domain.Product) int { return asc(b, a) }
	}
	slices.SortStableFunc(visible, compare)
	return visible
}

func matchesSearch(p domain.Product, lowerTerm string) bool {
	return strings.Contains(strings.ToLower(p.Title), lowerTerm) ||
		strings.Contains(strings.ToLower(p.Description), lowerTerm)
}

func matchesCategory(p domain.Product, category string) bool {
	return category == "" || category == domain.AllCategories ||
		p.Category == category
}

func comparator(key domain.SortKey) func(a, b domain.Product) int {
	switch key {
	case domain.SortByName:
		return func(a, b domain.Product) int {
			return cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		}
	case domain.SortByPrice:
		return func(a, b domain.Product) int {
			return cmp.Compare(a.Price, b.Price)
		}
	case domain.SortByCategory:
		return func(a, b domain.Product) int {
			return cmp.Compare(strings.ToLower(a.Category), strings.ToLower(b.Category))
		}
	}
	return nil
}

type StockStatus string

const (
	InStock    StockStatus = "In Stock"
	LowStock   StockStatus = "Low Stock"
	OutOfStock StockStatus = "Out of Stock"
)

// StockOf derives a display status from the rating count.
func StockOf(p domain.Product) StockStatus {
	switch {
	case p.Rating.Count > 100:
		return InStock
	case p.Rating.Count > 50:
		return LowStock
	}
	return OutOfStock
}

type Summary struct {
	Products      int             `json:"products"`
	Categories    int             `json:"categories"`
	TotalValue    decimal.Decimal `json:"totalValue"`
	AverageRating decimal.Decimal `json:"averageRating"`
}

// Summarize aggregates ps. Money is summed exactly; the average rating is
// rounded to two places.
func Summarize(ps []domain.Product) Summary {
	total := decimal.Zero
	rates := decimal.Zero
	for _, p := range ps {
		total = total.Add(decimal.NewFromFloat(p.Price))
		rates = rates.Add(decimal.NewFromFloat(p.Rating.Rate))
	}

	avg := decimal.Zero
	if len(ps) != 0 {
		avg = rates.Div(decimal.NewFromInt(int64(len(ps)))).Round(2)
	}

	return Summary{
		Products:      len(ps),
		Categories:    len(Categories(ps)),
		TotalValue:    total,
		AverageRating: avg,
	}
}

// FormatPrice renders a price with two decimal places and a dollar sign.
func FormatPrice(price float64) string {
	return "$" + decimal.NewFromFloat(price).StringFixed(2)
}
