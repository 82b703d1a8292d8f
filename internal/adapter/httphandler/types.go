package httphandler

import (
	"github.com/niksmo/inventory/internal/core/domain"
	"github.com/niksmo/inventory/internal/core/selector"
)

type (
	// ProductView is a product with its display fields.
	ProductView struct {
		domain.Product
		DisplayPrice string               `json:"displayPrice"`
		Stock        selector.StockStatus `json:"stock"`
	}

	ProductsResponse struct {
		Count    int           `json:"count"`
		Products []ProductView `json:"products"`
	}

	CategoriesResponse struct {
		Categories []string `json:"categories"`
	}

	// FiltersRequest updates only the fields that are present.
	FiltersRequest struct {
		SearchTerm       *string `json:"search_term"`
		SelectedCategory *string `json:"selected_category"`
		SortBy           *string `json:"sort_by"`
		SortOrder        *string `json:"sort_order"`
	}

	ErrorResponse struct {
		Error string `json:"error"`
	}
)

func toViews(ps []domain.Product) []ProductView {
	vs := make([]ProductView, len(ps))
	for i, p := range ps {
		vs[i] = ProductView{
			Product:      p,
			DisplayPrice: selector.FormatPrice(p.Price),
			Stock:        selector.StockOf(p),
		}
	}
	return vs
}
