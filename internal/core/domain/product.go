package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidDraft = errors.New("invalid product")

var validate = validator.New(validator.WithRequiredStructEnabled())

type (
	Product struct {
		ID          int64   `json:"id"`
		Title       string  `json:"title"`
		Price       float64 `json:"price"`
		Description string  `json:"description"`
		Category    string  `json:"category"`
		Image       string  `json:"image"`
		Rating      Rating  `json:"rating"`
	}

	Rating struct {
		Rate  float64 `json:"rate"`
		Count int     `json:"count"`
	}
)

// A ProductDraft is a product that has not been assigned an identifier yet.
type ProductDraft struct {
	Title       string  `json:"title" validate:"required"`
	Price       float64 `json:"price" validate:"gte=0"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Image       string  `json:"image" validate:"omitempty,url"`
	Rating      Rating  `json:"rating"`
}

// DefaultRating is given to products created without rating metadata.
var DefaultRating = Rating{Rate: 4.0, Count: 50}

// KnownCategories are offered for new products. The set is not closed.
var KnownCategories = []string{
	"electronics",
	"jewelery",
	"men's clothing",
	"women's clothing",
}

func (d ProductDraft) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDraft, err)
	}
	if d.Rating.Rate < 0 || d.Rating.Rate > 5 {
		return fmt.Errorf("%w: rating rate must be in 0..5", ErrInvalidDraft)
	}
	if d.Rating.Count < 0 {
		return fmt.Errorf("%w: rating count must not be negative", ErrInvalidDraft)
	}
	return nil
}

func (d ProductDraft) WithID(id int64) Product {
	return Product{
		ID:          id,
		Title:       d.Title,
		Price:       d.Price,
		Description: d.Description,
		Category:    d.Category,
		Image:       d.Image,
		Rating:      d.Rating,
	}
}

func (p Product) Draft() ProductDraft {
	return ProductDraft{
		Title:       p.Title,
		Price:       p.Price,
		Description: p.Description,
		Category:    p.Category,
		Image:       p.Image,
		Rating:      p.Rating,
	}
}

type SortKey string

const (
	SortByName     SortKey = "name"
	SortByPrice    SortKey = "price"
	SortByCategory SortKey = "category"
)

func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortByName, SortByPrice, SortByCategory:
		return k, nil
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case Asc, Desc:
		return o, nil
	}
	return "", fmt.Errorf("unknown sort order %q", s)
}
