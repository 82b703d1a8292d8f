package domain

import (
	"errors"
	"slices"
)

// AllCategories is accepted wherever a category filter is expected and means
// no filtering.
const AllCategories = "all"

type ProductsState struct {
	Products         []Product `json:"products"`
	Loading          bool      `json:"loading"`
	Error            string    `json:"error,omitempty"`
	SearchTerm       string    `json:"searchTerm"`
	SelectedCategory string    `json:"selectedCategory"`
	SortBy           SortKey   `json:"sortBy"`
	SortOrder        SortOrder `json:"sortOrder"`
}

func DefaultState() ProductsState {
	return ProductsState{
		Products:  []Product{},
		SortBy:    SortByName,
		SortOrder: Asc,
	}
}

// Clone returns a copy that shares no memory with s.
func (s ProductsState) Clone() ProductsState {
	c := s
	c.Products = slices.Clone(s.Products)
	if c.Products == nil {
		c.Products = []Product{}
	}
	return c
}

// Durable returns the part of s worth keeping across sessions: the loading
// flag and the error message are dropped.
func (s ProductsState) Durable() ProductsState {
	c := s.Clone()
	c.Loading = false
	c.Error = ""
	if c.SortBy == "" {
		c.SortBy = SortByName
	}
	if c.SortOrder == "" {
		c.SortOrder = Asc
	}
	return c
}

func (s ProductsState) IndexOf(id int64) int {
	return slices.IndexFunc(s.Products, func(p Product) bool {
		return p.ID == id
	})
}

func (s ProductsState) Has(id int64) bool {
	return s.IndexOf(id) != -1
}

// A RejectedError is returned by a rejected catalog operation. Message is the
// text recorded in [ProductsState.Error] for that rejection.
type RejectedError struct {
	Message string
	Err     error
}

func (e *RejectedError) Error() string { return e.Err.Error() }

func (e *RejectedError) Unwrap() error { return e.Err }

// RejectionMessage returns the message carried by err, or "" when err is not
// a rejection.
func RejectionMessage(err error) string {
	var re *RejectedError
	if errors.As(err, &re) {
		return re.Message
	}
	return ""
}
