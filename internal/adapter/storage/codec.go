package storage

import (
	"encoding/json"
	"fmt"

	"github.com/niksmo/inventory/internal/core/domain"
	"github.com/niksmo/inventory/pkg/schema"
)

// A Codec converts the durable part of the state to bytes and back.
type Codec interface {
	Marshal(domain.ProductsState) ([]byte, error)
	Unmarshal([]byte) (domain.ProductsState, error)
}

func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "avro":
		return NewAvroCodec(), nil
	}
	return nil, fmt.Errorf("unknown snapshot codec %q", name)
}

type JSONCodec struct{}

func (JSONCodec) Marshal(s domain.ProductsState) ([]byte, error) {
	return json.Marshal(s.Durable())
}

func (JSONCodec) Unmarshal(data []byte) (domain.ProductsState, error) {
	var s domain.ProductsState
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.ProductsState{}, err
	}
	return checkState(s)
}

type AvroCodec struct {
	encode func(v any) ([]byte, error)
	decode func([]byte, any) error
}

func NewAvroCodec() AvroCodec {
	s := schema.StateSnapshotV1Avro()
	return AvroCodec{schema.AvroEncodeFn(s), schema.AvroDecodeFn(s)}
}

func (c AvroCodec) Marshal(s domain.ProductsState) ([]byte, error) {
	return c.encode(toSnapshotV1(s.Durable()))
}

func (c AvroCodec) Unmarshal(data []byte) (domain.ProductsState, error) {
	var v schema.StateSnapshotV1
	if err := c.decode(data, &v); err != nil {
		return domain.ProductsState{}, err
	}
	return checkState(fromSnapshotV1(v))
}

func checkState(s domain.ProductsState) (domain.ProductsState, error) {
	s = s.Durable()
	if _, err := domain.ParseSortKey(string(s.SortBy)); err != nil {
		return domain.ProductsState{}, fmt.Errorf("malformed snapshot: %w", err)
	}
	if _, err := domain.ParseSortOrder(string(s.SortOrder)); err != nil {
		return domain.ProductsState{}, fmt.Errorf("malformed snapshot: %w", err)
	}
	return s, nil
}

func toSnapshotV1(s domain.ProductsState) (v schema.StateSnapshotV1) {
	v.Products = make([]schema.ProductV1, len(s.Products))
	for i, p := range s.Products {
		v.Products[i] = schema.ProductV1{
			ID:          p.ID,
			Title:       p.Title,
			Price:       p.Price,
			Description: p.Description,
			Category:    p.Category,
			Image:       p.Image,
			Rating: schema.RatingV1{
				Rate:  p.Rating.Rate,
				Count: int64(p.Rating.Count),
			},
		}
	}
	v.SearchTerm = s.SearchTerm
	v.SelectedCategory = s.SelectedCategory
	v.SortBy = string(s.SortBy)
	v.SortOrder = string(s.SortOrder)
	return
}

func fromSnapshotV1(v schema.StateSnapshotV1) (s domain.ProductsState) {
	s.Products = make([]domain.Product, len(v.Products))
	for i, p := range v.Products {
		s.Products[i] = domain.Product{
			ID:          p.ID,
			Title:       p.Title,
			Price:       p.Price,
			Description: p.Description,
			Category:    p.Category,
			Image:       p.Image,
			Rating: domain.Rating{
				Rate:  p.Rating.Rate,
				Count: int(p.Rating.Count),
			},
		}
	}
	s.SearchTerm = v.SearchTerm
	s.SelectedCategory = v.SelectedCategory
	s.SortBy = domain.SortKey(v.SortBy)
	s.SortOrder = domain.SortOrder(v.SortOrder)
	return
}
