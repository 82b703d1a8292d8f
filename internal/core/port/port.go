package port

import (
	"context"
	"errors"

	"github.com/niksmo/inventory/internal/core/domain"
)

// ProductsAPI is the remote catalog the store works against.
type ProductsAPI interface {
	List(context.Context) ([]domain.Product, error)
	Create(context.Context, domain.ProductDraft) (domain.Product, error)
	Update(context.Context, domain.Product) (domain.Product, error)
	Remove(context.Context, int64) (int64, error)
}

// ErrNoSnapshot is returned by [SnapshotStorage] when nothing was saved yet.
var ErrNoSnapshot = errors.New("snapshot not found")

type SnapshotStorage interface {
	SaveSnapshot(context.Context, domain.ProductsState) error
	LoadSnapshot(context.Context) (domain.ProductsState, error)
}

type ChangePublisher interface {
	PublishChange(context.Context, domain.ProductChange) error
}

type IDGenerator interface {
	NextID() int64
}

// ProductsReader is consumed by the presentation adapters.
type ProductsReader interface {
	State() domain.ProductsState
}

// ProductsDispatcher is the dispatch surface of the store consumed by the
// presentation adapters.
type ProductsDispatcher interface {
	SetSearchTerm(string)
	SetSelectedCategory(string)
	SetSortBy(domain.SortKey)
	SetSortOrder(domain.SortOrder)
	ClearError()

	FetchAll(context.Context) error
	EnsureLoaded(context.Context) error
	Create(context.Context, domain.ProductDraft) (domain.Product, error)
	Update(context.Context, domain.Product) (domain.Product, error)
	Remove(context.Context, int64) error
}

type ProductsStore interface {
	ProductsReader
	ProductsDispatcher
}
