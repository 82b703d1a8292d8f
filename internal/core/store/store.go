package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/niksmo/inventory/internal/core/domain"
	"github.com/niksmo/inventory/internal/core/port"
	"github.com/niksmo/inventory/pkg/idgen"
)

var _ port.ProductsStore = (*Store)(nil)

// An Op is a kind of asynchronous catalog operation.
type Op int

const (
	OpFetch Op = iota
	OpCreate
	OpUpdate
	OpRemove
	opCount
)

func (o Op) String() string {
	switch o {
	case OpFetch:
		return "fetch"
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpRemove:
		return "remove"
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

func (o Op) failureMessage() string {
	switch o {
	case OpFetch:
		return "Failed to fetch products"
	case OpCreate:
		return "Failed to add product"
	case OpUpdate:
		return "Failed to update product"
	case OpRemove:
		return "Failed to delete product"
	}
	return "Operation failed"
}

// DefaultPublishTimeout bounds a single change feed publish.
const DefaultPublishTimeout = 5 * time.Second

// A Listener receives a copy of the state after every transition.
type Listener func(domain.ProductsState)

type Opt func(*storeOpts) error

type storeOpts struct {
	snapshots port.SnapshotStorage
	publisher port.ChangePublisher
	ids       port.IDGenerator
	log       *slog.Logger

	publishTimeout time.Duration
}

func SnapshotStorageOpt(s port.SnapshotStorage) Opt {
	return func(opts *storeOpts) error {
		if s == nil {
			return errors.New("snapshot storage is nil")
		}
		opts.snapshots = s
		return nil
	}
}

func ChangePublisherOpt(p port.ChangePublisher) Opt {
	return func(opts *storeOpts) error {
		if p == nil {
			return errors.New("change publisher is nil")
		}
		opts.publisher = p
		return nil
	}
}

func IDGeneratorOpt(g port.IDGenerator) Opt {
	return func(opts *storeOpts) error {
		if g == nil {
			return errors.New("id generator is nil")
		}
		opts.ids = g
		return nil
	}
}

// PublishTimeoutOpt bounds how long a fulfilled operation waits for its
// change event to be published.
func PublishTimeoutOpt(d time.Duration) Opt {
	return func(opts *storeOpts) error {
		if d <= 0 {
			return errors.New("publish timeout must be positive")
		}
		opts.publishTimeout = d
		return nil
	}
}

// LoggerOpt sets the logger that receives best-effort side effect failures.
func LoggerOpt(l *slog.Logger) Opt {
	return func(opts *storeOpts) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		opts.log = l
		return nil
	}
}

type subscription struct {
	id int
	fn Listener
}

// A Store owns the products state. All methods are safe for concurrent use.
//
// Mutations are applied atomically in the order their operations complete.
// Snapshot writes and listener calls happen serially in the same order.
type Store struct {
	api       port.ProductsAPI
	snapshots port.SnapshotStorage
	publisher port.ChangePublisher
	ids       port.IDGenerator
	log       *slog.Logger

	publishTimeout time.Duration

	mu       sync.Mutex
	state    domain.ProductsState
	inFlight [opCount]int
	subs     []subscription
	nextSub  int

	notifyMu sync.Mutex
}

// New creates a store backed by api. When a snapshot storage is given the
// initial state is read from it, falling back to [domain.DefaultState].
func New(ctx context.Context, api port.ProductsAPI, opts ...Opt) (*Store, error) {
	const op = "store.New"

	if api == nil {
		return nil, fmt.Errorf("%s: products api is nil", op)
	}

	options := storeOpts{
		log:            slog.Default(),
		publishTimeout: DefaultPublishTimeout,
	}
	for _, o := range opts {
		if err := o(&options); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if options.ids == nil {
		options.ids = idgen.Default()
	}

	s := &Store{
		api:       api,
		snapshots: options.snapshots,
		publisher: options.publisher,
		ids:       options.ids,
		log:       options.log.With("component", "store"),
		state:     domain.DefaultState(),

		publishTimeout: options.publishTimeout,
	}
	s.restore(ctx)
	return s, nil
}

func (s *Store) restore(ctx context.Context) {
	const op = "Store.restore"
	log := s.log.With("op", op)

	if s.snapshots == nil {
		return
	}

	state, err := s.snapshots.LoadSnapshot(ctx)
	if err != nil {
		if errors.Is(err, port.ErrNoSnapshot) {
			log.Debug("no saved state, using defaults")
		} else {
			log.Warn("failed to load saved state, using defaults", "err", err)
		}
		return
	}
	s.state = uniqueByID(state.Durable())
	log.Debug("state restored", "nProducts", len(s.state.Products))
}

// State returns a copy of the current state.
func (s *Store) State() domain.ProductsState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// InFlight reports whether an operation of the given kind is outstanding.
// Unknown kinds are never in flight.
func (s *Store) InFlight(o Op) bool {
	if o < 0 || o >= opCount {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight[o] > 0
}

// Subscribe registers fn to be called after every state transition. The
// returned function removes the registration.
//
// Listeners may read the store but must not dispatch actions.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, subscription{id, fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.subs = slices.DeleteFunc(s.subs, func(sub subscription) bool {
			return sub.id == id
		})
	}
}

func (s *Store) SetSearchTerm(term string) {
	s.mutate(context.Background(), func(st *domain.ProductsState) {
		st.SearchTerm = term
	})
}

// SetSelectedCategory sets the category filter. Empty string and
// [domain.AllCategories] both clear it.
func (s *Store) SetSelectedCategory(category string) {
	if strings.EqualFold(category, domain.AllCategories) {
		category = ""
	}
	s.mutate(context.Background(), func(st *domain.ProductsState) {
		st.SelectedCategory = category
	})
}

func (s *Store) SetSortBy(key domain.SortKey) {
	s.mutate(context.Background(), func(st *domain.ProductsState) {
		st.SortBy = key
	})
}

func (s *Store) SetSortOrder(order domain.SortOrder) {
	s.mutate(context.Background(), func(st *domain.ProductsState) {
		st.SortOrder = order
	})
}

func (s *Store) ClearError() {
	s.mutate(context.Background(), func(st *domain.ProductsState) {
		st.Error = ""
	})
}

// FetchAll replaces the products with the remote catalog.
func (s *Store) FetchAll(ctx context.Context) error {
	const op = "Store.FetchAll"

	s.begin(ctx, OpFetch)

	ps, err := s.api.List(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, s.reject(ctx, OpFetch, err))
	}

	s.fulfill(ctx, OpFetch, func(st *domain.ProductsState) {
		st.Products = uniqueByID(domain.ProductsState{Products: ps}).Products
	})
	return nil
}

// EnsureLoaded fetches the catalog only when no products are held.
func (s *Store) EnsureLoaded(ctx context.Context) error {
	s.mu.Lock()
	empty := len(s.state.Products) == 0
	s.mu.Unlock()

	if !empty {
		return nil
	}
	return s.FetchAll(ctx)
}

// Create adds a product to the remote catalog and appends it to the state.
//
// The identifier returned by the api is kept when it is set and not yet
// taken, otherwise a fresh one is generated.
func (s *Store) Create(
	ctx context.Context, draft domain.ProductDraft,
) (domain.Product, error) {
	const op = "Store.Create"

	s.begin(ctx, OpCreate)

	created, err := s.api.Create(ctx, draft)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, s.reject(ctx, OpCreate, err))
	}

	s.fulfill(ctx, OpCreate, func(st *domain.ProductsState) {
		created.ID = s.resolveID(*st, created.ID)
		st.Products = append(st.Products, created)
	})

	s.publish(ctx, domain.ProductChange{
		Action:    domain.ProductCreated,
		ProductID: created.ID,
		Product:   created,
	})
	return created, nil
}

// Update stores the product remotely and replaces the entry with the same
// identifier. Unknown identifiers leave the products untouched.
func (s *Store) Update(
	ctx context.Context, p domain.Product,
) (domain.Product, error) {
	const op = "Store.Update"

	s.begin(ctx, OpUpdate)

	updated, err := s.api.Update(ctx, p)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, s.reject(ctx, OpUpdate, err))
	}

	var applied bool
	s.fulfill(ctx, OpUpdate, func(st *domain.ProductsState) {
		if i := st.IndexOf(updated.ID); i != -1 {
			st.Products[i] = updated
			applied = true
		}
	})

	if applied {
		s.publish(ctx, domain.ProductChange{
			Action:    domain.ProductUpdated,
			ProductID: updated.ID,
			Product:   updated,
		})
	}
	return updated, nil
}

// Remove deletes the product remotely and drops it from the state.
func (s *Store) Remove(ctx context.Context, id int64) error {
	const op = "Store.Remove"

	s.begin(ctx, OpRemove)

	removedID, err := s.api.Remove(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, s.reject(ctx, OpRemove, err))
	}

	var applied bool
	s.fulfill(ctx, OpRemove, func(st *domain.ProductsState) {
		n := len(st.Products)
		st.Products = slices.DeleteFunc(st.Products, func(p domain.Product) bool {
			return p.ID == removedID
		})
		applied = len(st.Products) != n
	})

	if applied {
		s.publish(ctx, domain.ProductChange{
			Action:    domain.ProductRemoved,
			ProductID: removedID,
		})
	}
	return nil
}

func (s *Store) begin(ctx context.Context, o Op) {
	s.mutate(ctx, func(st *domain.ProductsState) {
		s.inFlight[o]++
		st.Loading = true
		st.Error = ""
	})
}

func (s *Store) fulfill(
	ctx context.Context, o Op, apply func(*domain.ProductsState),
) {
	s.mutate(ctx, func(st *domain.ProductsState) {
		s.done(st, o)
		apply(st)
	})
}

// reject records the failure and returns err carrying the recorded message.
func (s *Store) reject(ctx context.Context, o Op, err error) error {
	msg := errorMessage(err, o.failureMessage())
	s.log.Error("operation rejected", "op", o.String(), "err", err)

	s.mutate(ctx, func(st *domain.ProductsState) {
		s.done(st, o)
		st.Error = msg
	})
	return &domain.RejectedError{Message: msg, Err: err}
}

// done must be called with mu held.
func (s *Store) done(st *domain.ProductsState, o Op) {
	if s.inFlight[o] > 0 {
		s.inFlight[o]--
	}
	st.Loading = slices.ContainsFunc(s.inFlight[:], func(n int) bool {
		return n > 0
	})
}

// mutate applies fn under the state lock and then notifies the snapshot
// storage and listeners before the next transition may start.
func (s *Store) mutate(ctx context.Context, fn func(*domain.ProductsState)) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	fn(&s.state)
	snapshot := s.state.Clone()
	subs := slices.Clone(s.subs)
	s.mu.Unlock()

	s.persist(ctx, snapshot)
	for _, sub := range subs {
		sub.fn(snapshot.Clone())
	}
}

func (s *Store) persist(ctx context.Context, state domain.ProductsState) {
	const op = "Store.persist"

	if s.snapshots == nil {
		return
	}

	err := s.snapshots.SaveSnapshot(context.WithoutCancel(ctx), state)
	if err != nil {
		s.log.Warn("failed to save state", "op", op, "err", err)
	}
}

func (s *Store) publish(ctx context.Context, c domain.ProductChange) {
	const op = "Store.publish"

	if s.publisher == nil {
		return
	}

	// The state change is already applied, so the caller's cancellation must
	// not drop the event. The timeout keeps an unreachable broker from
	// holding the operation.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	err := s.publisher.PublishChange(ctx, c)
	if err != nil {
		s.log.Warn("failed to publish product change",
			"op", op, "action", c.Action, "productID", c.ProductID, "err", err)
	}
}

// resolveID must be called with mu held.
func (s *Store) resolveID(st domain.ProductsState, id int64) int64 {
	for id == 0 || st.Has(id) {
		id = s.ids.NextID()
	}
	return id
}

// uniqueByID drops every product whose identifier was already seen.
func uniqueByID(st domain.ProductsState) domain.ProductsState {
	seen := make(map[int64]struct{}, len(st.Products))
	st.Products = slices.DeleteFunc(slices.Clone(st.Products), func(p domain.Product) bool {
		if _, ok := seen[p.ID]; ok {
			return true
		}
		seen[p.ID] = struct{}{}
		return false
	})
	if st.Products == nil {
		st.Products = []domain.Product{}
	}
	return st
}

type messenger interface {
	UserMessage() string
}

func errorMessage(err error, fallback string) string {
	var m messenger
	if errors.As(err, &m) {
		if msg := m.UserMessage(); msg != "" {
			return msg
		}
	}
	return fallback
}
