// Package cli is the command line dispatch surface of the store.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/niksmo/inventory/internal/core/domain"
	"github.com/niksmo/inventory/internal/core/port"
	"github.com/niksmo/inventory/internal/core/selector"
	"github.com/spf13/pflag"
)

var ErrUsage = errors.New("usage error")

const usage = `Usage: inventory [--config FILE] <command> [flags]

Commands:
  fetch               reload products from the remote catalog
  list                show products (--search --category --sort --order)
  categories          show distinct categories
  summary             show catalog totals
  add                 create a product (--title --price ...)
  update ID           change a product (flags as for add)
  delete ID           remove a product
  state               print the full state as JSON
  serve               run the HTTP dispatch surface
  watch               print catalog changes from the change feed
`

// ServeFunc blocks serving the store until ctx is done.
type ServeFunc func(ctx context.Context) error

// WatchFunc blocks passing catalog changes to fn until ctx is done.
type WatchFunc func(ctx context.Context, fn func(domain.ProductChange)) error

type Opt func(*CLI)

func ServeOpt(fn ServeFunc) Opt {
	return func(c *CLI) { c.serve = fn }
}

func WatchOpt(fn WatchFunc) Opt {
	return func(c *CLI) { c.watch = fn }
}

type CLI struct {
	store port.ProductsStore
	out   io.Writer
	serve ServeFunc
	watch WatchFunc
}

func New(store port.ProductsStore, out io.Writer, opts ...Opt) CLI {
	c := CLI{store: store, out: out}
	for _, o := range opts {
		o(&c)
	}
	return c
}

// Usage writes the command overview to w.
func Usage(w io.Writer) {
	_, _ = io.WriteString(w, usage)
}

// Run executes the command named by args[0].
func (c CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		Usage(c.out)
		return ErrUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "fetch":
		return c.fetch(ctx, rest)
	case "list":
		return c.list(ctx, rest)
	case "categories":
		return c.categories(ctx, rest)
	case "summary":
		return c.summary(ctx, rest)
	case "add":
		return c.add(ctx, rest)
	case "update":
		return c.update(ctx, rest)
	case "delete":
		return c.remove(ctx, rest)
	case "state":
		return c.printState(rest)
	case "serve":
		if c.serve == nil {
			return fmt.Errorf("%w: serve is not available", ErrUsage)
		}
		return c.serve(ctx)
	case "watch":
		return c.watchChanges(ctx, rest)
	case "help", "-h", "--help":
		Usage(c.out)
		return nil
	}
	Usage(c.out)
	return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUsage, fs.Name(), err)
	}
	return nil
}

func (c CLI) fetch(ctx context.Context, args []string) error {
	fs := newFlagSet("fetch")
	ifEmpty := fs.Bool("if-empty", false, "fetch only when no products are held")
	if err := parse(fs, args); err != nil {
		return err
	}

	fetch := c.store.FetchAll
	if *ifEmpty {
		fetch = c.store.EnsureLoaded
	}
	if err := fetch(ctx); err != nil {
		return c.failed(err)
	}
	_, err := fmt.Fprintf(c.out, "Products (%d)\n", len(c.store.State().Products))
	return err
}

func (c CLI) list(ctx context.Context, args []string) error {
	fs := newFlagSet("list")
	search := fs.String("search", "", "search in title and description")
	category := fs.String("category", "", `category filter, "all" clears it`)
	sortBy := fs.String("sort", "", "sort key: name, price or category")
	order := fs.String("order", "", "sort order: asc or desc")
	if err := parse(fs, args); err != nil {
		return err
	}

	if fs.Changed("sort") {
		key, err := domain.ParseSortKey(*sortBy)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUsage, err)
		}
		c.store.SetSortBy(key)
	}
	if fs.Changed("order") {
		o, err := domain.ParseSortOrder(*order)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUsage, err)
		}
		c.store.SetSortOrder(o)
	}
	if fs.Changed("search") {
		c.store.SetSearchTerm(*search)
	}
	if fs.Changed("category") {
		c.store.SetSelectedCategory(*category)
	}

	if err := c.store.EnsureLoaded(ctx); err != nil {
		return c.failed(err)
	}

	visible := selector.VisibleProducts(c.store.State())
	if _, err := fmt.Fprintf(c.out, "Products (%d)\n", len(visible)); err != nil {
		return err
	}
	return writeProducts(c.out, visible)
}

func (c CLI) categories(ctx context.Context, args []string) error {
	if err := parse(newFlagSet("categories"), args); err != nil {
		return err
	}
	if err := c.store.EnsureLoaded(ctx); err != nil {
		return c.failed(err)
	}
	for _, cat := range selector.Categories(c.store.State().Products) {
		if _, err := fmt.Fprintln(c.out, cat); err != nil {
			return err
		}
	}
	return nil
}

func (c CLI) summary(ctx context.Context, args []string) error {
	if err := parse(newFlagSet("summary"), args); err != nil {
		return err
	}
	if err := c.store.EnsureLoaded(ctx); err != nil {
		return c.failed(err)
	}

	s := selector.Summarize(c.store.State().Products)
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Products\t%d\n", s.Products)
	fmt.Fprintf(tw, "Categories\t%d\n", s.Categories)
	fmt.Fprintf(tw, "Total value\t$%s\n", s.TotalValue.StringFixed(2))
	fmt.Fprintf(tw, "Average rating\t%s\n", s.AverageRating.StringFixed(2))
	return tw.Flush()
}

type draftFlags struct {
	fs          *pflag.FlagSet
	title       *string
	price       *float64
	description *string
	category    *string
	image       *string
	rate        *float64
	count       *int
}

func newDraftFlags(name string) draftFlags {
	fs := newFlagSet(name)
	return draftFlags{
		fs:          fs,
		title:       fs.String("title", "", "product title"),
		price:       fs.Float64("price", 0, "product price"),
		description: fs.String("description", "", "product description"),
		category: fs.String("category", "",
			"product category, e.g. "+strings.Join(domain.KnownCategories, ", ")),
		image: fs.String("image", "", "image URL"),
		rate:  fs.Float64("rate", domain.DefaultRating.Rate, "rating 0..5"),
		count: fs.Int("count", domain.DefaultRating.Count, "rating count"),
	}
}

// apply overrides the fields of d whose flags were set.
func (f draftFlags) apply(d domain.ProductDraft) domain.ProductDraft {
	if f.fs.Changed("title") {
		d.Title = *f.title
	}
	if f.fs.Changed("price") {
		d.Price = *f.price
	}
	if f.fs.Changed("description") {
		d.Description = *f.description
	}
	if f.fs.Changed("category") {
		d.Category = *f.category
	}
	if f.fs.Changed("image") {
		d.Image = *f.image
	}
	if f.fs.Changed("rate") {
		d.Rating.Rate = *f.rate
	}
	if f.fs.Changed("count") {
		d.Rating.Count = *f.count
	}
	return d
}

func (c CLI) add(ctx context.Context, args []string) error {
	f := newDraftFlags("add")
	if err := parse(f.fs, args); err != nil {
		return err
	}

	d := f.apply(domain.ProductDraft{Rating: domain.DefaultRating})
	if err := d.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	p, err := c.store.Create(ctx, d)
	if err != nil {
		return c.failed(err)
	}
	_, err = fmt.Fprintf(c.out, "Added product %d\n", p.ID)
	return err
}

func (c CLI) update(ctx context.Context, args []string) error {
	f := newDraftFlags("update")
	if err := parse(f.fs, args); err != nil {
		return err
	}
	id, err := argID(f.fs)
	if err != nil {
		return err
	}

	st := c.store.State()
	var base domain.ProductDraft
	if i := st.IndexOf(id); i != -1 {
		base = st.Products[i].Draft()
	}
	d := f.apply(base)
	if err := d.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	if _, err := c.store.Update(ctx, d.WithID(id)); err != nil {
		return c.failed(err)
	}
	_, err = fmt.Fprintf(c.out, "Updated product %d\n", id)
	return err
}

func (c CLI) remove(ctx context.Context, args []string) error {
	fs := newFlagSet("delete")
	if err := parse(fs, args); err != nil {
		return err
	}
	id, err := argID(fs)
	if err != nil {
		return err
	}

	if err := c.store.Remove(ctx, id); err != nil {
		return c.failed(err)
	}
	_, err = fmt.Fprintf(c.out, "Deleted product %d\n", id)
	return err
}

func (c CLI) printState(args []string) error {
	if err := parse(newFlagSet("state"), args); err != nil {
		return err
	}
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(c.store.State())
}

func (c CLI) watchChanges(ctx context.Context, args []string) error {
	if err := parse(newFlagSet("watch"), args); err != nil {
		return err
	}
	if c.watch == nil {
		return fmt.Errorf("%w: watch needs broker.seed_brokers", ErrUsage)
	}
	return c.watch(ctx, func(pc domain.ProductChange) {
		fmt.Fprintf(c.out, "%s\t%s\t%d\t%s\t%s\n",
			pc.OccurredAt.Format(time.RFC3339), pc.Action, pc.ProductID,
			pc.Product.Title, selector.FormatPrice(pc.Product.Price))
	})
}

// failed reports the message the store recorded and clears it, the way a
// dashboard dismisses a shown error.
func (c CLI) failed(err error) error {
	msg := domain.RejectionMessage(err)
	c.store.ClearError()
	if msg == "" {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func argID(fs *pflag.FlagSet) (int64, error) {
	if fs.NArg() != 1 {
		return 0, fmt.Errorf("%w: %s needs exactly one product ID", ErrUsage, fs.Name())
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid product ID %q", ErrUsage, fs.Arg(0))
	}
	return id, nil
}

func writeProducts(w io.Writer, ps []domain.Product) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tPRICE\tRATING\tSTOCK")
	for _, p := range ps {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.1f (%d)\t%s\n",
			p.ID, p.Title, p.Category, selector.FormatPrice(p.Price),
			p.Rating.Rate, p.Rating.Count, selector.StockOf(p))
	}
	return tw.Flush()
}
