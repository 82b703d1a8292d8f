package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/niksmo/inventory/config"
	"github.com/niksmo/inventory/internal/adapter"
	"github.com/niksmo/inventory/internal/adapter/httphandler"
	"github.com/niksmo/inventory/internal/adapter/kafka"
	"github.com/niksmo/inventory/internal/adapter/productapi"
	"github.com/niksmo/inventory/internal/adapter/storage"
	"github.com/niksmo/inventory/internal/core/domain"
	"github.com/niksmo/inventory/internal/core/port"
	"github.com/niksmo/inventory/internal/core/store"
	"github.com/niksmo/inventory/pkg/idgen"
	"github.com/niksmo/inventory/pkg/schema"
	"github.com/twmb/franz-go/pkg/sr"
	"golang.org/x/sync/errgroup"
)

const closeTimeout = 5 * time.Second

type snapshotStorage interface {
	port.SnapshotStorage
	Close()
}

type App struct {
	ctx        context.Context
	cfg        config.Config
	ids        idgen.Snowflake
	api        productapi.Client
	snapshots  snapshotStorage
	changeFeed *kafka.ChangeProducer
	store      *store.Store
	httpServer httphandler.HTTPServer
}

func New(ctx context.Context, cfg config.Config) *App {
	app := &App{ctx: ctx, cfg: cfg}

	app.initLogger()
	app.initIDs()
	app.initOutboundAdapters()
	app.initStore()
	app.initInboundAdapters()

	return app
}

func (app *App) initLogger() {
	opts := &slog.HandlerOptions{Level: app.cfg.LogLevel}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, opts))
	slog.SetDefault(logger)
}

func (app *App) initIDs() {
	const op = "App.initIDs"

	ids, err := idgen.NewSnowflake(app.cfg.NodeID)
	if err != nil {
		app.fallDown(op, err)
	}
	app.ids = ids
}

func (app *App) initOutboundAdapters() {
	app.initProductsAPI()
	app.initSnapshotStorage()
	if app.cfg.ChangeFeedEnabled() {
		app.initChangeFeed()
	}
}

func (app *App) initProductsAPI() {
	const op = "App.initProductsAPI"

	api, err := productapi.New(productapi.BaseURLOpt(app.cfg.API.BaseURL))
	if err != nil {
		app.fallDown(op, err)
	}
	app.api = api
}

func (app *App) initSnapshotStorage() {
	const op = "App.initSnapshotStorage"
	cfg := app.cfg.Storage

	codec, err := storage.CodecByName(cfg.Codec)
	if err != nil {
		app.fallDown(op, err)
	}
	opts := []storage.Opt{
		storage.KeyOpt(cfg.Key),
		storage.CodecOpt(codec),
		storage.OpenAttemptsOpt(max(cfg.OpenAttempts, 1)),
	}

	switch cfg.Driver {
	case "postgres":
		s, err := storage.NewSQLStorage(app.ctx, cfg.DSN, opts...)
		if err != nil {
			app.fallDown(op, err)
		}
		app.snapshots = s
	default:
		s, err := storage.OpenLevelDB(app.ctx, cfg.Path, opts...)
		if err != nil {
			app.fallDown(op, err)
		}
		app.snapshots = s
	}
}

func (app *App) initChangeFeed() {
	const op = "App.initChangeFeed"
	cfg := app.cfg.Broker

	encoder := app.changeSerde()

	tlsCfg, err := adapter.MakeTLSConfig(cfg.TLS.CA, cfg.TLS.Cert, cfg.TLS.Key)
	if err != nil {
		app.fallDown(op, err)
	}

	p, err := kafka.NewChangeProducer(
		kafka.ProducerClientOpt(app.ctx, cfg.SeedBrokers, cfg.Topic, tlsCfg),
		kafka.ProducerEncoderOpt(encoder),
	)
	if err != nil {
		app.fallDown(op, err)
	}
	app.changeFeed = &p
}

// changeSerde frames change events for the schema registry when one is
// configured and falls back to plain Avro otherwise.
func (app *App) changeSerde() schema.Serde {
	const op = "App.changeSerde"
	urls := app.cfg.Broker.SchemaRegistryURLs

	if len(urls) == 0 {
		return schema.NewPlainSerde(schema.ProductChangeV1Avro())
	}

	srClient, err := sr.NewClient(sr.URLs(urls...))
	if err != nil {
		app.fallDown(op, err)
	}

	serde, err := schema.NewSerdeProductChangeV1(
		app.ctx,
		schema.SubjectOpt(app.cfg.Broker.Topic+"-value"),
		schema.SchemaIdentifierOpt(schema.NewRegistryIdentifier(srClient)),
	)
	if err != nil {
		app.fallDown(op, err)
	}
	return serde
}

func (app *App) initStore() {
	const op = "App.initStore"

	opts := []store.Opt{
		store.SnapshotStorageOpt(app.snapshots),
		store.IDGeneratorOpt(app.ids),
		store.LoggerOpt(slog.Default()),
		store.PublishTimeoutOpt(app.cfg.Broker.PublishTimeout),
	}
	if app.changeFeed != nil {
		opts = append(opts, store.ChangePublisherOpt(app.changeFeed))
	}

	s, err := store.New(app.ctx, app.api, opts...)
	if err != nil {
		app.fallDown(op, err)
	}
	app.store = s
}

func (app *App) initInboundAdapters() {
	handler := httphandler.NewHandler(app.store)
	app.httpServer = httphandler.NewHTTPServer(app.cfg.HTTPServerAddr, handler)
}

// Store returns the products store for the presentation adapters.
func (app *App) Store() port.ProductsStore {
	return app.store
}

// Serve runs the HTTP dispatch surface until ctx is done or the server
// fails. The catalog is loaded in the background when no products are held.
func (app *App) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(app.httpServer.Run)

	g.Go(func() error {
		<-gctx.Done()
		closeCtx, cancel := context.WithTimeout(
			context.WithoutCancel(ctx), closeTimeout,
		)
		defer cancel()
		app.httpServer.Close(closeCtx)
		return nil
	})

	g.Go(func() error {
		if err := app.store.EnsureLoaded(gctx); err != nil {
			slog.Warn("initial catalog load failed", "err", err)
		}
		return nil
	})

	slog.Info("application is running")
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Watch tails the change feed and passes every change to fn until ctx is
// done.
func (app *App) Watch(ctx context.Context, fn func(domain.ProductChange)) error {
	const op = "App.Watch"
	cfg := app.cfg.Broker

	if !app.cfg.ChangeFeedEnabled() {
		return fmt.Errorf("%s: change feed is disabled", op)
	}

	tlsCfg, err := adapter.MakeTLSConfig(cfg.TLS.CA, cfg.TLS.Cert, cfg.TLS.Key)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	c, err := kafka.NewChangeConsumer(
		kafka.ConsumerClientOpt(cfg.SeedBrokers, cfg.Topic, tlsCfg),
		kafka.ConsumerDecoderOpt(app.changeSerde()),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer c.Close()

	c.Run(ctx, fn)
	return nil
}

func (app *App) Close() {
	slog.Info("application is closing...")

	if app.changeFeed != nil {
		app.changeFeed.Close()
	}
	app.snapshots.Close()

	slog.Info("application is closed")
}

func (app *App) fallDown(op string, err error) {
	panic(fmt.Errorf("%s: %w", op, err))
}
