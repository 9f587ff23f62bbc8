package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/niksmo/storefront/config"
	"github.com/niksmo/storefront/internal/adapter/catalog"
	"github.com/niksmo/storefront/internal/adapter/httphandler"
	"github.com/niksmo/storefront/internal/adapter/kafka"
	"github.com/niksmo/storefront/internal/adapter/storage"
	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/niksmo/storefront/internal/core/service"
	"github.com/niksmo/storefront/pkg/retry"
	"github.com/niksmo/storefront/pkg/schema"
	"github.com/twmb/franz-go/pkg/sr"
)

type ordersProducer interface {
	port.OrdersProducer
	Close()
}

type App struct {
	ctx            context.Context
	cfg            config.Config
	products       []domain.Product
	ordersStorage  port.OrdersStorage
	ordersProducer ordersProducer
	service        *service.Service
	httpServer     httphandler.HTTPServer
	stopInit       context.CancelFunc
	initDone       <-chan struct{}
}

func New(ctx context.Context, cfg config.Config) *App {
	app := &App{ctx: ctx, cfg: cfg}

	app.initLogger()
	app.initStorage()
	app.initCatalog()
	app.initProducer()
	app.initCoreService()
	app.initInboundAdapters()

	return app
}

func (app *App) initLogger() {
	opts := &slog.HandlerOptions{Level: app.cfg.LogLevel}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, opts))
	slog.SetDefault(logger)
}

// initStorage keeps a failed storage in place and reopens it in the
// background. Until then it stays uninitialized and every order operation
// reports it, while the storefront keeps serving.
func (app *App) initStorage() {
	const op = "App.initStorage"
	log := slog.With("op", op)

	switch app.cfg.Storage.Driver {
	case config.DriverPostgres:
		app.ordersStorage = storage.NewPostgresOrders(app.cfg.Storage.PostgresDSN)
	default:
		app.ordersStorage = storage.NewLevelDBOrders(app.cfg.Storage.LevelDBPath)
	}

	err := app.ordersStorage.Init(app.ctx)
	if err == nil {
		return
	}
	log.Error("failed to init orders storage, retrying in background",
		"driver", app.cfg.Storage.Driver, "err", err)

	ctx, cancel := context.WithCancel(app.ctx)
	app.stopInit = cancel
	app.initDone = keepInitializing(ctx, app.ordersStorage, initBackoff)
}

var initBackoff = retry.CappedBackoff(
	retry.ExponentialBackoff(500*time.Millisecond), 10*time.Second,
)

// keepInitializing retries Init until it succeeds or ctx is done. The
// returned channel is closed when it stops.
func keepInitializing(
	ctx context.Context, s port.OrdersStorage, backoff retry.Backoff,
) <-chan struct{} {
	const op = "App.keepInitializing"
	log := slog.With("op", op)

	done := make(chan struct{})
	go func() {
		defer close(done)
		err := retry.Do(ctx, retry.RetryConfig{
			MaxAttempts: retry.Unlimited,
			Backoff:     backoff,
		}, func() error {
			return s.Init(ctx)
		})
		if err != nil {
			log.Warn("orders storage is not initialized", "err", err)
			return
		}
		log.Info("orders storage is initialized")
	}()
	return done
}

func (app *App) initCatalog() {
	const op = "App.initCatalog"
	log := slog.With("op", op)

	l := catalog.NewLoader(app.cfg.Catalog.Source)
	products, err := l.LoadProducts(app.ctx)
	if err != nil {
		log.Error("failed to load catalog, listing is empty",
			"source", app.cfg.Catalog.Source, "err", err)
		return
	}
	app.products = products
}

func (app *App) initProducer() {
	const op = "App.initProducer"

	if !app.cfg.Broker.Enabled {
		app.ordersProducer = kafka.NopOrdersProducer{}
		return
	}

	ctx := app.ctx
	topic := app.cfg.Broker.OrdersTopic

	srClient, err := sr.NewClient(sr.URLs(app.cfg.Broker.SchemaRegistryURLs...))
	if err != nil {
		app.fallDown(op, err)
	}

	serde, err := schema.NewSerdeOrderConfirmedV1(
		ctx,
		schema.SubjectOpt(topic+"-value"),
		schema.SchemaIdentifierOpt(schema.NewSchemaCreater(srClient)),
	)
	if err != nil {
		app.fallDown(op, err)
	}

	p, err := kafka.NewOrdersProducer(
		kafka.ProducerClientOpt(ctx, app.cfg.Broker.SeedBrokers, topic),
		kafka.ProducerEncoderOpt(serde),
	)
	if err != nil {
		app.fallDown(op, err)
	}
	app.ordersProducer = p
}

func (app *App) initCoreService() {
	app.service = service.New(
		app.products,
		domain.NewCart(),
		app.ordersStorage,
		app.ordersProducer,
		service.TotalPrecisionOpt(app.cfg.UI.TotalPrecision),
	)
}

func (app *App) initInboundAdapters() {
	handler := httphandler.NewRoutes(app.service, app.service,
		httphandler.RoutesConfig{
			ConfirmationTTL: app.cfg.UI.ConfirmationTTL,
			ImagesDir:       app.cfg.Catalog.ImagesDir,
		},
	)

	app.httpServer = httphandler.NewHTTPServer(httphandler.ServerConfig{
		Addr:              app.cfg.HTTP.Addr,
		RequestTimeout:    app.cfg.HTTP.RequestTimeout,
		ReadHeaderTimeout: app.cfg.HTTP.ReadHeaderTimeout,
		IdleTimeout:       app.cfg.HTTP.IdleTimeout,
	}, handler)
}

func (app *App) Run(stopFn context.CancelFunc) {
	go app.httpServer.Run(stopFn)

	slog.Info("application is running")
}

func (app *App) Close(ctx context.Context) {
	slog.Info("application is closing...")

	app.httpServer.Close(ctx)
	app.service.Close()
	app.ordersProducer.Close()

	if app.stopInit != nil {
		app.stopInit()
		select {
		case <-app.initDone:
		case <-ctx.Done():
		}
	}
	app.ordersStorage.Close()

	slog.Info("application is closed")
}

func (app *App) fallDown(op string, err error) {
	panic(fmt.Errorf("%s: %w", op, err))
}
