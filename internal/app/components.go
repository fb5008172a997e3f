package app

import (
	"context"
	"slices"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/beautivra/internal/domain/catalog"
	"github.com/xenking/beautivra/internal/domain/checkout"
	"github.com/xenking/beautivra/internal/domain/order"
	"github.com/xenking/beautivra/internal/domain/pricing"
	"github.com/xenking/beautivra/internal/events"
	"github.com/xenking/beautivra/internal/storage/mongodb"
	"github.com/xenking/beautivra/internal/storage/postgres"
	rediscache "github.com/xenking/beautivra/internal/storage/redis"
	stripegw "github.com/xenking/beautivra/internal/stripe"
)

// Components are the collaborators shared by the API server and shopctl.
type Components struct {
	Pool  *pgxpool.Pool
	Mongo *mongodb.Store
	// Redis is nil when the product cache is disabled.
	Redis redis.UniversalClient

	Catalog  *catalog.Service
	Ledger   *order.Ledger
	Checkout *checkout.Service

	closers []func(ctx context.Context) error
	names   []string
}

// Open connects to every backing service and builds the domain services.
// Close must be called when Open succeeds.
func Open(ctx context.Context, lg *zap.Logger, cfg *Config, mp metric.MeterProvider) (_ *Components, rerr error) {
	c := &Components{}
	defer func() {
		if rerr != nil {
			c.Close(ctx, lg)
		}
	}()

	rates, err := cfg.Pricing.Rates()
	if err != nil {
		return nil, errors.Wrap(err, "pricing rates")
	}

	// Order ledger.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	c.Pool = pool
	c.onClose("postgres", func(context.Context) error { pool.Close(); return nil })
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return nil, errors.Wrap(err, "run migrations")
	}

	// Catalog.
	db, err := mongodb.Connect(ctx, cfg.Mongo.URL, cfg.Mongo.Database)
	if err != nil {
		return nil, errors.Wrap(err, "connect mongo")
	}
	c.Mongo = mongodb.NewStore(db)
	c.onClose("mongo", c.Mongo.Close)
	catalogRepo := mongodb.NewCatalogRepository(c.Mongo)
	if err := catalogRepo.EnsureIndexes(ctx); err != nil {
		return nil, errors.Wrap(err, "ensure catalog indexes")
	}

	var cache catalog.ProductCache
	if cfg.Redis.Addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		c.Redis = client
		c.onClose("redis", func(context.Context) error { return client.Close() })
		cache = rediscache.NewProductCache(client)
	} else {
		lg.Info("Product cache disabled")
	}
	c.Catalog = catalog.NewService(catalogRepo, cache)

	// Checkout.
	var publisher checkout.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		p := events.NewPublisher(events.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		c.onClose("kafka", func(context.Context) error { return p.Close() })
		publisher = p
	} else {
		lg.Info("Order events disabled")
	}

	gateway, err := stripegw.NewGateway(stripegw.Config{
		APIKey:        cfg.Stripe.APIKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		BaseURL:       cfg.Stripe.BaseURL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create stripe gateway")
	}
	if cfg.Stripe.WebhookSecret == "" {
		lg.Warn("Stripe webhook secret is not set, webhooks will be rejected")
	}

	c.Ledger = order.NewLedger(postgres.NewOrderRepository(pool), pricing.NewEngine(rates))
	c.Checkout, err = checkout.NewService(checkout.Config{
		Currency:        cfg.Stripe.Currency,
		ProviderTimeout: cfg.Stripe.Timeout,
		Publisher:       publisher,
		MeterProvider:   mp,
	}, c.Ledger, postgres.NewPaymentRepository(pool), gateway)
	if err != nil {
		return nil, errors.Wrap(err, "create checkout service")
	}

	return c, nil
}

func (c *Components) onClose(name string, fn func(ctx context.Context) error) {
	c.names = append(c.names, name)
	c.closers = append(c.closers, fn)
}

// Close releases collaborators in reverse order of opening.
func (c *Components) Close(ctx context.Context, lg *zap.Logger) {
	for i, fn := range slices.Backward(c.closers) {
		if err := fn(ctx); err != nil {
			lg.Error("Close failed", zap.String("component", c.names[i]), zap.Error(err))
		}
	}
	c.closers, c.names = nil, nil
}
