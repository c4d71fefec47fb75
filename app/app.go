// Package app assembles the services from configuration. It is shared by the
// HTTP server and the quotectl command.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/AnTengye/rollingquote/config"
	"github.com/AnTengye/rollingquote/pkg/logger"
	"github.com/AnTengye/rollingquote/pkg/metrics"
	"github.com/AnTengye/rollingquote/service"
	"github.com/AnTengye/rollingquote/service/postgres"
	"github.com/AnTengye/rollingquote/service/pricing"
)

type App struct {
	Config     *config.Config
	Metrics    *metrics.Registry
	Engine     *pricing.Engine
	Orders     *service.OrderStore
	Documents  *service.MinioService
	Quotes     *service.QuoteService
	Checkout   *service.CheckoutService
	Reconciler *service.Reconciler

	closers []io.Closer
}

// Engine builds the pricing engine from the configured schedule.
func Engine(cfg config.PricingConfig) (*pricing.Engine, error) {
	schedule := pricing.DefaultSchedule()
	if cfg.RatesFile != "" {
		s, err := pricing.LoadSchedule(cfg.RatesFile)
		if err != nil {
			return nil, err
		}
		schedule = s
	}
	if cfg.Rounding != "" {
		schedule.Rounding = pricing.Rounding(cfg.Rounding)
	}
	return schedule.Engine()
}

// OrderBackend opens the configured order store backend.
func OrderBackend(ctx context.Context, cfg *config.Config) (service.OrderBackend, error) {
	switch cfg.Store.Driver {
	case "pebble":
		backend, err := service.NewPebbleBackend(cfg.Store.PebbleDir)
		if err != nil {
			return nil, err
		}
		return backend, nil
	case "postgres":
		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, cfg.Database.DSN); err != nil {
				return nil, err
			}
		}
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		return postgres.NewOrderRepo(pool), nil
	default:
		return service.NewMemoryBackend(cfg.Store.MaxOrders), nil
	}
}

func notifier(cfg config.NotifyConfig) service.Notifier {
	if cfg.Driver == "sendgrid" {
		return service.NewSendGridNotifier(cfg)
	}
	return service.LogNotifier{}
}

func publisher(cfg config.KafkaConfig, reg *metrics.Registry) service.OrderEventPublisher {
	brokers := cfg.KafkaBrokers()
	if len(brokers) == 0 {
		return service.NopPublisher{}
	}
	return service.NewKafkaPublisher(brokers, cfg.Topic, reg)
}

// Build wires every service. The caller must Close the returned App.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Metrics: metrics.NewRegistry()}

	engine, err := Engine(cfg.Pricing)
	if err != nil {
		return nil, fmt.Errorf("pricing: %w", err)
	}
	a.Engine = engine

	docs, err := service.NewMinioService(&cfg.Minio)
	if err != nil {
		return nil, fmt.Errorf("minio: %w", err)
	}
	if err := docs.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("minio: %w", err)
	}
	a.Documents = docs

	backend, err := OrderBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("order store: %w", err)
	}
	a.Orders = service.NewOrderStore(backend, cfg.Notify.ClaimTTL)
	a.closers = append(a.closers, a.Orders)

	events := publisher(cfg.Kafka, a.Metrics)
	a.closers = append(a.closers, events)

	gateway := service.NewStripeGateway(cfg.Stripe, nil)
	confirm := service.Confirmation{OpsAddress: cfg.Notify.OpsAddress, AttachReceipt: cfg.Notify.AttachReceipt}

	a.Quotes = service.NewQuoteService(docs, engine, a.Orders, a.Metrics, cfg.Quote)
	mailer := notifier(cfg.Notify)
	a.Checkout = service.NewCheckoutService(gateway, engine, a.Orders, events, mailer, confirm, cfg.Notify.SendTimeout, a.Metrics, cfg.Stripe)
	a.Reconciler = service.NewReconciler(gateway, a.Orders, mailer, confirm, events, a.Metrics, cfg.Notify.SendTimeout)

	logger.Info(ctx, "services ready",
		"store", cfg.Store.Driver,
		"notify", cfg.Notify.Driver,
		"kafka", cfg.Kafka.Brokers != "",
		"languages", len(engine.Catalog().Languages()),
	)
	return a, nil
}

// Close releases the store and the event stream, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
