package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	goredis "github.com/redis/go-redis/v9"

	"rentcancel/internal/app/commands"
	"rentcancel/internal/app/dto"
	bookingapp "rentcancel/internal/app/handlers/booking"
	"rentcancel/internal/app/middleware"
	appoutbox "rentcancel/internal/app/outbox"
	"rentcancel/internal/app/policies"
	"rentcancel/internal/app/queries"
	"rentcancel/internal/app/reconcile"
	"rentcancel/internal/app/services/auth"
	"rentcancel/internal/app/uow"
	domainauth "rentcancel/internal/domain/auth"
	"rentcancel/internal/infra/broker/kafka"
	rediscache "rentcancel/internal/infra/cache/redis"
	"rentcancel/internal/infra/config"
	mongodb "rentcancel/internal/infra/db/mongo"
	ginserver "rentcancel/internal/infra/http/gin"
	"rentcancel/internal/infra/inbox"
	"rentcancel/internal/infra/obs"
	infraoutbox "rentcancel/internal/infra/outbox"
	"rentcancel/internal/infra/payments/ledger"
	"rentcancel/internal/infra/payments/midtrans"
	"rentcancel/internal/infra/security"
	"rentcancel/internal/infra/storage/memory"
)

const inboxRetention = 7 * 24 * time.Hour

type eventStore interface {
	appoutbox.Outbox
	infraoutbox.Source
}

type backgroundTask struct {
	name string
	run  func(ctx context.Context) error
}

type application struct {
	handlers   ginserver.Handlers
	health     obs.HealthHandlers
	background []backgroundTask
	auth       *auth.Service
	logger     *slog.Logger

	// memoryStore is set only for DATA_BACKEND=memory and receives fixtures.
	memoryStore *memory.Store
	closers     []func(context.Context) error
}

func (a *application) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{logger: logger, health: obs.HealthHandlers{Checks: map[string]obs.Check{}}}
	fail := func(err error) (*application, error) {
		app.close(context.Background())
		return nil, err
	}

	var (
		factory   uow.UoWFactory
		events    eventStore
		idemStore middleware.IdempotencyStore
		sessions  domainauth.SessionStore
		dedupe    kafka.Inbox
		redis     *goredis.Client
	)

	switch cfg.DataBackend {
	case config.BackendMongo:
		client, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return fail(fmt.Errorf("connect mongo: %w", err))
		}
		app.closers = append(app.closers, client.Close)
		app.health.Checks["mongo"] = client.Ping
		factory = mongodb.Factory{
			DB:           client.DB,
			ListingsRepo: mongodb.NewListingRepository(client.DB),
			BookingRepo:  mongodb.NewBookingRepository(client.DB),
		}
		events = infraoutbox.NewStore(client.DB)
		store, err := inbox.NewStore(ctx, client.DB, cfg.KafkaConsumerGroup, inboxRetention)
		if err != nil {
			return fail(fmt.Errorf("prepare inbox: %w", err))
		}
		dedupe = store
		if cfg.IdempotencyBackend == config.BackendMongo {
			idemStore = mongodb.NewIdempotencyStore(client.DB, cfg.IdempotencyTTL)
		}
	default:
		store := memory.NewStore()
		app.memoryStore = store
		factory = memory.Factory{Store: store}
		events = memory.NewOutbox(store)
		if cfg.IdempotencyBackend == config.BackendMemory {
			idemStore = memory.NewIdempotencyStore(cfg.IdempotencyTTL)
		}
	}

	if cfg.UsesRedis() {
		client, err := rediscache.Connect(ctx, rediscache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			return fail(fmt.Errorf("connect redis: %w", err))
		}
		redis = client
		app.closers = append(app.closers, func(context.Context) error { return client.Close() })
		app.health.Checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	if cfg.IdempotencyBackend == config.BackendRedis {
		idemStore = rediscache.NewIdempotencyStore(redis, "rentcancel:idem:", cfg.IdempotencyTTL)
	}
	if cfg.SessionBackend == config.BackendRedis {
		sessions = rediscache.NewSessionStore(redis, "rentcancel:session:")
	} else {
		sessions = memory.NewSessionStore()
	}

	payments, err := buildPayments(cfg, logger)
	if err != nil {
		return fail(err)
	}
	if l, ok := payments.(*ledger.Ledger); ok {
		app.closers = append(app.closers, func(context.Context) error { return l.Close() })
	}

	encoder := appoutbox.JSONEventEncoder{}
	cancelHandler := &bookingapp.CancelBookingHandler{
		UoWFactory:           factory,
		Payments:             payments,
		Outbox:               events,
		Encoder:              encoder,
		Logger:               logger,
		DeferOnProviderError: cfg.DeferOnProviderErr,
	}
	settleHandler := &bookingapp.SettleDeferredRefundHandler{
		UoWFactory: factory,
		Payments:   payments,
		Outbox:     events,
		Encoder:    encoder,
		Logger:     logger,
	}
	previewHandler := &bookingapp.PreviewRefundHandler{UoWFactory: factory}

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler[bookingapp.CancelBookingCommand, *dto.CancellationResult](commandBus, bookingapp.CancelBookingCommand{}.Key(), cancelHandler)
	commands.RegisterHandler[bookingapp.SettleDeferredRefundCommand, *dto.RefundSettlement](commandBus, bookingapp.SettleDeferredRefundCommand{}.Key(), settleHandler)

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler[bookingapp.PreviewRefundQuery, dto.RefundPreview](queryBus, bookingapp.PreviewRefundQuery{}.Key(), previewHandler)

	commandBusWithMiddleware := middleware.ChainCommands(
		commandBus,
		middleware.Validation(),
		middleware.Logging(logger),
		middleware.Idempotency(idemStore, middleware.JSONResultCodec{}),
		middleware.OutboxFlush(events),
		middleware.Transaction(factory, nil),
	)
	queryBusWithMiddleware := middleware.ChainQueries(queryBus, middleware.QueryValidation())

	app.auth = &auth.Service{
		Sessions:   sessions,
		Tokens:     security.RandomTokenGenerator{},
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	}
	app.handlers = ginserver.Handlers{
		Booking: ginserver.BookingHandler{
			Commands: commandBusWithMiddleware,
			Queries:  queryBusWithMiddleware,
			Logger:   logger,
		},
		AuthMiddleware: ginserver.AuthMiddleware{Service: app.auth, Logger: logger}.Handle,
	}

	producer, err := buildProducer(cfg, logger)
	if err != nil {
		return fail(err)
	}
	if closer, ok := producer.(interface{ Close() error }); ok {
		app.closers = append(app.closers, func(context.Context) error { return closer.Close() })
	}
	outboxWorker := &infraoutbox.Worker{
		Source:      events,
		Producer:    producer,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Backoff:     cfg.RetryBackoff,
		Logger:      logger,
	}
	reconciler := &reconcile.Worker{
		UoWFactory: factory,
		Bus:        commandBusWithMiddleware,
		Interval:   cfg.ReconcileInterval,
		BatchSize:  cfg.ReconcileBatchSize,
		Logger:     logger,
	}
	app.background = append(app.background,
		backgroundTask{name: "outbox", run: outboxWorker.Run},
		backgroundTask{name: "reconcile", run: reconciler.Run},
	)

	if len(cfg.KafkaBrokers) > 0 {
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, nil, &kafka.DeferredRefundHandler{
			Bus:    commandBusWithMiddleware,
			Inbox:  dedupe,
			Logger: logger,
		}, logger)
		if err != nil {
			return fail(fmt.Errorf("kafka consumer: %w", err))
		}
		app.closers = append(app.closers, func(context.Context) error { return consumer.Close() })
		topic := infraoutbox.TopicFor(cfg.KafkaTopicPrefix, "booking.refund_deferred")
		app.background = append(app.background, backgroundTask{
			name: "refund-consumer",
			run:  func(ctx context.Context) error { return consumer.Run(ctx, []string{topic}) },
		})
	}
	return app, nil
}

// buildPayments returns the refund provider, journaled through the bolt
// ledger when LEDGER_PATH is set.
func buildPayments(cfg config.Config, logger *slog.Logger) (policies.PaymentsPort, error) {
	var provider policies.PaymentsPort
	switch cfg.PaymentsProvider {
	case config.ProviderMidtrans:
		provider = midtrans.New(midtrans.Options{ServerKey: cfg.MidtransServerKey, Production: cfg.MidtransProduction})
	default:
		provider = memory.NewPayments()
	}
	if cfg.LedgerPath == "" {
		return provider, nil
	}
	l, err := ledger.Open(cfg.LedgerPath, provider)
	if err != nil {
		return nil, fmt.Errorf("open refund ledger: %w", err)
	}
	l.Logger = logger
	return l, nil
}

func buildProducer(cfg config.Config, logger *slog.Logger) (infraoutbox.Producer, error) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("no kafka brokers configured, events are logged only")
		return infraoutbox.LogProducer{Logger: logger}, nil
	}
	kcfg := sarama.NewConfig()
	kcfg.ClientID = "rentcancel"
	p, err := kafka.NewProducer(cfg.KafkaBrokers, kcfg)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return p, nil
}
