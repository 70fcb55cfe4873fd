package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/fjod/go_storefront/internal/cache"
	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/checkout"
	"github.com/fjod/go_storefront/internal/consumer"
	h "github.com/fjod/go_storefront/internal/http"
	"github.com/fjod/go_storefront/internal/payment"
	"github.com/fjod/go_storefront/internal/publisher"
	mongorepo "github.com/fjod/go_storefront/internal/repository/mongo"
	"github.com/fjod/go_storefront/internal/repository/orders"
	"github.com/fjod/go_storefront/internal/repository/products"
	"github.com/fjod/go_storefront/internal/stock"
	"github.com/fjod/go_storefront/internal/wishlist"
	"github.com/fjod/go_storefront/pkg/config"
	"github.com/fjod/go_storefront/pkg/logger"
	"github.com/fjod/go_storefront/pkg/shutdown"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{
		Service: "storefront",
		Env:     cfg.AppEnv,
		Level:   cfg.LogLevel,
	})

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("storefront stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("storefront stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	// MongoDB: carts, wishlists, reviews
	mongoDB, err := mongorepo.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		return fmt.Errorf("connect to MongoDB: %w", err)
	}
	defer func() {
		if err := mongoDB.Client().Disconnect(context.Background()); err != nil {
			log.Error("mongo disconnect failed", "error", err)
		}
	}()
	if err := mongorepo.CreateIndexes(ctx, mongoDB); err != nil {
		return fmt.Errorf("create mongo indexes: %w", err)
	}
	log.Info("connected to MongoDB", "uri", cfg.MongoURI, "db", cfg.MongoDBName)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	log.Info("redis ping succeeded", "addr", cfg.RedisAddr)

	creds := &orders.Credentials{
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		DBName:            cfg.DBName,
		MigrationsDirPath: cfg.OrdersMigrationsPath,
	}
	orderRepo, err := orders.NewRepository(creds)
	if err != nil {
		return fmt.Errorf("connect to orders database: %w", err)
	}
	defer orderRepo.Close()
	if err := orderRepo.RunMigrations(creds); err != nil {
		return fmt.Errorf("orders migrations: %w", err)
	}
	log.Info("orders migrations completed")

	catalog, err := products.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer catalog.Close()
	if err := catalog.RunMigrations(cfg.CatalogMigrationsPath); err != nil {
		return fmt.Errorf("catalog migrations: %w", err)
	}
	log.Info("catalog ready", "path", cfg.CatalogDBPath)

	validator := stock.NewValidator(catalog, cfg.StockValidatorParallel, log)
	guests := cache.NewGuestStore(redisClient, cfg.GuestStorageTTL)

	carts := cart.NewStore(mongorepo.NewCartRepository(mongoDB), cache.NewRedisCache(redisClient), guests, validator, log)
	wishlists := wishlist.NewStore(mongorepo.NewWishlistRepository(mongoDB), guests, log)
	reviews := mongorepo.NewReviewRepository(mongoDB)

	processor := newProcessor(cfg, log)
	var intents payment.IntentClient = processor
	if cfg.PaymentIntentURL != "" {
		intents = payment.NewHTTPIntentClient(cfg.PaymentIntentURL, cfg.PaymentTimeout, log)
		log.Info("payment intents via endpoint", "url", cfg.PaymentIntentURL)
	}

	checkoutSvc := checkout.NewService(orderRepo, carts, validator, intents, processor, checkout.Options{
		TaxRate:        cfg.TaxRate,
		PaymentTimeout: cfg.PaymentTimeout,
	}, log)

	brokers := strings.Split(cfg.KafkaBrokers, ",")
	writer := publisher.NewKafkaWriter(cfg.OrderEventsTopic, brokers...)
	poller := publisher.NewOutboxPoller(orderRepo, checkoutSvc, writer, cfg.OutboxPollInterval, log)
	stockConsumer := consumer.NewStockConsumer(catalog,
		consumer.NewKafkaReader(cfg.OrderEventsTopic, cfg.StockConsumerGroup, brokers...), log)

	router := h.NewRouter(h.RouterConfig{
		Products:      h.NewProductHandler(catalog, reviews, cfg.RequestTimeout, log),
		Cart:          h.NewCartHandler(carts, catalog, cfg.RequestTimeout, log),
		Wishlist:      h.NewWishlistHandler(wishlists, catalog, cfg.RequestTimeout, log),
		Session:       h.NewSessionHandler(carts, wishlists, cfg.RequestTimeout, log),
		Checkout:      h.NewCheckoutHandler(checkoutSvc, cfg.RequestTimeout, log),
		Orders:        h.NewOrdersHandler(checkoutSvc, cfg.RequestTimeout, log),
		PaymentIntent: payment.NewIntentHandler(processor, log),
		Health: map[string]h.Pinger{
			"mongo":   pingFunc(func(ctx context.Context) error { return mongoDB.Client().Ping(ctx, nil) }),
			"redis":   pingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
			"orders":  orderRepo,
			"catalog": catalog,
		},
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		SessionTTL:         cfg.GuestStorageTTL,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("storefront HTTP listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
		log.Info("health gRPC listening", "port", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		poller.Run(gctx)
		return writer.Close()
	})

	g.Go(func() error {
		stockConsumer.Run(gctx)
		return stockConsumer.Close()
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		grpcServer.GracefulStop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// newProcessor uses Stripe when a secret key is configured, the sandbox otherwise.
func newProcessor(cfg config.Config, log *slog.Logger) payment.Processor {
	if cfg.StripeSecretKey != "" {
		log.Info("payment processor: stripe")
		return payment.NewStripeProcessor(cfg.StripeSecretKey, nil, log)
	}
	log.Warn("payment processor: sandbox, no STRIPE_SECRET_KEY set")
	return payment.NewSandboxProcessor(payment.RandomStatus{})
}
