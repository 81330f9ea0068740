package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/settlement-service/internal/catalog"
	"github.com/fjod/go_cart/settlement-service/internal/config"
	"github.com/fjod/go_cart/settlement-service/internal/gateway"
	h "github.com/fjod/go_cart/settlement-service/internal/http"
	"github.com/fjod/go_cart/settlement-service/internal/idempotency"
	"github.com/fjod/go_cart/settlement-service/internal/publisher"
	"github.com/fjod/go_cart/settlement-service/internal/repository"
	"github.com/fjod/go_cart/settlement-service/internal/service"
	"github.com/fjod/go_cart/settlement-service/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// orderStore is what both the checkout flow and the order history endpoints
// need from storage.
type orderStore interface {
	service.OrderWriter
	h.OrderReader
	Close() error
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP checkout API and the gRPC health server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log.Info("settlement-service starting", zap.String("order_store", cfg.OrderStore))

	if err := runMigrations(cfg, log); err != nil {
		return err
	}

	// carry W3C trace context from the storefront through to the gateway
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	cat, err := catalog.NewRepository(cfg.Catalog.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer cat.Close()

	store, outbox, err := openOrderStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	guard, closeGuard, err := openGuard(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeGuard()

	// one client, shared by token issuing and sales, so both see the same breaker
	gw := gateway.NewClient(cfg.Gateway.URL, gateway.Credentials{
		MerchantID: cfg.Gateway.MerchantID,
		PublicKey:  cfg.Gateway.PublicKey,
		PrivateKey: cfg.Gateway.PrivateKey,
	}, log)
	tokens := gateway.NewTokenIssuer(gw, cfg.Gateway.Timeout, log, m)
	submitter := gateway.NewSubmitter(gw, cfg.Gateway.Timeout, log, m)

	checkoutService := service.NewCheckoutService(
		service.NewChargeCalculator(cat),
		submitter,
		service.NewOrderRecorder(store, log, m),
		service.WithGuard(guard),
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithOrderWriteTimeout(cfg.OrderWriteTimeout),
	)

	router := h.NewRouter(h.RouterConfig{
		Checkout:       h.NewCheckoutHandler(checkoutService, tokens, cfg.RequestTimeout, cfg.MaxRequestBodySize),
		Orders:         h.NewOrdersHandler(store, cfg.RequestTimeout),
		Metrics:        m,
		Gatherer:       reg,
		Log:            log,
		RequestTimeout: cfg.RequestTimeout,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           otelhttp.NewHandler(router, "settlement-http"),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second, // outlives the handler timeout
		IdleTimeout:       60 * time.Second,
	}

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC port: %w", err)
	}
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	healthServer.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("HTTP server listening", zap.String("port", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info("gRPC health server listening", zap.String("port", cfg.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	if outbox != nil && len(cfg.KafkaBrokers) > 0 {
		poller := publisher.NewOutboxPoller(outbox, cfg.OrdersTopic, log, cfg.KafkaBrokers...)
		g.Go(func() error {
			log.Info("outbox poller started", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.OrdersTopic))
			return poller.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down settlement-service")
		healthServer.Shutdown()

		err := drainHTTP(httpServer, cfg.ShutdownTimeout, log)
		grpcServer.GracefulStop()
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error("settlement-service stopped with error", zap.Error(err))
		return err
	}
	log.Info("settlement-service stopped")
	return nil
}

// drainHTTP waits for in-flight requests to finish. A checkout still running
// when the deadline passes may have been charged without being recorded, so
// that case is logged at error severity before the stores are closed.
func drainHTTP(server *http.Server, timeout time.Duration, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := server.Shutdown(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		log.Error("shutdown deadline passed with requests in flight, reconcile recent gateway sales",
			zap.Duration("shutdown_timeout", timeout))
	}
	return err
}

// openOrderStore connects the configured order store. The outbox is only
// available with Postgres, where it shares the order's transaction.
func openOrderStore(ctx context.Context, cfg *config.Config) (orderStore, repository.OutboxRepository, error) {
	switch cfg.OrderStore {
	case config.OrderStoreMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()

		db, err := repository.ConnectMongoDB(connectCtx, cfg.Mongo.URI, cfg.Mongo.DBName)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewMongoRepository(db)
		if err := repo.CreateIndexes(connectCtx); err != nil {
			_ = repo.Close()
			return nil, nil, fmt.Errorf("failed to create order indexes: %w", err)
		}
		return repo, nil, nil
	default:
		repo, err := repository.NewRepository(postgresCredentials(cfg))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return repo, repo, nil
	}
}

// openGuard returns the Redis duplicate-submission guard, or a guard that
// admits everything when Redis is not configured.
func openGuard(ctx context.Context, cfg *config.Config, log *zap.Logger) (service.SubmissionGuard, func(), error) {
	if cfg.RedisAddr == "" {
		log.Warn("REDIS_ADDR not set, duplicate submissions are not detected")
		return service.NoopGuard{}, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	closeFn := func() {
		if err := client.Close(); err != nil {
			log.Warn("failed to close redis client", zap.Error(err))
		}
	}
	return idempotency.NewRedisGuard(client, cfg.IdempotencyTTL), closeFn, nil
}
