package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/identity"
	"github.com/joao-fontenele/storefront/internal/inventory"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/storefront"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

const serviceName = "storefront"

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load("8081")
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Require("POSTGRES_URL", "JWT_SECRET", "INTERNAL_TOKEN"); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, "0.1.0", cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, "0.1.0")
	if err != nil {
		logger.Error("failed to initialize metrics", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	db, err := telemetry.OpenDB(ctx, cfg.PostgresURL, cfg.DBSchema)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	cache := newCartCache(ctx, cfg, logger)

	carts := cart.NewCartRepository(db)
	products := catalog.NewRepository(db)
	stock := inventory.NewInventoryRepository(db)
	orderRepo := orders.NewOrderRepository(db)

	store := cart.NewStore(carts, products, cache, logger)

	opts := []orders.EngineOption{
		orders.WithCartInvalidator(store),
		orders.WithTimeout(cfg.CheckoutTimeout),
		orders.WithMaxRetries(cfg.CheckoutMaxRetries),
	}
	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers, messaging.TopicOrderPlaced)
		defer func() { _ = producer.Close() }()
		opts = append(opts, orders.WithPublisher(producer))
	} else {
		logger.Warn("KAFKA_BROKERS not set, order events will not be published")
	}

	engine, err := orders.NewEngine(orders.NewSQLUnitOfWork(db, carts, products, stock, orderRepo), orderRepo, logger, opts...)
	if err != nil {
		logger.Error("failed to create order engine", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	storefront.Routes(mux, db, identity.NewJWTResolver(cfg.JWTSecret), cfg.InternalToken, cart.NewHandler(store, logger), orders.NewHandler(engine, logger), logger)
	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(mux, serviceName,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout: 10 * time.Second,
		// Leaves room for a checkout that runs to its own timeout.
		WriteTimeout: cfg.CheckoutTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("starting storefront service", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

func newCartCache(ctx context.Context, cfg config.Config, logger *slog.Logger) cart.Cache {
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set, cart cache disabled")
		return cart.NopCache{}
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, cart cache disabled", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return cart.NopCache{}
	}

	return cart.NewRedisCache(client, cfg.CartCacheTTL)
}
