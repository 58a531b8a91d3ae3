package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rl1809/inventory-projection/internal/adapter/bus"
	"github.com/rl1809/inventory-projection/internal/adapter/handler"
	"github.com/rl1809/inventory-projection/internal/adapter/handler/inventoryrpc"
	"github.com/rl1809/inventory-projection/internal/adapter/storage"
	"github.com/rl1809/inventory-projection/internal/config"
	"github.com/rl1809/inventory-projection/internal/core/service"
	"github.com/rl1809/inventory-projection/internal/obs"
	"github.com/rl1809/inventory-projection/internal/port"
)

type eventBus interface {
	port.EventPublisher
	port.EventSubscriber
	port.DeadLetterSink
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, logCloser := obs.NewLogger(obs.LogConfig{
		Service:    "inventory-projection",
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer logCloser.Close()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		logCloser.Close()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return fmt.Errorf("open mysql: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping mysql: %w", err)
	}
	if cfg.MySQL.EnsureSchema {
		if err := storage.EnsureSchema(ctx, db); err != nil {
			return err
		}
	}
	logger.Info("connected to mysql")

	eb, closeBus, err := openBus(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBus()

	metrics := obs.NewMetrics()
	store := storage.NewMySQLAdapter(db)
	reads := storage.NewMySQLReadModel(db)

	publisher := bus.NewBreakerPublisher(eb, bus.BreakerConfig{
		Timeout:      cfg.Bus.BreakerTimeout,
		MinRequests:  cfg.Bus.BreakerMinRequests,
		FailureRatio: cfg.Bus.BreakerFailureRatio,
	}, logger)

	inventoryService := service.NewInventoryService(store, reads, logger, metrics)
	dispatcher := service.NewOutboxDispatcher(store, publisher, service.DispatcherConfig{
		Topic:        cfg.Bus.Topic,
		BatchSize:    cfg.Dispatch.BatchSize,
		PollInterval: cfg.Dispatch.PollInterval,
		Retry:        cfg.Dispatch.RetryPolicy(),
		SaveTimeout:  cfg.Dispatch.SaveTimeout,
	}, logger, metrics)
	projection := service.NewProjectionSubscriber(eb, reads, eb, service.ProjectionConfig{
		Topic:            cfg.Bus.Topic,
		Retry:            cfg.Projection.RetryPolicy(),
		ResubscribeDelay: cfg.Projection.ResubscribeDelay,
	}, logger, metrics)

	auth := handler.NewTenantAuth(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if auth == nil {
		logger.Warn("AUTH_JWT_SECRET not set, tenant ids are trusted from requests")
	}

	// Initialize gRPC server
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(auth.UnaryInterceptor()))
	inventoryrpc.RegisterInventoryServiceServer(grpcServer, handler.NewGRPCHandler(inventoryService, logger))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	// Initialize HTTP server
	api := http.NewServeMux()
	handler.NewHTTPHandler(inventoryService, logger).Register(api)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", api)
	mux.Handle("/", auth.Middleware(api))

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler.LogRequests(logger, mux),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return dispatcher.Run(gctx)
	})
	g.Go(func() error {
		return projection.Run(gctx)
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP shutdown incomplete", "error", err)
		}
		grpcServer.GracefulStop()
		logger.Info("servers stopped")
		return nil
	})

	return g.Wait()
}

func openBus(ctx context.Context, cfg config.Config, logger *slog.Logger) (eventBus, func(), error) {
	switch cfg.Bus.Driver {
	case config.BusKafka:
		kb := bus.NewKafkaBus(bus.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			GroupID:      cfg.Kafka.GroupID,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		}, logger)
		logger.Info("using kafka bus", "brokers", cfg.Kafka.Brokers)
		return kb, func() { kb.Close() }, nil

	default:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		logger.Info("connected to redis", "addr", cfg.Redis.Addr)
		return bus.NewRedisBus(rdb, cfg.Redis.RequireReceiver, logger), func() { rdb.Close() }, nil
	}
}
