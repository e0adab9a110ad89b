package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Gopher0727/LiveChat/config"
	"github.com/Gopher0727/LiveChat/internal/api"
	"github.com/Gopher0727/LiveChat/internal/broadcast"
	"github.com/Gopher0727/LiveChat/internal/gateway"
	"github.com/Gopher0727/LiveChat/internal/handler"
	"github.com/Gopher0727/LiveChat/internal/pkg/kafka"
	"github.com/Gopher0727/LiveChat/internal/pkg/redis"
	"github.com/Gopher0727/LiveChat/internal/repository"
	"github.com/Gopher0727/LiveChat/internal/service"
	"github.com/Gopher0727/LiveChat/internal/storage"
	logger "github.com/Gopher0727/LiveChat/middleware/log"
	"github.com/Gopher0727/LiveChat/utils/ratelimit"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "livechat: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.InitPostgres(&cfg.Postgres, log.Logger)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	var redisClient *redis.Client
	if cfg.Broadcast.Driver == "redis" || cfg.RateLimit.CreatePerMinute > 0 {
		rdb, err := storage.InitRedis(&cfg.Redis)
		if err != nil {
			return err
		}
		redisClient = redis.NewClient(rdb)
		defer redisClient.Close()
	}

	hub := gateway.NewHub(log.Logger)
	defer hub.Shutdown()

	publisher, stopSource, err := startTransport(ctx, cfg, hub, redisClient, log.Logger)
	if err != nil {
		return err
	}
	defer stopSource()

	dispatcher := broadcast.NewDispatcher(publisher, &cfg.Broadcast, log.Logger)
	dispatcher.Start()
	defer dispatcher.Stop()

	messageService := service.NewMessageService(repository.NewMessageRepository(db), dispatcher, &cfg.Broadcast, log.Logger)

	var limiter ratelimit.Limiter
	if redisClient != nil && cfg.RateLimit.CreatePerMinute > 0 {
		limiter = ratelimit.NewWindowLimiter(redisClient.GetClient(), log.Logger, cfg.RateLimit.FailOpen)
	}

	router := api.NewRouter(api.Router{
		Config:         cfg,
		Logger:         log,
		MessageHandler: handler.NewMessageHandler(messageService, log),
		GatewayHandler: gateway.NewHandler(ctx, hub, &cfg.Gateway, log.Logger),
		Limiter:        limiter,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.Int("port", cfg.Server.Port),
			zap.String("broadcast_driver", cfg.Broadcast.Driver),
			zap.String("gateway", cfg.Gateway.URL()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown incomplete", zap.Error(err))
	}
	return nil
}

// startTransport builds the publisher for the configured driver and starts
// the matching gateway source. The returned func stops the source.
func startTransport(ctx context.Context, cfg *config.Config, hub *gateway.Hub, redisClient *redis.Client, log *zap.Logger) (broadcast.Publisher, func(), error) {
	switch cfg.Broadcast.Driver {
	case "redis":
		source := gateway.NewRedisSource(redisClient, cfg.Broadcast.RedisChannel, hub, log)
		if err := source.Start(ctx); err != nil {
			return nil, nil, err
		}
		return broadcast.NewRedisPublisher(redisClient, cfg.Broadcast.RedisChannel), source.Stop, nil

	case "kafka":
		producer, err := kafka.NewProducer(&cfg.Kafka)
		if err != nil {
			return nil, nil, err
		}
		consumer, err := kafka.NewConsumer(&cfg.Kafka, gateway.KafkaHandler(hub), log)
		if err != nil {
			_ = producer.Close()
			return nil, nil, err
		}
		consumer.Start(ctx)
		stopConsumer := func() {
			if err := consumer.Stop(); err != nil {
				log.Warn("failed to stop kafka consumer", zap.Error(err))
			}
		}
		return broadcast.NewKafkaPublisher(producer), stopConsumer, nil

	default:
		return broadcast.NewLocalPublisher(hub), func() {}, nil
	}
}
