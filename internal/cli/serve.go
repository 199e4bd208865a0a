package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	grpchandler "github.com/KoDakness/404syndicate-sub000/internal/adapters/handler/grpc"
	httphandler "github.com/KoDakness/404syndicate-sub000/internal/adapters/handler/http"
	"github.com/KoDakness/404syndicate-sub000/internal/adapters/handler/mqtt"
	redisq "github.com/KoDakness/404syndicate-sub000/internal/adapters/queue/redis"
	"github.com/KoDakness/404syndicate-sub000/internal/config"
	"github.com/KoDakness/404syndicate-sub000/internal/core/circuitbreaker"
	"github.com/KoDakness/404syndicate-sub000/internal/core/domain"
	"github.com/KoDakness/404syndicate-sub000/internal/core/logger"
	"github.com/KoDakness/404syndicate-sub000/internal/core/services"
	"github.com/KoDakness/404syndicate-sub000/internal/core/tracing"
)

const failureRetention = 7 * 24 * time.Hour

func buildServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, the gRPC health server and the chat bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger.Info("Starting 404 Syndicate server", "version", Version)

	// Initialize tracing
	if cfg.EnableTracing {
		shutdownTracing, err := tracing.Init(cfg.ServiceName, cfg.OTLPEndpoint)
		if err != nil {
			logger.Error("Failed to initialize tracing", "error", err)
		} else {
			defer func() {
				if err := shutdownTracing(context.Background()); err != nil {
					logger.Error("Failed to shutdown tracing", "error", err)
				}
			}()
		}
	}

	// Initialize adapters
	repo, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()
	if cfg.AutoMigrate {
		if err := repo.Migrate(); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	redisAdapter, redisClient, err := redisq.NewRedisAdapter(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to init redis: %w", err)
	}
	defer redisClient.Close()

	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}

	// Initialize domain services
	feed := services.NewFeedService(nil)
	failures := redisq.NewWriteFailureLog(redisClient, failureRetention)
	chat := services.NewChatService(repo, redisAdapter, nil)
	deps := services.SessionDeps{
		Catalog: cat,
		Players: services.NewPlayerGateway(repo, circuitbreaker.New("player-writes"), feed, failures),
		Jobs:    services.NewJobWriter(repo, circuitbreaker.New("job-writes"), feed, failures),
		Chat:    chat,
		Feed:    feed,
	}
	manager := services.NewSessionManager(redisAdapter, repo, repo, deps)
	manager.IdleTimeout = cfg.SessionIdleTimeout

	healthService := services.NewHealthService(Version).
		AddCheck("database", true, services.DatabaseCheck(repo.DB())).
		AddCheck("redis", false, services.RedisCheck(redisClient)).
		WithSessionCount(manager.Count)

	hub := httphandler.NewHub()
	go hub.Run(ctx)
	feed.AddSink(hub)
	manager.Presence = hub

	var forwarders []func(*domain.ChatMessage)
	if cfg.EnableMQTT {
		bridge, err := mqtt.NewBridge(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic)
		if err != nil {
			logger.Error("Failed to init MQTT bridge", "error", err)
		} else {
			defer bridge.Close()
			forwarders = append(forwarders, bridge.Forward)
		}
	}
	go hub.ChatConsumer(ctx, redisAdapter, forwarders...)
	go manager.StartReaper(ctx)

	httpServer := httphandler.NewServer(httphandler.ServerDeps{
		Sessions: manager,
		Chat:     chat,
		Catalog:  cat,
		Health:   healthService,
		Failures: failures,
		Hub:      hub,

		ExposeMetrics: cfg.EnableMetrics,
	})
	grpcServer := grpchandler.NewServer(healthService)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("HTTP server starting", "port", cfg.HTTPPort)
		if err := httpServer.Run(ctx, ":"+cfg.HTTPPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		logger.Info("gRPC server starting", "port", cfg.Port)
		if err := grpcServer.Serve(ctx, ":"+cfg.Port); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down gracefully...")
	case err = <-errCh:
		logger.Error("Server failed", "error", err)
	}
	manager.CloseAll()
	return err
}
