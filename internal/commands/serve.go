package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/wize-platform/wizegraph/internal/auth"
	"github.com/wize-platform/wizegraph/internal/config"
	wizegraphql "github.com/wize-platform/wizegraph/internal/graphql"
	"github.com/wize-platform/wizegraph/internal/pubsub"
	"github.com/wize-platform/wizegraph/internal/server"
	"github.com/wize-platform/wizegraph/internal/storage"
)

// ServeOptions contains options for the serve command
type ServeOptions struct {
	Port int
}

// Serve connects the document store, builds the schema factory and runs the
// HTTP server until a shutdown signal arrives.
func (c *Controller) Serve(ctx context.Context, opts ...ServeOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	port := cfg.Port
	if len(opts) > 0 && opts[0].Port > 0 {
		port = opts[0].Port
	}

	logger := log.Logger

	store, closeStore, err := connectStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	broker := newBroker(cfg)

	factory := wizegraphql.NewFactory(wizegraphql.FactoryOptions{
		Broker: broker,
		Logger: logger,
	})
	authenticator := auth.NewAuthenticator(store, logger)
	gateway := server.NewGateway(store, factory, authenticator, cfg.Database, logger)
	admin := server.NewAdmin(store, factory, authenticator, gateway, cfg.Database, logger)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: server.NewRouter(gateway, admin, logger),
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info().Int("port", port).Str("database", cfg.Database).Msg("starting server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info().Msg("context cancelled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	logger.Info().Msg("serve shutdown complete")
	return nil
}

// loadConfig reads the config file named by --config, searches parent
// directories otherwise, and falls back to defaults when none exists.
func (c *Controller) loadConfig() (*config.Config, error) {
	if c.Flags != nil && c.Flags.Config != "" {
		return config.LoadConfigFromPath(c.Flags.Config)
	}

	cfg, _, err := config.LoadConfig()
	if err != nil {
		log.Warn().Err(err).Msg("no config file found, using defaults")
		return config.Default(), nil
	}
	return cfg, nil
}

func connectStore(ctx context.Context, cfg *config.Config) (storage.Store, func(), error) {
	if cfg.MongoURI == "memory" {
		return storage.NewMemoryStore(), func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	store, err := storage.ConnectMongo(connectCtx, cfg.MongoURI, log.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to document store: %w", err)
	}

	closer := func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := store.Close(closeCtx); err != nil {
			log.Warn().Err(err).Msg("failed to disconnect document store")
		}
	}
	return store, closer, nil
}

func newBroker(cfg *config.Config) pubsub.Broker {
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return pubsub.NewRedisBroker(client, log.Logger)
	}
	return pubsub.NewMemoryBroker(log.Logger)
}
