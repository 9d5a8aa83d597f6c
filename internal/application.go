package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rocketscienceinc/room-relay/internal/config"
	"github.com/rocketscienceinc/room-relay/internal/relay"
	"github.com/rocketscienceinc/room-relay/internal/repository"
	"github.com/rocketscienceinc/room-relay/internal/repository/storage"
	"github.com/rocketscienceinc/room-relay/internal/usecase"
	"github.com/rocketscienceinc/room-relay/transport/rest"
	"github.com/rocketscienceinc/room-relay/transport/websocket"
)

const (
	connectTimeout  = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	durable, closeStore, err := openDurableStore(ctx, logger, conf.Storage)
	if err != nil {
		log.Warn("durable store unreachable, rooms will be kept in memory", "driver", conf.Storage.Driver, "error", err)
	}
	defer closeStore()

	memoryRepo := repository.NewInMemoryRoomRepository(conf.Storage.RoomTTL)
	roomRepo := repository.NewFallbackRoomRepository(logger, durable, memoryRepo)
	go repository.RunSweeper(ctx, logger, memoryRepo, conf.Storage.SweepInterval)

	snapshotManager := usecase.NewSnapshotManager(logger, roomRepo)

	var persister relay.Persister = snapshotManager
	if conf.Relay.DisablePersist {
		persister = nil
		log.Info("full-state messages are relayed without being persisted")
	}

	broker := relay.NewBroker(logger, relay.NewRegistry(), persister, conf.Relay.SendBuffer)
	brokerStopped := make(chan struct{})
	go func() {
		defer close(brokerStopped)
		broker.Run(ctx)
	}()

	wsServer := websocket.New(logger, broker, conf.AllowedOrigins)
	handlers := rest.NewHandlers(logger, snapshotManager, roomRepo, broker)
	server := rest.New(conf.HTTPPort, rest.NewRouter(logger, handlers, wsServer, conf.AllowedOrigins))

	// run HTTP server, relay endpoint included
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := server.Start(); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	select {
	case err = <-httpErrCh:
		cancel()
		<-brokerStopped
		return fmt.Errorf("HTTP server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err = server.Shutdown(shutdownCtx); err != nil {
		log.Error("could not shutdown HTTP server", "error", err)
	}

	<-brokerStopped

	return nil
}

// openDurableStore - nil repository when nothing durable is configured or the backend cannot be reached.
func openDurableStore(ctx context.Context, logger *slog.Logger, conf config.Storage) (repository.RoomRepository, func(), error) {
	log := logger.With("component", "app", "method", "openDurableStore")
	noop := func() {}

	if !conf.IsDurable() {
		return nil, noop, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	switch conf.Driver {
	case config.DriverRedis:
		redisStorage, err := storage.NewRedisStorage(connectCtx, conf.URL)
		if err != nil {
			return nil, noop, fmt.Errorf("could not connect to redis storage: %w", err)
		}

		closeStore := func() {
			if err = redisStorage.Close(); err != nil {
				log.Error("could not close redis storage", "error", err)
			}
		}

		return repository.NewRedisRoomRepository(redisStorage, conf.RoomTTL), closeStore, nil

	case config.DriverPostgres:
		db, err := storage.NewPostgresStorage(connectCtx, conf.URL)
		if err != nil {
			return nil, noop, fmt.Errorf("could not connect to postgres storage: %w", err)
		}

		closeStore := func() {
			sqlDB, dbErr := db.DB()
			if dbErr != nil {
				return
			}

			if dbErr = sqlDB.Close(); dbErr != nil {
				log.Error("could not close postgres storage", "error", dbErr)
			}
		}

		postgresRepo := repository.NewPostgresRoomRepository(db, conf.RoomTTL)
		if err = postgresRepo.Migrate(connectCtx); err != nil {
			closeStore()
			return nil, noop, fmt.Errorf("could not migrate postgres storage: %w", err)
		}

		go repository.RunSweeper(ctx, logger, postgresRepo, conf.SweepInterval)

		return postgresRepo, closeStore, nil
	}

	return nil, noop, nil
}
