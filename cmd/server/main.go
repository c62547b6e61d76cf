package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iop-forecast-server/internal/api"
	"github.com/iop-forecast-server/internal/cache"
	"github.com/iop-forecast-server/internal/config"
	"github.com/iop-forecast-server/internal/database"
	"github.com/iop-forecast-server/internal/domain"
	"github.com/iop-forecast-server/internal/history"
	"github.com/iop-forecast-server/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configManager, err := config.NewManager()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := configManager.Validate(); err != nil {
		return fmt.Errorf("validating configuration: %w", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging)

	logger.WithFields(logrus.Fields{
		"host":    cfg.Server.Host,
		"port":    cfg.Server.Port,
		"backend": cfg.History.Backend,
	}).Info("Starting IOP forecast server")

	store, err := openHistoryStore(configManager, logger)
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}
	defer store.Close()

	var dbHealth api.HealthChecker
	if cfg.History.Backend == "postgres" {
		db, err := database.NewConnection(context.Background(), cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer db.Close()
		dbHealth = db
	}

	var forecastCache domain.ForecastCache
	if cfg.Cache.Enabled {
		fc, err := cache.New(cfg.Cache, logger)
		if err != nil {
			return fmt.Errorf("initializing cache: %w", err)
		}
		defer fc.Close()
		forecastCache = fc
	}

	scorer := service.NewRiskScorer(logger)
	engine := service.NewForecastEngine(scorer, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.History.RetentionDays > 0 {
		go retentionSweep(ctx, store, cfg.History.RetentionDays, logger)
	}

	server := api.NewServer(api.Deps{
		Config:   &cfg.Server,
		Logger:   logger,
		Scorer:   scorer,
		Engine:   engine,
		History:  store,
		Cache:    forecastCache,
		DBHealth: dbHealth,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.WithField("signal", sig.String()).Info("Shutdown signal received")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}

// retentionSweep deletes forecasts older than the retention window once a
// day until the context is cancelled.
func retentionSweep(ctx context.Context, store domain.HistoryStore, days int, logger *logrus.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		deleted, err := store.DeleteOlderThan(ctx, days)
		if err != nil {
			logger.WithError(err).Warn("History retention sweep failed")
		} else if deleted > 0 {
			logger.WithFields(logrus.Fields{
				"deleted":        deleted,
				"retention_days": days,
			}).Info("Pruned expired forecasts")
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return logger
}

// openHistoryStore builds the configured history backend. The postgres
// backend runs pending schema migrations before serving.
func openHistoryStore(configManager *config.Manager, logger *logrus.Logger) (domain.HistoryStore, error) {
	historyCfg := configManager.GetHistoryConfig()

	switch historyCfg.Backend {
	case "postgres":
		dbCfg := configManager.GetDatabaseConfig()

		runner, err := database.NewMigrationRunner(configManager.GetDatabaseURL(), dbCfg.MigrationsPath, logger)
		if err != nil {
			return nil, fmt.Errorf("creating migration runner: %w", err)
		}
		if err := runner.Up(); err != nil {
			runner.Close()
			return nil, err
		}
		if err := runner.Close(); err != nil {
			logger.WithError(err).Warn("Closing migration runner failed")
		}

		return history.NewPostgresStoreFromURL(configManager.GetDatabaseURL())
	case "sqlite":
		return history.NewSQLiteStore(historyCfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown history backend: %s", historyCfg.Backend)
	}
}
