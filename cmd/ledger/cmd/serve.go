package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pigeonworks-llc/txn-ledger/internal/api"
	"github.com/pigeonworks-llc/txn-ledger/pkg/boltstore"
	"github.com/pigeonworks-llc/txn-ledger/pkg/config"
	"github.com/pigeonworks-llc/txn-ledger/pkg/db"
	"github.com/pigeonworks-llc/txn-ledger/pkg/idempotency"
	"github.com/pigeonworks-llc/txn-ledger/pkg/ledger"
	"github.com/pigeonworks-llc/txn-ledger/pkg/logging"
	"github.com/pigeonworks-llc/txn-ledger/pkg/metrics"
	"github.com/pigeonworks-llc/txn-ledger/pkg/mongostore"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ledger HTTP API",
	Long: `Run the ledger HTTP API on the configured store.

LEDGER_STORE selects bolt (default), sqlite or mongo. When REDIS_URL is set,
write endpoints honor the Idempotency-Key header.

Example:
  ledger serve
  LEDGER_STORE=mongo MONGO_URI=mongodb://localhost:27017/?replicaSet=rs0 ledger serve`,
	Run: runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgFile)
	exitOnError(err, "failed to load configuration")
	exitOnError(cfg.Validate(cfg.StoreRequirements()...), "invalid configuration")

	level := cfg.Log.Level
	if debug || cfg.Debug {
		level = "debug"
	}
	l, err := logging.New(level, cfg.Log.Format)
	exitOnError(err, "failed to build logger")
	logger = l.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Store)
	exitOnError(err, "failed to initialize store")
	defer func() {
		if err := store.Close(); err != nil {
			logger.Errorw("failed to close store", "error", err)
		}
	}()
	logger.Infow("store initialized", "driver", cfg.Store.Driver)

	m := metrics.New()
	svc := ledger.NewService(store,
		ledger.WithLogger(logger),
		ledger.WithRecorder(m),
		ledger.WithFailedWriteRetry(cfg.Server.FailedWriteAttempts, 50*time.Millisecond),
	)

	deps := api.Deps{Service: svc, Logger: logger, Metrics: m}
	if cfg.Server.RedisURL != "" {
		guard, err := idempotency.Connect(ctx, cfg.Server.RedisURL, cfg.Server.IdempotencyTTL)
		exitOnError(err, "failed to connect to redis")
		defer guard.Close()
		deps.Guard = guard
		logger.Infow("idempotency enabled", "ttl", cfg.Server.IdempotencyTTL)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorw("server shutdown error", "error", err)
		}
	}()

	logger.Infow("starting ledger API", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		exitOnError(err, "server error")
	}

	logger.Info("server stopped")
}

// openStore opens the backend selected by cfg.Driver.
func openStore(ctx context.Context, cfg config.StoreConfig) (ledger.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		conn, err := db.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return db.NewLedgerStore(conn), nil
	case config.DriverMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		store, err := mongostore.Connect(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverBolt, "":
		store, err := boltstore.New(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}
