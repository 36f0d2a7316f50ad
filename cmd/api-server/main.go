package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/clinicdesk/walkin-scheduling/internal/api"
	"github.com/clinicdesk/walkin-scheduling/internal/appointment"
	"github.com/clinicdesk/walkin-scheduling/internal/booking"
	"github.com/clinicdesk/walkin-scheduling/internal/config"
	"github.com/clinicdesk/walkin-scheduling/internal/db"
	"github.com/clinicdesk/walkin-scheduling/internal/export"
	"github.com/clinicdesk/walkin-scheduling/internal/forms"
	"github.com/clinicdesk/walkin-scheduling/internal/notify"
	"github.com/clinicdesk/walkin-scheduling/internal/patient"
	"github.com/clinicdesk/walkin-scheduling/internal/redisclient"
	"github.com/clinicdesk/walkin-scheduling/internal/schedule"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load error", zap.Error(err))
	}

	logger := newLogger(cfg.Env)
	defer func() { _ = logger.Sync() }()

	logger.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("backend", cfg.StorageBackend))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		pstore    patient.Store
		slotStore schedule.Store
		ledger    appointment.Ledger
		pgPool    *pgxpool.Pool
	)

	switch cfg.StorageBackend {
	case config.BackendPostgres:
		if err := db.RunMigrations(cfg.PostgresDSN); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err = db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancelPg()
		if err != nil {
			logger.Fatal("postgres connection error", zap.Error(err))
		}
		defer pgPool.Close()
		logger.Info("connected to postgres")

		pstore = patient.NewPgStore(pgPool)
		slotStore = schedule.NewPgStore(pgPool)
		ledger = appointment.NewPgLedger(pgPool)
	default:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			logger.Fatal("create data dir", zap.Error(err))
		}
		fp, err := patient.NewFileStore(cfg.PatientsPath(), logger)
		if err != nil {
			logger.Fatal("open patient store", zap.Error(err))
		}
		fs, err := schedule.NewFileStore(cfg.SchedulesDir(), logger)
		if err != nil {
			logger.Fatal("open slot store", zap.Error(err))
		}
		fl, err := appointment.NewFileLedger(cfg.AppointmentsPath(), logger)
		if err != nil {
			logger.Fatal("open appointment ledger", zap.Error(err))
		}
		pstore, slotStore, ledger = fp, fs, fl
	}

	// the distributed claim lock is opt-in; without redis the in-store
	// mutex still serializes claims within this process
	var (
		rdb   *redis.Client
		guard booking.ClaimGuard
	)
	if cfg.RedisAddr != "" {
		rdb, err = redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			logger.Fatal("redis connection error", zap.Error(err))
		}
		defer func() { _ = rdb.Close() }()
		guard = redisclient.NewSlotLocker(rdb, cfg.LockTTL)
		logger.Info("connected to redis, claim lock enabled")
	}

	registry := patient.NewRegistry(pstore, patient.Options{
		Threshold:  cfg.FuzzyThreshold,
		NameWeight: cfg.NameWeight,
		DOBWeight:  cfg.DOBWeight,
	}, logger)
	avail := schedule.NewAvailability(slotStore)

	opts := booking.DefaultOptions()
	opts.NewPatientMinutes = cfg.NewPatientMinutes
	opts.ReturningPatientMinutes = cfg.ReturningPatientMinutes
	opts.ReminderAfter = cfg.ReminderAfter
	opts.ExportPath = cfg.ExportPath()

	svc := booking.NewService(registry, avail, ledger,
		notify.NewLogMessenger(cfg.MessagingLogPath()),
		forms.NewDirSender(cfg.IntakeFormPath(), cfg.FormsSentDir()),
		export.CSVExporter{}, guard, opts, logger)

	router := api.NewRouter(api.RouterConfig{
		Service:  svc,
		Registry: registry,
		Avail:    avail,
		Ledger:   ledger,
		PgPool:   pgPool,
		Redis:    rdb,
		DataDir:  cfg.DataDir,
		Env:      cfg.Env,
		Version:  version,
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newLogger(env string) *zap.Logger {
	if env == "prod" {
		logger, err := zap.NewProduction()
		if err != nil {
			panic(err)
		}
		return logger
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	return logger
}
