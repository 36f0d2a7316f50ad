package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/clinicdesk/walkin-scheduling/internal/appointment"
	"github.com/clinicdesk/walkin-scheduling/internal/booking"
	"github.com/clinicdesk/walkin-scheduling/internal/config"
	"github.com/clinicdesk/walkin-scheduling/internal/db"
	"github.com/clinicdesk/walkin-scheduling/internal/export"
	"github.com/clinicdesk/walkin-scheduling/internal/forms"
	"github.com/clinicdesk/walkin-scheduling/internal/notify"
	"github.com/clinicdesk/walkin-scheduling/internal/patient"
	"github.com/clinicdesk/walkin-scheduling/internal/schedule"
)

// The reminder worker sweeps the appointment ledger on an interval and sends
// whichever reminders have crossed a threshold without being stamped. Sweeps
// are idempotent, so overlapping deployments or restarts are harmless.
func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load error", zap.Error(err))
	}

	logger := newLogger(cfg.Env)
	defer func() { _ = logger.Sync() }()

	logger.Info("reminder-worker starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.WorkerInterval))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		pstore    patient.Store
		slotStore schedule.Store
		ledger    appointment.Ledger
	)
	if cfg.StorageBackend == config.BackendPostgres {
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancelPg()
		if err != nil {
			logger.Fatal("postgres connection error", zap.Error(err))
		}
		defer pgPool.Close()
		pstore = patient.NewPgStore(pgPool)
		slotStore = schedule.NewPgStore(pgPool)
		ledger = appointment.NewPgLedger(pgPool)
	} else {
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

	opts := booking.DefaultOptions()
	opts.ReminderAfter = cfg.ReminderAfter
	opts.ExportPath = cfg.ExportPath()

	svc := booking.NewService(
		patient.NewRegistry(pstore, patient.DefaultOptions(), logger),
		schedule.NewAvailability(slotStore),
		ledger,
		notify.NewLogMessenger(cfg.MessagingLogPath()),
		forms.NewDirSender(cfg.IntakeFormPath(), cfg.FormsSentDir()),
		export.CSVExporter{}, nil, opts, logger)

	runOnce(rootCtx, svc, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping reminder worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *booking.Service, logger *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	sent, err := svc.RemindDue(runCtx)
	if err != nil {
		logger.Error("reminder sweep error", zap.Error(err))
		return
	}
	logger.Info("reminder sweep complete",
		zap.Int("sent", sent), zap.Duration("took", time.Since(start)))
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
