package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/config"
	domainRepo "github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/repository"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/infrastructure/database"
	httpserver "github.com/Liwei1020T/appointmentSystem-sub002/internal/infrastructure/http"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/infrastructure/messaging"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/usecase"
	"github.com/Liwei1020T/appointmentSystem-sub002/pkg/logger"
)

// App holds the wired process dependencies shared by the binaries
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	DB        *gorm.DB
	Publisher messaging.NotificationPublisher
	Services  httpserver.Services
}

// NewLogger builds the process logger from the log section
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.NewZapLogger(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		Development: cfg.Service.Env == "dev",
		Service:     cfg.Service.Name,
	})
}

// New connects to the database and the notification channel and builds the
// use cases
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, log); err != nil {
			_ = database.Close(db, log)
			return nil, fmt.Errorf("failed to run database migrations: %w", err)
		}
	}

	publisher, err := messaging.NewNotificationPublisher(ctx, cfg, log)
	if err != nil {
		_ = database.Close(db, log)
		return nil, fmt.Errorf("failed to create notification publisher: %w", err)
	}

	var locker domainRepo.Locker
	if cfg.Automation.UseStoreLock {
		sqlDB, err := db.DB()
		if err != nil {
			_ = database.Close(db, log)
			return nil, fmt.Errorf("failed to get underlying SQL database: %w", err)
		}
		locker = database.NewAdvisoryLocker(sqlDB, log)
	}

	clock := usecase.SystemClock{}
	uow := database.NewUnitOfWork(db, log)
	notifier := usecase.NewNotifier(uow, publisher, clock, cfg.Notification.FlushTimeout, log)
	ledger := usecase.NewPointsLedger(uow, clock, log)

	policy := usecase.AutomationPolicy{
		PendingTimeout: cfg.Automation.PendingTimeout,
		StallWarning:   cfg.Automation.StallWarning,
		PickupReminder: cfg.Automation.PickupReminder,
		ReminderWindow: cfg.Automation.ReminderWindow,
		BatchSize:      cfg.Automation.BatchSize,
		RunTimeout:     cfg.Automation.RunTimeout,
	}

	return &App{
		Config:    cfg,
		Logger:    log,
		DB:        db,
		Publisher: publisher,
		Services: httpserver.Services{
			Payments:   usecase.NewPaymentService(uow, ledger, notifier, clock, cfg.Points.EarnRate, log),
			Vouchers:   usecase.NewVoucherService(uow, ledger, notifier, clock, log),
			Ledger:     ledger,
			Notifier:   notifier,
			Automation: usecase.NewOrderAutomation(uow, locker, notifier, clock, policy, log),
		},
	}, nil
}

// Ping checks the database connection
func (a *App) Ping(ctx context.Context) error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the publisher and the database connection
func (a *App) Close() {
	if err := a.Publisher.Close(); err != nil {
		a.Logger.Error("Failed to close notification publisher", zap.Error(err))
	}
	if err := database.Close(a.DB, a.Logger); err != nil {
		a.Logger.Error("Failed to close database connection", zap.Error(err))
	}
}
