package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/model"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error; err != nil {
		logger.Error("Failed to create extensions", zap.Error(err))
		return err
	}

	err := db.AutoMigrate(
		&model.User{},
		&model.Order{},
		&model.Package{},
		&model.UserPackage{},
		&model.Payment{},
		&model.Voucher{},
		&model.UserVoucher{},
		&model.PointsLogEntry{},
		&model.Notification{},
	)
	if err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	if err := createConstraints(db); err != nil {
		logger.Error("Failed to create constraints", zap.Error(err))
		return err
	}

	if err := createCustomIndexes(db); err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return err
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

var checkConstraints = []struct {
	table, name, check string
}{
	{"payments", "payments_single_target", "order_id IS NULL OR package_id IS NULL"},
	{"users", "users_points_non_negative", "points >= 0"},
	{"vouchers", "vouchers_used_within_cap", "max_uses = 0 OR used_count <= max_uses"},
}

// createConstraints adds the CHECK constraints AutoMigrate cannot express
func createConstraints(db *gorm.DB) error {
	for _, c := range checkConstraints {
		stmt := fmt.Sprintf(`DO $$
BEGIN
	IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '%s') THEN
		ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s);
	END IF;
END $$;`, c.name, c.table, c.name, c.check)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("constraint %s: %w", c.name, err)
		}
	}
	return nil
}

// createCustomIndexes creates partial indexes that GORM doesn't handle automatically
func createCustomIndexes(db *gorm.DB) error {
	// At most one successful payment per order
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS uniq_payments_order_success ON payments (order_id) WHERE status = 'success' AND order_id IS NOT NULL`).Error; err != nil {
		return err
	}

	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_payments_review_queue ON payments (created_at) WHERE status IN ('pending', 'pending_verification')`).Error; err != nil {
		return err
	}

	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_orders_pending_created ON orders (created_at) WHERE status = 'pending'`).Error; err != nil {
		return err
	}

	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_orders_completed_at ON orders (completed_at) WHERE status = 'completed'`).Error; err != nil {
		return err
	}

	return nil
}
