package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/adapter/repository"
	domainRepo "github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/repository"
)

// NewRepositories creates new repository instances bound to db, which may be
// a transaction handle
func NewRepositories(db *gorm.DB, logger *zap.Logger) *domainRepo.Repositories {
	return &domainRepo.Repositories{
		Users:         repository.NewUserRepository(db, logger),
		Payments:      repository.NewPaymentRepository(db, logger),
		Orders:        repository.NewOrderRepository(db, logger),
		Packages:      repository.NewPackageRepository(db),
		UserPackages:  repository.NewUserPackageRepository(db, logger),
		Vouchers:      repository.NewVoucherRepository(db, logger),
		UserVouchers:  repository.NewUserVoucherRepository(db, logger),
		PointsLog:     repository.NewPointsLogRepository(db, logger),
		Notifications: repository.NewNotificationRepository(db),
	}
}
