package database

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	domainRepo "github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/repository"
)

type unitOfWork struct {
	db     *gorm.DB
	logger *zap.Logger
	repos  *domainRepo.Repositories
}

// NewUnitOfWork wraps db so use cases can run several repository calls in
// one transaction
func NewUnitOfWork(db *gorm.DB, logger *zap.Logger) domainRepo.UnitOfWork {
	return &unitOfWork{
		db:     db,
		logger: logger,
		repos:  NewRepositories(db, logger),
	}
}

func (u *unitOfWork) Repositories() *domainRepo.Repositories {
	return u.repos
}

// Transaction commits when fn returns nil and rolls back otherwise
func (u *unitOfWork) Transaction(ctx context.Context, fn domainRepo.TxFunc) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewRepositories(tx, u.logger))
	})
}
