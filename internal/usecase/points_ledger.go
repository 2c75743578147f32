package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/dto"
	domainErrors "github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/errors"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/model"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/repository"
	apperrors "github.com/Liwei1020T/appointmentSystem-sub002/pkg/errors"
)

// PointsChange is one signed balance mutation
type PointsChange struct {
	UserID      uuid.UUID
	Delta       int64
	Type        model.PointsType
	ReferenceID string
	Description string
}

// PointsLedger is the only writer of users.points. Every balance change is
// paired with exactly one points_log row in the same transaction.
type PointsLedger struct {
	uow    repository.UnitOfWork
	clock  Clock
	logger *zap.Logger
}

// NewPointsLedger creates a new points ledger
func NewPointsLedger(uow repository.UnitOfWork, clock Clock, logger *zap.Logger) *PointsLedger {
	return &PointsLedger{
		uow:    uow,
		clock:  clock,
		logger: logger,
	}
}

// Credit adds amount points to the user's balance
func (l *PointsLedger) Credit(ctx context.Context, userID uuid.UUID, amount int64, pointsType model.PointsType, referenceID, description string) (*model.PointsLogEntry, error) {
	if amount <= 0 {
		return nil, domainErrors.NewBadRequestError("points amount must be positive")
	}
	return l.applyInTx(ctx, PointsChange{
		UserID:      userID,
		Delta:       amount,
		Type:        pointsType,
		ReferenceID: referenceID,
		Description: description,
	})
}

// Debit removes amount points from the user's balance. It fails with
// InsufficientBalanceError, without writing, when the balance would go negative.
func (l *PointsLedger) Debit(ctx context.Context, userID uuid.UUID, amount int64, pointsType model.PointsType, referenceID, description string) (*model.PointsLogEntry, error) {
	if amount <= 0 {
		return nil, domainErrors.NewBadRequestError("points amount must be positive")
	}
	return l.applyInTx(ctx, PointsChange{
		UserID:      userID,
		Delta:       -amount,
		Type:        pointsType,
		ReferenceID: referenceID,
		Description: description,
	})
}

func (l *PointsLedger) applyInTx(ctx context.Context, change PointsChange) (*model.PointsLogEntry, error) {
	var entry *model.PointsLogEntry
	err := l.uow.Transaction(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		var err error
		entry, err = l.Apply(ctx, repos, change)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Apply performs the change with repos bound to the caller's transaction.
// The user row is locked first so concurrent changes for one user serialize.
func (l *PointsLedger) Apply(ctx context.Context, repos *repository.Repositories, change PointsChange) (*model.PointsLogEntry, error) {
	if change.Delta == 0 {
		return nil, domainErrors.NewBadRequestError("points amount must be non-zero")
	}
	if !change.Type.Valid() {
		return nil, domainErrors.NewBadRequestError(fmt.Sprintf("unknown points type %q", change.Type))
	}

	user, err := repos.Users.GetForUpdate(ctx, change.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}
	if user == nil {
		return nil, domainErrors.NewNotFoundError("user", change.UserID)
	}

	newBalance := user.Points + change.Delta
	if newBalance < 0 {
		return nil, domainErrors.NewInsufficientBalanceError(-change.Delta, user.Points)
	}

	if err := repos.Users.UpdatePoints(ctx, user.ID, newBalance); err != nil {
		return nil, fmt.Errorf("failed to update points balance: %w", err)
	}

	entry := &model.PointsLogEntry{
		UserID:       user.ID,
		Amount:       change.Delta,
		Type:         change.Type,
		Description:  change.Description,
		BalanceAfter: newBalance,
		CreatedAt:    l.clock.Now(),
	}
	if change.ReferenceID != "" {
		ref := change.ReferenceID
		entry.ReferenceID = &ref
	}
	if err := repos.PointsLog.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to create points log entry: %w", err)
	}

	l.logger.Info("Points balance changed",
		zap.String("user_id", user.ID.String()),
		zap.Int64("delta", change.Delta),
		zap.Int64("balance_after", newBalance),
		zap.String("type", string(change.Type)),
		zap.String("reference_id", change.ReferenceID))

	return entry, nil
}

// Balance returns the user's cached balance
func (l *PointsLedger) Balance(ctx context.Context, userID uuid.UUID) (*dto.PointsBalance, error) {
	user, err := l.uow.Repositories().Users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, domainErrors.NewNotFoundError("user", userID)
	}
	return &dto.PointsBalance{UserID: user.ID, Balance: user.Points}, nil
}

// History returns a page of the user's log, newest first
func (l *PointsLedger) History(ctx context.Context, userID uuid.UUID, page dto.Page) (*dto.PointsHistoryResponse, error) {
	page.SetDefaults()
	repos := l.uow.Repositories()

	entries, err := repos.PointsLog.ListByUser(ctx, userID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list points history: %w", err)
	}
	total, err := repos.PointsLog.CountByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count points history: %w", err)
	}

	resp := &dto.PointsHistoryResponse{
		Entries: make([]dto.PointsEntryDTO, 0, len(entries)),
		Pagination: dto.PaginationInfo{
			Total:   total,
			Limit:   page.Limit,
			Offset:  page.Offset,
			HasMore: int64(page.Offset+len(entries)) < total,
		},
	}
	for _, e := range entries {
		item := dto.PointsEntryDTO{
			Amount:       e.Amount,
			Type:         string(e.Type),
			Description:  e.Description,
			BalanceAfter: e.BalanceAfter,
			CreatedAt:    e.CreatedAt,
		}
		if e.ReferenceID != nil {
			item.ReferenceID = *e.ReferenceID
		}
		resp.Entries = append(resp.Entries, item)
	}
	return resp, nil
}

// Reconcile verifies that the cached balance equals the sum of the log
func (l *PointsLedger) Reconcile(ctx context.Context, userID uuid.UUID) error {
	repos := l.uow.Repositories()

	user, err := repos.Users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return domainErrors.NewNotFoundError("user", userID)
	}

	sum, err := repos.PointsLog.SumByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to sum points log: %w", err)
	}

	if sum != user.Points {
		l.logger.Error("Points balance diverged from log",
			zap.String("user_id", userID.String()),
			zap.Int64("cached_balance", user.Points),
			zap.Int64("log_sum", sum))
		return apperrors.NewAppError(apperrors.ErrConflict,
			fmt.Sprintf("points balance %d does not match log sum %d", user.Points, sum), nil)
	}
	return nil
}
