package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/dto"
	domainErrors "github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/errors"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/model"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/repository"
)

// VoucherService validates voucher eligibility and issues UserVoucher grants
type VoucherService struct {
	uow      repository.UnitOfWork
	ledger   *PointsLedger
	notifier *Notifier
	clock    Clock
	logger   *zap.Logger
}

// NewVoucherService creates a new voucher service
func NewVoucherService(uow repository.UnitOfWork, ledger *PointsLedger, notifier *Notifier, clock Clock, logger *zap.Logger) *VoucherService {
	return &VoucherService{
		uow:      uow,
		ledger:   ledger,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
	}
}

// RedeemByCode redeems the voucher with the given code. A voucher with a
// points cost is only redeemable with usePoints set.
func (s *VoucherService) RedeemByCode(ctx context.Context, actor model.Actor, code string, usePoints bool) (*model.UserVoucher, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domainErrors.NewBadRequestError("voucher code is required")
	}

	voucher, err := s.uow.Repositories().Vouchers.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get voucher: %w", err)
	}
	if voucher == nil {
		return nil, domainErrors.NewNotFoundError("voucher", code)
	}

	var offered int64
	if usePoints {
		offered = voucher.PointsCost
	}
	return s.redeem(ctx, actor, voucher.ID, offered)
}

// RedeemByID redeems a catalog voucher. pointsOffered must cover the
// voucher's points cost; exactly the cost is debited.
func (s *VoucherService) RedeemByID(ctx context.Context, actor model.Actor, voucherID int64, pointsOffered int64) (*model.UserVoucher, error) {
	if voucherID <= 0 {
		return nil, domainErrors.NewBadRequestError("voucher id is required")
	}
	if pointsOffered < 0 {
		return nil, domainErrors.NewBadRequestError("points offered must not be negative")
	}
	return s.redeem(ctx, actor, voucherID, pointsOffered)
}

func (s *VoucherService) redeem(ctx context.Context, actor model.Actor, voucherID int64, pointsOffered int64) (*model.UserVoucher, error) {
	now := s.clock.Now()

	var grant *model.UserVoucher
	var created []*model.Notification
	err := s.uow.Transaction(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		voucher, err := repos.Vouchers.GetForUpdate(ctx, voucherID)
		if err != nil {
			return fmt.Errorf("failed to lock voucher: %w", err)
		}
		if voucher == nil {
			return domainErrors.NewNotFoundError("voucher", voucherID)
		}
		if err := s.checkEligibility(ctx, repos, actor, voucher, pointsOffered, now); err != nil {
			return err
		}

		if voucher.PointsCost > 0 {
			_, err := s.ledger.Apply(ctx, repos, PointsChange{
				UserID:      actor.UserID,
				Delta:       -voucher.PointsCost,
				Type:        model.PointsTypeRedeem,
				ReferenceID: model.VoucherRef(voucher.ID),
				Description: fmt.Sprintf("Redeemed voucher %s", voucher.Code),
			})
			if err != nil {
				return err
			}
		}

		grant = &model.UserVoucher{
			UserID:    actor.UserID,
			VoucherID: voucher.ID,
			Status:    model.UserVoucherStatusActive,
			ExpiresAt: voucher.ValidUntil,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := repos.UserVouchers.Create(ctx, grant); err != nil {
			return fmt.Errorf("failed to create user voucher: %w", err)
		}
		if err := repos.Vouchers.IncrementUsedCount(ctx, voucher.ID); err != nil {
			return fmt.Errorf("failed to increment voucher usage: %w", err)
		}

		notification, err := s.notifier.Notify(ctx, repos, Message{
			UserID:       actor.UserID,
			Type:         model.NotificationVoucherRedeemed,
			Title:        "Voucher redeemed",
			Body:         fmt.Sprintf("%s is now in your wallet and valid until %s.", voucher.Name, voucher.ValidUntil.Format("2006-01-02")),
			ActionURL:    "/profile/vouchers",
			ReferenceKey: model.VoucherRef(voucher.ID),
		})
		if err != nil {
			return err
		}
		created = append(created, notification)

		grant.Voucher = voucher
		return nil
	})
	if err != nil {
		s.logger.Info("Voucher redemption refused",
			zap.String("user_id", actor.UserID.String()),
			zap.Int64("voucher_id", voucherID),
			zap.Error(err))
		return nil, err
	}

	s.notifier.Dispatch(created)

	s.logger.Info("Voucher redeemed",
		zap.String("user_id", actor.UserID.String()),
		zap.Int64("voucher_id", voucherID),
		zap.Int64("user_voucher_id", grant.ID))
	return grant, nil
}

// checkEligibility runs the redemption checks in order; the first failure wins
func (s *VoucherService) checkEligibility(ctx context.Context, repos *repository.Repositories, actor model.Actor, voucher *model.Voucher, pointsOffered int64, now time.Time) error {
	if !voucher.Active {
		return domainErrors.NewConflictError("voucher is not active")
	}
	if !voucher.InWindow(now) {
		return domainErrors.NewConflictError("voucher is not valid at this time")
	}
	if voucher.Exhausted() {
		return domainErrors.NewConflictError("voucher has been fully redeemed")
	}

	held, err := repos.UserVouchers.CountByUserAndVoucher(ctx, actor.UserID, voucher.ID)
	if err != nil {
		return fmt.Errorf("failed to count user vouchers: %w", err)
	}
	if held >= int64(voucher.PerUserCap()) {
		return domainErrors.NewConflictError(fmt.Sprintf("voucher can be redeemed at most %d time(s) per user", voucher.PerUserCap()))
	}

	if voucher.PointsCost == 0 {
		return nil
	}
	if pointsOffered < voucher.PointsCost {
		return domainErrors.NewBadRequestError(fmt.Sprintf("voucher costs %d points", voucher.PointsCost))
	}
	user, err := repos.Users.GetForUpdate(ctx, actor.UserID)
	if err != nil {
		return fmt.Errorf("failed to lock user: %w", err)
	}
	if user == nil {
		return domainErrors.NewNotFoundError("user", actor.UserID)
	}
	if user.Points < voucher.PointsCost {
		return domainErrors.NewInsufficientBalanceError(voucher.PointsCost, user.Points)
	}
	return nil
}

// GetRedeemableVouchers lists catalog vouchers the actor can still redeem
func (s *VoucherService) GetRedeemableVouchers(ctx context.Context, actor model.Actor) ([]dto.RedeemableVoucher, error) {
	repos := s.uow.Repositories()

	user, err := repos.Users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, domainErrors.NewNotFoundError("user", actor.UserID)
	}

	vouchers, err := repos.Vouchers.ListRedeemable(ctx, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to list vouchers: %w", err)
	}

	result := make([]dto.RedeemableVoucher, 0, len(vouchers))
	for _, v := range vouchers {
		held, err := repos.UserVouchers.CountByUserAndVoucher(ctx, actor.UserID, v.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count user vouchers: %w", err)
		}
		remaining := int64(v.PerUserCap()) - held
		if remaining <= 0 {
			continue
		}
		result = append(result, dto.RedeemableVoucher{
			ID:             v.ID,
			Code:           v.Code,
			Name:           v.Name,
			Type:           string(v.Type),
			Value:          v.Value,
			MinPurchase:    v.MinPurchase,
			PointsCost:     v.PointsCost,
			Redeemed:       held,
			RemainingQuota: remaining,
			Affordable:     user.Points >= v.PointsCost,
		})
	}
	return result, nil
}

// ListUserVouchers returns the actor's grants, optionally filtered by status
func (s *VoucherService) ListUserVouchers(ctx context.Context, actor model.Actor, status *model.UserVoucherStatus) ([]*model.UserVoucher, error) {
	grants, err := s.uow.Repositories().UserVouchers.ListByUser(ctx, actor.UserID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list user vouchers: %w", err)
	}
	return grants, nil
}

// PreviewDiscount computes what an active grant would take off amount
func (s *VoucherService) PreviewDiscount(ctx context.Context, actor model.Actor, userVoucherID int64, amount decimal.Decimal) (*dto.DiscountPreview, error) {
	if amount.IsNegative() {
		return nil, domainErrors.NewBadRequestError("amount must not be negative")
	}
	repos := s.uow.Repositories()

	grant, err := repos.UserVouchers.GetByID(ctx, userVoucherID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user voucher: %w", err)
	}
	if grant == nil {
		return nil, domainErrors.NewNotFoundError("user voucher", userVoucherID)
	}
	if grant.UserID != actor.UserID {
		return nil, domainErrors.NewForbiddenError("voucher belongs to another user")
	}
	if grant.Status != model.UserVoucherStatusActive || s.clock.Now().After(grant.ExpiresAt) {
		return nil, domainErrors.NewConflictError("voucher is no longer usable")
	}

	voucher, err := repos.Vouchers.GetByID(ctx, grant.VoucherID)
	if err != nil {
		return nil, fmt.Errorf("failed to get voucher: %w", err)
	}
	if voucher == nil {
		return nil, domainErrors.NewNotFoundError("voucher", grant.VoucherID)
	}

	discount, err := voucher.DiscountFor(amount)
	if err != nil {
		return nil, err
	}
	return &dto.DiscountPreview{
		UserVoucherID: grant.ID,
		Amount:        amount.Round(2),
		Discount:      discount,
		FinalAmount:   amount.Sub(discount).Round(2),
	}, nil
}
